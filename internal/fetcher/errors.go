package fetcher

import (
	"errors"
	"fmt"
)

// supportedSchemes 是 fetcher 唯一认得的三种 scheme。
var supportedSchemes = []string{"http", "https", "file"}

// ErrTooManyRedirects 表示重定向/缓存链的预算耗尽，链被视为终止错误
// 而不是静默截断。
var ErrTooManyRedirects = errors.New("too many redirects")

// UnsupportedSchemeError 表示 specifier 的 scheme 不在支持范围内。
type UnsupportedSchemeError struct {
	Scheme    string
	Specifier string
}

func (e *UnsupportedSchemeError) Error() string {
	return fmt.Sprintf("unsupported scheme %q for module %q; supported schemes: %v",
		e.Scheme, e.Specifier, supportedSchemes)
}

// InvalidLocalPathError 表示 file specifier 无法转换为文件系统路径。
type InvalidLocalPathError struct {
	Specifier string
}

func (e *InvalidLocalPathError) Error() string {
	return fmt.Sprintf("invalid file path, specifier: %q", e.Specifier)
}

// NoRemoteError 表示远端获取被全局禁用，但请求的是非本地 specifier。
type NoRemoteError struct {
	Specifier string
}

func (e *NoRemoteError) Error() string {
	return fmt.Sprintf("a remote specifier was requested: %q, but remote fetching is disabled (--no-remote)", e.Specifier)
}

// NotCachedError 表示仅用缓存模式下没有对应的缓存条目。
type NotCachedError struct {
	Specifier string
}

func (e *NotCachedError) Error() string {
	return fmt.Sprintf("specifier not found in cache: %q, --cached-only is specified", e.Specifier)
}
