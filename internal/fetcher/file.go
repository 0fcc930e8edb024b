package fetcher

import (
	"net/url"

	"github.com/modfetch/modfetch/internal/media"
)

// File 表示一次解析完成的源文件工件。构造完成后视为不可变值：任何
// 更新都应产出新的 File，而不是原地修改。
type File struct {
	// Local 是字节内容所在的文件系统路径；本地文件就是其自身路径，
	// 远端文件则指向磁盘缓存内的正文文件。
	Local string
	// MaybeTypes 携带 `x-typescript-types` 响应头的值，指向配套的
	// 类型声明文件，可能为空。
	MaybeTypes string
	// MediaKind 是内容分类结果。
	MediaKind media.Kind
	// Source 是解码并剥离 shebang 之后的文本内容。
	Source string
	// Specifier 是跟随所有重定向之后的最终 specifier，可能与最初请求
	// 的 specifier 不同。
	Specifier *url.URL
}

// Equal 逐字段比较两个 File；Specifier 按 URL 字符串相等判定。
func (f File) Equal(other File) bool {
	if f.Local != other.Local ||
		f.MaybeTypes != other.MaybeTypes ||
		f.MediaKind != other.MediaKind ||
		f.Source != other.Source {
		return false
	}
	if (f.Specifier == nil) != (other.Specifier == nil) {
		return false
	}
	if f.Specifier == nil {
		return true
	}
	return f.Specifier.String() == other.Specifier.String()
}
