// Package fetcher 是模块加载的前端：把 file/http/https specifier 解析为
// 具体的源码文本，透明地统一本地文件系统、磁盘 HTTP 缓存与网络三个
// 数据源。每个 specifier 在一次进程运行里只真正解析一次，后续请求由
// 进程内缓存直接命中。
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/modfetch/modfetch/internal/httpcache"
	"github.com/modfetch/modfetch/internal/media"
	"github.com/modfetch/modfetch/internal/permissions"
	"github.com/modfetch/modfetch/internal/source"
)

// redirectBudget 是一次 fetch 允许的最大重定向跳数，缓存链解析与网络
// 跟随共享同一个递减预算。
const redirectBudget = 10

// Options 控制 FileFetcher 的缓存策略与网络能力。
type Options struct {
	// CacheSetting 决定磁盘缓存的复用策略，零值为 CacheUse。
	CacheSetting CacheSetting
	// AllowRemote 为 false 时任何 http/https specifier 都会报错。
	AllowRemote bool
	// Client 为空时使用 NewHTTPClient 的默认配置。
	Client *http.Client
	// Logger 为空时退回 logrus 标准 logger。
	Logger *logrus.Logger
}

// FileFetcher 负责解析、获取并缓存源文件。可以被任意数量的并发调用
// 共享；唯一的可变共享状态是进程内 fileCache，它自带互斥。
type FileFetcher struct {
	allowRemote  bool
	cache        *fileCache
	cacheSetting CacheSetting
	httpCache    *httpcache.Cache
	client       *http.Client
	logger       *logrus.Logger
}

// New 构建 FileFetcher；httpCache 是唯一必填的协作者。
func New(httpCache *httpcache.Cache, opts Options) *FileFetcher {
	client := opts.Client
	if client == nil {
		client = NewHTTPClient(30 * time.Second)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &FileFetcher{
		allowRemote:  opts.AllowRemote,
		cache:        newFileCache(),
		cacheSetting: opts.CacheSetting,
		httpCache:    httpCache,
		client:       client,
		logger:       logger,
	}
}

// Fetch 解析一个 specifier 并返回对应的 File。scheme 校验与权限检查
// 先于进程内缓存查找执行：权限状态可能在两次调用之间变化，命中缓存
// 不能跳过这次复查。
func (f *FileFetcher) Fetch(ctx context.Context, specifier *url.URL, perms permissions.Checker) (File, error) {
	scheme, err := validatedScheme(specifier)
	if err != nil {
		return File{}, err
	}
	if err := perms.CheckSpecifier(specifier); err != nil {
		return File{}, err
	}
	if file, ok := f.cache.get(specifier); ok {
		return file, nil
	}

	var file File
	switch {
	case scheme == "file":
		file, err = fetchLocal(specifier)
	case !f.allowRemote:
		err = &NoRemoteError{Specifier: specifier.String()}
	default:
		file, err = f.fetchRemote(ctx, specifier, perms, redirectBudget)
	}
	if err != nil {
		return File{}, err
	}

	// 进程内缓存按最初请求的 specifier 建键；file.Specifier 则保存
	// 重定向后的最终地址，两个键各自成立，不做合并。
	f.cache.insert(specifier, file)
	return file, nil
}

// GetCached 只查进程内缓存，绝不触达磁盘或网络。
func (f *FileFetcher) GetCached(specifier *url.URL) (File, bool) {
	return f.cache.get(specifier)
}

// InsertCached 把外部合成的 File 预置进进程内缓存（用于内存中的
// 虚拟源文件），返回被替换的旧值（若有）。
func (f *FileFetcher) InsertCached(file File) (File, bool) {
	return f.cache.insert(file.Specifier, file)
}

// CacheRoot 返回磁盘缓存根目录。
func (f *FileFetcher) CacheRoot() string {
	return f.httpCache.Root()
}

// validatedScheme 校验并返回 specifier 的 scheme。
func validatedScheme(specifier *url.URL) (string, error) {
	scheme := specifier.Scheme
	for _, supported := range supportedSchemes {
		if scheme == supported {
			return scheme, nil
		}
	}
	return "", &UnsupportedSchemeError{Scheme: scheme, Specifier: specifier.String()}
}

// fetchLocal 从本地文件系统读取 specifier。分类只看路径，无声明类型。
func fetchLocal(specifier *url.URL) (File, error) {
	local := specifier.Path
	if local == "" || (specifier.Host != "" && specifier.Host != "localhost") {
		return File{}, &InvalidLocalPathError{Specifier: specifier.String()}
	}

	bytes, err := os.ReadFile(local)
	if err != nil {
		return File{}, err
	}

	charset := source.DetectCharset(bytes)
	text, err := source.Decode(bytes, charset)
	if err != nil {
		return File{}, err
	}

	return File{
		Local:     local,
		MediaKind: media.FromSpecifier(specifier),
		Source:    source.StripShebang(text),
		Specifier: specifier,
	}, nil
}

// fetchRemote 获取远端文件，每次调用只前进一逻辑跳：优先读缓存，必要
// 时发一次条件请求，遇到重定向则写入重定向记录后带着递减的预算递归。
func (f *FileFetcher) fetchRemote(ctx context.Context, specifier *url.URL, perms permissions.Checker, budget int) (File, error) {
	if budget < 0 {
		return File{}, ErrTooManyRedirects
	}

	// 重定向目标可能落在新的 host/path 上，链上每一跳都重新检查权限。
	if err := perms.CheckSpecifier(specifier); err != nil {
		return File{}, err
	}

	if f.cacheSetting.ShouldUse(specifier) {
		file, found, err := f.fetchCached(ctx, specifier, budget)
		if err != nil {
			return File{}, err
		}
		if found {
			return file, nil
		}
	}

	if f.cacheSetting.IsOnly() {
		return File{}, &NotCachedError{Specifier: specifier.String()}
	}

	f.logger.WithFields(logrus.Fields{
		"action":    "download",
		"specifier": specifier.String(),
	}).Info("download")

	var cachedETag string
	if body, headers, err := f.httpCache.Get(ctx, specifier); err == nil {
		body.Close()
		cachedETag = headers["etag"]
	}

	result, err := fetchOnce(ctx, f.client, specifier, cachedETag)
	if err != nil {
		return File{}, err
	}

	switch {
	case result.NotModified:
		// 304 意味着缓存记录仍然有效且完整，用全新预算重读一遍。
		file, found, err := f.fetchCached(ctx, specifier, redirectBudget)
		if err != nil {
			return File{}, err
		}
		if !found {
			return File{}, fmt.Errorf("no cache entry for %q after a 304 response", specifier)
		}
		return file, nil
	case result.Redirect != nil:
		// 当前 specifier 落一条空正文的重定向记录，再跟进目标。
		if err := f.httpCache.Set(ctx, specifier, result.Headers, nil); err != nil {
			return File{}, err
		}
		return f.fetchRemote(ctx, result.Redirect, perms, budget-1)
	default:
		if err := f.httpCache.Set(ctx, specifier, result.Headers, result.Body); err != nil {
			return File{}, err
		}
		return f.buildRemoteFile(specifier, result.Body, result.Headers)
	}
}

// fetchCached 在不触网的前提下沿磁盘缓存里的重定向记录解析。条目不存
// 在不是错误：返回 found=false，由上一层回退到网络。
func (f *FileFetcher) fetchCached(ctx context.Context, specifier *url.URL, budget int) (File, bool, error) {
	if budget < 0 {
		return File{}, false, ErrTooManyRedirects
	}

	body, headers, err := f.httpCache.Get(ctx, specifier)
	if err != nil {
		if errors.Is(err, httpcache.ErrNotFound) {
			return File{}, false, nil
		}
		return File{}, false, err
	}

	if location := headers["location"]; location != "" {
		body.Close()
		redirect, err := specifier.Parse(location)
		if err != nil {
			return File{}, false, fmt.Errorf("invalid cached redirect location %q: %w", location, err)
		}
		return f.fetchCached(ctx, redirect, budget-1)
	}

	defer body.Close()
	bytes, err := io.ReadAll(body)
	if err != nil {
		return File{}, false, err
	}

	file, err := f.buildRemoteFile(specifier, bytes, headers)
	if err != nil {
		return File{}, false, err
	}
	return file, true, nil
}

// buildRemoteFile 把响应字节 + 头部组装成 File。specifier 参数是跟完
// 重定向之后的最终地址，不是最初请求的那个。
func (f *FileFetcher) buildRemoteFile(specifier *url.URL, bytes []byte, headers httpcache.Headers) (File, error) {
	kind, charset := media.MapContentType(specifier, headers["content-type"])
	text, err := source.Decode(bytes, charset)
	if err != nil {
		return File{}, err
	}

	return File{
		Local:      f.httpCache.Locate(specifier),
		MaybeTypes: headers["x-typescript-types"],
		MediaKind:  kind,
		Source:     source.StripShebang(text),
		Specifier:  specifier,
	}, nil
}
