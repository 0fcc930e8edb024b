package fetcher

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/modfetch/modfetch/internal/httpcache"
)

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// NewHTTPClient 返回共享 http.Client。重定向由 fetcher 自己沿链跟随并
// 逐跳写缓存，所以客户端必须原样返回 3xx 响应。
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: defaultTransport.Clone(),
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// FetchOnceResult 描述单次条件请求的三种结局：缓存仍然新鲜（NotModified）、
// 一跳重定向（Redirect 非空）或实际内容（Body + Headers）。
type FetchOnceResult struct {
	NotModified bool
	Redirect    *url.URL
	Body        []byte
	Headers     httpcache.Headers
}

// fetchOnce 发出一次 GET，不跟随重定向、不重试。cachedETag 非空时作为
// If-None-Match 前置条件携带。
func fetchOnce(ctx context.Context, client *http.Client, u *url.URL, cachedETag string) (FetchOnceResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return FetchOnceResult{}, err
	}
	if cachedETag != "" {
		req.Header.Set("If-None-Match", cachedETag)
	}

	resp, err := client.Do(req)
	if err != nil {
		return FetchOnceResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return FetchOnceResult{NotModified: true}, nil
	}

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		location := resp.Header.Get("Location")
		if location == "" {
			return FetchOnceResult{}, fmt.Errorf("redirect from %q without a location header", u)
		}
		target, err := u.Parse(location)
		if err != nil {
			return FetchOnceResult{}, fmt.Errorf("invalid redirect location %q: %w", location, err)
		}
		return FetchOnceResult{
			Redirect: target,
			Headers:  headersFromResponse(resp),
		}, nil
	}

	if resp.StatusCode != http.StatusOK {
		return FetchOnceResult{}, fmt.Errorf("import %q failed: %s", u, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FetchOnceResult{}, err
	}
	return FetchOnceResult{
		Body:    body,
		Headers: headersFromResponse(resp),
	}, nil
}

// headersFromResponse 压平响应头为小写单值映射，与磁盘缓存的持久化
// 格式保持一致。
func headersFromResponse(resp *http.Response) httpcache.Headers {
	headers := make(httpcache.Headers, len(resp.Header))
	for key, values := range resp.Header {
		if len(values) == 0 {
			continue
		}
		headers[strings.ToLower(key)] = values[0]
	}
	return headers
}
