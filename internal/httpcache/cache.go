// Package httpcache 管理远端响应的磁盘缓存。磁盘布局遵循：
//
//	<root>/<scheme>/<host[_PORT<port>]>/<sha256(path?query)>               # 响应正文
//	<root>/<scheme>/<host[_PORT<port>]>/<sha256(path?query)>.metadata.json # 头部 + 原始 URL
//
// 正文通过临时文件 + rename 原子写入；带 `location` 头的条目是重定向
// 记录，正文为空，由上层负责沿链解析。
package httpcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sync"
)

// Headers 表示与缓存正文一起持久化的响应头，键一律小写。
type Headers map[string]string

// ErrNotFound 表示缓存条目不存在。
var ErrNotFound = errors.New("cache entry not found")

// metadata 是正文旁边的 sidecar 文件内容。
type metadata struct {
	URL     string  `json:"url"`
	Headers Headers `json:"headers"`
}

// Cache 以 root 为根目录管理磁盘缓存，整个进程复用一份实例。
// 通过 entryLock 避免同一 URL 并发写入。
type Cache struct {
	root string

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

// New 构建磁盘缓存；目录按需创建，构造本身不做 I/O。
func New(root string) *Cache {
	return &Cache{
		root:  root,
		locks: make(map[string]*entryLock),
	}
}

// Root 返回缓存根目录。
func (c *Cache) Root() string {
	return c.root
}

// Locate 返回 URL 对应的正文文件路径，纯函数、结果确定。
func (c *Cache) Locate(u *url.URL) string {
	hostDir := u.Hostname()
	if port := u.Port(); port != "" {
		hostDir += "_PORT" + port
	}
	rest := u.Path
	if u.RawQuery != "" {
		rest += "?" + u.RawQuery
	}
	sum := sha256.Sum256([]byte(rest))
	return filepath.Join(c.root, u.Scheme, hostDir, hex.EncodeToString(sum[:]))
}

func metadataPath(bodyPath string) string {
	return bodyPath + ".metadata.json"
}

// Get 返回可流式读取的正文与持久化的头部。条目不存在时返回 ErrNotFound。
func (c *Cache) Get(ctx context.Context, u *url.URL) (io.ReadSeekCloser, Headers, error) {
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	default:
	}

	bodyPath := c.Locate(u)

	rawMeta, err := os.ReadFile(metadataPath(bodyPath))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}

	var meta metadata
	if err := json.Unmarshal(rawMeta, &meta); err != nil {
		return nil, nil, fmt.Errorf("corrupt cache metadata for %q: %w", u, err)
	}

	body, err := os.Open(bodyPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}

	headers := meta.Headers
	if headers == nil {
		headers = Headers{}
	}
	return body, headers, nil
}

// Set 写入正文与头部，覆盖同一 URL 的旧条目；body 为空表示重定向记录。
func (c *Cache) Set(ctx context.Context, u *url.URL, headers Headers, body []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	unlock := c.lockEntry(u)
	defer unlock()

	bodyPath := c.Locate(u)
	if err := os.MkdirAll(filepath.Dir(bodyPath), 0o755); err != nil {
		return err
	}

	if err := writeAtomic(bodyPath, body); err != nil {
		return err
	}

	rawMeta, err := json.MarshalIndent(metadata{URL: u.String(), Headers: headers}, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(metadataPath(bodyPath), rawMeta)
}

// writeAtomic 通过临时文件 + rename 保证写入原子性，失败时清理临时文件。
func writeAtomic(path string, data []byte) error {
	tempFile, err := os.CreateTemp(filepath.Dir(path), ".cache-*")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	_, err = tempFile.Write(data)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return err
	}

	if err := os.Rename(tempName, path); err != nil {
		os.Remove(tempName)
		return err
	}
	return nil
}

func (c *Cache) lockEntry(u *url.URL) func() {
	key := u.String()
	c.mu.Lock()
	lock := c.locks[key]
	if lock == nil {
		lock = &entryLock{}
		c.locks[key] = lock
	}
	lock.refs++
	c.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		c.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(c.locks, key)
		}
		c.mu.Unlock()
	}
}
