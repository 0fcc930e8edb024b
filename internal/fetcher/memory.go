package fetcher

import (
	"net/url"
	"sync"
)

// fileCache 是进程内共享的 specifier → File 映射，避免同一文件在一次
// 运行里被重复读取/下载。锁只覆盖单次 get/insert，绝不跨 I/O 持有；
// 并发的首次 fetch 允许各自做重复工作，最后写入者胜出。
type fileCache struct {
	mu    sync.Mutex
	files map[string]File
}

func newFileCache() *fileCache {
	return &fileCache{files: make(map[string]File)}
}

func (c *fileCache) get(specifier *url.URL) (File, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	file, ok := c.files[specifier.String()]
	return file, ok
}

// insert 写入并返回被替换掉的旧值（若有）。
func (c *fileCache) insert(specifier *url.URL, file File) (File, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := specifier.String()
	previous, existed := c.files[key]
	c.files[key] = file
	return previous, existed
}
