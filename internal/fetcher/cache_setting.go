package fetcher

import (
	"net/url"
	"strings"
)

type cacheSettingKind int

const (
	// cacheUse 是零值，对应 CLI 的默认行为。
	cacheUse cacheSettingKind = iota
	cacheOnly
	cacheReloadAll
	cacheReloadSome
)

// CacheSetting 决定某个 specifier 是否可以复用磁盘缓存里的远端响应。
// 四种取值对应 CLI 的默认行为、--cached-only、--reload 与 --reload=<list>。
type CacheSetting struct {
	kind cacheSettingKind
	list []string
}

// CacheUse 允许复用缓存（默认行为）。
func CacheUse() CacheSetting {
	return CacheSetting{kind: cacheUse}
}

// CacheOnly 只允许使用缓存，缓存缺失时报错而不回源。
func CacheOnly() CacheSetting {
	return CacheSetting{kind: cacheOnly}
}

// CacheReloadAll 忽略缓存，所有远端文件强制回源。
func CacheReloadAll() CacheSetting {
	return CacheSetting{kind: cacheReloadAll}
}

// CacheReloadSome 对列表命中的 URL（或其子树）强制回源，其余照常用缓存。
// 匹配是对列表项的精确字符串相等，不是模式匹配。
func CacheReloadSome(list []string) CacheSetting {
	return CacheSetting{kind: cacheReloadSome, list: list}
}

// IsOnly 报告当前是否处于仅用缓存模式。
func (s CacheSetting) IsOnly() bool {
	return s.kind == cacheOnly
}

// ShouldUse 报告给定 specifier 是否允许复用缓存。ReloadSome 先用去掉
// fragment 的完整 URL 匹配，再去掉 query 后沿路径逐段回退匹配祖先前缀，
// 这样一条 `https://host/std` 就能强制刷新整个子树。
func (s CacheSetting) ShouldUse(u *url.URL) bool {
	switch s.kind {
	case cacheReloadAll:
		return false
	case cacheUse, cacheOnly:
		return true
	case cacheReloadSome:
		stripped := *u
		stripped.Fragment = ""
		if s.listContains(stripped.String()) {
			return false
		}
		stripped.RawQuery = ""
		prefix := stripped.String()
		for {
			if s.listContains(prefix) {
				return false
			}
			i := strings.LastIndexByte(prefix, '/')
			if i <= 0 {
				break
			}
			prefix = prefix[:i]
		}
		return true
	default:
		return true
	}
}

func (s CacheSetting) listContains(candidate string) bool {
	for _, entry := range s.list {
		if entry == candidate {
			return true
		}
	}
	return false
}
