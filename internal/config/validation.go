package config

import (
	"errors"
	"net/url"
	"strings"
)

var validCacheModes = map[string]struct{}{
	CacheModeUse:        {},
	CacheModeOnly:       {},
	CacheModeReloadAll:  {},
	CacheModeReloadSome: {},
}

// Validate 针对语义级别做进一步校验，防止非法配置启动。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.StoragePath == "" {
		return newFieldError("StoragePath", "不能为空")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("UpstreamTimeout", "必须大于 0")
	}
	if g.LogMaxSize < 0 {
		return newFieldError("LogMaxSize", "不能为负数")
	}
	if g.LogMaxBackups < 0 {
		return newFieldError("LogMaxBackups", "不能为负数")
	}
	if _, ok := validCacheModes[g.CacheMode]; !ok {
		return newFieldError("CacheMode", "取值必须是 use|only|reload-all|reload-some")
	}
	if g.CacheMode == CacheModeReloadSome && len(g.Reload) == 0 {
		return newFieldError("Reload", "reload-some 模式下不能为空")
	}
	for _, entry := range g.Reload {
		if strings.TrimSpace(entry) == "" {
			return newFieldError("Reload", "包含空白条目")
		}
	}

	if c.Mirror.Upstream != "" {
		if c.Mirror.ListenPort <= 0 || c.Mirror.ListenPort > 65535 {
			return newFieldError("Mirror.ListenPort", "必须在 1-65535")
		}
		parsed, err := url.Parse(c.Mirror.Upstream)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return newFieldError("Mirror.Upstream", "必须是带 scheme 的完整 URL")
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return newFieldError("Mirror.Upstream", "只支持 http/https")
		}
	}

	for _, host := range c.Permissions.AllowedHosts {
		if strings.TrimSpace(host) == "" {
			return newFieldError("Permissions.AllowedHosts", "包含空白条目")
		}
	}
	for _, path := range c.Permissions.AllowedPaths {
		if !strings.HasPrefix(path, "/") {
			return newFieldError("Permissions.AllowedPaths", "必须是绝对路径前缀")
		}
	}

	return nil
}
