package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/modfetch/modfetch/internal/fetcher"
	"github.com/modfetch/modfetch/internal/permissions"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// 缓存模式的合法取值，对应 CLI 的 --reload / --cached-only 语义。
const (
	CacheModeUse        = "use"
	CacheModeOnly       = "only"
	CacheModeReloadAll  = "reload-all"
	CacheModeReloadSome = "reload-some"
)

// GlobalConfig 描述全局运行时行为。
type GlobalConfig struct {
	LogLevel        string   `mapstructure:"LogLevel"`
	LogFilePath     string   `mapstructure:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress"`
	StoragePath     string   `mapstructure:"StoragePath"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
	AllowRemote     bool     `mapstructure:"AllowRemote"`
	CacheMode       string   `mapstructure:"CacheMode"`
	Reload          []string `mapstructure:"Reload"`
}

// MirrorConfig 控制镜像模式：把磁盘缓存里的模块通过 HTTP 回放给局域网
// 内的其它进程。Upstream 为空时镜像模式不可用。
type MirrorConfig struct {
	ListenPort int    `mapstructure:"ListenPort"`
	Upstream   string `mapstructure:"Upstream"`
}

// PermissionsConfig 是白名单式访问控制，两张表都为空表示不限制。
type PermissionsConfig struct {
	AllowedHosts []string `mapstructure:"AllowedHosts"`
	AllowedPaths []string `mapstructure:"AllowedPaths"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global      GlobalConfig      `mapstructure:",squash"`
	Mirror      MirrorConfig      `mapstructure:"Mirror"`
	Permissions PermissionsConfig `mapstructure:"Permissions"`
}

// CacheSetting 把配置里的 CacheMode/Reload 映射为 fetcher 的缓存策略。
func (g GlobalConfig) CacheSetting() fetcher.CacheSetting {
	switch g.CacheMode {
	case CacheModeOnly:
		return fetcher.CacheOnly()
	case CacheModeReloadAll:
		return fetcher.CacheReloadAll()
	case CacheModeReloadSome:
		return fetcher.CacheReloadSome(g.Reload)
	default:
		return fetcher.CacheUse()
	}
}

// Checker 把白名单配置转换为 fetcher 消费的权限检查器。
func (p PermissionsConfig) Checker() permissions.Checker {
	if len(p.AllowedHosts) == 0 && len(p.AllowedPaths) == 0 {
		return permissions.AllowAll()
	}
	return permissions.NewList(p.AllowedHosts, p.AllowedPaths)
}
