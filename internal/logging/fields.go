package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// FetchFields 提供 specifier/media/缓存命中状态字段，供模块解析日志复用。
func FetchFields(specifier, mediaKind string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"specifier":  specifier,
		"media_kind": mediaKind,
		"cache_hit":  cacheHit,
	}
}

// MirrorFields 提供镜像请求的 path/命中状态字段。
func MirrorFields(requestID, path string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"request_id": requestID,
		"path":       path,
		"cache_hit":  cacheHit,
	}
}
