// Package permissions 在每次本地读取与每个远端 hop 之前校验 specifier
// 的访问权限。重定向目标可能落到新的 host，所以 fetcher 对链上的每一跳
// 都会重新调用 Check。
package permissions

import (
	"fmt"
	"net/url"
	"strings"
)

// DeniedError 表示 specifier 被访问策略拒绝。
type DeniedError struct {
	Specifier string
	Reason    string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("access to %q denied: %s", e.Specifier, e.Reason)
}

// Checker 是 fetcher 消费的权限检查接口。
type Checker interface {
	CheckSpecifier(u *url.URL) error
}

// allowAll 放行一切，测试与默认配置使用。
type allowAll struct{}

func (allowAll) CheckSpecifier(*url.URL) error { return nil }

// AllowAll 返回不做任何限制的 Checker。
func AllowAll() Checker {
	return allowAll{}
}

// List 按 host 白名单（远端）与路径前缀白名单（本地）放行；两张表都为
// 空时等价于 AllowAll。
type List struct {
	// Hosts 允许访问的远端 host（不含端口），空表示不限制。
	Hosts []string
	// Paths 允许读取的本地路径前缀，空表示不限制。
	Paths []string
}

// NewList 构建基于白名单的 Checker。
func NewList(hosts, paths []string) *List {
	return &List{Hosts: hosts, Paths: paths}
}

// CheckSpecifier 实现 Checker。
func (l *List) CheckSpecifier(u *url.URL) error {
	if u.Scheme == "file" {
		return l.checkPath(u)
	}
	return l.checkHost(u)
}

func (l *List) checkHost(u *url.URL) error {
	if len(l.Hosts) == 0 {
		return nil
	}
	host := u.Hostname()
	for _, allowed := range l.Hosts {
		if strings.EqualFold(host, allowed) {
			return nil
		}
	}
	return &DeniedError{Specifier: u.String(), Reason: fmt.Sprintf("host %q is not in the allow list", host)}
}

func (l *List) checkPath(u *url.URL) error {
	if len(l.Paths) == 0 {
		return nil
	}
	for _, prefix := range l.Paths {
		if strings.HasPrefix(u.Path, prefix) {
			return nil
		}
	}
	return &DeniedError{Specifier: u.String(), Reason: "path is not in the allow list"}
}
