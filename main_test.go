package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modfetch/modfetch/internal/config"
)

func TestParseCLIFlagsPriority(t *testing.T) {
	t.Setenv("MODFETCH_CONFIG", "/tmp/env.toml")

	opts, err := parseCLIFlags([]string{})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/env.toml" {
		t.Fatalf("应优先使用环境变量，得到 %s", opts.configPath)
	}

	opts, err = parseCLIFlags([]string{"--config", "/tmp/flag.toml"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/flag.toml" {
		t.Fatalf("flag 应高于环境变量，得到 %s", opts.configPath)
	}
}

func TestParseCLIFlagsReloadAndSpecifiers(t *testing.T) {
	opts, err := parseCLIFlags([]string{"--reload=https://deno.land/std,https://example.com", "./mod.ts"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if !opts.reloadSet {
		t.Fatalf("reload 标志应被记录为已设置")
	}
	if len(opts.specifiers) != 1 || opts.specifiers[0] != "./mod.ts" {
		t.Fatalf("specifier 参数解析错误: %v", opts.specifiers)
	}
}

func TestApplyCLIOverrides(t *testing.T) {
	cfg := config.Default()
	err := applyCLIOverrides(cfg, cliOptions{reloadSet: true, reload: "all", noRemote: true})
	if err != nil {
		t.Fatalf("叠加失败: %v", err)
	}
	if cfg.Global.CacheMode != config.CacheModeReloadAll {
		t.Fatalf("reload=all 应切换到 reload-all，得到 %s", cfg.Global.CacheMode)
	}
	if cfg.Global.AllowRemote {
		t.Fatalf("no-remote 应关闭远程访问")
	}

	cfg = config.Default()
	if err := applyCLIOverrides(cfg, cliOptions{reloadSet: true, reload: "https://deno.land/std, https://example.com"}); err != nil {
		t.Fatalf("叠加失败: %v", err)
	}
	if cfg.Global.CacheMode != config.CacheModeReloadSome {
		t.Fatalf("前缀列表应切换到 reload-some，得到 %s", cfg.Global.CacheMode)
	}
	if len(cfg.Global.Reload) != 2 || cfg.Global.Reload[1] != "https://example.com" {
		t.Fatalf("reload 列表解析错误: %v", cfg.Global.Reload)
	}

	cfg = config.Default()
	if err := applyCLIOverrides(cfg, cliOptions{reloadSet: true, cachedOnly: true}); err == nil {
		t.Fatalf("cached-only 与 reload 互斥时应报错")
	}
}

func TestParseSpecifierLocalPath(t *testing.T) {
	u, err := parseSpecifier("./some/mod.ts")
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if u.Scheme != "file" || !filepath.IsAbs(u.Path) {
		t.Fatalf("本地路径应转成绝对 file URL，得到 %s", u)
	}

	u, err = parseSpecifier("https://deno.land/mod.ts")
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if u.Scheme != "https" {
		t.Fatalf("URL specifier 不应被当作路径，得到 %s", u)
	}
}

func TestRunVersionOutput(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{showVersion: true})
	if code != 0 {
		t.Fatalf("version 模式应成功退出，得到 %d", code)
	}
	if !strings.Contains(stdOutBuffer().String(), "modfetch") {
		t.Fatalf("version 输出应包含 modfetch 标识")
	}
}

func TestRunCheckConfigSuccess(t *testing.T) {
	useBufferWriters(t)
	path := writeConfigFixture(t, "StoragePath = \""+filepath.ToSlash(t.TempDir())+"\"\n")
	code := run(cliOptions{configPath: path, checkOnly: true})
	if code != 0 {
		t.Fatalf("期望退出码 0，得到 %d: %s", code, stdErrBuffer().String())
	}
}

func TestRunCheckConfigFailure(t *testing.T) {
	useBufferWriters(t)
	code := run(cliOptions{configPath: filepath.Join(t.TempDir(), "missing.toml"), checkOnly: true})
	if code == 0 {
		t.Fatalf("无效配置应返回非零退出码")
	}
}

func TestRunFetchesLocalFile(t *testing.T) {
	useBufferWriters(t)

	dir := t.TempDir()
	modPath := filepath.Join(dir, "mod.ts")
	if err := os.WriteFile(modPath, []byte("#!/usr/bin/env deno\nexport {};"), 0o644); err != nil {
		t.Fatalf("写入源文件失败: %v", err)
	}
	cfgPath := writeConfigFixture(t, fmt.Sprintf("StoragePath = %q\nLogLevel = \"error\"\n", filepath.ToSlash(dir)))

	code := run(cliOptions{configPath: cfgPath, specifiers: []string{modPath}})
	if code != 0 {
		t.Fatalf("期望退出码 0，得到 %d: %s", code, stdErrBuffer().String())
	}
	out := stdOutBuffer().String()
	if !strings.Contains(out, "media:     TypeScript") {
		t.Fatalf("输出应包含媒体类型: %s", out)
	}
	if !strings.Contains(out, modPath) {
		t.Fatalf("输出应包含本地路径: %s", out)
	}
}

func TestRunReportsMissingSpecifier(t *testing.T) {
	useBufferWriters(t)

	dir := t.TempDir()
	cfgPath := writeConfigFixture(t, fmt.Sprintf("StoragePath = %q\nLogLevel = \"error\"\n", filepath.ToSlash(dir)))

	code := run(cliOptions{configPath: cfgPath})
	if code != 2 {
		t.Fatalf("缺少 specifier 应返回 2，得到 %d", code)
	}

	code = run(cliOptions{configPath: cfgPath, specifiers: []string{filepath.Join(dir, "absent.ts")}})
	if code != 1 {
		t.Fatalf("不存在的文件应返回 1，得到 %d", code)
	}
}

func TestRunNoRemoteBlocksRemoteSpecifier(t *testing.T) {
	useBufferWriters(t)

	dir := t.TempDir()
	cfgPath := writeConfigFixture(t, fmt.Sprintf("StoragePath = %q\nLogLevel = \"error\"\n", filepath.ToSlash(dir)))

	code := run(cliOptions{
		configPath: cfgPath,
		noRemote:   true,
		specifiers: []string{"https://deno.land/std/http/mod.ts"},
	})
	if code != 1 {
		t.Fatalf("no-remote 模式下远程 specifier 应失败，得到 %d", code)
	}
	if !strings.Contains(stdErrBuffer().String(), "--no-remote") {
		t.Fatalf("错误信息应提示 no-remote: %s", stdErrBuffer().String())
	}
}
