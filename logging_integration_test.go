package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckConfigWritesJSONLogFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "logs", "modfetch.log")
	configPath := writeConfigFixture(t, fmt.Sprintf(`
LogLevel = "info"
LogFilePath = %q
StoragePath = %q
`, logPath, filepath.Join(dir, "deps")))

	useBufferWriters(t)
	code := run(cliOptions{configPath: configPath, checkOnly: true})
	if code != 0 {
		t.Fatalf("check-config 应成功，得到 %d: %s", code, stdErrBuffer().String())
	}

	raw, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("读取日志文件失败: %v", err)
	}
	if !strings.Contains(string(raw), `"action":"check_config"`) {
		t.Fatalf("日志应包含 check_config 记录: %s", raw)
	}
}

func TestLoggingFallbackToStdout(t *testing.T) {
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked")
	if err := os.Mkdir(blocked, 0o755); err != nil {
		t.Fatalf("创建目录失败: %v", err)
	}
	if err := os.Chmod(blocked, 0o000); err != nil {
		t.Fatalf("设置目录权限失败: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(blocked, 0o755) })

	logPath := filepath.Join(blocked, "sub", "modfetch.log")
	configPath := writeConfigFixture(t, fmt.Sprintf(`
LogLevel = "info"
LogFilePath = %q
StoragePath = %q
`, logPath, filepath.Join(dir, "deps")))

	useBufferWriters(t)
	code := run(cliOptions{configPath: configPath, checkOnly: true})
	if code != 0 {
		t.Fatalf("日志 fallback 不应导致失败，得到 %d", code)
	}
}
