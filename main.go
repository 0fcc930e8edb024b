package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/modfetch/modfetch/internal/config"
	"github.com/modfetch/modfetch/internal/fetcher"
	"github.com/modfetch/modfetch/internal/httpcache"
	"github.com/modfetch/modfetch/internal/logging"
	"github.com/modfetch/modfetch/internal/server"
	"github.com/modfetch/modfetch/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	serve       bool
	reload      string
	reloadSet   bool
	cachedOnly  bool
	noRemote    bool
	specifiers  []string
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}
	if err := applyCLIOverrides(cfg, opts); err != nil {
		fmt.Fprintln(stdErr, err.Error())
		return 2
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["cache_mode"] = cfg.Global.CacheMode
		fields["allow_remote"] = cfg.Global.AllowRemote
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// CLI 启动遵循“配置 → 磁盘缓存 → FileFetcher”顺序，镜像模式与
	// 解析模式共享同一个缓存实例。
	httpCache := httpcache.New(cfg.Global.StoragePath)

	if opts.serve {
		return runMirror(cfg, httpCache, logger)
	}

	if len(opts.specifiers) == 0 {
		fmt.Fprintln(stdErr, "未提供任何 specifier（文件路径或 http/https URL）")
		return 2
	}

	f := fetcher.New(httpCache, fetcher.Options{
		CacheSetting: cfg.Global.CacheSetting(),
		AllowRemote:  cfg.Global.AllowRemote,
		Client:       fetcher.NewHTTPClient(cfg.Global.UpstreamTimeout.DurationValue()),
		Logger:       logger,
	})
	perms := cfg.Permissions.Checker()

	exitCode := 0
	for _, raw := range opts.specifiers {
		specifier, err := parseSpecifier(raw)
		if err != nil {
			fmt.Fprintf(stdErr, "%s: %v\n", raw, err)
			exitCode = 1
			continue
		}

		file, err := f.Fetch(context.Background(), specifier, perms)
		if err != nil {
			fmt.Fprintf(stdErr, "%s: %v\n", raw, err)
			exitCode = 1
			continue
		}

		logger.WithFields(logging.FetchFields(specifier.String(), file.MediaKind.String(), false)).
			Info("resolved")
		printFile(raw, file)
	}
	return exitCode
}

// runMirror 启动镜像模式：把磁盘缓存通过 HTTP 回放出去。
func runMirror(cfg *config.Config, httpCache *httpcache.Cache, logger *logrus.Logger) int {
	if cfg.Mirror.Upstream == "" {
		fmt.Fprintln(stdErr, "镜像模式需要在配置中提供 Mirror.Upstream")
		return 1
	}
	upstream, err := url.Parse(cfg.Mirror.Upstream)
	if err != nil {
		fmt.Fprintf(stdErr, "无法解析 Mirror.Upstream: %v\n", err)
		return 1
	}

	app, err := server.NewMirror(server.MirrorOptions{
		Logger:   logger,
		Cache:    httpCache,
		Upstream: upstream,
	})
	if err != nil {
		fmt.Fprintf(stdErr, "构建镜像服务失败: %v\n", err)
		return 1
	}

	logger.WithFields(logrus.Fields{
		"action":   "listen",
		"port":     cfg.Mirror.ListenPort,
		"upstream": upstream.String(),
		"version":  version.Full(),
	}).Info("镜像服务启动")

	if err := app.Listen(server.ListenAddr(cfg.Mirror.ListenPort)); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// printFile 把解析结果输出为一组键值行。
func printFile(requested string, file fetcher.File) {
	fmt.Fprintf(stdOut, "%s\n", requested)
	fmt.Fprintf(stdOut, "  specifier: %s\n", file.Specifier)
	fmt.Fprintf(stdOut, "  media:     %s\n", file.MediaKind)
	fmt.Fprintf(stdOut, "  local:     %s\n", file.Local)
	if file.MaybeTypes != "" {
		fmt.Fprintf(stdOut, "  types:     %s\n", file.MaybeTypes)
	}
}

// loadConfig 在显式指定路径时强制读取；否则仅当默认文件存在才读取，
// 缺失时退回内置默认值。
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	if _, err := os.Stat("modfetch.toml"); err == nil {
		return config.Load("modfetch.toml")
	}
	return config.Default(), nil
}

// applyCLIOverrides 把 CLI 标志叠加到配置之上，标志优先级高于文件。
func applyCLIOverrides(cfg *config.Config, opts cliOptions) error {
	if opts.cachedOnly && opts.reloadSet {
		return errors.New("-cached-only 与 -reload 不能同时使用")
	}
	if opts.cachedOnly {
		cfg.Global.CacheMode = config.CacheModeOnly
	}
	if opts.reloadSet {
		if opts.reload == "" || opts.reload == "all" {
			cfg.Global.CacheMode = config.CacheModeReloadAll
			cfg.Global.Reload = nil
		} else {
			cfg.Global.CacheMode = config.CacheModeReloadSome
			cfg.Global.Reload = splitReloadList(opts.reload)
		}
	}
	if opts.noRemote {
		cfg.Global.AllowRemote = false
	}
	return nil
}

func splitReloadList(raw string) []string {
	parts := strings.Split(raw, ",")
	list := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			list = append(list, trimmed)
		}
	}
	return list
}

// parseSpecifier 把 CLI 参数规范化为 URL：带 scheme 的按 URL 解析，
// 其余一律按本地路径处理并转为绝对 file URL。
func parseSpecifier(raw string) (*url.URL, error) {
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("无法解析 specifier: %w", err)
		}
		return u, nil
	}

	abs, err := filepath.Abs(raw)
	if err != nil {
		return nil, fmt.Errorf("无法解析本地路径: %w", err)
	}
	return &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}, nil
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("modfetch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
		serve      bool
		reload     string
		cachedOnly bool
		noRemote   bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./modfetch.toml，可被 MODFETCH_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")
	fs.BoolVar(&serve, "serve", false, "镜像模式：把磁盘缓存通过 HTTP 回放")
	fs.StringVar(&reload, "reload", "", "强制重新下载：留空或 all 表示全部，逗号分隔表示指定前缀")
	fs.BoolVar(&cachedOnly, "cached-only", false, "只允许读磁盘缓存，禁止触网")
	fs.BoolVar(&noRemote, "no-remote", false, "禁止一切远程 specifier")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("MODFETCH_CONFIG")
	if configFlag != "" {
		path = configFlag
	}

	reloadSet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "reload" {
			reloadSet = true
		}
	})

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
		serve:       serve,
		reload:      reload,
		reloadSet:   reloadSet,
		cachedOnly:  cachedOnly,
		noRemote:    noRemote,
		specifiers:  fs.Args(),
	}, nil
}
