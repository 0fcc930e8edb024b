package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/modfetch/modfetch/internal/httpcache"
	"github.com/modfetch/modfetch/internal/logging"
)

const contextKeyRequestID = "_modfetch_request_id"

// MirrorOptions controls how the mirror application behaves.
type MirrorOptions struct {
	Logger *logrus.Logger
	Cache  *httpcache.Cache
	// Upstream 是缓存条目对应的源站基地址；请求路径会在它上面解析出
	// 缓存键。
	Upstream *url.URL
}

// NewMirror builds a Fiber application that serves the persistent cache.
func NewMirror(opts MirrorOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Cache == nil {
		return nil, errors.New("cache is required")
	}
	if opts.Upstream == nil {
		return nil, errors.New("upstream base URL is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	app.Get("/*", func(c fiber.Ctx) error {
		return serveCached(c, opts)
	})

	return app, nil
}

// requestIDMiddleware 负责生成请求 ID 并回写响应头。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// RequestID returns the request ID assigned by the middleware, if any.
func RequestID(c fiber.Ctx) string {
	if id, ok := c.Locals(contextKeyRequestID).(string); ok {
		return id
	}
	return ""
}

func serveCached(c fiber.Ctx, opts MirrorOptions) error {
	requestID := RequestID(c)
	target := cacheKeyFor(opts.Upstream, c)

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	body, headers, err := opts.Cache.Get(ctx, target)
	if err != nil {
		if errors.Is(err, httpcache.ErrNotFound) {
			opts.Logger.WithFields(logging.MirrorFields(requestID, target.String(), false)).
				Info("mirror_miss")
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_cached"})
		}
		opts.Logger.WithError(err).
			WithFields(logging.MirrorFields(requestID, target.String(), false)).
			Warn("mirror_cache_read_failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cache_read_failed"})
	}
	defer body.Close()

	if location := headers["location"]; location != "" {
		opts.Logger.WithFields(logging.MirrorFields(requestID, target.String(), true)).
			Info("mirror_redirect")
		c.Set("Location", location)
		return c.SendStatus(fiber.StatusFound)
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cache_read_failed"})
	}

	if contentType := headers["content-type"]; contentType != "" {
		c.Set("Content-Type", contentType)
	} else {
		c.Response().Header.Del("Content-Type")
	}
	c.Set("X-Modfetch-Cache-Hit", "true")

	opts.Logger.WithFields(logging.MirrorFields(requestID, target.String(), true)).
		Info("mirror_hit")
	return c.Send(raw)
}

// cacheKeyFor 把请求路径 + query 解析到上游基地址上，得到缓存键。
func cacheKeyFor(upstream *url.URL, c fiber.Ctx) *url.URL {
	target := *upstream
	target.Path = string(c.Request().URI().Path())
	target.RawQuery = string(c.Request().URI().QueryString())
	target.Fragment = ""
	return &target
}

// ListenAddr 输出 mirror 监听地址。
func ListenAddr(port int) string {
	return fmt.Sprintf(":%d", port)
}
