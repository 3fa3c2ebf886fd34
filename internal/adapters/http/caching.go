package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// cacheRule maps a path prefix to a default Cache-Control value.
type cacheRule struct {
	prefix string
	value  string
}

// cacheRules are checked in order; the first matching prefix wins.
var cacheRules = []cacheRule{
	{"/api/health", "no-cache"},
	{"/api/ready", "no-cache"},
	{"/metrics", "no-cache"},
	{"/api/transit-route", "public, max-age=86400"}, // line geometry rarely changes
	{"/api/transit-line/parse", "public, max-age=86400"},
	{"/api/transit-line", "public, max-age=3600"},
	{"/api/geocode", "public, max-age=3600"},
	{"/api/listings/nearby", "public, max-age=300"},
	{"/api/listings/", "public, max-age=600"},
	{"/docs", "public, max-age=3600"},
	{"/api/", "private, max-age=0"},
}

// CachingMiddleware sets a default Cache-Control header on GET responses
// when the handler did not set one.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet || c.Response().StatusCode() >= 400 {
			return err
		}
		if existing := c.GetRespHeader(fiber.HeaderCacheControl); existing != "" {
			return err
		}

		if v := cacheControlFor(c.Path()); v != "" {
			c.Set(fiber.HeaderCacheControl, v)
		}
		return err
	}
}

func cacheControlFor(path string) string {
	for _, r := range cacheRules {
		if strings.HasPrefix(path, r.prefix) {
			return r.value
		}
	}
	return ""
}
