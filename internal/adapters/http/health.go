package http

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// readinessDep is one readiness dependency. A configured one that fails makes the
// service unready; an unconfigured one only does when it is required.
type readinessDep struct {
	name     string
	required bool
	check    func(ctx context.Context) error // nil means not configured
}

func readinessDeps(deps *Dependencies) []readinessDep {
	targets := []readinessDep{{name: "database", required: true}}
	if deps.DB != nil {
		targets[0].check = deps.DB.Ping
	}

	nats := readinessDep{name: "nats"}
	if deps.NATS != nil {
		nats.check = func(context.Context) error {
			if !deps.NATS.IsConnected() {
				return errDisconnected
			}
			return nil
		}
	}

	cache := readinessDep{name: "cache"}
	if deps.Cache != nil {
		cache.check = deps.Cache.Ping
	}
	return append(targets, nats, cache)
}

type readinessError string

func (e readinessError) Error() string { return string(e) }

const errDisconnected = readinessError("disconnected")

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// HealthHandler is the liveness check. It also reports how many geocode
// outcomes the process has cached.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()
	version := buildVersion()

	return func(c *fiber.Ctx) error {
		body := fiber.Map{
			"status":  "healthy",
			"uptime":  time.Since(startedAt).Round(time.Second).String(),
			"version": version,
		}
		if deps.Geocode != nil {
			body["geocode_cache_entries"] = deps.Geocode.CacheSize()
		}
		return c.JSON(body)
	}
}

// ReadyHandler checks the database, NATS and the shared cache in parallel.
// Only the database must be configured.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		targets := readinessDeps(deps)
		results := make([]string, len(targets))
		ready := true

		var (
			wg sync.WaitGroup
			mu sync.Mutex
		)
		for i, p := range targets {
			if p.check == nil {
				results[i] = "not configured"
				if p.required {
					mu.Lock()
					ready = false
					mu.Unlock()
				}
				continue
			}
			wg.Add(1)
			go func(i int, p readinessDep) {
				defer wg.Done()
				if err := p.check(ctx); err != nil {
					results[i] = "error: " + err.Error()
					mu.Lock()
					ready = false
					mu.Unlock()
					return
				}
				results[i] = "ok"
			}(i, p)
		}
		wg.Wait()

		checks := make(map[string]string, len(targets))
		for i, p := range targets {
			checks[p.name] = results[i]
		}

		status, code := "ready", fiber.StatusOK
		if !ready {
			status, code = "not ready", fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}
