package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/AccessRelay/internal/pkg/middleware"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Config carries route-level settings resolved at startup.
type Config struct {
	AdminKey        middleware.AdminKey
	MetricsUser     string
	MetricsPassword string
	// LimiterStorage is nil when counters should stay in memory.
	LimiterStorage fiber.Storage
	WebhookLimit   int
	WebhookWindow  time.Duration
}

func InstallRouter(app *fiber.App, cfg Config) {
	setup(app, NewHttpRouter(cfg), NewAdminRouter(cfg))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
