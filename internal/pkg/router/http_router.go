package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuelReschke/AccessRelay/app/controllers"
	"github.com/ManuelReschke/AccessRelay/internal/pkg/ratelimit"
)

const (
	defaultWebhookLimit  = 120
	defaultWebhookWindow = time.Minute
)

type HttpRouter struct {
	cfg Config
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/", controllers.HandleRoot)
	app.Get("/health", controllers.HandleHealth)

	limit := h.cfg.WebhookLimit
	if limit <= 0 {
		limit = defaultWebhookLimit
	}
	window := h.cfg.WebhookWindow
	if window <= 0 {
		window = defaultWebhookWindow
	}
	// Gateway notifications (no CSRF, signature-verified in the pipeline)
	app.Post("/payment-webhook", ratelimit.New(h.cfg.LimiterStorage, limit, window), controllers.HandlePaymentWebhook)

	h.registerMetrics(app)
}

func (h HttpRouter) registerMetrics(app *fiber.App) {
	if h.cfg.MetricsUser == "" || h.cfg.MetricsPassword == "" {
		log.Info("[Router] METRICS_USER/METRICS_PASSWORD not set, /metrics disabled")
		return
	}
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			h.cfg.MetricsUser: h.cfg.MetricsPassword,
		},
	}), adaptor.HTTPHandler(promhttp.Handler()))
}

func NewHttpRouter(cfg Config) *HttpRouter {
	return &HttpRouter{cfg: cfg}
}
