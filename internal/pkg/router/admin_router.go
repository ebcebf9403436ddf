package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/AccessRelay/app/controllers"
	"github.com/ManuelReschke/AccessRelay/internal/pkg/middleware"
)

type AdminRouter struct {
	cfg Config
}

func (a AdminRouter) InstallRouter(app *fiber.App) {
	requireKey := middleware.RequireAdminKey(a.cfg.AdminKey)

	app.Post("/deactivate-user/:subject", requireKey, controllers.HandleDeactivateUser)

	entitlements := app.Group("/entitlements", requireKey)
	entitlements.Get("/", controllers.HandleListEntitlements)
	entitlements.Get("/:subject", controllers.HandleGetEntitlement)

	admin := app.Group("/admin", requireKey)
	admin.Get("/queue", controllers.HandleQueueStats)
}

func NewAdminRouter(cfg Config) *AdminRouter {
	return &AdminRouter{cfg: cfg}
}
