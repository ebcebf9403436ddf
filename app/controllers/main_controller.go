package controllers

import (
	"sort"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/AccessRelay/internal/pkg/entitlements"
)

// ReadinessCheck reports whether an external dependency is usable.
type ReadinessCheck func() bool

// MainController serves liveness endpoints.
type MainController struct {
	ledger *entitlements.Ledger
	checks map[string]ReadinessCheck
}

func NewMainController(ledger *entitlements.Ledger, checks map[string]ReadinessCheck) *MainController {
	return &MainController{ledger: ledger, checks: checks}
}

func (mc *MainController) HandleRoot(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "Payment relay backend running"})
}

// HandleHealth always answers 200 while the process serves requests; the
// body says which platform clients are ready.
func (mc *MainController) HandleHealth(c *fiber.Ctx) error {
	names := make([]string, 0, len(mc.checks))
	for name := range mc.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	components := fiber.Map{}
	status := "ok"
	for _, name := range names {
		ready := mc.checks[name]()
		components[name] = ready
		if !ready {
			status = "degraded"
		}
	}

	entitlementCount := 0
	if mc.ledger != nil {
		entitlementCount = mc.ledger.Len()
	}
	return c.JSON(fiber.Map{
		"status":       status,
		"entitlements": entitlementCount,
		"components":   components,
	})
}
