package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/AccessRelay/internal/pkg/jobqueue"
	"github.com/ManuelReschke/AccessRelay/internal/pkg/relay"
)

// Dependencies carries what the controllers need from the composition root.
type Dependencies struct {
	Pipeline    *relay.Pipeline
	Queue       *jobqueue.Queue
	CallTimeout time.Duration
	Checks      map[string]ReadinessCheck
}

var (
	paymentController     *PaymentController
	entitlementController *EntitlementController
	queueController       *QueueController
	mainController        *MainController
)

// Initialize builds the global controller instances used by the route adapters.
func Initialize(deps Dependencies) {
	paymentController = NewPaymentController(deps.Pipeline, deps.CallTimeout)
	entitlementController = NewEntitlementController(deps.Pipeline)
	queueController = NewQueueController(deps.Queue)
	mainController = NewMainController(deps.Pipeline.Ledger(), deps.Checks)
}

// HandlePaymentWebhook - Adapter for gateway notifications
func HandlePaymentWebhook(c *fiber.Ctx) error {
	return paymentController.HandlePaymentWebhook(c)
}

// HandleDeactivateUser - Adapter for ledger removal
func HandleDeactivateUser(c *fiber.Ctx) error {
	return entitlementController.HandleDeactivateUser(c)
}

// HandleListEntitlements - Adapter for ledger listing
func HandleListEntitlements(c *fiber.Ctx) error {
	return entitlementController.HandleListEntitlements(c)
}

// HandleGetEntitlement - Adapter for a single ledger record
func HandleGetEntitlement(c *fiber.Ctx) error {
	return entitlementController.HandleGetEntitlement(c)
}

// HandleQueueStats - Adapter for retry queue monitor
func HandleQueueStats(c *fiber.Ctx) error {
	return queueController.HandleQueueStats(c)
}

func HandleRoot(c *fiber.Ctx) error {
	return mainController.HandleRoot(c)
}

func HandleHealth(c *fiber.Ctx) error {
	return mainController.HandleHealth(c)
}
