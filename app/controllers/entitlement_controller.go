package controllers

import (
	"errors"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/AccessRelay/internal/pkg/entitlements"
	"github.com/ManuelReschke/AccessRelay/internal/pkg/relay"
)

// EntitlementController serves the operator view of the ledger.
type EntitlementController struct {
	pipeline *relay.Pipeline
}

func NewEntitlementController(pipeline *relay.Pipeline) *EntitlementController {
	return &EntitlementController{pipeline: pipeline}
}

// HandleDeactivateUser removes one subject from the ledger.
func (ec *EntitlementController) HandleDeactivateUser(c *fiber.Ctx) error {
	subject, err := subjectParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_subject"})
	}

	if err := ec.pipeline.Deactivate(c.UserContext(), subject); err != nil {
		if errors.Is(err, entitlements.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "detail": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_error", "detail": err.Error()})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "removed"})
}

// HandleListEntitlements returns every tracked subject.
func (ec *EntitlementController) HandleListEntitlements(c *fiber.Ctx) error {
	records := ec.pipeline.Ledger().List()
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"count":        len(records),
		"entitlements": records,
	})
}

// HandleGetEntitlement returns one subject's record.
func (ec *EntitlementController) HandleGetEntitlement(c *fiber.Ctx) error {
	subject, err := subjectParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_subject"})
	}
	rec, ok := ec.pipeline.Ledger().Get(subject)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "detail": "User not found"})
	}
	return c.Status(fiber.StatusOK).JSON(rec)
}

// subjectParam decodes the path segment; emails often arrive percent-encoded.
func subjectParam(c *fiber.Ctx) (string, error) {
	return url.PathUnescape(c.Params("subject"))
}
