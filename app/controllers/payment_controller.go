package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/AccessRelay/internal/pkg/access"
	"github.com/ManuelReschke/AccessRelay/internal/pkg/payments"
	"github.com/ManuelReschke/AccessRelay/internal/pkg/relay"
)

// PaymentController receives payment gateway notifications.
type PaymentController struct {
	pipeline    *relay.Pipeline
	callTimeout time.Duration
}

func NewPaymentController(pipeline *relay.Pipeline, callTimeout time.Duration) *PaymentController {
	if callTimeout <= 0 {
		callTimeout = access.DefaultCallTimeout
	}
	return &PaymentController{pipeline: pipeline, callTimeout: callTimeout}
}

// HandlePaymentWebhook runs the delivery through the pipeline and maps its
// outcome onto the gateway-facing response.
func (pc *PaymentController) HandlePaymentWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get(payments.SignatureHeader))

	// every grant and sink call is bounded individually; this caps the whole delivery
	ctx, cancel := context.WithTimeout(context.Background(), 3*pc.callTimeout)
	defer cancel()

	res := pc.pipeline.Handle(ctx, relay.Delivery{Body: rawBody, Signature: signature})

	switch res.Outcome {
	case relay.OutcomeAcknowledged, relay.OutcomePending, relay.OutcomeDuplicate:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": res.Status})
	case relay.OutcomeUnauthorized:
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	case relay.OutcomeRejected:
		return validationResponse(c, res.Err)
	default:
		detail := "internal processing error"
		var ie *relay.InternalError
		if errors.As(res.Err, &ie) {
			detail = ie.Error()
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_error", "detail": detail})
	}
}

func validationResponse(c *fiber.Ctx, err error) error {
	var ve *payments.ValidationError
	if !errors.As(err, &ve) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload", "detail": errString(err)})
	}
	if ve.Malformed {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed_payload", "detail": ve.Error()})
	}
	return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
		"error":  "invalid_payload",
		"detail": ve.Error(),
		"fields": ve.Fields,
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
