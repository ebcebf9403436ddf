package payments

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/ManuelReschke/AccessRelay/app/models"
)

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	PaymentID      string
	PaymentStatus  string
	SubjectID      string
	PayloadJSON    string
	SignatureValid bool
}

// AuditLog records inbound deliveries. Implementations must be safe for
// concurrent use and must return once ctx is done.
type AuditLog interface {
	RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (uint, error)
	MarkWebhookProcessed(ctx context.Context, webhookEventID uint, outcome string, processingErr error) error
}

// Service writes the webhook audit trail.
type Service struct {
	repo Repository
}

// NewService creates an audit service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates an audit service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// RecordWebhookEvent stores a delivery and returns its row id.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (uint, error) {
	event := &models.PaymentWebhookEvent{
		Provider:       models.WebhookProviderNowPayments,
		PaymentID:      strings.TrimSpace(in.PaymentID),
		PaymentStatus:  strings.TrimSpace(in.PaymentStatus),
		SubjectID:      strings.TrimSpace(in.SubjectID),
		PayloadJSON:    in.PayloadJSON,
		SignatureValid: in.SignatureValid,
	}
	if err := s.repo.CreateWebhookEvent(ctx, event); err != nil {
		return 0, err
	}
	return event.ID, nil
}

// MarkWebhookProcessed stores the outcome and an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, outcome string, processingErr error) error {
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(ctx, webhookEventID, outcome, errMsg)
}
