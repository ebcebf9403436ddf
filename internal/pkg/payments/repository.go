package payments

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/AccessRelay/app/models"
)

// Repository persists webhook audit rows.
type Repository interface {
	CreateWebhookEvent(ctx context.Context, event *models.PaymentWebhookEvent) error
	MarkWebhookProcessed(ctx context.Context, id uint, outcome, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateWebhookEvent(ctx context.Context, event *models.PaymentWebhookEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *gormRepository) MarkWebhookProcessed(ctx context.Context, id uint, outcome, processingError string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.PaymentWebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"outcome":          outcome,
			"processed_at":     &now,
			"processing_error": processingError,
		}).Error
}
