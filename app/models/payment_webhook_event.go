package models

import "time"

const (
	WebhookProviderNowPayments = "nowpayments"

	WebhookOutcomeAcknowledged = "acknowledged"
	WebhookOutcomeIgnored      = "ignored"
	WebhookOutcomeDuplicate    = "duplicate"
	WebhookOutcomeRejected     = "rejected"
	WebhookOutcomeFailed       = "failed"
)

// PaymentWebhookEvent is an audit row for one inbound gateway delivery.
// Entitlements are never reconstructed from this table.
type PaymentWebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Provider        string     `gorm:"type:varchar(20);not null;index" json:"provider"`
	PaymentID       string     `gorm:"type:varchar(191);not null;default:'';index" json:"payment_id"`
	PaymentStatus   string     `gorm:"type:varchar(64);not null;default:'';index" json:"payment_status"`
	SubjectID       string     `gorm:"type:varchar(320);not null;default:''" json:"subject_id"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	SignatureValid  bool       `gorm:"default:false;index" json:"signature_valid"`
	Outcome         string     `gorm:"type:varchar(20);not null;default:''" json:"outcome"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
