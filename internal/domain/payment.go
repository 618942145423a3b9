package domain

import (
	"time"

	"gorm.io/datatypes"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

const ProviderPayPlus = "payplus"

// PaymentRecord is one ledger row per provider event, unique on
// (provider, external_transaction_id). Rows are never updated.
type PaymentRecord struct {
	ID                    string         `json:"id" gorm:"primaryKey;type:char(36)"`
	OrderID               string         `json:"order_id" gorm:"type:char(36);not null;index"`
	Provider              string         `json:"provider" gorm:"type:varchar(32);not null;uniqueIndex:idx_payments_external"`
	Status                PaymentStatus  `json:"status" gorm:"type:varchar(16);not null"`
	ExternalID            *string        `json:"external_id" gorm:"type:varchar(128)"`
	ExternalTransactionID string         `json:"external_transaction_id" gorm:"type:varchar(128);not null;uniqueIndex:idx_payments_external"`
	Amount                int64          `json:"amount" gorm:"not null"`
	Currency              string         `json:"currency" gorm:"type:char(3);not null"`
	Installments          int            `json:"installments" gorm:"not null;default:1"`
	CardLastFour          *string        `json:"card_last_four" gorm:"type:varchar(4)"`
	CardBrand             *string        `json:"card_brand" gorm:"type:varchar(32)"`
	ErrorCode             *string        `json:"error_code" gorm:"type:varchar(64)"`
	ErrorMessage          *string        `json:"error_message" gorm:"type:text"`
	WebhookPayload        datatypes.JSON `json:"webhook_payload"`
	CompletedAt           *time.Time     `json:"completed_at"`
	CreatedAt             time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

func (PaymentRecord) TableName() string { return "payments" }
