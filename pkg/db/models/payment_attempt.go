package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// PaymentAttempt records one provider charge outcome for an order so operators
// can reconcile payments the order system never recorded.
type PaymentAttempt struct {
	ID                   uuid.UUID                  `gorm:"column:id;type:varchar(36);primaryKey"`
	OrderCode            string                     `gorm:"column:order_code;not null"`
	Provider             enums.PaymentMethod        `gorm:"column:provider;not null"`
	ProviderPaymentID    *string                    `gorm:"column:provider_payment_id"`
	Status               string                     `gorm:"column:status;not null"`
	StatusDetail         *string                    `gorm:"column:status_detail"`
	AmountMinor          int64                      `gorm:"column:amount_minor;not null"`
	CurrencyCode         string                     `gorm:"column:currency_code;not null;default:'ARS'"`
	IdempotencyKey       *string                    `gorm:"column:idempotency_key"`
	ReconciliationStatus enums.ReconciliationStatus `gorm:"column:reconciliation_status;not null;default:'not_required'"`
	VendureError         *string                    `gorm:"column:vendure_error"`
	ResolutionNote       *string                    `gorm:"column:resolution_note"`
	ResolvedBy           *string                    `gorm:"column:resolved_by"`
	ResolvedAt           *time.Time                 `gorm:"column:resolved_at"`
	CreatedAt            time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}

func (PaymentAttempt) TableName() string {
	return "payment_attempts"
}
