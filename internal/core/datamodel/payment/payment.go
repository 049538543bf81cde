package payment

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Purpose string

const (
	PurposeSale         Purpose = "sale"
	PurposePrescription Purpose = "prescription"
	PurposeService      Purpose = "service"
	PurposeConsultation Purpose = "consultation"
)

func (p Purpose) Valid() bool {
	switch p {
	case PurposeSale, PurposePrescription, PurposeService, PurposeConsultation:
		return true
	}
	return false
}

type Status string

const (
	StatusInitialized Status = "initialized"
	StatusPaid        Status = "paid"
	StatusFailed      Status = "failed"
)

type FulfillmentStatus string

const (
	FulfillmentPending   FulfillmentStatus = "pending"
	FulfillmentFulfilled FulfillmentStatus = "fulfilled"
	FulfillmentFailed    FulfillmentStatus = "failed"
)

// PaymentIntent is one attempt to collect money for a purpose. Rows are
// never deleted; status only moves initialized -> paid or initialized -> failed.
type PaymentIntent struct {
	ID                  int64             `gorm:"primaryKey"`
	Reference           string            `gorm:"column:reference;uniqueIndex;not null"`
	PharmacyID          int64             `gorm:"column:pharmacy_id;index"`
	Purpose             Purpose           `gorm:"column:purpose;not null"`
	Amount              decimal.Decimal   `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency            string            `gorm:"column:currency;not null"`
	Status              Status            `gorm:"column:status;not null;default:initialized"`
	Payload             json.RawMessage   `gorm:"column:payload"`
	CustomerEmail       *string           `gorm:"column:customer_email"`
	CustomerPhone       *string           `gorm:"column:customer_phone"`
	AuthorizationURL    string            `gorm:"column:authorization_url"`
	PaidAt              *time.Time        `gorm:"column:paid_at"`
	FulfillmentStatus   FulfillmentStatus `gorm:"column:fulfillment_status;not null;default:pending"`
	FulfillmentError    *string           `gorm:"column:fulfillment_error"`
	FulfillmentAttempts int               `gorm:"column:fulfillment_attempts;not null;default:0"`
	FulfilledAt         *time.Time        `gorm:"column:fulfilled_at"`
	CreatedAt           time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (PaymentIntent) TableName() string {
	return "payment_intents"
}

func (p *PaymentIntent) IsPaid() bool {
	return p.Status == StatusPaid
}

func (p *PaymentIntent) IsTerminal() bool {
	return p.Status == StatusPaid || p.Status == StatusFailed
}
