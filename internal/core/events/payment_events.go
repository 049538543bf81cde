package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventTypePaymentPaid              = "payment.paid"
	EventTypePaymentFailed            = "payment.failed"
	EventTypePaymentFulfillmentFailed = "payment.fulfillment_failed"
)

type PaymentPaidEvent struct {
	BaseEvent
	Reference string          `json:"reference"`
	Purpose   string          `json:"purpose"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Source    string          `json:"source"`
}

func NewPaymentPaidEvent(reference, purpose string, amount decimal.Decimal, currency, source string) *PaymentPaidEvent {
	return &PaymentPaidEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentPaid,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"reference": reference,
				"purpose":   purpose,
				"amount":    amount.StringFixed(2),
				"currency":  currency,
				"source":    source,
			},
		},
		Reference: reference,
		Purpose:   purpose,
		Amount:    amount,
		Currency:  currency,
		Source:    source,
	}
}

type PaymentFailedEvent struct {
	BaseEvent
	Reference     string `json:"reference"`
	GatewayStatus string `json:"gateway_status"`
}

func NewPaymentFailedEvent(reference, gatewayStatus string) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentFailed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"reference":      reference,
				"gateway_status": gatewayStatus,
			},
		},
		Reference:     reference,
		GatewayStatus: gatewayStatus,
	}
}

// FulfillmentFailedEvent flags a paid intent whose business side effect did
// not complete and needs operator attention.
type FulfillmentFailedEvent struct {
	BaseEvent
	Reference     string `json:"reference"`
	Purpose       string `json:"purpose"`
	FailureReason string `json:"failure_reason"`
	Attempts      int    `json:"attempts"`
}

func NewFulfillmentFailedEvent(reference, purpose, failureReason string, attempts int) *FulfillmentFailedEvent {
	return &FulfillmentFailedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentFulfillmentFailed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"reference":      reference,
				"purpose":        purpose,
				"failure_reason": failureReason,
				"attempts":       attempts,
			},
		},
		Reference:     reference,
		Purpose:       purpose,
		FailureReason: failureReason,
		Attempts:      attempts,
	}
}
