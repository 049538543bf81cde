package payment

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	errors "github.com/frahmantamala/pharmacy-management/internal"
	"github.com/frahmantamala/pharmacy-management/internal/consultation"
	"github.com/frahmantamala/pharmacy-management/internal/core/common/validation"
	paymentDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/payment"
)

type ItemRequest struct {
	InventoryItemID int64            `json:"inventoryItemId"`
	Quantity        int              `json:"quantity"`
	UnitPrice       *decimal.Decimal `json:"unitPrice,omitempty"`
}

type ServiceItemRequest struct {
	ServiceID int64            `json:"serviceId"`
	Quantity  int              `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unitPrice,omitempty"`
}

// InitiateRequest is the body of POST /payments/initiate.
type InitiateRequest struct {
	Purpose        string               `json:"purpose"`
	Items          []ItemRequest        `json:"items,omitempty"`
	ServiceItems   []ServiceItemRequest `json:"serviceItems,omitempty"`
	PrescriptionID *int64               `json:"prescriptionId,omitempty"`
	ServiceID      *int64               `json:"serviceId,omitempty"`
	ConsultationID *int64               `json:"consultationId,omitempty"`
	CustomerEmail  *string              `json:"customerEmail,omitempty"`
	CustomerPhone  *string              `json:"customerPhone,omitempty"`
}

func (r *InitiateRequest) Validate() error {
	validator := validation.NewValidator()

	validator.Field("purpose", r.Purpose).Required().OneOf(errors.ErrCodeInvalidPurpose,
		string(paymentDatamodel.PurposeSale),
		string(paymentDatamodel.PurposePrescription),
		string(paymentDatamodel.PurposeService),
		string(paymentDatamodel.PurposeConsultation))

	switch paymentDatamodel.Purpose(r.Purpose) {
	case paymentDatamodel.PurposeSale:
		validator.Field("items", len(r.Items)+len(r.ServiceItems)).MinInt(1, errors.ErrCodeValidationFailed)
		for i, item := range r.Items {
			field := fmt.Sprintf("items[%d]", i)
			validator.Field(field+".inventoryItemId", item.InventoryItemID).Required()
			validator.Field(field+".unitPrice", item.UnitPrice).Positive(errors.ErrCodeInvalidAmount)
			if appErr := validation.ValidateQuantity(field+".quantity", item.Quantity); appErr != nil {
				validator.Field(field+".quantity", item.Quantity).Custom(func(interface{}) *errors.AppError { return appErr })
			}
		}
		for i, item := range r.ServiceItems {
			field := fmt.Sprintf("serviceItems[%d]", i)
			validator.Field(field+".serviceId", item.ServiceID).Required()
			validator.Field(field+".unitPrice", item.UnitPrice).Positive(errors.ErrCodeInvalidAmount)
			if appErr := validation.ValidateQuantity(field+".quantity", item.Quantity); appErr != nil {
				validator.Field(field+".quantity", item.Quantity).Custom(func(interface{}) *errors.AppError { return appErr })
			}
		}
	case paymentDatamodel.PurposePrescription:
		validator.Field("prescriptionId", r.PrescriptionID).Required()
	case paymentDatamodel.PurposeService:
		validator.Field("serviceId", r.ServiceID).Required()
	case paymentDatamodel.PurposeConsultation:
		validator.Field("consultationId", r.ConsultationID).Required()
	}

	if r.CustomerEmail != nil && *r.CustomerEmail != "" {
		if appErr := validation.ValidateEmail("customerEmail", *r.CustomerEmail); appErr != nil {
			validator.Field("customerEmail", *r.CustomerEmail).Custom(func(interface{}) *errors.AppError { return appErr })
		}
	}
	validator.Field("customerPhone", deref(r.CustomerPhone)).MaxLength(32)

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

type InitiateResponse struct {
	AuthorizationURL string `json:"authorizationUrl"`
	Reference        string `json:"reference"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
}

type TransactionView struct {
	Status    string `json:"status"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Reference string `json:"reference"`
}

// VerifyResponse is the body of GET /payments/verify/{reference}.
type VerifyResponse struct {
	Success     bool                             `json:"success"`
	Paid        bool                             `json:"paid"`
	Transaction TransactionView                  `json:"transaction"`
	QueueEntry  *consultation.QueueEntryResponse `json:"queueEntry,omitempty"`
}

type WebhookResponse struct {
	OK bool `json:"ok"`
}

// FulfillmentView reports the bookkeeping of a paid intent.
type FulfillmentView struct {
	Reference string     `json:"reference"`
	Purpose   string     `json:"purpose"`
	Status    string     `json:"status"`
	Attempts  int        `json:"attempts"`
	Error     *string    `json:"error,omitempty"`
	Fulfilled *time.Time `json:"fulfilledAt,omitempty"`
}

func ToFulfillmentView(intent *paymentDatamodel.PaymentIntent) FulfillmentView {
	return FulfillmentView{
		Reference: intent.Reference,
		Purpose:   string(intent.Purpose),
		Status:    string(intent.FulfillmentStatus),
		Attempts:  intent.FulfillmentAttempts,
		Error:     intent.FulfillmentError,
		Fulfilled: intent.FulfilledAt,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
