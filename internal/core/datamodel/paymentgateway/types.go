package paymentgateway

import "errors"

// TransactionStatus is the gateway-side state of a charge.
type TransactionStatus string

const (
	TransactionSuccess   TransactionStatus = "success"
	TransactionFailed    TransactionStatus = "failed"
	TransactionAbandoned TransactionStatus = "abandoned"
	TransactionReversed  TransactionStatus = "reversed"
	TransactionPending   TransactionStatus = "pending"
	TransactionOngoing   TransactionStatus = "ongoing"
)

// IsFailure reports whether the gateway will never settle the charge.
func (s TransactionStatus) IsFailure() bool {
	switch s {
	case TransactionFailed, TransactionAbandoned, TransactionReversed:
		return true
	}
	return false
}

type InitializeRequest struct {
	AmountMinor int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Email       string            `json:"email"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func (r *InitializeRequest) Validate() error {
	if r.AmountMinor <= 0 {
		return errors.New("amount must be greater than 0")
	}
	if r.Currency == "" {
		return errors.New("currency is required")
	}
	if r.Email == "" {
		return errors.New("email is required")
	}
	return nil
}

type InitializeResult struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type VerifyResult struct {
	Status      TransactionStatus `json:"status"`
	Reference   string            `json:"reference"`
	AmountMinor int64             `json:"amount"`
	Currency    string            `json:"currency"`
	PaidAt      string            `json:"paid_at,omitempty"`
}

// Envelope is the gateway's common response wrapper.
type Envelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}
