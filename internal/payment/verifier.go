package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/frahmantamala/pharmacy-management/internal"
)

// EventChargeSuccess is the only gateway event that confirms a payment.
const EventChargeSuccess = "charge.success"

type WebhookEvent struct {
	Event string      `json:"event"`
	Data  WebhookData `json:"data"`
}

// WebhookData carries the charge fields the service consumes. Amount is in
// minor units and optional.
type WebhookData struct {
	Reference string `json:"reference"`
	Status    string `json:"status,omitempty"`
	Amount    *int64 `json:"amount,omitempty"`
	Currency  string `json:"currency,omitempty"`
}

// Verifier authenticates webhook bodies with HMAC-SHA512 keyed by the
// webhook secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Sign returns the hex signature the gateway sends for body.
func (v *Verifier) Sign(body []byte) string {
	mac := hmac.New(sha512.New, v.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks signature against the exact raw body. An unconfigured secret
// rejects everything.
func (v *Verifier) Verify(body []byte, signature string) error {
	if len(v.secret) == 0 {
		return internal.ErrSignatureInvalid.WithMessage("webhook secret is not configured")
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(got) == 0 {
		return internal.ErrSignatureInvalid
	}
	mac := hmac.New(sha512.New, v.secret)
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return internal.ErrSignatureInvalid
	}
	return nil
}

// ParseEvent decodes an authenticated body. A charge.success event must name
// a reference.
func ParseEvent(body []byte) (*WebhookEvent, error) {
	var evt WebhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, internal.NewValidationError("malformed webhook body", internal.ErrCodeValidationFailed).WithCause(err)
	}
	if evt.Event == EventChargeSuccess && strings.TrimSpace(evt.Data.Reference) == "" {
		return nil, internal.NewValidationFieldError("data.reference", "data.reference is required", internal.ErrCodeValidationFailed)
	}
	return &evt, nil
}
