package payment

import (
	"errors"
	"io"
	"net/http"

	"github.com/frahmantamala/pharmacy-management/internal"
	"github.com/frahmantamala/pharmacy-management/internal/transport"
)

const maxWebhookBytes = 1 << 20

type WebhookHandler struct {
	*transport.BaseHandler
	Service         ServiceAPI
	SignatureHeader string
}

func NewWebhookHandler(baseHandler *transport.BaseHandler, service ServiceAPI, signatureHeader string) *WebhookHandler {
	if signatureHeader == "" {
		signatureHeader = "X-Payment-Signature"
	}
	return &WebhookHandler{
		BaseHandler:     baseHandler,
		Service:         service,
		SignatureHeader: signatureHeader,
	}
}

// HandleWebhook serves POST /payments/webhook. The signature covers the exact
// bytes received, so the body is read raw and never re-encoded.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.HandleError(w, internal.NewValidationError("webhook body too large", internal.ErrCodeValidationFailed))
			return
		}
		h.HandleError(w, internal.NewValidationError("unreadable webhook body", internal.ErrCodeValidationFailed).WithCause(err))
		return
	}

	resp, err := h.Service.HandleWebhook(r.Context(), body, r.Header.Get(h.SignatureHeader))
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}
