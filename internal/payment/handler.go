package payment

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/pharmacy-management/internal"
	"github.com/frahmantamala/pharmacy-management/internal/transport"
)

type ServiceAPI interface {
	Initiate(ctx context.Context, pharmacyID int64, req InitiateRequest) (*InitiateResponse, error)
	Verify(ctx context.Context, reference string) (*VerifyResponse, error)
	RetryFulfillment(ctx context.Context, pharmacyID int64, reference, source string) (*FulfillmentView, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) (*WebhookResponse, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

// Initiate serves POST /payments/initiate.
func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	pharmacyID, ok := internal.PharmacyIDFromContext(r.Context())
	if !ok {
		h.HandleError(w, internal.NewForbiddenError("no pharmacy bound to this account", internal.ErrCodeForbidden))
		return
	}

	var req InitiateRequest
	if err := h.DecodeJSON(w, r, &req); err != nil {
		h.HandleError(w, err)
		return
	}

	resp, err := h.Service.Initiate(r.Context(), pharmacyID, req)
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, resp)
}

// Verify serves GET /payments/verify/{reference}.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	if reference == "" {
		h.HandleError(w, internal.NewValidationFieldError("reference", "reference is required", internal.ErrCodeValidationFailed))
		return
	}

	resp, err := h.Service.Verify(r.Context(), reference)
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

// Fulfill serves POST /payments/{reference}/fulfill, the operator path for
// paid intents left unfulfilled.
func (h *Handler) Fulfill(w http.ResponseWriter, r *http.Request) {
	pharmacyID, ok := internal.PharmacyIDFromContext(r.Context())
	if !ok {
		h.HandleError(w, internal.NewForbiddenError("no pharmacy bound to this account", internal.ErrCodeForbidden))
		return
	}

	view, err := h.Service.RetryFulfillment(r.Context(), pharmacyID, chi.URLParam(r, "reference"), SourceManual)
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, view)
}
