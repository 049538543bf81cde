package catalog

import (
	"context"
	"net/http"

	"github.com/frahmantamala/pharmacy-management/internal"
	"github.com/frahmantamala/pharmacy-management/internal/transport"
)

type ServiceAPI interface {
	ListServices(ctx context.Context, pharmacyID int64) ([]ServiceResponse, error)
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

func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	pharmacyID, ok := internal.PharmacyIDFromContext(r.Context())
	if !ok {
		h.HandleError(w, internal.ErrForbidden)
		return
	}

	services, err := h.Service.ListServices(r.Context(), pharmacyID)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ServicesResponse{Services: services})
}
