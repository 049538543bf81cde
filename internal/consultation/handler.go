package consultation

import (
	"context"
	"net/http"

	"github.com/frahmantamala/pharmacy-management/internal"
	"github.com/frahmantamala/pharmacy-management/internal/core/common/validation"
	consultationDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/consultation"
	"github.com/frahmantamala/pharmacy-management/internal/transport"
)

type ServiceAPI interface {
	QueueStatus(ctx context.Context, pharmacyID, consultationID int64) (*QueueEntry, error)
	DoctorQueue(ctx context.Context, doctorID int64) ([]QueueEntry, error)
	Transition(ctx context.Context, pharmacyID, consultationID int64, to consultationDatamodel.Status) (*QueueEntry, error)
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

// GetQueueStatus serves GET /consultations/{id}/queue.
func (h *Handler) GetQueueStatus(w http.ResponseWriter, r *http.Request) {
	id, err := h.PathInt64(r, "id")
	if err != nil {
		h.HandleError(w, err)
		return
	}
	pharmacyID, _ := internal.PharmacyIDFromContext(r.Context())

	entry, err := h.Service.QueueStatus(r.Context(), pharmacyID, id)
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, entry.ToResponse())
}

// GetDoctorQueue serves GET /doctors/{doctorId}/queue.
func (h *Handler) GetDoctorQueue(w http.ResponseWriter, r *http.Request) {
	doctorID, err := h.PathInt64(r, "doctorId")
	if err != nil {
		h.HandleError(w, err)
		return
	}

	entries, err := h.Service.DoctorQueue(r.Context(), doctorID)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	resp := QueueResponse{DoctorID: doctorID, Entries: make([]QueueEntryResponse, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, e.ToResponse())
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

// UpdateStatus serves PATCH /consultations/{id}/status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := h.PathInt64(r, "id")
	if err != nil {
		h.HandleError(w, err)
		return
	}

	var req UpdateStatusRequest
	if err := h.DecodeJSON(w, r, &req); err != nil {
		h.HandleError(w, err)
		return
	}

	v := validation.NewValidator()
	v.Field("status", req.Status).
		Required().
		OneOf(internal.ErrCodeInvalidStatus,
			string(consultationDatamodel.StatusInProgress),
			string(consultationDatamodel.StatusCompleted),
			string(consultationDatamodel.StatusCancelled),
			string(consultationDatamodel.StatusNoShow))
	if verr := v.Validate(); verr != nil {
		h.HandleError(w, verr)
		return
	}

	pharmacyID, _ := internal.PharmacyIDFromContext(r.Context())
	entry, err := h.Service.Transition(r.Context(), pharmacyID, id, consultationDatamodel.Status(req.Status))
	if err != nil {
		h.HandleError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, entry.ToResponse())
}
