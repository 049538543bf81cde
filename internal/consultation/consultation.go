package consultation

import (
	"time"

	consultationDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/consultation"
)

// QueueEntry is the queue view of one consultation, derived on every read.
type QueueEntry struct {
	ID                int64
	DoctorID          int64
	PatientID         int64
	ConsultationID    int64
	Position          *int
	JoinedAt          *time.Time
	EstimatedWaitTime *int
	Status            EntryStatus
	UrgencyLevel      consultationDatamodel.Urgency
	Priority          int
}

func (e QueueEntry) ToResponse() QueueEntryResponse {
	return QueueEntryResponse{
		ID:                e.ID,
		DoctorID:          e.DoctorID,
		PatientID:         e.PatientID,
		ConsultationID:    e.ConsultationID,
		Position:          e.Position,
		JoinedAt:          e.JoinedAt,
		EstimatedWaitTime: e.EstimatedWaitTime,
		Status:            string(e.Status),
		UrgencyLevel:      string(e.UrgencyLevel),
		Priority:          e.Priority,
	}
}

func entryFor(c *consultationDatamodel.Consultation, p *Placement) QueueEntry {
	status, _ := EntryStatusOf(c.Status)
	entry := QueueEntry{
		ID:             c.ID,
		DoctorID:       c.DoctorID,
		PatientID:      c.PatientID,
		ConsultationID: c.ID,
		JoinedAt:       c.QueueJoinedAt,
		Status:         status,
		UrgencyLevel:   c.UrgencyLevel,
	}
	if p != nil {
		entry.Priority = p.Priority
		entry.Status = p.Status
		if p.Status == EntryPending {
			pos, wait := p.Position, p.EstimatedWaitTime
			entry.Position = &pos
			entry.EstimatedWaitTime = &wait
		}
	}
	return entry
}

// transitions lists the staff-driven status changes.
var transitions = map[consultationDatamodel.Status][]consultationDatamodel.Status{
	consultationDatamodel.StatusRequested:  {consultationDatamodel.StatusCancelled},
	consultationDatamodel.StatusQueued:     {consultationDatamodel.StatusInProgress, consultationDatamodel.StatusCancelled, consultationDatamodel.StatusNoShow},
	consultationDatamodel.StatusInProgress: {consultationDatamodel.StatusCompleted, consultationDatamodel.StatusCancelled},
}

func canTransition(from, to consultationDatamodel.Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
