package consultation

import (
	"sort"
	"time"

	consultationDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/consultation"
)

// DefaultAverageMinutes is the assumed length of one consultation.
const DefaultAverageMinutes = 15

type EntryStatus string

const (
	EntryPending   EntryStatus = "pending"
	EntryActive    EntryStatus = "active"
	EntryCompleted EntryStatus = "completed"
	EntryCancelled EntryStatus = "cancelled"
	EntrySkipped   EntryStatus = "skipped"
)

// EntryStatusOf maps a consultation status onto the queue vocabulary. A
// consultation that never joined the queue has no entry status.
func EntryStatusOf(s consultationDatamodel.Status) (EntryStatus, bool) {
	switch s {
	case consultationDatamodel.StatusQueued:
		return EntryPending, true
	case consultationDatamodel.StatusInProgress:
		return EntryActive, true
	case consultationDatamodel.StatusCompleted:
		return EntryCompleted, true
	case consultationDatamodel.StatusCancelled:
		return EntryCancelled, true
	case consultationDatamodel.StatusNoShow:
		return EntrySkipped, true
	}
	return "", false
}

// Snapshot is one doctor's open consultations as read at a single moment.
type Snapshot struct {
	DoctorID       int64
	Queued         []Waiting
	Active         []Waiting
	AverageMinutes int
}

type Waiting struct {
	ConsultationID int64
	JoinedAt       time.Time
}

// Placement is the computed queue slot of one consultation.
type Placement struct {
	ConsultationID    int64
	Position          int
	EstimatedWaitTime int
	Priority          int
	Status            EntryStatus
}

// EstimateWait is the expected wait in minutes given the queued
// consultations ahead and the ones already in progress for the doctor.
func EstimateWait(ahead, active, averageMinutes int) int {
	if averageMinutes <= 0 {
		averageMinutes = DefaultAverageMinutes
	}
	return (ahead + active) * averageMinutes
}

// Rank orders the queued consultations by join time, ties broken by id, and
// assigns 1-based positions. In-progress consultations get no position but
// count towards every wait and rank above all queued ones in priority.
func Rank(s Snapshot) []Placement {
	queued := append([]Waiting(nil), s.Queued...)
	sort.SliceStable(queued, func(i, j int) bool {
		return before(queued[i], queued[j])
	})
	active := append([]Waiting(nil), s.Active...)
	sort.SliceStable(active, func(i, j int) bool {
		return before(active[i], active[j])
	})

	n := len(queued)
	out := make([]Placement, 0, n+len(active))
	for i, a := range active {
		out = append(out, Placement{
			ConsultationID: a.ConsultationID,
			Priority:       n + len(active) - i,
			Status:         EntryActive,
		})
	}
	for i, w := range queued {
		out = append(out, Placement{
			ConsultationID:    w.ConsultationID,
			Position:          i + 1,
			EstimatedWaitTime: EstimateWait(i, len(active), s.AverageMinutes),
			Priority:          n - i,
			Status:            EntryPending,
		})
	}
	return out
}

func before(a, b Waiting) bool {
	if !a.JoinedAt.Equal(b.JoinedAt) {
		return a.JoinedAt.Before(b.JoinedAt)
	}
	return a.ConsultationID < b.ConsultationID
}
