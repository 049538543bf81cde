package consultation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/pharmacy-management/internal"
	consultationDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/consultation"
	"github.com/frahmantamala/pharmacy-management/pkg/db"
)

type RepositoryAPI interface {
	WithTx(tx *gorm.DB) RepositoryAPI
	Create(ctx context.Context, c *consultationDatamodel.Consultation) error
	GetByID(ctx context.Context, id int64) (*consultationDatamodel.Consultation, error)
	MarkPaymentPaid(ctx context.Context, id int64) error
	// JoinQueue moves a requested consultation to queued and reports whether
	// this call made the transition.
	JoinQueue(ctx context.Context, id int64, joinedAt time.Time) (bool, error)
	ListOpenForDoctor(ctx context.Context, doctorID int64) ([]*consultationDatamodel.Consultation, error)
	UpdatePlacement(ctx context.Context, id int64, position, wait *int) error
	UpdateStatus(ctx context.Context, id int64, from, to consultationDatamodel.Status, fields map[string]interface{}) (bool, error)
}

// DepthRecorder receives the queue depth after every recomputation.
type DepthRecorder interface {
	SetQueueDepth(doctorID string, depth int)
}

type Service struct {
	repo           RepositoryAPI
	tx             db.TxRunner
	logger         *slog.Logger
	averageMinutes int
	depth          DepthRecorder
	now            func() time.Time
}

func NewService(repo RepositoryAPI, tx db.TxRunner, logger *slog.Logger, averageMinutes int, depth DepthRecorder) *Service {
	if averageMinutes <= 0 {
		averageMinutes = DefaultAverageMinutes
	}
	return &Service{
		repo:           repo,
		tx:             tx,
		logger:         logger,
		averageMinutes: averageMinutes,
		depth:          depth,
		now:            time.Now,
	}
}

// GetConsultation loads a consultation, scoped to pharmacyID when non-zero.
func (s *Service) GetConsultation(ctx context.Context, pharmacyID, id int64) (*consultationDatamodel.Consultation, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load consultation %d: %w", id, err)
	}
	if c == nil || (pharmacyID != 0 && c.PharmacyID != pharmacyID) {
		return nil, internal.ErrConsultationNotFound
	}
	return c, nil
}

// Admit records the payment of a consultation and puts it at the back of
// its doctor's queue. Admitting twice keeps the original join time.
func (s *Service) Admit(ctx context.Context, consultationID int64) (*QueueEntry, error) {
	var joined bool
	var c *consultationDatamodel.Consultation

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		c, err = repo.GetByID(ctx, consultationID)
		if err != nil {
			return err
		}
		if c == nil {
			return internal.ErrConsultationNotFound
		}
		if err := repo.MarkPaymentPaid(ctx, consultationID); err != nil {
			return fmt.Errorf("mark consultation paid: %w", err)
		}
		joined, err = repo.JoinQueue(ctx, consultationID, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	if !joined {
		switch c.Status {
		case consultationDatamodel.StatusRequested, consultationDatamodel.StatusQueued,
			consultationDatamodel.StatusInProgress, consultationDatamodel.StatusCompleted:
			// requested here means a concurrent admission won the transition
			s.logger.Info("consultation already admitted", "consultation_id", consultationID, "status", c.Status)
		default:
			return nil, internal.ErrInvalidStatus.WithMessage(fmt.Sprintf("consultation %d is %s and cannot join the queue", consultationID, c.Status))
		}
	} else {
		s.logger.Info("consultation joined queue", "consultation_id", consultationID, "doctor_id", c.DoctorID)
	}

	return s.QueueStatus(ctx, 0, consultationID)
}

// QueueStatus recomputes the doctor's queue and returns the consultation's
// entry.
func (s *Service) QueueStatus(ctx context.Context, pharmacyID, consultationID int64) (*QueueEntry, error) {
	c, err := s.GetConsultation(ctx, pharmacyID, consultationID)
	if err != nil {
		return nil, err
	}
	entries, err := s.Recompute(ctx, c.DoctorID)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].ConsultationID == consultationID {
			return &entries[i], nil
		}
	}

	// no longer in the queue; report its terminal view
	entry := entryFor(c, nil)
	return &entry, nil
}

// DoctorQueue returns the open queue of a doctor in service order.
func (s *Service) DoctorQueue(ctx context.Context, doctorID int64) ([]QueueEntry, error) {
	return s.Recompute(ctx, doctorID)
}

// Recompute ranks the doctor's open consultations from one snapshot and
// writes the resulting positions and waits back.
func (s *Service) Recompute(ctx context.Context, doctorID int64) ([]QueueEntry, error) {
	var entries []QueueEntry

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		open, err := repo.ListOpenForDoctor(ctx, doctorID)
		if err != nil {
			return fmt.Errorf("list open consultations: %w", err)
		}

		snap := Snapshot{DoctorID: doctorID, AverageMinutes: s.averageMinutes}
		byID := make(map[int64]*consultationDatamodel.Consultation, len(open))
		for _, c := range open {
			byID[c.ID] = c
			w := Waiting{ConsultationID: c.ID, JoinedAt: joinedAt(c)}
			if c.Status == consultationDatamodel.StatusInProgress {
				snap.Active = append(snap.Active, w)
			} else {
				snap.Queued = append(snap.Queued, w)
			}
		}

		placements := Rank(snap)
		entries = make([]QueueEntry, 0, len(placements))
		for i := range placements {
			p := placements[i]
			c := byID[p.ConsultationID]
			entry := entryFor(c, &p)
			if !samePlacement(c, entry) {
				if err := repo.UpdatePlacement(ctx, c.ID, entry.Position, entry.EstimatedWaitTime); err != nil {
					return fmt.Errorf("update placement of %d: %w", c.ID, err)
				}
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.depth != nil {
		queued := 0
		for _, e := range entries {
			if e.Status == EntryPending {
				queued++
			}
		}
		s.depth.SetQueueDepth(strconv.FormatInt(doctorID, 10), queued)
	}
	return entries, nil
}

// Transition applies a staff status change and recomputes the queue.
func (s *Service) Transition(ctx context.Context, pharmacyID, consultationID int64, to consultationDatamodel.Status) (*QueueEntry, error) {
	c, err := s.GetConsultation(ctx, pharmacyID, consultationID)
	if err != nil {
		return nil, err
	}
	if !canTransition(c.Status, to) {
		return nil, internal.ErrInvalidStatus.WithMessage(fmt.Sprintf("cannot move consultation from %s to %s", c.Status, to))
	}

	now := s.now()
	fields := map[string]interface{}{}
	switch to {
	case consultationDatamodel.StatusInProgress:
		fields["started_at"] = now
	case consultationDatamodel.StatusCompleted:
		fields["completed_at"] = now
	}
	if to != consultationDatamodel.StatusQueued {
		fields["queue_position"] = nil
		fields["estimated_wait_time"] = nil
	}

	moved, err := s.repo.UpdateStatus(ctx, consultationID, c.Status, to, fields)
	if err != nil {
		return nil, fmt.Errorf("update consultation status: %w", err)
	}
	if !moved {
		return nil, internal.ErrInvalidStatus.WithMessage("consultation status changed concurrently")
	}
	s.logger.Info("consultation status changed", "consultation_id", consultationID, "from", c.Status, "to", to)

	return s.QueueStatus(ctx, pharmacyID, consultationID)
}

func joinedAt(c *consultationDatamodel.Consultation) time.Time {
	if c.QueueJoinedAt != nil {
		return *c.QueueJoinedAt
	}
	return c.CreatedAt
}

func samePlacement(c *consultationDatamodel.Consultation, e QueueEntry) bool {
	return equalIntPtr(c.QueuePosition, e.Position) && equalIntPtr(c.EstimatedWaitTime, e.EstimatedWaitTime)
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
