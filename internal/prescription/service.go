package prescription

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/pharmacy-management/internal"
	inventoryDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/inventory"
	prescriptionDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/prescription"
	"github.com/frahmantamala/pharmacy-management/internal/inventory"
	"github.com/frahmantamala/pharmacy-management/pkg/db"
)

type RepositoryAPI interface {
	WithTx(tx *gorm.DB) RepositoryAPI
	Create(ctx context.Context, p *prescriptionDatamodel.Prescription) error
	GetByID(ctx context.Context, id int64) (*prescriptionDatamodel.Prescription, error)
	// MarkFulfilled moves a pending prescription to fulfilled and reports
	// whether this call made the transition.
	MarkFulfilled(ctx context.Context, id int64, reference string, at time.Time) (bool, error)
	MarkMedicationsDispensed(ctx context.Context, prescriptionID int64, medicationIDs []int64, at time.Time) error
}

type StockDeductor interface {
	DeductInTx(ctx context.Context, tx *gorm.DB, deductions ...inventory.Deduction) error
}

type Service struct {
	repo   RepositoryAPI
	stock  StockDeductor
	tx     db.TxRunner
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryAPI, stock StockDeductor, tx db.TxRunner, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		stock:  stock,
		tx:     tx,
		logger: logger,
		now:    time.Now,
	}
}

// GetPrescription loads a prescription with its medications, scoped to
// pharmacyID when it is non-zero.
func (s *Service) GetPrescription(ctx context.Context, pharmacyID, id int64) (*prescriptionDatamodel.Prescription, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load prescription %d: %w", id, err)
	}
	if p == nil || (pharmacyID != 0 && p.PharmacyID != pharmacyID) {
		return nil, internal.ErrPrescriptionNotFound
	}
	return p, nil
}

// Dispense marks the prescription fulfilled and removes one unit of stock per
// matched medication, all in one transaction. Repeating it for the same
// payment reference is a no-op.
func (s *Service) Dispense(ctx context.Context, req DispenseRequest) error {
	now := s.now()
	alreadyDone := false

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		p, err := repo.GetByID(ctx, req.PrescriptionID)
		if err != nil {
			return err
		}
		if p == nil {
			return internal.ErrPrescriptionNotFound
		}

		moved, err := repo.MarkFulfilled(ctx, req.PrescriptionID, req.PaymentReference, now)
		if err != nil {
			return fmt.Errorf("mark prescription fulfilled: %w", err)
		}
		if !moved {
			if p.Status == prescriptionDatamodel.StatusFulfilled && p.PaymentReference != nil && *p.PaymentReference == req.PaymentReference {
				alreadyDone = true
				return nil
			}
			return internal.ErrInvalidStatus.WithMessage(fmt.Sprintf("prescription %d is %s", p.ID, p.Status))
		}

		pharmacyID := req.PharmacyID
		if pharmacyID == 0 {
			pharmacyID = p.PharmacyID
		}

		deductions := make([]inventory.Deduction, 0, len(req.Medications))
		medicationIDs := make([]int64, 0, len(req.Medications))
		for _, med := range req.Medications {
			medicationIDs = append(medicationIDs, med.MedicationID)
			if med.InventoryItemID == nil {
				continue
			}
			deductions = append(deductions, inventory.Deduction{
				PharmacyID:      pharmacyID,
				InventoryItemID: *med.InventoryItemID,
				Quantity:        1,
				Reason:          inventoryDatamodel.MovementReasonDispense,
				Reference:       req.PaymentReference,
			})
		}

		if err := s.stock.DeductInTx(ctx, tx, deductions...); err != nil {
			return err
		}
		return repo.MarkMedicationsDispensed(ctx, req.PrescriptionID, medicationIDs, now)
	})
	if err != nil {
		return err
	}

	if alreadyDone {
		s.logger.Info("prescription already dispensed", "prescription_id", req.PrescriptionID, "payment_reference", req.PaymentReference)
		return nil
	}
	s.logger.Info("prescription dispensed",
		"prescription_id", req.PrescriptionID,
		"payment_reference", req.PaymentReference,
		"medications", len(req.Medications))
	return nil
}
