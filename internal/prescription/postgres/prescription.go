package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	prescriptionDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/prescription"
	"github.com/frahmantamala/pharmacy-management/internal/prescription"
)

type PrescriptionRepository struct {
	db *gorm.DB
}

func NewPrescriptionRepository(db *gorm.DB) prescription.RepositoryAPI {
	return &PrescriptionRepository{db: db}
}

func (r *PrescriptionRepository) WithTx(tx *gorm.DB) prescription.RepositoryAPI {
	return &PrescriptionRepository{db: tx}
}

func (r *PrescriptionRepository) Create(ctx context.Context, p *prescriptionDatamodel.Prescription) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PrescriptionRepository) GetByID(ctx context.Context, id int64) (*prescriptionDatamodel.Prescription, error) {
	var p prescriptionDatamodel.Prescription
	err := r.db.WithContext(ctx).
		Preload("Medications", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("id = ?", id).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *PrescriptionRepository) MarkFulfilled(ctx context.Context, id int64, reference string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&prescriptionDatamodel.Prescription{}).
		Where("id = ? AND status = ?", id, prescriptionDatamodel.StatusPending).
		Updates(map[string]interface{}{
			"status":            prescriptionDatamodel.StatusFulfilled,
			"payment_reference": reference,
			"fulfilled_at":      at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *PrescriptionRepository) MarkMedicationsDispensed(ctx context.Context, prescriptionID int64, medicationIDs []int64, at time.Time) error {
	if len(medicationIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&prescriptionDatamodel.Medication{}).
		Where("prescription_id = ? AND id IN ?", prescriptionID, medicationIDs).
		Update("dispensed_at", at).Error
}
