package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/pharmacy-management/internal/consultation"
	consultationDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/consultation"
)

type ConsultationRepository struct {
	db *gorm.DB
}

func NewConsultationRepository(db *gorm.DB) consultation.RepositoryAPI {
	return &ConsultationRepository{db: db}
}

func (r *ConsultationRepository) WithTx(tx *gorm.DB) consultation.RepositoryAPI {
	return &ConsultationRepository{db: tx}
}

func (r *ConsultationRepository) Create(ctx context.Context, c *consultationDatamodel.Consultation) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *ConsultationRepository) GetByID(ctx context.Context, id int64) (*consultationDatamodel.Consultation, error) {
	var c consultationDatamodel.Consultation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *ConsultationRepository) MarkPaymentPaid(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&consultationDatamodel.Consultation{}).
		Where("id = ?", id).
		Update("payment_status", consultationDatamodel.PaymentPaid).Error
}

func (r *ConsultationRepository) JoinQueue(ctx context.Context, id int64, joinedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&consultationDatamodel.Consultation{}).
		Where("id = ? AND status = ?", id, consultationDatamodel.StatusRequested).
		Updates(map[string]interface{}{
			"status":          consultationDatamodel.StatusQueued,
			"queue_joined_at": joinedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *ConsultationRepository) ListOpenForDoctor(ctx context.Context, doctorID int64) ([]*consultationDatamodel.Consultation, error) {
	var open []*consultationDatamodel.Consultation
	err := r.db.WithContext(ctx).
		Where("doctor_id = ? AND status IN ?", doctorID, []consultationDatamodel.Status{
			consultationDatamodel.StatusQueued,
			consultationDatamodel.StatusInProgress,
		}).
		Order("queue_joined_at ASC, id ASC").
		Find(&open).Error
	return open, err
}

func (r *ConsultationRepository) UpdatePlacement(ctx context.Context, id int64, position, wait *int) error {
	return r.db.WithContext(ctx).
		Model(&consultationDatamodel.Consultation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"queue_position":      position,
			"estimated_wait_time": wait,
		}).Error
}

func (r *ConsultationRepository) UpdateStatus(ctx context.Context, id int64, from, to consultationDatamodel.Status, fields map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"status": to}
	for k, v := range fields {
		updates[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&consultationDatamodel.Consultation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
