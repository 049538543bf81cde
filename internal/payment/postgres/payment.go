package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	paymentDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/payment"
	webhookDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/webhook"
	"github.com/frahmantamala/pharmacy-management/internal/payment"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) payment.RepositoryAPI {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, intent *paymentDatamodel.PaymentIntent) error {
	return r.db.WithContext(ctx).Create(intent).Error
}

func (r *PaymentRepository) GetByReference(ctx context.Context, reference string) (*paymentDatamodel.PaymentIntent, error) {
	var intent paymentDatamodel.PaymentIntent
	err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&intent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

func (r *PaymentRepository) MarkPaid(ctx context.Context, reference string, paidAt time.Time) (bool, error) {
	return r.transition(ctx, reference, paymentDatamodel.StatusPaid, map[string]interface{}{
		"paid_at": paidAt,
	})
}

func (r *PaymentRepository) MarkFailed(ctx context.Context, reference string) (bool, error) {
	return r.transition(ctx, reference, paymentDatamodel.StatusFailed, nil)
}

// transition is a single conditional UPDATE; the row only leaves
// initialized once.
func (r *PaymentRepository) transition(ctx context.Context, reference string, to paymentDatamodel.Status, fields map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range fields {
		updates[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&paymentDatamodel.PaymentIntent{}).
		Where("reference = ? AND status = ?", reference, paymentDatamodel.StatusInitialized).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *PaymentRepository) ClaimFulfillment(ctx context.Context, reference string, attempts int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&paymentDatamodel.PaymentIntent{}).
		Where("reference = ? AND status = ? AND fulfillment_status <> ? AND fulfillment_attempts = ?",
			reference, paymentDatamodel.StatusPaid, paymentDatamodel.FulfillmentFulfilled, attempts).
		Updates(map[string]interface{}{
			"fulfillment_attempts": gorm.Expr("fulfillment_attempts + 1"),
			"updated_at":           time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *PaymentRepository) RecordFulfillment(ctx context.Context, reference string, status paymentDatamodel.FulfillmentStatus, failure *string, fulfilledAt *time.Time) error {
	return r.db.WithContext(ctx).
		Model(&paymentDatamodel.PaymentIntent{}).
		Where("reference = ? AND fulfillment_status <> ?", reference, paymentDatamodel.FulfillmentFulfilled).
		Updates(map[string]interface{}{
			"fulfillment_status": status,
			"fulfillment_error":  failure,
			"fulfilled_at":       fulfilledAt,
			"updated_at":         time.Now(),
		}).Error
}

func (r *PaymentRepository) ListStaleInitialized(ctx context.Context, createdBefore time.Time, limit int) ([]*paymentDatamodel.PaymentIntent, error) {
	var intents []*paymentDatamodel.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", paymentDatamodel.StatusInitialized, createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&intents).Error
	return intents, err
}

func (r *PaymentRepository) ListUnfulfilled(ctx context.Context, paidBefore time.Time, maxAttempts, limit int) ([]*paymentDatamodel.PaymentIntent, error) {
	var intents []*paymentDatamodel.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("status = ? AND fulfillment_attempts < ?", paymentDatamodel.StatusPaid, maxAttempts).
		Where(r.db.Where("fulfillment_status = ?", paymentDatamodel.FulfillmentFailed).
			Or("fulfillment_status = ? AND paid_at < ?", paymentDatamodel.FulfillmentPending, paidBefore)).
		Order("paid_at ASC").
		Limit(limit).
		Find(&intents).Error
	return intents, err
}

type WebhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) payment.WebhookLog {
	return &WebhookEventRepository{db: db}
}

func (r *WebhookEventRepository) Record(ctx context.Context, event *webhookDatamodel.Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}
