package consultation

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusRequested  Status = "requested"
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
	PaymentFailed   PaymentStatus = "failed"
)

type Urgency string

const (
	UrgencyRoutine   Urgency = "routine"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyEmergency Urgency = "emergency"
)

type Consultation struct {
	ID                int64               `gorm:"primaryKey"`
	PharmacyID        int64               `gorm:"column:pharmacy_id;index;not null"`
	DoctorID          int64               `gorm:"column:doctor_id;index;not null"`
	PatientID         int64               `gorm:"column:patient_id;not null"`
	Fee               decimal.NullDecimal `gorm:"column:fee;type:numeric(12,2)"`
	Status            Status              `gorm:"column:status;not null;default:requested"`
	PaymentStatus     PaymentStatus       `gorm:"column:payment_status;not null;default:pending"`
	UrgencyLevel      Urgency             `gorm:"column:urgency_level;not null;default:routine"`
	QueuePosition     *int                `gorm:"column:queue_position"`
	QueueJoinedAt     *time.Time          `gorm:"column:queue_joined_at"`
	EstimatedWaitTime *int                `gorm:"column:estimated_wait_time"`
	StartedAt         *time.Time          `gorm:"column:started_at"`
	CompletedAt       *time.Time          `gorm:"column:completed_at"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Consultation) TableName() string {
	return "consultations"
}
