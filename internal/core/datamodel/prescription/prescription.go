package prescription

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusFulfilled Status = "fulfilled"
	StatusCancelled Status = "cancelled"
)

type Prescription struct {
	ID               int64        `gorm:"primaryKey"`
	PharmacyID       int64        `gorm:"column:pharmacy_id;index;not null"`
	PatientID        int64        `gorm:"column:patient_id"`
	Status           Status       `gorm:"column:status;not null;default:pending"`
	PaymentReference *string      `gorm:"column:payment_reference"`
	FulfilledAt      *time.Time   `gorm:"column:fulfilled_at"`
	Medications      []Medication `gorm:"foreignKey:PrescriptionID"`
	CreatedAt        time.Time    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time    `gorm:"column:updated_at;autoUpdateTime"`
}

func (Prescription) TableName() string {
	return "prescriptions"
}

type Medication struct {
	ID             int64      `gorm:"primaryKey"`
	PrescriptionID int64      `gorm:"column:prescription_id;index;not null"`
	Name           string     `gorm:"column:name;not null"`
	Dosage         string     `gorm:"column:dosage"`
	DispensedAt    *time.Time `gorm:"column:dispensed_at"`
}

func (Medication) TableName() string {
	return "prescription_medications"
}
