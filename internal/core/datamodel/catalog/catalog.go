package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Service is a billable clinic service. Price stays null until the pharmacy
// sets one.
type Service struct {
	ID          int64               `gorm:"primaryKey"`
	PharmacyID  int64               `gorm:"column:pharmacy_id;index;not null"`
	Name        string              `gorm:"column:name;not null"`
	Description string              `gorm:"column:description"`
	Price       decimal.NullDecimal `gorm:"column:price;type:numeric(12,2)"`
	IsActive    bool                `gorm:"column:is_active;default:true"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Service) TableName() string {
	return "clinic_services"
}
