package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

type Item struct {
	ID           int64           `gorm:"primaryKey"`
	PharmacyID   int64           `gorm:"column:pharmacy_id;index;not null"`
	Name         string          `gorm:"column:name;not null"`
	SKU          string          `gorm:"column:sku"`
	SellingPrice decimal.Decimal `gorm:"column:selling_price;type:numeric(12,2);not null"`
	Quantity     int             `gorm:"column:quantity;not null;default:0"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Item) TableName() string {
	return "inventory_items"
}

const (
	MovementReasonSale     = "sale"
	MovementReasonDispense = "dispense"
)

// StockMovement is the audit row written for every stock mutation.
type StockMovement struct {
	ID              int64     `gorm:"primaryKey"`
	PharmacyID      int64     `gorm:"column:pharmacy_id;not null"`
	InventoryItemID int64     `gorm:"column:inventory_item_id;index;not null"`
	Change          int       `gorm:"column:quantity_change;not null"`
	Reason          string    `gorm:"column:reason;not null"`
	Reference       string    `gorm:"column:reference"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (StockMovement) TableName() string {
	return "stock_movements"
}
