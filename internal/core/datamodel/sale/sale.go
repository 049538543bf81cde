package sale

import (
	"time"

	"github.com/shopspring/decimal"
)

type Sale struct {
	ID               int64           `gorm:"primaryKey"`
	PharmacyID       int64           `gorm:"column:pharmacy_id;index;not null"`
	PaymentReference string          `gorm:"column:payment_reference;uniqueIndex;not null"`
	TotalAmount      decimal.Decimal `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Currency         string          `gorm:"column:currency;not null"`
	CustomerEmail    *string         `gorm:"column:customer_email"`
	Items            []Item          `gorm:"foreignKey:SaleID"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (Sale) TableName() string {
	return "sales"
}

// Item is one sale line: either a stocked product or a catalog service.
type Item struct {
	ID              int64           `gorm:"primaryKey"`
	SaleID          int64           `gorm:"column:sale_id;index;not null"`
	InventoryItemID *int64          `gorm:"column:inventory_item_id"`
	ServiceID       *int64          `gorm:"column:service_id"`
	Quantity        int             `gorm:"column:quantity;not null"`
	UnitPrice       decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	LineTotal       decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
}

func (Item) TableName() string {
	return "sale_items"
}
