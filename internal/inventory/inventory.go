package inventory

import (
	"github.com/shopspring/decimal"
)

// SaleLine is one priced line of a sale. Exactly one of InventoryItemID and
// ServiceID is set; service lines carry no stock.
type SaleLine struct {
	InventoryItemID *int64
	ServiceID       *int64
	Quantity        int
	UnitPrice       decimal.Decimal
}

func (l SaleLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func (l SaleLine) Stocked() bool {
	return l.InventoryItemID != nil
}

type SaleRequest struct {
	PharmacyID       int64
	PaymentReference string
	Currency         string
	CustomerEmail    *string
	Lines            []SaleLine
}

// Deduction removes Quantity units of one item as part of a larger unit of
// work.
type Deduction struct {
	PharmacyID      int64
	InventoryItemID int64
	Quantity        int
	Reason          string
	Reference       string
}
