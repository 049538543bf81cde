package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/frahmantamala/pharmacy-management/internal"
	inventoryDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/inventory"
	saleDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/sale"
	"github.com/frahmantamala/pharmacy-management/pkg/db"
)

type RepositoryAPI interface {
	WithTx(tx *gorm.DB) RepositoryAPI
	Create(ctx context.Context, item *inventoryDatamodel.Item) error
	GetItem(ctx context.Context, id int64) (*inventoryDatamodel.Item, error)
	FindByName(ctx context.Context, pharmacyID int64, name string) (*inventoryDatamodel.Item, error)
	// DecrementStock lowers stock only when enough is on hand and reports
	// whether the row was updated.
	DecrementStock(ctx context.Context, pharmacyID, itemID int64, quantity int) (bool, error)
	RecordMovement(ctx context.Context, movement *inventoryDatamodel.StockMovement) error
	GetSaleByReference(ctx context.Context, reference string) (*saleDatamodel.Sale, error)
	CreateSale(ctx context.Context, sale *saleDatamodel.Sale) error
}

type Service struct {
	repo   RepositoryAPI
	tx     db.TxRunner
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, tx db.TxRunner, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		tx:     tx,
		logger: logger,
	}
}

// GetItem loads an item of pharmacyID.
func (s *Service) GetItem(ctx context.Context, pharmacyID, id int64) (*inventoryDatamodel.Item, error) {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load inventory item %d: %w", id, err)
	}
	if item == nil || item.PharmacyID != pharmacyID {
		return nil, internal.ErrInventoryNotFound.WithMessage(fmt.Sprintf("inventory item %d not found", id))
	}
	return item, nil
}

// MatchByName finds the pharmacy's item whose name equals name ignoring
// case. It returns nil when nothing matches.
func (s *Service) MatchByName(ctx context.Context, pharmacyID int64, name string) (*inventoryDatamodel.Item, error) {
	item, err := s.repo.FindByName(ctx, pharmacyID, name)
	if err != nil {
		return nil, fmt.Errorf("match inventory item %q: %w", name, err)
	}
	return item, nil
}

// CreateSale records a paid sale in one transaction: stock for every stocked
// line is decremented under a guard, the sale with its lines is inserted and
// every decrement leaves a movement row. A sale that already exists for the
// payment reference is returned unchanged.
func (s *Service) CreateSale(ctx context.Context, req SaleRequest) (*saleDatamodel.Sale, error) {
	if req.PaymentReference == "" {
		return nil, internal.NewValidationError("payment reference is required", internal.ErrCodeValidationFailed)
	}
	if len(req.Lines) == 0 {
		return nil, internal.NewValidationError("sale has no lines", internal.ErrCodeValidationFailed)
	}

	var result *saleDatamodel.Sale
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.GetSaleByReference(ctx, req.PaymentReference)
		if err != nil {
			return err
		}
		if existing != nil {
			result = existing
			return nil
		}

		sale := &saleDatamodel.Sale{
			PharmacyID:       req.PharmacyID,
			PaymentReference: req.PaymentReference,
			Currency:         req.Currency,
			CustomerEmail:    req.CustomerEmail,
			TotalAmount:      decimal.Zero,
		}
		for _, line := range req.Lines {
			if line.Stocked() {
				if err := deduct(ctx, repo, Deduction{
					PharmacyID:      req.PharmacyID,
					InventoryItemID: *line.InventoryItemID,
					Quantity:        line.Quantity,
					Reason:          inventoryDatamodel.MovementReasonSale,
					Reference:       req.PaymentReference,
				}); err != nil {
					return err
				}
			}
			total := line.Total()
			sale.TotalAmount = sale.TotalAmount.Add(total)
			sale.Items = append(sale.Items, saleDatamodel.Item{
				InventoryItemID: line.InventoryItemID,
				ServiceID:       line.ServiceID,
				Quantity:        line.Quantity,
				UnitPrice:       line.UnitPrice,
				LineTotal:       total,
			})
		}

		if err := repo.CreateSale(ctx, sale); err != nil {
			return fmt.Errorf("insert sale: %w", err)
		}
		result = sale
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("sale recorded",
		"sale_id", result.ID,
		"payment_reference", req.PaymentReference,
		"total", result.TotalAmount.StringFixed(2))
	return result, nil
}

// DeductInTx applies deductions inside a transaction owned by the caller.
func (s *Service) DeductInTx(ctx context.Context, tx *gorm.DB, deductions ...Deduction) error {
	repo := s.repo.WithTx(tx)
	for _, d := range deductions {
		if err := deduct(ctx, repo, d); err != nil {
			return err
		}
	}
	return nil
}

func deduct(ctx context.Context, repo RepositoryAPI, d Deduction) error {
	if d.Quantity <= 0 {
		return internal.NewValidationError("quantity must be positive", internal.ErrCodeInvalidQuantity)
	}
	ok, err := repo.DecrementStock(ctx, d.PharmacyID, d.InventoryItemID, d.Quantity)
	if err != nil {
		return fmt.Errorf("decrement stock of item %d: %w", d.InventoryItemID, err)
	}
	if !ok {
		return internal.ErrInsufficientStock.WithMessage(fmt.Sprintf("insufficient stock for inventory item %d", d.InventoryItemID))
	}
	return repo.RecordMovement(ctx, &inventoryDatamodel.StockMovement{
		PharmacyID:      d.PharmacyID,
		InventoryItemID: d.InventoryItemID,
		Change:          -d.Quantity,
		Reason:          d.Reason,
		Reference:       d.Reference,
	})
}
