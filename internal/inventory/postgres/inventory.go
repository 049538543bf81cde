package postgres

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	inventoryDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/inventory"
	saleDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/sale"
	"github.com/frahmantamala/pharmacy-management/internal/inventory"
)

type InventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) inventory.RepositoryAPI {
	return &InventoryRepository{db: db}
}

func (r *InventoryRepository) WithTx(tx *gorm.DB) inventory.RepositoryAPI {
	return &InventoryRepository{db: tx}
}

func (r *InventoryRepository) Create(ctx context.Context, item *inventoryDatamodel.Item) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *InventoryRepository) GetItem(ctx context.Context, id int64) (*inventoryDatamodel.Item, error) {
	var item inventoryDatamodel.Item
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *InventoryRepository) FindByName(ctx context.Context, pharmacyID int64, name string) (*inventoryDatamodel.Item, error) {
	var item inventoryDatamodel.Item
	err := r.db.WithContext(ctx).
		Where("pharmacy_id = ? AND LOWER(name) = ?", pharmacyID, strings.ToLower(strings.TrimSpace(name))).
		Order("id ASC").
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *InventoryRepository) DecrementStock(ctx context.Context, pharmacyID, itemID int64, quantity int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&inventoryDatamodel.Item{}).
		Where("id = ? AND pharmacy_id = ? AND quantity >= ?", itemID, pharmacyID, quantity).
		Update("quantity", gorm.Expr("quantity - ?", quantity))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *InventoryRepository) RecordMovement(ctx context.Context, movement *inventoryDatamodel.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *InventoryRepository) GetSaleByReference(ctx context.Context, reference string) (*saleDatamodel.Sale, error) {
	var sale saleDatamodel.Sale
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("payment_reference = ?", reference).
		First(&sale).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sale, nil
}

// CreateSale inserts the sale and its lines in one call.
func (r *InventoryRepository) CreateSale(ctx context.Context, sale *saleDatamodel.Sale) error {
	return r.db.WithContext(ctx).Create(sale).Error
}
