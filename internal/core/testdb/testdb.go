// Package testdb opens throwaway SQLite databases carrying the full schema
// for repository and service tests.
package testdb

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	catalogDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/catalog"
	consultationDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/consultation"
	inventoryDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/inventory"
	paymentDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/payment"
	prescriptionDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/prescription"
	saleDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/sale"
	userDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/user"
	webhookDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/webhook"
)

// Open returns an in-memory database with every table migrated. The pool is
// pinned to one connection because each SQLite memory connection is its own
// database.
func Open() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&paymentDatamodel.PaymentIntent{},
		&inventoryDatamodel.Item{},
		&inventoryDatamodel.StockMovement{},
		&saleDatamodel.Sale{},
		&saleDatamodel.Item{},
		&prescriptionDatamodel.Prescription{},
		&prescriptionDatamodel.Medication{},
		&catalogDatamodel.Service{},
		&consultationDatamodel.Consultation{},
		&webhookDatamodel.Event{},
		&userDatamodel.User{},
		&userDatamodel.Permission{},
		&userDatamodel.UserPermission{},
	)
	if err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return db, nil
}
