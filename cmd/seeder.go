package cmd

import (
	"fmt"
	"log"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/frahmantamala/pharmacy-management/internal/auth"
	authPostgres "github.com/frahmantamala/pharmacy-management/internal/auth/postgres"
	catalogDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/catalog"
	consultationDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/consultation"
	inventoryDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/inventory"
	prescriptionDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/prescription"
	userDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/user"
	"github.com/frahmantamala/pharmacy-management/pkg/db"
)

const seedPharmacyID int64 = 1

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample data for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		handles, err := db.Connect(ctx, db.PoolConfig{DSN: cfg.Database.GetDSN()})
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer handles.Close()
		gdb := handles.Gorm.WithContext(ctx)

		if clearData {
			if err := clearSeedData(gdb); err != nil {
				log.Fatalf("failed to clear data: %v", err)
			}
			fmt.Println("Cleared existing data")
		}

		hash, err := auth.HashPassword("password", cfg.Security.BCryptCost)
		if err != nil {
			log.Fatalf("failed to hash password: %v", err)
		}

		staff := []struct {
			Email       string
			Name        string
			Permissions []string
		}{
			{"admin@pharmacy.test", "Pharmacy Admin", auth.AllPermissions},
			{"cashier@pharmacy.test", "Front Desk", []string{auth.PermissionProcessPayments}},
			{"nurse@pharmacy.test", "Triage Nurse", []string{auth.PermissionManageQueue}},
		}
		for _, s := range staff {
			user := userDatamodel.User{Email: s.Email}
			err := gdb.Where("email = ?", s.Email).
				Attrs(userDatamodel.User{PharmacyID: seedPharmacyID, Name: s.Name, PasswordHash: hash, IsActive: true}).
				FirstOrCreate(&user).Error
			if err != nil {
				log.Fatalf("failed to seed user %s: %v", s.Email, err)
			}
			if err := authPostgres.GrantPermissions(ctx, handles.Gorm, user.ID, s.Permissions...); err != nil {
				log.Fatalf("failed to grant permissions to %s: %v", s.Email, err)
			}
			fmt.Printf("Seeded user %s with %v\n", s.Email, s.Permissions)
		}

		items := []inventoryDatamodel.Item{
			{PharmacyID: seedPharmacyID, Name: "Paracetamol 500mg", SKU: "PCM-500", SellingPrice: decimal.RequireFromString("2.50"), Quantity: 200},
			{PharmacyID: seedPharmacyID, Name: "Amoxicillin 250mg", SKU: "AMX-250", SellingPrice: decimal.RequireFromString("8.00"), Quantity: 80},
			{PharmacyID: seedPharmacyID, Name: "Vitamin C 1000mg", SKU: "VTC-1000", SellingPrice: decimal.RequireFromString("5.75"), Quantity: 150},
		}
		for i := range items {
			if err := gdb.Where("pharmacy_id = ? AND sku = ?", items[i].PharmacyID, items[i].SKU).FirstOrCreate(&items[i]).Error; err != nil {
				log.Fatalf("failed to seed inventory item %s: %v", items[i].SKU, err)
			}
		}
		fmt.Printf("Seeded %d inventory items\n", len(items))

		services := []catalogDatamodel.Service{
			{PharmacyID: seedPharmacyID, Name: "Blood pressure check", Description: "Sphygmomanometer reading", Price: decimal.NewNullDecimal(decimal.RequireFromString("15.00")), IsActive: true},
			{PharmacyID: seedPharmacyID, Name: "Vaccination", Description: "Administered by a pharmacist", Price: decimal.NewNullDecimal(decimal.RequireFromString("30.00")), IsActive: true},
			// unpriced; initiating for it is rejected until a price is set
			{PharmacyID: seedPharmacyID, Name: "Medication review", Description: "Price on request", IsActive: true},
		}
		for i := range services {
			if err := gdb.Where("pharmacy_id = ? AND name = ?", services[i].PharmacyID, services[i].Name).FirstOrCreate(&services[i]).Error; err != nil {
				log.Fatalf("failed to seed service %s: %v", services[i].Name, err)
			}
		}
		fmt.Printf("Seeded %d clinic services\n", len(services))

		var pending int64
		if err := gdb.Model(&prescriptionDatamodel.Prescription{}).Where("pharmacy_id = ? AND status = ?", seedPharmacyID, prescriptionDatamodel.StatusPending).Count(&pending).Error; err != nil {
			log.Fatalf("failed to count prescriptions: %v", err)
		}
		if pending == 0 {
			rx := prescriptionDatamodel.Prescription{
				PharmacyID: seedPharmacyID,
				PatientID:  1001,
				Status:     prescriptionDatamodel.StatusPending,
				Medications: []prescriptionDatamodel.Medication{
					{Name: "Amoxicillin 250mg", Dosage: "1 capsule every 8 hours"},
					{Name: "Ibuprofen 200mg", Dosage: "as needed"},
				},
			}
			if err := gdb.Create(&rx).Error; err != nil {
				log.Fatalf("failed to seed prescription: %v", err)
			}
			fmt.Printf("Seeded prescription %d\n", rx.ID)
		}

		var requested int64
		if err := gdb.Model(&consultationDatamodel.Consultation{}).Where("pharmacy_id = ? AND status = ?", seedPharmacyID, consultationDatamodel.StatusRequested).Count(&requested).Error; err != nil {
			log.Fatalf("failed to count consultations: %v", err)
		}
		if requested == 0 {
			consultations := []consultationDatamodel.Consultation{
				{PharmacyID: seedPharmacyID, DoctorID: 1, PatientID: 1001, Fee: decimal.NewNullDecimal(decimal.RequireFromString("50.00")), UrgencyLevel: consultationDatamodel.UrgencyRoutine},
				{PharmacyID: seedPharmacyID, DoctorID: 1, PatientID: 1002, Fee: decimal.NewNullDecimal(decimal.RequireFromString("50.00")), UrgencyLevel: consultationDatamodel.UrgencyUrgent},
			}
			if err := gdb.Create(&consultations).Error; err != nil {
				log.Fatalf("failed to seed consultations: %v", err)
			}
			fmt.Printf("Seeded %d consultations\n", len(consultations))
		}

		fmt.Println("Sample data seeded successfully")
	},
}

// clearSeedData removes every domain row in dependency order.
func clearSeedData(gdb *gorm.DB) error {
	tables := []string{
		"webhook_events",
		"payment_intents",
		"sale_items",
		"sales",
		"stock_movements",
		"prescription_medications",
		"prescriptions",
		"consultations",
		"clinic_services",
		"inventory_items",
		"user_permissions",
		"users",
	}
	return gdb.Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			if err := tx.Exec(fmt.Sprintf("DELETE FROM %s", table)).Error; err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}
