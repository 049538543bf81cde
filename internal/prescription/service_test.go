package prescription_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/frahmantamala/pharmacy-management/internal"
	inventoryDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/inventory"
	prescriptionDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/prescription"
	"github.com/frahmantamala/pharmacy-management/internal/core/testdb"
	"github.com/frahmantamala/pharmacy-management/internal/inventory"
	inventoryPostgres "github.com/frahmantamala/pharmacy-management/internal/inventory/postgres"
	"github.com/frahmantamala/pharmacy-management/internal/prescription"
	prescriptionPostgres "github.com/frahmantamala/pharmacy-management/internal/prescription/postgres"
	"github.com/frahmantamala/pharmacy-management/pkg/db"
)

func TestPrescription(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Prescription Suite")
}

var _ = Describe("Prescription Service", func() {
	var (
		ctx     context.Context
		gdb     *gorm.DB
		service *prescription.Service
		rx      *prescriptionDatamodel.Prescription
		item    *inventoryDatamodel.Item
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		gdb, err = testdb.Open()
		Expect(err).NotTo(HaveOccurred())

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		runner := db.NewTxRunner(gdb)
		invRepo := inventoryPostgres.NewInventoryRepository(gdb)
		invService := inventory.NewService(invRepo, runner, logger)
		rxRepo := prescriptionPostgres.NewPrescriptionRepository(gdb)
		service = prescription.NewService(rxRepo, invService, runner, logger)

		item = &inventoryDatamodel.Item{
			PharmacyID: 1, Name: "Metformin", SellingPrice: decimal.RequireFromString("7.50"), Quantity: 4,
		}
		Expect(invRepo.Create(ctx, item)).To(Succeed())

		rx = &prescriptionDatamodel.Prescription{
			PharmacyID: 1,
			PatientID:  42,
			Status:     prescriptionDatamodel.StatusPending,
			Medications: []prescriptionDatamodel.Medication{
				{Name: "Metformin", Dosage: "500mg"},
				{Name: "Rare compound", Dosage: "1 tab"},
			},
		}
		Expect(rxRepo.Create(ctx, rx)).To(Succeed())
	})

	request := func() prescription.DispenseRequest {
		return prescription.DispenseRequest{
			PrescriptionID:   rx.ID,
			PharmacyID:       1,
			PaymentReference: "ref-rx-1",
			Medications: []prescription.DispensedMedication{
				{MedicationID: rx.Medications[0].ID, InventoryItemID: &item.ID},
				{MedicationID: rx.Medications[1].ID},
			},
		}
	}

	stock := func() int {
		var it inventoryDatamodel.Item
		Expect(gdb.First(&it, item.ID).Error).To(Succeed())
		return it.Quantity
	}

	It("scopes lookups to the pharmacy", func() {
		_, err := service.GetPrescription(ctx, 2, rx.ID)
		Expect(errors.Is(err, internal.ErrPrescriptionNotFound)).To(BeTrue())

		got, err := service.GetPrescription(ctx, 1, rx.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Medications).To(HaveLen(2))
	})

	It("dispenses one unit per matched medication and fulfils the prescription", func() {
		Expect(service.Dispense(ctx, request())).To(Succeed())
		Expect(stock()).To(Equal(3))

		got, err := service.GetPrescription(ctx, 1, rx.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Status).To(Equal(prescriptionDatamodel.StatusFulfilled))
		Expect(*got.PaymentReference).To(Equal("ref-rx-1"))
		for _, m := range got.Medications {
			Expect(m.DispensedAt).NotTo(BeNil())
		}
	})

	It("is a no-op when repeated for the same payment", func() {
		Expect(service.Dispense(ctx, request())).To(Succeed())
		Expect(service.Dispense(ctx, request())).To(Succeed())
		Expect(stock()).To(Equal(3))
	})

	It("refuses a prescription fulfilled by another payment", func() {
		Expect(service.Dispense(ctx, request())).To(Succeed())
		req := request()
		req.PaymentReference = "ref-rx-2"
		err := service.Dispense(ctx, req)
		Expect(errors.Is(err, internal.ErrInvalidStatus)).To(BeTrue())
	})

	It("leaves the prescription pending when stock is short", func() {
		Expect(gdb.Model(&inventoryDatamodel.Item{}).Where("id = ?", item.ID).Update("quantity", 0).Error).To(Succeed())

		err := service.Dispense(ctx, request())
		Expect(errors.Is(err, internal.ErrInsufficientStock)).To(BeTrue())

		got, err := service.GetPrescription(ctx, 1, rx.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Status).To(Equal(prescriptionDatamodel.StatusPending))
	})
})
