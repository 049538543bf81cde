package payment_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/pharmacy-management/internal"
	catalogDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/catalog"
	consultationDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/consultation"
	inventoryDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/inventory"
	paymentDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/payment"
	prescriptionDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/prescription"
	"github.com/frahmantamala/pharmacy-management/internal/payment"
)

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

var _ = Describe("Amount resolution", func() {
	var (
		ctx  context.Context
		f    *fixture
		item *inventoryDatamodel.Item
	)

	BeforeEach(func() {
		ctx = context.Background()
		f = newFixture()
		item = &inventoryDatamodel.Item{
			PharmacyID:   1,
			Name:         "Ibuprofen",
			SellingPrice: decimal.RequireFromString("4.25"),
			Quantity:     10,
		}
		Expect(f.inventory.Create(ctx, item)).To(Succeed())
	})

	initiate := func(req payment.InitiateRequest) (*payment.InitiateResponse, error) {
		return f.service.Initiate(ctx, 1, req)
	}

	It("prefers a supplied unit price over the selling price", func() {
		resp, err := initiate(payment.InitiateRequest{
			Purpose: "sale",
			Items:   []payment.ItemRequest{{InventoryItemID: item.ID, Quantity: 3, UnitPrice: decimalPtr("4.00")}},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Amount).To(Equal("12.00"))
	})

	It("sums inventory and service lines of one sale", func() {
		svc := &catalogDatamodel.Service{
			PharmacyID: 1, Name: "Injection", IsActive: true,
			Price: decimal.NewNullDecimal(decimal.RequireFromString("5.00")),
		}
		Expect(f.services.Create(ctx, svc)).To(Succeed())

		resp, err := initiate(payment.InitiateRequest{
			Purpose:      "sale",
			Items:        []payment.ItemRequest{{InventoryItemID: item.ID, Quantity: 2}},
			ServiceItems: []payment.ServiceItemRequest{{ServiceID: svc.ID, Quantity: 1}},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Amount).To(Equal("13.50"))
	})

	It("rejects quantities above the stock on hand", func() {
		_, err := initiate(payment.InitiateRequest{
			Purpose: "sale",
			Items:   []payment.ItemRequest{{InventoryItemID: item.ID, Quantity: 11}},
		})
		Expect(errors.Is(err, internal.ErrInsufficientStock)).To(BeTrue())
	})

	It("checks split lines for one item against a single stock count", func() {
		_, err := initiate(payment.InitiateRequest{
			Purpose: "sale",
			Items: []payment.ItemRequest{
				{InventoryItemID: item.ID, Quantity: 6},
				{InventoryItemID: item.ID, Quantity: 5},
			},
		})
		Expect(errors.Is(err, internal.ErrInsufficientStock)).To(BeTrue())

		var stored int64
		Expect(f.gdb.Model(&paymentDatamodel.PaymentIntent{}).Count(&stored).Error).To(Succeed())
		Expect(stored).To(BeZero())
	})

	It("accepts split lines that fit the stock together", func() {
		resp, err := initiate(payment.InitiateRequest{
			Purpose: "sale",
			Items: []payment.ItemRequest{
				{InventoryItemID: item.ID, Quantity: 6},
				{InventoryItemID: item.ID, Quantity: 4},
			},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Amount).To(Equal("42.50"))
	})

	It("treats another pharmacy's item as missing", func() {
		_, err := f.service.Initiate(ctx, 2, payment.InitiateRequest{
			Purpose: "sale",
			Items:   []payment.ItemRequest{{InventoryItemID: item.ID, Quantity: 1}},
		})
		Expect(errors.Is(err, internal.ErrInventoryNotFound)).To(BeTrue())
		appErr, _ := internal.IsAppError(err)
		Expect(appErr.StatusCode).To(Equal(400))
	})

	It("rejects a zero quantity", func() {
		_, err := initiate(payment.InitiateRequest{
			Purpose: "sale",
			Items:   []payment.ItemRequest{{InventoryItemID: item.ID, Quantity: 0}},
		})
		appErr, ok := internal.IsAppError(err)
		Expect(ok).To(BeTrue())
		Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
	})

	It("rejects a service without a price", func() {
		svc := &catalogDatamodel.Service{PharmacyID: 1, Name: "Counselling", IsActive: true}
		Expect(f.services.Create(ctx, svc)).To(Succeed())

		_, err := initiate(payment.InitiateRequest{Purpose: "service", ServiceID: int64Ptr(svc.ID)})
		Expect(errors.Is(err, internal.ErrPriceNotSet)).To(BeTrue())
	})

	It("rejects a consultation without a fee", func() {
		c := &consultationDatamodel.Consultation{
			PharmacyID: 1, DoctorID: 2, PatientID: 3,
			Status:        consultationDatamodel.StatusRequested,
			PaymentStatus: consultationDatamodel.PaymentPending,
			UrgencyLevel:  consultationDatamodel.UrgencyRoutine,
		}
		Expect(f.consultRepo.Create(ctx, c)).To(Succeed())

		_, err := initiate(payment.InitiateRequest{Purpose: "consultation", ConsultationID: int64Ptr(c.ID)})
		Expect(errors.Is(err, internal.ErrPriceNotSet)).To(BeTrue())
	})

	It("rejects a prescription that is no longer pending", func() {
		rx := &prescriptionDatamodel.Prescription{
			PharmacyID: 1, PatientID: 1, Status: prescriptionDatamodel.StatusCancelled,
			Medications: []prescriptionDatamodel.Medication{{Name: "Ibuprofen"}},
		}
		Expect(f.rxRepo.Create(ctx, rx)).To(Succeed())

		_, err := initiate(payment.InitiateRequest{Purpose: "prescription", PrescriptionID: int64Ptr(rx.ID)})
		Expect(errors.Is(err, internal.ErrInvalidStatus)).To(BeTrue())
	})

	It("rejects a prescription whose matched medication is out of stock", func() {
		Expect(f.gdb.Model(&inventoryDatamodel.Item{}).Where("id = ?", item.ID).Update("quantity", 0).Error).To(Succeed())
		rx := &prescriptionDatamodel.Prescription{
			PharmacyID: 1, PatientID: 1, Status: prescriptionDatamodel.StatusPending,
			Medications: []prescriptionDatamodel.Medication{{Name: "ibuprofen"}},
		}
		Expect(f.rxRepo.Create(ctx, rx)).To(Succeed())

		_, err := initiate(payment.InitiateRequest{Purpose: "prescription", PrescriptionID: int64Ptr(rx.ID)})
		Expect(errors.Is(err, internal.ErrInsufficientStock)).To(BeTrue())
	})

	It("counts medications matching the same item against its stock", func() {
		Expect(f.gdb.Model(&inventoryDatamodel.Item{}).Where("id = ?", item.ID).Update("quantity", 1).Error).To(Succeed())
		rx := &prescriptionDatamodel.Prescription{
			PharmacyID: 1, PatientID: 1, Status: prescriptionDatamodel.StatusPending,
			Medications: []prescriptionDatamodel.Medication{{Name: "Ibuprofen"}, {Name: "IBUPROFEN"}},
		}
		Expect(f.rxRepo.Create(ctx, rx)).To(Succeed())

		_, err := initiate(payment.InitiateRequest{Purpose: "prescription", PrescriptionID: int64Ptr(rx.ID)})
		Expect(errors.Is(err, internal.ErrInsufficientStock)).To(BeTrue())
	})

	It("rejects a prescription with nothing to bill", func() {
		rx := &prescriptionDatamodel.Prescription{PharmacyID: 1, PatientID: 1, Status: prescriptionDatamodel.StatusPending}
		Expect(f.rxRepo.Create(ctx, rx)).To(Succeed())

		_, err := initiate(payment.InitiateRequest{Purpose: "prescription", PrescriptionID: int64Ptr(rx.ID)})
		Expect(errors.Is(err, internal.ErrInvalidAmount)).To(BeTrue())
	})
})
