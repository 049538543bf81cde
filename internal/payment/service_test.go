package payment_test

import (
	"context"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/pharmacy-management/internal"
	catalogDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/catalog"
	consultationDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/consultation"
	inventoryDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/inventory"
	paymentDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/payment"
	gatewaytypes "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/paymentgateway"
	prescriptionDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/prescription"
	saleDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/sale"
	webhookDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/webhook"
	"github.com/frahmantamala/pharmacy-management/internal/core/events"
	"github.com/frahmantamala/pharmacy-management/internal/payment"
)

func int64Ptr(v int64) *int64 { return &v }

var _ = Describe("Payment Service", func() {
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
			Name:         "Paracetamol 500mg",
			SellingPrice: decimal.RequireFromString("10.00"),
			Quantity:     5,
		}
		Expect(f.inventory.Create(ctx, item)).To(Succeed())
	})

	stockOf := func(id int64) int {
		var it inventoryDatamodel.Item
		Expect(f.gdb.First(&it, id).Error).To(Succeed())
		return it.Quantity
	}

	intentOf := func(reference string) *paymentDatamodel.PaymentIntent {
		intent, err := f.repo.GetByReference(ctx, reference)
		Expect(err).NotTo(HaveOccurred())
		Expect(intent).NotTo(BeNil())
		return intent
	}

	initiateSale := func(qty int) *payment.InitiateResponse {
		resp, err := f.service.Initiate(ctx, 1, payment.InitiateRequest{
			Purpose: "sale",
			Items:   []payment.ItemRequest{{InventoryItemID: item.ID, Quantity: qty}},
		})
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	Describe("Initiate", func() {
		It("charges the resolved amount in minor units and stores an initialized intent", func() {
			resp := initiateSale(2)

			Expect(resp.Amount).To(Equal("20.00"))
			Expect(resp.Currency).To(Equal("NGN"))
			Expect(resp.AuthorizationURL).To(ContainSubstring(resp.Reference))
			Expect(f.gateway.initialized).To(HaveLen(1))
			Expect(f.gateway.initialized[0].AmountMinor).To(Equal(int64(2000)))
			Expect(f.gateway.initialized[0].Email).To(Equal("billing@pharmacy.test"))
			Expect(f.gateway.initialized[0].Metadata).To(HaveKeyWithValue("purpose", "sale"))

			intent := intentOf(resp.Reference)
			Expect(intent.Status).To(Equal(paymentDatamodel.StatusInitialized))
			Expect(intent.Amount.Equal(decimal.RequireFromString("20.00"))).To(BeTrue())
			Expect(intent.PharmacyID).To(Equal(int64(1)))
			Expect(intent.FulfillmentStatus).To(Equal(paymentDatamodel.FulfillmentPending))

			decoded, err := payment.DecodePayload(intent.Purpose, intent.Payload)
			Expect(err).NotTo(HaveOccurred())
			sale, ok := decoded.(payment.SalePayload)
			Expect(ok).To(BeTrue())
			Expect(sale.Items).To(HaveLen(1))
			Expect(sale.Items[0].UnitPrice.Equal(decimal.RequireFromString("10.00"))).To(BeTrue())
		})

		It("refuses split lines that together exceed the stock before charging", func() {
			_, err := f.service.Initiate(ctx, 1, payment.InitiateRequest{
				Purpose: "sale",
				Items: []payment.ItemRequest{
					{InventoryItemID: item.ID, Quantity: 3},
					{InventoryItemID: item.ID, Quantity: 3},
				},
			})
			Expect(errors.Is(err, internal.ErrInsufficientStock)).To(BeTrue())
			Expect(f.gateway.initialized).To(BeEmpty())

			var intents int64
			Expect(f.gdb.Model(&paymentDatamodel.PaymentIntent{}).Count(&intents).Error).To(Succeed())
			Expect(intents).To(BeZero())
		})

		It("stores nothing when the gateway is unavailable", func() {
			f.gateway.initErr = internal.ErrGatewayUnavailable

			_, err := f.service.Initiate(ctx, 1, payment.InitiateRequest{
				Purpose: "sale",
				Items:   []payment.ItemRequest{{InventoryItemID: item.ID, Quantity: 1}},
			})
			Expect(errors.Is(err, internal.ErrGatewayUnavailable)).To(BeTrue())

			var count int64
			Expect(f.gdb.Model(&paymentDatamodel.PaymentIntent{}).Count(&count).Error).To(Succeed())
			Expect(count).To(BeZero())
		})

		It("rejects a request without its purpose fields before pricing", func() {
			_, err := f.service.Initiate(ctx, 1, payment.InitiateRequest{Purpose: "prescription"})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeValidationFailed))
			Expect(f.gateway.initialized).To(BeEmpty())
		})

		It("rejects an unknown purpose", func() {
			_, err := f.service.Initiate(ctx, 1, payment.InitiateRequest{Purpose: "donation"})
			Expect(err).To(HaveOccurred())
			Expect(f.gateway.initialized).To(BeEmpty())
		})
	})

	Describe("HandleWebhook", func() {
		It("fulfills a sale exactly once across duplicate deliveries", func() {
			resp := initiateSale(2)
			body, sig := f.chargeSuccess(resp.Reference, 2000)

			first, err := f.service.HandleWebhook(ctx, body, sig)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.OK).To(BeTrue())
			Expect(stockOf(item.ID)).To(Equal(3))

			second, err := f.service.HandleWebhook(ctx, body, sig)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.OK).To(BeTrue())
			Expect(stockOf(item.ID)).To(Equal(3))

			intent := intentOf(resp.Reference)
			Expect(intent.Status).To(Equal(paymentDatamodel.StatusPaid))
			Expect(intent.FulfillmentStatus).To(Equal(paymentDatamodel.FulfillmentFulfilled))
			Expect(intent.FulfillmentAttempts).To(Equal(1))

			var sales int64
			Expect(f.gdb.Model(&saleDatamodel.Sale{}).Where("payment_reference = ?", resp.Reference).Count(&sales).Error).To(Succeed())
			Expect(sales).To(Equal(int64(1)))

			var outcomes []string
			Expect(f.gdb.Model(&webhookDatamodel.Event{}).Order("id").Pluck("outcome", &outcomes).Error).To(Succeed())
			Expect(outcomes).To(Equal([]string{webhookDatamodel.OutcomeProcessed, webhookDatamodel.OutcomeDuplicate}))
			Expect(f.publisher.published()).To(Equal([]string{events.EventTypePaymentPaid}))
		})

		It("fulfills once when deliveries race", func() {
			resp := initiateSale(2)
			body, sig := f.chargeSuccess(resp.Reference, 2000)

			var wg sync.WaitGroup
			errs := make(chan error, 4)
			for i := 0; i < 4; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, err := f.service.HandleWebhook(ctx, body, sig)
					errs <- err
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				Expect(err).NotTo(HaveOccurred())
			}

			Expect(stockOf(item.ID)).To(Equal(3))
			var movements int64
			Expect(f.gdb.Model(&inventoryDatamodel.StockMovement{}).Where("reference = ?", resp.Reference).Count(&movements).Error).To(Succeed())
			Expect(movements).To(Equal(int64(1)))
		})

		It("rejects a bad signature without touching state", func() {
			resp := initiateSale(2)
			body, _ := f.chargeSuccess(resp.Reference, 2000)

			_, err := f.service.HandleWebhook(ctx, body, payment.NewVerifier("other-secret").Sign(body))
			Expect(errors.Is(err, internal.ErrSignatureInvalid)).To(BeTrue())
			Expect(intentOf(resp.Reference).Status).To(Equal(paymentDatamodel.StatusInitialized))
			Expect(stockOf(item.ID)).To(Equal(5))

			var audited int64
			Expect(f.gdb.Model(&webhookDatamodel.Event{}).Count(&audited).Error).To(Succeed())
			Expect(audited).To(BeZero())
		})

		It("acknowledges signed deliveries it cannot act on", func() {
			resp := initiateSale(2)

			for _, body := range [][]byte{
				[]byte(`not json`),
				[]byte(`{"event":"charge.success","data":{}}`),
			} {
				ack, err := f.service.HandleWebhook(ctx, body, f.verifier.Sign(body))
				Expect(err).NotTo(HaveOccurred())
				Expect(ack.OK).To(BeFalse())
			}

			Expect(intentOf(resp.Reference).Status).To(Equal(paymentDatamodel.StatusInitialized))
			var outcomes []string
			Expect(f.gdb.Model(&webhookDatamodel.Event{}).Order("id").Pluck("outcome", &outcomes).Error).To(Succeed())
			Expect(outcomes).To(Equal([]string{webhookDatamodel.OutcomeRejected, webhookDatamodel.OutcomeRejected}))
		})

		It("ignores a signed delivery without an event type", func() {
			body := []byte(`{"data":{"reference":"ref_x"}}`)
			ack, err := f.service.HandleWebhook(ctx, body, f.verifier.Sign(body))
			Expect(err).NotTo(HaveOccurred())
			Expect(ack.OK).To(BeTrue())

			var outcomes []string
			Expect(f.gdb.Model(&webhookDatamodel.Event{}).Pluck("outcome", &outcomes).Error).To(Succeed())
			Expect(outcomes).To(Equal([]string{webhookDatamodel.OutcomeIgnored}))
		})

		It("rejects a body altered after signing", func() {
			resp := initiateSale(2)
			body, sig := f.chargeSuccess(resp.Reference, 2000)
			tampered := append([]byte(nil), body...)
			tampered[len(tampered)-2] = ' '

			_, err := f.service.HandleWebhook(ctx, tampered, sig)
			Expect(errors.Is(err, internal.ErrSignatureInvalid)).To(BeTrue())
		})

		It("acknowledges events other than charge.success", func() {
			resp := initiateSale(1)
			body := []byte(`{"event":"transfer.success","data":{"reference":"` + resp.Reference + `"}}`)

			ack, err := f.service.HandleWebhook(ctx, body, f.verifier.Sign(body))
			Expect(err).NotTo(HaveOccurred())
			Expect(ack.OK).To(BeTrue())
			Expect(intentOf(resp.Reference).Status).To(Equal(paymentDatamodel.StatusInitialized))
		})

		It("acknowledges an unknown reference", func() {
			body, sig := f.chargeSuccess("ref_unknown", 100)

			ack, err := f.service.HandleWebhook(ctx, body, sig)
			Expect(err).NotTo(HaveOccurred())
			Expect(ack.OK).To(BeTrue())
		})

		It("rejects a charge.success without a reference", func() {
			body := []byte(`{"event":"charge.success","data":{}}`)
			_, err := f.service.HandleWebhook(ctx, body, f.verifier.Sign(body))
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(400))
		})

		It("does not mark paid when the charged amount differs", func() {
			resp := initiateSale(2)
			body, sig := f.chargeSuccess(resp.Reference, 100)

			ack, err := f.service.HandleWebhook(ctx, body, sig)
			Expect(err).NotTo(HaveOccurred())
			Expect(ack.OK).To(BeFalse())
			Expect(intentOf(resp.Reference).Status).To(Equal(paymentDatamodel.StatusInitialized))
			Expect(stockOf(item.ID)).To(Equal(5))
		})
	})

	Describe("Verify", func() {
		It("reports not found for an unknown reference", func() {
			_, err := f.service.Verify(ctx, "ref_missing")
			Expect(errors.Is(err, internal.ErrIntentNotFound)).To(BeTrue())
		})

		It("leaves a pending charge initialized", func() {
			resp := initiateSale(1)

			out, err := f.service.Verify(ctx, resp.Reference)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Paid).To(BeFalse())
			Expect(out.Transaction.Status).To(Equal("pending"))
			Expect(intentOf(resp.Reference).Status).To(Equal(paymentDatamodel.StatusInitialized))
		})

		It("confirms and fulfills when the webhook never arrived", func() {
			resp := initiateSale(2)
			f.gateway.settle(resp.Reference, gatewaytypes.TransactionSuccess, 2000)

			out, err := f.service.Verify(ctx, resp.Reference)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Success).To(BeTrue())
			Expect(out.Paid).To(BeTrue())
			Expect(out.Transaction).To(Equal(payment.TransactionView{
				Status: "success", Amount: "20.00", Currency: "NGN", Reference: resp.Reference,
			}))
			Expect(stockOf(item.ID)).To(Equal(3))
		})

		It("answers a paid intent locally and never refulfills", func() {
			resp := initiateSale(2)
			body, sig := f.chargeSuccess(resp.Reference, 2000)
			_, err := f.service.HandleWebhook(ctx, body, sig)
			Expect(err).NotTo(HaveOccurred())

			f.gateway.settle(resp.Reference, gatewaytypes.TransactionReversed, 2000)
			out, err := f.service.Verify(ctx, resp.Reference)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Paid).To(BeTrue())
			Expect(f.gateway.calls()).To(BeZero())
			Expect(intentOf(resp.Reference).Status).To(Equal(paymentDatamodel.StatusPaid))
			Expect(stockOf(item.ID)).To(Equal(3))
		})

		It("marks a failed charge failed and keeps it failed", func() {
			resp := initiateSale(2)
			f.gateway.settle(resp.Reference, gatewaytypes.TransactionAbandoned, 2000)

			out, err := f.service.Verify(ctx, resp.Reference)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Paid).To(BeFalse())
			Expect(out.Transaction.Status).To(Equal("abandoned"))
			Expect(intentOf(resp.Reference).Status).To(Equal(paymentDatamodel.StatusFailed))
			Expect(f.publisher.published()).To(ContainElement(events.EventTypePaymentFailed))

			body, sig := f.chargeSuccess(resp.Reference, 2000)
			ack, err := f.service.HandleWebhook(ctx, body, sig)
			Expect(err).NotTo(HaveOccurred())
			Expect(ack.OK).To(BeFalse())
			Expect(intentOf(resp.Reference).Status).To(Equal(paymentDatamodel.StatusFailed))
			Expect(stockOf(item.ID)).To(Equal(5))
		})

		It("surfaces gateway outages", func() {
			resp := initiateSale(1)
			f.gateway.verifyErr = internal.ErrGatewayUnavailable

			_, err := f.service.Verify(ctx, resp.Reference)
			Expect(errors.Is(err, internal.ErrGatewayUnavailable)).To(BeTrue())
			Expect(intentOf(resp.Reference).Status).To(Equal(paymentDatamodel.StatusInitialized))
		})
	})

	Describe("prescription fulfillment", func() {
		var rx *prescriptionDatamodel.Prescription

		BeforeEach(func() {
			rx = &prescriptionDatamodel.Prescription{
				PharmacyID: 1,
				PatientID:  9,
				Status:     prescriptionDatamodel.StatusPending,
				Medications: []prescriptionDatamodel.Medication{
					{Name: "paracetamol 500MG", Dosage: "1x3"},
					{Name: "Compounded cream", Dosage: "apply"},
				},
			}
			Expect(f.rxRepo.Create(ctx, rx)).To(Succeed())
		})

		It("prices matched medications from inventory and the rest at the fallback", func() {
			resp, err := f.service.Initiate(ctx, 1, payment.InitiateRequest{Purpose: "prescription", PrescriptionID: int64Ptr(rx.ID)})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Amount).To(Equal("20.00"))

			body, sig := f.chargeSuccess(resp.Reference, 2000)
			_, err = f.service.HandleWebhook(ctx, body, sig)
			Expect(err).NotTo(HaveOccurred())

			Expect(stockOf(item.ID)).To(Equal(4))
			var stored prescriptionDatamodel.Prescription
			Expect(f.gdb.First(&stored, rx.ID).Error).To(Succeed())
			Expect(stored.Status).To(Equal(prescriptionDatamodel.StatusFulfilled))
		})

		It("keeps the payment when dispensing fails and allows a retry", func() {
			resp, err := f.service.Initiate(ctx, 1, payment.InitiateRequest{Purpose: "prescription", PrescriptionID: int64Ptr(rx.ID)})
			Expect(err).NotTo(HaveOccurred())

			Expect(f.gdb.Model(&inventoryDatamodel.Item{}).Where("id = ?", item.ID).Update("quantity", 0).Error).To(Succeed())

			body, sig := f.chargeSuccess(resp.Reference, 2000)
			ack, err := f.service.HandleWebhook(ctx, body, sig)
			Expect(err).NotTo(HaveOccurred())
			Expect(ack.OK).To(BeTrue())

			intent := intentOf(resp.Reference)
			Expect(intent.Status).To(Equal(paymentDatamodel.StatusPaid))
			Expect(intent.FulfillmentStatus).To(Equal(paymentDatamodel.FulfillmentFailed))
			Expect(intent.FulfillmentError).NotTo(BeNil())
			Expect(f.publisher.published()).To(ContainElement(events.EventTypePaymentFulfillmentFailed))

			out, err := f.service.Verify(ctx, resp.Reference)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Paid).To(BeTrue())

			Expect(f.gdb.Model(&inventoryDatamodel.Item{}).Where("id = ?", item.ID).Update("quantity", 3).Error).To(Succeed())
			view, err := f.service.RetryFulfillment(ctx, 1, resp.Reference, payment.SourceManual)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Status).To(Equal(string(paymentDatamodel.FulfillmentFulfilled)))
			Expect(view.Attempts).To(Equal(2))
			Expect(stockOf(item.ID)).To(Equal(2))
		})
	})

	Describe("service fulfillment", func() {
		It("records a sale line for the service without stock", func() {
			svc := &catalogDatamodel.Service{
				PharmacyID: 1,
				Name:       "Blood pressure check",
				Price:      decimal.NewNullDecimal(decimal.RequireFromString("25.50")),
				IsActive:   true,
			}
			Expect(f.services.Create(ctx, svc)).To(Succeed())

			resp, err := f.service.Initiate(ctx, 1, payment.InitiateRequest{Purpose: "service", ServiceID: int64Ptr(svc.ID)})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Amount).To(Equal("25.50"))

			body, sig := f.chargeSuccess(resp.Reference, 2550)
			_, err = f.service.HandleWebhook(ctx, body, sig)
			Expect(err).NotTo(HaveOccurred())

			var sale saleDatamodel.Sale
			Expect(f.gdb.Preload("Items").Where("payment_reference = ?", resp.Reference).First(&sale).Error).To(Succeed())
			Expect(sale.Items).To(HaveLen(1))
			Expect(*sale.Items[0].ServiceID).To(Equal(svc.ID))
			Expect(sale.TotalAmount.Equal(decimal.RequireFromString("25.50"))).To(BeTrue())
			Expect(stockOf(item.ID)).To(Equal(5))
		})
	})

	Describe("consultation fulfillment", func() {
		It("admits the consultation to the queue and reports its entry", func() {
			c := &consultationDatamodel.Consultation{
				PharmacyID:    1,
				DoctorID:      7,
				PatientID:     3,
				Fee:           decimal.NewNullDecimal(decimal.RequireFromString("50.00")),
				Status:        consultationDatamodel.StatusRequested,
				PaymentStatus: consultationDatamodel.PaymentPending,
				UrgencyLevel:  consultationDatamodel.UrgencyRoutine,
			}
			Expect(f.consultRepo.Create(ctx, c)).To(Succeed())

			resp, err := f.service.Initiate(ctx, 1, payment.InitiateRequest{Purpose: "consultation", ConsultationID: int64Ptr(c.ID)})
			Expect(err).NotTo(HaveOccurred())
			f.gateway.settle(resp.Reference, gatewaytypes.TransactionSuccess, 5000)

			out, err := f.service.Verify(ctx, resp.Reference)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Paid).To(BeTrue())
			Expect(out.QueueEntry).NotTo(BeNil())
			Expect(out.QueueEntry.ConsultationID).To(Equal(c.ID))
			Expect(*out.QueueEntry.Position).To(Equal(1))
			Expect(*out.QueueEntry.EstimatedWaitTime).To(Equal(0))
			Expect(out.QueueEntry.Status).To(Equal("pending"))

			again, err := f.service.Verify(ctx, resp.Reference)
			Expect(err).NotTo(HaveOccurred())
			Expect(again.QueueEntry).NotTo(BeNil())
			Expect(*again.QueueEntry.Position).To(Equal(1))

			var stored consultationDatamodel.Consultation
			Expect(f.gdb.First(&stored, c.ID).Error).To(Succeed())
			Expect(stored.PaymentStatus).To(Equal(consultationDatamodel.PaymentPaid))
			Expect(stored.Status).To(Equal(consultationDatamodel.StatusQueued))
		})
	})

	Describe("RetryFulfillment", func() {
		It("refuses an unpaid intent", func() {
			resp := initiateSale(1)
			_, err := f.service.RetryFulfillment(ctx, 1, resp.Reference, payment.SourceManual)
			Expect(errors.Is(err, internal.ErrNotPaid)).To(BeTrue())
		})

		It("hides another pharmacy's intent", func() {
			resp := initiateSale(1)
			_, err := f.service.RetryFulfillment(ctx, 2, resp.Reference, payment.SourceManual)
			Expect(errors.Is(err, internal.ErrIntentNotFound)).To(BeTrue())
		})

		It("does not rerun a fulfilled intent", func() {
			resp := initiateSale(2)
			body, sig := f.chargeSuccess(resp.Reference, 2000)
			_, err := f.service.HandleWebhook(ctx, body, sig)
			Expect(err).NotTo(HaveOccurred())

			view, err := f.service.RetryFulfillment(ctx, 0, resp.Reference, payment.SourceManual)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Attempts).To(Equal(1))
			Expect(stockOf(item.ID)).To(Equal(3))
		})
	})
})
