package payment_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	paymentDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/payment"
	"github.com/frahmantamala/pharmacy-management/internal/payment"
)

var _ = Describe("Payload", func() {
	It("restores the variant of the stored purpose", func() {
		raw, err := payment.EncodePayload(payment.PrescriptionPayload{
			PrescriptionID: 4,
			PharmacyID:     1,
			Medications: []payment.PrescribedMedication{
				{MedicationID: 11, Name: "Amoxicillin", InventoryItemID: int64Ptr(3), UnitPrice: decimal.RequireFromString("12.00")},
				{MedicationID: 12, Name: "Compounded cream", UnitPrice: decimal.RequireFromString("10.00")},
			},
		})
		Expect(err).NotTo(HaveOccurred())

		decoded, err := payment.DecodePayload(paymentDatamodel.PurposePrescription, raw)
		Expect(err).NotTo(HaveOccurred())
		rx, ok := decoded.(payment.PrescriptionPayload)
		Expect(ok).To(BeTrue())
		Expect(rx.DispensedMedicationIDs()).To(Equal([]int64{11, 12}))
		Expect(rx.Medications[1].InventoryItemID).To(BeNil())
	})

	It("uses camelCase keys", func() {
		raw, err := payment.EncodePayload(payment.ConsultationPayload{ConsultationID: 5, PharmacyID: 1, DoctorID: 2})
		Expect(err).NotTo(HaveOccurred())
		var m map[string]interface{}
		Expect(json.Unmarshal(raw, &m)).To(Succeed())
		Expect(m).To(HaveKey("consultationId"))
	})

	It("refuses an unknown purpose or an empty payload", func() {
		_, err := payment.DecodePayload("donation", json.RawMessage(`{}`))
		Expect(err).To(HaveOccurred())
		_, err = payment.DecodePayload(paymentDatamodel.PurposeSale, nil)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Minor units", func() {
	It("converts major amounts exactly", func() {
		Expect(payment.ToMinorUnits(decimal.RequireFromString("20.00"))).To(Equal(int64(2000)))
		Expect(payment.ToMinorUnits(decimal.RequireFromString("0.1").Add(decimal.RequireFromString("0.2")))).To(Equal(int64(30)))
		Expect(payment.ToMinorUnits(decimal.RequireFromString("10.005"))).To(Equal(int64(1001)))
	})

	It("round-trips through the gateway representation", func() {
		amount := decimal.RequireFromString("1234.56")
		Expect(payment.FromMinorUnits(payment.ToMinorUnits(amount)).Equal(amount)).To(BeTrue())
	})
})
