package payment_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/pharmacy-management/internal"
	"github.com/frahmantamala/pharmacy-management/internal/payment"
)

var _ = Describe("Verifier", func() {
	body := []byte(`{"event":"charge.success","data":{"reference":"ref_1"}}`)

	It("accepts the signature computed over the exact body", func() {
		v := payment.NewVerifier("secret")
		Expect(v.Verify(body, v.Sign(body))).To(Succeed())
	})

	It("produces a 128 character hex digest", func() {
		Expect(payment.NewVerifier("secret").Sign(body)).To(HaveLen(128))
	})

	It("rejects a signature made with another key", func() {
		sig := payment.NewVerifier("other").Sign(body)
		err := payment.NewVerifier("secret").Verify(body, sig)
		Expect(errors.Is(err, internal.ErrSignatureInvalid)).To(BeTrue())
	})

	It("rejects a re-encoded body", func() {
		v := payment.NewVerifier("secret")
		sig := v.Sign(body)
		reencoded := []byte(`{"event": "charge.success", "data": {"reference": "ref_1"}}`)
		Expect(errors.Is(v.Verify(reencoded, sig), internal.ErrSignatureInvalid)).To(BeTrue())
	})

	It("rejects missing and non-hex signatures", func() {
		v := payment.NewVerifier("secret")
		Expect(errors.Is(v.Verify(body, ""), internal.ErrSignatureInvalid)).To(BeTrue())
		Expect(errors.Is(v.Verify(body, "not-hex"), internal.ErrSignatureInvalid)).To(BeTrue())
	})

	It("rejects everything when no secret is configured", func() {
		v := payment.NewVerifier("")
		Expect(errors.Is(v.Verify(body, v.Sign(body)), internal.ErrSignatureInvalid)).To(BeTrue())
	})

	Describe("ParseEvent", func() {
		It("reads the event type and reference", func() {
			evt, err := payment.ParseEvent([]byte(`{"event":"charge.success","data":{"reference":"ref_9","amount":1500,"currency":"NGN"}}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(evt.Event).To(Equal(payment.EventChargeSuccess))
			Expect(evt.Data.Reference).To(Equal("ref_9"))
			Expect(*evt.Data.Amount).To(Equal(int64(1500)))
		})

		It("allows other events without a reference", func() {
			evt, err := payment.ParseEvent([]byte(`{"event":"subscription.create","data":{}}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(evt.Data.Reference).To(BeEmpty())
		})

		It("leaves a missing event type to the caller", func() {
			evt, err := payment.ParseEvent([]byte(`{"data":{"reference":"ref_1"}}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(evt.Event).To(BeEmpty())
		})

		It("requires a reference on charge.success", func() {
			_, err := payment.ParseEvent([]byte(`{"event":"charge.success","data":{}}`))
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})

		It("rejects malformed JSON", func() {
			_, err := payment.ParseEvent([]byte(`{"event":`))
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})
	})
})
