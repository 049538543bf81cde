package payment_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/pharmacy-management/internal"
	inventoryDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/inventory"
	"github.com/frahmantamala/pharmacy-management/internal/payment"
	"github.com/frahmantamala/pharmacy-management/internal/transport"
)

var _ = Describe("Payment Handlers", func() {
	var (
		ctx       context.Context
		f         *fixture
		router    *chi.Mux
		item      *inventoryDatamodel.Item
		principal *internal.Principal
	)

	BeforeEach(func() {
		ctx = context.Background()
		f = newFixture()
		item = &inventoryDatamodel.Item{
			PharmacyID: 1, Name: "Cetirizine", SellingPrice: decimal.RequireFromString("10.00"), Quantity: 5,
		}
		Expect(f.inventory.Create(ctx, item)).To(Succeed())

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		base := &transport.BaseHandler{Logger: logger}
		handler := payment.NewHandler(base, f.service)
		webhooks := payment.NewWebhookHandler(base, f.service, "X-Payment-Signature")

		principal = &internal.Principal{UserID: "1", PharmacyID: 1}
		router = chi.NewRouter()
		router.Post("/payments/webhook", webhooks.HandleWebhook)
		router.Get("/payments/verify/{reference}", handler.Verify)
		router.Group(func(r chi.Router) {
			r.Use(func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
					if principal != nil {
						req = req.WithContext(internal.ContextWithPrincipal(req.Context(), *principal))
					}
					next.ServeHTTP(w, req)
				})
			})
			r.Post("/payments/initiate", handler.Initiate)
			r.Post("/payments/{reference}/fulfill", handler.Fulfill)
		})
	})

	initiate := func() string {
		body := `{"purpose":"sale","items":[{"inventoryItemId":` + strconv.FormatInt(item.ID, 10) + `,"quantity":2,"unitPrice":"10.00"}]}`
		req := httptest.NewRequest(http.MethodPost, "/payments/initiate", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		Expect(rec.Code).To(Equal(http.StatusCreated))

		var resp payment.InitiateResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Amount).To(Equal("20.00"))
		return resp.Reference
	}

	deliver := func(body []byte, signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(string(body)))
		req.Header.Set("X-Payment-Signature", signature)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	It("acknowledges a signed charge and reports it paid on verify", func() {
		reference := initiate()
		body, sig := f.chargeSuccess(reference, 2000)

		rec := deliver(body, sig)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{"ok":true}`))

		req := httptest.NewRequest(http.MethodGet, "/payments/verify/"+reference, nil)
		verifyRec := httptest.NewRecorder()
		router.ServeHTTP(verifyRec, req)
		Expect(verifyRec.Code).To(Equal(http.StatusOK))

		var out payment.VerifyResponse
		Expect(json.Unmarshal(verifyRec.Body.Bytes(), &out)).To(Succeed())
		Expect(out.Paid).To(BeTrue())
		Expect(out.Transaction.Amount).To(Equal("20.00"))
		Expect(out.QueueEntry).To(BeNil())
	})

	It("answers 401 to an unsigned delivery", func() {
		reference := initiate()
		body, _ := f.chargeSuccess(reference, 2000)

		rec := deliver(body, "")
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		Expect(rec.Body.String()).To(ContainSubstring(string(internal.ErrCodeSignatureInvalid)))
	})

	It("answers 200 to a delivery for an unknown reference", func() {
		body, sig := f.chargeSuccess("ref_elsewhere", 500)
		rec := deliver(body, sig)
		Expect(rec.Code).To(Equal(http.StatusOK))
	})

	It("answers 200 with ok=false to a signed but unparseable body", func() {
		body := []byte(`not json`)
		rec := deliver(body, f.verifier.Sign(body))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{"ok":false}`))
	})

	It("answers 200 with ok=false to a charge without a reference", func() {
		body := []byte(`{"event":"charge.success","data":{"amount":2000}}`)
		rec := deliver(body, f.verifier.Sign(body))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{"ok":false}`))
	})

	It("answers 404 when verifying an unknown reference", func() {
		req := httptest.NewRequest(http.MethodGet, "/payments/verify/ref_missing", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		Expect(rec.Code).To(Equal(http.StatusNotFound))
		Expect(rec.Body.String()).To(ContainSubstring(string(internal.ErrCodeIntentNotFound)))
	})

	It("refuses initiation without a pharmacy", func() {
		principal = nil
		req := httptest.NewRequest(http.MethodPost, "/payments/initiate", strings.NewReader(`{"purpose":"sale"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		Expect(rec.Code).To(Equal(http.StatusForbidden))
	})

	It("rejects unknown fields in the initiation body", func() {
		req := httptest.NewRequest(http.MethodPost, "/payments/initiate", strings.NewReader(`{"purpose":"sale","amount":1}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("answers 409 when fulfilling an unpaid intent", func() {
		reference := initiate()
		req := httptest.NewRequest(http.MethodPost, "/payments/"+reference+"/fulfill", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		Expect(rec.Code).To(Equal(http.StatusConflict))
	})
})
