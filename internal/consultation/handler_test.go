package consultation_test

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

	"github.com/frahmantamala/pharmacy-management/internal"
	"github.com/frahmantamala/pharmacy-management/internal/consultation"
	consultationPostgres "github.com/frahmantamala/pharmacy-management/internal/consultation/postgres"
	consultationDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/consultation"
	"github.com/frahmantamala/pharmacy-management/internal/core/testdb"
	"github.com/frahmantamala/pharmacy-management/internal/transport"
	"github.com/frahmantamala/pharmacy-management/pkg/db"
)

var _ = Describe("Consultation Handler", func() {
	var (
		ctx    context.Context
		router *chi.Mux
		repo   consultation.RepositoryAPI
		c      *consultationDatamodel.Consultation
	)

	BeforeEach(func() {
		ctx = context.Background()
		gdb, err := testdb.Open()
		Expect(err).NotTo(HaveOccurred())

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		repo = consultationPostgres.NewConsultationRepository(gdb)
		service := consultation.NewService(repo, db.NewTxRunner(gdb), logger, 15, nil)
		handler := consultation.NewHandler(&transport.BaseHandler{Logger: logger}, service)

		router = chi.NewRouter()
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				p := internal.Principal{UserID: "1", PharmacyID: 1}
				next.ServeHTTP(w, r.WithContext(internal.ContextWithPrincipal(r.Context(), p)))
			})
		})
		router.Get("/consultations/{id}/queue", handler.GetQueueStatus)
		router.Patch("/consultations/{id}/status", handler.UpdateStatus)
		router.Get("/doctors/{doctorId}/queue", handler.GetDoctorQueue)

		c = newConsultation(ctx, repo, 3)
		_, err = service.Admit(ctx, c.ID)
		Expect(err).NotTo(HaveOccurred())
	})

	It("returns the queue entry of a consultation", func() {
		req := httptest.NewRequest(http.MethodGet, "/consultations/"+strconv.FormatInt(c.ID, 10)+"/queue", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp consultation.QueueEntryResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.Status).To(Equal("pending"))
		Expect(*resp.Position).To(Equal(1))
		Expect(resp.UrgencyLevel).To(Equal("routine"))
	})

	It("starts a consultation", func() {
		req := httptest.NewRequest(http.MethodPatch, "/consultations/"+strconv.FormatInt(c.ID, 10)+"/status",
			strings.NewReader(`{"status":"in_progress"}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp consultation.QueueEntryResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.Status).To(Equal("active"))
		Expect(resp.Position).To(BeNil())
	})

	It("rejects an unknown status", func() {
		req := httptest.NewRequest(http.MethodPatch, "/consultations/"+strconv.FormatInt(c.ID, 10)+"/status",
			strings.NewReader(`{"status":"teleported"}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("returns 404 for a missing consultation", func() {
		req := httptest.NewRequest(http.MethodGet, "/consultations/999/queue", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("lists a doctor's queue", func() {
		req := httptest.NewRequest(http.MethodGet, "/doctors/3/queue", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp consultation.QueueResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.Entries).To(HaveLen(1))
	})
})
