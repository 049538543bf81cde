package catalog_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/frahmantamala/pharmacy-management/internal"
	"github.com/frahmantamala/pharmacy-management/internal/catalog"
	catalogPostgres "github.com/frahmantamala/pharmacy-management/internal/catalog/postgres"
	catalogDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/catalog"
	"github.com/frahmantamala/pharmacy-management/internal/core/testdb"
	"github.com/frahmantamala/pharmacy-management/internal/transport"
)

var _ = Describe("Catalog Handler Integration", func() {
	var (
		db      *gorm.DB
		handler *catalog.Handler
	)

	BeforeEach(func() {
		var err error
		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

		db, err = testdb.Open()
		Expect(err).NotTo(HaveOccurred())

		repo := catalogPostgres.NewServiceRepository(db)
		handler = catalog.NewHandler(&transport.BaseHandler{Logger: slogger}, catalog.NewService(repo, slogger))

		ctx := context.Background()
		Expect(repo.Create(ctx, &catalogDatamodel.Service{
			PharmacyID: 1, Name: "Consultation room", IsActive: true,
			Price: decimal.NewNullDecimal(decimal.RequireFromString("40.00")),
		})).To(Succeed())
		Expect(repo.Create(ctx, &catalogDatamodel.Service{
			PharmacyID: 2, Name: "Elsewhere", IsActive: true,
		})).To(Succeed())
	})

	It("lists the caller's services", func() {
		req := httptest.NewRequest(http.MethodGet, "/services", nil)
		req = req.WithContext(internal.ContextWithPrincipal(req.Context(), internal.Principal{UserID: "7", PharmacyID: 1}))
		w := httptest.NewRecorder()

		handler.ListServices(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		var response catalog.ServicesResponse
		Expect(json.NewDecoder(w.Body).Decode(&response)).To(Succeed())
		Expect(response.Services).To(HaveLen(1))
		Expect(response.Services[0].Name).To(Equal("Consultation room"))
		Expect(*response.Services[0].Price).To(Equal("40.00"))
	})

	It("rejects requests without a tenant", func() {
		req := httptest.NewRequest(http.MethodGet, "/services", nil)
		w := httptest.NewRecorder()

		handler.ListServices(w, req)

		Expect(w.Code).To(Equal(http.StatusForbidden))
	})
})
