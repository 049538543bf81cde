package catalog_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/pharmacy-management/internal"
	"github.com/frahmantamala/pharmacy-management/internal/catalog"
	catalogDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/catalog"
)

func TestCatalog(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Catalog Suite")
}

type MockRepository struct {
	services   map[int64]*catalogDatamodel.Service
	shouldFail bool
	failError  error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{services: make(map[int64]*catalogDatamodel.Service)}
}

func (m *MockRepository) ListByPharmacy(ctx context.Context, pharmacyID int64) ([]*catalogDatamodel.Service, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	var result []*catalogDatamodel.Service
	for _, svc := range m.services {
		if svc.PharmacyID == pharmacyID {
			result = append(result, svc)
		}
	}
	return result, nil
}

func (m *MockRepository) GetByID(ctx context.Context, id int64) (*catalogDatamodel.Service, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	return m.services[id], nil
}

func (m *MockRepository) Create(ctx context.Context, svc *catalogDatamodel.Service) error {
	if m.shouldFail {
		return m.failError
	}
	m.services[svc.ID] = svc
	return nil
}

func (m *MockRepository) SetShouldFail(shouldFail bool, err error) {
	m.shouldFail = shouldFail
	m.failError = err
}

var _ = Describe("Catalog Service", func() {
	var (
		ctx      context.Context
		mockRepo *MockRepository
		service  *catalog.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		mockRepo = NewMockRepository()
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = catalog.NewService(mockRepo, logger)

		mockRepo.services[1] = &catalogDatamodel.Service{
			ID: 1, PharmacyID: 10, Name: "Blood pressure check", IsActive: true,
			Price: decimal.NewNullDecimal(decimal.RequireFromString("25.00")),
		}
		mockRepo.services[2] = &catalogDatamodel.Service{
			ID: 2, PharmacyID: 10, Name: "Vaccination", IsActive: true,
		}
		mockRepo.services[3] = &catalogDatamodel.Service{
			ID: 3, PharmacyID: 10, Name: "Retired", IsActive: false,
		}
		mockRepo.services[4] = &catalogDatamodel.Service{
			ID: 4, PharmacyID: 20, Name: "Other tenant", IsActive: true,
		}
	})

	Describe("ListServices", func() {
		It("returns only active services of the pharmacy", func() {
			services, err := service.ListServices(ctx, 10)
			Expect(err).NotTo(HaveOccurred())

			names := make([]string, len(services))
			for i, s := range services {
				names[i] = s.Name
			}
			Expect(names).To(ConsistOf("Blood pressure check", "Vaccination"))
		})

		It("renders unset prices as null", func() {
			services, err := service.ListServices(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			for _, s := range services {
				if s.Name == "Vaccination" {
					Expect(s.Price).To(BeNil())
				} else {
					Expect(*s.Price).To(Equal("25.00"))
				}
			}
		})

		It("wraps repository failures", func() {
			mockRepo.SetShouldFail(true, errors.New("database error"))
			_, err := service.ListServices(ctx, 10)
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(500))
		})
	})

	Describe("GetService", func() {
		It("returns a billable service", func() {
			svc, err := service.GetService(ctx, 10, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(svc.Billable()).To(BeTrue())
		})

		It("reports a service without price as not billable", func() {
			svc, err := service.GetService(ctx, 10, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(svc.Billable()).To(BeFalse())
		})

		It("hides services of other pharmacies", func() {
			_, err := service.GetService(ctx, 10, 4)
			Expect(errors.Is(err, internal.ErrServiceNotFound)).To(BeTrue())
		})

		It("returns not found for a missing service", func() {
			_, err := service.GetService(ctx, 10, 99)
			Expect(errors.Is(err, internal.ErrServiceNotFound)).To(BeTrue())
		})
	})
})
