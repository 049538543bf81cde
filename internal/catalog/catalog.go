package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	catalogDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/catalog"
)

type ClinicService struct {
	ID          int64
	PharmacyID  int64
	Name        string
	Description string
	Price       *decimal.Decimal
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Billable reports whether the service can be charged: active with a price
// above zero.
func (s *ClinicService) Billable() bool {
	return s.IsActive && s.Price != nil && s.Price.IsPositive()
}

func (s *ClinicService) ToResponse() ServiceResponse {
	resp := ServiceResponse{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
	}
	if s.Price != nil {
		p := s.Price.StringFixed(2)
		resp.Price = &p
	}
	return resp
}

func ToDataModel(s *ClinicService) *catalogDatamodel.Service {
	m := &catalogDatamodel.Service{
		ID:          s.ID,
		PharmacyID:  s.PharmacyID,
		Name:        s.Name,
		Description: s.Description,
		IsActive:    s.IsActive,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
	if s.Price != nil {
		m.Price = decimal.NewNullDecimal(*s.Price)
	}
	return m
}

func FromDataModel(m *catalogDatamodel.Service) *ClinicService {
	s := &ClinicService{
		ID:          m.ID,
		PharmacyID:  m.PharmacyID,
		Name:        m.Name,
		Description: m.Description,
		IsActive:    m.IsActive,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.Price.Valid {
		p := m.Price.Decimal
		s.Price = &p
	}
	return s
}
