package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/pharmacy-management/internal"
	catalogDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/catalog"
)

type RepositoryAPI interface {
	ListByPharmacy(ctx context.Context, pharmacyID int64) ([]*catalogDatamodel.Service, error)
	GetByID(ctx context.Context, id int64) (*catalogDatamodel.Service, error)
	Create(ctx context.Context, service *catalogDatamodel.Service) error
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// ListServices returns the active services of a pharmacy.
func (s *Service) ListServices(ctx context.Context, pharmacyID int64) ([]ServiceResponse, error) {
	rows, err := s.repo.ListByPharmacy(ctx, pharmacyID)
	if err != nil {
		s.logger.Error("failed to list services", "pharmacy_id", pharmacyID, "error", err)
		return nil, internal.NewInternalError("failed to list services", err)
	}

	responses := make([]ServiceResponse, 0, len(rows))
	for _, row := range rows {
		svc := FromDataModel(row)
		if svc.IsActive {
			responses = append(responses, svc.ToResponse())
		}
	}
	return responses, nil
}

// GetService loads a service that belongs to pharmacyID. A service of
// another tenant is reported as not found.
func (s *Service) GetService(ctx context.Context, pharmacyID, id int64) (*ClinicService, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load service %d: %w", id, err)
	}
	if row == nil || (pharmacyID != 0 && row.PharmacyID != pharmacyID) {
		return nil, internal.ErrServiceNotFound
	}
	return FromDataModel(row), nil
}
