package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/frahmantamala/pharmacy-management/internal/catalog"
	catalogDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/catalog"
)

type ServiceRepository struct {
	db *gorm.DB
}

func NewServiceRepository(db *gorm.DB) catalog.RepositoryAPI {
	return &ServiceRepository{db: db}
}

func (r *ServiceRepository) ListByPharmacy(ctx context.Context, pharmacyID int64) ([]*catalogDatamodel.Service, error) {
	var services []*catalogDatamodel.Service
	err := r.db.WithContext(ctx).
		Where("pharmacy_id = ?", pharmacyID).
		Order("name ASC").
		Find(&services).Error
	return services, err
}

func (r *ServiceRepository) GetByID(ctx context.Context, id int64) (*catalogDatamodel.Service, error) {
	var svc catalogDatamodel.Service
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&svc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &svc, nil
}

func (r *ServiceRepository) Create(ctx context.Context, svc *catalogDatamodel.Service) error {
	return r.db.WithContext(ctx).Create(svc).Error
}
