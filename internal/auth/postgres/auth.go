package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/frahmantamala/pharmacy-management/internal/auth"
	userDatamodel "github.com/frahmantamala/pharmacy-management/internal/core/datamodel/user"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) auth.RepositoryAPI {
	return &Repository{db: db}
}

func (r *Repository) GetCredentials(ctx context.Context, email string) (*auth.Credentials, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &auth.Credentials{
		UserID:       u.ID,
		PasswordHash: u.PasswordHash,
		IsActive:     u.IsActive,
	}, nil
}

func (r *Repository) GetUserWithPermissions(ctx context.Context, userID int64) (*auth.User, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var permissions []string
	err = r.db.WithContext(ctx).
		Table("permissions p").
		Joins("JOIN user_permissions up ON p.id = up.permission_id").
		Where("up.user_id = ?", userID).
		Order("p.name ASC").
		Pluck("p.name", &permissions).Error
	if err != nil {
		return nil, err
	}

	return &auth.User{
		ID:          u.ID,
		PharmacyID:  u.PharmacyID,
		Email:       u.Email,
		Name:        u.Name,
		IsActive:    u.IsActive,
		Permissions: permissions,
	}, nil
}

// GrantPermissions creates any missing permission rows and links them to the
// user. Used by the seeder.
func GrantPermissions(ctx context.Context, db *gorm.DB, userID int64, names ...string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, name := range names {
			perm := userDatamodel.Permission{Name: name}
			if err := tx.Where("name = ?", name).FirstOrCreate(&perm).Error; err != nil {
				return err
			}
			link := userDatamodel.UserPermission{UserID: userID, PermissionID: perm.ID}
			if err := tx.Where("user_id = ? AND permission_id = ?", userID, perm.ID).FirstOrCreate(&link).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
