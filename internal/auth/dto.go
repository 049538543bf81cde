package auth

import (
	"strings"

	"github.com/frahmantamala/pharmacy-management/internal/core/common/validation"
)

type LoginDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshTokenDTO struct {
	RefreshToken string `json:"refreshToken"`
}

func (d LoginDTO) Validate() error {
	validator := validation.NewValidator()
	validator.Field("email", d.Email).Required()
	validator.Field("password", d.Password).Required()
	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	if appErr := validation.ValidateEmail("email", strings.TrimSpace(d.Email)); appErr != nil {
		return appErr
	}
	return nil
}

func (d RefreshTokenDTO) Validate() error {
	validator := validation.NewValidator()
	validator.Field("refreshToken", d.RefreshToken).Required()
	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}
