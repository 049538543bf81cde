package auth

import (
	"context"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/frahmantamala/pharmacy-management/internal"
)

type ServiceAPI interface {
	Authenticate(ctx context.Context, dto LoginDTO) (AuthTokens, error)
	RefreshTokens(ctx context.Context, refreshToken string) (AuthTokens, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
	CurrentUser(ctx context.Context, userID int64) (*User, error)
}

type RepositoryAPI interface {
	GetCredentials(ctx context.Context, email string) (*Credentials, error)
	GetUserWithPermissions(ctx context.Context, userID int64) (*User, error)
}

type TokenGeneratorAPI interface {
	GenerateAccessToken(user *User) (string, error)
	GenerateRefreshToken(user *User) (string, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
	ValidateRefreshToken(tokenString string) (*Claims, error)
}

// Credentials is what login needs to check a password.
type Credentials struct {
	UserID       int64
	PasswordHash string
	IsActive     bool
}

// User is a staff member with the permissions granted to them.
type User struct {
	ID          int64    `json:"id"`
	PharmacyID  int64    `json:"pharmacyId"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	IsActive    bool     `json:"-"`
	Permissions []string `json:"permissions,omitempty"`
}

func (u *User) HasPermission(permission string) bool {
	for _, p := range u.Permissions {
		if p == permission || p == PermissionAdmin {
			return true
		}
	}
	return false
}

type AuthTokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
	tokenIssuer      = "pharmacy-management"
)

// Claims is the JWT payload. Access and refresh tokens share it and differ
// by TokenType and signing secret.
type Claims struct {
	UserID      string   `json:"user_id"`
	Email       string   `json:"email"`
	PharmacyID  int64    `json:"pharmacy_id"`
	Permissions []string `json:"permissions,omitempty"`
	TokenType   string   `json:"typ"`
	jwt.RegisteredClaims
}

// Principal turns validated claims into the request principal.
func (c *Claims) Principal() internal.Principal {
	return internal.Principal{
		UserID:      c.UserID,
		Email:       c.Email,
		PharmacyID:  c.PharmacyID,
		Permissions: c.Permissions,
	}
}

func (c *Claims) userID() (int64, error) {
	return strconv.ParseInt(c.UserID, 10, 64)
}

type JWTTokenGenerator struct {
	AccessTokenSecret  []byte
	RefreshTokenSecret []byte
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	now                func() time.Time
}
