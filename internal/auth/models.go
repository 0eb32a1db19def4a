package auth

import (
	"time"

	"backend-transitportal/internal/domain"
)

const (
	RoleAdmin     = "admin"
	RoleOwner     = "owner"
	RoleDriver    = "driver"
	RolePassenger = "passenger"
)

type Account struct {
	ID           string              `json:"id"`
	Email        string              `json:"email"`
	PasswordHash string              `json:"-"`
	FullName     string              `json:"full_name"`
	Role         string              `json:"role"`
	DriverType   *domain.ServiceType `json:"driver_type,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}
