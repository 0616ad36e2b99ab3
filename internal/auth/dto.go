package auth

import (
	"github.com/angelmondragon/fanjava-backend/internal/users"
	"github.com/angelmondragon/fanjava-backend/pkg/enums"
)

// LoginRequest captures the credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest creates a client or vendor account.
type RegisterRequest struct {
	FirstName   string         `json:"first_name" validate:"required"`
	LastName    string         `json:"last_name" validate:"required"`
	Email       string         `json:"email" validate:"required,email"`
	Password    string         `json:"password" validate:"required,min=8"`
	Phone       *string        `json:"phone,omitempty"`
	Role        enums.UserRole `json:"role" validate:"required,oneof=client vendor"`
	CompanyName *string        `json:"company_name,omitempty"`
}

// LoginResponse carries the access token and the authenticated user.
type LoginResponse struct {
	AccessToken string         `json:"access_token"`
	ExpiresIn   int            `json:"expires_in"`
	User        *users.UserDTO `json:"user"`
}
