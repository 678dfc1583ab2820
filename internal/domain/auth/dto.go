package auth

import (
	"time"

	"github.com/google/uuid"

	"github.com/smartpay/smartpay-api/internal/domain/user"
)

// SignupRequest for POST /users/signup
type SignupRequest struct {
	Name         string `json:"name" validate:"required,notblank,max=100"`
	Email        string `json:"email" validate:"required,email,max=255"`
	MobileNumber string `json:"mobile_number" validate:"required,mobile"`
	Password     string `json:"password" validate:"required,min=6,max=128"`
	PIN          string `json:"pin" validate:"required,pin"`
}

// LoginRequest for POST /users/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by signup and login
type AuthResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int          `json:"expires_in"`
	User        UserResponse `json:"user"`
}

// UserResponse never carries the password or PIN hashes
type UserResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	MobileNumber string    `json:"mobile_number"`
	CreatedAt    time.Time `json:"created_at"`
}

func NewUserResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		MobileNumber: u.MobileNumber,
		CreatedAt:    u.CreatedAt,
	}
}
