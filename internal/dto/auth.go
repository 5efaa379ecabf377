package dto

import (
	"time"

	"github.com/ogvapps/biblioclasificador/internal/models"
)

// LoginRequest carries the access PIN entered by a librarian.
type LoginRequest struct {
	PIN string `json:"pin" validate:"required"`
}

// LoginResponse returns the issued token and granted role.
type LoginResponse struct {
	Token     string          `json:"token"`
	Role      models.UserRole `json:"role"`
	ExpiresAt time.Time       `json:"expires_at"`
}
