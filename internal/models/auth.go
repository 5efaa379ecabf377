package models

import "github.com/golang-jwt/jwt/v5"

// UserRole is the access level granted by a PIN login. Anonymous visitors
// get read-only catalog access and carry no role at all.
type UserRole string

const (
	RoleAdmin     UserRole = "ADMIN"
	RoleAssistant UserRole = "ASSISTANT"
)

// JWTClaims is the token payload issued after a successful PIN login.
type JWTClaims struct {
	Role UserRole `json:"role"`
	jwt.RegisteredClaims
}
