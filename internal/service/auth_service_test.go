package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ogvapps/biblioclasificador/internal/dto"
	"github.com/ogvapps/biblioclasificador/internal/models"
	appErrors "github.com/ogvapps/biblioclasificador/pkg/errors"
)

func newAuthService(config AuthConfig) *AuthService {
	if config.TokenSecret == "" {
		config.TokenSecret = "test_secret"
	}
	return NewAuthService(nil, nil, config)
}

func TestAuthLoginAdminPIN(t *testing.T) {
	svc := newAuthService(AuthConfig{AdminPIN: "2025", AssistantPIN: "1875"})

	resp, err := svc.Login(context.Background(), dto.LoginRequest{PIN: "2025"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, resp.Role)
	assert.NotEmpty(t, resp.Token)
	assert.True(t, resp.ExpiresAt.After(time.Now()))
}

func TestAuthLoginAssistantPIN(t *testing.T) {
	svc := newAuthService(AuthConfig{AdminPIN: "2025", AssistantPIN: "1875"})

	resp, err := svc.Login(context.Background(), dto.LoginRequest{PIN: "1875"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAssistant, resp.Role)
}

func TestAuthLoginRejectsUnknownPIN(t *testing.T) {
	svc := newAuthService(AuthConfig{AdminPIN: "2025", AssistantPIN: "1875"})

	_, err := svc.Login(context.Background(), dto.LoginRequest{PIN: "0000"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidPIN.Code, appErrors.FromError(err).Code)
}

func TestAuthLoginHashedAdminPINTakesPrecedence(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("9999"), bcrypt.MinCost)
	require.NoError(t, err)
	svc := newAuthService(AuthConfig{AdminPINHash: string(hash), AdminPIN: "2025", AssistantPIN: "1875"})

	resp, err := svc.Login(context.Background(), dto.LoginRequest{PIN: "9999"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, resp.Role)

	// The plain fallback PIN stops working once a hash is configured.
	_, err = svc.Login(context.Background(), dto.LoginRequest{PIN: "2025"})
	require.Error(t, err)
}

func TestAuthValidateTokenRoundTrip(t *testing.T) {
	svc := newAuthService(AuthConfig{AdminPIN: "2025"})

	resp, err := svc.Login(context.Background(), dto.LoginRequest{PIN: "2025"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestAuthValidateTokenRejectsWrongSecret(t *testing.T) {
	issuer := newAuthService(AuthConfig{AdminPIN: "2025", TokenSecret: "secret_a"})
	verifier := newAuthService(AuthConfig{AdminPIN: "2025", TokenSecret: "secret_b"})

	resp, err := issuer.Login(context.Background(), dto.LoginRequest{PIN: "2025"})
	require.NoError(t, err)

	_, err = verifier.ValidateToken(resp.Token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
