package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ogvapps/biblioclasificador/internal/dto"
	"github.com/ogvapps/biblioclasificador/internal/models"
	appErrors "github.com/ogvapps/biblioclasificador/pkg/errors"
)

// AuthConfig defines the PIN and token settings for the librarian login.
// When AdminPINHash is set it takes precedence over the plain AdminPIN.
type AuthConfig struct {
	AdminPINHash    string
	AdminPIN        string
	AssistantPIN    string
	TokenSecret     string
	TokenExpiration time.Duration
	Issuer          string
}

// AuthService exchanges an access PIN for a role-scoped token. There are no
// user accounts: the PIN itself selects the role.
type AuthService struct {
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.TokenExpiration <= 0 {
		config.TokenExpiration = 12 * time.Hour
	}
	if config.Issuer == "" {
		config.Issuer = "biblioclasificador"
	}
	return &AuthService{validator: validate, logger: logger, config: config}
}

// Login resolves the PIN to a role and issues a signed token.
func (s *AuthService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	role, ok := s.resolveRole(req.PIN)
	if !ok {
		s.logger.Info("rejected pin login attempt")
		return nil, appErrors.Clone(appErrors.ErrInvalidPIN, "")
	}

	token, expiresAt, err := s.generateToken(role)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create token")
	}

	s.logger.Info("pin login accepted", zap.String("role", string(role)))
	return &dto.LoginResponse{Token: token, Role: role, ExpiresAt: expiresAt}, nil
}

// ValidateToken parses and validates a token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.TokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if claims.Role != models.RoleAdmin && claims.Role != models.RoleAssistant {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "unknown role")
	}

	return claims, nil
}

func (s *AuthService) resolveRole(pin string) (models.UserRole, bool) {
	if s.config.AdminPINHash != "" {
		if bcrypt.CompareHashAndPassword([]byte(s.config.AdminPINHash), []byte(pin)) == nil {
			return models.RoleAdmin, true
		}
	} else if s.config.AdminPIN != "" && pin == s.config.AdminPIN {
		return models.RoleAdmin, true
	}
	if s.config.AssistantPIN != "" && pin == s.config.AssistantPIN {
		return models.RoleAssistant, true
	}
	return "", false
}

func (s *AuthService) generateToken(role models.UserRole) (string, time.Time, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(s.config.TokenExpiration)
	claims := &models.JWTClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   string(role),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.TokenSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}
