package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ogvapps/biblioclasificador/internal/dto"
	"github.com/ogvapps/biblioclasificador/internal/service"
	appErrors "github.com/ogvapps/biblioclasificador/pkg/errors"
	"github.com/ogvapps/biblioclasificador/pkg/response"
)

// AuthHandler exposes the PIN login endpoint.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Login godoc
// @Summary Exchange an access PIN for a role token
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body dto.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	resp, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// Session godoc
// @Summary Describe the authenticated session
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /auth/session [get]
func (h *AuthHandler) Session(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "no active session"))
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"role": claims.Role, "expires_at": claims.ExpiresAt}, nil)
}
