package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ogvapps/biblioclasificador/internal/dto"
	"github.com/ogvapps/biblioclasificador/internal/models"
	"github.com/ogvapps/biblioclasificador/pkg/response"
)

type dashboardService interface {
	Summary(ctx context.Context) (*dto.DashboardResponse, bool, error)
	Directory(ctx context.Context) ([]models.DirectoryEntry, error)
	StudentProfile(ctx context.Context, name string) (*dto.StudentProfileResponse, error)
}

// DashboardHandler exposes the derived library views.
type DashboardHandler struct {
	dashboard dashboardService
}

// NewDashboardHandler constructs DashboardHandler.
func NewDashboardHandler(dashboard dashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Summary godoc
// @Summary Aggregated library dashboard
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	summary, cached, err := h.dashboard.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil, map[string]interface{}{"cache_hit": cached})
}

// Directory godoc
// @Summary Merged borrower directory
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/directory [get]
func (h *DashboardHandler) Directory(c *gin.Context) {
	entries, err := h.dashboard.Directory(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// StudentProfile godoc
// @Summary Borrower circulation profile
// @Tags Dashboard
// @Produce json
// @Param name path string true "Student name"
// @Success 200 {object} response.Envelope
// @Router /dashboard/students/{name} [get]
func (h *DashboardHandler) StudentProfile(c *gin.Context) {
	profile, err := h.dashboard.StudentProfile(c.Request.Context(), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}
