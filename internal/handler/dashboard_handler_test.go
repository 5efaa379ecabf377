package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/ogvapps/biblioclasificador/internal/dto"
	"github.com/ogvapps/biblioclasificador/internal/models"
	appErrors "github.com/ogvapps/biblioclasificador/pkg/errors"
)

type fakeDashboardSrv struct {
	summary     *dto.DashboardResponse
	summaryHit  bool
	summaryErr  error
	directory   []models.DirectoryEntry
	profile     *dto.StudentProfileResponse
	profileErr  error
	lastProfile string
}

func (f *fakeDashboardSrv) Summary(context.Context) (*dto.DashboardResponse, bool, error) {
	return f.summary, f.summaryHit, f.summaryErr
}

func (f *fakeDashboardSrv) Directory(context.Context) ([]models.DirectoryEntry, error) {
	return f.directory, nil
}

func (f *fakeDashboardSrv) StudentProfile(_ context.Context, name string) (*dto.StudentProfileResponse, error) {
	f.lastProfile = name
	return f.profile, f.profileErr
}

func TestDashboardHandlerSummarySuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{
		summary: &dto.DashboardResponse{
			KPIs:        dto.KPISection{TotalBooks: 12, ActiveLoans: 3},
			GeneratedAt: time.Now(),
		},
		summaryHit: true,
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard", nil)

	handler.Summary(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
}

func TestDashboardHandlerSummaryFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{
		summaryErr: appErrors.Clone(appErrors.ErrInternal, "snapshot failed"),
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard", nil)

	handler.Summary(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDashboardHandlerStudentProfilePassesName(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeDashboardSrv{
		profile: &dto.StudentProfileResponse{Name: "Lucía García", Course: "3A"},
	}
	handler := NewDashboardHandler(service)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/students/Luc%C3%ADa%20Garc%C3%ADa", nil)
	c.Params = gin.Params{{Key: "name", Value: "Lucía García"}}

	handler.StudentProfile(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Lucía García", service.lastProfile)
}

func TestDashboardHandlerStudentProfileNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDashboardHandler(&fakeDashboardSrv{
		profileErr: appErrors.Clone(appErrors.ErrNotFound, "unknown borrower"),
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/students/nobody", nil)
	c.Params = gin.Params{{Key: "name", Value: "nobody"}}

	handler.StudentProfile(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type responseEnvelope struct {
	Data json.RawMessage        `json:"data"`
	Meta map[string]interface{} `json:"meta"`
}
