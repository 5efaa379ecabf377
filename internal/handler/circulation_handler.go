package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ogvapps/biblioclasificador/internal/dto"
	"github.com/ogvapps/biblioclasificador/internal/models"
	"github.com/ogvapps/biblioclasificador/internal/service"
	appErrors "github.com/ogvapps/biblioclasificador/pkg/errors"
	"github.com/ogvapps/biblioclasificador/pkg/response"
)

// CirculationHandler exposes the lending lifecycle endpoints.
type CirculationHandler struct {
	circulation *service.CirculationService
}

// NewCirculationHandler constructs CirculationHandler.
func NewCirculationHandler(circulation *service.CirculationService) *CirculationHandler {
	return &CirculationHandler{circulation: circulation}
}

// ListLoans godoc
// @Summary List circulation ledger entries
// @Tags Circulation
// @Produce json
// @Param search query string false "Search by student or book title"
// @Param status query string false "ACTIVE or RETURNED"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /loans [get]
func (h *CirculationHandler) ListLoans(c *gin.Context) {
	var filter models.LoanFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Status = c.Query("status")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	loans, pagination, err := h.circulation.ListLoans(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, loans, pagination)
}

// Lend godoc
// @Summary Lend a book to a student
// @Tags Circulation
// @Accept json
// @Produce json
// @Param id path string true "Book ID"
// @Param payload body dto.LendRequest true "Lend payload"
// @Success 201 {object} response.Envelope
// @Router /books/{id}/lend [post]
func (h *CirculationHandler) Lend(c *gin.Context) {
	var req dto.LendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	loan, err := h.circulation.Lend(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, loan)
}

// Return godoc
// @Summary Return a lent book
// @Tags Circulation
// @Accept json
// @Produce json
// @Param id path string true "Loan ID"
// @Param payload body dto.ReturnRequest true "Return payload"
// @Success 200 {object} response.Envelope
// @Router /loans/{id}/return [post]
func (h *CirculationHandler) Return(c *gin.Context) {
	var req dto.ReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	loan, err := h.circulation.Return(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, loan, nil)
}

// Reserve godoc
// @Summary Reserve a book for a student
// @Tags Circulation
// @Accept json
// @Produce json
// @Param id path string true "Book ID"
// @Param payload body dto.ReserveRequest true "Reserve payload"
// @Success 200 {object} response.Envelope
// @Router /books/{id}/reserve [post]
func (h *CirculationHandler) Reserve(c *gin.Context) {
	var req dto.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	book, err := h.circulation.Reserve(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewBookResponse(*book), nil)
}

// CancelReservation godoc
// @Summary Cancel a book reservation
// @Tags Circulation
// @Produce json
// @Param id path string true "Book ID"
// @Success 200 {object} response.Envelope
// @Router /books/{id}/reserve [delete]
func (h *CirculationHandler) CancelReservation(c *gin.Context) {
	book, err := h.circulation.CancelReservation(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewBookResponse(*book), nil)
}
