package handler

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ogvapps/biblioclasificador/internal/service"
	appErrors "github.com/ogvapps/biblioclasificador/pkg/errors"
	"github.com/ogvapps/biblioclasificador/pkg/response"
)

// ExportHandler exposes download and bulk upload endpoints.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// ExportBooks godoc
// @Summary Download the catalog as CSV or PDF
// @Tags Exports
// @Produce octet-stream
// @Param format query string false "csv or pdf"
// @Success 200
// @Router /exports/books [get]
func (h *ExportHandler) ExportBooks(c *gin.Context) {
	payload, filename, err := h.exports.ExportBooks(c.Request.Context(), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	sendAttachment(c, payload, filename)
}

// ExportLoans godoc
// @Summary Download the circulation ledger as CSV or PDF
// @Tags Exports
// @Produce octet-stream
// @Param format query string false "csv or pdf"
// @Success 200
// @Router /exports/loans [get]
func (h *ExportHandler) ExportLoans(c *gin.Context) {
	payload, filename, err := h.exports.ExportLoans(c.Request.Context(), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	sendAttachment(c, payload, filename)
}

// ExportStudents godoc
// @Summary Download the roster as CSV or PDF
// @Tags Exports
// @Produce octet-stream
// @Param format query string false "csv or pdf"
// @Success 200
// @Router /exports/students [get]
func (h *ExportHandler) ExportStudents(c *gin.Context) {
	payload, filename, err := h.exports.ExportStudents(c.Request.Context(), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	sendAttachment(c, payload, filename)
}

// ImportBooks godoc
// @Summary Bulk upload catalog rows from CSV
// @Tags Exports
// @Accept mpfd
// @Produce json
// @Param file formData file true "CSV file"
// @Success 200 {object} response.Envelope
// @Router /imports/books [post]
func (h *ExportHandler) ImportBooks(c *gin.Context) {
	file, err := openUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	summary, err := h.exports.ImportBooks(c.Request.Context(), file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// ImportStudents godoc
// @Summary Bulk upload roster rows from CSV
// @Tags Exports
// @Accept mpfd
// @Produce json
// @Param file formData file true "CSV file"
// @Success 200 {object} response.Envelope
// @Router /imports/students [post]
func (h *ExportHandler) ImportStudents(c *gin.Context) {
	file, err := openUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	summary, err := h.exports.ImportStudents(c.Request.Context(), file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

func openUpload(c *gin.Context) (multipart.File, error) {
	header, err := c.FormFile("file")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file field is required")
	}
	file, err := header.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "could not open upload")
	}
	return file, nil
}

func sendAttachment(c *gin.Context, payload []byte, filename string) {
	contentType := "text/csv"
	if strings.HasSuffix(filename, ".pdf") {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}
