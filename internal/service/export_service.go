package service

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ogvapps/biblioclasificador/internal/dto"
	"github.com/ogvapps/biblioclasificador/internal/models"
	appErrors "github.com/ogvapps/biblioclasificador/pkg/errors"
	"github.com/ogvapps/biblioclasificador/pkg/export"
)

type exportBookRepository interface {
	ListAll(ctx context.Context) ([]models.Book, error)
	Create(ctx context.Context, book *models.Book) error
}

type exportLoanRepository interface {
	ListAll(ctx context.Context) ([]models.Loan, error)
}

type exportStudentRepository interface {
	List(ctx context.Context, search string) ([]models.Student, error)
	ExistsByName(ctx context.Context, name string, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
}

// ExportService renders catalog, ledger and roster snapshots as CSV or PDF
// downloads and handles the reverse bulk uploads.
type ExportService struct {
	books    exportBookRepository
	loans    exportLoanRepository
	students exportStudentRepository
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	importer *export.CSVImporter
	cache    *CacheService
	logger   *zap.Logger
	now      func() time.Time
}

// ExportServiceParams groups constructor dependencies.
type ExportServiceParams struct {
	Books    exportBookRepository
	Loans    exportLoanRepository
	Students exportStudentRepository
	Cache    *CacheService
	Logger   *zap.Logger
}

// NewExportService constructs an ExportService instance.
func NewExportService(params ExportServiceParams) *ExportService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		books:    params.Books,
		loans:    params.Loans,
		students: params.Students,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		importer: export.NewCSVImporter(),
		cache:    params.Cache,
		logger:   logger,
		now:      time.Now,
	}
}

// ExportBooks renders the catalog in the requested format.
func (s *ExportService) ExportBooks(ctx context.Context, format string) ([]byte, string, error) {
	books, err := s.books.ListAll(ctx)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list books")
	}

	dataset := export.Dataset{
		Headers: []string{"ID", "Titulo", "Autor", "Etapa", "Genero", "Edad", "Columna", "Estante", "Estado", "Valoracion"},
	}
	for _, book := range books {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"ID":         book.ID,
			"Titulo":     book.Title,
			"Autor":      book.Author,
			"Etapa":      string(book.Stage),
			"Genero":     string(book.Genre),
			"Edad":       strconv.Itoa(book.Age),
			"Columna":    intOrEmpty(book.Column),
			"Estante":    intOrEmpty(book.Shelf),
			"Estado":     string(book.CirculationStatus()),
			"Valoracion": fmt.Sprintf("%.2f", book.Rating),
		})
	}
	return s.render(dataset, format, "catalogo", "Catálogo de la biblioteca")
}

// ExportLoans renders the circulation ledger in the requested format.
func (s *ExportService) ExportLoans(ctx context.Context, format string) ([]byte, string, error) {
	loans, err := s.loans.ListAll(ctx)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list loans")
	}

	dataset := export.Dataset{
		Headers: []string{"ID", "Libro", "Estudiante", "Curso", "Prestado", "Vence", "Devuelto", "Estado", "Valoracion"},
	}
	for _, loan := range loans {
		returned := ""
		if loan.ReturnDate != nil {
			returned = loan.ReturnDate.Format("2006-01-02")
		}
		rating := ""
		if loan.Rating != nil {
			rating = strconv.Itoa(*loan.Rating)
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"ID":         loan.ID,
			"Libro":      loan.BookTitle,
			"Estudiante": loan.StudentName,
			"Curso":      loan.Course,
			"Prestado":   loan.LoanDate.Format("2006-01-02"),
			"Vence":      loan.DueDate.Format("2006-01-02"),
			"Devuelto":   returned,
			"Estado":     string(loan.Status),
			"Valoracion": rating,
		})
	}
	return s.render(dataset, format, "prestamos", "Registro de préstamos")
}

// ExportStudents renders the roster in the requested format.
func (s *ExportService) ExportStudents(ctx context.Context, format string) ([]byte, string, error) {
	students, err := s.students.List(ctx, "")
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	dataset := export.Dataset{Headers: []string{"ID", "Nombre", "Curso", "Alta"}}
	for _, student := range students {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"ID":     student.ID,
			"Nombre": student.Name,
			"Curso":  student.Course,
			"Alta":   student.RegisteredAt.Format("2006-01-02"),
		})
	}
	return s.render(dataset, format, "estudiantes", "Directorio de estudiantes")
}

// ImportBooks bulk-loads catalog rows. Duplicates against the existing
// catalog and within the file are skipped on a lower-cased title plus author
// key; rows with unknown stage or genre are rejected row by row.
func (s *ExportService) ImportBooks(ctx context.Context, r io.Reader) (*dto.ImportSummary, error) {
	dataset, err := s.importer.Parse(r)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "could not parse uploaded file")
	}

	existing, err := s.books.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list books")
	}
	seen := map[string]bool{}
	for _, book := range existing {
		seen[bookKey(book.Title, book.Author)] = true
	}

	summary := &dto.ImportSummary{}
	for idx, row := range dataset.Rows {
		line := idx + 2
		title := export.Field(row, "Titulo")
		author := export.Field(row, "Autor")
		if title == "" || author == "" {
			summary.Skipped++
			summary.Errors = append(summary.Errors, fmt.Sprintf("fila %d: título y autor son obligatorios", line))
			continue
		}
		key := bookKey(title, author)
		if seen[key] {
			summary.Skipped++
			continue
		}

		stage := models.ParseStage(export.Field(row, "Etapa"))
		if stage == models.StageUnknown {
			summary.Skipped++
			summary.Errors = append(summary.Errors, fmt.Sprintf("fila %d: etapa no reconocida", line))
			continue
		}
		genre := models.ParseGenre(export.Field(row, "Genero"))
		if genre == models.GenreUnknown {
			summary.Skipped++
			summary.Errors = append(summary.Errors, fmt.Sprintf("fila %d: género no reconocido", line))
			continue
		}

		book := &models.Book{
			Title:  title,
			Author: author,
			Stage:  stage,
			Genre:  genre,
			Age:    parseIntField(export.Field(row, "Edad")),
			Column: parseOptionalInt(export.Field(row, "Columna")),
			Shelf:  parseOptionalInt(export.Field(row, "Estante")),
		}
		if err := s.books.Create(ctx, book); err != nil {
			summary.Skipped++
			summary.Errors = append(summary.Errors, fmt.Sprintf("fila %d: %v", line, err))
			continue
		}
		seen[key] = true
		summary.Imported++
	}

	if summary.Imported > 0 {
		s.invalidateDashboards(ctx)
	}
	s.logger.Info("book import finished",
		zap.Int("imported", summary.Imported),
		zap.Int("skipped", summary.Skipped))
	return summary, nil
}

// ImportStudents bulk-loads roster rows deduplicating on normalized name.
func (s *ExportService) ImportStudents(ctx context.Context, r io.Reader) (*dto.ImportSummary, error) {
	dataset, err := s.importer.Parse(r)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "could not parse uploaded file")
	}

	summary := &dto.ImportSummary{}
	seen := map[string]bool{}
	for idx, row := range dataset.Rows {
		line := idx + 2
		name := export.Field(row, "Nombre")
		course := export.Field(row, "Curso")
		if name == "" {
			summary.Skipped++
			summary.Errors = append(summary.Errors, fmt.Sprintf("fila %d: el nombre es obligatorio", line))
			continue
		}
		key := models.StudentKey(name)
		if seen[key] {
			summary.Skipped++
			continue
		}
		exists, err := s.students.ExistsByName(ctx, name, "")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student name")
		}
		if exists {
			seen[key] = true
			summary.Skipped++
			continue
		}

		student := &models.Student{Name: name, Course: course}
		if err := s.students.Create(ctx, student); err != nil {
			summary.Skipped++
			summary.Errors = append(summary.Errors, fmt.Sprintf("fila %d: %v", line, err))
			continue
		}
		seen[key] = true
		summary.Imported++
	}

	if summary.Imported > 0 {
		s.invalidateDashboards(ctx)
	}
	s.logger.Info("student import finished",
		zap.Int("imported", summary.Imported),
		zap.Int("skipped", summary.Skipped))
	return summary, nil
}

func (s *ExportService) render(dataset export.Dataset, format, name, title string) ([]byte, string, error) {
	stamp := s.now().UTC().Format("20060102")
	switch strings.ToLower(format) {
	case "", "csv":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, fmt.Sprintf("%s_%s.csv", name, stamp), nil
	case "pdf":
		payload, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, fmt.Sprintf("%s_%s.pdf", name, stamp), nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

func (s *ExportService) invalidateDashboards(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "dashboard:*"); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}

func bookKey(title, author string) string {
	return strings.ToLower(strings.TrimSpace(title)) + "|" + strings.ToLower(strings.TrimSpace(author))
}

func intOrEmpty(value *int) string {
	if value == nil {
		return ""
	}
	return strconv.Itoa(*value)
}

func parseIntField(raw string) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return value
}

func parseOptionalInt(raw string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &value
}
