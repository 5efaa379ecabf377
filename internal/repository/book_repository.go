package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ogvapps/biblioclasificador/internal/models"
)

// bookRow is the scan shape for the books table. The reservation slot is
// stored flattened as two nullable columns and folded back into the model.
type bookRow struct {
	ID                 string     `db:"id"`
	Title              string     `db:"title"`
	Author             string     `db:"author"`
	Stage              string     `db:"stage"`
	Genre              string     `db:"genre"`
	Age                int        `db:"age"`
	CoverImage         *string    `db:"cover_image"`
	ShelfColumn        *int       `db:"shelf_column"`
	ShelfNumber        *int       `db:"shelf_number"`
	Synopsis           *string    `db:"synopsis"`
	AddedAt            time.Time  `db:"added_at"`
	CurrentLoanID      *string    `db:"current_loan_id"`
	Rating             float64    `db:"rating"`
	TotalRatings       int        `db:"total_ratings"`
	ReservationStudent *string    `db:"reservation_student"`
	ReservationAt      *time.Time `db:"reservation_at"`
}

func (row bookRow) toModel() models.Book {
	book := models.Book{
		ID:            row.ID,
		Title:         row.Title,
		Author:        row.Author,
		Stage:         models.ParseStage(row.Stage),
		Genre:         models.ParseGenre(row.Genre),
		Age:           row.Age,
		CoverImage:    row.CoverImage,
		Column:        row.ShelfColumn,
		Shelf:         row.ShelfNumber,
		Synopsis:      row.Synopsis,
		AddedAt:       row.AddedAt,
		CurrentLoanID: row.CurrentLoanID,
		Rating:        row.Rating,
		TotalRatings:  row.TotalRatings,
	}
	if row.ReservationStudent != nil && row.ReservationAt != nil {
		book.Reservation = &models.Reservation{
			StudentName: *row.ReservationStudent,
			ReservedAt:  *row.ReservationAt,
		}
	}
	return book
}

func fromModel(book *models.Book) bookRow {
	row := bookRow{
		ID:            book.ID,
		Title:         book.Title,
		Author:        book.Author,
		Stage:         string(book.Stage),
		Genre:         string(book.Genre),
		Age:           book.Age,
		CoverImage:    book.CoverImage,
		ShelfColumn:   book.Column,
		ShelfNumber:   book.Shelf,
		Synopsis:      book.Synopsis,
		AddedAt:       book.AddedAt,
		CurrentLoanID: book.CurrentLoanID,
		Rating:        book.Rating,
		TotalRatings:  book.TotalRatings,
	}
	if book.Reservation != nil {
		row.ReservationStudent = &book.Reservation.StudentName
		row.ReservationAt = &book.Reservation.ReservedAt
	}
	return row
}

const bookColumns = `id, title, author, stage, genre, age, cover_image, shelf_column, shelf_number, synopsis,
        added_at, current_loan_id, rating, total_ratings, reservation_student, reservation_at`

// BookRepository manages persistence for catalog entries.
type BookRepository struct {
	db *sqlx.DB
}

// NewBookRepository constructs a BookRepository.
func NewBookRepository(db *sqlx.DB) *BookRepository {
	return &BookRepository{db: db}
}

func (r *BookRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns books matching the provided filters with a total count.
func (r *BookRepository) List(ctx context.Context, filter models.BookFilter) ([]models.Book, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(author) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if stages := groupStages(filter.StageGroup); len(stages) > 0 {
		placeholders := make([]string, 0, len(stages))
		for _, stage := range stages {
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)+1))
			args = append(args, string(stage))
		}
		conditions = append(conditions, fmt.Sprintf("stage IN (%s)", strings.Join(placeholders, ", ")))
	}
	if filter.Genre != "" {
		conditions = append(conditions, fmt.Sprintf("genre = $%d", len(args)+1))
		args = append(args, filter.Genre)
	}
	switch strings.ToUpper(filter.Availability) {
	case "AVAILABLE":
		conditions = append(conditions, "current_loan_id IS NULL")
	case "LOANED":
		conditions = append(conditions, "current_loan_id IS NOT NULL")
	}

	where := strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"title":    "title",
		"author":   "author",
		"added_at": "added_at",
		"rating":   "rating",
		"status":   "(current_loan_id IS NOT NULL)",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok && filter.SortBy != "location" {
		column = "added_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	orderClause := fmt.Sprintf("%s %s", column, order)
	if filter.SortBy == "location" {
		orderClause = fmt.Sprintf("shelf_column %s, shelf_number %s", order, order)
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 24
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM books WHERE %s ORDER BY %s LIMIT %d OFFSET %d",
		bookColumns, where, orderClause, size, offset)

	var rows []bookRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list books: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM books WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count books: %w", err)
	}

	books := make([]models.Book, 0, len(rows))
	for _, row := range rows {
		books = append(books, row.toModel())
	}
	return books, total, nil
}

// ListAll returns the full catalog snapshot for aggregation passes.
func (r *BookRepository) ListAll(ctx context.Context) ([]models.Book, error) {
	query := fmt.Sprintf("SELECT %s FROM books ORDER BY added_at DESC", bookColumns)
	var rows []bookRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list all books: %w", err)
	}
	books := make([]models.Book, 0, len(rows))
	for _, row := range rows {
		books = append(books, row.toModel())
	}
	return books, nil
}

// FindByID fetches a book by ID, optionally inside a transaction.
func (r *BookRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Book, error) {
	query := fmt.Sprintf("SELECT %s FROM books WHERE id = $1", bookColumns)
	var row bookRow
	if err := sqlx.GetContext(ctx, r.exec(exec), &row, query, id); err != nil {
		return nil, err
	}
	book := row.toModel()
	return &book, nil
}

// Create inserts a new catalog entry.
func (r *BookRepository) Create(ctx context.Context, book *models.Book) error {
	if book.ID == "" {
		book.ID = uuid.NewString()
	}
	if book.AddedAt.IsZero() {
		book.AddedAt = time.Now().UTC()
	}
	row := fromModel(book)
	const query = `INSERT INTO books (id, title, author, stage, genre, age, cover_image, shelf_column, shelf_number, synopsis,
        added_at, current_loan_id, rating, total_ratings, reservation_student, reservation_at)
        VALUES (:id, :title, :author, :stage, :genre, :age, :cover_image, :shelf_column, :shelf_number, :synopsis,
        :added_at, :current_loan_id, :rating, :total_ratings, :reservation_student, :reservation_at)`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("create book: %w", err)
	}
	return nil
}

// Update rewrites the descriptive fields of a catalog entry. Circulation
// columns are owned by the lending flow and left untouched here.
func (r *BookRepository) Update(ctx context.Context, book *models.Book) error {
	row := fromModel(book)
	const query = `UPDATE books SET title = :title, author = :author, stage = :stage, genre = :genre, age = :age,
        cover_image = :cover_image, shelf_column = :shelf_column, shelf_number = :shelf_number, synopsis = :synopsis
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	return nil
}

// Delete removes a catalog entry. Ledger rows referencing it survive and keep
// their title snapshot.
func (r *BookRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM books WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	return nil
}

// Claim marks a book as lent under the given loan and clears any pending
// reservation in the same statement. The update is conditional on the book
// being free, so a concurrent second lend affects zero rows.
func (r *BookRepository) Claim(ctx context.Context, exec sqlx.ExtContext, bookID, loanID string) (bool, error) {
	const query = `UPDATE books SET current_loan_id = $2, reservation_student = NULL, reservation_at = NULL
        WHERE id = $1 AND current_loan_id IS NULL`
	result, err := r.exec(exec).ExecContext(ctx, query, bookID, loanID)
	if err != nil {
		return false, fmt.Errorf("claim book: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim book rows: %w", err)
	}
	return affected == 1, nil
}

// Release clears the loan pointer if it still references the given loan.
// Zero affected rows is not an error: the book may have been deleted while
// the loan was out.
func (r *BookRepository) Release(ctx context.Context, exec sqlx.ExtContext, bookID, loanID string) error {
	const query = `UPDATE books SET current_loan_id = NULL WHERE id = $1 AND current_loan_id = $2`
	if _, err := r.exec(exec).ExecContext(ctx, query, bookID, loanID); err != nil {
		return fmt.Errorf("release book: %w", err)
	}
	return nil
}

// ApplyRating overwrites the running average and counter.
func (r *BookRepository) ApplyRating(ctx context.Context, exec sqlx.ExtContext, bookID string, rating float64, totalRatings int) error {
	const query = `UPDATE books SET rating = $2, total_ratings = $3 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, bookID, rating, totalRatings); err != nil {
		return fmt.Errorf("apply rating: %w", err)
	}
	return nil
}

// SetReservation overwrites the single reservation slot.
func (r *BookRepository) SetReservation(ctx context.Context, bookID, studentName string, reservedAt time.Time) error {
	const query = `UPDATE books SET reservation_student = $2, reservation_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, bookID, studentName, reservedAt); err != nil {
		return fmt.Errorf("set reservation: %w", err)
	}
	return nil
}

// ClearReservation empties the reservation slot unconditionally.
func (r *BookRepository) ClearReservation(ctx context.Context, bookID string) error {
	const query = `UPDATE books SET reservation_student = NULL, reservation_at = NULL WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, bookID); err != nil {
		return fmt.Errorf("clear reservation: %w", err)
	}
	return nil
}

func groupStages(group models.StageGroup) []models.EducationalStage {
	switch group {
	case models.StageGroupInfantil:
		return []models.EducationalStage{models.StageInfantil}
	case models.StageGroupPrimaria:
		return []models.EducationalStage{models.StagePrimariaInicial, models.StagePrimariaMedio, models.StagePrimariaSuperior}
	case models.StageGroupSecundaria:
		return []models.EducationalStage{models.StageSecundaria}
	default:
		return nil
	}
}
