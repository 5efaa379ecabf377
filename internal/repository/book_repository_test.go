package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogvapps/biblioclasificador/internal/models"
)

func newBookMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func bookMockColumns() []string {
	return []string{
		"id", "title", "author", "stage", "genre", "age", "cover_image", "shelf_column", "shelf_number",
		"synopsis", "added_at", "current_loan_id", "rating", "total_ratings", "reservation_student", "reservation_at",
	}
}

func TestBookRepositoryListParsesUnknownStage(t *testing.T) {
	db, mock, cleanup := newBookMock(t)
	defer cleanup()
	repo := NewBookRepository(db)

	rows := sqlmock.NewRows(bookMockColumns()).
		AddRow("b1", "Platero y yo", "Juan Ramón Jiménez", "Etapa retirada", "Poesía / Teatro", 10,
			nil, nil, nil, nil, time.Now(), nil, 4.5, 2, nil, nil)
	mock.ExpectQuery("SELECT (.+) FROM books WHERE 1=1 ORDER BY added_at DESC LIMIT 24 OFFSET 0").
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM books WHERE 1=1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	books, total, err := repo.List(context.Background(), models.BookFilter{})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, models.StageUnknown, books[0].Stage)
	assert.Equal(t, models.GenrePoesia, books[0].Genre)
}

func TestBookRepositoryListFiltersByGroupAndAvailability(t *testing.T) {
	db, mock, cleanup := newBookMock(t)
	defer cleanup()
	repo := NewBookRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM books WHERE 1=1 AND stage IN \(\$1, \$2, \$3\) AND current_loan_id IS NULL`).
		WithArgs(string(models.StagePrimariaInicial), string(models.StagePrimariaMedio), string(models.StagePrimariaSuperior)).
		WillReturnRows(sqlmock.NewRows(bookMockColumns()))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM books`).
		WithArgs(string(models.StagePrimariaInicial), string(models.StagePrimariaMedio), string(models.StagePrimariaSuperior)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	books, total, err := repo.List(context.Background(), models.BookFilter{
		StageGroup:   models.StageGroupPrimaria,
		Availability: "AVAILABLE",
	})
	require.NoError(t, err)
	assert.Empty(t, books)
	assert.Equal(t, 0, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryFindByIDFoldsReservation(t *testing.T) {
	db, mock, cleanup := newBookMock(t)
	defer cleanup()
	repo := NewBookRepository(db)

	reservedAt := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(bookMockColumns()).
		AddRow("b1", "El principito", "Antoine de Saint-Exupéry", string(models.StagePrimariaMedio),
			string(models.GenreNovela), 9, nil, 3, 5, nil, time.Now(), "loan-1", 0.0, 0, "Lucía", reservedAt)
	mock.ExpectQuery("SELECT (.+) FROM books WHERE id = \\$1").
		WithArgs("b1").
		WillReturnRows(rows)

	book, err := repo.FindByID(context.Background(), nil, "b1")
	require.NoError(t, err)
	require.NotNil(t, book.Reservation)
	assert.Equal(t, "Lucía", book.Reservation.StudentName)
	assert.Equal(t, reservedAt, book.Reservation.ReservedAt)
	assert.Equal(t, models.StatusLoanedReserved, book.CirculationStatus())
}

func TestBookRepositoryCreateAssignsDefaults(t *testing.T) {
	db, mock, cleanup := newBookMock(t)
	defer cleanup()
	repo := NewBookRepository(db)

	mock.ExpectExec("INSERT INTO books").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	book := &models.Book{Title: "Matilda", Author: "Roald Dahl", Stage: models.StagePrimariaMedio, Genre: models.GenreNovela, Age: 9}
	err := repo.Create(context.Background(), book)
	require.NoError(t, err)
	assert.NotEmpty(t, book.ID)
	assert.False(t, book.AddedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryClaim(t *testing.T) {
	db, mock, cleanup := newBookMock(t)
	defer cleanup()
	repo := NewBookRepository(db)

	mock.ExpectExec("UPDATE books SET current_loan_id = \\$2, reservation_student = NULL, reservation_at = NULL").
		WithArgs("b1", "loan-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	claimed, err := repo.Claim(context.Background(), nil, "b1", "loan-1")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryClaimAlreadyLent(t *testing.T) {
	db, mock, cleanup := newBookMock(t)
	defer cleanup()
	repo := NewBookRepository(db)

	mock.ExpectExec("UPDATE books SET current_loan_id = \\$2, reservation_student = NULL, reservation_at = NULL").
		WithArgs("b1", "loan-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	claimed, err := repo.Claim(context.Background(), nil, "b1", "loan-2")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryReleaseToleratesMissingBook(t *testing.T) {
	db, mock, cleanup := newBookMock(t)
	defer cleanup()
	repo := NewBookRepository(db)

	mock.ExpectExec("UPDATE books SET current_loan_id = NULL WHERE id = \\$1 AND current_loan_id = \\$2").
		WithArgs("gone", "loan-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Release(context.Background(), nil, "gone", "loan-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
