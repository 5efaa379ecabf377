package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogvapps/biblioclasificador/internal/dto"
	"github.com/ogvapps/biblioclasificador/internal/models"
	appErrors "github.com/ogvapps/biblioclasificador/pkg/errors"
)

type mockBookRepo struct {
	books   map[string]models.Book
	deleted []string
}

func (m *mockBookRepo) List(ctx context.Context, filter models.BookFilter) ([]models.Book, int, error) {
	books := make([]models.Book, 0, len(m.books))
	for _, book := range m.books {
		books = append(books, book)
	}
	return books, len(books), nil
}

func (m *mockBookRepo) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Book, error) {
	if book, ok := m.books[id]; ok {
		return &book, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockBookRepo) Create(ctx context.Context, book *models.Book) error {
	if m.books == nil {
		m.books = make(map[string]models.Book)
	}
	if book.ID == "" {
		book.ID = "generated"
	}
	m.books[book.ID] = *book
	return nil
}

func (m *mockBookRepo) Update(ctx context.Context, book *models.Book) error {
	m.books[book.ID] = *book
	return nil
}

func (m *mockBookRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.books, id)
	return nil
}

func newBookService(repo *mockBookRepo) *BookService {
	return NewBookService(repo, nil, nil, nil, ShelfLayout{TotalColumns: 12, ShelvesPerColumn: 9})
}

func TestBookServiceCreate(t *testing.T) {
	repo := &mockBookRepo{}
	svc := newBookService(repo)

	column := 3
	shelf := 5
	book, err := svc.Create(context.Background(), dto.CreateBookRequest{
		Title:  "Matilda",
		Author: "Roald Dahl",
		Stage:  string(models.StagePrimariaMedio),
		Genre:  string(models.GenreNovela),
		Age:    9,
		Column: &column,
		Shelf:  &shelf,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, book.ID)
	assert.Equal(t, models.StagePrimariaMedio, book.Stage)
	assert.True(t, book.Shelvable())
}

func TestBookServiceCreateRejectsUnknownStage(t *testing.T) {
	svc := newBookService(&mockBookRepo{})

	_, err := svc.Create(context.Background(), dto.CreateBookRequest{
		Title:  "Matilda",
		Author: "Roald Dahl",
		Stage:  "Bachillerato",
		Genre:  string(models.GenreNovela),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestBookServiceCreateRejectsPlacementOutsideLayout(t *testing.T) {
	svc := newBookService(&mockBookRepo{})

	column := 13
	_, err := svc.Create(context.Background(), dto.CreateBookRequest{
		Title:  "Matilda",
		Author: "Roald Dahl",
		Stage:  string(models.StagePrimariaMedio),
		Genre:  string(models.GenreNovela),
		Column: &column,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestBookServiceUpdateKeepsCirculationFields(t *testing.T) {
	loanID := "loan-1"
	repo := &mockBookRepo{books: map[string]models.Book{"b1": {
		ID:            "b1",
		Title:         "Matilda",
		Author:        "Roald Dahl",
		Stage:         models.StagePrimariaMedio,
		Genre:         models.GenreNovela,
		CurrentLoanID: &loanID,
	}}}
	svc := newBookService(repo)

	title := "Matilda (edición ilustrada)"
	updated, err := svc.Update(context.Background(), "b1", dto.UpdateBookRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	require.NotNil(t, updated.CurrentLoanID)
	assert.Equal(t, loanID, *updated.CurrentLoanID)
}

func TestBookServiceDeleteMissing(t *testing.T) {
	svc := newBookService(&mockBookRepo{})

	err := svc.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestBookServiceDelete(t *testing.T) {
	repo := &mockBookRepo{books: map[string]models.Book{"b1": {ID: "b1", Title: "Matilda"}}}
	svc := newBookService(repo)

	err := svc.Delete(context.Background(), "b1")
	require.NoError(t, err)
	assert.Contains(t, repo.deleted, "b1")
}
