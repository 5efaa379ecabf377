package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogvapps/biblioclasificador/internal/dto"
	"github.com/ogvapps/biblioclasificador/internal/models"
	appErrors "github.com/ogvapps/biblioclasificador/pkg/errors"
)

type fakeBookRepo struct {
	books map[string]*models.Book
}

func (m *fakeBookRepo) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Book, error) {
	book, ok := m.books[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *book
	return &copied, nil
}

func (m *fakeBookRepo) Claim(ctx context.Context, exec sqlx.ExtContext, bookID, loanID string) (bool, error) {
	book, ok := m.books[bookID]
	if !ok || book.CurrentLoanID != nil {
		return false, nil
	}
	book.CurrentLoanID = &loanID
	book.Reservation = nil
	return true, nil
}

func (m *fakeBookRepo) Release(ctx context.Context, exec sqlx.ExtContext, bookID, loanID string) error {
	book, ok := m.books[bookID]
	if !ok {
		return nil
	}
	if book.CurrentLoanID != nil && *book.CurrentLoanID == loanID {
		book.CurrentLoanID = nil
	}
	return nil
}

func (m *fakeBookRepo) ApplyRating(ctx context.Context, exec sqlx.ExtContext, bookID string, rating float64, totalRatings int) error {
	book, ok := m.books[bookID]
	if !ok {
		return sql.ErrNoRows
	}
	book.Rating = rating
	book.TotalRatings = totalRatings
	return nil
}

func (m *fakeBookRepo) SetReservation(ctx context.Context, bookID, studentName string, reservedAt time.Time) error {
	book, ok := m.books[bookID]
	if !ok {
		return sql.ErrNoRows
	}
	book.Reservation = &models.Reservation{StudentName: studentName, ReservedAt: reservedAt}
	return nil
}

func (m *fakeBookRepo) ClearReservation(ctx context.Context, bookID string) error {
	book, ok := m.books[bookID]
	if !ok {
		return sql.ErrNoRows
	}
	book.Reservation = nil
	return nil
}

type fakeLoanRepo struct {
	loans   map[string]*models.Loan
	counter int
}

func (m *fakeLoanRepo) Create(ctx context.Context, exec sqlx.ExtContext, loan *models.Loan) error {
	if m.loans == nil {
		m.loans = make(map[string]*models.Loan)
	}
	m.counter++
	if loan.ID == "" {
		loan.ID = fmt.Sprintf("loan-%d", m.counter)
	}
	copied := *loan
	m.loans[loan.ID] = &copied
	return nil
}

func (m *fakeLoanRepo) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Loan, error) {
	loan, ok := m.loans[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *loan
	return &copied, nil
}

func (m *fakeLoanRepo) MarkReturned(ctx context.Context, exec sqlx.ExtContext, loan *models.Loan) error {
	copied := *loan
	m.loans[loan.ID] = &copied
	return nil
}

func (m *fakeLoanRepo) List(ctx context.Context, filter models.LoanFilter) ([]models.Loan, int, error) {
	loans := make([]models.Loan, 0, len(m.loans))
	for _, loan := range m.loans {
		loans = append(loans, *loan)
	}
	return loans, len(loans), nil
}

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (*txProviderMock, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

func availableBook(id, title string) *models.Book {
	return &models.Book{
		ID:     id,
		Title:  title,
		Author: "Autor",
		Stage:  models.StagePrimariaMedio,
		Genre:  models.GenreNovela,
		Age:    9,
	}
}

func newCirculationService(t *testing.T, books *fakeBookRepo, loans *fakeLoanRepo) (*CirculationService, sqlmock.Sqlmock) {
	tx, mock := newTxProviderMock(t)
	svc := NewCirculationService(CirculationServiceParams{
		Books: books,
		Loans: loans,
		Tx:    tx,
	})
	return svc, mock
}

func lendReq(student string) dto.LendRequest {
	return dto.LendRequest{StudentName: student, Course: "4ºA", Condition: string(models.ConditionGood)}
}

func returnReq(rating *int) dto.ReturnRequest {
	return dto.ReturnRequest{Condition: string(models.ConditionGood), Rating: rating}
}

func intPtr(v int) *int { return &v }

func TestCirculationLendOpensLoanAndClaimsBook(t *testing.T) {
	books := &fakeBookRepo{books: map[string]*models.Book{"b1": availableBook("b1", "Matilda")}}
	loans := &fakeLoanRepo{}
	svc, mock := newCirculationService(t, books, loans)
	mock.ExpectBegin()
	mock.ExpectCommit()

	loan, err := svc.Lend(context.Background(), "b1", lendReq("Lucía"))
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusActive, loan.Status)
	assert.Equal(t, "Matilda", loan.BookTitle)
	assert.Equal(t, loan.LoanDate.Add(14*24*time.Hour), loan.DueDate)
	require.NotNil(t, books.books["b1"].CurrentLoanID)
	assert.Equal(t, loan.ID, *books.books["b1"].CurrentLoanID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCirculationLendAcceptsBackdatedLoanDate(t *testing.T) {
	books := &fakeBookRepo{books: map[string]*models.Book{"b1": availableBook("b1", "Matilda")}}
	loans := &fakeLoanRepo{}
	svc, mock := newCirculationService(t, books, loans)
	svc.now = func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) }
	mock.ExpectBegin()
	mock.ExpectCommit()

	loanDate := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	req := lendReq("Lucía")
	req.LoanDate = &loanDate

	loan, err := svc.Lend(context.Background(), "b1", req)
	require.NoError(t, err)
	assert.Equal(t, loanDate, loan.LoanDate)
	assert.Equal(t, loanDate.Add(14*24*time.Hour), loan.DueDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCirculationReturnAcceptsBackdatedReturnDate(t *testing.T) {
	books := &fakeBookRepo{books: map[string]*models.Book{"b1": availableBook("b1", "Matilda")}}
	loans := &fakeLoanRepo{}
	svc, mock := newCirculationService(t, books, loans)
	svc.now = func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) }
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	loanDate := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	lend := lendReq("Lucía")
	lend.LoanDate = &loanDate
	loan, err := svc.Lend(context.Background(), "b1", lend)
	require.NoError(t, err)

	returnDate := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	ret := returnReq(nil)
	ret.ReturnDate = &returnDate

	returned, err := svc.Return(context.Background(), loan.ID, ret)
	require.NoError(t, err)
	require.NotNil(t, returned.ReturnDate)
	assert.Equal(t, returnDate, *returned.ReturnDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCirculationLendRejectsLoanedBook(t *testing.T) {
	loanID := "loan-9"
	book := availableBook("b1", "Matilda")
	book.CurrentLoanID = &loanID
	books := &fakeBookRepo{books: map[string]*models.Book{"b1": book}}
	svc, mock := newCirculationService(t, books, &fakeLoanRepo{})
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Lend(context.Background(), "b1", lendReq("Lucía"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCirculationLendClearsReservationForAnyHolder(t *testing.T) {
	book := availableBook("b1", "Matilda")
	book.Reservation = &models.Reservation{StudentName: "Marcos", ReservedAt: time.Now()}
	books := &fakeBookRepo{books: map[string]*models.Book{"b1": book}}
	svc, mock := newCirculationService(t, books, &fakeLoanRepo{})
	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := svc.Lend(context.Background(), "b1", lendReq("Lucía"))
	require.NoError(t, err)
	assert.Nil(t, books.books["b1"].Reservation)
}

func TestCirculationLendMissingBook(t *testing.T) {
	svc, mock := newCirculationService(t, &fakeBookRepo{books: map[string]*models.Book{}}, &fakeLoanRepo{})
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Lend(context.Background(), "missing", lendReq("Lucía"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCirculationReturnClosesLoanAndFreesBook(t *testing.T) {
	books := &fakeBookRepo{books: map[string]*models.Book{"b1": availableBook("b1", "Matilda")}}
	loans := &fakeLoanRepo{}
	svc, mock := newCirculationService(t, books, loans)
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	loan, err := svc.Lend(context.Background(), "b1", lendReq("Lucía"))
	require.NoError(t, err)

	returned, err := svc.Return(context.Background(), loan.ID, returnReq(nil))
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusReturned, returned.Status)
	require.NotNil(t, returned.ReturnDate)
	assert.Nil(t, books.books["b1"].CurrentLoanID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCirculationReturnRejectsClosedLoan(t *testing.T) {
	books := &fakeBookRepo{books: map[string]*models.Book{"b1": availableBook("b1", "Matilda")}}
	loans := &fakeLoanRepo{}
	svc, mock := newCirculationService(t, books, loans)
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectRollback()

	loan, err := svc.Lend(context.Background(), "b1", lendReq("Lucía"))
	require.NoError(t, err)
	_, err = svc.Return(context.Background(), loan.ID, returnReq(nil))
	require.NoError(t, err)

	_, err = svc.Return(context.Background(), loan.ID, returnReq(nil))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCirculationRatingSequenceAverages(t *testing.T) {
	books := &fakeBookRepo{books: map[string]*models.Book{"b1": availableBook("b1", "Matilda")}}
	loans := &fakeLoanRepo{}
	svc, mock := newCirculationService(t, books, loans)

	expected := []struct {
		rating  int
		average float64
		total   int
	}{
		{4, 4.0, 1},
		{2, 3.0, 2},
		{5, 3.67, 3},
	}
	for _, step := range expected {
		mock.ExpectBegin()
		mock.ExpectCommit()
		mock.ExpectBegin()
		mock.ExpectCommit()

		loan, err := svc.Lend(context.Background(), "b1", lendReq("Lucía"))
		require.NoError(t, err)
		_, err = svc.Return(context.Background(), loan.ID, returnReq(intPtr(step.rating)))
		require.NoError(t, err)

		assert.InDelta(t, step.average, books.books["b1"].Rating, 0.001)
		assert.Equal(t, step.total, books.books["b1"].TotalRatings)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCirculationReturnWithoutRatingKeepsAverage(t *testing.T) {
	book := availableBook("b1", "Matilda")
	book.Rating = 4.5
	book.TotalRatings = 2
	books := &fakeBookRepo{books: map[string]*models.Book{"b1": book}}
	loans := &fakeLoanRepo{}
	svc, mock := newCirculationService(t, books, loans)
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	loan, err := svc.Lend(context.Background(), "b1", lendReq("Lucía"))
	require.NoError(t, err)
	_, err = svc.Return(context.Background(), loan.ID, returnReq(nil))
	require.NoError(t, err)

	assert.InDelta(t, 4.5, books.books["b1"].Rating, 0.001)
	assert.Equal(t, 2, books.books["b1"].TotalRatings)
}

func TestCirculationReturnToleratesDeletedBook(t *testing.T) {
	books := &fakeBookRepo{books: map[string]*models.Book{"b1": availableBook("b1", "Matilda")}}
	loans := &fakeLoanRepo{}
	svc, mock := newCirculationService(t, books, loans)
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	loan, err := svc.Lend(context.Background(), "b1", lendReq("Lucía"))
	require.NoError(t, err)

	delete(books.books, "b1")

	returned, err := svc.Return(context.Background(), loan.ID, returnReq(intPtr(5)))
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusReturned, returned.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCirculationReserveAvailableBookAllowed(t *testing.T) {
	books := &fakeBookRepo{books: map[string]*models.Book{"b1": availableBook("b1", "Matilda")}}
	svc, _ := newCirculationService(t, books, &fakeLoanRepo{})

	book, err := svc.Reserve(context.Background(), "b1", dto.ReserveRequest{StudentName: "Marcos"})
	require.NoError(t, err)
	require.NotNil(t, book.Reservation)
	assert.Equal(t, "Marcos", book.Reservation.StudentName)
	assert.Equal(t, models.StatusAvailableReserved, book.CirculationStatus())
}

func TestCirculationReserveOverwritesSlot(t *testing.T) {
	book := availableBook("b1", "Matilda")
	book.Reservation = &models.Reservation{StudentName: "Marcos", ReservedAt: time.Now()}
	books := &fakeBookRepo{books: map[string]*models.Book{"b1": book}}
	svc, _ := newCirculationService(t, books, &fakeLoanRepo{})

	updated, err := svc.Reserve(context.Background(), "b1", dto.ReserveRequest{StudentName: "Lucía"})
	require.NoError(t, err)
	assert.Equal(t, "Lucía", updated.Reservation.StudentName)
	assert.Equal(t, "Lucía", books.books["b1"].Reservation.StudentName)
}

func TestCirculationCancelReservation(t *testing.T) {
	book := availableBook("b1", "Matilda")
	book.Reservation = &models.Reservation{StudentName: "Marcos", ReservedAt: time.Now()}
	books := &fakeBookRepo{books: map[string]*models.Book{"b1": book}}
	svc, _ := newCirculationService(t, books, &fakeLoanRepo{})

	updated, err := svc.CancelReservation(context.Background(), "b1")
	require.NoError(t, err)
	assert.Nil(t, updated.Reservation)
	assert.Nil(t, books.books["b1"].Reservation)
}

func TestCirculationFullLifecycle(t *testing.T) {
	books := &fakeBookRepo{books: map[string]*models.Book{"b1": availableBook("b1", "Matilda")}}
	loans := &fakeLoanRepo{}
	svc, mock := newCirculationService(t, books, loans)
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	first, err := svc.Lend(context.Background(), "b1", lendReq("Lucía"))
	require.NoError(t, err)
	_, err = svc.Return(context.Background(), first.ID, returnReq(intPtr(4)))
	require.NoError(t, err)

	_, err = svc.Reserve(context.Background(), "b1", dto.ReserveRequest{StudentName: "Marcos"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusAvailableReserved, books.books["b1"].CirculationStatus())

	second, err := svc.Lend(context.Background(), "b1", lendReq("Marcos"))
	require.NoError(t, err)
	assert.Nil(t, books.books["b1"].Reservation)
	assert.Equal(t, models.StatusLoaned, books.books["b1"].CirculationStatus())

	_, err = svc.Return(context.Background(), second.ID, returnReq(intPtr(2)))
	require.NoError(t, err)
	assert.Equal(t, models.StatusAvailable, books.books["b1"].CirculationStatus())
	assert.InDelta(t, 3.0, books.books["b1"].Rating, 0.001)
	assert.Equal(t, 2, books.books["b1"].TotalRatings)
	assert.NoError(t, mock.ExpectationsWereMet())
}
