package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ogvapps/biblioclasificador/internal/dto"
	"github.com/ogvapps/biblioclasificador/internal/models"
	appErrors "github.com/ogvapps/biblioclasificador/pkg/errors"
)

type circulationBookRepository interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Book, error)
	Claim(ctx context.Context, exec sqlx.ExtContext, bookID, loanID string) (bool, error)
	Release(ctx context.Context, exec sqlx.ExtContext, bookID, loanID string) error
	ApplyRating(ctx context.Context, exec sqlx.ExtContext, bookID string, rating float64, totalRatings int) error
	SetReservation(ctx context.Context, bookID, studentName string, reservedAt time.Time) error
	ClearReservation(ctx context.Context, bookID string) error
}

type circulationLoanRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, loan *models.Loan) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Loan, error)
	MarkReturned(ctx context.Context, exec sqlx.ExtContext, loan *models.Loan) error
	List(ctx context.Context, filter models.LoanFilter) ([]models.Loan, int, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// CirculationService runs the lending lifecycle: lend, return, reserve and
// cancel. Lend and return mutate book and ledger together inside one
// transaction so the loan pointer and the ledger never diverge.
type CirculationService struct {
	books     circulationBookRepository
	loans     circulationLoanRepository
	tx        txProvider
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time

	loanPeriod time.Duration
}

// CirculationServiceParams groups constructor dependencies.
type CirculationServiceParams struct {
	Books      circulationBookRepository
	Loans      circulationLoanRepository
	Tx         txProvider
	Cache      *CacheService
	Metrics    *MetricsService
	Validator  *validator.Validate
	Logger     *zap.Logger
	LoanPeriod time.Duration
}

// NewCirculationService constructs a CirculationService with sane defaults.
func NewCirculationService(params CirculationServiceParams) *CirculationService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	loanPeriod := params.LoanPeriod
	if loanPeriod <= 0 {
		loanPeriod = 14 * 24 * time.Hour
	}
	return &CirculationService{
		books:      params.Books,
		loans:      params.Loans,
		tx:         params.Tx,
		cache:      params.Cache,
		metrics:    params.Metrics,
		validator:  validate,
		logger:     logger,
		now:        time.Now,
		loanPeriod: loanPeriod,
	}
}

// Lend opens a loan on a free book. The reservation slot is cleared no matter
// who it was held for: the librarian handing the book over decides.
func (s *CirculationService) Lend(ctx context.Context, bookID string, req dto.LendRequest) (*models.Loan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lend payload")
	}
	condition, ok := models.ParseCondition(req.Condition)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown book condition")
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	book, err := s.books.FindByID(ctx, tx, bookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "book not found")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load book")
		return nil, err
	}
	if book.OnLoan() {
		err = appErrors.Clone(appErrors.ErrConflict, "book is already on loan")
		return nil, err
	}

	loanDate := s.now().UTC()
	if req.LoanDate != nil {
		loanDate = req.LoanDate.UTC()
	}
	dueDate := loanDate.Add(s.loanPeriod)
	if req.DueDate != nil {
		dueDate = req.DueDate.UTC()
	}

	loan := &models.Loan{
		BookID:          book.ID,
		BookTitle:       book.Title,
		StudentName:     req.StudentName,
		Course:          req.Course,
		LoanDate:        loanDate,
		DueDate:         dueDate,
		ConditionOnLoan: condition,
		Status:          models.LoanStatusActive,
	}
	if err = s.loans.Create(ctx, tx, loan); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create loan")
		return nil, err
	}

	claimed, claimErr := s.books.Claim(ctx, tx, book.ID, loan.ID)
	if claimErr != nil {
		err = appErrors.Wrap(claimErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to claim book")
		return nil, err
	}
	if !claimed {
		err = appErrors.Clone(appErrors.ErrConflict, "book is already on loan")
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit lend transaction")
		return nil, err
	}

	s.metrics.RecordCirculation("lend")
	s.invalidateDashboards(ctx)
	s.logger.Info("loan opened",
		zap.String("loan_id", loan.ID),
		zap.String("book_id", book.ID),
		zap.String("student", loan.StudentName))
	return loan, nil
}

// Return closes an active loan and folds the optional rating into the book's
// running average. The book update is best effort: a loan whose book was
// deleted mid-flight still closes cleanly.
func (s *CirculationService) Return(ctx context.Context, loanID string, req dto.ReturnRequest) (*models.Loan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid return payload")
	}
	condition, ok := models.ParseCondition(req.Condition)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown book condition")
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	loan, err := s.loans.FindByID(ctx, tx, loanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "loan not found")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load loan")
		return nil, err
	}
	if loan.Status != models.LoanStatusActive {
		err = appErrors.Clone(appErrors.ErrInvalidState, "loan is already returned")
		return nil, err
	}

	returnDate := s.now().UTC()
	if req.ReturnDate != nil {
		returnDate = req.ReturnDate.UTC()
	}
	loan.ReturnDate = &returnDate
	loan.ConditionOnReturn = &condition
	loan.Status = models.LoanStatusReturned
	loan.Rating = req.Rating

	if err = s.loans.MarkReturned(ctx, tx, loan); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close loan")
		return nil, err
	}

	if err = s.books.Release(ctx, tx, loan.BookID, loan.ID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to release book")
		return nil, err
	}

	if req.Rating != nil {
		if ratingErr := s.applyRating(ctx, tx, loan.BookID, *req.Rating); ratingErr != nil {
			err = ratingErr
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit return transaction")
		return nil, err
	}

	s.metrics.RecordCirculation("return")
	s.invalidateDashboards(ctx)
	s.logger.Info("loan closed",
		zap.String("loan_id", loan.ID),
		zap.String("book_id", loan.BookID))
	return loan, nil
}

// ListLoans returns ledger entries matching the filter, most recent first.
func (s *CirculationService) ListLoans(ctx context.Context, filter models.LoanFilter) ([]models.Loan, *models.Pagination, error) {
	loans, total, err := s.loans.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list loans")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 20
	}
	return loans, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Reserve overwrites the book's single reservation slot. Reserving an
// available book is allowed: the slot just flags the next borrower.
func (s *CirculationService) Reserve(ctx context.Context, bookID string, req dto.ReserveRequest) (*models.Book, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reserve payload")
	}

	book, err := s.books.FindByID(ctx, nil, bookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "book not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load book")
	}

	reservedAt := s.now().UTC()
	if err := s.books.SetReservation(ctx, book.ID, req.StudentName, reservedAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set reservation")
	}
	book.Reservation = &models.Reservation{StudentName: req.StudentName, ReservedAt: reservedAt}

	s.metrics.RecordCirculation("reserve")
	s.invalidateDashboards(ctx)
	return book, nil
}

// CancelReservation empties the slot. Cancelling an empty slot is a no-op.
func (s *CirculationService) CancelReservation(ctx context.Context, bookID string) (*models.Book, error) {
	book, err := s.books.FindByID(ctx, nil, bookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "book not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load book")
	}

	if err := s.books.ClearReservation(ctx, book.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear reservation")
	}
	book.Reservation = nil

	s.metrics.RecordCirculation("cancel_reservation")
	s.invalidateDashboards(ctx)
	return book, nil
}

// applyRating recomputes the running average. A missing book means it was
// deleted while the loan was out; the rating is simply dropped.
func (s *CirculationService) applyRating(ctx context.Context, tx *sqlx.Tx, bookID string, rating int) error {
	book, err := s.books.FindByID(ctx, tx, bookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("rating dropped for deleted book", zap.String("book_id", bookID))
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load book for rating")
	}

	newTotal := book.TotalRatings + 1
	newAverage := (book.Rating*float64(book.TotalRatings) + float64(rating)) / float64(newTotal)
	newAverage = math.Round(newAverage*100) / 100

	if err := s.books.ApplyRating(ctx, tx, book.ID, newAverage, newTotal); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store rating")
	}
	return nil
}

func (s *CirculationService) invalidateDashboards(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "dashboard:*"); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}
