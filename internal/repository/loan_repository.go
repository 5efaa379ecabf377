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

const loanColumns = `id, book_id, book_title, student_name, course, loan_date, due_date, return_date,
        condition_on_loan, condition_on_return, status, rating`

// LoanRepository manages persistence for the circulation ledger. Ledger rows
// are append-mostly: the only mutation after insert is the return closure.
type LoanRepository struct {
	db *sqlx.DB
}

// NewLoanRepository constructs a LoanRepository.
func NewLoanRepository(db *sqlx.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

func (r *LoanRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a new ledger entry, optionally inside a transaction.
func (r *LoanRepository) Create(ctx context.Context, exec sqlx.ExtContext, loan *models.Loan) error {
	if loan.ID == "" {
		loan.ID = uuid.NewString()
	}
	if loan.LoanDate.IsZero() {
		loan.LoanDate = time.Now().UTC()
	}
	if loan.Status == "" {
		loan.Status = models.LoanStatusActive
	}
	const query = `INSERT INTO loans (id, book_id, book_title, student_name, course, loan_date, due_date, return_date,
        condition_on_loan, condition_on_return, status, rating)
        VALUES (:id, :book_id, :book_title, :student_name, :course, :loan_date, :due_date, :return_date,
        :condition_on_loan, :condition_on_return, :status, :rating)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, loan); err != nil {
		return fmt.Errorf("create loan: %w", err)
	}
	return nil
}

// FindByID fetches a ledger entry, optionally inside a transaction.
func (r *LoanRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Loan, error) {
	query := fmt.Sprintf("SELECT %s FROM loans WHERE id = $1", loanColumns)
	var loan models.Loan
	if err := sqlx.GetContext(ctx, r.exec(exec), &loan, query, id); err != nil {
		return nil, err
	}
	return &loan, nil
}

// MarkReturned closes a loan with its return details.
func (r *LoanRepository) MarkReturned(ctx context.Context, exec sqlx.ExtContext, loan *models.Loan) error {
	const query = `UPDATE loans SET return_date = :return_date, condition_on_return = :condition_on_return,
        status = :status, rating = :rating WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, loan); err != nil {
		return fmt.Errorf("mark loan returned: %w", err)
	}
	return nil
}

// List returns ledger entries matching the filters, most recent first.
func (r *LoanRepository) List(ctx context.Context, filter models.LoanFilter) ([]models.Loan, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(student_name) LIKE $%d OR LOWER(book_title) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if status := strings.ToUpper(filter.Status); status == string(models.LoanStatusActive) || status == string(models.LoanStatusReturned) {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, status)
	}

	where := strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM loans WHERE %s ORDER BY loan_date DESC LIMIT %d OFFSET %d",
		loanColumns, where, size, offset)
	var loans []models.Loan
	if err := r.db.SelectContext(ctx, &loans, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list loans: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM loans WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count loans: %w", err)
	}
	return loans, total, nil
}

// ListAll returns the full ledger snapshot for aggregation passes.
func (r *LoanRepository) ListAll(ctx context.Context) ([]models.Loan, error) {
	query := fmt.Sprintf("SELECT %s FROM loans ORDER BY loan_date DESC", loanColumns)
	var loans []models.Loan
	if err := r.db.SelectContext(ctx, &loans, query); err != nil {
		return nil, fmt.Errorf("list all loans: %w", err)
	}
	return loans, nil
}

// ListByStudent returns a borrower's history keyed by normalized name.
func (r *LoanRepository) ListByStudent(ctx context.Context, studentKey string) ([]models.Loan, error) {
	query := fmt.Sprintf("SELECT %s FROM loans WHERE LOWER(TRIM(student_name)) = $1 ORDER BY loan_date DESC", loanColumns)
	var loans []models.Loan
	if err := r.db.SelectContext(ctx, &loans, query, studentKey); err != nil {
		return nil, fmt.Errorf("list loans by student: %w", err)
	}
	return loans, nil
}
