package models

import "time"

// LoanStatus is the lifecycle state of a ledger entry.
type LoanStatus string

const (
	LoanStatusActive   LoanStatus = "ACTIVE"
	LoanStatusReturned LoanStatus = "RETURNED"
)

// Loan is a circulation ledger entry. BookTitle is a snapshot taken at lend
// time so history survives book deletion; StudentName and Course are free-text
// snapshots, not foreign keys into the roster.
type Loan struct {
	ID                string         `db:"id" json:"id"`
	BookID            string         `db:"book_id" json:"book_id"`
	BookTitle         string         `db:"book_title" json:"book_title"`
	StudentName       string         `db:"student_name" json:"student_name"`
	Course            string         `db:"course" json:"course"`
	LoanDate          time.Time      `db:"loan_date" json:"loan_date"`
	DueDate           time.Time      `db:"due_date" json:"due_date"`
	ReturnDate        *time.Time     `db:"return_date" json:"return_date,omitempty"`
	ConditionOnLoan   BookCondition  `db:"condition_on_loan" json:"condition_on_loan"`
	ConditionOnReturn *BookCondition `db:"condition_on_return" json:"condition_on_return,omitempty"`
	Status            LoanStatus     `db:"status" json:"status"`
	Rating            *int           `db:"rating" json:"rating,omitempty"`
}

// Overdue reports whether the loan is active and past due. The comparison is
// date-only: both sides are truncated to midnight, and a loan due today is
// not overdue.
func (l *Loan) Overdue(now time.Time) bool {
	if l.Status != LoanStatusActive {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	due := time.Date(l.DueDate.Year(), l.DueDate.Month(), l.DueDate.Day(), 0, 0, 0, 0, now.Location())
	return due.Before(today)
}

// LoanFilter encapsulates allowed search parameters for listing loans.
type LoanFilter struct {
	Search   string
	Status   string
	Page     int
	PageSize int
}
