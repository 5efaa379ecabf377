package dto

import "time"

// LendRequest captures payload to open a loan on a book. LoanDate may sit in
// the past so a paper ledger can be transcribed after the fact; it defaults
// to the server clock when omitted.
type LendRequest struct {
	StudentName string     `json:"student_name" validate:"required"`
	Course      string     `json:"course" validate:"required"`
	LoanDate    *time.Time `json:"loan_date,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Condition   string     `json:"condition" validate:"required"`
}

// ReturnRequest captures payload to close a loan. ReturnDate defaults to the
// server clock when omitted. Rating is optional and single-shot: it is folded
// into the book's running average exactly once.
type ReturnRequest struct {
	ReturnDate *time.Time `json:"return_date,omitempty"`
	Condition  string     `json:"condition" validate:"required"`
	Rating     *int       `json:"rating,omitempty" validate:"omitempty,gte=1,lte=5"`
}

// ReserveRequest captures payload to place the single reservation slot.
type ReserveRequest struct {
	StudentName string `json:"student_name" validate:"required"`
}
