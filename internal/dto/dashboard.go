package dto

import (
	"time"

	"github.com/ogvapps/biblioclasificador/internal/models"
)

// DashboardResponse is the aggregated library dashboard payload. It is
// recomputed from full catalog and ledger snapshots on every request unless a
// cached copy is still valid.
type DashboardResponse struct {
	KPIs              KPISection         `json:"kpis"`
	StageDistribution []StageBucket      `json:"stage_distribution"`
	GenreDistribution []GenreBucket      `json:"genre_distribution"`
	TopBooks          []TopBookEntry     `json:"top_books"`
	TopReaders        []TopReaderEntry   `json:"top_readers"`
	OverdueLoans      []OverdueLoanEntry `json:"overdue_loans"`
	GeneratedAt       time.Time          `json:"generated_at"`
}

// KPISection collects the headline counters. Borrowers counts distinct
// normalized student names over the whole ledger, registered or not.
type KPISection struct {
	TotalBooks     int `json:"total_books"`
	AvailableBooks int `json:"available_books"`
	ActiveLoans    int `json:"active_loans"`
	OverdueLoans   int `json:"overdue_loans"`
	ReservedBooks  int `json:"reserved_books"`
	TotalStudents  int `json:"total_students"`
	TotalLoans     int `json:"total_loans"`
	Borrowers      int `json:"borrowers"`
}

// StageBucket counts books per educational stage, including the explicit
// unclassified bucket for values no longer recognized.
type StageBucket struct {
	Stage      models.EducationalStage `json:"stage"`
	Count      int                     `json:"count"`
	Percentage float64                 `json:"percentage"`
}

// GenreBucket counts books per literary genre.
type GenreBucket struct {
	Genre      models.LiteraryGenre `json:"genre"`
	Count      int                  `json:"count"`
	Percentage float64              `json:"percentage"`
}

// TopBookEntry ranks a book by accumulated loans. Title and Author fall back
// to placeholders when the book was deleted after its loans were recorded.
type TopBookEntry struct {
	BookID string `json:"book_id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Loans  int    `json:"loans"`
}

// TopReaderEntry ranks a borrower by accumulated loans.
type TopReaderEntry struct {
	Name   string `json:"name"`
	Course string `json:"course"`
	Loans  int    `json:"loans"`
}

// OverdueLoanEntry is a currently overdue ledger row for the alerts panel.
type OverdueLoanEntry struct {
	LoanID      string    `json:"loan_id"`
	BookTitle   string    `json:"book_title"`
	StudentName string    `json:"student_name"`
	Course      string    `json:"course"`
	DueDate     time.Time `json:"due_date"`
	DaysOverdue int       `json:"days_overdue"`
}

// StudentProfileResponse aggregates one borrower's circulation history.
type StudentProfileResponse struct {
	Name        string        `json:"name"`
	Course      string        `json:"course"`
	Registered  bool          `json:"registered"`
	ActiveLoans []models.Loan `json:"active_loans"`
	History     []models.Loan `json:"history"`
	TotalLoans  int           `json:"total_loans"`
	Overdue     int           `json:"overdue"`
}
