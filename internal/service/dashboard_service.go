package service

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ogvapps/biblioclasificador/internal/dto"
	"github.com/ogvapps/biblioclasificador/internal/models"
	appErrors "github.com/ogvapps/biblioclasificador/pkg/errors"
)

const (
	// UnknownBookTitle labels top-list rows whose book was deleted after its
	// loans were recorded.
	UnknownBookTitle  = "Libro desconocido"
	UnknownBookAuthor = "Autor desconocido"

	dashboardSummaryKey = "dashboard:summary"
	topListLimit        = 5
)

type dashboardBookRepository interface {
	ListAll(ctx context.Context) ([]models.Book, error)
}

type dashboardLoanRepository interface {
	ListAll(ctx context.Context) ([]models.Loan, error)
	ListByStudent(ctx context.Context, studentKey string) ([]models.Loan, error)
}

type dashboardStudentRepository interface {
	List(ctx context.Context, search string) ([]models.Student, error)
}

// DashboardService recomputes derived views from full catalog and ledger
// snapshots. Nothing here is stored; every figure is a pure function of the
// current records, so a deleted book or student simply drops out or falls
// back to a placeholder on the next computation.
type DashboardService struct {
	books    dashboardBookRepository
	loans    dashboardLoanRepository
	students dashboardStudentRepository
	cache    *CacheService
	logger   *zap.Logger
	now      func() time.Time
	cacheTTL time.Duration
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Books    dashboardBookRepository
	Loans    dashboardLoanRepository
	Students dashboardStudentRepository
	Cache    *CacheService
	Logger   *zap.Logger
	CacheTTL time.Duration
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DashboardService{
		books:    params.Books,
		loans:    params.Loans,
		students: params.Students,
		cache:    params.Cache,
		logger:   logger,
		now:      time.Now,
		cacheTTL: ttl,
	}
}

// Summary returns the aggregated dashboard and whether it came from cache.
func (s *DashboardService) Summary(ctx context.Context) (*dto.DashboardResponse, bool, error) {
	if s.cache != nil {
		var cached dto.DashboardResponse
		if hit, err := s.cache.Get(ctx, dashboardSummaryKey, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	summary, err := s.compose(ctx)
	if err != nil {
		return nil, false, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, dashboardSummaryKey, summary, s.cacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return summary, false, nil
}

// Directory returns the merged borrower directory: every roster entry plus
// every name that appears only in the ledger.
func (s *DashboardService) Directory(ctx context.Context) ([]models.DirectoryEntry, error) {
	students, err := s.students.List(ctx, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	loans, err := s.loans.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list loans")
	}

	type loanStats struct {
		active int
		total  int
		course string
	}
	statsByKey := map[string]loanStats{}
	nameByKey := map[string]string{}
	for i := len(loans) - 1; i >= 0; i-- {
		loan := loans[i]
		key := models.StudentKey(loan.StudentName)
		stats := statsByKey[key]
		stats.total++
		if loan.Status == models.LoanStatusActive {
			stats.active++
		}
		// Loans iterate oldest first here, so the last write wins with the
		// most recent course and name casing.
		stats.course = loan.Course
		statsByKey[key] = stats
		nameByKey[key] = loan.StudentName
	}

	entries := make([]models.DirectoryEntry, 0, len(students)+len(statsByKey))
	seen := map[string]bool{}
	for i := range students {
		student := students[i]
		key := models.StudentKey(student.Name)
		stats := statsByKey[key]
		entries = append(entries, models.DirectoryEntry{
			ID:         &student.ID,
			Name:       student.Name,
			Course:     student.Course,
			Active:     stats.active,
			Total:      stats.total,
			Registered: true,
		})
		seen[key] = true
	}
	for key, stats := range statsByKey {
		if seen[key] {
			continue
		}
		entries = append(entries, models.DirectoryEntry{
			Name:       nameByKey[key],
			Course:     stats.course,
			Active:     stats.active,
			Total:      stats.total,
			Registered: false,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})
	return entries, nil
}

// StudentProfile aggregates a borrower's history keyed by normalized name.
func (s *DashboardService) StudentProfile(ctx context.Context, name string) (*dto.StudentProfileResponse, error) {
	key := models.StudentKey(name)
	if key == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student name is required")
	}

	loans, err := s.loans.ListByStudent(ctx, key)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list loans")
	}

	students, err := s.students.List(ctx, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	var roster *models.Student
	for i := range students {
		if models.StudentKey(students[i].Name) == key {
			roster = &students[i]
			break
		}
	}

	if roster == nil && len(loans) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}

	profile := &dto.StudentProfileResponse{
		Name:        strings.TrimSpace(name),
		ActiveLoans: []models.Loan{},
		History:     []models.Loan{},
		TotalLoans:  len(loans),
	}
	if roster != nil {
		profile.Name = roster.Name
		profile.Course = roster.Course
		profile.Registered = true
	}
	// The latest loan wins on course: a student promoted since registration
	// shows where they borrow now, not where the roster left them.
	if len(loans) > 0 {
		profile.Course = loans[0].Course
	}

	now := s.now()
	for _, loan := range loans {
		if loan.Status == models.LoanStatusActive {
			profile.ActiveLoans = append(profile.ActiveLoans, loan)
			if loan.Overdue(now) {
				profile.Overdue++
			}
		} else {
			profile.History = append(profile.History, loan)
		}
	}
	return profile, nil
}

func (s *DashboardService) compose(ctx context.Context) (*dto.DashboardResponse, error) {
	books, err := s.books.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list books")
	}
	loans, err := s.loans.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list loans")
	}
	students, err := s.students.List(ctx, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	now := s.now()
	summary := &dto.DashboardResponse{
		StageDistribution: []dto.StageBucket{},
		GenreDistribution: []dto.GenreBucket{},
		TopBooks:          []dto.TopBookEntry{},
		TopReaders:        []dto.TopReaderEntry{},
		OverdueLoans:      []dto.OverdueLoanEntry{},
		GeneratedAt:       now.UTC(),
	}

	summary.KPIs = s.buildKPIs(books, loans, students, now)
	summary.StageDistribution = buildStageDistribution(books)
	summary.GenreDistribution = buildGenreDistribution(books)
	summary.TopBooks = buildTopBooks(books, loans)
	summary.TopReaders = buildTopReaders(loans)
	summary.OverdueLoans = buildOverdueEntries(loans, now)
	return summary, nil
}

func (s *DashboardService) buildKPIs(books []models.Book, loans []models.Loan, students []models.Student, now time.Time) dto.KPISection {
	kpis := dto.KPISection{
		TotalBooks:    len(books),
		TotalStudents: len(students),
		TotalLoans:    len(loans),
	}
	for _, book := range books {
		if !book.OnLoan() {
			kpis.AvailableBooks++
		}
		if book.Reservation != nil {
			kpis.ReservedBooks++
		}
	}
	borrowers := map[string]bool{}
	for _, loan := range loans {
		borrowers[models.StudentKey(loan.StudentName)] = true
		if loan.Status != models.LoanStatusActive {
			continue
		}
		kpis.ActiveLoans++
		if loan.Overdue(now) {
			kpis.OverdueLoans++
		}
	}
	kpis.Borrowers = len(borrowers)
	return kpis
}

func buildStageDistribution(books []models.Book) []dto.StageBucket {
	counts := map[models.EducationalStage]int{}
	for _, book := range books {
		counts[models.ParseStage(string(book.Stage))]++
	}
	buckets := make([]dto.StageBucket, 0, len(models.Stages())+1)
	for _, stage := range models.Stages() {
		buckets = append(buckets, dto.StageBucket{Stage: stage, Count: counts[stage], Percentage: percentage(counts[stage], len(books))})
	}
	if unknown := counts[models.StageUnknown]; unknown > 0 {
		buckets = append(buckets, dto.StageBucket{Stage: models.StageUnknown, Count: unknown, Percentage: percentage(unknown, len(books))})
	}
	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].Count > buckets[j].Count
	})
	return buckets
}

func buildGenreDistribution(books []models.Book) []dto.GenreBucket {
	counts := map[models.LiteraryGenre]int{}
	for _, book := range books {
		counts[models.ParseGenre(string(book.Genre))]++
	}
	buckets := make([]dto.GenreBucket, 0, len(models.Genres())+1)
	for _, genre := range models.Genres() {
		buckets = append(buckets, dto.GenreBucket{Genre: genre, Count: counts[genre], Percentage: percentage(counts[genre], len(books))})
	}
	if unknown := counts[models.GenreUnknown]; unknown > 0 {
		buckets = append(buckets, dto.GenreBucket{Genre: models.GenreUnknown, Count: unknown, Percentage: percentage(unknown, len(books))})
	}
	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].Count > buckets[j].Count
	})
	return buckets
}

func percentage(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(count)/float64(total)*1000) / 10
}

func buildTopBooks(books []models.Book, loans []models.Loan) []dto.TopBookEntry {
	catalog := make(map[string]models.Book, len(books))
	for _, book := range books {
		catalog[book.ID] = book
	}

	// Ties keep ledger order: counting happens in a first-seen pass over the
	// loans and the sort is stable on count alone.
	counts := map[string]int{}
	order := make([]string, 0, len(loans))
	for _, loan := range loans {
		if _, seen := counts[loan.BookID]; !seen {
			order = append(order, loan.BookID)
		}
		counts[loan.BookID]++
	}

	entries := make([]dto.TopBookEntry, 0, len(order))
	for _, bookID := range order {
		entry := dto.TopBookEntry{BookID: bookID, Loans: counts[bookID]}
		if book, ok := catalog[bookID]; ok {
			entry.Title = book.Title
			entry.Author = book.Author
		} else {
			entry.Title = UnknownBookTitle
			entry.Author = UnknownBookAuthor
		}
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Loans > entries[j].Loans
	})
	if len(entries) > topListLimit {
		entries = entries[:topListLimit]
	}
	return entries
}

func buildTopReaders(loans []models.Loan) []dto.TopReaderEntry {
	type reader struct {
		name   string
		course string
		count  int
	}
	// Same tie rule as top books. Loans arrive most recent first, so the
	// first-seen loan also carries the freshest name casing and course.
	readers := map[string]*reader{}
	order := make([]string, 0, len(loans))
	for _, loan := range loans {
		key := models.StudentKey(loan.StudentName)
		entry, ok := readers[key]
		if !ok {
			entry = &reader{name: loan.StudentName, course: loan.Course}
			readers[key] = entry
			order = append(order, key)
		}
		entry.count++
	}

	entries := make([]dto.TopReaderEntry, 0, len(order))
	for _, key := range order {
		entry := readers[key]
		entries = append(entries, dto.TopReaderEntry{Name: entry.name, Course: entry.course, Loans: entry.count})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Loans > entries[j].Loans
	})
	if len(entries) > topListLimit {
		entries = entries[:topListLimit]
	}
	return entries
}

func buildOverdueEntries(loans []models.Loan, now time.Time) []dto.OverdueLoanEntry {
	entries := []dto.OverdueLoanEntry{}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for _, loan := range loans {
		if !loan.Overdue(now) {
			continue
		}
		due := time.Date(loan.DueDate.Year(), loan.DueDate.Month(), loan.DueDate.Day(), 0, 0, 0, 0, now.Location())
		entries = append(entries, dto.OverdueLoanEntry{
			LoanID:      loan.ID,
			BookTitle:   loan.BookTitle,
			StudentName: loan.StudentName,
			Course:      loan.Course,
			DueDate:     loan.DueDate,
			DaysOverdue: int(today.Sub(due).Hours() / 24),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].DaysOverdue > entries[j].DaysOverdue
	})
	return entries
}
