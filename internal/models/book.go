package models

import "time"

// EducationalStage classifies a book's target age band. Values mirror the
// printed spine labels, so they are the full Spanish display strings.
type EducationalStage string

const (
	StageInfantil         EducationalStage = "Infantil y Preescolar (3-6 años)"
	StagePrimariaInicial  EducationalStage = "Primaria - Ciclo Inicial (6-8 años)"
	StagePrimariaMedio    EducationalStage = "Primaria - Ciclo Medio (8-10 años)"
	StagePrimariaSuperior EducationalStage = "Primaria - Ciclo Superior (10-12 años)"
	StageSecundaria       EducationalStage = "Secundaria Obligatoria (ESO) (12-16 años)"
	StageReferencia       EducationalStage = "Referencia / Consulta General"

	// StageUnknown is the explicit bucket for unrecognized stored values.
	// Corrupt data lands here instead of being aliased onto a real stage.
	StageUnknown EducationalStage = "Sin clasificar"
)

// Stages returns the recognized stages in display order.
func Stages() []EducationalStage {
	return []EducationalStage{
		StageInfantil,
		StagePrimariaInicial,
		StagePrimariaMedio,
		StagePrimariaSuperior,
		StageSecundaria,
		StageReferencia,
	}
}

// ParseStage maps a stored string onto a stage, falling back to StageUnknown.
func ParseStage(raw string) EducationalStage {
	for _, stage := range Stages() {
		if string(stage) == raw {
			return stage
		}
	}
	return StageUnknown
}

// Known reports whether the stage is one of the recognized values.
func (s EducationalStage) Known() bool {
	return s != StageUnknown && ParseStage(string(s)) != StageUnknown
}

// LiteraryGenre classifies a book's literary category.
type LiteraryGenre string

const (
	GenreNovela      LiteraryGenre = "Novela / Ficción (General)"
	GenreFantasia    LiteraryGenre = "Fantasía / Ciencia Ficción"
	GenreMisterio    LiteraryGenre = "Misterio / Suspense"
	GenrePoesia      LiteraryGenre = "Poesía / Teatro"
	GenreInformativo LiteraryGenre = "Informativo / No Ficción"
	GenreBiografias  LiteraryGenre = "Biografías / Historia"
	GenreComics      LiteraryGenre = "Cómics / Novela Gráfica"

	GenreUnknown LiteraryGenre = "Sin clasificar"
)

// Genres returns the recognized genres in display order.
func Genres() []LiteraryGenre {
	return []LiteraryGenre{
		GenreNovela,
		GenreFantasia,
		GenreMisterio,
		GenrePoesia,
		GenreInformativo,
		GenreBiografias,
		GenreComics,
	}
}

// ParseGenre maps a stored string onto a genre, falling back to GenreUnknown.
func ParseGenre(raw string) LiteraryGenre {
	for _, genre := range Genres() {
		if string(genre) == raw {
			return genre
		}
	}
	return GenreUnknown
}

// BookCondition records the physical state of a copy at lend or return time.
type BookCondition string

const (
	ConditionNew     BookCondition = "Nuevo"
	ConditionGood    BookCondition = "Bueno"
	ConditionFair    BookCondition = "Usado/Desgastado"
	ConditionPoor    BookCondition = "Deteriorado"
	ConditionDamaged BookCondition = "Dañado"
)

// ParseCondition validates a stored condition string.
func ParseCondition(raw string) (BookCondition, bool) {
	switch BookCondition(raw) {
	case ConditionNew, ConditionGood, ConditionFair, ConditionPoor, ConditionDamaged:
		return BookCondition(raw), true
	}
	return "", false
}

// Reservation is the single optional pending-borrower slot on a book.
// It has no identity of its own and is overwritten or cleared, never queued.
type Reservation struct {
	StudentName string    `json:"student_name"`
	ReservedAt  time.Time `json:"reserved_at"`
}

// Book is a catalog entry. A book is on loan exactly when CurrentLoanID is
// set; the id then references an ACTIVE loan in the ledger.
type Book struct {
	ID            string           `json:"id"`
	Title         string           `json:"title"`
	Author        string           `json:"author"`
	Stage         EducationalStage `json:"stage"`
	Genre         LiteraryGenre    `json:"genre"`
	Age           int              `json:"age"`
	CoverImage    *string          `json:"cover_image,omitempty"`
	Column        *int             `json:"column,omitempty"`
	Shelf         *int             `json:"shelf,omitempty"`
	Synopsis      *string          `json:"synopsis,omitempty"`
	AddedAt       time.Time        `json:"added_at"`
	CurrentLoanID *string          `json:"current_loan_id,omitempty"`
	Rating        float64          `json:"rating"`
	TotalRatings  int              `json:"total_ratings"`
	Reservation   *Reservation     `json:"reservation,omitempty"`
}

// Shelvable reports whether the book has a complete physical placement.
func (b *Book) Shelvable() bool {
	return b.Column != nil && b.Shelf != nil
}

// OnLoan reports whether the book is currently lent out.
func (b *Book) OnLoan() bool {
	return b.CurrentLoanID != nil && *b.CurrentLoanID != ""
}

// CirculationStatus is the derived display state of a book. It is a pure
// function of the two optional circulation fields; all four combinations are
// reachable and valid.
type CirculationStatus string

const (
	StatusAvailable         CirculationStatus = "AVAILABLE"
	StatusLoaned            CirculationStatus = "LOANED"
	StatusLoanedReserved    CirculationStatus = "LOANED_RESERVED"
	StatusAvailableReserved CirculationStatus = "AVAILABLE_RESERVED"
)

// CirculationStatus derives the display status from the circulation fields.
// A returned book with a pending reservation shows as reserved, not available,
// until a librarian lends it or cancels the reservation.
func (b *Book) CirculationStatus() CirculationStatus {
	switch {
	case b.OnLoan() && b.Reservation != nil:
		return StatusLoanedReserved
	case b.OnLoan():
		return StatusLoaned
	case b.Reservation != nil:
		return StatusAvailableReserved
	default:
		return StatusAvailable
	}
}

// StageGroup is the coarse filter offered by the catalog UI.
type StageGroup string

const (
	StageGroupAll        StageGroup = "TODOS"
	StageGroupInfantil   StageGroup = "INFANTIL"
	StageGroupPrimaria   StageGroup = "PRIMARIA"
	StageGroupSecundaria StageGroup = "SECUNDARIA"
)

// Matches reports whether the stage belongs to the group.
func (g StageGroup) Matches(stage EducationalStage) bool {
	switch g {
	case StageGroupInfantil:
		return stage == StageInfantil
	case StageGroupPrimaria:
		return stage == StagePrimariaInicial || stage == StagePrimariaMedio || stage == StagePrimariaSuperior
	case StageGroupSecundaria:
		return stage == StageSecundaria
	default:
		return true
	}
}

// BookFilter encapsulates allowed search parameters for listing books.
type BookFilter struct {
	Search       string
	StageGroup   StageGroup
	Genre        string
	Availability string // ALL | AVAILABLE | LOANED
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
