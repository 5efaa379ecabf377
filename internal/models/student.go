package models

import (
	"strings"
	"time"
)

// Student is a registered roster entry. Registration is optional enrichment:
// unregistered borrowers appear in the ledger and are not errors.
type Student struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Course       string    `db:"course" json:"course"`
	RegisteredAt time.Time `db:"registered_at" json:"registered_at"`
}

// StudentKey normalizes a name for the soft join between roster and ledger.
// Reporting identity is the lower-cased name, never a foreign key, so a
// corrected roster entry does not retroactively relabel past loans.
func StudentKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// DirectoryEntry is one row of the merged student directory: the union of
// roster entries and names appearing only in loan history.
type DirectoryEntry struct {
	ID         *string `json:"id,omitempty"`
	Name       string  `json:"name"`
	Course     string  `json:"course"`
	Active     int     `json:"active"`
	Total      int     `json:"total"`
	Registered bool    `json:"registered"`
}
