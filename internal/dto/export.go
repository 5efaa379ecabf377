package dto

// ImportSummary reports the outcome of a bulk upload. Rows are never
// partially applied: a row either lands or is skipped with a reason.
type ImportSummary struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}
