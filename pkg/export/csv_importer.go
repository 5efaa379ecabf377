package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

const utf8BOM = "\ufeff"

// CSVImporter parses uploaded tabular files back into header-keyed rows.
type CSVImporter struct{}

// NewCSVImporter builds a CSV importer.
func NewCSVImporter() *CSVImporter {
	return &CSVImporter{}
}

// Parse reads the full CSV stream. The first record is treated as the header
// row; header matching for callers is case-insensitive via NormalizeHeader.
func (i *CSVImporter) Parse(r io.Reader) (Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return Dataset{}, fmt.Errorf("csv file is empty")
		}
		return Dataset{}, fmt.Errorf("read csv headers: %w", err)
	}
	// Files exported here (or saved from Excel) carry a BOM glued to the
	// first header.
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], utf8BOM)
	}
	for idx := range headers {
		headers[idx] = strings.TrimSpace(headers[idx])
	}

	dataset := Dataset{Headers: headers}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Dataset{}, fmt.Errorf("read csv row: %w", err)
		}
		row := make(map[string]string, len(headers))
		for idx, header := range headers {
			if idx < len(record) {
				row[header] = strings.TrimSpace(record[idx])
			}
		}
		dataset.Rows = append(dataset.Rows, row)
	}
	return dataset, nil
}

// NormalizeHeader lower-cases and trims a header name for lookups.
func NormalizeHeader(header string) string {
	return strings.ToLower(strings.TrimSpace(header))
}

// Field fetches a row value by case-insensitive header name.
func Field(row map[string]string, name string) string {
	for header, value := range row {
		if NormalizeHeader(header) == NormalizeHeader(name) {
			return value
		}
	}
	return ""
}
