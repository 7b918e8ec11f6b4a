package ingest

import "strings"

// Table is a loaded statement: a header row and string cells.
type Table struct {
	Headers []string
	Rows    [][]string
}

// NewTable builds a table from a header row followed by data rows.
// Rows are padded or truncated to the header width; blank rows are dropped.
func NewTable(records [][]string) *Table {
	if len(records) == 0 {
		return &Table{}
	}
	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	t := &Table{Headers: headers}
	for _, rec := range records[1:] {
		if isBlankRow(rec) {
			continue
		}
		row := make([]string, len(headers))
		copy(row, rec)
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Value returns the cell at row i for column index col, or "" when out of range.
func (t *Table) Value(i, col int) string {
	if col < 0 || i < 0 || i >= len(t.Rows) || col >= len(t.Rows[i]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[i][col])
}

// Column resolves the first matching column for the given synonyms.
// Exact case-insensitive matches win over substring matches; synonyms are
// tried in order within each pass.
func (t *Table) Column(synonyms ...string) int {
	lower := make([]string, len(t.Headers))
	for i, h := range t.Headers {
		lower[i] = strings.ToLower(h)
	}
	for _, syn := range synonyms {
		s := strings.ToLower(syn)
		for i, h := range lower {
			if h == s {
				return i
			}
		}
	}
	for _, syn := range synonyms {
		s := strings.ToLower(syn)
		for i, h := range lower {
			if strings.Contains(h, s) {
				return i
			}
		}
	}
	return -1
}

func isBlankRow(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
