package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

const sniffBytes = 4096

// loadCSV reads a delimited export. The delimiter is sniffed from the head of
// the file: semicolon unless commas outnumber semicolons.
func loadCSV(path string) (*Table, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the document registry
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return parseCSV(data)
}

func parseCSV(data []byte) (*Table, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV: %w", err)
		}
		records = append(records, rec)
	}
	return NewTable(records), nil
}

func sniffDelimiter(data []byte) rune {
	head := string(data)
	if len(head) > sniffBytes {
		head = head[:sniffBytes]
	}
	if strings.Count(head, ";") >= strings.Count(head, ",") {
		return ';'
	}
	return ','
}
