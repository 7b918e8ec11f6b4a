package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Veraticus/clawback/internal/common"
	"github.com/ledongthuc/pdf"
)

// TextExtractor returns the text of up to maxPages pages; maxPages <= 0 means all.
type TextExtractor interface {
	ExtractPages(ctx context.Context, path string, maxPages int) ([]string, error)
}

// PDFExtractor reads embedded text layers. Plain .txt files are returned as a single page.
type PDFExtractor struct{}

// NewPDFExtractor creates a text layer extractor.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// ExtractPages implements TextExtractor.
func (e *PDFExtractor) ExtractPages(ctx context.Context, path string, maxPages int) ([]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".txt") {
		data, err := os.ReadFile(path) //nolint:gosec // path comes from the document registry
		if err != nil {
			return nil, fmt.Errorf("failed to read text file: %w", err)
		}
		return []string{string(data)}, nil
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer func() { _ = f.Close() }()

	total := r.NumPage()
	if maxPages > 0 && maxPages < total {
		total = maxPages
	}

	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to extract page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

var statementLine = regexp.MustCompile(`(\d{2}\.\d{2}\.\d{4}).*?([-+]?\d{1,3}(?:\.\d{3})*,\d{2})`)

// Synthetic column names produced by ScanText.
const (
	scanColumnDate        = "Date"
	scanColumnAmount      = "Amount"
	scanColumnDescription = "Description"
)

// ScanText recognizes transaction lines in free text. Each line containing a
// dd.mm.yyyy date followed by a German formatted amount becomes one row.
func ScanText(text string) (*Table, error) {
	t := &Table{Headers: []string{scanColumnDate, scanColumnAmount, scanColumnDescription}}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := statementLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		t.Rows = append(t.Rows, []string{m[1], m[2], line})
	}
	if len(t.Rows) == 0 {
		return nil, common.ErrNoRowsRecognized
	}
	return t, nil
}
