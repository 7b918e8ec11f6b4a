package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/Veraticus/clawback/internal/common"
)

// Format tags stored on documents.
const (
	FormatCSV     = "bank_statement_csv"
	FormatXLSX    = "bank_statement_xlsx"
	FormatXLS     = "bank_statement_xls"
	FormatOFX     = "bank_statement_ofx"
	FormatText    = "bank_statement_text"
	FormatPDFText = "bank_statement_pdf_text"
	FormatPDFScan = "bank_statement_pdf_scan"
	FormatUnknown = "unknown"
)

// Category groups formats by how their rows are obtained.
type Category string

// Format categories.
const (
	CategoryTabular       Category = "tabular-delimited"
	CategorySpreadsheet   Category = "spreadsheet"
	CategoryTextExtracted Category = "text-extracted"
	CategoryRequiresOCR   Category = "text-requires-optical-recovery"
	CategoryUnknown       Category = "unknown"
)

// FormatInfo describes a detected document format.
type FormatInfo struct {
	Format       string
	Category     Category
	Extension    string
	HasTextLayer *bool
}

// RequiresOCR reports whether rows can only be recovered optically.
func (f FormatInfo) RequiresOCR() bool {
	return f.Category == CategoryRequiresOCR
}

// OCRRequiredError signals that a document has no usable text layer.
// It is a checkpoint, not a failure.
type OCRRequiredError struct {
	Path string
}

func (e *OCRRequiredError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, common.ErrOCRRequired)
}

func (e *OCRRequiredError) Unwrap() error {
	return common.ErrOCRRequired
}

// IsOCRRequired reports whether err carries the OCR-required condition.
func IsOCRRequired(err error) bool {
	var ocrErr *OCRRequiredError
	return errors.As(err, &ocrErr) || errors.Is(err, common.ErrOCRRequired)
}

// Detector classifies files by extension and, for PDFs, text layer presence.
type Detector struct {
	Extractor   TextExtractor
	SamplePages int
	MinChars    int
}

// NewDetector creates a detector sampling the first three pages for fifty characters.
func NewDetector(extractor TextExtractor) *Detector {
	return &Detector{Extractor: extractor, SamplePages: 3, MinChars: 50}
}

// Detect classifies the file at path.
func (d *Detector) Detect(ctx context.Context, path string) (FormatInfo, error) {
	if _, err := os.Stat(path); err != nil {
		return FormatInfo{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	info := FormatInfo{Extension: ext, Format: FormatUnknown, Category: CategoryUnknown}

	switch ext {
	case ".csv":
		info.Format, info.Category = FormatCSV, CategoryTabular
	case ".xlsx", ".xlsm":
		info.Format, info.Category = FormatXLSX, CategorySpreadsheet
	case ".xls":
		info.Format, info.Category = FormatXLS, CategorySpreadsheet
	case ".ofx", ".qfx":
		info.Format, info.Category = FormatOFX, CategoryTabular
	case ".txt":
		info.Format, info.Category = FormatText, CategoryTextExtracted
	case ".pdf":
		hasText := d.hasTextLayer(ctx, path)
		info.HasTextLayer = &hasText
		if hasText {
			info.Format, info.Category = FormatPDFText, CategoryTextExtracted
		} else {
			info.Format, info.Category = FormatPDFScan, CategoryRequiresOCR
		}
	}
	return info, nil
}

func (d *Detector) hasTextLayer(ctx context.Context, path string) bool {
	if d.Extractor == nil {
		return false
	}
	pages, err := d.Extractor.ExtractPages(ctx, path, d.SamplePages)
	if err != nil {
		common.LogDebug("text layer check failed", common.Fields{"path": path, "error": err.Error()})
		return false
	}
	return printableLength(strings.TrimSpace(strings.Join(pages, ""))) > d.MinChars
}

func printableLength(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsPrint(r) {
			n++
		}
	}
	return n
}
