package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/Veraticus/clawback/internal/common"
)

// Loader turns a statement file into a table according to its detected format.
type Loader struct {
	Detector  *Detector
	Extractor TextExtractor
}

// NewLoader creates a loader backed by the given text extractor.
func NewLoader(extractor TextExtractor) *Loader {
	return &Loader{Detector: NewDetector(extractor), Extractor: extractor}
}

// Load detects the format of path and loads it. Scanned documents return an
// *OCRRequiredError together with the detected format.
func (l *Loader) Load(ctx context.Context, path string) (*Table, FormatInfo, error) {
	info, err := l.Detector.Detect(ctx, path)
	if err != nil {
		return nil, info, err
	}

	var table *Table
	switch info.Format {
	case FormatCSV:
		table, err = loadCSV(path)
	case FormatXLSX:
		table, err = loadXLSX(path)
	case FormatXLS:
		table, err = loadXLS(path)
	case FormatOFX:
		table, err = loadOFX(path)
	case FormatText, FormatPDFText:
		table, err = l.loadText(ctx, path)
	case FormatPDFScan:
		return nil, info, &OCRRequiredError{Path: path}
	default:
		return nil, info, fmt.Errorf("%w: %s", common.ErrUnsupportedFormat, info.Extension)
	}
	if err != nil {
		return nil, info, err
	}

	common.LogDebug("loaded statement", common.Fields{
		"path":   path,
		"format": info.Format,
		"rows":   table.Len(),
	})
	return table, info, nil
}

func (l *Loader) loadText(ctx context.Context, path string) (*Table, error) {
	if l.Extractor == nil {
		return nil, fmt.Errorf("%w: no text extractor configured", common.ErrUnsupportedFormat)
	}
	pages, err := l.Extractor.ExtractPages(ctx, path, 0)
	if err != nil {
		return nil, err
	}
	return ScanText(strings.Join(pages, "\n"))
}
