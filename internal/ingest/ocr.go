package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Veraticus/clawback/internal/common"
)

// Recognizer recovers text from scanned documents. progress receives the
// current and total page counts as recognition advances.
type Recognizer interface {
	Recognize(ctx context.Context, path string, progress func(current, total int)) (string, error)
}

// SidecarRecognizer reads text recognized out of band from "<file>.ocr.txt".
type SidecarRecognizer struct{}

// SidecarPath returns where recognized text for path is expected.
func SidecarPath(path string) string {
	return path + ".ocr.txt"
}

// Recognize implements Recognizer.
func (SidecarRecognizer) Recognize(ctx context.Context, path string, progress func(current, total int)) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(SidecarPath(path)) //nolint:gosec // derived from registered document path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("no recognized text for %s: %w", path, common.ErrOCRUnavailable)
		}
		return "", fmt.Errorf("failed to read recognized text: %w", err)
	}
	if progress != nil {
		progress(1, 1)
	}
	return string(data), nil
}
