package model

import "time"

// DocumentStatus tracks a document through the processing pipeline.
type DocumentStatus string

// Document status constants.
const (
	DocumentPending     DocumentStatus = "pending"
	DocumentProcessing  DocumentStatus = "processing"
	DocumentDone        DocumentStatus = "done"
	DocumentOCRRequired DocumentStatus = "ocr_required"
	DocumentOCRRunning  DocumentStatus = "ocr_running"
	DocumentOCRDone     DocumentStatus = "ocr_done"
	DocumentFailed      DocumentStatus = "failed"
)

// IsTerminal reports whether no further processing will happen without user action.
func (s DocumentStatus) IsTerminal() bool {
	switch s {
	case DocumentDone, DocumentOCRRequired, DocumentOCRDone, DocumentFailed:
		return true
	}
	return false
}

// Document is an uploaded source file belonging to a case.
type Document struct {
	UploadedAt     time.Time
	ProcessedAt    *time.Time
	CaseID         string
	DocumentType   string
	FileName       string
	FilePath       string
	DetectedFormat string
	Status         DocumentStatus
	Error          string
	OCRTextPath    string
	ID             int64
	OCRProgress    int
}
