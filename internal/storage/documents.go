package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/clawback/internal/common"
	"github.com/Veraticus/clawback/internal/model"
)

const documentColumns = `id, case_id, document_type, file_name, file_path, detected_format,
	status, error, processed_at, uploaded_at, ocr_progress, ocr_text_path`

// CreateDocument registers an uploaded file; the document starts pending.
func (s *SQLiteStorage) CreateDocument(ctx context.Context, doc *model.Document) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateDocument(doc); err != nil {
		return err
	}
	return s.createDocumentTx(ctx, s.db, doc)
}

func (s *SQLiteStorage) createDocumentTx(ctx context.Context, q queryable, doc *model.Document) error {
	if doc.Status == "" {
		doc.Status = model.DocumentPending
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now()
	}
	if doc.DocumentType == "" {
		doc.DocumentType = "bank_statement"
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO documents (case_id, document_type, file_name, file_path, status, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, doc.CaseID, doc.DocumentType, doc.FileName, doc.FilePath, string(doc.Status), doc.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get document id: %w", err)
	}
	doc.ID = id
	return nil
}

// GetDocument retrieves a document belonging to the given case.
func (s *SQLiteStorage) GetDocument(ctx context.Context, caseID string, documentID int64) (*model.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getDocumentTx(ctx, s.db, caseID, documentID)
}

func (s *SQLiteStorage) getDocumentTx(ctx context.Context, q queryable, caseID string, documentID int64) (*model.Document, error) {
	row := q.QueryRowContext(ctx, `SELECT `+documentColumns+`
		FROM documents
		WHERE id = ? AND case_id = ?
	`, documentID, caseID)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %d in case %s: %w", documentID, caseID, common.ErrNotFound)
	}
	return doc, err
}

// ListDocuments returns a case's documents, optionally restricted to some statuses.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, caseID string, statuses ...model.DocumentStatus) ([]model.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(caseID, "caseID"); err != nil {
		return nil, err
	}
	return s.listDocumentsTx(ctx, s.db, caseID, statuses)
}

// ListPendingDocuments returns pending documents across all cases.
func (s *SQLiteStorage) ListPendingDocuments(ctx context.Context) ([]model.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listDocumentsTx(ctx, s.db, "", []model.DocumentStatus{model.DocumentPending})
}

func (s *SQLiteStorage) listDocumentsTx(ctx context.Context, q queryable, caseID string, statuses []model.DocumentStatus) ([]model.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE 1=1`
	var args []any

	if caseID != "" {
		query += " AND case_id = ?"
		args = append(args, caseID)
	}
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, st := range statuses {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		query += " AND status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY case_id, id"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// UpdateDocument persists the mutable processing fields of a document.
func (s *SQLiteStorage) UpdateDocument(ctx context.Context, doc *model.Document) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateDocument(doc); err != nil {
		return err
	}
	return s.updateDocumentTx(ctx, s.db, doc)
}

func (s *SQLiteStorage) updateDocumentTx(ctx context.Context, q queryable, doc *model.Document) error {
	result, err := q.ExecContext(ctx, `
		UPDATE documents
		SET detected_format = ?, status = ?, error = ?, processed_at = ?,
			ocr_progress = ?, ocr_text_path = ?
		WHERE id = ? AND case_id = ?
	`, nullString(doc.DetectedFormat), string(doc.Status), nullString(doc.Error),
		nullTime(doc.ProcessedAt), doc.OCRProgress, nullString(doc.OCRTextPath),
		doc.ID, doc.CaseID)
	if err != nil {
		return fmt.Errorf("failed to update document %d: %w", doc.ID, err)
	}
	return requireAffected(result, "document", doc.ID)
}

// UpdateDocumentOCRProgress records recognition progress as a percentage.
func (s *SQLiteStorage) UpdateDocumentOCRProgress(ctx context.Context, documentID int64, progress int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.updateDocumentOCRProgressTx(ctx, s.db, documentID, progress)
}

func (s *SQLiteStorage) updateDocumentOCRProgressTx(ctx context.Context, q queryable, documentID int64, progress int) error {
	progress = max(0, min(100, progress))
	result, err := q.ExecContext(ctx, `UPDATE documents SET ocr_progress = ? WHERE id = ?`, progress, documentID)
	if err != nil {
		return fmt.Errorf("failed to update OCR progress: %w", err)
	}
	return requireAffected(result, "document", documentID)
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var (
		doc                                 model.Document
		detectedFormat, errMsg, ocrTextPath sql.NullString
		processedAt, uploadedAt             sql.NullTime
		status                              string
	)
	err := row.Scan(&doc.ID, &doc.CaseID, &doc.DocumentType, &doc.FileName, &doc.FilePath,
		&detectedFormat, &status, &errMsg, &processedAt, &uploadedAt,
		&doc.OCRProgress, &ocrTextPath)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}

	doc.Status = model.DocumentStatus(status)
	doc.DetectedFormat = detectedFormat.String
	doc.Error = errMsg.String
	doc.OCRTextPath = ocrTextPath.String
	doc.ProcessedAt = timePtr(processedAt)
	if uploadedAt.Valid {
		doc.UploadedAt = uploadedAt.Time
	}
	return &doc, nil
}

func requireAffected(result sql.Result, entity string, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", entity, id, common.ErrNotFound)
	}
	return nil
}
