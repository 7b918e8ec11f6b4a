// Package storage provides the SQLite persistence layer for clawback.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Veraticus/clawback/internal/model"
)

// Validation errors.
var (
	ErrNilContext          = errors.New("context cannot be nil")
	ErrEmptyString         = errors.New("string parameter cannot be empty")
	ErrNilParameter        = errors.New("parameter cannot be nil")
	ErrInvalidDateRange    = errors.New("start date must be before end date")
	ErrInvalidStatus       = errors.New("invalid document status")
	ErrInvalidTransaction  = errors.New("invalid transaction")
	ErrInvalidCounterparty = errors.New("invalid counterparty")
	ErrInvalidEvaluation   = errors.New("invalid rule evaluation")
	ErrInvalidSavepoint    = errors.New("invalid savepoint name")
)

var savepointName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateSavepoint guards savepoint names, which cannot be bound as parameters.
func validateSavepoint(name string) error {
	if !savepointName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidSavepoint, name)
	}
	return nil
}

func validateCase(c *model.Case) error {
	if c == nil {
		return fmt.Errorf("%w: case", ErrNilParameter)
	}
	if err := validateString(c.ID, "case id"); err != nil {
		return err
	}
	return validateString(c.CompanyName, "company name")
}

func validateDocument(doc *model.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document", ErrNilParameter)
	}
	if err := validateString(doc.CaseID, "case id"); err != nil {
		return err
	}
	if err := validateString(doc.FilePath, "file path"); err != nil {
		return err
	}
	switch doc.Status {
	case "", model.DocumentPending, model.DocumentProcessing, model.DocumentDone,
		model.DocumentOCRRequired, model.DocumentOCRRunning, model.DocumentOCRDone,
		model.DocumentFailed:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrInvalidStatus, doc.Status)
	}
}

// validateTransaction validates a single transaction.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.CaseID == "" {
		return fmt.Errorf("%w: missing case id", ErrInvalidTransaction)
	}
	if txn.SourceDocumentID == 0 {
		return fmt.Errorf("%w: missing source document", ErrInvalidTransaction)
	}
	if txn.BookingDate.IsZero() {
		return fmt.Errorf("%w: missing booking date", ErrInvalidTransaction)
	}
	if txn.Fingerprint == "" {
		return fmt.Errorf("%w: missing fingerprint", ErrInvalidTransaction)
	}
	return nil
}

func validateCounterparty(cp *model.Counterparty) error {
	if cp == nil {
		return fmt.Errorf("%w: counterparty", ErrNilParameter)
	}
	if cp.CaseID == "" {
		return fmt.Errorf("%w: missing case id", ErrInvalidCounterparty)
	}
	if strings.TrimSpace(cp.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidCounterparty)
	}
	return nil
}

func validateEvaluation(eval *model.RuleEvaluation) error {
	if eval.CaseID == "" || eval.TransactionID == 0 || eval.RuleID == "" {
		return fmt.Errorf("%w: case, transaction and rule are required", ErrInvalidEvaluation)
	}
	switch eval.Decision {
	case model.DecisionHit, model.DecisionNeedsReview, model.DecisionNoHit:
	default:
		return fmt.Errorf("%w: decision %q", ErrInvalidEvaluation, eval.Decision)
	}
	if eval.Confidence < 0 || eval.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalidEvaluation)
	}
	return nil
}
