// Package pipeline runs uploaded statements through loading, normalization,
// counterparty resolution, deduplication and avoidance rule evaluation.
//
// Each document is processed in one storage transaction. Rows that fail are
// rolled back to a per-row savepoint and counted as skipped, so a bad row never
// aborts the document. Only the status changes around that unit of work
// (processing, OCR progress, failure) are written outside it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"runtime/debug"
	"time"

	"github.com/Veraticus/clawback/internal/audit"
	"github.com/Veraticus/clawback/internal/common"
	"github.com/Veraticus/clawback/internal/counterparty"
	"github.com/Veraticus/clawback/internal/dedup"
	"github.com/Veraticus/clawback/internal/ingest"
	"github.com/Veraticus/clawback/internal/model"
	"github.com/Veraticus/clawback/internal/rules"
	"github.com/Veraticus/clawback/internal/service"
)

const rowSavepoint = "row"

// Config wires the collaborators of an Orchestrator. Nil fields get defaults.
type Config struct {
	Loader     *ingest.Loader
	Normalizer *ingest.Normalizer
	Resolver   *counterparty.Resolver
	Dedup      *dedup.Engine
	Rules      *rules.Engine
	Recognizer ingest.Recognizer
}

// Result summarizes one processed document.
type Result struct {
	Status         model.DocumentStatus `json:"status"`
	DetectedFormat string               `json:"detected_format"`
	Dedup          dedup.Stats          `json:"dedup"`
	Inserted       int                  `json:"inserted"`
	Skipped        int                  `json:"skipped"`
	Evaluated      int                  `json:"evaluated"`
}

func (r *Result) payload() map[string]any {
	return map[string]any{
		"detected_format": r.DetectedFormat,
		"inserted":        r.Inserted,
		"skipped":         r.Skipped,
		"evaluated":       r.Evaluated,
		"dedup":           r.Dedup,
	}
}

// Orchestrator processes documents against a store.
type Orchestrator struct {
	store      service.Storage
	loader     *ingest.Loader
	normalizer *ingest.Normalizer
	resolver   *counterparty.Resolver
	dedup      *dedup.Engine
	rules      *rules.Engine
	recognizer ingest.Recognizer
}

// New creates an orchestrator.
func New(store service.Storage, cfg Config) *Orchestrator {
	o := &Orchestrator{
		store:      store,
		loader:     cfg.Loader,
		normalizer: cfg.Normalizer,
		resolver:   cfg.Resolver,
		dedup:      cfg.Dedup,
		rules:      cfg.Rules,
		recognizer: cfg.Recognizer,
	}
	if o.loader == nil {
		o.loader = ingest.NewLoader(ingest.NewPDFExtractor())
	}
	if o.normalizer == nil {
		o.normalizer = ingest.NewNormalizer()
	}
	if o.resolver == nil {
		o.resolver = counterparty.NewResolver(counterparty.DefaultThreshold)
	}
	if o.dedup == nil {
		o.dedup = dedup.NewEngine()
	}
	if o.rules == nil {
		o.rules = rules.NewEngine()
	}
	if o.recognizer == nil {
		o.recognizer = ingest.SidecarRecognizer{}
	}
	return o
}

// ProcessDocument loads, normalizes and evaluates one document. A document
// that needs optical recovery ends in status ocr_required without an error.
// Any other failure marks the document failed and is returned.
func (o *Orchestrator) ProcessDocument(ctx context.Context, caseID string, documentID int64) (*Result, error) {
	c, doc, err := o.load(ctx, caseID, documentID)
	if err != nil {
		return nil, err
	}

	common.LogInfo("processing document", common.Fields{
		"case_id":     caseID,
		"document_id": documentID,
		"file":        doc.FileName,
	})

	doc.Status = model.DocumentProcessing
	doc.Error = ""
	if err := o.store.UpdateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to mark document processing: %w", err)
	}

	res, err := o.process(ctx, c, doc)
	if err != nil {
		o.fail(ctx, doc, audit.ActionDocumentFailed, err)
		return nil, err
	}
	return res, nil
}

func (o *Orchestrator) process(ctx context.Context, c *model.Case, doc *model.Document) (*Result, error) {
	table, info, err := o.loader.Load(ctx, doc.FilePath)
	if info.Format != "" {
		doc.DetectedFormat = info.Format
	}
	res := &Result{DetectedFormat: doc.DetectedFormat}

	if ingest.IsOCRRequired(err) {
		doc.Status = model.DocumentOCRRequired
		doc.Error = err.Error()
		err = o.withTx(ctx, func(tx service.Transaction) error {
			if err := tx.UpdateDocument(ctx, doc); err != nil {
				return fmt.Errorf("failed to update document: %w", err)
			}
			return audit.Record(ctx, tx, c.ID, audit.ActionDocumentOCRRequired, audit.EntityDocument, doc.ID,
				map[string]any{"detected_format": doc.DetectedFormat})
		})
		if err != nil {
			return nil, err
		}
		common.LogInfo("document requires optical recovery", common.Fields{
			"case_id":     c.ID,
			"document_id": doc.ID,
		})
		res.Status = doc.Status
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", doc.FileName, err)
	}

	err = o.withTx(ctx, func(tx service.Transaction) error {
		return o.run(ctx, tx, c, doc, table, res, model.DocumentDone, audit.ActionDocumentProcessed)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ProcessDocumentWithOCR recovers the text of a scanned document, stores it
// next to the source file and processes the recognized rows.
func (o *Orchestrator) ProcessDocumentWithOCR(ctx context.Context, caseID string, documentID int64) (*Result, error) {
	c, doc, err := o.load(ctx, caseID, documentID)
	if err != nil {
		return nil, err
	}

	doc.Status = model.DocumentOCRRunning
	doc.OCRProgress = 0
	doc.Error = ""
	if err := o.store.UpdateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to mark document ocr_running: %w", err)
	}

	res, err := o.recognize(ctx, c, doc)
	if err != nil {
		o.fail(ctx, doc, audit.ActionDocumentOCRFailed, err)
		return nil, err
	}
	return res, nil
}

func (o *Orchestrator) recognize(ctx context.Context, c *model.Case, doc *model.Document) (*Result, error) {
	text, err := o.recognizer.Recognize(ctx, doc.FilePath, func(current, total int) {
		pct := int(math.Round(float64(current) / float64(max(total, 1)) * 100))
		doc.OCRProgress = pct
		if err := o.store.UpdateDocumentOCRProgress(ctx, doc.ID, pct); err != nil {
			common.LogWarn("failed to record OCR progress", common.Fields{
				"document_id": doc.ID,
				"error":       err.Error(),
			})
		}
	})
	if err != nil {
		return nil, fmt.Errorf("optical recovery failed: %w", err)
	}

	sidecar := ingest.SidecarPath(doc.FilePath)
	if err := os.WriteFile(sidecar, []byte(text), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write recognized text: %w", err)
	}
	doc.OCRTextPath = sidecar
	if doc.DetectedFormat == "" {
		doc.DetectedFormat = ingest.FormatPDFScan
	}

	table, err := ingest.ScanText(text)
	if err != nil {
		return nil, err
	}

	res := &Result{DetectedFormat: doc.DetectedFormat}
	err = o.withTx(ctx, func(tx service.Transaction) error {
		return o.run(ctx, tx, c, doc, table, res, model.DocumentOCRDone, audit.ActionDocumentOCRDone)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// run is the unit of work shared by both entry points.
func (o *Orchestrator) run(ctx context.Context, tx service.Transaction, c *model.Case, doc *model.Document,
	table *ingest.Table, res *Result, status model.DocumentStatus, action string) error {
	account, currency := c.DefaultAccount()
	txns, stats, err := o.normalizer.Normalize(table, ingest.NormalizeOptions{
		CaseID:          c.ID,
		SourceFile:      doc.FileName,
		DefaultAccount:  account,
		DefaultCurrency: currency,
		DocumentID:      doc.ID,
	})
	if err != nil {
		return err
	}
	res.Skipped = stats.Skipped

	for i := range txns {
		inserted, err := o.insertRow(ctx, tx, c.ID, &txns[i])
		if err != nil {
			return err
		}
		if inserted {
			res.Inserted++
		} else {
			res.Skipped++
		}
	}

	if res.Dedup, err = o.dedup.Run(ctx, tx, c.ID); err != nil {
		return fmt.Errorf("dedup failed: %w", err)
	}
	if res.Evaluated, err = o.evaluate(ctx, tx, c); err != nil {
		return err
	}

	now := time.Now().UTC()
	doc.Status = status
	doc.Error = ""
	doc.ProcessedAt = &now
	if status == model.DocumentOCRDone {
		doc.OCRProgress = 100
	}
	if err := tx.UpdateDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	res.Status = status

	if err := audit.Record(ctx, tx, c.ID, action, audit.EntityDocument, doc.ID, res.payload()); err != nil {
		return err
	}

	common.LogInfo("document processed", common.Fields{
		"case_id":     c.ID,
		"document_id": doc.ID,
		"status":      status,
		"inserted":    res.Inserted,
		"skipped":     res.Skipped,
		"duplicates":  res.Dedup.Duplicates,
		"evaluated":   res.Evaluated,
	})
	return nil
}

// insertRow stores one transaction inside a savepoint. It reports false when
// the row was rolled back.
func (o *Orchestrator) insertRow(ctx context.Context, tx service.Transaction, caseID string, txn *model.Transaction) (bool, error) {
	if err := tx.Savepoint(ctx, rowSavepoint); err != nil {
		return false, err
	}

	err := o.storeRow(ctx, tx, caseID, txn)
	if err == nil {
		return true, tx.Release(ctx, rowSavepoint)
	}

	if rbErr := tx.RollbackTo(ctx, rowSavepoint); rbErr != nil {
		return false, rbErr
	}
	common.LogDebug("skipped row", common.Fields{
		"case_id":   caseID,
		"booking":   txn.BookingDate.Format(time.DateOnly),
		"amount":    txn.Amount,
		"duplicate": errors.Is(err, common.ErrDuplicateEntry),
		"error":     err.Error(),
	})
	return false, nil
}

func (o *Orchestrator) storeRow(ctx context.Context, tx service.Transaction, caseID string, txn *model.Transaction) error {
	cp, err := o.resolver.Resolve(ctx, tx, caseID, txn.CounterpartyNameRaw, txn.CreditorIBAN)
	if err != nil {
		return err
	}
	if cp != nil {
		txn.CounterpartyID = &cp.ID
	}
	if txn.Fingerprint == "" {
		txn.Fingerprint = txn.GenerateFingerprint()
	}
	return tx.InsertTransaction(ctx, txn)
}

// evaluate replaces the case's rule evaluations and refreshes tags on every
// transaction. Duplicates lose hits left over from earlier runs.
func (o *Orchestrator) evaluate(ctx context.Context, tx service.Transaction, c *model.Case) (int, error) {
	if err := tx.DeleteRuleEvaluations(ctx, c.ID); err != nil {
		return 0, fmt.Errorf("failed to clear rule evaluations: %w", err)
	}

	txns, err := tx.ListTransactions(ctx, c.ID, service.TransactionFilter{})
	if err != nil {
		return 0, fmt.Errorf("failed to list transactions: %w", err)
	}

	counterparties := map[int64]*model.Counterparty{}
	var (
		all       []model.RuleEvaluation
		evaluated int
	)
	for i := range txns {
		txn := &txns[i]
		if txn.IsDuplicate {
			if len(txn.RuleHits) == 0 {
				continue
			}
			deriveTags(txn, nil)
		} else {
			cp, err := o.counterparty(ctx, tx, c.ID, txn.CounterpartyID, counterparties)
			if err != nil {
				return 0, err
			}
			evals := o.rules.Evaluate(txn, c, cp)
			all = append(all, evals...)
			deriveTags(txn, evals)
			evaluated++
		}
		if err := tx.UpdateTransactionTags(ctx, txn); err != nil {
			return 0, fmt.Errorf("failed to update tags of transaction %d: %w", txn.ID, err)
		}
	}

	if err := tx.SaveRuleEvaluations(ctx, all); err != nil {
		return 0, fmt.Errorf("failed to save rule evaluations: %w", err)
	}
	return evaluated, nil
}

func (o *Orchestrator) counterparty(ctx context.Context, tx service.Transaction, caseID string, id *int64,
	cache map[int64]*model.Counterparty) (*model.Counterparty, error) {
	if id == nil {
		return nil, nil
	}
	if cp, ok := cache[*id]; ok {
		return cp, nil
	}
	cp, err := tx.GetCounterparty(ctx, caseID, *id)
	switch {
	case errors.Is(err, common.ErrNotFound):
		cp = nil
	case err != nil:
		return nil, fmt.Errorf("failed to load counterparty %d: %w", *id, err)
	}
	cache[*id] = cp
	return cp, nil
}

// RunDedup clusters the case's transactions outside document processing.
func (o *Orchestrator) RunDedup(ctx context.Context, caseID string) (dedup.Stats, error) {
	if _, err := o.store.GetCase(ctx, caseID); err != nil {
		return dedup.Stats{}, fmt.Errorf("failed to load case %s: %w", caseID, err)
	}
	var stats dedup.Stats
	err := o.withTx(ctx, func(tx service.Transaction) error {
		var err error
		stats, err = o.dedup.Run(ctx, tx, caseID)
		return err
	})
	return stats, err
}

// EvaluateCase re-runs every rule for the case, for example after enrichment
// changed counterparty roles. It returns the number of evaluated transactions.
func (o *Orchestrator) EvaluateCase(ctx context.Context, caseID string) (int, error) {
	c, err := o.store.GetCase(ctx, caseID)
	if err != nil {
		return 0, fmt.Errorf("failed to load case %s: %w", caseID, err)
	}
	var evaluated int
	err = o.withTx(ctx, func(tx service.Transaction) error {
		var err error
		evaluated, err = o.evaluate(ctx, tx, c)
		return err
	})
	if err != nil {
		return 0, err
	}
	common.LogInfo("case evaluated", common.Fields{"case_id": caseID, "transactions": evaluated})
	return evaluated, nil
}

func (o *Orchestrator) load(ctx context.Context, caseID string, documentID int64) (*model.Case, *model.Document, error) {
	c, err := o.store.GetCase(ctx, caseID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load case %s: %w", caseID, err)
	}
	doc, err := o.store.GetDocument(ctx, caseID, documentID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load document %d: %w", documentID, err)
	}
	return c, doc, nil
}

// fail records the failure in a fresh transaction. It runs after the unit of
// work was rolled back and survives a cancelled context.
func (o *Orchestrator) fail(ctx context.Context, doc *model.Document, action string, cause error) {
	ctx = context.WithoutCancel(ctx)
	stack := string(debug.Stack())

	now := time.Now().UTC()
	doc.Status = model.DocumentFailed
	doc.Error = cause.Error()
	doc.ProcessedAt = &now

	common.LogError(cause, "document processing failed", common.Fields{
		"case_id":     doc.CaseID,
		"document_id": doc.ID,
	})

	err := o.withTx(ctx, func(tx service.Transaction) error {
		if err := tx.UpdateDocument(ctx, doc); err != nil {
			return fmt.Errorf("failed to update document: %w", err)
		}
		return audit.Record(ctx, tx, doc.CaseID, action, audit.EntityDocument, doc.ID, map[string]any{
			"error": cause.Error(),
			"stack": stack,
		})
	})
	if err != nil {
		common.LogError(err, "failed to record document failure", common.Fields{"document_id": doc.ID})
	}
}

func (o *Orchestrator) withTx(ctx context.Context, fn func(tx service.Transaction) error) error {
	tx, err := o.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			common.LogError(rbErr, "rollback failed", nil)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}
