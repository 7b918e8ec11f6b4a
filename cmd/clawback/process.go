package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Veraticus/clawback/internal/cli"
	"github.com/Veraticus/clawback/internal/common"
	"github.com/Veraticus/clawback/internal/model"
	"github.com/Veraticus/clawback/internal/pipeline"
	"github.com/Veraticus/clawback/internal/queue"
	"github.com/Veraticus/clawback/internal/service"
	"github.com/spf13/cobra"
)

func processCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Process pending statements",
		Long: `Runs documents through detection, normalization, counterparty resolution,
deduplication and rule evaluation. Documents of one case are processed one at
a time; different cases run in parallel.`,
		RunE: runProcess,
	}
	cmd.Flags().String("case", "", "process the pending documents of this case")
	cmd.Flags().Int64("document", 0, "process a single document of --case, whatever its status")
	cmd.Flags().Bool("all-pending", false, "process pending documents of every case")
	return cmd
}

func runProcess(cmd *cobra.Command, _ []string) error {
	caseID, _ := cmd.Flags().GetString("case")
	documentID, _ := cmd.Flags().GetInt64("document")
	allPending, _ := cmd.Flags().GetBool("all-pending")

	if caseID == "" && !allPending {
		return common.NewUserError("specify --case or --all-pending", nil)
	}
	if documentID != 0 && caseID == "" {
		return common.NewUserError("--document requires --case", nil)
	}

	handler := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := handler.HandleInterrupts(cmd.Context(), true)

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	store, err := initStorage(ctx, settings)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	docs, err := selectDocuments(ctx, store, caseID, documentID, allPending)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Nothing to process"))
		return nil
	}

	orch := newOrchestrator(store, settings)
	q := newQueue(store, settings)
	q.Start(ctx)

	bar := cli.NewProgressBar(cmd.ErrOrStderr(), len(docs), "Processing documents...")
	var (
		mu      sync.Mutex
		results = make(map[int64]*pipeline.Result, len(docs))
		failed  = make(map[int64]error)
	)

	for i := range docs {
		doc := docs[i]
		if ctx.Err() != nil {
			break
		}
		job := queue.Job{
			CaseID: doc.CaseID,
			Name:   "process_document",
			Run: func(ctx context.Context) error {
				res, err := orch.ProcessDocument(ctx, doc.CaseID, doc.ID)
				if err == nil {
					mu.Lock()
					results[doc.ID] = res
					mu.Unlock()
				}
				return err
			},
			OnDone: func(_ string, err error) {
				if err != nil && !errors.Is(err, context.Canceled) {
					mu.Lock()
					failed[doc.ID] = err
					mu.Unlock()
				}
				_ = bar.Add(1)
			},
		}
		if err := submitWithBackpressure(ctx, q, job); err != nil {
			q.Stop()
			return err
		}
	}

	q.Drain()
	q.Stop()

	out := cmd.OutOrStdout()
	for _, doc := range docs {
		if res, ok := results[doc.ID]; ok {
			fmt.Fprintln(out, cli.RenderResult(doc.FileName, res))
		} else if err, ok := failed[doc.ID]; ok {
			fmt.Fprintln(out, cli.FormatError(fmt.Sprintf("%s: %v", doc.FileName, err)))
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d documents failed", len(failed), len(docs))
	}
	if handler.WasInterrupted() {
		fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("%d of %d documents processed", len(results), len(docs))))
	}
	return nil
}

// submitWithBackpressure waits for room in the queue instead of failing.
func submitWithBackpressure(ctx context.Context, q *queue.Queue, job queue.Job) error {
	for {
		_, err := q.Submit(job)
		if !errors.Is(err, queue.ErrQueueFull) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func selectDocuments(ctx context.Context, store service.Storage, caseID string, documentID int64, allPending bool) ([]model.Document, error) {
	switch {
	case documentID != 0:
		doc, err := store.GetDocument(ctx, caseID, documentID)
		if err != nil {
			return nil, err
		}
		return []model.Document{*doc}, nil
	case caseID != "":
		if _, err := store.GetCase(ctx, caseID); err != nil {
			return nil, err
		}
		return store.ListDocuments(ctx, caseID, model.DocumentPending)
	case allPending:
		return store.ListPendingDocuments(ctx)
	}
	return nil, nil
}

func ocrCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ocr <case> <document>",
		Short: "Process a scanned statement from its recognized text",
		Long: `Processes a document that was marked ocr_required. The recognized text is
read from "<file>.ocr.txt" next to the scan, as written by an external OCR
engine, and then handled like any other statement.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			documentID, err := parseDocumentID(args[1])
			if err != nil {
				return err
			}

			settings, err := loadSettings()
			if err != nil {
				return err
			}
			store, err := initStorage(ctx, settings)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			res, err := newOrchestrator(store, settings).ProcessDocumentWithOCR(ctx, args[0], documentID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderResult(fmt.Sprintf("document %d", documentID), res))
			return nil
		},
	}
}
