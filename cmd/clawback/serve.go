package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Veraticus/clawback/internal/cli"
	"github.com/Veraticus/clawback/internal/pipeline"
	"github.com/Veraticus/clawback/internal/queue"
	"github.com/Veraticus/clawback/internal/service"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Process pending documents on a schedule",
		Long: `Sweeps the database for pending documents on the configured schedule
(scheduler.schedule, default "@every 5m") and hands them to the worker queue.
Stops on SIGINT or SIGTERM after the running documents finish.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			q := newQueue(store, settings)
			q.Start(ctx)
			sw := &sweeper{store: store, orch: newOrchestrator(store, settings), queue: q, inFlight: map[int64]bool{}}

			c := cron.New(cron.WithLocation(settings.Location))
			if _, err := c.AddFunc(settings.Schedule, func() { sw.sweep(ctx) }); err != nil {
				q.Stop()
				return fmt.Errorf("invalid scheduler.schedule %q: %w", settings.Schedule, err)
			}

			slog.Info("Scheduler started", "schedule", settings.Schedule, "timezone", settings.Location.String())
			sw.sweep(ctx)
			c.Start()

			<-ctx.Done()
			<-c.Stop().Done()
			q.Stop()
			slog.Info("Scheduler stopped")
			return nil
		},
	}
}

// sweeper enqueues pending documents that are not already queued.
type sweeper struct {
	store    service.Storage
	orch     *pipeline.Orchestrator
	queue    *queue.Queue
	mu       sync.Mutex
	inFlight map[int64]bool
}

func (s *sweeper) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	docs, err := s.store.ListPendingDocuments(ctx)
	if err != nil {
		slog.Error("Failed to list pending documents", "error", err)
		return
	}

	var queued int
	for _, doc := range docs {
		s.mu.Lock()
		busy := s.inFlight[doc.ID]
		if !busy {
			s.inFlight[doc.ID] = true
		}
		s.mu.Unlock()
		if busy {
			continue
		}

		_, err := s.queue.Submit(queue.Job{
			CaseID: doc.CaseID,
			Name:   "process_document",
			Run: func(ctx context.Context) error {
				_, err := s.orch.ProcessDocument(ctx, doc.CaseID, doc.ID)
				return err
			},
			OnDone: func(string, error) { s.release(doc.ID) },
		})
		if err != nil {
			s.release(doc.ID)
			if errors.Is(err, queue.ErrQueueFull) {
				slog.Warn("Queue full, remaining documents wait for the next sweep", "pending", len(docs)-queued)
				break
			}
			slog.Error("Failed to enqueue document", "document_id", doc.ID, "error", err)
			continue
		}
		queued++
	}

	if queued > 0 {
		slog.Info("Sweep enqueued documents", "count", queued)
	}
}

func (s *sweeper) release(id int64) {
	s.mu.Lock()
	delete(s.inFlight, id)
	s.mu.Unlock()
}
