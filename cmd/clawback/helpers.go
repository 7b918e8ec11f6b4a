package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Veraticus/clawback/internal/common"
	"github.com/Veraticus/clawback/internal/config"
	"github.com/Veraticus/clawback/internal/counterparty"
	"github.com/Veraticus/clawback/internal/ingest"
	"github.com/Veraticus/clawback/internal/pipeline"
	"github.com/Veraticus/clawback/internal/queue"
	"github.com/Veraticus/clawback/internal/service"
	"github.com/Veraticus/clawback/internal/storage"
	"github.com/spf13/viper"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

func loadSettings() (*config.Settings, error) {
	s, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, common.NewUserError("invalid configuration", err)
	}
	return s, nil
}

// initStorage opens the database and brings its schema up to date.
func initStorage(ctx context.Context, s *config.Settings) (service.Storage, error) {
	if err := s.EnsureDatabaseDir(); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	store, err := storage.NewSQLiteStorage(s.DatabasePath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

func newOrchestrator(store service.Storage, s *config.Settings) *pipeline.Orchestrator {
	extractor := ingest.NewPDFExtractor()
	loader := ingest.NewLoader(extractor)
	loader.Detector.SamplePages = s.PDFSamplePages
	loader.Detector.MinChars = s.PDFMinChars

	return pipeline.New(store, pipeline.Config{
		Loader:   loader,
		Resolver: counterparty.NewResolver(s.FuzzyThreshold),
	})
}

func newQueue(store service.Storage, s *config.Settings) *queue.Queue {
	return queue.New(queue.Config{
		Workers:  s.QueueWorkers,
		Capacity: s.QueueCapacity,
		Audit:    store,
	})
}

func parseDocumentID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, common.NewUserError(fmt.Sprintf("invalid document id %q", raw), err)
	}
	return id, nil
}
