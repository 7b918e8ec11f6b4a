package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 4

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Cases, company accounts and documents",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS cases (
					id TEXT PRIMARY KEY,
					company_name TEXT NOT NULL,
					court TEXT,
					filing_date TEXT,
					opening_date TEXT,
					cutoff_date TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS company_accounts (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					case_id TEXT NOT NULL,
					position INTEGER NOT NULL,
					account_number TEXT NOT NULL,
					currency TEXT NOT NULL DEFAULT 'EUR',
					UNIQUE (case_id, account_number),
					FOREIGN KEY (case_id) REFERENCES cases(id) ON DELETE CASCADE
				)`,

				`CREATE TABLE IF NOT EXISTS documents (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					case_id TEXT NOT NULL,
					document_type TEXT NOT NULL DEFAULT 'bank_statement',
					file_name TEXT NOT NULL,
					file_path TEXT NOT NULL,
					detected_format TEXT,
					status TEXT NOT NULL DEFAULT 'pending',
					error TEXT,
					processed_at DATETIME,
					uploaded_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (case_id) REFERENCES cases(id) ON DELETE CASCADE
				)`,
				`CREATE INDEX idx_documents_case ON documents(case_id)`,
				`CREATE INDEX idx_documents_status ON documents(status)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Counterparties and canonical transactions",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS counterparties (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					case_id TEXT NOT NULL,
					name TEXT NOT NULL,
					account_number TEXT,
					role TEXT NOT NULL DEFAULT 'unknown',
					related_party TEXT NOT NULL DEFAULT 'unknown',
					aliases TEXT,
					name_norm TEXT,
					matched_by TEXT,
					match_score REAL DEFAULT 0,
					enrichment_status TEXT,
					enrichment_sources TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (case_id) REFERENCES cases(id) ON DELETE CASCADE
				)`,
				`CREATE INDEX idx_counterparties_account ON counterparties(case_id, account_number)`,
				`CREATE INDEX idx_counterparties_name_norm ON counterparties(case_id, name_norm)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					case_id TEXT NOT NULL,
					source_document_id INTEGER NOT NULL,
					source_file TEXT,
					booking_date TEXT NOT NULL,
					value_date TEXT,
					amount REAL NOT NULL,
					currency TEXT NOT NULL DEFAULT 'EUR',
					debtor_iban TEXT,
					creditor_iban TEXT,
					debtor_name TEXT,
					creditor_name TEXT,
					counterparty_name_raw TEXT,
					purpose TEXT,
					raw_description TEXT,
					normalized_description TEXT,
					end_to_end_id TEXT,
					bank_reference TEXT,
					counterparty_id INTEGER,
					fingerprint TEXT NOT NULL,
					is_duplicate INTEGER NOT NULL DEFAULT 0,
					duplicate_of INTEGER,
					cluster_id INTEGER,
					system_tags TEXT,
					user_tags TEXT,
					tags TEXT,
					rule_hits TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (case_id) REFERENCES cases(id) ON DELETE CASCADE,
					FOREIGN KEY (source_document_id) REFERENCES documents(id),
					FOREIGN KEY (counterparty_id) REFERENCES counterparties(id)
				)`,
				// Re-processing a document must not insert its rows twice.
				`CREATE UNIQUE INDEX idx_transactions_document_fingerprint
					ON transactions(source_document_id, fingerprint)`,
				`CREATE INDEX idx_transactions_case_date ON transactions(case_id, booking_date, id)`,
				`CREATE INDEX idx_transactions_fingerprint ON transactions(case_id, fingerprint)`,
			})
		},
	},
	{
		Version:     3,
		Description: "Dedup decisions, rule evaluations and audit log",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS dedup_decisions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					case_id TEXT NOT NULL,
					transaction_id INTEGER NOT NULL,
					decision TEXT NOT NULL,
					duplicate_of INTEGER NOT NULL,
					method TEXT NOT NULL,
					confidence REAL NOT NULL,
					reason TEXT,
					fingerprint_key TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (transaction_id) REFERENCES transactions(id)
				)`,
				`CREATE INDEX idx_dedup_decisions_case ON dedup_decisions(case_id)`,

				`CREATE TABLE IF NOT EXISTS rule_evaluations (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					case_id TEXT NOT NULL,
					transaction_id INTEGER NOT NULL,
					rule_id TEXT NOT NULL,
					rule_version TEXT NOT NULL,
					decision TEXT NOT NULL,
					confidence REAL NOT NULL,
					explanation TEXT,
					legal_basis TEXT,
					lookback_start TEXT,
					lookback_end TEXT,
					conditions_met TEXT,
					conditions_missing TEXT,
					evidence_present TEXT,
					evidence_missing TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE (case_id, transaction_id, rule_id),
					FOREIGN KEY (transaction_id) REFERENCES transactions(id)
				)`,
				`CREATE INDEX idx_rule_evaluations_decision ON rule_evaluations(case_id, decision)`,

				`CREATE TABLE IF NOT EXISTS audit_events (
					id TEXT PRIMARY KEY,
					case_id TEXT,
					actor TEXT NOT NULL,
					action TEXT NOT NULL,
					entity_type TEXT,
					entity_id TEXT,
					payload TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_audit_events_case ON audit_events(case_id, created_at)`,
			})
		},
	},
	{
		Version:     4,
		Description: "Add OCR progress tracking to documents",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`ALTER TABLE documents ADD COLUMN ocr_progress INTEGER NOT NULL DEFAULT 0`,
				`ALTER TABLE documents ADD COLUMN ocr_text_path TEXT`,
			})
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	// Get current version
	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	// Apply migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		// Update version
		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	// Verify we're at the expected schema version
	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
