package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/clawback/internal/common"
	"github.com/Veraticus/clawback/internal/model"
	"github.com/Veraticus/clawback/internal/service"
)

// SaveCase inserts or updates a case and replaces its company accounts.
func (s *SQLiteStorage) SaveCase(ctx context.Context, c *model.Case) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCase(c); err != nil {
		return err
	}
	return s.inTx(ctx, func(q queryable) error {
		return s.saveCaseTx(ctx, q, c)
	})
}

func (s *SQLiteStorage) saveCaseTx(ctx context.Context, q queryable, c *model.Case) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO cases (id, company_name, court, filing_date, opening_date, cutoff_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			company_name = excluded.company_name,
			court = excluded.court,
			filing_date = excluded.filing_date,
			opening_date = excluded.opening_date,
			cutoff_date = excluded.cutoff_date
	`, c.ID, c.CompanyName, nullString(c.Court),
		formatDate(c.FilingDate), formatDate(c.OpeningDate), formatDate(c.CutoffDate),
		c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save case %s: %w", c.ID, err)
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM company_accounts WHERE case_id = ?`, c.ID); err != nil {
		return fmt.Errorf("failed to clear company accounts: %w", err)
	}
	for i, acct := range c.Accounts {
		currency := acct.Currency
		if currency == "" {
			currency = model.DefaultCurrency
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO company_accounts (case_id, position, account_number, currency)
			VALUES (?, ?, ?, ?)
		`, c.ID, i, acct.AccountNumber, currency)
		if err != nil {
			return fmt.Errorf("failed to save company account %s: %w", acct.AccountNumber, err)
		}
	}
	return nil
}

// GetCase retrieves a case with its company accounts.
func (s *SQLiteStorage) GetCase(ctx context.Context, caseID string) (*model.Case, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(caseID, "caseID"); err != nil {
		return nil, err
	}
	return s.getCaseTx(ctx, s.db, caseID)
}

func (s *SQLiteStorage) getCaseTx(ctx context.Context, q queryable, caseID string) (*model.Case, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, company_name, court, filing_date, opening_date, cutoff_date, created_at
		FROM cases
		WHERE id = ?
	`, caseID)

	c, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("case %s: %w", caseID, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadAccounts(ctx, q, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListCases returns all cases ordered by id.
func (s *SQLiteStorage) ListCases(ctx context.Context) ([]model.Case, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listCasesTx(ctx, s.db)
}

func (s *SQLiteStorage) listCasesTx(ctx context.Context, q queryable) ([]model.Case, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, company_name, court, filing_date, opening_date, cutoff_date, created_at
		FROM cases
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cases: %w", err)
	}

	var cases []model.Case
	for rows.Next() {
		c, scanErr := scanCase(rows)
		if scanErr != nil {
			_ = rows.Close()
			return nil, scanErr
		}
		cases = append(cases, *c)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	for i := range cases {
		if err := s.loadAccounts(ctx, q, &cases[i]); err != nil {
			return nil, err
		}
	}
	return cases, nil
}

func (s *SQLiteStorage) loadAccounts(ctx context.Context, q queryable, c *model.Case) error {
	rows, err := q.QueryContext(ctx, `
		SELECT account_number, currency
		FROM company_accounts
		WHERE case_id = ?
		ORDER BY position
	`, c.ID)
	if err != nil {
		return fmt.Errorf("failed to query company accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	c.Accounts = nil
	for rows.Next() {
		var acct model.CompanyAccount
		if err := rows.Scan(&acct.AccountNumber, &acct.Currency); err != nil {
			return fmt.Errorf("failed to scan company account: %w", err)
		}
		c.Accounts = append(c.Accounts, acct)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (*model.Case, error) {
	var (
		c                       model.Case
		court                   sql.NullString
		filing, opening, cutoff sql.NullString
		createdAt               sql.NullTime
	)
	if err := row.Scan(&c.ID, &c.CompanyName, &court, &filing, &opening, &cutoff, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan case: %w", err)
	}
	c.Court = court.String
	if createdAt.Valid {
		c.CreatedAt = createdAt.Time
	}

	var err error
	if c.FilingDate, err = parseDate(filing); err != nil {
		return nil, err
	}
	if c.OpeningDate, err = parseDate(opening); err != nil {
		return nil, err
	}
	if c.CutoffDate, err = parseDate(cutoff); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCaseSummary aggregates document, transaction and evaluation counts for a case.
func (s *SQLiteStorage) GetCaseSummary(ctx context.Context, caseID string) (*service.CaseSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(caseID, "caseID"); err != nil {
		return nil, err
	}
	return s.getCaseSummaryTx(ctx, s.db, caseID)
}

func (s *SQLiteStorage) getCaseSummaryTx(ctx context.Context, q queryable, caseID string) (*service.CaseSummary, error) {
	summary := &service.CaseSummary{
		DocumentsByStatus: make(map[model.DocumentStatus]int),
		FlaggedByRule:     make(map[string]int),
	}

	rows, err := q.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM documents WHERE case_id = ? GROUP BY status
	`, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan document count: %w", err)
		}
		summary.DocumentsByStatus[model.DocumentStatus(status)] = n
	}
	_ = rows.Close()

	err = q.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(is_duplicate), 0) FROM transactions WHERE case_id = ?
	`, caseID).Scan(&summary.Transactions, &summary.Duplicates)
	if err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	err = q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM counterparties WHERE case_id = ?
	`, caseID).Scan(&summary.Counterparties)
	if err != nil {
		return nil, fmt.Errorf("failed to count counterparties: %w", err)
	}

	rows, err = q.QueryContext(ctx, `
		SELECT rule_id, COUNT(*) FROM rule_evaluations
		WHERE case_id = ? AND decision IN (?, ?)
		GROUP BY rule_id
	`, caseID, model.DecisionHit, model.DecisionNeedsReview)
	if err != nil {
		return nil, fmt.Errorf("failed to count evaluations: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var ruleID string
		var n int
		if err := rows.Scan(&ruleID, &n); err != nil {
			return nil, fmt.Errorf("failed to scan evaluation count: %w", err)
		}
		summary.FlaggedByRule[ruleID] = n
	}
	return summary, rows.Err()
}
