package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/clawback/internal/common"
	"github.com/Veraticus/clawback/internal/model"
)

const counterpartyColumns = `id, case_id, name, account_number, role, related_party, aliases,
	name_norm, matched_by, match_score, enrichment_status, enrichment_sources,
	created_at, updated_at`

// ListCounterparties returns a case's counterparties in id order.
func (s *SQLiteStorage) ListCounterparties(ctx context.Context, caseID string) ([]model.Counterparty, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(caseID, "caseID"); err != nil {
		return nil, err
	}
	return s.listCounterpartiesTx(ctx, s.db, caseID)
}

func (s *SQLiteStorage) listCounterpartiesTx(ctx context.Context, q queryable, caseID string) ([]model.Counterparty, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+counterpartyColumns+`
		FROM counterparties
		WHERE case_id = ?
		ORDER BY id
	`, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query counterparties: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var counterparties []model.Counterparty
	for rows.Next() {
		cp, err := scanCounterparty(rows)
		if err != nil {
			return nil, err
		}
		counterparties = append(counterparties, *cp)
	}
	return counterparties, rows.Err()
}

// GetCounterparty retrieves a counterparty by id.
func (s *SQLiteStorage) GetCounterparty(ctx context.Context, caseID string, id int64) (*model.Counterparty, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getCounterpartyTx(ctx, s.db, caseID, id)
}

func (s *SQLiteStorage) getCounterpartyTx(ctx context.Context, q queryable, caseID string, id int64) (*model.Counterparty, error) {
	row := q.QueryRowContext(ctx, `SELECT `+counterpartyColumns+`
		FROM counterparties
		WHERE id = ? AND case_id = ?
	`, id, caseID)

	cp, err := scanCounterparty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("counterparty %d in case %s: %w", id, caseID, common.ErrNotFound)
	}
	return cp, err
}

// GetCounterpartyByAccount finds the first counterparty of a case holding the account.
func (s *SQLiteStorage) GetCounterpartyByAccount(ctx context.Context, caseID, account string) (*model.Counterparty, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(account, "account"); err != nil {
		return nil, err
	}
	return s.getCounterpartyByAccountTx(ctx, s.db, caseID, account)
}

func (s *SQLiteStorage) getCounterpartyByAccountTx(ctx context.Context, q queryable, caseID, account string) (*model.Counterparty, error) {
	row := q.QueryRowContext(ctx, `SELECT `+counterpartyColumns+`
		FROM counterparties
		WHERE case_id = ? AND account_number = ?
		ORDER BY id
		LIMIT 1
	`, caseID, account)

	cp, err := scanCounterparty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("counterparty with account %s: %w", account, common.ErrNotFound)
	}
	return cp, err
}

// CreateCounterparty stores a new counterparty and assigns its id.
func (s *SQLiteStorage) CreateCounterparty(ctx context.Context, cp *model.Counterparty) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCounterparty(cp); err != nil {
		return err
	}
	return s.createCounterpartyTx(ctx, s.db, cp)
}

func (s *SQLiteStorage) createCounterpartyTx(ctx context.Context, q queryable, cp *model.Counterparty) error {
	now := time.Now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	if cp.Role == "" {
		cp.Role = model.RoleUnknown
	}
	if cp.RelatedParty == "" {
		cp.RelatedParty = model.RelatedUnknown
	}

	aliases, err := encodeList(cp.Aliases)
	if err != nil {
		return err
	}
	sources, err := encodeList(cp.EnrichmentSources)
	if err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO counterparties (
			case_id, name, account_number, role, related_party, aliases,
			name_norm, matched_by, match_score, enrichment_status, enrichment_sources,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, cp.CaseID, cp.Name, nullString(cp.AccountNumber), string(cp.Role), string(cp.RelatedParty),
		aliases, nullString(cp.NameNorm), nullString(string(cp.MatchedBy)), cp.MatchScore,
		nullString(cp.EnrichmentStatus), sources, cp.CreatedAt, cp.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create counterparty: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get counterparty id: %w", err)
	}
	cp.ID = id
	return nil
}

// UpdateCounterparty persists all mutable counterparty fields.
func (s *SQLiteStorage) UpdateCounterparty(ctx context.Context, cp *model.Counterparty) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCounterparty(cp); err != nil {
		return err
	}
	return s.updateCounterpartyTx(ctx, s.db, cp)
}

func (s *SQLiteStorage) updateCounterpartyTx(ctx context.Context, q queryable, cp *model.Counterparty) error {
	cp.UpdatedAt = time.Now()

	aliases, err := encodeList(cp.Aliases)
	if err != nil {
		return err
	}
	sources, err := encodeList(cp.EnrichmentSources)
	if err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, `
		UPDATE counterparties
		SET name = ?, account_number = ?, role = ?, related_party = ?, aliases = ?,
			name_norm = ?, matched_by = ?, match_score = ?, enrichment_status = ?,
			enrichment_sources = ?, updated_at = ?
		WHERE id = ? AND case_id = ?
	`, cp.Name, nullString(cp.AccountNumber), string(cp.Role), string(cp.RelatedParty), aliases,
		nullString(cp.NameNorm), nullString(string(cp.MatchedBy)), cp.MatchScore,
		nullString(cp.EnrichmentStatus), sources, cp.UpdatedAt, cp.ID, cp.CaseID)
	if err != nil {
		return fmt.Errorf("failed to update counterparty %d: %w", cp.ID, err)
	}
	return requireAffected(result, "counterparty", cp.ID)
}

func scanCounterparty(row rowScanner) (*model.Counterparty, error) {
	var (
		cp                                     model.Counterparty
		account, nameNorm, matchedBy, enrichSt sql.NullString
		aliases, sources                       sql.NullString
		role, related                          string
		createdAt, updatedAt                   sql.NullTime
	)
	err := row.Scan(&cp.ID, &cp.CaseID, &cp.Name, &account, &role, &related, &aliases,
		&nameNorm, &matchedBy, &cp.MatchScore, &enrichSt, &sources, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan counterparty: %w", err)
	}

	cp.AccountNumber = account.String
	cp.Role = model.CounterpartyRole(role)
	cp.RelatedParty = model.RelatedParty(related)
	cp.NameNorm = nameNorm.String
	cp.MatchedBy = model.MatchMethod(matchedBy.String)
	cp.EnrichmentStatus = enrichSt.String
	if createdAt.Valid {
		cp.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		cp.UpdatedAt = updatedAt.Time
	}

	if cp.Aliases, err = decodeList[string](aliases); err != nil {
		return nil, err
	}
	if cp.EnrichmentSources, err = decodeList[string](sources); err != nil {
		return nil, err
	}
	return &cp, nil
}
