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

const transactionColumns = `id, case_id, source_document_id, source_file, booking_date, value_date,
	amount, currency, debtor_iban, creditor_iban, debtor_name, creditor_name,
	counterparty_name_raw, purpose, raw_description, normalized_description,
	end_to_end_id, bank_reference, counterparty_id, fingerprint, is_duplicate,
	duplicate_of, cluster_id, system_tags, user_tags, tags, rule_hits, created_at`

// InsertTransaction stores a canonical transaction and assigns its id.
// A row with the same fingerprint from the same document yields common.ErrDuplicateEntry.
func (s *SQLiteStorage) InsertTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}
	return s.insertTransactionTx(ctx, s.db, txn)
}

func (s *SQLiteStorage) insertTransactionTx(ctx context.Context, q queryable, txn *model.Transaction) error {
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}

	systemTags, err := encodeList(txn.SystemTags)
	if err != nil {
		return err
	}
	userTags, err := encodeList(txn.UserTags)
	if err != nil {
		return err
	}
	tags, err := encodeList(txn.Tags)
	if err != nil {
		return err
	}
	hits, err := encodeList(txn.RuleHits)
	if err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO transactions (
			case_id, source_document_id, source_file, booking_date, value_date,
			amount, currency, debtor_iban, creditor_iban, debtor_name, creditor_name,
			counterparty_name_raw, purpose, raw_description, normalized_description,
			end_to_end_id, bank_reference, counterparty_id, fingerprint, is_duplicate,
			duplicate_of, cluster_id, system_tags, user_tags, tags, rule_hits, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		txn.CaseID, txn.SourceDocumentID, nullString(txn.SourceFile),
		txn.BookingDate.Format(dateLayout), formatDate(txn.ValueDate),
		txn.Amount, txn.Currency, nullString(txn.DebtorIBAN), nullString(txn.CreditorIBAN),
		nullString(txn.DebtorName), nullString(txn.CreditorName),
		nullString(txn.CounterpartyNameRaw), nullString(txn.Purpose),
		nullString(txn.RawDescription), nullString(txn.NormalizedDescription),
		nullString(txn.EndToEndID), nullString(txn.BankReference),
		nullInt64(txn.CounterpartyID), txn.Fingerprint, txn.IsDuplicate,
		nullInt64(txn.DuplicateOf), nullInt64(txn.ClusterID),
		systemTags, userTags, tags, hits, txn.CreatedAt,
	)
	if err != nil {
		if common.IsConstraintViolation(err) {
			return fmt.Errorf("transaction %s in document %d: %w", txn.Fingerprint, txn.SourceDocumentID, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get transaction id: %w", err)
	}
	txn.ID = id
	return nil
}

// GetTransaction retrieves one transaction of a case.
func (s *SQLiteStorage) GetTransaction(ctx context.Context, caseID string, id int64) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getTransactionTx(ctx, s.db, caseID, id)
}

func (s *SQLiteStorage) getTransactionTx(ctx context.Context, q queryable, caseID string, id int64) (*model.Transaction, error) {
	row := q.QueryRowContext(ctx, `SELECT `+transactionColumns+`
		FROM transactions
		WHERE id = ? AND case_id = ?
	`, id, caseID)

	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %d in case %s: %w", id, caseID, common.ErrNotFound)
	}
	return txn, err
}

// ListTransactions returns a case's transactions ordered by booking date, then insertion order.
func (s *SQLiteStorage) ListTransactions(ctx context.Context, caseID string, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(caseID, "caseID"); err != nil {
		return nil, err
	}
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	return s.listTransactionsTx(ctx, s.db, caseID, filter)
}

func (s *SQLiteStorage) listTransactionsTx(ctx context.Context, q queryable, caseID string, filter service.TransactionFilter) ([]model.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE case_id = ?`
	args := []any{caseID}

	if filter.CanonicalOnly {
		query += " AND is_duplicate = 0"
	}
	if filter.DocumentID != 0 {
		query += " AND source_document_id = ?"
		args = append(args, filter.DocumentID)
	}
	if filter.StartDate != nil {
		query += " AND booking_date >= ?"
		args = append(args, filter.StartDate.Format(dateLayout))
	}
	if filter.EndDate != nil {
		query += " AND booking_date <= ?"
		args = append(args, filter.EndDate.Format(dateLayout))
	}

	query += " ORDER BY booking_date, id"

	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *txn)
	}
	return transactions, rows.Err()
}

// MarkDuplicate flags a transaction as a duplicate of the canonical one.
// The row is kept; duplicate_of and cluster_id both point at the canonical id.
func (s *SQLiteStorage) MarkDuplicate(ctx context.Context, caseID string, transactionID, canonicalID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.markDuplicateTx(ctx, s.db, caseID, transactionID, canonicalID)
}

func (s *SQLiteStorage) markDuplicateTx(ctx context.Context, q queryable, caseID string, transactionID, canonicalID int64) error {
	if transactionID == canonicalID {
		return fmt.Errorf("%w: transaction %d cannot duplicate itself", ErrInvalidTransaction, transactionID)
	}
	result, err := q.ExecContext(ctx, `
		UPDATE transactions
		SET is_duplicate = 1, duplicate_of = ?, cluster_id = ?
		WHERE id = ? AND case_id = ?
	`, canonicalID, canonicalID, transactionID, caseID)
	if err != nil {
		return fmt.Errorf("failed to mark duplicate: %w", err)
	}
	return requireAffected(result, "transaction", transactionID)
}

// UpdateTransactionTags persists the system, user and combined tags and rule hit summaries.
func (s *SQLiteStorage) UpdateTransactionTags(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	return s.updateTransactionTagsTx(ctx, s.db, txn)
}

func (s *SQLiteStorage) updateTransactionTagsTx(ctx context.Context, q queryable, txn *model.Transaction) error {
	systemTags, err := encodeList(txn.SystemTags)
	if err != nil {
		return err
	}
	userTags, err := encodeList(txn.UserTags)
	if err != nil {
		return err
	}
	tags, err := encodeList(txn.Tags)
	if err != nil {
		return err
	}
	hits, err := encodeList(txn.RuleHits)
	if err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, `
		UPDATE transactions
		SET system_tags = ?, user_tags = ?, tags = ?, rule_hits = ?
		WHERE id = ? AND case_id = ?
	`, systemTags, userTags, tags, hits, txn.ID, txn.CaseID)
	if err != nil {
		return fmt.Errorf("failed to update transaction tags: %w", err)
	}
	return requireAffected(result, "transaction", txn.ID)
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var (
		txn                                             model.Transaction
		sourceFile, valueDate, debtorIBAN, creditorIBAN sql.NullString
		debtorName, creditorName, cpRaw, purpose        sql.NullString
		rawDesc, normDesc, e2e, bankRef                 sql.NullString
		systemTags, userTags, tags, hits                sql.NullString
		bookingDate                                     string
		counterpartyID, duplicateOf, clusterID          sql.NullInt64
		createdAt                                       sql.NullTime
	)

	err := row.Scan(
		&txn.ID, &txn.CaseID, &txn.SourceDocumentID, &sourceFile, &bookingDate, &valueDate,
		&txn.Amount, &txn.Currency, &debtorIBAN, &creditorIBAN, &debtorName, &creditorName,
		&cpRaw, &purpose, &rawDesc, &normDesc,
		&e2e, &bankRef, &counterpartyID, &txn.Fingerprint, &txn.IsDuplicate,
		&duplicateOf, &clusterID, &systemTags, &userTags, &tags, &hits, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	txn.BookingDate, err = time.Parse(dateLayout, bookingDate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse booking date %q: %w", bookingDate, err)
	}
	if txn.ValueDate, err = parseDate(valueDate); err != nil {
		return nil, err
	}

	txn.SourceFile = sourceFile.String
	txn.DebtorIBAN = debtorIBAN.String
	txn.CreditorIBAN = creditorIBAN.String
	txn.DebtorName = debtorName.String
	txn.CreditorName = creditorName.String
	txn.CounterpartyNameRaw = cpRaw.String
	txn.Purpose = purpose.String
	txn.RawDescription = rawDesc.String
	txn.NormalizedDescription = normDesc.String
	txn.EndToEndID = e2e.String
	txn.BankReference = bankRef.String
	txn.CounterpartyID = int64Ptr(counterpartyID)
	txn.DuplicateOf = int64Ptr(duplicateOf)
	txn.ClusterID = int64Ptr(clusterID)
	if createdAt.Valid {
		txn.CreatedAt = createdAt.Time
	}

	if txn.SystemTags, err = decodeList[string](systemTags); err != nil {
		return nil, err
	}
	if txn.UserTags, err = decodeList[string](userTags); err != nil {
		return nil, err
	}
	if txn.Tags, err = decodeList[string](tags); err != nil {
		return nil, err
	}
	if txn.RuleHits, err = decodeList[model.RuleHit](hits); err != nil {
		return nil, err
	}
	return &txn, nil
}

func validateFilter(filter service.TransactionFilter) error {
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return fmt.Errorf("%w: end date %v is before start date %v", ErrInvalidDateRange, *filter.EndDate, *filter.StartDate)
	}
	return nil
}
