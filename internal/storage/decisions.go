package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Veraticus/clawback/internal/model"
)

// SaveDedupDecision appends an immutable dedup decision.
func (s *SQLiteStorage) SaveDedupDecision(ctx context.Context, decision *model.DedupDecision) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if decision == nil {
		return fmt.Errorf("%w: decision", ErrNilParameter)
	}
	return s.saveDedupDecisionTx(ctx, s.db, decision)
}

func (s *SQLiteStorage) saveDedupDecisionTx(ctx context.Context, q queryable, d *model.DedupDecision) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	key, err := encodeList(d.Key)
	if err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO dedup_decisions (
			case_id, transaction_id, decision, duplicate_of, method, confidence,
			reason, fingerprint_key, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.CaseID, d.TransactionID, d.Decision, d.DuplicateOf, d.Method, d.Confidence,
		nullString(d.Reason), key, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save dedup decision: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get dedup decision id: %w", err)
	}
	d.ID = id
	return nil
}

// ListDedupDecisions returns a case's dedup decisions in insertion order.
func (s *SQLiteStorage) ListDedupDecisions(ctx context.Context, caseID string) ([]model.DedupDecision, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listDedupDecisionsTx(ctx, s.db, caseID)
}

func (s *SQLiteStorage) listDedupDecisionsTx(ctx context.Context, q queryable, caseID string) ([]model.DedupDecision, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, case_id, transaction_id, decision, duplicate_of, method, confidence,
			reason, fingerprint_key, created_at
		FROM dedup_decisions
		WHERE case_id = ?
		ORDER BY id
	`, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dedup decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var decisions []model.DedupDecision
	for rows.Next() {
		var (
			d           model.DedupDecision
			reason, key sql.NullString
			createdAt   sql.NullTime
		)
		if err := rows.Scan(&d.ID, &d.CaseID, &d.TransactionID, &d.Decision, &d.DuplicateOf,
			&d.Method, &d.Confidence, &reason, &key, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan dedup decision: %w", err)
		}
		d.Reason = reason.String
		if createdAt.Valid {
			d.CreatedAt = createdAt.Time
		}
		if d.Key, err = decodeList[string](key); err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

// DeleteRuleEvaluations removes all evaluations of a case ahead of a fresh run.
func (s *SQLiteStorage) DeleteRuleEvaluations(ctx context.Context, caseID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(caseID, "caseID"); err != nil {
		return err
	}
	return s.deleteRuleEvaluationsTx(ctx, s.db, caseID)
}

func (s *SQLiteStorage) deleteRuleEvaluationsTx(ctx context.Context, q queryable, caseID string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM rule_evaluations WHERE case_id = ?`, caseID); err != nil {
		return fmt.Errorf("failed to delete rule evaluations: %w", err)
	}
	return nil
}

// SaveRuleEvaluations stores evaluations, replacing any previous result for the same rule and transaction.
func (s *SQLiteStorage) SaveRuleEvaluations(ctx context.Context, evals []model.RuleEvaluation) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(evals) == 0 {
		return nil
	}
	return s.inTx(ctx, func(q queryable) error {
		return s.saveRuleEvaluationsTx(ctx, q, evals)
	})
}

func (s *SQLiteStorage) saveRuleEvaluationsTx(ctx context.Context, q queryable, evals []model.RuleEvaluation) error {
	now := time.Now()
	for i := range evals {
		eval := &evals[i]
		if err := validateEvaluation(eval); err != nil {
			return fmt.Errorf("evaluation at index %d: %w", i, err)
		}
		if eval.CreatedAt.IsZero() {
			eval.CreatedAt = now
		}

		met, err := encodeList(eval.ConditionsMet)
		if err != nil {
			return err
		}
		missing, err := encodeList(eval.ConditionsMissing)
		if err != nil {
			return err
		}
		present, err := encodeList(eval.EvidencePresent)
		if err != nil {
			return err
		}
		evidenceMissing, err := encodeList(eval.EvidenceMissing)
		if err != nil {
			return err
		}

		_, err = q.ExecContext(ctx, `
			INSERT OR REPLACE INTO rule_evaluations (
				case_id, transaction_id, rule_id, rule_version, decision, confidence,
				explanation, legal_basis, lookback_start, lookback_end,
				conditions_met, conditions_missing, evidence_present, evidence_missing, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, eval.CaseID, eval.TransactionID, eval.RuleID, eval.RuleVersion, string(eval.Decision),
			eval.Confidence, nullString(eval.Explanation), nullString(eval.LegalBasis),
			formatDate(eval.LookbackStart), formatDate(eval.LookbackEnd),
			met, missing, present, evidenceMissing, eval.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to save evaluation %s for transaction %d: %w", eval.RuleID, eval.TransactionID, err)
		}
	}
	return nil
}

// ListRuleEvaluations returns a case's evaluations ordered by transaction and rule.
func (s *SQLiteStorage) ListRuleEvaluations(ctx context.Context, caseID string) ([]model.RuleEvaluation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listRuleEvaluationsTx(ctx, s.db, caseID)
}

func (s *SQLiteStorage) listRuleEvaluationsTx(ctx context.Context, q queryable, caseID string) ([]model.RuleEvaluation, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT case_id, transaction_id, rule_id, rule_version, decision, confidence,
			explanation, legal_basis, lookback_start, lookback_end,
			conditions_met, conditions_missing, evidence_present, evidence_missing, created_at
		FROM rule_evaluations
		WHERE case_id = ?
		ORDER BY transaction_id, id
	`, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rule evaluations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var evals []model.RuleEvaluation
	for rows.Next() {
		var (
			e                                model.RuleEvaluation
			decision                         string
			explanation, legalBasis          sql.NullString
			start, end                       sql.NullString
			met, missing, present, evMissing sql.NullString
			createdAt                        sql.NullTime
		)
		if err := rows.Scan(&e.CaseID, &e.TransactionID, &e.RuleID, &e.RuleVersion, &decision,
			&e.Confidence, &explanation, &legalBasis, &start, &end,
			&met, &missing, &present, &evMissing, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan rule evaluation: %w", err)
		}

		e.Decision = model.Decision(decision)
		e.Explanation = explanation.String
		e.LegalBasis = legalBasis.String
		if createdAt.Valid {
			e.CreatedAt = createdAt.Time
		}
		if e.LookbackStart, err = parseDate(start); err != nil {
			return nil, err
		}
		if e.LookbackEnd, err = parseDate(end); err != nil {
			return nil, err
		}
		if e.ConditionsMet, err = decodeList[model.Condition](met); err != nil {
			return nil, err
		}
		if e.ConditionsMissing, err = decodeList[model.Condition](missing); err != nil {
			return nil, err
		}
		if e.EvidencePresent, err = decodeList[string](present); err != nil {
			return nil, err
		}
		if e.EvidenceMissing, err = decodeList[string](evMissing); err != nil {
			return nil, err
		}
		evals = append(evals, e)
	}
	return evals, rows.Err()
}
