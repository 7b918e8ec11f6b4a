package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/Veraticus/clawback/internal/audit"
	"github.com/Veraticus/clawback/internal/common"
	"github.com/Veraticus/clawback/internal/model"
	"github.com/Veraticus/clawback/internal/service"
)

// Tags a reviewer sets on flagged transactions.
const (
	TagReviewConfirmed = "REVIEW_CONFIRMED"
	TagReviewDismissed = "REVIEW_DISMISSED"
)

// SetUserTags replaces the user tags of one transaction and recomputes its
// combined tags. System tags and rule hits are left untouched.
func (o *Orchestrator) SetUserTags(ctx context.Context, caseID string, transactionID int64, tags []string) (*model.Transaction, error) {
	var txn *model.Transaction
	err := o.withTx(ctx, func(tx service.Transaction) error {
		var err error
		txn, err = tx.GetTransaction(ctx, caseID, transactionID)
		if err != nil {
			return fmt.Errorf("failed to load transaction %d: %w", transactionID, err)
		}

		before := txn.UserTags
		txn.UserTags = cleanTags(tags)
		txn.Tags = mergeTags(txn.SystemTags, txn.UserTags)
		if err := tx.UpdateTransactionTags(ctx, txn); err != nil {
			return err
		}

		return tx.AppendAuditEvent(ctx, &model.AuditEvent{
			CaseID:     caseID,
			Actor:      model.ActorReviewer,
			Action:     audit.ActionTransactionTagged,
			EntityType: audit.EntityTransaction,
			EntityID:   fmt.Sprint(transactionID),
			Payload:    map[string]any{"before": before, "after": txn.UserTags},
		})
	})
	if err != nil {
		return nil, err
	}

	common.LogInfo("user tags updated", common.Fields{
		"case_id":        caseID,
		"transaction_id": transactionID,
		"tags":           txn.UserTags,
	})
	return txn, nil
}

// ToggleReview sets or clears one of the review tags, keeping the two
// mutually exclusive and preserving any other user tags.
func ToggleReview(userTags []string, tag string) []string {
	var had bool
	out := make([]string, 0, len(userTags)+1)
	for _, t := range userTags {
		switch t {
		case tag:
			had = true
		case TagReviewConfirmed, TagReviewDismissed:
		default:
			out = append(out, t)
		}
	}
	if !had {
		out = append(out, tag)
	}
	return cleanTags(out)
}

// cleanTags trims and de-duplicates tags.
func cleanTags(tags []string) []string {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			set[t] = struct{}{}
		}
	}
	return sortedKeys(set)
}

func mergeTags(sets ...[]string) []string {
	combined := map[string]struct{}{}
	for _, set := range sets {
		for _, t := range set {
			if t != "" {
				combined[t] = struct{}{}
			}
		}
	}
	return sortedKeys(combined)
}
