package counterparty

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Veraticus/clawback/internal/audit"
	"github.com/Veraticus/clawback/internal/common"
	"github.com/Veraticus/clawback/internal/model"
	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// DefaultThreshold is the minimum similarity ratio for a fuzzy name match.
const DefaultThreshold = 0.92

// Store is the storage surface the resolver needs.
type Store interface {
	ListCounterparties(ctx context.Context, caseID string) ([]model.Counterparty, error)
	GetCounterpartyByAccount(ctx context.Context, caseID, account string) (*model.Counterparty, error)
	CreateCounterparty(ctx context.Context, cp *model.Counterparty) error
	UpdateCounterparty(ctx context.Context, cp *model.Counterparty) error
	audit.Appender
}

// Resolver matches raw names and accounts to counterparties, creating them on demand.
type Resolver struct {
	Threshold float64
}

// NewResolver creates a resolver. A threshold outside (0,1] selects the default.
func NewResolver(threshold float64) *Resolver {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Resolver{Threshold: threshold}
}

// Resolve returns the counterparty for name and account. Matching tries the
// exact account, the exact normalized name, then the best fuzzy name match
// at or above the threshold, and otherwise creates a new counterparty.
// It returns nil only when both inputs are empty.
func (r *Resolver) Resolve(ctx context.Context, store Store, caseID, name, account string) (*model.Counterparty, error) {
	name = strings.TrimSpace(name)
	account = NormalizeAccount(account)
	if name == "" && account == "" {
		return nil, nil
	}

	if account != "" {
		cp, err := store.GetCounterpartyByAccount(ctx, caseID, account)
		switch {
		case err == nil:
			return cp, nil
		case !errors.Is(err, common.ErrNotFound):
			return nil, fmt.Errorf("failed to look up account: %w", err)
		}
	}

	norm := NormalizeName(name)
	if norm != "" {
		candidates, err := store.ListCounterparties(ctx, caseID)
		if err != nil {
			return nil, fmt.Errorf("failed to list counterparties: %w", err)
		}

		if cp := exactMatch(candidates, norm); cp != nil {
			return r.attach(ctx, store, cp, name, account, model.MatchExactName, 1)
		}

		if candidate, score := r.fuzzyMatch(candidates, norm); candidate != nil {
			cp, err := r.attach(ctx, store, candidate, name, account, model.MatchFuzzyName, score)
			if err != nil {
				return nil, err
			}
			if err := audit.Record(ctx, store, caseID, audit.ActionCounterpartyFuzzy, audit.EntityCounterparty, cp.ID,
				map[string]any{"name": name, "matched": cp.Name, "score": score}); err != nil {
				return nil, err
			}
			return cp, nil
		}
	}

	return r.create(ctx, store, caseID, name, norm, account)
}

func exactMatch(candidates []model.Counterparty, norm string) *model.Counterparty {
	for i := range candidates {
		if candidates[i].NameNorm == norm {
			return &candidates[i]
		}
	}
	return nil
}

// fuzzyMatch returns the best candidate at or above the threshold. Ties keep
// the earliest candidate.
func (r *Resolver) fuzzyMatch(candidates []model.Counterparty, norm string) (*model.Counterparty, float64) {
	target := []rune(norm)
	var (
		best      *model.Counterparty
		bestScore float64
	)
	for i := range candidates {
		if candidates[i].NameNorm == "" {
			continue
		}
		score := levenshtein.RatioForStrings(target, []rune(candidates[i].NameNorm), levenshtein.DefaultOptions)
		if score > bestScore {
			best, bestScore = &candidates[i], score
		}
	}
	if best == nil || bestScore < r.Threshold {
		return nil, 0
	}
	return best, math.Round(bestScore*1000) / 1000
}

// attach records the raw name as an alias and back-fills a missing account.
func (r *Resolver) attach(ctx context.Context, store Store, cp *model.Counterparty, name, account string, method model.MatchMethod, score float64) (*model.Counterparty, error) {
	changed := cp.AddAlias(name)
	if cp.AccountNumber == "" && account != "" {
		cp.AccountNumber = account
		changed = true
	}
	if cp.MatchedBy != method || cp.MatchScore != score {
		cp.MatchedBy = method
		cp.MatchScore = score
		changed = true
	}
	if !changed {
		return cp, nil
	}
	if err := store.UpdateCounterparty(ctx, cp); err != nil {
		return nil, fmt.Errorf("failed to update counterparty %d: %w", cp.ID, err)
	}
	return cp, nil
}

func (r *Resolver) create(ctx context.Context, store Store, caseID, name, norm, account string) (*model.Counterparty, error) {
	display := name
	if display == "" {
		display = account
	}
	cp := &model.Counterparty{
		CaseID:        caseID,
		Name:          display,
		NameNorm:      norm,
		AccountNumber: account,
		Role:          model.RoleUnknown,
		RelatedParty:  model.RelatedUnknown,
		MatchedBy:     model.MatchCreated,
		MatchScore:    1,
	}
	if err := store.CreateCounterparty(ctx, cp); err != nil {
		return nil, fmt.Errorf("failed to create counterparty: %w", err)
	}
	if err := audit.Record(ctx, store, caseID, audit.ActionCounterpartyCreated, audit.EntityCounterparty, cp.ID,
		map[string]any{"name": display, "account": account}); err != nil {
		return nil, err
	}
	return cp, nil
}
