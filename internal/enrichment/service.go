package enrichment

import (
	"context"
	"fmt"
	"sort"

	"github.com/Veraticus/clawback/internal/audit"
	"github.com/Veraticus/clawback/internal/common"
	"github.com/Veraticus/clawback/internal/counterparty"
	"github.com/Veraticus/clawback/internal/model"
	"github.com/Veraticus/clawback/internal/service"
)

// StatusCompleted is written to every counterparty a run has seen.
const StatusCompleted = "completed"

// Summary reports one enrichment run.
type Summary struct {
	LegalName string
	Sources   []string
	Checked   int
	Flagged   int
}

// Service applies register profiles to a case's counterparties.
type Service struct {
	store    service.Storage
	provider Provider
}

// NewService creates a service. A nil provider selects NoopProvider.
func NewService(store service.Storage, provider Provider) *Service {
	if provider == nil {
		provider = NoopProvider{}
	}
	return &Service{store: store, provider: provider}
}

// EnrichCase fetches the debtor's profile and flags counterparties named in
// it as related parties. Counterparties nobody names keep their role.
// Rules only see the new flags after the case is evaluated again.
func (s *Service) EnrichCase(ctx context.Context, caseID string) (*Summary, error) {
	c, err := s.store.GetCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load case %s: %w", caseID, err)
	}

	profile, err := s.provider.Enrich(ctx, c.CompanyName)
	if err != nil {
		return nil, fmt.Errorf("enrichment provider failed: %w", err)
	}
	roles := profileRoles(profile)

	summary := &Summary{LegalName: profile.LegalName, Sources: profile.Sources}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cps, err := tx.ListCounterparties(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list counterparties: %w", err)
	}

	for i := range cps {
		cp := &cps[i]
		summary.Checked++

		if role, ok := matchRole(cp, roles); ok {
			cp.Role = role
			cp.RelatedParty = model.RelatedYes
			summary.Flagged++
		}
		cp.EnrichmentStatus = StatusCompleted
		cp.EnrichmentSources = mergeSources(cp.EnrichmentSources, profile.Sources)

		if err := tx.UpdateCounterparty(ctx, cp); err != nil {
			return nil, fmt.Errorf("failed to update counterparty %d: %w", cp.ID, err)
		}
		if err := audit.Record(ctx, tx, caseID, audit.ActionCounterpartyEnriched, audit.EntityCounterparty, cp.ID, map[string]any{
			"sources":       cp.EnrichmentSources,
			"role":          cp.Role,
			"related_party": cp.RelatedParty,
		}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit enrichment: %w", err)
	}

	common.LogInfo("case enriched", common.Fields{
		"case_id": caseID,
		"checked": summary.Checked,
		"flagged": summary.Flagged,
	})
	return summary, nil
}

// profileRoles maps normalized names to roles. Shareholders win over
// management, management over affiliates.
func profileRoles(p Profile) map[string]model.CounterpartyRole {
	roles := make(map[string]model.CounterpartyRole)
	add := func(names []string, role model.CounterpartyRole) {
		for _, name := range names {
			if norm := counterparty.NormalizeName(name); norm != "" {
				roles[norm] = role
			}
		}
	}
	add(p.Affiliates, model.RoleAffiliate)
	add(p.Management, model.RoleManagement)
	add(p.Shareholders, model.RoleShareholder)
	return roles
}

func matchRole(cp *model.Counterparty, roles map[string]model.CounterpartyRole) (model.CounterpartyRole, bool) {
	if len(roles) == 0 {
		return "", false
	}
	if role, ok := roles[cp.NameNorm]; ok && cp.NameNorm != "" {
		return role, true
	}
	for _, alias := range cp.Aliases {
		if role, ok := roles[counterparty.NormalizeName(alias)]; ok {
			return role, true
		}
	}
	return "", false
}

func mergeSources(existing, added []string) []string {
	set := make(map[string]struct{}, len(existing)+len(added))
	for _, s := range existing {
		set[s] = struct{}{}
	}
	for _, s := range added {
		if s != "" {
			set[s] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
