package model

import "time"

// CounterpartyRole classifies the relationship of a payer or payee to the debtor.
type CounterpartyRole string

// Counterparty roles.
const (
	RoleSupplier    CounterpartyRole = "supplier"
	RoleCustomer    CounterpartyRole = "customer"
	RoleShareholder CounterpartyRole = "shareholder"
	RoleAffiliate   CounterpartyRole = "affiliate"
	RoleManagement  CounterpartyRole = "management"
	RoleOther       CounterpartyRole = "other"
	RoleUnknown     CounterpartyRole = "unknown"
)

// IsRelated reports whether the role implies a close relationship to the debtor.
func (r CounterpartyRole) IsRelated() bool {
	switch r {
	case RoleShareholder, RoleAffiliate, RoleManagement:
		return true
	}
	return false
}

// RelatedParty is a tri-state flag.
type RelatedParty string

// Related party states.
const (
	RelatedYes     RelatedParty = "yes"
	RelatedNo      RelatedParty = "no"
	RelatedUnknown RelatedParty = "unknown"
)

// MatchMethod records how a counterparty was last matched.
type MatchMethod string

// Match methods.
const (
	MatchAccount   MatchMethod = "account"
	MatchExactName MatchMethod = "exact_name"
	MatchFuzzyName MatchMethod = "fuzzy_name"
	MatchCreated   MatchMethod = "created"
)

// Counterparty is a resolved identity for a recurring payer or payee within one case.
type Counterparty struct {
	CreatedAt         time.Time
	UpdatedAt         time.Time
	CaseID            string
	Name              string
	AccountNumber     string
	Role              CounterpartyRole
	RelatedParty      RelatedParty
	NameNorm          string
	MatchedBy         MatchMethod
	EnrichmentStatus  string
	Aliases           []string
	EnrichmentSources []string
	ID                int64
	MatchScore        float64
}

// IsRelatedParty reports whether the counterparty is confirmed as related.
func (c *Counterparty) IsRelatedParty() bool {
	return c != nil && c.RelatedParty == RelatedYes
}

// AddAlias records a name variant if it is new and differs from the canonical name.
// It returns true when the alias list changed.
func (c *Counterparty) AddAlias(alias string) bool {
	if alias == "" || alias == c.Name {
		return false
	}
	for _, existing := range c.Aliases {
		if existing == alias {
			return false
		}
	}
	c.Aliases = append(c.Aliases, alias)
	return true
}
