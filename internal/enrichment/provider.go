// Package enrichment looks up register data for the debtor and flags
// counterparties that are shareholders, managers or affiliates.
package enrichment

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SourceManual marks data entered by hand rather than fetched from a register.
const SourceManual = "manual"

// Profile is the register view of a company.
type Profile struct {
	LegalName         string   `yaml:"legal_name"`
	LegalForm         string   `yaml:"legal_form"`
	RegisteredAddress string   `yaml:"registered_address"`
	HRBNumber         string   `yaml:"hrb_number"`
	RegisterCourt     string   `yaml:"register_court"`
	Management        []string `yaml:"management"`
	Shareholders      []string `yaml:"shareholders"`
	Affiliates        []string `yaml:"affiliates"`
	Sources           []string `yaml:"sources"`
}

//go:generate mockgen -destination=mock_enrichment/mock_enrichment.go -package=mock_enrichment . Provider

// Provider resolves a company name to its register profile.
type Provider interface {
	Enrich(ctx context.Context, companyName string) (Profile, error)
}

// NoopProvider knows nothing beyond the name it is given.
type NoopProvider struct{}

// Enrich implements Provider.
func (NoopProvider) Enrich(_ context.Context, companyName string) (Profile, error) {
	return Profile{LegalName: companyName, Sources: []string{SourceManual}}, nil
}

// FileProvider serves a profile maintained by hand in a YAML file:
//
//	legal_name: Muster Handel GmbH
//	hrb_number: HRB 12345
//	shareholders: [Max Muster]
//	management: [Erika Muster]
//	affiliates: [Muster Logistik GmbH]
type FileProvider struct {
	Path string
}

// Enrich implements Provider. The company name fills an empty legal_name.
func (p FileProvider) Enrich(ctx context.Context, companyName string) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}
	data, err := os.ReadFile(p.Path) //nolint:gosec // user-specified profile path
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read profile: %w", err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return Profile{}, fmt.Errorf("failed to parse profile %s: %w", p.Path, err)
	}
	if profile.LegalName == "" {
		profile.LegalName = companyName
	}
	if len(profile.Sources) == 0 {
		profile.Sources = []string{SourceManual}
	}
	return profile, nil
}
