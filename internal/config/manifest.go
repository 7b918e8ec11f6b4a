package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Veraticus/clawback/internal/common"
	"github.com/Veraticus/clawback/internal/model"
	"gopkg.in/yaml.v3"
)

// CaseManifest describes a case and its documents for import.
//
//	id: case-1
//	company_name: Muster GmbH
//	filing_date: 2025-02-01
//	accounts:
//	  - account_number: DE89370400440532013000
//	    currency: EUR
//	documents:
//	  - path: statements/jan.csv
//	    type: bank_statement
type CaseManifest struct {
	ID          string             `yaml:"id"`
	CompanyName string             `yaml:"company_name"`
	Court       string             `yaml:"court"`
	FilingDate  string             `yaml:"filing_date"`
	OpeningDate string             `yaml:"opening_date"`
	CutoffDate  string             `yaml:"cutoff_date"`
	Accounts    []ManifestAccount  `yaml:"accounts"`
	Documents   []ManifestDocument `yaml:"documents"`
}

// ManifestAccount is a company bank account entry.
type ManifestAccount struct {
	AccountNumber string `yaml:"account_number"`
	Currency      string `yaml:"currency"`
}

// ManifestDocument is an uploaded file entry.
type ManifestDocument struct {
	Path string `yaml:"path"`
	Type string `yaml:"type"`
}

// LoadCaseManifest reads and validates a YAML case manifest.
func LoadCaseManifest(path string) (*CaseManifest, error) {
	data, err := os.ReadFile(ExpandPath(path)) //nolint:gosec // user-specified manifest path
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m CaseManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	if strings.TrimSpace(m.ID) == "" {
		return nil, fmt.Errorf("%w: manifest id is required", common.ErrInvalidConfig)
	}
	if strings.TrimSpace(m.CompanyName) == "" {
		return nil, fmt.Errorf("%w: manifest company_name is required", common.ErrInvalidConfig)
	}
	return &m, nil
}

// Case converts the manifest into a case record.
func (m *CaseManifest) Case() (*model.Case, error) {
	c := &model.Case{
		ID:          m.ID,
		CompanyName: m.CompanyName,
		Court:       m.Court,
	}

	var err error
	if c.FilingDate, err = parseManifestDate("filing_date", m.FilingDate); err != nil {
		return nil, err
	}
	if c.OpeningDate, err = parseManifestDate("opening_date", m.OpeningDate); err != nil {
		return nil, err
	}
	if c.CutoffDate, err = parseManifestDate("cutoff_date", m.CutoffDate); err != nil {
		return nil, err
	}

	for _, a := range m.Accounts {
		currency := strings.ToUpper(strings.TrimSpace(a.Currency))
		if currency == "" {
			currency = model.DefaultCurrency
		}
		c.Accounts = append(c.Accounts, model.CompanyAccount{
			AccountNumber: strings.ToUpper(strings.ReplaceAll(a.AccountNumber, " ", "")),
			Currency:      currency,
		})
	}
	return c, nil
}

func parseManifestDate(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q: %w", common.ErrInvalidConfig, field, value, err)
	}
	return &t, nil
}
