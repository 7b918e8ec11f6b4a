package cases

import (
	"time"

	"github.com/Veraticus/clawback/internal/model"
)

// Fixture case ids.
const (
	CaseMuster   CaseID = "muster-2025"
	CaseCutoff   CaseID = "cutoff-2025"
	CaseNoAnchor CaseID = "no-anchor"
)

// DebtorAccount is the company account of the standard fixture.
const DebtorAccount = "DE12500105170648489890"

// Fixture represents a predefined set of cases for testing.
type Fixture interface {
	Name() string
	Cases() []model.Case
}

type fixture struct {
	name  string
	cases func() []model.Case
}

func (f *fixture) Name() string        { return f.name }
func (f *fixture) Cases() []model.Case { return f.cases() }

// Date parses a yyyy-mm-dd date for fixtures and panics on malformed input.
func Date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// DatePtr is Date returning a pointer.
func DatePtr(s string) *time.Time {
	t := Date(s)
	return &t
}

// Predefined fixtures.
var (
	// FixtureStandard is a GmbH with filing 2025-02-01 and opening 2025-03-01.
	FixtureStandard Fixture = &fixture{
		name: "Standard",
		cases: func() []model.Case {
			return []model.Case{{
				ID:          string(CaseMuster),
				CompanyName: "Muster Handel GmbH",
				Court:       "AG Charlottenburg",
				FilingDate:  DatePtr("2025-02-01"),
				OpeningDate: DatePtr("2025-03-01"),
				Accounts:    []model.CompanyAccount{{AccountNumber: DebtorAccount, Currency: "EUR"}},
			}}
		},
	}

	// FixtureCutoff only knows a cutoff date of 2025-02-01.
	FixtureCutoff Fixture = &fixture{
		name: "Cutoff",
		cases: func() []model.Case {
			return []model.Case{{
				ID:          string(CaseCutoff),
				CompanyName: "Stichtag UG",
				CutoffDate:  DatePtr("2025-02-01"),
				Accounts:    []model.CompanyAccount{{AccountNumber: DebtorAccount, Currency: "EUR"}},
			}}
		},
	}

	// FixtureNoAnchor has no legal dates at all.
	FixtureNoAnchor Fixture = &fixture{
		name: "NoAnchor",
		cases: func() []model.Case {
			return []model.Case{{ID: string(CaseNoAnchor), CompanyName: "Ohne Datum AG"}}
		},
	}
)
