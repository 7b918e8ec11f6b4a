package model

import "time"

// Case is the insolvency case a set of documents belongs to.
type Case struct {
	CreatedAt   time.Time
	FilingDate  *time.Time // Insolvency petition date
	OpeningDate *time.Time // Opening of proceedings
	CutoffDate  *time.Time
	ID          string
	CompanyName string
	Court       string
	Accounts    []CompanyAccount
}

// CompanyAccount is a bank account held by the debtor.
type CompanyAccount struct {
	AccountNumber string
	Currency      string
}

// PetitionAnchor returns the filing date, falling back to the cutoff date.
func (c *Case) PetitionAnchor() *time.Time {
	if c.FilingDate != nil {
		return c.FilingDate
	}
	return c.CutoffDate
}

// OpeningAnchor returns the opening date, falling back to cutoff and then filing date.
func (c *Case) OpeningAnchor() *time.Time {
	switch {
	case c.OpeningDate != nil:
		return c.OpeningDate
	case c.CutoffDate != nil:
		return c.CutoffDate
	default:
		return c.FilingDate
	}
}

// DefaultAccount returns the first company account number and currency, if any.
func (c *Case) DefaultAccount() (account, currency string) {
	if len(c.Accounts) == 0 {
		return "", ""
	}
	return c.Accounts[0].AccountNumber, c.Accounts[0].Currency
}
