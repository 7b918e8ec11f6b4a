package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func acmeInvoice() Transaction {
	return Transaction{
		BookingDate:  time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		Amount:       -100.00,
		Currency:     "EUR",
		DebtorIBAN:   "DE001234",
		CreditorIBAN: "DE009999",
		CreditorName: "ACME GmbH",
		Purpose:      "Invoice 123",
		EndToEndID:   "E2E-1",
	}
}

func TestTransaction_FingerprintKey(t *testing.T) {
	txn := acmeInvoice()

	assert.Equal(t, []string{
		"2025-01-10",
		"-100.00",
		"EUR",
		"DE001234",
		"DE009999",
		"acme gmbh",
		"invoice 123",
		"E2E-1",
	}, txn.FingerprintKey())
}

func TestTransaction_GenerateFingerprint(t *testing.T) {
	base := acmeInvoice()
	baseHash := base.GenerateFingerprint()

	require.Len(t, baseHash, 64)
	assert.Regexp(t, "^[0-9a-f]{64}$", baseHash)

	tests := []struct {
		mutate   func(*Transaction)
		name     string
		wantSame bool
	}{
		{
			name:     "identical row from another file",
			mutate:   func(tx *Transaction) { tx.SourceFile = "other.csv"; tx.SourceDocumentID = 7 },
			wantSame: true,
		},
		{
			name: "casing and surrounding whitespace",
			mutate: func(tx *Transaction) {
				tx.Currency = " eur "
				tx.DebtorIBAN = " de001234"
				tx.CreditorName = "  acme GMBH "
				tx.Purpose = "INVOICE 123  "
				tx.EndToEndID = "e2e-1"
			},
			wantSame: true,
		},
		{
			name:     "sub-cent floating noise",
			mutate:   func(tx *Transaction) { tx.Amount = -100.000000001 },
			wantSame: true,
		},
		{
			name:     "time of day is ignored",
			mutate:   func(tx *Transaction) { tx.BookingDate = tx.BookingDate.Add(15 * time.Hour) },
			wantSame: true,
		},
		{
			name:     "counterparty name used when creditor name missing",
			mutate:   func(tx *Transaction) { tx.CreditorName = ""; tx.CounterpartyNameRaw = "ACME GmbH" },
			wantSame: true,
		},
		{
			name:     "missing currency defaults to EUR",
			mutate:   func(tx *Transaction) { tx.Currency = "" },
			wantSame: true,
		},
		{
			name:     "different rounded amount",
			mutate:   func(tx *Transaction) { tx.Amount = -100.01 },
			wantSame: false,
		},
		{
			name:     "different date",
			mutate:   func(tx *Transaction) { tx.BookingDate = tx.BookingDate.AddDate(0, 0, 1) },
			wantSame: false,
		},
		{
			name:     "different end-to-end id",
			mutate:   func(tx *Transaction) { tx.EndToEndID = "E2E-2" },
			wantSame: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := acmeInvoice()
			tt.mutate(&txn)

			got := txn.GenerateFingerprint()
			if tt.wantSame {
				assert.Equal(t, baseHash, got)
			} else {
				assert.NotEqual(t, baseHash, got)
			}

			// Deterministic.
			assert.Equal(t, got, txn.GenerateFingerprint())
		})
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
		want   string
	}{
		{name: "whole negative", amount: -100, want: "-100.00"},
		{name: "rounds up", amount: 1234.567, want: "1234.57"},
		{name: "pads one decimal", amount: 1234.5, want: "1234.50"},
		{name: "zero", amount: 0, want: "0.00"},
		{name: "inexact tenth", amount: 0.1, want: "0.10"},
		// 2.675 is stored as 2.67499999..., so it rounds down.
		{name: "binary value below tie", amount: 2.675, want: "2.67"},
		{name: "exact tie rounds to even", amount: 0.125, want: "0.12"},
		{name: "exact tie rounds to even upward", amount: 0.375, want: "0.38"},
		{name: "negative rounding to zero keeps sign", amount: -0.001, want: "-0.00"},
		{name: "sub-cent noise", amount: 100.001, want: "100.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatAmount(tt.amount))
		})
	}
}

func TestCounterparty_AddAlias(t *testing.T) {
	cp := &Counterparty{Name: "ACME GmbH"}

	assert.False(t, cp.AddAlias("ACME GmbH"))
	assert.False(t, cp.AddAlias(""))
	assert.True(t, cp.AddAlias("Acme Gesellschaft mit beschränkter Haftung"))
	assert.False(t, cp.AddAlias("Acme Gesellschaft mit beschränkter Haftung"))
	assert.Equal(t, []string{"Acme Gesellschaft mit beschränkter Haftung"}, cp.Aliases)
}

func TestCase_Anchors(t *testing.T) {
	filing := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	opening := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	cutoff := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	c := &Case{CutoffDate: &cutoff}
	assert.Equal(t, &cutoff, c.PetitionAnchor())
	assert.Equal(t, &cutoff, c.OpeningAnchor())

	c = &Case{FilingDate: &filing, OpeningDate: &opening, CutoffDate: &cutoff}
	assert.Equal(t, &filing, c.PetitionAnchor())
	assert.Equal(t, &opening, c.OpeningAnchor())

	c = &Case{OpeningDate: &opening}
	assert.Nil(t, c.PetitionAnchor())
}
