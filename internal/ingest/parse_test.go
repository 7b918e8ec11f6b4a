package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"german thousands", "-1.234,56", "-1234.56", true},
		{"trailing currency", "2.500,00 EUR", "2500", true},
		{"explicit plus", "+15,00", "15", true},
		{"embedded newline", "-1.000\n,00", "-1000", true},
		{"plain decimal", "-100.50", "-100.5", true},
		{"dot thousands without comma", "1.234", "1234", true},
		{"integer", "42", "42", true},
		{"empty", "", "0", false},
		{"sign only", "-", "0", false},
		{"garbage", "abc", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseAmount(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got.String())
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC)

	for _, input := range []string{"15.12.2024", "15.12.24", "2024-12-15", "2024-12-15T10:30:00", "2024-12-15 10:30:00"} {
		got, ok := ParseDate(input)
		require.True(t, ok, input)
		assert.True(t, want.Equal(got), "%s parsed as %s", input, got)
	}

	_, ok := ParseDate("32.13.2024")
	assert.False(t, ok)
	_, ok = ParseDate("")
	assert.False(t, ok)
}

func TestParseCellDate_ExcelSerial(t *testing.T) {
	got, ok := parseCellDate("45641")
	require.True(t, ok)
	assert.Equal(t, "2024-12-15", got.Format("2006-01-02"))

	_, ok = parseCellDate("-3")
	assert.False(t, ok)
}

func TestNormalizeIBAN(t *testing.T) {
	assert.Equal(t, "DE89370400440532013000", NormalizeIBAN(" de89 3704 0044 0532 0130 00 "))
	assert.Empty(t, NormalizeIBAN("-"))
	assert.Empty(t, NormalizeIBAN("—"))
	assert.Empty(t, NormalizeIBAN("12345"))
	assert.Empty(t, NormalizeIBAN(""))
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "Miete Dezember 2024", CleanText("TESTDATEN - Miete\nDezember   2024 "))
	assert.Equal(t, "Rechnung 4711", CleanText("TESTDATEN – Rechnung 4711"))
	assert.Equal(t, "plain", CleanText("plain"))
}
