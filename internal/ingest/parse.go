// Package ingest detects statement formats, loads them into tables and
// normalizes rows into canonical transactions.
package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	trailingCurrency = regexp.MustCompile(`[A-Z]{3}$`)
	ibanPattern      = regexp.MustCompile(`^[A-Z]{2}\d{2}[A-Z0-9]{10,30}$`)
	whitespaceRun    = regexp.MustCompile(`\s+`)
	watermarkPrefix  = regexp.MustCompile(`^TESTDATEN\s*[-–—]\s*`)
	plainDecimal     = regexp.MustCompile(`^\d+\.(\d{1,2}|\d{4,})$`)
)

// Date layouts tried in order for statement dates.
var dateLayouts = []string{"02.01.2006", "02.01.06", "2006-01-02"}

// isoLayouts are the datetime fallbacks for exports carrying timestamps.
var isoLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02 15:04:05.000000"}

// excelEpoch is day zero of the 1900 date system, adjusted for the leap year bug.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ParseAmount parses German formatted amounts such as "-1.234,56 EUR".
// Values without a decimal comma fall back to plain dot-decimal notation.
func ParseAmount(raw string) (decimal.Decimal, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), "\n", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	s = strings.TrimSpace(trailingCurrency.ReplaceAllString(s, ""))
	if s == "" {
		return decimal.Zero, false
	}

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimLeft(s, "-+")
	if s == "" {
		return decimal.Zero, false
	}

	// "100.50": without a comma, a dot not followed by a thousands group is a decimal point
	if strings.Contains(s, ",") || !plainDecimal.MatchString(s) {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if neg {
		d = d.Neg()
	}
	return d, true
}

// ParseDate parses statement dates in German or ISO notation.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(strings.ReplaceAll(raw, "\n", ""))
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDay(t), true
		}
	}
	return time.Time{}, false
}

// parseCellDate also accepts spreadsheet serial day numbers.
func parseCellDate(raw string) (time.Time, bool) {
	if t, ok := ParseDate(raw); ok {
		return t, true
	}
	serial, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || serial < 1 || serial > 2958465 {
		return time.Time{}, false
	}
	return excelEpoch.AddDate(0, 0, int(serial)), true
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NormalizeIBAN strips whitespace and upper-cases an account identifier.
// Values that do not look like an IBAN yield an empty string.
func NormalizeIBAN(raw string) string {
	s := strings.ToUpper(whitespaceRun.ReplaceAllString(strings.TrimSpace(raw), ""))
	if s == "" || s == "-" || s == "—" {
		return ""
	}
	if !ibanPattern.MatchString(s) {
		return ""
	}
	return s
}

// CleanText collapses whitespace and removes the test-data watermark prefix.
func CleanText(raw string) string {
	s := strings.NewReplacer("\n", " ", "\r", " ").Replace(raw)
	s = strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
	return watermarkPrefix.ReplaceAllString(s, "")
}
