package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Veraticus/clawback/internal/model"
	"github.com/Veraticus/clawback/internal/pipeline"
	"github.com/Veraticus/clawback/internal/service"
)

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("02.01.2006")
}

// RenderCaseSummary renders the overview box of one case.
func RenderCaseSummary(c *model.Case, s *service.CaseSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company:        %s\n", c.CompanyName)
	if c.Court != "" {
		fmt.Fprintf(&b, "Court:          %s\n", c.Court)
	}
	fmt.Fprintf(&b, "Filing date:    %s\n", formatDate(c.FilingDate))
	fmt.Fprintf(&b, "Opening date:   %s\n", formatDate(c.OpeningDate))
	fmt.Fprintf(&b, "Cutoff date:    %s\n", formatDate(c.CutoffDate))
	fmt.Fprintf(&b, "\nTransactions:   %d (%d duplicates)\n", s.Transactions, s.Duplicates)
	fmt.Fprintf(&b, "Counterparties: %d\n", s.Counterparties)

	if len(s.DocumentsByStatus) > 0 {
		b.WriteString("\nDocuments:\n")
		statuses := make([]string, 0, len(s.DocumentsByStatus))
		for st := range s.DocumentsByStatus {
			statuses = append(statuses, string(st))
		}
		sort.Strings(statuses)
		for _, st := range statuses {
			fmt.Fprintf(&b, "  • %-14s %d\n", FormatStatus(model.DocumentStatus(st)), s.DocumentsByStatus[model.DocumentStatus(st)])
		}
	}

	if len(s.FlaggedByRule) > 0 {
		b.WriteString("\nFlagged by rule:\n")
		rules := make([]string, 0, len(s.FlaggedByRule))
		for r := range s.FlaggedByRule {
			rules = append(rules, r)
		}
		sort.Strings(rules)
		for _, r := range rules {
			fmt.Fprintf(&b, "  • %-6s %d\n", r, s.FlaggedByRule[r])
		}
	}

	return RenderBox(CaseIcon+" Case "+c.ID, strings.TrimRight(b.String(), "\n"))
}

// RenderResult renders the outcome of processing one document.
func RenderResult(fileName string, res *pipeline.Result) string {
	if res.Status == model.DocumentOCRRequired {
		return FormatWarning(fmt.Sprintf("%s: no text layer, run clawback ocr", fileName))
	}
	return FormatSuccess(fmt.Sprintf("%s: %d inserted, %d skipped, %d duplicates, %d evaluated [%s]",
		fileName, res.Inserted, res.Skipped, res.Dedup.Duplicates, res.Evaluated, res.DetectedFormat))
}

// RenderFlagged renders flagged evaluations as a table, strongest first.
// Evaluations whose transaction is unknown are listed without details.
func RenderFlagged(evals []model.RuleEvaluation, txns map[int64]model.Transaction) string {
	flagged := make([]model.RuleEvaluation, 0, len(evals))
	for _, e := range evals {
		if e.IsFlagged() {
			flagged = append(flagged, e)
		}
	}
	if len(flagged) == 0 {
		return FormatInfo("No flagged transactions")
	}
	sort.SliceStable(flagged, func(i, j int) bool {
		if flagged[i].Confidence != flagged[j].Confidence {
			return flagged[i].Confidence > flagged[j].Confidence
		}
		return flagged[i].TransactionID < flagged[j].TransactionID
	})

	rows := make([][]string, 0, len(flagged))
	for _, e := range flagged {
		txn := txns[e.TransactionID]
		date, amount := "-", "-"
		if !txn.BookingDate.IsZero() {
			date = txn.BookingDate.Format("02.01.2006")
			amount = fmt.Sprintf("%.2f %s", txn.Amount, txn.Currency)
		}
		rows = append(rows, []string{
			fmt.Sprint(e.TransactionID),
			date,
			amount,
			txn.DisplayName(),
			e.RuleID,
			FormatDecision(e.Decision),
			fmt.Sprintf("%.3f", e.Confidence),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(SubtleStyle).
		Headers("ID", "Date", "Amount", "Counterparty", "Rule", "Decision", "Confidence").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			return TableCellStyle
		})
	return t.String()
}
