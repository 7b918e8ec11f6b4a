// Package tui implements the interactive review of flagged transactions.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/clawback/internal/cli"
	"github.com/Veraticus/clawback/internal/model"
	"github.com/Veraticus/clawback/internal/pipeline"
)

// Tagger stores the reviewer's tags of a transaction.
type Tagger interface {
	SetUserTags(ctx context.Context, caseID string, transactionID int64, tags []string) (*model.Transaction, error)
}

// Item is one flagged transaction and the evaluations that flagged it.
type Item struct {
	Transaction model.Transaction
	Evaluations []model.RuleEvaluation
}

func (it Item) confidence() float64 {
	var top float64
	for _, e := range it.Evaluations {
		top = max(top, e.Confidence)
	}
	return top
}

// BuildItems groups flagged evaluations by transaction, strongest first.
// Duplicates and unknown transactions are skipped.
func BuildItems(txns []model.Transaction, evals []model.RuleEvaluation) []Item {
	byID := make(map[int64]model.Transaction, len(txns))
	for _, txn := range txns {
		if !txn.IsDuplicate {
			byID[txn.ID] = txn
		}
	}

	index := map[int64]int{}
	var items []Item
	for _, e := range evals {
		if !e.IsFlagged() {
			continue
		}
		txn, ok := byID[e.TransactionID]
		if !ok {
			continue
		}
		i, seen := index[txn.ID]
		if !seen {
			i = len(items)
			index[txn.ID] = i
			items = append(items, Item{Transaction: txn})
		}
		items[i].Evaluations = append(items[i].Evaluations, e)
	}

	sort.SliceStable(items, func(i, j int) bool {
		ci, cj := items[i].confidence(), items[j].confidence()
		if ci != cj {
			return ci > cj
		}
		return items[i].Transaction.ID < items[j].Transaction.ID
	})
	return items
}

type tagsSavedMsg struct {
	txn   *model.Transaction
	index int
}

type errMsg struct{ err error }

// Model is the review screen.
type Model struct {
	ctx      context.Context
	err      error
	tagger   Tagger
	help     help.Model
	keys     KeyMap
	caseID   string
	status   string
	items    []Item
	table    table.Model
	reviewed int
	quitting bool
}

// NewModel creates the review screen for one case.
func NewModel(ctx context.Context, tagger Tagger, caseID string, items []Item) Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ID", Width: 6},
			{Title: "Date", Width: 10},
			{Title: "Amount", Width: 16},
			{Title: "Counterparty", Width: 28},
			{Title: "Rules", Width: 30},
			{Title: "Review", Width: 10},
		}),
		table.WithFocused(true),
		table.WithHeight(min(len(items), 15)+2),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(cli.SubtleColor).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("229")).
		Background(cli.PrimaryColor)
	t.SetStyles(styles)

	m := Model{
		ctx:    ctx,
		tagger: tagger,
		caseID: caseID,
		items:  items,
		table:  t,
		help:   help.New(),
		keys:   DefaultKeyMap(),
	}
	m.refreshRows()
	return m
}

// Reviewed returns how many tag changes were saved.
func (m Model) Reviewed() int {
	return m.reviewed
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Confirm):
			return m, m.toggle(pipeline.TagReviewConfirmed)
		case key.Matches(msg, m.keys.Dismiss):
			return m, m.toggle(pipeline.TagReviewDismissed)
		}

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		m.table.SetWidth(msg.Width)
		m.table.SetHeight(max(msg.Height-8, 3))
		return m, nil

	case tagsSavedMsg:
		m.items[msg.index].Transaction = *msg.txn
		m.reviewed++
		m.err = nil
		m.status = fmt.Sprintf("Transaction %d: %s", msg.txn.ID, reviewLabel(msg.txn.UserTags))
		m.refreshRows()
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) toggle(tag string) tea.Cmd {
	index := m.table.Cursor()
	if index < 0 || index >= len(m.items) {
		return nil
	}
	txn := m.items[index].Transaction
	tags := pipeline.ToggleReview(txn.UserTags, tag)
	ctx, tagger, caseID := m.ctx, m.tagger, m.caseID
	return func() tea.Msg {
		updated, err := tagger.SetUserTags(ctx, caseID, txn.ID, tags)
		if err != nil {
			return errMsg{err: err}
		}
		return tagsSavedMsg{index: index, txn: updated}
	}
}

func (m *Model) refreshRows() {
	rows := make([]table.Row, 0, len(m.items))
	for _, it := range m.items {
		txn := it.Transaction
		rules := make([]string, 0, len(it.Evaluations))
		for _, e := range it.Evaluations {
			rules = append(rules, fmt.Sprintf("%s %.2f", e.RuleID, e.Confidence))
		}
		rows = append(rows, table.Row{
			fmt.Sprint(txn.ID),
			txn.BookingDate.Format("02.01.2006"),
			fmt.Sprintf("%.2f %s", txn.Amount, txn.Currency),
			txn.DisplayName(),
			strings.Join(rules, ", "),
			reviewLabel(txn.UserTags),
		})
	}
	m.table.SetRows(rows)
}

func reviewLabel(userTags []string) string {
	for _, t := range userTags {
		switch t {
		case pipeline.TagReviewConfirmed:
			return "confirmed"
		case pipeline.TagReviewDismissed:
			return "dismissed"
		}
	}
	return "open"
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(cli.TitleStyle.Render(fmt.Sprintf("%s Review %s", cli.CaseIcon, m.caseID)))
	b.WriteString("\n\n")
	if len(m.items) == 0 {
		b.WriteString(cli.FormatInfo("No flagged transactions"))
		b.WriteString("\n\n")
		b.WriteString(m.help.View(m.keys))
		return b.String()
	}

	b.WriteString(m.table.View())
	b.WriteString("\n\n")
	if it, ok := m.selected(); ok {
		for _, e := range it.Evaluations {
			fmt.Fprintf(&b, "%s %s %s\n", e.RuleID, cli.FormatDecision(e.Decision), e.Explanation)
			if len(e.EvidenceMissing) > 0 {
				fmt.Fprintf(&b, "  missing: %s\n", strings.Join(e.EvidenceMissing, ", "))
			}
		}
		b.WriteString("\n")
	}
	switch {
	case m.err != nil:
		b.WriteString(cli.FormatError(m.err.Error()))
		b.WriteString("\n")
	case m.status != "":
		b.WriteString(cli.FormatSuccess(m.status))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) selected() (Item, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.items) {
		return Item{}, false
	}
	return m.items[i], true
}
