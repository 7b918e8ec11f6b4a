package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/clawback/internal/model"
	"github.com/Veraticus/clawback/internal/pipeline"
)

type fakeTagger struct {
	err   error
	calls map[int64][]string
}

func (f *fakeTagger) SetUserTags(_ context.Context, _ string, id int64, tags []string) (*model.Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.calls == nil {
		f.calls = map[int64][]string{}
	}
	f.calls[id] = tags
	return &model.Transaction{ID: id, Amount: -100, Currency: "EUR", UserTags: tags}, nil
}

func keyPress(r string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(r)}
}

// send applies msg and feeds any returned command's message back into the model.
func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd != nil {
		if out := cmd(); out != nil {
			next, _ = m.Update(out)
			m = next.(Model)
		}
	}
	return m
}

func sampleItems() []Item {
	booked := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	txns := []model.Transaction{
		{ID: 1, BookingDate: booked, Amount: -500, Currency: "EUR", CreditorName: "ACME"},
		{ID: 2, BookingDate: booked, Amount: -50, Currency: "EUR", CreditorName: "Bäckerei"},
		{ID: 3, BookingDate: booked, Amount: -500, Currency: "EUR", CreditorName: "ACME", IsDuplicate: true},
	}
	evals := []model.RuleEvaluation{
		{TransactionID: 2, RuleID: "§131", Decision: model.DecisionNeedsReview, Confidence: 0.2},
		{TransactionID: 1, RuleID: "§130", Decision: model.DecisionHit, Confidence: 0.65, Explanation: "Zahlung nach Mahnung"},
		{TransactionID: 1, RuleID: "§134", Decision: model.DecisionNoHit},
		{TransactionID: 1, RuleID: "§133", Decision: model.DecisionNeedsReview, Confidence: 0.4},
		{TransactionID: 3, RuleID: "§130", Decision: model.DecisionHit, Confidence: 0.9},
		{TransactionID: 7, RuleID: "§130", Decision: model.DecisionHit, Confidence: 0.9},
	}
	return BuildItems(txns, evals)
}

func TestBuildItems(t *testing.T) {
	items := sampleItems()
	require.Len(t, items, 2, "duplicates and unknown transactions are skipped")
	assert.Equal(t, int64(1), items[0].Transaction.ID)
	assert.Len(t, items[0].Evaluations, 2)
	assert.Equal(t, int64(2), items[1].Transaction.ID)
}

func TestModel_ConfirmAndDismiss(t *testing.T) {
	tagger := &fakeTagger{}
	m := NewModel(context.Background(), tagger, "muster-2025", sampleItems())

	m = send(t, m, keyPress("c"))
	assert.Equal(t, []string{pipeline.TagReviewConfirmed}, tagger.calls[1])
	assert.Equal(t, 1, m.Reviewed())
	assert.Contains(t, m.View(), "confirmed")

	m = send(t, m, keyPress("x"))
	assert.Equal(t, []string{pipeline.TagReviewDismissed}, tagger.calls[1])
	assert.Equal(t, "Transaction 1: dismissed", m.status)

	m = send(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = send(t, m, keyPress("c"))
	assert.Equal(t, []string{pipeline.TagReviewConfirmed}, tagger.calls[2])
	assert.Equal(t, 3, m.Reviewed())
}

func TestModel_TaggerError(t *testing.T) {
	m := NewModel(context.Background(), &fakeTagger{err: errors.New("database is locked")}, "muster-2025", sampleItems())

	m = send(t, m, keyPress("c"))
	assert.Equal(t, 0, m.Reviewed())
	require.Error(t, m.err)
	assert.Contains(t, m.View(), "database is locked")
}

func TestModel_View(t *testing.T) {
	m := NewModel(context.Background(), &fakeTagger{}, "muster-2025", sampleItems())
	view := m.View()
	assert.Contains(t, view, "muster-2025")
	assert.Contains(t, view, "ACME")
	assert.Contains(t, view, "Zahlung nach Mahnung")
	assert.Contains(t, view, "open")

	empty := NewModel(context.Background(), &fakeTagger{}, "leer", nil)
	assert.Contains(t, empty.View(), "No flagged transactions")
	next, cmd := empty.Update(keyPress("c"))
	assert.Nil(t, cmd)
	assert.Equal(t, 0, next.(Model).Reviewed())
}

func TestModel_Quit(t *testing.T) {
	m := NewModel(context.Background(), &fakeTagger{}, "muster-2025", sampleItems())
	next, cmd := m.Update(keyPress("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, next.(Model).View())
}

func TestModel_ToggleHelp(t *testing.T) {
	m := NewModel(context.Background(), &fakeTagger{}, "muster-2025", sampleItems())
	m = send(t, m, keyPress("?"))
	assert.True(t, m.help.ShowAll)
	assert.Contains(t, m.View(), "down")
}
