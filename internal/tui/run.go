package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the review screen until the reviewer quits and returns the
// number of saved tag changes.
func Run(ctx context.Context, m Model, opts ...tea.ProgramOption) (int, error) {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)
	final, err := tea.NewProgram(m, opts...).Run()
	if err != nil {
		return 0, fmt.Errorf("review session failed: %w", err)
	}
	if fm, ok := final.(Model); ok {
		return fm.Reviewed(), nil
	}
	return 0, nil
}
