// Package cli renders command output for the terminal.
package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/clawback/internal/model"
)

// Palette.
var (
	PrimaryColor = lipgloss.Color("#3D5A80") // court blue
	SubtleColor  = lipgloss.Color("#7A7A7A")
	okColor      = lipgloss.AdaptiveColor{Light: "#2A7F62", Dark: "#4ECDC4"}
	cautionColor = lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#FFD166"}
	alertColor   = lipgloss.AdaptiveColor{Light: "#B00020", Dark: "#FF6B6B"}
	noteColor    = lipgloss.AdaptiveColor{Light: "#33658A", Dark: "#98C1D9"}
)

// Styles shared by reports and the review screen.
var (
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor)
	BoldStyle  = lipgloss.NewStyle().Bold(true)

	SubtleStyle      = lipgloss.NewStyle().Foreground(SubtleColor)
	TableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor).Padding(0, 1)
	TableCellStyle   = lipgloss.NewStyle().Padding(0, 1)

	okStyle      = lipgloss.NewStyle().Foreground(okColor)
	cautionStyle = lipgloss.NewStyle().Foreground(cautionColor)
	alertStyle   = lipgloss.NewStyle().Foreground(alertColor).Bold(true)
	noteStyle    = lipgloss.NewStyle().Foreground(noteColor)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(PrimaryColor).
			Padding(1, 2)
)

// CaseIcon prefixes case titles.
const CaseIcon = "⚖️"

// FormatSuccess formats a success message.
func FormatSuccess(message string) string {
	return okStyle.Render("✓ " + message)
}

// FormatError formats an error message.
func FormatError(message string) string {
	return alertStyle.Render("✗ " + message)
}

// FormatWarning formats a warning.
func FormatWarning(message string) string {
	return cautionStyle.Render("⚠️ " + message)
}

// FormatInfo formats an informational message.
func FormatInfo(message string) string {
	return noteStyle.Render("ℹ️ " + message)
}

var decisionStyles = map[model.Decision]lipgloss.Style{
	model.DecisionHit:         alertStyle,
	model.DecisionNeedsReview: cautionStyle,
}

// FormatDecision colors a rule decision by severity.
func FormatDecision(d model.Decision) string {
	if style, ok := decisionStyles[d]; ok {
		return style.Render(string(d))
	}
	return SubtleStyle.Render(string(d))
}

var statusStyles = map[model.DocumentStatus]lipgloss.Style{
	model.DocumentDone:        okStyle,
	model.DocumentOCRDone:     okStyle,
	model.DocumentFailed:      alertStyle,
	model.DocumentOCRRequired: cautionStyle,
}

// FormatStatus colors a document status.
func FormatStatus(s model.DocumentStatus) string {
	if style, ok := statusStyles[s]; ok {
		return style.Render(string(s))
	}
	return noteStyle.Render(string(s))
}

// RenderBox renders content below a title inside a rounded border.
func RenderBox(title, content string) string {
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, TitleStyle.Render(title), "", content))
}
