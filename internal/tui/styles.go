package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/wewew312/todomemes/internal/model"
)

// ------- minimal styling helpers (Lip Gloss) -------
var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	mutedStyle   = lipgloss.NewStyle().Faint(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	selectedStyle = lipgloss.NewStyle().Bold(true).Reverse(true)
	doneStyle     = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	helpStyle     = lipgloss.NewStyle().Faint(true)
	overdueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)

	boxChecked   = "☑"
	boxUnchecked = "☐"
)

func importanceMarker(i model.Importance) string {
	switch i {
	case model.High:
		return errorStyle.Render("‼")
	case model.Low:
		return mutedStyle.Render("↓")
	}
	return " "
}

// swatch paints a dot in the item's color; White items get none.
func swatch(c model.Color) string {
	if c == model.White {
		return ""
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(c.Hex())).Render("●")
}
