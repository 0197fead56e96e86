package tui

import "github.com/charmbracelet/lipgloss"

// Styles contains the style definitions for the UI.
type Styles struct {
	Title          lipgloss.Style
	Button         lipgloss.Style
	ButtonDisabled lipgloss.Style
	Loading        lipgloss.Style
	Item           lipgloss.Style
	Dim            lipgloss.Style
	Help           lipgloss.Style
	ErrorBox       lipgloss.Style
	ErrorTitle     lipgloss.Style
}

// NewStyles creates a Styles instance with default values.
func NewStyles() *Styles {
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			MarginBottom(1),
		Button: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1),
		ButtonDisabled: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Background(lipgloss.Color("236")).
			Padding(0, 1),
		Loading: lipgloss.NewStyle().Foreground(lipgloss.Color("214")), // yellow
		Item:    lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		Dim:     lipgloss.NewStyle().Faint(true),
		Help:    lipgloss.NewStyle().Faint(true).MarginTop(1),
		ErrorBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("203")).
			Padding(1, 2).
			Width(60),
		ErrorTitle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")), // red
	}
}
