package formatter

import "github.com/charmbracelet/lipgloss"

var (
	ColorGreen  = lipgloss.Color("#8ec07c")
	ColorYellow = lipgloss.Color("#fabd2f")
	ColorRed    = lipgloss.Color("#fb4934")
	ColorDim    = lipgloss.Color("#928374")
	ColorHeader = lipgloss.Color("#fe8019")
)

var (
	StyleGreen  = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleYellow = lipgloss.NewStyle().Foreground(ColorYellow)
	StyleRed    = lipgloss.NewStyle().Foreground(ColorRed)
	StyleDim    = lipgloss.NewStyle().Foreground(ColorDim)
	StyleHeader = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	StyleTitle  = lipgloss.NewStyle().Bold(true).MarginBottom(1)
)

// StatusStyle colors an auto-fill run status.
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case "applied":
		return StyleGreen
	case "failed":
		return StyleRed
	case "preview":
		return StyleYellow
	default:
		return StyleDim
	}
}
