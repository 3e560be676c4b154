package tui

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

var (
	primaryColor   = lipgloss.Color("#7C3AED")
	secondaryColor = lipgloss.Color("#10B981")
	textColor      = lipgloss.Color("#CDD6F4")
	dimTextColor   = lipgloss.Color("#6C7086")
	playingColor   = lipgloss.Color("#A6E3A1")
	recordingColor = lipgloss.Color("#F38BA8")

	titleStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(textColor)

	playingStyle = lipgloss.NewStyle().
			Foreground(playingColor).
			Bold(true)

	recordButtonStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#1E1E2E")).
				Background(secondaryColor).
				Bold(true).
				Padding(0, 1)

	recordingButtonStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#1E1E2E")).
				Background(recordingColor).
				Bold(true).
				Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(dimTextColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(recordingColor)
)

func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimTextColor).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#1E1E2E")).
		Background(primaryColor).
		Bold(true)
	return s
}
