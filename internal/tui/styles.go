package tui

import "github.com/charmbracelet/lipgloss"

// Catppuccin Mocha palette.
var (
	colorText    = lipgloss.Color("#CDD6F4")
	colorSubtext = lipgloss.Color("#A6ADC8")
	colorDim     = lipgloss.Color("#585B70")

	colorAccent = lipgloss.Color("#CBA6F7") // mauve
	colorBlue   = lipgloss.Color("#89B4FA")
	colorGreen  = lipgloss.Color("#A6E3A1") // running
	colorYellow = lipgloss.Color("#F9E2AF")
	colorRed    = lipgloss.Color("#F38BA8")
	colorTeal   = lipgloss.Color("#94E2D5")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue)

	runningStyle   = lipgloss.NewStyle().Foreground(colorGreen)
	completedStyle = lipgloss.NewStyle().Foreground(colorSubtext)
	dimStyle       = lipgloss.NewStyle().Foreground(colorDim)
	textStyle      = lipgloss.NewStyle().Foreground(colorText)
	costStyle      = lipgloss.NewStyle().Foreground(colorTeal)
	warnStyle      = lipgloss.NewStyle().Foreground(colorYellow)
	critStyle      = lipgloss.NewStyle().Foreground(colorRed)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorSubtext).
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(colorDim)
)
