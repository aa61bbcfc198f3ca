package ui

import "github.com/charmbracelet/lipgloss"

// Color palette - Earthy tones (lighter for dark backgrounds)
var (
	primaryColor   = lipgloss.Color("#E8C4A0") // Light warm beige
	secondaryColor = lipgloss.Color("#7EBB81") // Light forest green
	accentColor    = lipgloss.Color("#A8C9A4") // Soft sage green
	successColor   = lipgloss.Color("#B5D99C") // Bright sage
	mutedColor     = lipgloss.Color("#B8A890") // Light taupe
	fgColor        = lipgloss.Color("#F5F3ED") // Warm white
	highlightColor = lipgloss.Color("#F0DEB4") // Cream highlight
	dangerColor    = lipgloss.Color("#E07B7B")
)

// Styles
var (
	bubbleStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(secondaryColor).
			Bold(true).
			Padding(0, 2)

	titleStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), true, false, false, false).
			BorderForeground(accentColor)

	highlightStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	instructionStyle = lipgloss.NewStyle().
				Foreground(mutedColor).
				Italic(true)

	optionStyle = lipgloss.NewStyle().
			Foreground(fgColor).
			Padding(0, 1)

	selectedOptionStyle = lipgloss.NewStyle().
				Foreground(successColor).
				Bold(true).
				Padding(0, 1)

	cursorStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)

	userMessageStyle = lipgloss.NewStyle().
				Foreground(fgColor).
				Background(lipgloss.Color("#4A6B4C")).
				Padding(0, 1)

	botMessageStyle = lipgloss.NewStyle().
			Foreground(fgColor).
			Background(lipgloss.Color("#5A4E42")).
			Padding(0, 1)

	senderStyle = lipgloss.NewStyle().
			Foreground(highlightColor).
			Bold(true)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	dialogStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(dangerColor).
			Padding(1, 2).
			Align(lipgloss.Center)

	errorStyle = lipgloss.NewStyle().
			Foreground(dangerColor).
			Bold(true)
)
