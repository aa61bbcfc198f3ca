package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// updateBubble handles keys while only the bubble is shown
func (m Model) updateBubble(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit

	case "enter", " ", "?":
		m.widget.Toggle()
		m.modeCursor = 0
	}
	return m, nil
}

// viewBubble renders the closed widget in the bottom right corner
func (m Model) viewBubble() string {
	bubble := bubbleStyle.Render("?")
	hint := instructionStyle.Render("enter to open  •  q to quit")
	return m.place(lipgloss.JoinVertical(lipgloss.Right, bubble, hint))
}

// place anchors content to the bottom right of the terminal
func (m Model) place(content string) string {
	return lipgloss.Place(m.width, m.height, lipgloss.Right, lipgloss.Bottom, content)
}
