package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// updateInteractive handles the 3D placeholder panel
func (m Model) updateInteractive(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		m.widget.CloseMode()
		m.err = nil

	case "enter":
		if m.newScene != nil {
			return m, runSceneCmd(m.newScene())
		}
	}
	return m, nil
}

// viewInteractive renders the 3D panel. The scene itself runs fullscreen.
func (m Model) viewInteractive() string {
	w, h := m.panelSize()

	canvas := lipgloss.Place(w-4, max(h-8, 3), lipgloss.Center, lipgloss.Center,
		mutedStyle.Render("Nothing to see here yet."))

	hint := "esc to close"
	if m.newScene != nil {
		hint = "enter to launch  •  esc to close"
	}

	var status string
	if m.err != nil {
		status = errorStyle.Render("✗ " + m.err.Error())
	}

	panel := boxStyle.Width(w - 2).Render(lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("3D Interactive Mode"),
		"",
		canvas,
		status,
		instructionStyle.Render(hint),
	))
	return m.place(panel)
}
