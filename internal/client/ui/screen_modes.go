package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/yourusername/chatbubble/internal/widget"
)

// updateModeSelect handles the mode selector popup
func (m Model) updateModeSelect(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "?", "q":
		m.widget.Toggle()

	case "up", "k":
		if m.modeCursor > 0 {
			m.modeCursor--
		}

	case "down", "j", "tab":
		if m.modeCursor < len(modeOptions)-1 {
			m.modeCursor++
		}

	case "enter", " ":
		mode := modeOptions[m.modeCursor].mode
		if err := m.widget.SelectMode(mode); err != nil {
			m.setError(err)
			return m, nil
		}
		m.err = nil
		if mode == widget.ModeChat {
			m.refreshHistory()
			if !m.widget.Snapshot().Pending {
				cmd := m.input.Focus()
				return m, cmd
			}
		}
	}
	return m, nil
}

// viewModeSelect renders the popup listing the two modes
func (m Model) viewModeSelect() string {
	var b strings.Builder
	for i, opt := range modeOptions {
		if i == m.modeCursor {
			b.WriteString(cursorStyle.Render("▸") + selectedOptionStyle.Render(opt.label))
		} else {
			b.WriteString(" " + optionStyle.Render(opt.label))
		}
		if i < len(modeOptions)-1 {
			b.WriteString("\n")
		}
	}

	popup := boxStyle.Render(lipgloss.JoinVertical(
		lipgloss.Left,
		titleStyle.Render("Select Mode"),
		"",
		b.String(),
		"",
		instructionStyle.Render("↑/↓ choose  •  enter select  •  esc close"),
	))
	return m.place(popup)
}
