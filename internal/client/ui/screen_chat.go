package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/yourusername/chatbubble/internal/widget"
)

// updateChat handles the chat panel, the upload picker and the clear confirmation
func (m Model) updateChat(msg tea.KeyMsg, s widget.State) (tea.Model, tea.Cmd) {
	if s.ConfirmingClear {
		switch msg.String() {
		case "y", "Y", "enter":
			m.setError(m.widget.ConfirmClear(m.ctx))
		case "n", "N", "esc":
			m.setError(m.widget.CancelClear())
		}
		return m, nil
	}

	if m.picking {
		return m.updatePicker(msg)
	}

	switch msg.String() {
	case "esc":
		m.widget.CloseMode()
		m.input.Blur()
		m.err = nil
		return m, nil

	case "ctrl+l":
		m.widget.RequestClear()
		return m, nil

	case "ctrl+u":
		if s.Pending {
			m.setError(widget.ErrRequestPending)
			return m, nil
		}
		m.picking = true
		m.err = nil
		return m, m.picker.Init()

	case "enter":
		err := m.widget.Submit(m.ctx, m.input.Value())
		if err == nil {
			m.input.Reset()
		}
		m.setError(err)
		return m, nil

	case "pgup", "pgdown", "up", "down":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if s.Pending {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "esc" {
		m.picking = false
		return m, nil
	}

	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)

	if ok, path := m.picker.DidSelectFile(msg); ok {
		m.picking = false
		m.setError(m.widget.Upload(m.ctx, path))
		return m, nil
	}
	if ok, path := m.picker.DidSelectDisabledFile(msg); ok {
		m.err = fmt.Errorf("%s is not an allowed file type", path)
	}
	return m, cmd
}

// viewChat renders the chat panel
func (m Model) viewChat(s widget.State) string {
	w, _ := m.panelSize()

	header := lipgloss.JoinHorizontal(lipgloss.Top,
		titleStyle.Render("Chat"),
		lipgloss.PlaceHorizontal(w-8, lipgloss.Right, mutedStyle.Render("esc to close")),
	)

	var body, footer string
	switch {
	case s.ConfirmingClear:
		body = lipgloss.Place(m.viewport.Width, m.viewport.Height, lipgloss.Center, lipgloss.Center,
			dialogStyle.Render(lipgloss.JoinVertical(lipgloss.Center,
				errorStyle.Render("Clear chat history?"),
				mutedStyle.Render("This cannot be undone."),
				"",
				highlightStyle.Render("[y]")+" Yes   "+highlightStyle.Render("[n]")+" No",
			)))
		footer = instructionStyle.Render("y confirm  •  n cancel")

	case m.picking:
		body = lipgloss.JoinVertical(lipgloss.Left,
			highlightStyle.Render("Select a file to upload"),
			m.picker.View(),
		)
		footer = instructionStyle.Render("enter select  •  esc cancel")

	default:
		body = m.viewport.View()
		footer = instructionStyle.Render("enter send  •  ctrl+u upload  •  ctrl+l clear")
	}

	status := ""
	switch {
	case s.Pending:
		status = m.spinner.View() + mutedStyle.Render(" Thinking...")
	case m.err != nil:
		status = errorStyle.Render("✗ " + m.err.Error())
	}

	panel := boxStyle.Width(w - 2).Render(lipgloss.JoinVertical(lipgloss.Left,
		header,
		"",
		body,
		status,
		inputBoxStyle.Render(m.input.View()),
		footer,
	))
	return m.place(panel)
}
