package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/yourusername/chatbubble/internal/widget"
)

// widgetEventMsg wraps events from the widget
type widgetEventMsg struct {
	event widget.Event
}

// sceneDoneMsg is sent when the interactive scene returns control to the TUI
type sceneDoneMsg struct {
	err error
}

// listenForEventsCmd waits for the next widget event
func listenForEventsCmd(eventChan <-chan widget.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-eventChan
		if !ok {
			return nil
		}
		return widgetEventMsg{event: event}
	}
}

// runSceneCmd hands the terminal to the interactive scene until it ends
func runSceneCmd(scene tea.ExecCommand) tea.Cmd {
	return tea.Exec(scene, func(err error) tea.Msg {
		return sceneDoneMsg{err: err}
	})
}
