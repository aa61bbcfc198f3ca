package ui

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/yourusername/chatbubble/internal/chat"
	"github.com/yourusername/chatbubble/internal/widget"
)

const (
	maxPanelWidth  = 64
	maxPanelHeight = 26
	eventBuffer    = 64
)

// UploadTypes are the file extensions offered by the upload picker
var UploadTypes = []string{".png", ".jpg", ".jpeg", ".gif", ".pdf", ".txt", ".doc", ".docx"}

// modeOptions are the entries of the mode selector, in display order
var modeOptions = []struct {
	label string
	mode  widget.Mode
}{
	{"Chat Interface", widget.ModeChat},
	{"3D Interactive Mode", widget.Mode3D},
}

// SceneFactory creates the interactive scene the 3D panel launches
type SceneFactory func() tea.ExecCommand

// Model is the main Bubble Tea model
type Model struct {
	ctx       context.Context
	widget    *widget.Widget
	eventChan chan widget.Event // Channel for widget events
	newScene  SceneFactory
	logger    *zap.Logger

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	picker   filepicker.Model
	picking  bool

	modeCursor int
	width      int
	height     int
	err        error
}

// Option configures a Model
type Option func(*Model)

// WithSceneFactory sets what the 3D panel launches
func WithSceneFactory(f SceneFactory) Option {
	return func(m *Model) { m.newScene = f }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(m *Model) { m.logger = logger }
}

// WithContext bounds the backend calls the model starts
func WithContext(ctx context.Context) Option {
	return func(m *Model) { m.ctx = ctx }
}

// NewModel creates a model driving w
func NewModel(w *widget.Widget, opts ...Option) Model {
	eventChan := make(chan widget.Event, eventBuffer)

	// The view is rebuilt from a widget snapshot on every event, so when the UI
	// falls behind an event can be dropped without losing state.
	w.OnEvent(func(event widget.Event) {
		select {
		case eventChan <- event:
		default:
		}
	})

	input := textinput.New()
	input.Placeholder = "Type your message..."
	input.Prompt = "> "
	input.CharLimit = 2000

	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(spinnerStyle))

	picker := filepicker.New()
	picker.AllowedTypes = UploadTypes
	picker.AutoHeight = false
	if dir, err := os.Getwd(); err == nil {
		picker.CurrentDirectory = dir
	}

	m := Model{
		ctx:       context.Background(),
		widget:    w,
		eventChan: eventChan,
		logger:    zap.NewNop(),
		input:     input,
		viewport:  viewport.New(maxPanelWidth-4, maxPanelHeight-8),
		spinner:   sp,
		picker:    picker,
		width:     80,
		height:    24,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.logger = m.logger.Named("ui")
	m.layout()
	m.refreshHistory()
	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		listenForEventsCmd(m.eventChan), // Listen for widget events
		m.spinner.Tick,
		textinput.Blink,
	)
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refreshHistory()
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		s := m.widget.Snapshot()
		switch {
		case s.Mode == widget.ModeChat:
			return m.updateChat(msg, s)
		case s.Mode == widget.Mode3D:
			return m.updateInteractive(msg)
		case s.Open:
			return m.updateModeSelect(msg)
		default:
			return m.updateBubble(msg)
		}

	case widgetEventMsg:
		return m.handleWidgetEvent(msg.event)

	case sceneDoneMsg:
		if msg.err != nil {
			m.err = msg.err
			m.logger.Warn("interactive scene failed", zap.Error(msg.err))
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	// Directory listings and blink ticks
	var cmds []tea.Cmd
	if m.picking {
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		cmds = append(cmds, cmd)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// View renders the current view
func (m Model) View() string {
	s := m.widget.Snapshot()
	switch {
	case s.Mode == widget.ModeChat:
		return m.viewChat(s)
	case s.Mode == widget.Mode3D:
		return m.viewInteractive()
	case s.Open:
		return m.viewModeSelect()
	default:
		return m.viewBubble()
	}
}

// Add new event handlers below when you add new event types in widget/events.go
func (m Model) handleWidgetEvent(event widget.Event) (tea.Model, tea.Cmd) {
	switch e := event.(type) {
	case widget.RequestFailedEvent:
		m.logger.Debug("request failed", zap.Error(e.Err))
	case widget.ExternalChangeEvent:
		m.logger.Debug("history changed in another instance", zap.Int("messages", len(e.History)))
	}

	// events may have been dropped, so sync to the current state rather than to the event
	snap := m.widget.Snapshot()
	m.setHistory(snap.History)

	if snap.Pending {
		m.input.Blur()
	} else if snap.Mode == widget.ModeChat && !m.input.Focused() {
		focus := m.input.Focus()
		return m, tea.Batch(focus, listenForEventsCmd(m.eventChan))
	}
	return m, listenForEventsCmd(m.eventChan)
}

// layout sizes the panel components to the terminal
func (m *Model) layout() {
	w, h := m.panelSize()
	m.viewport.Width = w - 4
	m.viewport.Height = max(h-8, 3)
	m.input.Width = w - 8
	m.picker.Height = max(h-8, 3)
}

func (m Model) panelSize() (int, int) {
	return min(maxPanelWidth, max(m.width-2, 20)), min(maxPanelHeight, max(m.height-2, 10))
}

func (m *Model) refreshHistory() {
	m.setHistory(m.widget.Snapshot().History)
}

func (m *Model) setHistory(h chat.History) {
	m.viewport.SetContent(renderHistory(h, m.viewport.Width))
	m.viewport.GotoBottom()
}

// setError records err for display, ignoring the ones that need no message
func (m *Model) setError(err error) {
	if err == nil || errors.Is(err, widget.ErrEmptyInput) {
		m.err = nil
		return
	}
	m.err = err
}
