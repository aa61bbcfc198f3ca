package ui

import (
	"context"
	"io"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/chatbubble/internal/chat"
	"github.com/yourusername/chatbubble/internal/storage"
	"github.com/yourusername/chatbubble/internal/widget"
)

type stubBackend struct {
	reply string
}

func (b stubBackend) SendQuery(context.Context, string) (string, error) { return b.reply, nil }
func (b stubBackend) Upload(context.Context, string) (string, error)    { return b.reply, nil }

type stubScene struct{}

func (stubScene) Run() error          { return nil }
func (stubScene) SetStdin(io.Reader)  {}
func (stubScene) SetStdout(io.Writer) {}
func (stubScene) SetStderr(io.Writer) {}

func newTestModel(t *testing.T, opts ...Option) (Model, *widget.Widget) {
	t.Helper()
	store := storage.NewMemory()
	w, err := widget.New(context.Background(), widget.Options{Store: store, Backend: stubBackend{reply: "Hello!"}})
	require.NoError(t, err)
	t.Cleanup(func() {
		w.Wait()
		w.Close()
		store.Close()
	})
	return NewModel(w, opts...), w
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func key(k tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: k}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// drainEvents feeds pending widget events into the model
func drainEvents(t *testing.T, m Model) Model {
	t.Helper()
	for {
		select {
		case e := <-m.eventChan:
			m = update(t, m, widgetEventMsg{event: e})
		default:
			return m
		}
	}
}

func openChat(t *testing.T, m Model) Model {
	t.Helper()
	m = update(t, m, key(tea.KeyEnter))
	return update(t, m, key(tea.KeyEnter))
}

func TestChat_CatchesUpAfterDroppedEvents(t *testing.T) {
	m, w := newTestModel(t)
	m = openChat(t, m)

	require.NoError(t, w.Submit(context.Background(), "Hi"))
	w.Wait()
	m.input.Blur() // as the pending event left it

	// only a stale event gets through; the rest were dropped
	for len(m.eventChan) > 0 {
		<-m.eventChan
	}
	m = update(t, m, widgetEventMsg{event: widget.HistoryChangedEvent{History: chat.History{chat.UserMessage("Hi")}}})

	view := m.View()
	assert.Contains(t, view, "Hi")
	assert.Contains(t, view, "Hello!")
	assert.True(t, m.input.Focused())
}

func TestBubbleAndModeSelect(t *testing.T) {
	m, w := newTestModel(t)

	assert.Contains(t, m.View(), "?")
	assert.NotContains(t, m.View(), "Select Mode")

	m = update(t, m, key(tea.KeyEnter))
	assert.True(t, w.Snapshot().Open)
	view := m.View()
	assert.Contains(t, view, "Select Mode")
	assert.Contains(t, view, "Chat Interface")
	assert.Contains(t, view, "3D Interactive Mode")

	m = update(t, m, key(tea.KeyEsc))
	assert.False(t, w.Snapshot().Open)

	m = update(t, m, key(tea.KeyEnter))
	m = update(t, m, key(tea.KeyDown))
	m = update(t, m, key(tea.KeyEnter))
	s := w.Snapshot()
	assert.Equal(t, widget.Mode3D, s.Mode)
	assert.False(t, s.Open)
	assert.Contains(t, m.View(), "3D Interactive Mode")

	m = update(t, m, key(tea.KeyEsc))
	assert.Equal(t, widget.ModeNone, w.Snapshot().Mode)
}

func TestChat_SubmitAndReply(t *testing.T) {
	m, w := newTestModel(t)
	m = openChat(t, m)
	require.Equal(t, widget.ModeChat, w.Snapshot().Mode)
	assert.Contains(t, m.View(), emptyHistoryText)

	m = update(t, m, runes("Hi"))
	assert.Equal(t, "Hi", m.input.Value())

	m = update(t, m, key(tea.KeyEnter))
	assert.Empty(t, m.input.Value(), "input is cleared after sending")
	w.Wait()
	m = drainEvents(t, m)

	assert.Equal(t, chat.History{chat.UserMessage("Hi"), chat.BotMessage("Hello!")}, w.Snapshot().History)
	view := m.View()
	assert.Contains(t, view, "Hi")
	assert.Contains(t, view, "Hello!")
	assert.NotContains(t, view, "Thinking")
}

func TestChat_EmptySubmitShowsNothing(t *testing.T) {
	m, w := newTestModel(t)
	m = openChat(t, m)

	m = update(t, m, key(tea.KeyEnter))
	assert.Nil(t, m.err)
	assert.Empty(t, w.Snapshot().History)
}

func TestChat_ClearConfirmation(t *testing.T) {
	m, w := newTestModel(t)
	m = openChat(t, m)
	m = update(t, m, runes("Hi"))
	m = update(t, m, key(tea.KeyEnter))
	w.Wait()
	m = drainEvents(t, m)
	require.Len(t, w.Snapshot().History, 2)

	m = update(t, m, key(tea.KeyCtrlL))
	assert.True(t, w.Snapshot().ConfirmingClear)
	assert.Contains(t, m.View(), "Clear chat history?")

	m = update(t, m, runes("n"))
	assert.False(t, w.Snapshot().ConfirmingClear)
	assert.Len(t, w.Snapshot().History, 2)
	assert.Empty(t, m.input.Value(), "dialog keys do not reach the input")

	m = update(t, m, key(tea.KeyCtrlL))
	m = update(t, m, runes("y"))
	m = drainEvents(t, m)
	assert.Empty(t, w.Snapshot().History)
	assert.Contains(t, m.View(), emptyHistoryText)
}

func TestChat_UploadPicker(t *testing.T) {
	m, w := newTestModel(t)
	m = openChat(t, m)

	m = update(t, m, key(tea.KeyCtrlU))
	assert.True(t, m.picking)
	assert.Contains(t, m.View(), "Select a file to upload")

	m = update(t, m, key(tea.KeyEsc))
	assert.False(t, m.picking)
	assert.Equal(t, widget.ModeChat, w.Snapshot().Mode, "esc only closes the picker")

	m = update(t, m, key(tea.KeyEsc))
	assert.Equal(t, widget.ModeNone, w.Snapshot().Mode)
}

func TestInteractive_LaunchScene(t *testing.T) {
	m, _ := newTestModel(t)
	m = update(t, m, key(tea.KeyEnter))
	m = update(t, m, key(tea.KeyDown))
	m = update(t, m, key(tea.KeyEnter))

	_, cmd := m.Update(key(tea.KeyEnter))
	assert.Nil(t, cmd, "nothing to launch without a scene factory")

	m, _ = newTestModel(t, WithSceneFactory(func() tea.ExecCommand { return stubScene{} }))
	m = update(t, m, key(tea.KeyEnter))
	m = update(t, m, key(tea.KeyDown))
	m = update(t, m, key(tea.KeyEnter))
	assert.Contains(t, m.View(), "enter to launch")

	_, cmd = m.Update(key(tea.KeyEnter))
	assert.NotNil(t, cmd)

	m = update(t, m, sceneDoneMsg{})
	assert.Nil(t, m.err)
}

func TestExternalChangeRefreshesView(t *testing.T) {
	space := storage.NewMemorySpace()
	store := space.Open()
	w, err := widget.New(context.Background(), widget.Options{Store: store, Backend: stubBackend{}})
	require.NoError(t, err)
	defer store.Close()
	defer w.Close()

	m := openChat(t, NewModel(w))

	other := space.Open()
	defer other.Close()
	require.NoError(t, other.Set(context.Background(), widget.HistoryKey, `[{"content":"from another tab","isUser":true}]`))

	require.Eventually(t, func() bool {
		return len(w.Snapshot().History) == 1
	}, 2*time.Second, 5*time.Millisecond)

	m = drainEvents(t, m)
	assert.Contains(t, m.View(), "from another tab")
}

func TestWindowResize(t *testing.T) {
	m, _ := newTestModel(t)
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, maxPanelWidth-4, m.viewport.Width)

	m = update(t, m, tea.WindowSizeMsg{Width: 30, Height: 12})
	assert.Equal(t, 28-4, m.viewport.Width)
}
