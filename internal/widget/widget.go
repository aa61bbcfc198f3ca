// Package widget holds the chat widget's state: visibility, mode, the message history,
// the pending flag and the clear confirmation. History is persisted to a storage.Store
// after every change and adopted from other instances sharing the same store.
package widget

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/yourusername/chatbubble/internal/chat"
	"github.com/yourusername/chatbubble/internal/storage"
)

// HistoryKey is the storage key the history is persisted under
const HistoryKey = "chatHistory"

// ErrorMessage is appended as a bot message when a request fails
const ErrorMessage = "Sorry, something went wrong. Please try again."

var (
	ErrEmptyInput     = errors.New("empty input")
	ErrNoFile         = errors.New("no file selected")
	ErrRequestPending = errors.New("a request is already pending")
	ErrNoClearRequest = errors.New("no clear request to answer")
	ErrInvalidMode    = errors.New("invalid mode")
	ErrClosed         = errors.New("widget closed")
)

// Mode is the panel the widget shows
type Mode int

const (
	ModeNone Mode = iota
	ModeChat
	Mode3D
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeChat:
		return "chat"
	case Mode3D:
		return "3d"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Backend is the chatbot service
type Backend interface {
	SendQuery(ctx context.Context, text string) (string, error)
	Upload(ctx context.Context, path string) (string, error)
}

// State is a snapshot of the widget
type State struct {
	Open            bool
	Mode            Mode
	Pending         bool
	ConfirmingClear bool
	History         chat.History
}

// Options configures New
type Options struct {
	Store   storage.Store
	Backend Backend
	// Key overrides HistoryKey
	Key    string
	Logger *zap.Logger
}

// Widget is safe for concurrent use. Backend calls run on their own goroutines and
// report back through OnEvent.
type Widget struct {
	store   storage.Store
	backend Backend
	key     string
	logger  *zap.Logger

	mu     sync.Mutex
	state  State
	closed bool

	callback   func(Event)
	callbackMu sync.RWMutex

	unsubscribe func()
	watchDone   chan struct{}
	requests    sync.WaitGroup
}

// New loads the persisted history and starts following changes from other instances.
// A malformed stored value fails with a *chat.DecodeError.
func New(ctx context.Context, opts Options) (*Widget, error) {
	if opts.Store == nil {
		return nil, errors.New("widget: store is required")
	}
	if opts.Backend == nil {
		return nil, errors.New("widget: backend is required")
	}
	if opts.Key == "" {
		opts.Key = HistoryKey
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	w := &Widget{
		store:     opts.Store,
		backend:   opts.Backend,
		key:       opts.Key,
		logger:    opts.Logger.Named("widget"),
		watchDone: make(chan struct{}),
	}

	// Subscribe before reading so no write between the two is missed
	changes, unsubscribe := w.store.Subscribe(w.key)

	history, err := w.load(ctx)
	if err != nil {
		unsubscribe()
		return nil, err
	}
	w.state.History = history
	w.unsubscribe = unsubscribe

	go w.watch(changes)

	w.logger.Debug("widget ready", zap.String("key", w.key), zap.Int("messages", len(history)))
	return w, nil
}

func (w *Widget) load(ctx context.Context) (chat.History, error) {
	raw, ok, err := w.store.Get(ctx, w.key)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if !ok {
		return chat.History{}, nil
	}
	history, err := chat.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return history, nil
}

// OnEvent sets the callback for events. It is called from the widget's goroutines.
func (w *Widget) OnEvent(callback func(Event)) {
	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()
	w.callback = callback
}

func (w *Widget) sendEvent(events ...Event) {
	w.callbackMu.RLock()
	callback := w.callback
	w.callbackMu.RUnlock()

	if callback == nil {
		return
	}
	for _, e := range events {
		callback(e)
	}
}

// Snapshot returns a copy of the current state
func (w *Widget) Snapshot() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.state
	s.History = w.state.History.Clone()
	return s
}

// Toggle opens or closes the bubble popup. The mode is reset either way.
func (w *Widget) Toggle() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.Open = !w.state.Open
	w.state.Mode = ModeNone
}

// SelectMode shows the chat or 3D panel and closes the popup
func (w *Widget) SelectMode(mode Mode) error {
	if mode != ModeChat && mode != Mode3D {
		return fmt.Errorf("%w: %s", ErrInvalidMode, mode)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.Mode = mode
	w.state.Open = false
	return nil
}

// CloseMode hides the current panel
func (w *Widget) CloseMode() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.Mode = ModeNone
}

// Submit appends text as a user message and asks the backend for a reply.
// It returns once the request has started; the reply arrives through OnEvent.
// Invalid UTF-8 is replaced with U+FFFD, as the persisted JSON would.
func (w *Widget) Submit(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyInput
	}
	text = strings.ToValidUTF8(text, "\uFFFD")

	w.mu.Lock()
	if err := w.startLocked(); err != nil {
		w.mu.Unlock()
		return err
	}
	w.state.History = w.state.History.Append(chat.UserMessage(text))
	history := w.state.History.Clone()
	w.persistLocked(ctx)
	w.mu.Unlock()

	w.sendEvent(HistoryChangedEvent{History: history}, PendingChangedEvent{Pending: true})

	w.requests.Add(1)
	go w.complete(ctx, "query", func(ctx context.Context) (string, error) {
		return w.backend.SendQuery(ctx, text)
	})
	return nil
}

// Upload sends the file at path to the backend. No user message is appended.
func (w *Widget) Upload(ctx context.Context, path string) error {
	if strings.TrimSpace(path) == "" {
		return ErrNoFile
	}

	w.mu.Lock()
	if err := w.startLocked(); err != nil {
		w.mu.Unlock()
		return err
	}
	w.mu.Unlock()

	w.sendEvent(PendingChangedEvent{Pending: true})

	w.requests.Add(1)
	go w.complete(ctx, "upload", func(ctx context.Context) (string, error) {
		return w.backend.Upload(ctx, path)
	})
	return nil
}

// startLocked marks a request as pending
func (w *Widget) startLocked() error {
	if w.closed {
		return ErrClosed
	}
	if w.state.Pending {
		return ErrRequestPending
	}
	w.state.Pending = true
	return nil
}

// complete runs call and appends its reply, or the error message when it fails
func (w *Widget) complete(ctx context.Context, kind string, call func(context.Context) (string, error)) {
	defer w.requests.Done()

	reply, err := call(ctx)
	msg := chat.BotMessage(reply)
	if err != nil {
		w.logger.Warn("request failed", zap.String("kind", kind), zap.Error(err))
		msg = chat.BotMessage(ErrorMessage)
	}

	w.mu.Lock()
	w.state.History = w.state.History.Append(msg)
	w.state.Pending = false
	history := w.state.History.Clone()
	w.persistLocked(context.WithoutCancel(ctx))
	w.mu.Unlock()

	var events []Event
	if err != nil {
		events = append(events, RequestFailedEvent{Err: err})
	}
	events = append(events, HistoryChangedEvent{History: history}, PendingChangedEvent{Pending: false})
	w.sendEvent(events...)
}

// Wait blocks until every started request has completed
func (w *Widget) Wait() {
	w.requests.Wait()
}

// RequestClear opens the clear confirmation
func (w *Widget) RequestClear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.ConfirmingClear = true
}

// ConfirmClear empties the history and closes the confirmation
func (w *Widget) ConfirmClear(ctx context.Context) error {
	w.mu.Lock()
	if !w.state.ConfirmingClear {
		w.mu.Unlock()
		return ErrNoClearRequest
	}
	w.state.ConfirmingClear = false
	w.state.History = chat.History{}
	w.persistLocked(ctx)
	w.mu.Unlock()

	w.sendEvent(HistoryChangedEvent{History: chat.History{}})
	return nil
}

// CancelClear closes the confirmation and keeps the history
func (w *Widget) CancelClear() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.state.ConfirmingClear {
		return ErrNoClearRequest
	}
	w.state.ConfirmingClear = false
	return nil
}

// persistLocked writes the current history to the store. Failures are logged;
// the in-memory history stays authoritative for this instance.
func (w *Widget) persistLocked(ctx context.Context) {
	raw, err := chat.Encode(w.state.History)
	if err != nil {
		w.logger.Error("encode history", zap.Error(err))
		return
	}
	if err := w.store.Set(ctx, w.key, raw); err != nil {
		w.logger.Warn("persist history", zap.Error(err))
	}
}

// watch adopts history written by other instances
func (w *Widget) watch(changes <-chan storage.Change) {
	defer close(w.watchDone)

	for change := range changes {
		if change.Key != w.key || change.NewValue == change.OldValue {
			continue
		}

		history, err := chat.Decode(change.NewValue)
		if err != nil {
			w.logger.Warn("ignoring malformed history from another instance", zap.Error(err))
			continue
		}

		w.mu.Lock()
		if w.closed || w.state.History.Equal(history) {
			w.mu.Unlock()
			continue
		}
		w.state.History = history
		w.mu.Unlock()

		w.logger.Debug("adopted external history", zap.Int("messages", len(history)))
		w.sendEvent(ExternalChangeEvent{History: history.Clone()}, HistoryChangedEvent{History: history.Clone()})
	}
}

// Close stops following other instances. Requests already started still complete.
func (w *Widget) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	w.unsubscribe()
	<-w.watchDone
	return nil
}
