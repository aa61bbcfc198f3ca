package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourusername/chatbubble/internal/protocol"
)

const (
	writeWait        = 10 * time.Second
	dialTimeout      = 10 * time.Second
	minReconnectWait = 100 * time.Millisecond
	maxReconnectWait = 5 * time.Second
)

// ErrNotConnected is returned by requests issued while the socket is down
var ErrNotConnected = errors.New("not connected to sync hub")

// ErrMessageTooLarge is returned for requests the hub would refuse to read
var ErrMessageTooLarge = errors.New("message exceeds sync hub limit")

// HubError is an error reply from the hub
type HubError struct {
	Message string
}

func (e *HubError) Error() string {
	return "sync hub: " + e.Message
}

// Manager manages the WebSocket connection to the storage sync hub.
// After the first Connect it redials on its own until Disconnect is called.
type Manager struct {
	serverURL     string
	conn          *websocket.Conn
	state         *State
	eventCallback func(Event)
	connected     bool
	closed        bool
	mu            sync.RWMutex
	writeMu       sync.Mutex
	done          chan struct{} // closed by Disconnect

	pending   map[string]chan *protocol.Message
	pendingMu sync.Mutex

	logger *zap.Logger
}

// NewManager creates a new connection manager
func NewManager(serverURL string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		serverURL: serverURL,
		state:     NewState(),
		connected: false,
		done:      make(chan struct{}),
		pending:   make(map[string]chan *protocol.Message),
		logger:    logger.Named("connection"),
	}
}

// OnEvent sets the callback for events
func (m *Manager) OnEvent(callback func(Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventCallback = callback
}

// Connect establishes a WebSocket connection to the hub and restores subscriptions
func (m *Manager) Connect(ctx context.Context) error {
	if err := m.dial(ctx); err != nil {
		m.sendEvent(DisconnectedEvent{Error: err})
		return err
	}
	return nil
}

func (m *Manager) dial(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: dialTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, m.serverURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", m.serverURL, err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		conn.Close()
		return ErrNotConnected
	}
	m.conn = conn
	m.connected = true
	m.mu.Unlock()

	go m.readPump(conn)

	for _, key := range m.state.Keys() {
		if err := m.subscribe(ctx, key); err != nil {
			m.logger.Warn("resubscribe failed", zap.String("key", key), zap.Error(err))
		}
	}

	m.sendEvent(ConnectedEvent{})
	return nil
}

// reconnect redials with exponential backoff until a dial succeeds or Disconnect is called
func (m *Manager) reconnect() {
	wait := minReconnectWait
	for {
		select {
		case <-m.done:
			return
		case <-time.After(wait):
		}

		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		err := m.dial(ctx)
		cancel()
		if err == nil {
			m.logger.Info("reconnected to sync hub")
			return
		}

		wait *= 2
		if wait > maxReconnectWait {
			wait = maxReconnectWait
		}
		m.logger.Debug("reconnect failed", zap.Duration("retry_in", wait), zap.Error(err))
	}
}

// Disconnect closes the WebSocket connection and stops reconnecting
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	m.connected = false
	close(m.done)

	if m.conn != nil {
		m.conn.Close()
	}
}

// IsConnected returns whether the manager is connected
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

//// FROM CLIENT -> HUB MESSAGES ////

// Subscribe asks the hub for value_changed notifications on key
func (m *Manager) Subscribe(ctx context.Context, key string) error {
	m.state.Add(key)
	return m.subscribe(ctx, key)
}

func (m *Manager) subscribe(ctx context.Context, key string) error {
	id := uuid.NewString()
	_, err := m.request(ctx, id, protocol.MsgSubscribe, protocol.SubscribePayload{RequestID: id, Key: key})
	return err
}

// Get fetches the current value of key from the hub
func (m *Manager) Get(ctx context.Context, key string) (string, bool, error) {
	id := uuid.NewString()
	reply, err := m.request(ctx, id, protocol.MsgGet, protocol.GetPayload{RequestID: id, Key: key})
	if err != nil {
		return "", false, err
	}
	if reply.Type != protocol.MsgValue {
		return "", false, fmt.Errorf("unexpected reply %q to get", reply.Type)
	}

	var payload protocol.ValuePayload
	if err := json.Unmarshal(reply.Payload, &payload); err != nil {
		return "", false, fmt.Errorf("decode value reply: %w", err)
	}
	return payload.Value, payload.Exists, nil
}

// Set stores value under key on the hub and waits for the acknowledgement
func (m *Manager) Set(ctx context.Context, key, value string) error {
	id := uuid.NewString()
	_, err := m.request(ctx, id, protocol.MsgSet, protocol.SetPayload{RequestID: id, Key: key, Value: value})
	return err
}

////////////////////////////////////////////

// request sends a message and waits for the reply carrying the same request ID
func (m *Manager) request(ctx context.Context, id string, msgType protocol.MessageType, payload interface{}) (*protocol.Message, error) {
	reply := make(chan *protocol.Message, 1)
	m.pendingMu.Lock()
	m.pending[id] = reply
	m.pendingMu.Unlock()

	defer func() {
		m.pendingMu.Lock()
		delete(m.pending, id)
		m.pendingMu.Unlock()
	}()

	if err := m.sendMessage(msgType, payload); err != nil {
		return nil, err
	}

	select {
	case msg, ok := <-reply:
		if !ok {
			return nil, ErrNotConnected
		}
		if msg.Type == protocol.MsgError {
			var e protocol.ErrorPayload
			if err := json.Unmarshal(msg.Payload, &e); err != nil {
				return nil, fmt.Errorf("decode error reply: %w", err)
			}
			return nil, &HubError{Message: e.Message}
		}
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// sendMessage sends a message to the hub
func (m *Manager) sendMessage(msgType protocol.MessageType, payload interface{}) error {
	m.mu.RLock()
	conn := m.conn
	connected := m.connected
	m.mu.RUnlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}

	msg, err := protocol.EncodeMessage(msgType, payload)
	if err != nil {
		return err
	}
	if len(msg) > protocol.MaxMessageSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrMessageTooLarge, len(msg), protocol.MaxMessageSize)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, msg)
}

// readPump reads messages from the WebSocket connection
func (m *Manager) readPump(conn *websocket.Conn) {
	defer func() {
		m.mu.Lock()
		m.connected = false
		conn.Close()
		closed := m.closed
		m.mu.Unlock()
		m.failPending()
		m.sendEvent(DisconnectedEvent{})
		if !closed {
			go m.reconnect()
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.logger.Warn("websocket error", zap.Error(err))
			}
			return
		}

		m.handleMessage(message)
	}
}

// failPending wakes every waiting request with ErrNotConnected
func (m *Manager) failPending() {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	for id, ch := range m.pending {
		close(ch)
		delete(m.pending, id)
	}
}

// handleMessage processes incoming messages
func (m *Manager) handleMessage(data []byte) {
	msg, err := protocol.DecodeMessage(data)
	if err != nil {
		m.logger.Warn("error decoding message", zap.Error(err))
		return
	}

	switch msg.Type {
	case protocol.MsgValue, protocol.MsgAck:
		m.deliver(msg)

	case protocol.MsgError:
		if !m.deliver(msg) {
			var payload protocol.ErrorPayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				m.logger.Warn("error unmarshaling error payload", zap.Error(err))
				return
			}
			m.sendEvent(ErrorEvent{Message: payload.Message})
		}

	case protocol.MsgValueChanged:
		var payload protocol.ValueChangedPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			m.logger.Warn("error unmarshaling value change", zap.Error(err))
			return
		}
		m.sendEvent(ValueChangedEvent{
			Key:      payload.Key,
			OldValue: payload.OldValue,
			NewValue: payload.NewValue,
		})

	default:
		m.logger.Debug("unhandled message type", zap.String("type", string(msg.Type)))
	}
}

// deliver hands a reply to the request waiting for it. It reports false if nobody waits.
func (m *Manager) deliver(msg *protocol.Message) bool {
	id := msg.RequestID()
	if id == "" {
		return false
	}

	m.pendingMu.Lock()
	ch, ok := m.pending[id]
	if ok {
		delete(m.pending, id)
	}
	m.pendingMu.Unlock()

	if ok {
		ch <- msg
	}
	return ok
}

// sendEvent sends an event to the callback if set
func (m *Manager) sendEvent(event Event) {
	m.mu.RLock()
	callback := m.eventCallback
	m.mu.RUnlock()

	if callback != nil {
		callback(event)
	}
}
