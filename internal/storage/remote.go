package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/chatbubble/internal/client/connection"
)

const (
	remoteSubscribeTimeout = 10 * time.Second
	remoteReplayTimeout    = 10 * time.Second
)

// Remote keeps values on a sync hub reached over a websocket. A Set made while
// the hub is unreachable still fails, but its value is written once the
// connection comes back unless a later Set succeeds first.
type Remote struct {
	manager *connection.Manager
	subs    *subscribers
	logger  *zap.Logger

	writeMu sync.Mutex // orders Set against replay

	mu       sync.Mutex
	closed   bool
	unsynced map[string]string
}

// OpenRemote connects to the hub at hubURL (ws:// or wss://)
func OpenRemote(ctx context.Context, hubURL string, logger *zap.Logger) (*Remote, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Remote{
		manager:  connection.NewManager(hubURL, logger),
		subs:     newSubscribers(),
		logger:   logger.Named("storage.remote"),
		unsynced: make(map[string]string),
	}
	r.manager.OnEvent(r.handleEvent)

	if err := r.manager.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to sync hub: %w", err)
	}
	return r, nil
}

func (r *Remote) handleEvent(event connection.Event) {
	if r.isClosed() {
		return
	}
	switch e := event.(type) {
	case connection.ValueChangedEvent:
		r.subs.publish(Change{Key: e.Key, OldValue: e.OldValue, NewValue: e.NewValue})
	case connection.ConnectedEvent:
		r.replay()
	case connection.DisconnectedEvent:
		r.logger.Warn("sync hub connection lost", zap.Error(e.Error))
	case connection.ErrorEvent:
		r.logger.Warn("sync hub error", zap.String("message", e.Message))
	}
}

// replay writes the values whose Set failed while the hub was unreachable
func (r *Remote) replay() {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	pending := make(map[string]string, len(r.unsynced))
	for k, v := range r.unsynced {
		pending[k] = v
	}
	r.mu.Unlock()

	for key, value := range pending {
		ctx, cancel := context.WithTimeout(context.Background(), remoteReplayTimeout)
		err := r.manager.Set(ctx, key, value)
		cancel()
		if err != nil {
			r.logger.Warn("replay failed", zap.String("key", key), zap.Error(err))
			continue
		}
		r.mu.Lock()
		delete(r.unsynced, key)
		r.mu.Unlock()
		r.logger.Info("replayed unsynced value", zap.String("key", key))
	}
}

func (r *Remote) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Remote) Get(ctx context.Context, key string) (string, bool, error) {
	if r.isClosed() {
		return "", false, ErrClosed
	}
	value, ok, err := r.manager.Get(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("remote get %s: %w", key, err)
	}
	return value, ok, nil
}

func (r *Remote) Set(ctx context.Context, key, value string) error {
	if r.isClosed() {
		return ErrClosed
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	err := r.manager.Set(ctx, key, value)

	r.mu.Lock()
	switch {
	case err == nil:
		delete(r.unsynced, key)
	case errors.Is(err, connection.ErrNotConnected):
		r.unsynced[key] = value
	}
	r.mu.Unlock()

	if err != nil {
		return fmt.Errorf("remote set %s: %w", key, err)
	}
	return nil
}

// Subscribe registers key with the hub. The manager remembers the key and
// resubscribes after every reconnect, so a failure here is only logged.
func (r *Remote) Subscribe(key string) (<-chan Change, func()) {
	ch, cancel := r.subs.add(key)
	if r.isClosed() {
		return ch, cancel
	}

	ctx, stop := context.WithTimeout(context.Background(), remoteSubscribeTimeout)
	defer stop()
	if err := r.manager.Subscribe(ctx, key); err != nil {
		r.logger.Warn("subscribe failed", zap.String("key", key), zap.Error(err))
	}
	return ch, cancel
}

func (r *Remote) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.manager.Disconnect()
	r.subs.closeAll()
	return nil
}
