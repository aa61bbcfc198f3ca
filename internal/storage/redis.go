package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// redisNotice is published on the change channel after every Set
type redisNotice struct {
	Origin   string `json:"origin"`
	Key      string `json:"key"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// Redis stores values as plain keys and announces writes on a pub/sub channel.
// Each handle has its own origin id so it can skip its own announcements.
type Redis struct {
	client *redis.Client
	prefix string
	origin string
	subs   *subscribers
	logger *zap.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// OpenRedis connects to redisURL. Keys are stored under prefix.
func OpenRedis(ctx context.Context, redisURL, prefix string, logger *zap.Logger) (*Redis, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return NewRedis(client, prefix, logger), nil
}

// NewRedis wraps an existing client
func NewRedis(client *redis.Client, prefix string, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{
		client: client,
		prefix: prefix,
		origin: uuid.NewString(),
		subs:   newSubscribers(),
		logger: logger.Named("storage.redis"),
	}
}

func (r *Redis) dataKey(key string) string {
	return r.prefix + key
}

func (r *Redis) channel() string {
	return r.prefix + "changes"
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.dataKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	old, err := r.client.SetArgs(ctx, r.dataKey(key), value, redis.SetArgs{Get: true}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	notice, err := json.Marshal(redisNotice{Origin: r.origin, Key: key, OldValue: old, NewValue: value})
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel(), notice).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", key, err)
	}
	return nil
}

// Subscribe starts the shared pub/sub listener on first use
func (r *Redis) Subscribe(key string) (<-chan Change, func()) {
	r.mu.Lock()
	if !r.closed && r.pubsub == nil {
		ctx, cancel := context.WithCancel(context.Background())
		r.pubsub = r.client.Subscribe(ctx, r.channel())
		confirmCtx, stop := context.WithTimeout(ctx, 5*time.Second)
		if _, err := r.pubsub.Receive(confirmCtx); err != nil {
			r.logger.Warn("subscribe not confirmed", zap.Error(err))
		}
		stop()
		r.cancel = cancel
		r.done = make(chan struct{})
		go r.listen(ctx, r.pubsub, r.done)
	}
	r.mu.Unlock()
	return r.subs.add(key)
}

func (r *Redis) listen(ctx context.Context, pubsub *redis.PubSub, done chan struct{}) {
	defer close(done)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var notice redisNotice
			if err := json.Unmarshal([]byte(msg.Payload), &notice); err != nil {
				r.logger.Warn("bad change notice", zap.Error(err))
				continue
			}
			if notice.Origin == r.origin {
				continue
			}
			r.subs.publish(Change{Key: notice.Key, OldValue: notice.OldValue, NewValue: notice.NewValue})
		}
	}
}

func (r *Redis) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	pubsub, cancel, done := r.pubsub, r.cancel, r.done
	r.mu.Unlock()

	if pubsub != nil {
		cancel()
		pubsub.Close()
		<-done
	}
	r.subs.closeAll()
	return r.client.Close()
}
