// Package storage provides the key-value slot the widget persists its history to.
//
// Every backend follows browser storage semantics: a Store handle is one instance's view
// (one tab), writes are last-write-wins, and Subscribe delivers changes made through
// other handles only. A handle is never notified about its own writes.
package storage

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by operations on a closed store
var ErrClosed = errors.New("storage: store closed")

// Change describes a value written by another handle
type Change struct {
	Key      string
	OldValue string
	NewValue string
}

// Store is a persistent string slot per key with change notifications
type Store interface {
	// Get returns the stored value. ok is false when the key was never set.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set stores value under key and notifies other handles.
	Set(ctx context.Context, key, value string) error
	// Subscribe returns a channel of changes to key made by other handles and a
	// function that cancels the subscription and closes the channel.
	Subscribe(key string) (<-chan Change, func())
	// Close releases the handle and closes every subscription channel.
	Close() error
}

// subscriptionBuffer bounds each subscriber channel. When it is full the oldest pending
// change is discarded, since a newer change always carries the latest value.
const subscriptionBuffer = 16

// subscribers fans changes out to the channels returned by Subscribe
type subscribers struct {
	mu     sync.Mutex
	next   int
	subs   map[string]map[int]chan Change
	closed bool
}

func newSubscribers() *subscribers {
	return &subscribers{subs: make(map[string]map[int]chan Change)}
}

func (s *subscribers) add(key string) (<-chan Change, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Change, subscriptionBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.next
	s.next++
	if s.subs[key] == nil {
		s.subs[key] = make(map[int]chan Change)
	}
	s.subs[key][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[key][id]; ok {
				delete(s.subs[key], id)
				if len(s.subs[key]) == 0 {
					delete(s.subs, key)
				}
				close(c)
			}
		})
	}
	return ch, cancel
}

// keys returns the keys that currently have subscribers
func (s *subscribers) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.subs))
	for k := range s.subs {
		keys = append(keys, k)
	}
	return keys
}

func (s *subscribers) publish(c Change) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.subs[c.Key] {
		select {
		case ch <- c:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- c:
			default:
			}
		}
	}
}

func (s *subscribers) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for key, byID := range s.subs {
		for _, ch := range byID {
			close(ch)
		}
		delete(s.subs, key)
	}
}
