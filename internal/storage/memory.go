package storage

import (
	"context"
	"sync"
)

// MemorySpace is shared in-process storage. Each Open call returns a separate handle,
// the way every browser tab gets its own view of the same localStorage.
type MemorySpace struct {
	mu      sync.RWMutex
	data    map[string]string
	handles map[*Memory]struct{}
}

// NewMemorySpace creates an empty space
func NewMemorySpace() *MemorySpace {
	return &MemorySpace{
		data:    make(map[string]string),
		handles: make(map[*Memory]struct{}),
	}
}

// Open returns a new handle onto the space
func (s *MemorySpace) Open() *Memory {
	m := &Memory{space: s, subs: newSubscribers()}
	s.mu.Lock()
	s.handles[m] = struct{}{}
	s.mu.Unlock()
	return m
}

// NewMemory returns a handle onto a fresh private space
func NewMemory() *Memory {
	return NewMemorySpace().Open()
}

// Memory is one handle onto a MemorySpace
type Memory struct {
	space  *MemorySpace
	subs   *subscribers
	closed bool
	mu     sync.RWMutex
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	if m.isClosed() {
		return "", false, ErrClosed
	}
	m.space.mu.RLock()
	defer m.space.mu.RUnlock()
	v, ok := m.space.data[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	if m.isClosed() {
		return ErrClosed
	}

	// publish under the space lock so every handle sees writes in store order
	m.space.mu.Lock()
	defer m.space.mu.Unlock()
	old := m.space.data[key]
	m.space.data[key] = value

	change := Change{Key: key, OldValue: old, NewValue: value}
	for h := range m.space.handles {
		if h != m {
			h.subs.publish(change)
		}
	}
	return nil
}

func (m *Memory) Subscribe(key string) (<-chan Change, func()) {
	return m.subs.add(key)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.space.mu.Lock()
	delete(m.space.handles, m)
	m.space.mu.Unlock()

	m.subs.closeAll()
	return nil
}

func (m *Memory) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
