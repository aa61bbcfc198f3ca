package connection

import (
	"sort"
	"sync"
)

// State tracks the keys this client is subscribed to, so they survive a reconnect
type State struct {
	keys map[string]struct{}
	mu   sync.RWMutex
}

// NewState creates an empty subscription state
func NewState() *State {
	return &State{
		keys: make(map[string]struct{}),
	}
}

// Add records a subscription. It reports false if the key was already present.
func (s *State) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

// Keys returns the subscribed keys in a stable order
func (s *State) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.keys))
	for k := range s.keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
