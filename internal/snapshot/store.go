// Package snapshot holds the live flag snapshot and fans out every change
// to registered listeners.
package snapshot

import (
	"strings"
	"sync"
)

// Listener receives the complete current snapshot. The map is a private
// copy owned by the listener.
type Listener func(snapshot map[string]string)

// Store holds the namespaced flag-key to value mapping.
//
// Mutations and listener notifications are serialised by notifyMu, so two
// notifications never interleave and every listener observes snapshots in
// the order they were published. Reads take only mu and never wait on a
// listener.
type Store struct {
	notifyMu sync.Mutex

	mu        sync.RWMutex
	values    map[string]string
	index     map[string]string // lower-cased key -> stored key
	listeners []*registration
}

type registration struct {
	fn Listener
}

// New creates an empty store.
func New() *Store {
	return &Store{
		values: make(map[string]string),
		index:  make(map[string]string),
	}
}

// AddListener registers fn and invokes it once with the current snapshot
// before returning. The returned func removes the registration.
func (s *Store) AddListener(fn Listener) (unsubscribe func()) {
	reg := &registration{fn: fn}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.listeners = append(s.listeners, reg)
	current := copyMap(s.values)
	s.mu.Unlock()

	fn(current)

	return func() { s.removeListener(reg) }
}

func (s *Store) removeListener(reg *registration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.listeners {
		if r == reg {
			s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
			return
		}
	}
}

// Replace swaps the whole mapping for next, then notifies every listener
// in registration order.
func (s *Store) Replace(next map[string]string) {
	values := make(map[string]string, len(next))
	index := make(map[string]string, len(next))
	for k, v := range next {
		lower := strings.ToLower(k)
		if prev, ok := index[lower]; ok {
			// keys differing only in case collapse to one entry
			delete(values, prev)
		}
		values[k] = v
		index[lower] = k
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.values = values
	s.index = index
	listeners := s.listenersLocked()
	s.mu.Unlock()

	s.notify(values, listeners)
}

// SetValue updates a single key and notifies listeners with the whole
// mapping. The key matches an existing entry case-insensitively.
func (s *Store) SetValue(key, value string) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	values := copyMap(s.values)
	index := copyMap(s.index)
	lower := strings.ToLower(key)
	if prev, ok := index[lower]; ok {
		key = prev
	}
	values[key] = value
	index[lower] = key
	s.values = values
	s.index = index
	listeners := s.listenersLocked()
	s.mu.Unlock()

	s.notify(values, listeners)
}

// Get returns the value for key, matched case-insensitively.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.index[strings.ToLower(key)]
	if !ok {
		return "", false
	}
	return s.values[stored], true
}

// Snapshot returns a copy of the current mapping.
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyMap(s.values)
}

// Len returns the number of keys in the current mapping.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

func (s *Store) listenersLocked() []*registration {
	listeners := make([]*registration, len(s.listeners))
	copy(listeners, s.listeners)
	return listeners
}

// notify must be called with notifyMu held. values is never mutated after
// publication, so each listener gets a copy taken from it.
func (s *Store) notify(values map[string]string, listeners []*registration) {
	for _, reg := range listeners {
		reg.fn(copyMap(values))
	}
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
