// SPDX-License-Identifier: MIT
package timing

import "sync"

// Set tracks outstanding timeouts so an owner can cancel all of them at once.
type Set struct {
	mu    sync.Mutex
	items map[*Timeout]struct{}
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{items: make(map[*Timeout]struct{})}
}

// Add registers t.
func (s *Set) Add(t *Timeout) {
	s.mu.Lock()
	s.items[t] = struct{}{}
	s.mu.Unlock()
}

// Remove unregisters t without cancelling it.
func (s *Set) Remove(t *Timeout) {
	s.mu.Lock()
	delete(s.items, t)
	s.mu.Unlock()
}

// Len returns the number of registered timeouts.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// CancelAll cancels and removes every registered timeout and returns how
// many were still pending.
func (s *Set) CancelAll() int {
	s.mu.Lock()
	items := s.items
	s.items = make(map[*Timeout]struct{})
	s.mu.Unlock()

	n := 0
	for t := range items {
		if t.Cancel() {
			n++
		}
	}
	return n
}
