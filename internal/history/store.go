// Package history records applied volume switches.
package history

import (
	"sync"
	"time"

	"github.com/GriffinCanCode/soundswitch/internal/gamestate"
	"github.com/GriffinCanCode/soundswitch/internal/mixer"
)

// Entry is one applied state transition.
type Entry struct {
	Timestamp time.Time       `json:"timestamp"`
	From      gamestate.State `json:"from"`
	To        gamestate.State `json:"to"`
	Text      string          `json:"text"`
	Result    mixer.Result    `json:"result"`
}

// Store keeps the most recent transitions in memory.
type Store struct {
	mu       sync.RWMutex
	entries  []Entry
	maxSize  int
	eventsCh chan Entry
}

// NewStore creates a store holding at most maxEntries transitions.
func NewStore(maxEntries, eventBuffer int) *Store {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &Store{
		entries:  make([]Entry, 0, maxEntries),
		maxSize:  maxEntries,
		eventsCh: make(chan Entry, eventBuffer),
	}
}

// Add records a transition and publishes it on the events channel.
func (s *Store) Add(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	s.mu.Lock()
	s.entries = append(s.entries, e)
	if len(s.entries) > s.maxSize {
		s.entries = s.entries[len(s.entries)-s.maxSize:]
	}
	s.mu.Unlock()

	s.emit(e)
}

// Recent returns up to n entries, newest first. n <= 0 returns all.
func (s *Store) Recent(n int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || n > len(s.entries) {
		n = len(s.entries)
	}
	out := make([]Entry, 0, n)
	for i := len(s.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.entries[i])
	}
	return out
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Events returns the channel of newly added entries.
func (s *Store) Events() <-chan Entry {
	return s.eventsCh
}

// emit drops the event when no one is keeping up.
func (s *Store) emit(e Entry) {
	select {
	case s.eventsCh <- e:
	default:
	}
}
