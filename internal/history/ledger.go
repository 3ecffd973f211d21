// Package history keeps the in-memory record of past delegation runs.
package history

import (
	"sync"

	"github.com/hochfrequenz/inbox-orchestrator/internal/domain"
)

// Ledger is a prepend-only list of run history entries, newest first. It
// lives in memory only and is unbounded. Entries are deep-copied on the way
// in and out, so callers can never mutate a recorded run after the fact.
type Ledger struct {
	mu      sync.RWMutex
	entries []domain.HistoryEntry
}

// NewLedger creates an empty ledger
func NewLedger() *Ledger {
	return &Ledger{}
}

// Record prepends a snapshot of the entry
func (l *Ledger) Record(e domain.HistoryEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append([]domain.HistoryEntry{e.Clone()}, l.entries...)
}

// Entries returns a deep copy of all entries, newest first
func (l *Ledger) Entries() []domain.HistoryEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.HistoryEntry, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.Clone()
	}
	return out
}

// Len returns the number of recorded runs
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
