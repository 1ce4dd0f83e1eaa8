package orchestrator

import (
	"sync"
)

// lockTable hands out per-debate advisory locks. Entries are refcounted so
// the table does not grow with every debate ever seen.
type lockTable struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu      sync.Mutex
	refs    int
	running bool
}

func newLockTable() *lockTable {
	return &lockTable{entries: make(map[string]*lockEntry)}
}

// acquire returns the entry for a debate with its refcount bumped. Pair
// with release.
func (t *lockTable) acquire(debateID string) *lockEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[debateID]
	if !ok {
		e = &lockEntry{}
		t.entries[debateID] = e
	}
	e.refs++
	return e
}

func (t *lockTable) release(debateID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[debateID]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(t.entries, debateID)
	}
}

// tryStartRun flips the running flag for a debate. Returns false when a run
// loop already owns it.
func (t *lockTable) tryStartRun(debateID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[debateID]
	if !ok {
		e = &lockEntry{}
		t.entries[debateID] = e
	}
	if e.running {
		return false
	}
	e.running = true
	e.refs++
	return true
}

func (t *lockTable) endRun(debateID string) {
	t.mu.Lock()
	e, ok := t.entries[debateID]
	if ok {
		e.running = false
		e.refs--
		if e.refs <= 0 {
			delete(t.entries, debateID)
		}
	}
	t.mu.Unlock()
}

// isRunning reports whether a run loop currently owns the debate.
func (t *lockTable) isRunning(debateID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[debateID]
	return ok && e.running
}
