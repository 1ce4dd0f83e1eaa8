package store

import (
	"context"
	"sync"
	"time"
)

// MemoryKV is the in-process backend. TTL is enforced by the accessor, not
// a background sweep; the sweep is opportunistic, riding on writes.
type MemoryKV struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	writes  int
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// sweepEvery bounds how often writes trigger an opportunistic sweep.
const sweepEvery = 64

// NewMemoryKV creates an empty in-process backend.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{entries: make(map[string]memoryEntry)}
}

func (m *MemoryKV) expired(e memoryEntry, now time.Time) bool {
	return !e.expiresAt.IsZero() && !e.expiresAt.After(now)
}

// Set stores a value; ttl <= 0 means no expiry.
func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	m.entries[key] = e
	m.maybeSweepLocked()
	return nil
}

// Get reads a value; an expired entry reads as absent and is reaped.
func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if m.expired(e, time.Now()) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

// Delete removes a key, reporting whether it existed (and was live).
func (m *MemoryKV) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	delete(m.entries, key)
	return !m.expired(e, time.Now()), nil
}

// Update serializes mutations to a key under the store lock. Zero ttl
// preserves the entry's existing expiry.
func (m *MemoryKV) Update(_ context.Context, key string, ttl time.Duration, mutate func(current []byte, exists bool) ([]byte, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	e, ok := m.entries[key]
	if ok && m.expired(e, now) {
		delete(m.entries, key)
		ok = false
	}
	var current []byte
	if ok {
		current = e.value
	}
	next, err := mutate(current, ok)
	if err != nil {
		return err
	}
	updated := memoryEntry{value: append([]byte(nil), next...)}
	switch {
	case ttl > 0:
		updated.expiresAt = now.Add(ttl)
	case ok:
		updated.expiresAt = e.expiresAt
	}
	m.entries[key] = updated
	m.maybeSweepLocked()
	return nil
}

func (m *MemoryKV) maybeSweepLocked() {
	m.writes++
	if m.writes%sweepEvery != 0 {
		return
	}
	now := time.Now()
	for k, e := range m.entries {
		if m.expired(e, now) {
			delete(m.entries, k)
		}
	}
}

// Len reports the number of live entries. Test helper.
func (m *MemoryKV) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	n := 0
	for _, e := range m.entries {
		if !m.expired(e, now) {
			n++
		}
	}
	return n
}
