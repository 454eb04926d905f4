package replay

import (
	"context"
	"sync"
	"time"

	"github.com/shandysiswandi/idgate/internal/pkg/clock"
)

// Memory is a process-local Guard.
type Memory struct {
	clock clock.Clocker

	mu      sync.Mutex
	entries map[string]time.Time
	claims  int
}

// NewMemory returns an empty in-memory guard.
func NewMemory(clk clock.Clocker) *Memory {
	return &Memory{clock: clk, entries: make(map[string]time.Time)}
}

// Claim implements Guard.
func (m *Memory) Claim(_ context.Context, key string, step uint64, ttl time.Duration) (bool, error) {
	now := m.clock.Now()
	k := entryKey(key, step)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.claims++
	if m.claims%256 == 0 {
		m.sweep(now)
	}

	if exp, ok := m.entries[k]; ok && now.Before(exp) {
		return false, nil
	}

	m.entries[k] = now.Add(ttl)
	return true, nil
}

// Len reports the number of tracked entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) sweep(now time.Time) {
	for k, exp := range m.entries {
		if !now.Before(exp) {
			delete(m.entries, k)
		}
	}
}
