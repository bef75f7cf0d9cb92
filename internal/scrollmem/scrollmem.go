// Package scrollmem remembers scroll offsets per key for the lifetime of the process.
package scrollmem

import "sync"

// Memory maps a key (the browsed result type) to the last captured offset.
type Memory struct {
	mu      sync.Mutex
	offsets map[string]int
}

func New() *Memory {
	return &Memory{offsets: make(map[string]int)}
}

// Capture stores offset under key, replacing any earlier value.
func (m *Memory) Capture(key string, offset int) {
	if offset < 0 {
		offset = 0
	}
	m.mu.Lock()
	m.offsets[key] = offset
	m.mu.Unlock()
}

// Restore returns the offset captured under key.
func (m *Memory) Restore(key string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	off, ok := m.offsets[key]
	return off, ok
}

// Offset is Restore with a default of 0.
func (m *Memory) Offset(key string) int {
	off, _ := m.Restore(key)
	return off
}

func (m *Memory) Forget(key string) {
	m.mu.Lock()
	delete(m.offsets, key)
	m.mu.Unlock()
}

func (m *Memory) Clear() {
	m.mu.Lock()
	m.offsets = make(map[string]int)
	m.mu.Unlock()
}
