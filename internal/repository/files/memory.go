package files

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"
	"sync"
)

// Memory is an in-memory Store. The zero value is ready to use.
type Memory struct {
	mu     sync.Mutex
	files  map[string][]byte
	writes int
}

// NewMemory returns a store preloaded with the given files.
func NewMemory(seed map[string][]byte) *Memory {
	m := new(Memory)
	for name, data := range seed {
		m.set(name, data)
	}

	return m
}

// ReadFile returns a copy of the stored content.
func (m *Memory) ReadFile(_ context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.files[filepath.Clean(path)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrNotExist)
	}

	return append([]byte(nil), data...), nil
}

// Replace stores a copy of data under path.
func (m *Memory) Replace(_ context.Context, path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.set(path, data)
	m.writes++

	return nil
}

// Append adds data to whatever is stored under path.
func (m *Memory) Append(_ context.Context, path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = filepath.Clean(path)
	m.set(path, append(append([]byte(nil), m.files[path]...), data...))
	m.writes++

	return nil
}

// Snapshot returns a copy of every stored file.
func (m *Memory) Snapshot() map[string][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string][]byte, len(m.files))
	for name, data := range maps.All(m.files) {
		out[name] = append([]byte(nil), data...)
	}

	return out
}

// Writes counts Replace and Append calls.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.writes
}

func (m *Memory) set(path string, data []byte) {
	if m.files == nil {
		m.files = make(map[string][]byte)
	}

	m.files[filepath.Clean(path)] = append([]byte(nil), data...)
}
