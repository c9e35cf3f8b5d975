package progress

import (
	"sort"
	"sync"
)

// Memory is an in-process Backend. A positive Quota caps the number of keys;
// writes beyond it fail with ErrQuotaExceeded.
type Memory struct {
	Quota int

	mu   sync.Mutex
	data map[string]string
}

// NewMemory creates an empty, unbounded backend.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string]string)
	}
	if _, exists := m.data[key]; !exists && m.Quota > 0 && len(m.data) >= m.Quota {
		return ErrQuotaExceeded
	}
	m.data[key] = value
	return nil
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *Memory) Keys() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
