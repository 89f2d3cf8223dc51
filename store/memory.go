package store

import (
	"context"
	"sync"
)

// Memory is a Store held in process memory. The zero value is ready to use.
type Memory struct {
	mu      sync.RWMutex
	records []Record
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty memory store.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Append(_ context.Context, r Record) (Record, error) {
	r = prepare(r).clone()
	m.mu.Lock()
	m.records = append(m.records, r)
	m.mu.Unlock()
	return r.clone(), nil
}

func (m *Memory) All(_ context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, len(m.records))
	for i, r := range m.records {
		out[i] = r.clone()
	}
	sortRecords(out)
	return out, nil
}

func (m *Memory) Get(_ context.Context, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.records {
		if r.ID == id {
			return r.clone(), nil
		}
	}
	return Record{}, notFound(id)
}

func (m *Memory) ByEmail(_ context.Context, email string) ([]Record, error) {
	key := EmailKey(email)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, r := range m.records {
		if EmailKey(r.Email) == key {
			out = append(out, r.clone())
		}
	}
	sortRecords(out)
	return out, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.records {
		if r.ID == id {
			m.records = append(m.records[:i:i], m.records[i+1:]...)
			return nil
		}
	}
	return notFound(id)
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	m.records = nil
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }
