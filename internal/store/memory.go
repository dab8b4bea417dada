package store

import (
	"context"
	"sync"
)

// Memory is an in-process Store used in tests and local runs.
type Memory struct {
	mu      sync.Mutex
	records map[Kind]map[string][]byte
	order   map[Kind][]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	m := &Memory{
		records: make(map[Kind]map[string][]byte),
		order:   make(map[Kind][]string),
	}
	for _, k := range Kinds {
		m.records[k] = make(map[string][]byte)
	}
	return m
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (m *Memory) bucket(kind Kind) map[string][]byte {
	b, ok := m.records[kind]
	if !ok {
		b = make(map[string][]byte)
		m.records[kind] = b
	}
	return b
}

// Get returns a copy of the record.
func (m *Memory) Get(_ context.Context, kind Kind, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.bucket(kind)[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(data), nil
}

// GetMany returns records in ids order.
func (m *Memory) GetMany(_ context.Context, kind Kind, ids []string) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(ids))
	b := m.bucket(kind)
	for i, id := range ids {
		out[i] = clone(b[id])
	}
	return out, nil
}

// Put overwrites the record.
func (m *Memory) Put(_ context.Context, kind Kind, id string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bucket(kind)[id] = clone(data)
	return nil
}

// Insert writes the record if id is unused.
func (m *Memory) Insert(_ context.Context, kind Kind, id string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bucket(kind)
	if _, ok := b[id]; ok {
		return ErrExists
	}
	b[id] = clone(data)
	return nil
}

// Update runs fn while holding the store lock.
func (m *Memory) Update(_ context.Context, kind Kind, id string, fn UpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bucket(kind)
	cur, ok := b[id]
	if !ok {
		return ErrNotFound
	}
	next, err := fn(clone(cur))
	if err != nil {
		return err
	}
	if next != nil {
		b[id] = clone(next)
	}
	return nil
}

// Delete removes the record.
func (m *Memory) Delete(_ context.Context, kind Kind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bucket(kind)
	if _, ok := b[id]; !ok {
		return ErrNotFound
	}
	delete(b, id)
	return nil
}

// ListIDs returns a copy of the ordering index.
func (m *Memory) ListIDs(_ context.Context, kind Kind) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.order[kind]))
	copy(out, m.order[kind])
	return out, nil
}

// AppendID appends id unless already indexed.
func (m *Memory) AppendID(_ context.Context, kind Kind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.order[kind] {
		if existing == id {
			return nil
		}
	}
	m.order[kind] = append(m.order[kind], id)
	return nil
}

// RemoveID drops id from the ordering index.
func (m *Memory) RemoveID(_ context.Context, kind Kind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.order[kind][:0]
	for _, existing := range m.order[kind] {
		if existing != id {
			ids = append(ids, existing)
		}
	}
	m.order[kind] = ids
	return nil
}
