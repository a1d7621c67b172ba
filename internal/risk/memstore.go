package risk

import (
	"context"
	"io"
	"strconv"
	"sync"
)

// MemStore is an in-process FileStore and ModelStore.
type MemStore struct {
	mu     sync.Mutex
	names  []string
	files  [][]byte
	models []Snapshot
}

func (m *MemStore) Put(_ context.Context, name string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names = append(m.names, name)
	m.files = append(m.files, b)
	return strconv.Itoa(len(m.files)), nil
}

func (m *MemStore) Latest(context.Context) (string, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.files) == 0 {
		return "", nil, ErrNoFiles
	}
	n := len(m.files) - 1
	return m.names[n], m.files[n], nil
}

func (m *MemStore) SaveModel(_ context.Context, s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.models = append(m.models, s)
	return nil
}

func (m *MemStore) LatestModel(context.Context) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.models) == 0 {
		return nil, ErrNoModel
	}
	s := m.models[len(m.models)-1]
	return &s, nil
}
