package objectstore

import (
	"context"
	"strings"
	"sync"

	"github.com/oslokommune/okdata-data-uploader/internal/model"
)

// MemStore is an in-process Store used in tests, mirroring the role the
// teacher's mock connectors play in connectors/sql tests: no network, same
// interface as the production S3Store.
type MemStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{objects: make(map[string][]byte)}
}

func (m *MemStore) ReadFrame(_ context.Context, path string) (*model.Frame, bool, error) {
	m.mu.Lock()
	data, ok := m.objects[path]
	m.mu.Unlock()
	if !ok {
		return nil, false, nil
	}
	frame, err := DecodeFrame(data)
	if err != nil {
		return nil, true, err
	}
	return frame, true, nil
}

func (m *MemStore) WriteFrame(_ context.Context, path string, frame *model.Frame) error {
	data, err := EncodeFrame(frame)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.objects[path] = data
	m.mu.Unlock()
	return nil
}

func (m *MemStore) PutObject(_ context.Context, key string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(body))
	copy(cp, body)
	m.objects[key] = cp
	return nil
}

func (m *MemStore) DeleteAll(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			delete(m.objects, k)
		}
	}
	return nil
}

func (m *MemStore) ListObjects(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			names = append(names, strings.TrimPrefix(strings.TrimPrefix(k, prefix), "/"))
		}
	}
	return names, nil
}

// Get exposes a raw object for assertions in tests.
func (m *MemStore) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.objects[key]
	return v, ok
}
