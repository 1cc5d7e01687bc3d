// mock_overlay_store.go - In-memory server-side slice store for testing
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/tasklens/backend/internal/storage"
)

// MockOverlayStore implements the api.OverlayStore interface in memory.
type MockOverlayStore struct {
	mu     sync.Mutex
	slices map[string]map[storage.Slice]json.RawMessage
	stamps map[string]time.Time

	FailWith error
}

// NewMockOverlayStore returns an empty mock store.
func NewMockOverlayStore() *MockOverlayStore {
	return &MockOverlayStore{
		slices: make(map[string]map[storage.Slice]json.RawMessage),
		stamps: make(map[string]time.Time),
	}
}

func (m *MockOverlayStore) GetState(_ context.Context, instanceKey string) (map[storage.Slice]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	out := make(map[storage.Slice]json.RawMessage, len(m.slices[instanceKey]))
	for slice, value := range m.slices[instanceKey] {
		out[slice] = value
	}
	return out, nil
}

func (m *MockOverlayStore) PutSlice(_ context.Context, instanceKey string, slice storage.Slice, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	if !json.Valid(value) {
		return fmt.Errorf("invalid JSON for %s", slice)
	}
	if m.slices[instanceKey] == nil {
		m.slices[instanceKey] = make(map[storage.Slice]json.RawMessage)
	}
	m.slices[instanceKey][slice] = append(json.RawMessage(nil), value...)
	m.stamps[instanceKey] = time.Now()
	return nil
}

func (m *MockOverlayStore) DeleteInstance(_ context.Context, instanceKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	delete(m.slices, instanceKey)
	delete(m.stamps, instanceKey)
	return nil
}

func (m *MockOverlayStore) ListInstances(context.Context) ([]storage.InstanceInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	var out []storage.InstanceInfo
	for key, slices := range m.slices {
		out = append(out, storage.InstanceInfo{
			InstanceKey: key,
			SliceCount:  len(slices),
			UpdatedAt:   m.stamps[key],
		})
	}
	return out, nil
}
