// mock_adapter.go - In-memory storage adapter for testing
package testutil

import (
	"context"
	"sync"

	"github.com/tasklens/backend/internal/models"
	"github.com/tasklens/backend/internal/storage"
)

// MockAdapter implements storage.Adapter, recording every save so tests can
// assert on write counts and payloads. LoadPartial seeds what LoadState
// returns; FailSaves forces every save to report an error.
type MockAdapter struct {
	mu sync.Mutex

	LoadPartial models.PartialState
	FailSaves   bool
	failErr     error

	// BeforeSave, when set before the adapter is used, runs at the start
	// of every save outside the adapter lock. Tests use it to stall or
	// sequence in-flight writes.
	BeforeSave func(slice storage.Slice)

	saves map[storage.Slice][]any
}

// NewMockAdapter returns an empty mock adapter.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{saves: make(map[storage.Slice][]any)}
}

// FailWith makes every subsequent save return err.
func (m *MockAdapter) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailSaves = true
	m.failErr = err
}

// SaveCount returns how many saves were recorded for a slice.
func (m *MockAdapter) SaveCount(slice storage.Slice) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saves[slice])
}

// LastSave returns the most recent value saved for a slice, or nil.
func (m *MockAdapter) LastSave(slice storage.Slice) any {
	m.mu.Lock()
	defer m.mu.Unlock()
	vals := m.saves[slice]
	if len(vals) == 0 {
		return nil
	}
	return vals[len(vals)-1]
}

// Saves returns a copy of every value saved for a slice, in order.
func (m *MockAdapter) Saves(slice storage.Slice) []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]any, len(m.saves[slice]))
	copy(out, m.saves[slice])
	return out
}

// TotalSaves returns the number of saves recorded across all slices.
func (m *MockAdapter) TotalSaves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, vals := range m.saves {
		total += len(vals)
	}
	return total
}

func (m *MockAdapter) record(slice storage.Slice, v any) error {
	if m.BeforeSave != nil {
		m.BeforeSave(slice)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSaves {
		return m.failErr
	}
	m.saves[slice] = append(m.saves[slice], v)
	return nil
}

func (m *MockAdapter) LoadState(context.Context) models.PartialState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LoadPartial
}

func (m *MockAdapter) SavePosition(_ context.Context, pos models.Position) error {
	return m.record(storage.SlicePosition, pos)
}

func (m *MockAdapter) SaveConnections(_ context.Context, conns []models.Connection) error {
	copied := make([]models.Connection, len(conns))
	copy(copied, conns)
	return m.record(storage.SliceConnections, copied)
}

func (m *MockAdapter) SaveDisplayMode(_ context.Context, mode models.DisplayMode) error {
	return m.record(storage.SliceDisplayMode, mode)
}

func (m *MockAdapter) SaveHidden(_ context.Context, hidden bool) error {
	return m.record(storage.SliceHidden, hidden)
}

func (m *MockAdapter) SaveShowLines(_ context.Context, show bool) error {
	return m.record(storage.SliceShowLines, show)
}

func (m *MockAdapter) SaveShowBadges(_ context.Context, show bool) error {
	return m.record(storage.SliceShowBadges, show)
}

func (m *MockAdapter) SaveLineColor(_ context.Context, color string) error {
	return m.record(storage.SliceLineColor, color)
}

func (m *MockAdapter) SaveLineOpacity(_ context.Context, opacity float64) error {
	return m.record(storage.SliceLineOpacity, opacity)
}

func (m *MockAdapter) SaveComponentOpacity(_ context.Context, opacity float64) error {
	return m.record(storage.SliceComponentOpacity, opacity)
}

func (m *MockAdapter) SaveStatuses(_ context.Context, statuses map[int]models.TaskStatus) error {
	copied := make(map[int]models.TaskStatus, len(statuses))
	for k, v := range statuses {
		copied[k] = v
	}
	return m.record(storage.SliceStatuses, copied)
}
