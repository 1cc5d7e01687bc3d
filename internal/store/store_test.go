package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tasklens/backend/internal/models"
	"github.com/tasklens/backend/internal/storage"
	"github.com/tasklens/backend/internal/testutil"
)

func waitForSaves(t *testing.T, adapter *testutil.MockAdapter, slice storage.Slice, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return adapter.SaveCount(slice) == want
	}, time.Second, 5*time.Millisecond, "expected %d saves of %s, have %d", want, slice, adapter.SaveCount(slice))
}

func floatPtr(v float64) *float64 { return &v }

func TestHydrationPrecedence(t *testing.T) {
	// defaults 0.6 < persisted 0.3 < overrides 0.9
	adapter := testutil.NewMockAdapter()
	adapter.LoadPartial = models.PartialState{LineOpacity: floatPtr(0.3)}

	withOverrides := New(context.Background(), "k", adapter, &models.PartialState{LineOpacity: floatPtr(0.9)})
	assert.Equal(t, 0.9, withOverrides.GetState().LineOpacity)

	persistedOnly := New(context.Background(), "k", adapter, nil)
	assert.Equal(t, 0.3, persistedOnly.GetState().LineOpacity)

	defaultsOnly := New(context.Background(), "k", testutil.NewMockAdapter(), nil)
	assert.Equal(t, 0.6, defaultsOnly.GetState().LineOpacity)
}

func TestHydrationStatusesNeverNil(t *testing.T) {
	s := New(context.Background(), "k", testutil.NewMockAdapter(), nil)
	assert.NotNil(t, s.GetState().Statuses)
	assert.Empty(t, s.GetState().Statuses)
}

func TestSetConnectionsIdempotent(t *testing.T) {
	adapter := testutil.NewMockAdapter()
	s := New(context.Background(), "k", adapter, nil)

	conns := []models.Connection{
		{TodoIndex: 0, TargetSelector: "#a"},
		{TodoIndex: 2, TargetSelector: "#b"},
	}
	s.SetConnections(conns)
	once := s.GetState()
	s.SetConnections(conns)
	twice := s.GetState()

	assert.Equal(t, once.Connections, twice.Connections)
	waitForSaves(t, adapter, storage.SliceConnections, 2)
}

func TestSetConnectionsOnePerIndex(t *testing.T) {
	s := New(context.Background(), "k", testutil.NewMockAdapter(), nil)

	s.SetConnections([]models.Connection{
		{TodoIndex: 1, TargetSelector: "#old"},
		{TodoIndex: 3, TargetSelector: "#keep"},
		{TodoIndex: 1, TargetSelector: "#new"},
	})

	conns := s.GetState().Connections
	require.Len(t, conns, 2)
	assert.Equal(t, "#new", conns[0].TargetSelector)
	assert.Equal(t, 1, conns[0].TodoIndex)
	assert.Equal(t, "#keep", conns[1].TargetSelector)

	seen := map[int]bool{}
	for _, c := range conns {
		assert.False(t, seen[c.TodoIndex], "duplicate index %d", c.TodoIndex)
		seen[c.TodoIndex] = true
	}
}

func TestSetConnectionsFreePositionDropsSelector(t *testing.T) {
	s := New(context.Background(), "k", testutil.NewMockAdapter(), nil)

	// Editing an anchored connection into a free position silently sheds
	// the selector.
	s.SetConnections([]models.Connection{
		{TodoIndex: 0, TargetSelector: "#stale", TargetPosition: &models.Position{X: 5, Y: 6}},
	})

	conns := s.GetState().Connections
	require.Len(t, conns, 1)
	assert.Empty(t, conns[0].TargetSelector)
	require.NotNil(t, conns[0].TargetPosition)
	assert.Equal(t, models.Position{X: 5, Y: 6}, *conns[0].TargetPosition)
}

func TestStatusMutators(t *testing.T) {
	adapter := testutil.NewMockAdapter()
	s := New(context.Background(), "k", adapter, nil)

	s.SetStatus(2, models.StatusWorking)
	s.SetStatus(5, models.StatusDone)
	assert.Equal(t, map[int]models.TaskStatus{
		2: models.StatusWorking,
		5: models.StatusDone,
	}, s.GetState().Statuses)

	s.SetStatus(2, models.StatusDone)
	assert.Equal(t, models.StatusDone, s.GetState().Statuses[2])

	s.ResetStatuses()
	statuses := s.GetState().Statuses
	assert.NotNil(t, statuses)
	assert.Empty(t, statuses)

	waitForSaves(t, adapter, storage.SliceStatuses, 4)
	last, ok := adapter.LastSave(storage.SliceStatuses).(map[int]models.TaskStatus)
	require.True(t, ok)
	assert.Empty(t, last)
}

func TestSubscribeNotifySynchronous(t *testing.T) {
	s := New(context.Background(), "k", testutil.NewMockAdapter(), nil)

	var got []models.DisplayMode
	unsubscribe := s.Subscribe(func(state models.OverlayState) {
		got = append(got, state.DisplayMode)
	})

	s.SetDisplayMode(models.DisplayModeCompact)
	// The listener has already run by the time the mutator returned.
	require.Len(t, got, 1)
	assert.Equal(t, models.DisplayModeCompact, got[0])

	s.SetDisplayMode(models.DisplayModeMinimal)
	require.Len(t, got, 2)

	unsubscribe()
	s.SetDisplayMode(models.DisplayModeFull)
	assert.Len(t, got, 2)

	// Unsubscribe is idempotent.
	unsubscribe()
	s.SetDisplayMode(models.DisplayModeCompact)
	assert.Len(t, got, 2)
}

func TestPersistFailureDoesNotAffectState(t *testing.T) {
	adapter := testutil.NewMockAdapter()
	adapter.FailWith(errors.New("backend down"))
	s := New(context.Background(), "k", adapter, nil)

	s.SetLineColor("#ff0000")
	s.SetHidden(true)

	state := s.GetState()
	assert.Equal(t, "#ff0000", state.LineColor)
	assert.True(t, state.IsHidden)
}

func TestGetStateIsACopy(t *testing.T) {
	s := New(context.Background(), "k", testutil.NewMockAdapter(), nil)
	s.SetStatus(0, models.StatusWorking)

	state := s.GetState()
	state.Statuses[0] = models.StatusDone
	state.Position.X = 999

	assert.Equal(t, models.StatusWorking, s.GetState().Statuses[0])
	assert.NotEqual(t, 999.0, s.GetState().Position.X)
}

func TestDragThrottling(t *testing.T) {
	adapter := testutil.NewMockAdapter()
	s := New(context.Background(), "k", adapter, nil)

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }
	// Pretend a write just happened so the throttle window is closed.
	s.lastPositionWrite = clock

	// 50 drag frames inside 90ms: all inside the window, no durable writes.
	for i := 0; i < 50; i++ {
		clock = clock.Add(1800 * time.Microsecond)
		s.DragPosition(models.Position{X: float64(i), Y: 0})
	}
	assert.Equal(t, 0, adapter.SaveCount(storage.SlicePosition))

	// Memory and subscribers saw every frame regardless.
	assert.Equal(t, 49.0, s.GetState().Position.X)

	// Drag release persists the final position exactly once.
	s.SetPosition(models.Position{X: 320, Y: 64})
	waitForSaves(t, adapter, storage.SlicePosition, 1)
	assert.Equal(t, models.Position{X: 320, Y: 64}, adapter.LastSave(storage.SlicePosition))
}

func TestDragThrottleWindowReopens(t *testing.T) {
	adapter := testutil.NewMockAdapter()
	s := New(context.Background(), "k", adapter, nil)

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }
	s.lastPositionWrite = clock

	clock = clock.Add(40 * time.Millisecond)
	s.DragPosition(models.Position{X: 1, Y: 0})
	assert.Equal(t, 0, adapter.SaveCount(storage.SlicePosition))

	// Past the 100ms window the next frame writes through.
	clock = clock.Add(70 * time.Millisecond)
	s.DragPosition(models.Position{X: 2, Y: 0})
	waitForSaves(t, adapter, storage.SlicePosition, 1)
	assert.Equal(t, models.Position{X: 2, Y: 0}, adapter.LastSave(storage.SlicePosition))

	// Window closed again right after the write.
	clock = clock.Add(10 * time.Millisecond)
	s.DragPosition(models.Position{X: 3, Y: 0})
	assert.Equal(t, 1, adapter.SaveCount(storage.SlicePosition))
}

func TestReleaseWriteLandsAfterSlowDragWrite(t *testing.T) {
	adapter := testutil.NewMockAdapter()

	// Stall the first position save until the release write is enqueued,
	// simulating a slow backend holding the drag write in flight.
	dragSaveStarted := make(chan struct{})
	releaseEnqueued := make(chan struct{})
	var stallOnce sync.Once
	adapter.BeforeSave = func(slice storage.Slice) {
		if slice != storage.SlicePosition {
			return
		}
		stallOnce.Do(func() {
			close(dragSaveStarted)
			<-releaseEnqueued
		})
	}

	s := New(context.Background(), "k", adapter, nil)

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	// A throttle-due drag frame writes through and stalls in flight.
	s.DragPosition(models.Position{X: 1, Y: 0})
	<-dragSaveStarted

	// Drag release while the drag write is still pending.
	s.SetPosition(models.Position{X: 320, Y: 64})
	close(releaseEnqueued)

	waitForSaves(t, adapter, storage.SlicePosition, 2)
	assert.Equal(t, models.Position{X: 320, Y: 64}, s.GetState().Position)
	assert.Equal(t, models.Position{X: 320, Y: 64}, adapter.LastSave(storage.SlicePosition))
	assert.Equal(t, []any{
		models.Position{X: 1, Y: 0},
		models.Position{X: 320, Y: 64},
	}, adapter.Saves(storage.SlicePosition))
}

func TestSameSliceWritesKeepMutationOrder(t *testing.T) {
	adapter := testutil.NewMockAdapter()

	firstSaveStarted := make(chan struct{})
	secondEnqueued := make(chan struct{})
	var stallOnce sync.Once
	adapter.BeforeSave = func(slice storage.Slice) {
		if slice != storage.SliceHidden {
			return
		}
		stallOnce.Do(func() {
			close(firstSaveStarted)
			<-secondEnqueued
		})
	}

	s := New(context.Background(), "k", adapter, nil)

	s.SetHidden(true)
	<-firstSaveStarted
	s.SetHidden(false)
	close(secondEnqueued)

	waitForSaves(t, adapter, storage.SliceHidden, 2)
	assert.Equal(t, []any{true, false}, adapter.Saves(storage.SliceHidden))
}

func TestMutatorsPersistTheirSlice(t *testing.T) {
	adapter := testutil.NewMockAdapter()
	s := New(context.Background(), "k", adapter, nil)

	s.SetShowLines(false)
	s.SetShowBadges(false)
	s.SetLineOpacity(0.25)
	s.SetComponentOpacity(0.5)

	waitForSaves(t, adapter, storage.SliceShowLines, 1)
	waitForSaves(t, adapter, storage.SliceShowBadges, 1)
	waitForSaves(t, adapter, storage.SliceLineOpacity, 1)
	waitForSaves(t, adapter, storage.SliceComponentOpacity, 1)

	assert.Equal(t, false, adapter.LastSave(storage.SliceShowLines))
	assert.Equal(t, 0.25, adapter.LastSave(storage.SliceLineOpacity))
}
