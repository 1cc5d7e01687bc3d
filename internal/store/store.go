// Package store holds the per-instance overlay state: hydrated once from a
// storage adapter, mutated synchronously in memory, persisted slice by
// slice in the background. The in-memory state is the source of truth; a
// mutator never waits on persistence.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tasklens/backend/internal/models"
	"github.com/tasklens/backend/internal/storage"
)

// positionWriteInterval rate-limits durable position writes during a drag.
// Every drag frame still updates memory and notifies subscribers; only the
// write is throttled. SetPosition (drag release, programmatic moves) always
// writes, so the final position is never lost.
const positionWriteInterval = 100 * time.Millisecond

// Listener receives the full state after every mutation.
type Listener func(models.OverlayState)

// Store is the reactive state container for one overlay instance.
type Store struct {
	instanceKey string
	adapter     storage.Adapter

	mu           sync.Mutex
	state        models.OverlayState
	listeners    map[int]Listener
	nextListener int

	now               func() time.Time
	lastPositionWrite time.Time

	// Durable writes for one slice run on a single worker in enqueue
	// order; saving marks slices with a live worker.
	saveMu    sync.Mutex
	saveQueue map[storage.Slice][]func(context.Context) error
	saving    map[storage.Slice]bool
}

// New constructs a store for instanceKey, hydrating state as
// defaults ⊕ adapter.LoadState ⊕ overrides (right-biased). A nil overrides
// means no construction-time overrides. Statuses always hydrate to a
// non-nil map.
func New(ctx context.Context, instanceKey string, adapter storage.Adapter, overrides *models.PartialState) *Store {
	state := adapter.LoadState(ctx).Apply(models.DefaultState())
	if overrides != nil {
		state = overrides.Apply(state)
	}
	if state.Statuses == nil {
		state.Statuses = map[int]models.TaskStatus{}
	}
	if state.Connections == nil {
		state.Connections = []models.Connection{}
	}

	return &Store{
		instanceKey: instanceKey,
		adapter:     adapter,
		state:       state,
		listeners:   make(map[int]Listener),
		now:         time.Now,
		saveQueue:   make(map[storage.Slice][]func(context.Context) error),
		saving:      make(map[storage.Slice]bool),
	}
}

// InstanceKey returns the key this store was mounted under.
func (s *Store) InstanceKey() string {
	return s.instanceKey
}

// GetState returns a copy of the current state.
func (s *Store) GetState() models.OverlayState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Subscribe registers a listener called synchronously after every mutation
// with the full new state. The returned function removes the listener and
// is safe to call more than once.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// SetPosition moves the panel and writes the position durably. Use
// DragPosition for high-frequency updates mid-gesture.
func (s *Store) SetPosition(pos models.Position) {
	s.commit(func(state *models.OverlayState) {
		state.Position = pos
	})
	s.mu.Lock()
	s.lastPositionWrite = s.now()
	s.mu.Unlock()
	s.persist(storage.SlicePosition, func(ctx context.Context) error {
		return s.adapter.SavePosition(ctx, pos)
	})
}

// DragPosition moves the panel with the durable write throttled to at most
// one per positionWriteInterval of real time. Subscribers are still
// notified on every call, so visual feedback stays per-frame while the
// backend sees a trickle.
func (s *Store) DragPosition(pos models.Position) {
	s.commit(func(state *models.OverlayState) {
		state.Position = pos
	})

	s.mu.Lock()
	due := s.now().Sub(s.lastPositionWrite) >= positionWriteInterval
	if due {
		s.lastPositionWrite = s.now()
	}
	s.mu.Unlock()
	if !due {
		return
	}
	s.persist(storage.SlicePosition, func(ctx context.Context) error {
		return s.adapter.SavePosition(ctx, pos)
	})
}

// SetConnections replaces the connections list. At most one connection
// survives per task index (last write wins), and a connection given a free
// position sheds any previous selector.
func (s *Store) SetConnections(conns []models.Connection) {
	normalized := models.NormalizeConnections(conns)
	s.commit(func(state *models.OverlayState) {
		state.Connections = normalized
	})
	s.persist(storage.SliceConnections, func(ctx context.Context) error {
		return s.adapter.SaveConnections(ctx, normalized)
	})
}

// ResetConnections clears every connection.
func (s *Store) ResetConnections() {
	s.SetConnections(nil)
}

// SetDisplayMode switches the panel rendering mode.
func (s *Store) SetDisplayMode(mode models.DisplayMode) {
	s.commit(func(state *models.OverlayState) {
		state.DisplayMode = mode
	})
	s.persist(storage.SliceDisplayMode, func(ctx context.Context) error {
		return s.adapter.SaveDisplayMode(ctx, mode)
	})
}

// SetHidden toggles overlay visibility.
func (s *Store) SetHidden(hidden bool) {
	s.commit(func(state *models.OverlayState) {
		state.IsHidden = hidden
	})
	s.persist(storage.SliceHidden, func(ctx context.Context) error {
		return s.adapter.SaveHidden(ctx, hidden)
	})
}

// SetShowLines toggles connector rendering.
func (s *Store) SetShowLines(show bool) {
	s.commit(func(state *models.OverlayState) {
		state.ShowLines = show
	})
	s.persist(storage.SliceShowLines, func(ctx context.Context) error {
		return s.adapter.SaveShowLines(ctx, show)
	})
}

// SetShowBadges toggles status badge rendering.
func (s *Store) SetShowBadges(show bool) {
	s.commit(func(state *models.OverlayState) {
		state.ShowBadges = show
	})
	s.persist(storage.SliceShowBadges, func(ctx context.Context) error {
		return s.adapter.SaveShowBadges(ctx, show)
	})
}

// SetLineColor sets the connector color.
func (s *Store) SetLineColor(color string) {
	s.commit(func(state *models.OverlayState) {
		state.LineColor = color
	})
	s.persist(storage.SliceLineColor, func(ctx context.Context) error {
		return s.adapter.SaveLineColor(ctx, color)
	})
}

// SetLineOpacity sets the connector opacity.
func (s *Store) SetLineOpacity(opacity float64) {
	s.commit(func(state *models.OverlayState) {
		state.LineOpacity = opacity
	})
	s.persist(storage.SliceLineOpacity, func(ctx context.Context) error {
		return s.adapter.SaveLineOpacity(ctx, opacity)
	})
}

// SetComponentOpacity sets the panel opacity.
func (s *Store) SetComponentOpacity(opacity float64) {
	s.commit(func(state *models.OverlayState) {
		state.ComponentOpacity = opacity
	})
	s.persist(storage.SliceComponentOpacity, func(ctx context.Context) error {
		return s.adapter.SaveComponentOpacity(ctx, opacity)
	})
}

// SetStatuses replaces the whole status map.
func (s *Store) SetStatuses(statuses map[int]models.TaskStatus) {
	copied := make(map[int]models.TaskStatus, len(statuses))
	for k, v := range statuses {
		copied[k] = v
	}
	s.commit(func(state *models.OverlayState) {
		state.Statuses = copied
	})
	s.persistStatuses(cloneStatuses(copied))
}

// SetStatus updates the status of one task.
func (s *Store) SetStatus(index int, status models.TaskStatus) {
	var snapshot map[int]models.TaskStatus
	s.commit(func(state *models.OverlayState) {
		state.Statuses[index] = status
		snapshot = cloneStatuses(state.Statuses)
	})
	s.persistStatuses(snapshot)
}

// ResetStatuses clears every task status.
func (s *Store) ResetStatuses() {
	s.SetStatuses(nil)
}

func (s *Store) persistStatuses(statuses map[int]models.TaskStatus) {
	s.persist(storage.SliceStatuses, func(ctx context.Context) error {
		return s.adapter.SaveStatuses(ctx, statuses)
	})
}

// commit applies the mutation and fans out to all current listeners before
// returning. Listeners run outside the lock, in subscription order, with
// their own copy of the state.
func (s *Store) commit(mutate func(*models.OverlayState)) {
	s.mu.Lock()
	mutate(&s.state)
	snapshot := s.state.Clone()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	listeners := make([]Listener, len(ids))
	for i, id := range ids {
		listeners[i] = s.listeners[id]
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}

// persist queues one best-effort durable write. Writes for the same slice
// are enqueued synchronously and drained by a single worker in enqueue
// order, so an older in-flight write can never land after a newer one. In
// particular the drag-release position write always lands after any
// throttled drag write still in flight. Failures are logged and never
// surface to the mutator's caller.
func (s *Store) persist(slice storage.Slice, save func(context.Context) error) {
	s.saveMu.Lock()
	s.saveQueue[slice] = append(s.saveQueue[slice], save)
	if s.saving[slice] {
		s.saveMu.Unlock()
		return
	}
	s.saving[slice] = true
	s.saveMu.Unlock()

	go func() {
		for {
			s.saveMu.Lock()
			queue := s.saveQueue[slice]
			if len(queue) == 0 {
				s.saving[slice] = false
				s.saveMu.Unlock()
				return
			}
			next := queue[0]
			s.saveQueue[slice] = queue[1:]
			s.saveMu.Unlock()

			if err := next(context.Background()); err != nil {
				fmt.Printf("[Store %s] persist %s: %v\n", s.instanceKey, slice, err)
			}
		}
	}()
}

func cloneStatuses(statuses map[int]models.TaskStatus) map[int]models.TaskStatus {
	out := make(map[int]models.TaskStatus, len(statuses))
	for k, v := range statuses {
		out[k] = v
	}
	return out
}
