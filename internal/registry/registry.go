// Package registry is the process-wide directory of mounted overlay
// instances. Each overlay publishes a snapshot of itself on every state
// change; the global command palette subscribes and acts on whichever
// instance the user picks. The registry only indexes records, it never
// mutates them; an instance exclusively owns its own key.
package registry

import (
	"sort"
	"sync"

	"github.com/tasklens/backend/internal/models"
)

// Listener receives the full instance list after every registry change.
type Listener func([]models.InstanceSnapshot)

// Registry maps instance keys to their latest published snapshots.
// Construct a fresh one in tests; production code shares Default.
type Registry struct {
	mu           sync.Mutex
	instances    map[string]models.InstanceSnapshot
	order        []string
	listeners    map[int]Listener
	nextListener int
}

// Default is the process-wide registry instance.
var Default = New()

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		instances: make(map[string]models.InstanceSnapshot),
		listeners: make(map[int]Listener),
	}
}

// UpdateInstance upserts the snapshot published under key and notifies
// subscribers. A nil snapshot is equivalent to RemoveInstance; publishing
// nil for a never-seen key is a no-op.
func (r *Registry) UpdateInstance(key string, snapshot *models.InstanceSnapshot) {
	if snapshot == nil {
		r.RemoveInstance(key)
		return
	}

	r.mu.Lock()
	record := *snapshot
	record.InstanceKey = key
	if _, exists := r.instances[key]; !exists {
		r.order = append(r.order, key)
	}
	r.instances[key] = record
	listeners, list := r.snapshotLocked()
	r.mu.Unlock()

	notify(listeners, list)
}

// RemoveInstance deletes the record under key. Removing an unknown key is
// a no-op and notifies nobody.
func (r *Registry) RemoveInstance(key string) {
	r.mu.Lock()
	if _, exists := r.instances[key]; !exists {
		r.mu.Unlock()
		return
	}
	delete(r.instances, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	listeners, list := r.snapshotLocked()
	r.mu.Unlock()

	notify(listeners, list)
}

// Instances returns the current snapshots in registration order.
func (r *Registry) Instances() []models.InstanceSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, list := r.snapshotLocked()
	return list
}

// Subscribe registers a listener called synchronously with the full current
// list on every change. The returned function removes the listener and is
// safe to call more than once.
func (r *Registry) Subscribe(fn Listener) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextListener
	r.nextListener++
	r.listeners[id] = fn

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.listeners, id)
	}
}

// snapshotLocked builds the listener fan-out and the full instance list.
// Callers hold r.mu.
func (r *Registry) snapshotLocked() ([]Listener, []models.InstanceSnapshot) {
	list := make([]models.InstanceSnapshot, 0, len(r.instances))
	for _, key := range r.order {
		list = append(list, r.instances[key])
	}

	ids := make([]int, 0, len(r.listeners))
	for id := range r.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	listeners := make([]Listener, len(ids))
	for i, id := range ids {
		listeners[i] = r.listeners[id]
	}
	return listeners, list
}

func notify(listeners []Listener, list []models.InstanceSnapshot) {
	for _, fn := range listeners {
		fn(list)
	}
}
