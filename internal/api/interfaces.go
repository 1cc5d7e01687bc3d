// interfaces.go - Handler dependency interfaces for clean separation of concerns
package api

import (
	"context"
	"encoding/json"

	"github.com/tasklens/backend/internal/storage"
)

// OverlayStore is the durable slice store the handlers run against.
// This allows mocking in tests.
type OverlayStore interface {
	GetState(ctx context.Context, instanceKey string) (map[storage.Slice]json.RawMessage, error)
	PutSlice(ctx context.Context, instanceKey string, slice storage.Slice, value json.RawMessage) error
	DeleteInstance(ctx context.Context, instanceKey string) error
	ListInstances(ctx context.Context) ([]storage.InstanceInfo, error)
}

// Broadcaster pushes slice-change events to live subscribers (the
// websocket hub in production, a recorder in tests).
type Broadcaster interface {
	BroadcastSliceUpdate(instanceKey string, slice storage.Slice)
	BroadcastInstanceRemoved(instanceKey string)
}
