package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDuckStore(t *testing.T) *DuckStore {
	t.Helper()
	store, err := NewDuckStore(filepath.Join(t.TempDir(), "overlays.duckdb"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestDuckStorePutAndGet(t *testing.T) {
	store := newTestDuckStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutSlice(ctx, "sidebar", SlicePosition, json.RawMessage(`{"x":1,"y":2}`)))
	require.NoError(t, store.PutSlice(ctx, "sidebar", SliceLineColor, json.RawMessage(`"#abcdef"`)))

	state, err := store.GetState(ctx, "sidebar")
	require.NoError(t, err)
	require.Len(t, state, 2)
	assert.JSONEq(t, `{"x":1,"y":2}`, string(state[SlicePosition]))
	assert.JSONEq(t, `"#abcdef"`, string(state[SliceLineColor]))
}

func TestDuckStoreUpsertReplaces(t *testing.T) {
	store := newTestDuckStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutSlice(ctx, "sidebar", SliceHidden, json.RawMessage(`false`)))
	require.NoError(t, store.PutSlice(ctx, "sidebar", SliceHidden, json.RawMessage(`true`)))

	state, err := store.GetState(ctx, "sidebar")
	require.NoError(t, err)
	require.Len(t, state, 1)
	assert.JSONEq(t, `true`, string(state[SliceHidden]))
}

func TestDuckStoreRejectsInvalidJSON(t *testing.T) {
	store := newTestDuckStore(t)
	err := store.PutSlice(context.Background(), "sidebar", SlicePosition, json.RawMessage(`{broken`))
	assert.Error(t, err)
}

func TestDuckStoreUnknownInstanceIsEmpty(t *testing.T) {
	store := newTestDuckStore(t)
	state, err := store.GetState(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Empty(t, state)
}

func TestDuckStoreDeleteInstance(t *testing.T) {
	store := newTestDuckStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutSlice(ctx, "a", SliceHidden, json.RawMessage(`true`)))
	require.NoError(t, store.PutSlice(ctx, "b", SliceHidden, json.RawMessage(`true`)))

	require.NoError(t, store.DeleteInstance(ctx, "a"))
	// Deleting again is a no-op.
	require.NoError(t, store.DeleteInstance(ctx, "a"))

	state, err := store.GetState(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, state)

	state, err = store.GetState(ctx, "b")
	require.NoError(t, err)
	assert.Len(t, state, 1)
}

func TestDuckStoreListInstances(t *testing.T) {
	store := newTestDuckStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutSlice(ctx, "first", SliceHidden, json.RawMessage(`true`)))
	require.NoError(t, store.PutSlice(ctx, "first", SliceLineColor, json.RawMessage(`"#fff"`)))
	require.NoError(t, store.PutSlice(ctx, "second", SliceHidden, json.RawMessage(`false`)))

	infos, err := store.ListInstances(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)

	byKey := map[string]InstanceInfo{}
	for _, info := range infos {
		byKey[info.InstanceKey] = info
	}
	assert.Equal(t, 2, byKey["first"].SliceCount)
	assert.Equal(t, 1, byKey["second"].SliceCount)
}

func TestDuckStoreCleanupStale(t *testing.T) {
	store := newTestDuckStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutSlice(ctx, "live", SliceHidden, json.RawMessage(`true`)))

	// Nothing is older than an hour yet.
	removed, err := store.CleanupStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)

	// With a zero max age everything written before now is stale.
	time.Sleep(10 * time.Millisecond)
	removed, err = store.CleanupStale(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	infos, err := store.ListInstances(ctx)
	require.NoError(t, err)
	assert.Empty(t, infos)
}
