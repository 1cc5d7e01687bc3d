package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tasklens/backend/internal/models"
)

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	fs, err := NewFileStore(dir, "sidebar")
	require.NoError(t, err)

	require.NoError(t, fs.SavePosition(ctx, models.Position{X: 15, Y: 30}))
	require.NoError(t, fs.SaveDisplayMode(ctx, models.DisplayModeMinimal))
	require.NoError(t, fs.SaveLineOpacity(ctx, 0.7))
	require.NoError(t, fs.SaveStatuses(ctx, map[int]models.TaskStatus{1: models.StatusDone}))
	require.NoError(t, fs.SaveConnections(ctx, []models.Connection{
		{TodoIndex: 0, TargetSelector: "#hero"},
	}))

	// A fresh adapter over the same directory sees everything.
	reread, err := NewFileStore(dir, "sidebar")
	require.NoError(t, err)

	p := reread.LoadState(ctx)
	require.NotNil(t, p.Position)
	assert.Equal(t, models.Position{X: 15, Y: 30}, *p.Position)
	require.NotNil(t, p.DisplayMode)
	assert.Equal(t, models.DisplayModeMinimal, *p.DisplayMode)
	require.NotNil(t, p.LineOpacity)
	assert.Equal(t, 0.7, *p.LineOpacity)
	assert.Equal(t, map[int]models.TaskStatus{1: models.StatusDone}, p.Statuses)
	require.Len(t, p.Connections, 1)
	assert.Equal(t, "#hero", p.Connections[0].TargetSelector)

	// Slices never written stay absent.
	assert.Nil(t, p.IsHidden)
	assert.Nil(t, p.LineColor)
}

func TestFileStoreFreshInstanceLoadsEmpty(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), "brand-new")
	require.NoError(t, err)
	assert.True(t, fs.LoadState(context.Background()).IsEmpty())
}

func TestFileStoreCorruptSliceOmitted(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir, "panel")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, fs.SaveLineColor(ctx, "#123456"))

	// Corrupt one record; the rest must still load.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "panel", "position.json"), []byte("{not json"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "panel", "lineOpacity.json"), []byte("1.5"), 0644))

	p := fs.LoadState(ctx)
	assert.Nil(t, p.Position)
	assert.Nil(t, p.LineOpacity)
	require.NotNil(t, p.LineColor)
	assert.Equal(t, "#123456", *p.LineColor)
}

func TestFileStoreLegacyCollapsed(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir, "legacy")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "legacy", "collapsed.json"), []byte("true"), 0644))

	p := fs.LoadState(context.Background())
	require.NotNil(t, p.DisplayMode)
	assert.Equal(t, models.DisplayModeCompact, *p.DisplayMode)
}

func TestFileStoreSaveIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir, "panel")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, fs.SaveHidden(ctx, true))
	require.NoError(t, fs.SaveHidden(ctx, true))

	p := fs.LoadState(ctx)
	require.NotNil(t, p.IsHidden)
	assert.True(t, *p.IsHidden)
}

func TestFileStoreIsolatesInstances(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	a, err := NewFileStore(dir, "a")
	require.NoError(t, err)
	b, err := NewFileStore(dir, "b")
	require.NoError(t, err)

	require.NoError(t, a.SaveHidden(ctx, true))

	assert.True(t, b.LoadState(ctx).IsEmpty())
	require.NotNil(t, a.LoadState(ctx).IsHidden)
}

func TestFileStoreSanitizesKeys(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir, "tab/../../etc")
	require.NoError(t, err)

	require.NoError(t, fs.SaveHidden(context.Background(), true))

	// The instance directory stays inside the base directory.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "tab_.._.._etc", entries[0].Name())
}

func TestFileStoreRequiresKey(t *testing.T) {
	_, err := NewFileStore(t.TempDir(), "")
	assert.Error(t, err)
}
