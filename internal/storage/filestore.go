package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tasklens/backend/internal/models"
)

// FileStore persists one JSON file per (instanceKey, slice) pair under a
// base directory, mirroring the one-record-per-slice layout of the browser
// local storage this backend replaces.
type FileStore struct {
	mu          sync.Mutex
	dir         string
	instanceKey string
}

// NewFileStore creates the instance directory and returns a file-backed
// adapter for the given instance key.
func NewFileStore(baseDir, instanceKey string) (*FileStore, error) {
	if instanceKey == "" {
		return nil, fmt.Errorf("instance key is required")
	}
	dir := filepath.Join(baseDir, sanitizeKey(instanceKey))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	return &FileStore{dir: dir, instanceKey: instanceKey}, nil
}

// LoadState reads every slice record that exists and parses. Missing files
// are normal (fresh instance); corrupt or invalid records are logged and
// omitted so the caller falls back to defaults.
func (s *FileStore) LoadState(_ context.Context) models.PartialState {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make(map[Slice]json.RawMessage)
	for _, slice := range append(append([]Slice{}, Slices...), SliceCollapsed) {
		raw, err := os.ReadFile(s.slicePath(slice))
		if err != nil {
			if !os.IsNotExist(err) {
				fmt.Printf("[FileStore %s] read %s: %v\n", s.instanceKey, slice, err)
			}
			continue
		}
		records[slice] = raw
	}
	return DecodeRecords(records, func(slice Slice, err error) {
		fmt.Printf("[FileStore %s] invalid %s record ignored: %v\n", s.instanceKey, slice, err)
	})
}

func (s *FileStore) SavePosition(_ context.Context, pos models.Position) error {
	return s.writeSlice(SlicePosition, pos)
}

func (s *FileStore) SaveConnections(_ context.Context, conns []models.Connection) error {
	return s.writeSlice(SliceConnections, models.NormalizeConnections(conns))
}

func (s *FileStore) SaveDisplayMode(_ context.Context, mode models.DisplayMode) error {
	return s.writeSlice(SliceDisplayMode, mode)
}

func (s *FileStore) SaveHidden(_ context.Context, hidden bool) error {
	return s.writeSlice(SliceHidden, hidden)
}

func (s *FileStore) SaveShowLines(_ context.Context, show bool) error {
	return s.writeSlice(SliceShowLines, show)
}

func (s *FileStore) SaveShowBadges(_ context.Context, show bool) error {
	return s.writeSlice(SliceShowBadges, show)
}

func (s *FileStore) SaveLineColor(_ context.Context, color string) error {
	return s.writeSlice(SliceLineColor, color)
}

func (s *FileStore) SaveLineOpacity(_ context.Context, opacity float64) error {
	return s.writeSlice(SliceLineOpacity, opacity)
}

func (s *FileStore) SaveComponentOpacity(_ context.Context, opacity float64) error {
	return s.writeSlice(SliceComponentOpacity, opacity)
}

func (s *FileStore) SaveStatuses(_ context.Context, statuses map[int]models.TaskStatus) error {
	return s.writeSlice(SliceStatuses, encodeStatuses(statuses))
}

// writeSlice writes the record via a temp file rename so a crash mid-write
// leaves the previous record intact.
func (s *FileStore) writeSlice(slice Slice, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", slice, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.slicePath(slice)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", slice, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("committing %s: %w", slice, err)
	}
	return nil
}

func (s *FileStore) slicePath(slice Slice) string {
	return filepath.Join(s.dir, string(slice)+".json")
}

// sanitizeKey keeps instance keys filesystem-safe.
func sanitizeKey(key string) string {
	out := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		b := key[i]
		switch {
		case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9',
			b == '-', b == '_', b == '.':
			out = append(out, b)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
