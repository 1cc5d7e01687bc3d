package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/tasklens/backend/internal/models"
)

// DefaultRemoteTimeout bounds every remote call. A call that exceeds it is
// abandoned; overlay interaction never waits on the network.
const DefaultRemoteTimeout = 5 * time.Second

// RemoteStore is the HTTP adapter for a sync server exposing the storage
// contract: GET {baseURL}/{resource}/{instanceKey} loads the full state as
// a {slice: value} object, POST with a {type, data} body writes one slice.
// Any non-2xx response or transport error is treated like a local parse
// failure: logged, swallowed, slice omitted.
type RemoteStore struct {
	baseURL     string
	resource    string
	instanceKey string
	client      *http.Client
	timeout     time.Duration // 0 until WithTimeout sets it

	// Writes are gated by a per-slice generation counter so a response that
	// straggles in after a newer write for the same slice is dropped
	// instead of reported.
	mu          sync.Mutex
	generations map[Slice]uint64
}

// RemoteOption customizes a RemoteStore.
type RemoteOption func(*RemoteStore)

// WithHTTPClient substitutes the HTTP client (tests, custom transports).
func WithHTTPClient(client *http.Client) RemoteOption {
	return func(s *RemoteStore) { s.client = client }
}

// WithTimeout overrides DefaultRemoteTimeout. It applies after all options,
// so combining it with WithHTTPClient works in either order.
func WithTimeout(d time.Duration) RemoteOption {
	return func(s *RemoteStore) { s.timeout = d }
}

// NewRemoteStore creates a remote adapter for one instance key.
func NewRemoteStore(baseURL, resource, instanceKey string, opts ...RemoteOption) *RemoteStore {
	s := &RemoteStore{
		baseURL:     baseURL,
		resource:    resource,
		instanceKey: instanceKey,
		client:      &http.Client{Timeout: DefaultRemoteTimeout},
		generations: make(map[Slice]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.timeout > 0 {
		s.client.Timeout = s.timeout
	}
	return s
}

func (s *RemoteStore) stateURL() string {
	return fmt.Sprintf("%s/%s/%s", s.baseURL, s.resource, s.instanceKey)
}

// LoadState fetches the full persisted state. Failures of any kind return
// an empty partial; hydration proceeds on defaults.
func (s *RemoteStore) LoadState(ctx context.Context) models.PartialState {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.stateURL(), nil)
	if err != nil {
		fmt.Printf("[RemoteStore %s] load: %v\n", s.instanceKey, err)
		return models.PartialState{}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		fmt.Printf("[RemoteStore %s] load: %v\n", s.instanceKey, err)
		return models.PartialState{}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// Fresh instance; nothing stored yet.
		return models.PartialState{}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fmt.Printf("[RemoteStore %s] load: unexpected status %d\n", s.instanceKey, resp.StatusCode)
		return models.PartialState{}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		fmt.Printf("[RemoteStore %s] load: reading body: %v\n", s.instanceKey, err)
		return models.PartialState{}
	}

	var bySlice map[Slice]json.RawMessage
	if err := json.Unmarshal(body, &bySlice); err != nil {
		fmt.Printf("[RemoteStore %s] load: decoding body: %v\n", s.instanceKey, err)
		return models.PartialState{}
	}
	return DecodeRecords(bySlice, func(slice Slice, err error) {
		fmt.Printf("[RemoteStore %s] invalid %s record ignored: %v\n", s.instanceKey, slice, err)
	})
}

func (s *RemoteStore) SavePosition(ctx context.Context, pos models.Position) error {
	return s.saveSlice(ctx, SlicePosition, pos)
}

func (s *RemoteStore) SaveConnections(ctx context.Context, conns []models.Connection) error {
	return s.saveSlice(ctx, SliceConnections, models.NormalizeConnections(conns))
}

func (s *RemoteStore) SaveDisplayMode(ctx context.Context, mode models.DisplayMode) error {
	return s.saveSlice(ctx, SliceDisplayMode, mode)
}

func (s *RemoteStore) SaveHidden(ctx context.Context, hidden bool) error {
	return s.saveSlice(ctx, SliceHidden, hidden)
}

func (s *RemoteStore) SaveShowLines(ctx context.Context, show bool) error {
	return s.saveSlice(ctx, SliceShowLines, show)
}

func (s *RemoteStore) SaveShowBadges(ctx context.Context, show bool) error {
	return s.saveSlice(ctx, SliceShowBadges, show)
}

func (s *RemoteStore) SaveLineColor(ctx context.Context, color string) error {
	return s.saveSlice(ctx, SliceLineColor, color)
}

func (s *RemoteStore) SaveLineOpacity(ctx context.Context, opacity float64) error {
	return s.saveSlice(ctx, SliceLineOpacity, opacity)
}

func (s *RemoteStore) SaveComponentOpacity(ctx context.Context, opacity float64) error {
	return s.saveSlice(ctx, SliceComponentOpacity, opacity)
}

func (s *RemoteStore) SaveStatuses(ctx context.Context, statuses map[int]models.TaskStatus) error {
	return s.saveSlice(ctx, SliceStatuses, encodeStatuses(statuses))
}

// sliceWrite is the POST body shape the sync server accepts.
type sliceWrite struct {
	Type Slice `json:"type"`
	Data any   `json:"data"`
}

func (s *RemoteStore) saveSlice(ctx context.Context, slice Slice, v any) error {
	gen := s.nextGeneration(slice)

	payload, err := json.Marshal(sliceWrite{Type: slice, Data: v})
	if err != nil {
		return fmt.Errorf("encoding %s: %w", slice, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.stateURL(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("saving %s: %w", slice, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if !s.isCurrentGeneration(slice, gen) {
		// A newer write for this slice went out while this one was in
		// flight; whatever happened here is stale, drop it.
		if err == nil {
			resp.Body.Close()
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("saving %s: %w", slice, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("saving %s: unexpected status %d", slice, resp.StatusCode)
	}
	return nil
}

func (s *RemoteStore) nextGeneration(slice Slice) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[slice]++
	return s.generations[slice]
}

func (s *RemoteStore) isCurrentGeneration(slice Slice, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[slice] == gen
}
