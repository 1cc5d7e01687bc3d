package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/marcboeker/go-duckdb"
)

// DuckStore is the sync server's durable slice store: one row per
// (instance_key, slice), the value kept as the raw JSON the client sent.
// It backs the HTTP API the RemoteStore adapter talks to.
type DuckStore struct {
	db     *sql.DB
	dbPath string
}

// InstanceInfo summarizes one stored instance for listings.
type InstanceInfo struct {
	InstanceKey string    `json:"instanceKey"`
	SliceCount  int       `json:"sliceCount"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewDuckStore opens (or creates) the overlay database at dbPath with
// default tuning.
func NewDuckStore(dbPath string) (*DuckStore, error) {
	return NewDuckStoreWithTuning(dbPath, 2, "256MB")
}

// NewDuckStoreWithTuning opens the overlay database with explicit thread
// and memory limits, typically sourced from the server config.
func NewDuckStoreWithTuning(dbPath string, threads int, memoryLimit string) (*DuckStore, error) {
	if threads <= 0 {
		threads = 2
	}
	if memoryLimit == "" {
		memoryLimit = "256MB"
	}
	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			fmt.Sprintf("PRAGMA memory_limit='%s'", memoryLimit),
			fmt.Sprintf("PRAGMA threads=%d", threads),
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS overlay_slices (
			instance_key VARCHAR NOT NULL,
			slice        VARCHAR NOT NULL,
			value        VARCHAR NOT NULL,
			updated_at   TIMESTAMP NOT NULL,
			PRIMARY KEY (instance_key, slice)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating overlay_slices table: %w", err)
	}

	fmt.Printf("[DuckStore] Overlay database ready at %s\n", dbPath)
	return &DuckStore{db: db, dbPath: dbPath}, nil
}

// Close releases the underlying database.
func (s *DuckStore) Close() error {
	return s.db.Close()
}

// GetState returns every stored slice for an instance. An unknown instance
// yields an empty map, not an error.
func (s *DuckStore) GetState(ctx context.Context, instanceKey string) (map[Slice]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT slice, value FROM overlay_slices WHERE instance_key = ?`, instanceKey)
	if err != nil {
		return nil, fmt.Errorf("querying state for %s: %w", instanceKey, err)
	}
	defer rows.Close()

	out := make(map[Slice]json.RawMessage)
	for rows.Next() {
		var slice, value string
		if err := rows.Scan(&slice, &value); err != nil {
			return nil, fmt.Errorf("scanning slice row: %w", err)
		}
		out[Slice(slice)] = json.RawMessage(value)
	}
	return out, rows.Err()
}

// PutSlice upserts one slice value for an instance.
func (s *DuckStore) PutSlice(ctx context.Context, instanceKey string, slice Slice, value json.RawMessage) error {
	if !json.Valid(value) {
		return fmt.Errorf("slice %s for %s: value is not valid JSON", slice, instanceKey)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO overlay_slices (instance_key, slice, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (instance_key, slice)
		DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, instanceKey, string(slice), string(value), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upserting %s for %s: %w", slice, instanceKey, err)
	}
	return nil
}

// DeleteInstance removes every slice for an instance. Deleting an unknown
// instance is a no-op.
func (s *DuckStore) DeleteInstance(ctx context.Context, instanceKey string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM overlay_slices WHERE instance_key = ?`, instanceKey)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", instanceKey, err)
	}
	return nil
}

// ListInstances returns stored instances ordered by most recent write.
func (s *DuckStore) ListInstances(ctx context.Context) ([]InstanceInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT instance_key, COUNT(*), MAX(updated_at)
		FROM overlay_slices
		GROUP BY instance_key
		ORDER BY MAX(updated_at) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("listing instances: %w", err)
	}
	defer rows.Close()

	var out []InstanceInfo
	for rows.Next() {
		var info InstanceInfo
		if err := rows.Scan(&info.InstanceKey, &info.SliceCount, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning instance row: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// CleanupStale deletes instances whose newest write is older than maxAge
// and returns how many instances were removed.
func (s *DuckStore) CleanupStale(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM overlay_slices WHERE instance_key IN (
			SELECT instance_key FROM overlay_slices
			GROUP BY instance_key
			HAVING MAX(updated_at) < ?
		)
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleaning up stale instances: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected > 0 {
		fmt.Printf("[DuckStore] Removed %d stale slice rows (older than %s)\n", affected, maxAge)
	}
	return int(affected), nil
}
