// Package sqlite persists volume table snapshots to an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"seem/internal/scaling"
	"seem/pkg/taper"
)

// DefaultPath is used when NewStore receives an empty path.
const DefaultPath = "seem.db"

// Store writes one row per species and log-length policy, holding the
// snapshot as a JSON blob.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (creating if needed) the database at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS volume_tables (
		key TEXT PRIMARY KEY,
		species TEXT NOT NULL,
		policy TEXT NOT NULL,
		cells INTEGER NOT NULL,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create volume_tables: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// SaveTable upserts a snapshot.
func (s *Store) SaveTable(ctx context.Context, snapshot scaling.TableSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode %s: %w", snapshot.Key(), err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO volume_tables(key,species,policy,cells,payload) VALUES(?,?,?,?,?)
		ON CONFLICT(key) DO UPDATE SET cells=excluded.cells, payload=excluded.payload`,
		snapshot.Key(), string(snapshot.Species), snapshot.Policy, len(snapshot.Cells), payload); err != nil {
		return fmt.Errorf("upsert %s: %w", snapshot.Key(), err)
	}
	return nil
}

// LoadTable reads a snapshot; ok is false when none was saved.
func (s *Store) LoadTable(ctx context.Context, species taper.Species, policy string) (scaling.TableSnapshot, bool, error) {
	key := scaling.SnapshotKey(species, policy)
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM volume_tables WHERE key = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return scaling.TableSnapshot{}, false, nil
	}
	if err != nil {
		return scaling.TableSnapshot{}, false, fmt.Errorf("select %s: %w", key, err)
	}
	var snapshot scaling.TableSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return scaling.TableSnapshot{}, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return snapshot, true, nil
}

// DeleteTable removes a snapshot, reporting whether a row existed.
func (s *Store) DeleteTable(ctx context.Context, species taper.Species, policy string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM volume_tables WHERE key = ?`, scaling.SnapshotKey(species, policy))
	if err != nil {
		return false, fmt.Errorf("delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Keys lists stored snapshot keys in ascending order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM volume_tables ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("select keys: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
