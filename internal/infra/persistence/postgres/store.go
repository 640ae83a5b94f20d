// Package postgres persists volume table snapshots to Postgres as JSONB rows.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"seem/internal/scaling"
	"seem/pkg/taper"
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/seem?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store keeps one volume_tables row per species and log-length policy.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a Postgres-backed store using dsn (falling back to a local
// default) and ensures the volume_tables relation exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func ensureTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS volume_tables (
		key TEXT PRIMARY KEY,
		species TEXT NOT NULL,
		policy TEXT NOT NULL,
		payload JSONB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure volume_tables: %w", err)
	}
	return nil
}

// SaveTable upserts a snapshot inside a transaction.
func (s *Store) SaveTable(ctx context.Context, snapshot scaling.TableSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode %s: %w", snapshot.Key(), err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO volume_tables(key,species,policy,payload) VALUES($1,$2,$3,$4) ON CONFLICT(key) DO UPDATE SET payload=EXCLUDED.payload`,
		snapshot.Key(), string(snapshot.Species), snapshot.Policy, payload); err != nil {
		return fmt.Errorf("upsert %s: %w", snapshot.Key(), err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// LoadTable reads a snapshot; ok is false when none was saved.
func (s *Store) LoadTable(ctx context.Context, species taper.Species, policy string) (scaling.TableSnapshot, bool, error) {
	key := scaling.SnapshotKey(species, policy)
	rows, err := s.db.QueryContext(ctx, `SELECT key, payload FROM volume_tables WHERE key = $1`, key)
	if err != nil {
		return scaling.TableSnapshot{}, false, fmt.Errorf("select %s: %w", key, err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var rowKey string
		var payload []byte
		if err := rows.Scan(&rowKey, &payload); err != nil {
			return scaling.TableSnapshot{}, false, fmt.Errorf("scan %s: %w", key, err)
		}
		if rowKey != key {
			continue
		}
		var snapshot scaling.TableSnapshot
		if err := json.Unmarshal(payload, &snapshot); err != nil {
			return scaling.TableSnapshot{}, false, fmt.Errorf("decode %s: %w", key, err)
		}
		return snapshot, true, nil
	}
	if err := rows.Err(); err != nil {
		return scaling.TableSnapshot{}, false, fmt.Errorf("iterate %s: %w", key, err)
	}
	return scaling.TableSnapshot{}, false, nil
}

// DeleteTable removes a snapshot, reporting whether a row existed.
func (s *Store) DeleteTable(ctx context.Context, species taper.Species, policy string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM volume_tables WHERE key = $1`, scaling.SnapshotKey(species, policy))
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
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
