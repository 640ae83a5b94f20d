// Package memory keeps volume table snapshots in process memory. It backs
// tests and ephemeral runs where warm-starting across processes is not needed.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"seem/internal/scaling"
	"seem/pkg/taper"
)

// Store holds JSON-encoded snapshots keyed by scaling.SnapshotKey so callers
// never share cell slices with the store.
type Store struct {
	mu     sync.RWMutex
	tables map[string][]byte
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{tables: make(map[string][]byte)}
}

// SaveTable replaces the stored snapshot for the table's species and policy.
func (s *Store) SaveTable(ctx context.Context, snapshot scaling.TableSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode %s: %w", snapshot.Key(), err)
	}
	s.mu.Lock()
	s.tables[snapshot.Key()] = payload
	s.mu.Unlock()
	return nil
}

// LoadTable returns the stored snapshot, if any.
func (s *Store) LoadTable(ctx context.Context, species taper.Species, policy string) (scaling.TableSnapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return scaling.TableSnapshot{}, false, err
	}
	key := scaling.SnapshotKey(species, policy)
	s.mu.RLock()
	payload, ok := s.tables[key]
	s.mu.RUnlock()
	if !ok {
		return scaling.TableSnapshot{}, false, nil
	}
	var snapshot scaling.TableSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return scaling.TableSnapshot{}, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return snapshot, true, nil
}

// DeleteTable drops a snapshot, reporting whether one existed.
func (s *Store) DeleteTable(_ context.Context, species taper.Species, policy string) (bool, error) {
	key := scaling.SnapshotKey(species, policy)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tables[key]
	delete(s.tables, key)
	return ok, nil
}

// Keys lists stored snapshot keys in ascending order.
func (s *Store) Keys(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.tables))
	for k := range s.tables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) Close() error { return nil }
