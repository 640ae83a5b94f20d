// Package core orchestrates volume table lookups, stand aggregation and table
// persistence behind a single observable service.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"seem/internal/scaling"
	"seem/internal/stand"
	"seem/pkg/taper"
)

// ErrNoSnapshotStore is returned by table persistence operations when the
// service was built without WithSnapshotStore.
var ErrNoSnapshotStore = errors.New("core: no snapshot store configured")

// SnapshotStore persists computed volume table cells between runs.
type SnapshotStore interface {
	SaveTable(ctx context.Context, snapshot scaling.TableSnapshot) error
	LoadTable(ctx context.Context, species taper.Species, policy string) (scaling.TableSnapshot, bool, error)
	DeleteTable(ctx context.Context, species taper.Species, policy string) (bool, error)
	Close() error
}

// Service exposes stand and tree volume queries over a shared catalog.
type Service struct {
	catalog    *scaling.Catalog
	aggregator *stand.Aggregator
	snapshots  SnapshotStore
	logger     Logger
	clock      Clock
	metrics    MetricsRecorder
	tracer     Tracer
}

// NewService constructs a service. Without WithCatalog it builds a catalog
// with the default taper providers and scaling parameters.
func NewService(opts ...ServiceOption) (*Service, error) {
	o := defaultServiceOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	catalog := o.catalog
	if catalog == nil {
		var err error
		if catalog, err = scaling.NewCatalog(); err != nil {
			return nil, err
		}
	}
	return &Service{
		catalog:    catalog,
		aggregator: stand.NewAggregator(catalog),
		snapshots:  o.snapshots,
		logger:     o.logger,
		clock:      o.clock,
		metrics:    o.metrics,
		tracer:     o.tracer,
	}, nil
}

// Catalog returns the catalog backing every query.
func (s *Service) Catalog() *scaling.Catalog { return s.catalog }

// StandingVolume totals the merchantable volume of every tree in the stand.
func (s *Service) StandingVolume(ctx context.Context, st *stand.Stand, policy scaling.LogLengthPolicy) (stand.StandVolume, error) {
	var out stand.StandVolume
	err := s.run(ctx, "standing_volume", func(ctx context.Context) error {
		var err error
		out, err = s.aggregator.Standing(ctx, st, policy)
		return err
	}, "policy", policy.String())
	return out, err
}

// HarvestVolume totals the trees selected for harvest in period.
func (s *Service) HarvestVolume(ctx context.Context, st *stand.Stand, selection stand.Selection, period int, policy scaling.LogLengthPolicy) (stand.StandVolume, error) {
	var out stand.StandVolume
	err := s.run(ctx, "harvest_volume", func(ctx context.Context) error {
		var err error
		out, err = s.aggregator.Harvest(ctx, st, selection, period, policy)
		return err
	}, "policy", policy.String(), "period", period)
	return out, err
}

// HarvestVolumes totals several harvest periods at once.
func (s *Service) HarvestVolumes(ctx context.Context, st *stand.Stand, selection stand.Selection, periods []int, policy scaling.LogLengthPolicy) (map[int]stand.StandVolume, error) {
	var out map[int]stand.StandVolume
	err := s.run(ctx, "harvest_volumes", func(ctx context.Context) error {
		var err error
		out, err = s.aggregator.HarvestByPeriod(ctx, st, selection, periods, policy)
		return err
	}, "policy", policy.String(), "periods", len(periods))
	return out, err
}

// TreeVolume interpolates one tree's volume (DBH in cm, height in m). ok is
// false for species without a taper model.
func (s *Service) TreeVolume(ctx context.Context, species taper.Species, dbh, height float64, policy scaling.LogLengthPolicy) (volume scaling.GradedVolume, ok bool, err error) {
	err = s.run(ctx, "tree_volume", func(context.Context) error {
		table, supported, err := s.catalog.Table(species, policy)
		if err != nil || !supported {
			return err
		}
		ok = true
		volume, err = table.Query(dbh, height)
		return err
	}, "species", species, "policy", policy.String())
	return volume, ok, err
}

// WarmTables restores stored snapshots into the catalog's tables for every
// combination of species and policy and returns the number of cells
// restored. Missing snapshots and unsupported species are skipped.
func (s *Service) WarmTables(ctx context.Context, species []taper.Species, policies []scaling.LogLengthPolicy) (int, error) {
	var restored atomic.Int64
	err := s.run(ctx, "warm_tables", func(ctx context.Context) error {
		if s.snapshots == nil {
			return ErrNoSnapshotStore
		}
		g, gctx := errgroup.WithContext(ctx)
		for _, policy := range policies {
			for _, sp := range species {
				g.Go(func() error {
					n, err := s.warmTable(gctx, sp, policy)
					restored.Add(int64(n))
					return err
				})
			}
		}
		return g.Wait()
	}, "species", len(species), "policies", len(policies))
	return int(restored.Load()), err
}

func (s *Service) warmTable(ctx context.Context, species taper.Species, policy scaling.LogLengthPolicy) (int, error) {
	table, ok, err := s.catalog.Table(species, policy)
	if err != nil || !ok {
		return 0, err
	}
	snapshot, found, err := s.snapshots.LoadTable(ctx, species, table.Policy().Name)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", scaling.SnapshotKey(species, table.Policy().Name), err)
	}
	if !found {
		return 0, nil
	}
	n, err := table.Restore(snapshot)
	if errors.Is(err, scaling.ErrSnapshotMismatch) {
		s.logger.Warn("discarding stale volume table snapshot", "key", snapshot.Key(), "error", err)
		return 0, nil
	}
	return n, err
}

// PersistTables saves every constructed table that has computed cells and
// returns the number of tables written.
func (s *Service) PersistTables(ctx context.Context) (int, error) {
	written := 0
	err := s.run(ctx, "persist_tables", func(ctx context.Context) error {
		if s.snapshots == nil {
			return ErrNoSnapshotStore
		}
		for _, table := range s.catalog.Tables() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if table.Stats().Computed == 0 {
				continue
			}
			snapshot := table.Snapshot()
			if err := s.snapshots.SaveTable(ctx, snapshot); err != nil {
				return fmt.Errorf("save %s: %w", snapshot.Key(), err)
			}
			written++
		}
		return nil
	})
	return written, err
}

// run wraps an operation with tracing, timing and logging.
func (s *Service) run(ctx context.Context, operation string, fn func(context.Context) error, kv ...any) error {
	ctx, span := s.tracer.Start(ctx, operation)
	started := s.clock.Now()
	err := fn(ctx)
	elapsed := s.clock.Now().Sub(started)
	s.metrics.Observe(ctx, operation, err == nil, elapsed)
	span.End(err)

	fields := append([]any{"operation", operation, "duration", elapsed}, kv...)
	if err != nil {
		s.logger.Error("operation failed", append(fields, "error", err)...)
		return err
	}
	s.logger.Debug("operation completed", fields...)
	return nil
}
