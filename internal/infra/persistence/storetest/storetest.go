// Package storetest holds a behavioural suite shared by every snapshot store
// backend.
package storetest

import (
	"context"
	"reflect"
	"testing"

	"seem/internal/scaling"
	"seem/pkg/taper"
)

// Store is the surface each backend exposes.
type Store interface {
	SaveTable(ctx context.Context, snapshot scaling.TableSnapshot) error
	LoadTable(ctx context.Context, species taper.Species, policy string) (scaling.TableSnapshot, bool, error)
	DeleteTable(ctx context.Context, species taper.Species, policy string) (bool, error)
	Keys(ctx context.Context) ([]string, error)
}

// Snapshot builds a table for species under the forwarder policy, computes a
// few cells and returns its snapshot.
func Snapshot(t *testing.T, species taper.Species) scaling.TableSnapshot {
	t.Helper()
	catalog, err := scaling.NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	table, ok, err := catalog.Table(species, scaling.ForwarderLogs)
	if err != nil || !ok {
		t.Fatalf("Table(%s): ok=%v err=%v", species, ok, err)
	}
	for _, cell := range [][2]int{{20, 15}, {45, 30}, {60, 40}} {
		if _, err := table.Cell(cell[0], cell[1]); err != nil {
			t.Fatalf("Cell%v: %v", cell, err)
		}
	}
	return table.Snapshot()
}

// Exercise saves, overwrites, loads, lists and deletes snapshots.
func Exercise(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	fir := Snapshot(t, taper.DouglasFir)
	hemlock := Snapshot(t, taper.WesternHemlock)

	if _, ok, err := store.LoadTable(ctx, taper.DouglasFir, fir.Policy); err != nil || ok {
		t.Fatalf("expected empty store, ok=%v err=%v", ok, err)
	}
	for _, snapshot := range []scaling.TableSnapshot{fir, hemlock} {
		if err := store.SaveTable(ctx, snapshot); err != nil {
			t.Fatalf("SaveTable %s: %v", snapshot.Key(), err)
		}
	}
	trimmed := fir
	trimmed.Cells = fir.Cells[:1]
	if err := store.SaveTable(ctx, trimmed); err != nil {
		t.Fatalf("SaveTable overwrite: %v", err)
	}

	got, ok, err := store.LoadTable(ctx, taper.DouglasFir, fir.Policy)
	if err != nil || !ok {
		t.Fatalf("LoadTable: ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(got, trimmed) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", trimmed, got)
	}

	keys, err := store.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	want := []string{fir.Key(), hemlock.Key()}
	if !reflect.DeepEqual(keys, want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}

	removed, err := store.DeleteTable(ctx, taper.WesternHemlock, hemlock.Policy)
	if err != nil || !removed {
		t.Fatalf("DeleteTable: removed=%v err=%v", removed, err)
	}
	removed, err = store.DeleteTable(ctx, taper.WesternHemlock, hemlock.Policy)
	if err != nil || removed {
		t.Fatalf("second DeleteTable: removed=%v err=%v", removed, err)
	}
	if _, ok, _ := store.LoadTable(ctx, taper.WesternHemlock, hemlock.Policy); ok {
		t.Fatalf("deleted snapshot still loads")
	}
}
