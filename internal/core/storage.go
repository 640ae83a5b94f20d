package core

import (
	"context"
	"fmt"
	"os"

	"seem/internal/infra/persistence/memory"
	"seem/internal/infra/persistence/postgres"
	"seem/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a snapshot store implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-process only (tests / one-shot runs)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenSnapshotStore selects a backend using environment variables.
// Defaults to memory when unset.
//
//	SEEM_STORAGE_DRIVER: memory|sqlite|postgres (default memory)
//	SEEM_SQLITE_PATH: path to sqlite file (default ./seem.db)
//	SEEM_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenSnapshotStore(ctx context.Context) (SnapshotStore, error) {
	driver := os.Getenv("SEEM_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageMemory)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		store, err := sqlite.NewStore(os.Getenv("SEEM_SQLITE_PATH"))
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, os.Getenv("SEEM_POSTGRES_DSN"))
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
