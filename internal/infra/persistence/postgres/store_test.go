package postgres

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"seem/internal/infra/persistence/postgres/testutil"
	"seem/internal/infra/persistence/storetest"
	"seem/pkg/taper"
)

func openStub(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(driver, dsn string) (*sql.DB, error) {
		if driver != defaultDriver || dsn != defaultDSN {
			t.Fatalf("unexpected open(%q, %q)", driver, dsn)
		}
		return db, nil
	})
	t.Cleanup(restore)
	store, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, conn
}

func TestNewStoreCreatesTable(t *testing.T) {
	_, conn := openStub(t)
	var sawDDL bool
	for _, stmt := range conn.Execs {
		if strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS volume_tables") {
			sawDDL = true
		}
	}
	if !sawDDL {
		t.Fatalf("expected volume_tables DDL, got execs: %v", conn.Execs)
	}
}

func TestStoreContract(t *testing.T) {
	store, _ := openStub(t)
	storetest.Exercise(t, store)
}

func TestSaveTableStoresJSONPayload(t *testing.T) {
	store, conn := openStub(t)
	snapshot := storetest.Snapshot(t, taper.DouglasFir)
	if err := store.SaveTable(context.Background(), snapshot); err != nil {
		t.Fatalf("SaveTable: %v", err)
	}
	rows := conn.Rows("volume_tables")
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
	if rows[0]["species"] != "PSME" || rows[0]["policy"] != "forwarder" {
		t.Fatalf("unexpected row columns: %v", rows[0])
	}
	payload, ok := rows[0]["payload"].([]byte)
	if !ok || !strings.Contains(string(payload), `"cells"`) {
		t.Fatalf("expected JSON payload, got %T", rows[0]["payload"])
	}
}

func TestStoreSurfacesDriverErrors(t *testing.T) {
	store, conn := openStub(t)
	ctx := context.Background()
	conn.FailTables = map[string]bool{"volume_tables": true}
	if err := store.SaveTable(ctx, storetest.Snapshot(t, taper.DouglasFir)); err == nil {
		t.Fatalf("expected upsert failure")
	}
	if _, _, err := store.LoadTable(ctx, taper.DouglasFir, "forwarder"); err == nil {
		t.Fatalf("expected select failure")
	}
	if _, err := store.Keys(ctx); err == nil {
		t.Fatalf("expected keys failure")
	}
}

func TestNewStorePingFailure(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(context.Background(), "postgres://example"); err == nil {
		t.Fatalf("expected ping failure")
	}
}
