package testutil

import (
	"context"
	"database/sql/driver"
	"testing"
)

func TestStubDBUpsertsAndFilters(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	insert := "INSERT INTO volume_tables (key, payload) VALUES ($1,$2) ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload"
	for _, args := range [][]driver.NamedValue{
		{{Value: "PSME/forwarder"}, {Value: []byte("a")}},
		{{Value: "TSHE/forwarder"}, {Value: []byte("b")}},
		{{Value: "PSME/forwarder"}, {Value: []byte("c")}},
	} {
		if _, err := conn.ExecContext(ctx, insert, args); err != nil {
			t.Fatalf("ExecContext insert: %v", err)
		}
	}
	if got := len(conn.Rows("volume_tables")); got != 2 {
		t.Fatalf("expected upsert to keep 2 rows, got %d", got)
	}

	rows, err := conn.QueryContext(ctx, "SELECT key, payload FROM volume_tables WHERE key = $1", []driver.NamedValue{{Value: "PSME/forwarder"}})
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	dest := make([]driver.Value, 2)
	if err := rows.Next(dest); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if dest[0] != "PSME/forwarder" || string(dest[1].([]byte)) != "c" {
		t.Fatalf("unexpected row values: %v", dest)
	}
	if err := rows.Next(dest); err == nil {
		t.Fatalf("expected a single filtered row")
	}

	res, err := conn.ExecContext(ctx, "DELETE FROM volume_tables WHERE key = $1", []driver.NamedValue{{Value: "TSHE/forwarder"}})
	if err != nil {
		t.Fatalf("ExecContext delete: %v", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		t.Fatalf("expected 1 deleted row, got %d", n)
	}
	if got := len(conn.Rows("volume_tables")); got != 1 {
		t.Fatalf("expected 1 row after delete, got %d", got)
	}
}

func TestStubDBFailures(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()
	conn.FailPing = true
	if err := conn.Ping(ctx); err == nil {
		t.Fatalf("expected ping failure")
	}
	conn.FailTables = map[string]bool{"volume_tables": true}
	if _, err := conn.QueryContext(ctx, "SELECT key FROM volume_tables", nil); err == nil {
		t.Fatalf("expected query failure")
	}
	if _, err := conn.ExecContext(ctx, "INSERT INTO volume_tables (key) VALUES ($1)", []driver.NamedValue{{Value: "k"}}); err == nil {
		t.Fatalf("expected insert failure")
	}
	if _, err := conn.ExecContext(ctx, "DELETE FROM volume_tables", nil); err == nil {
		t.Fatalf("expected delete without predicate to fail")
	}
	if _, err := conn.QueryContext(ctx, "UPDATE volume_tables SET key = 1", nil); err == nil {
		t.Fatalf("expected unparseable select to fail")
	}
}
