package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"seem/internal/blob/core"
)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	if s.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
	meta := map[string]string{"stand": "unit 7"}
	if _, err := s.Put(ctx, "reports/a/json", bytes.NewBufferString(`{"ok":true}`), core.PutOptions{ContentType: "application/json", Metadata: meta}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	meta["stand"] = "mutated"
	if _, err := s.Put(ctx, "reports/b/csv", bytes.NewBufferString("x"), core.PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := s.Put(ctx, "other/c", bytes.NewBufferString("y"), core.PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	info, rc, err := s.Get(ctx, "reports/a/json")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	if string(body) != `{"ok":true}` || info.Size != int64(len(body)) || info.Metadata["stand"] != "unit 7" {
		t.Fatalf("unexpected blob %q %+v", body, info)
	}

	list, err := s.List(ctx, "reports/")
	if err != nil || len(list) != 2 || list[0].Key != "reports/a/json" {
		t.Fatalf("List: %+v %v", list, err)
	}
	all, _ := s.List(ctx, "")
	if len(all) != 3 {
		t.Fatalf("expected 3 blobs, got %d", len(all))
	}
	if _, err := s.PresignURL(ctx, "reports/a/json", core.SignedURLOptions{}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestStoreErrors(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, err := s.Put(ctx, "../escape", bytes.NewBufferString("x"), core.PutOptions{}); !errors.Is(err, core.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	if _, _, err := s.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := s.Put(cancelled, "k", bytes.NewBufferString("x"), core.PutOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
