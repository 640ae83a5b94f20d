package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"seem/internal/blob/core"
)

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket error")
	}
}

func TestMockStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMockForTests()
	if store.Driver() != core.DriverS3 {
		t.Fatalf("driver = %s", store.Driver())
	}
	info, err := store.Put(ctx, "reports/a/json", bytes.NewBufferString(`{"stand":"a"}`), core.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"species": "psme"},
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if info.Size != int64(len(`{"stand":"a"}`)) || info.ContentType != "application/json" {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.Metadata["species"] != "psme" {
		t.Fatalf("metadata not stored: %+v", info.Metadata)
	}
	if _, err := store.Put(ctx, "reports/a/json", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	_, rc, err := store.Get(ctx, "reports/a/json")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != `{"stand":"a"}` {
		t.Fatalf("body = %q", body)
	}
	if _, _, err := store.Get(ctx, "reports/missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Put(ctx, "reports/b/csv", strings.NewReader("grade"), core.PutOptions{}); err != nil {
		t.Fatalf("Put b: %v", err)
	}
	if _, err := store.Put(ctx, "tables/psme", strings.NewReader("{}"), core.PutOptions{}); err != nil {
		t.Fatalf("Put table: %v", err)
	}
	list, err := store.List(ctx, "reports/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].Key != "reports/a/json" || list[1].Key != "reports/b/csv" {
		t.Fatalf("unexpected listing %+v", list)
	}
	url, err := store.PresignURL(ctx, "reports/a/json", core.SignedURLOptions{})
	if err != nil || !strings.Contains(url, "reports/a/json") {
		t.Fatalf("PresignURL = %q, %v", url, err)
	}
	if _, err := store.PresignURL(ctx, "reports/a/json", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	removed, err := store.Delete(ctx, "reports/a/json")
	if err != nil || !removed {
		t.Fatalf("Delete: %v %v", removed, err)
	}
	if removed, err := store.Delete(ctx, "reports/a/json"); err != nil || removed {
		t.Fatalf("second Delete: %v %v", removed, err)
	}
}

func TestPutRejectsInvalidKey(t *testing.T) {
	store := NewMockForTests()
	if _, err := store.Put(context.Background(), "../escape", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestDecodeChunked(t *testing.T) {
	body, ok := decodeChunked([]byte("5;chunk-signature=abc\r\nhello\r\n0\r\n\r\n"))
	if !ok || string(body) != "hello" {
		t.Fatalf("decodeChunked = %q %v", body, ok)
	}
	if _, ok := decodeChunked([]byte("plain body")); ok {
		t.Fatalf("plain body should not decode")
	}
}
