package persistence

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "containers.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStoreRoundtrip(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	if _, err := s.Load(ctx, "player-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	payload := []byte(`[[1,{"name":"water_bottle","quantity":3}]]`)
	if err := s.Save(ctx, "player-1", payload); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	data, err := s.Load(ctx, "player-1")
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatalf("roundtrip mismatch: %s", data)
	}
}

func TestSQLiteStoreUpsert(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	if err := s.Save(ctx, "trunk-1", []byte("old")); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	if err := s.Save(ctx, "trunk-1", []byte("new")); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	data, err := s.Load(ctx, "trunk-1")
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if string(data) != "new" {
		t.Fatalf("expected the newer payload, got %q", data)
	}
}

func TestSQLiteStoreEmptyPayload(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	if err := s.Save(ctx, "stash-1", []byte("[]")); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	data, err := s.Load(ctx, "stash-1")
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if string(data) != "[]" {
		t.Fatalf("unexpected payload: %q", data)
	}
}
