package persistence

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStoreRoundtrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.Load(ctx, "player-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.Save(ctx, "player-1", []byte(`[[1,{"name":"bread","quantity":2}]]`)); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	data, err := s.Load(ctx, "player-1")
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if string(data) != `[[1,{"name":"bread","quantity":2}]]` {
		t.Fatalf("unexpected payload: %s", data)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", s.Len())
	}
}

func TestMemoryStoreIsolatesCallers(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	payload := []byte("original")
	if err := s.Save(ctx, "id", payload); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	payload[0] = 'X'

	data, err := s.Load(ctx, "id")
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if string(data) != "original" {
		t.Fatalf("store shares memory with the caller: %s", data)
	}

	// Mutating a loaded slice must not poison later loads either.
	data[0] = 'Y'
	again, _ := s.Load(ctx, "id")
	if string(again) != "original" {
		t.Fatalf("loaded slice aliases stored bytes: %s", again)
	}
}
