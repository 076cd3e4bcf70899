package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gravitas-games/depot/internal/persistence"
)

func newTestEngine(t *testing.T) (*Engine, *persistence.MemoryStore) {
	t.Helper()
	store := persistence.NewMemoryStore()
	writer := persistence.NewWriter(store, 64)
	t.Cleanup(writer.Close)
	e := NewEngine(NewDirectory(testCatalog(), store, writer))
	t.Cleanup(e.Close)
	return e, store
}

func TestEngineSerializesConcurrentRequests(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.LoadForPrincipal(ctx, "citizen-1", "player-citizen-1", playerTmpl); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	// Hammer the engine from many goroutines. Container state carries no
	// locks, so any data race here would be caught by the race detector and
	// any lost update by the totals below.
	const workers = 8
	const perWorker = 25
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if err := e.Add("player-citizen-1", "bandage", 1, nil); err != nil {
					t.Errorf("unexpected add error: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	snap, err := e.SnapshotOf("player-citizen-1")
	if err != nil {
		t.Fatalf("unexpected snapshot error: %v", err)
	}
	total := 0
	for _, stack := range snap.Items {
		total += stack.Quantity
	}
	if total != workers*perWorker {
		t.Fatalf("lost updates: total %d, want %d", total, workers*perWorker)
	}
	if snap.CurrentWeight != 80*workers*perWorker {
		t.Fatalf("weight out of sync: %d", snap.CurrentWeight)
	}
}

func TestEngineMoveAndUse(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.LoadForPrincipal(ctx, "citizen-1", "player-citizen-1", playerTmpl); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if err := e.Add("player-citizen-1", "water_bottle", 3, nil); err != nil {
		t.Fatalf("unexpected add error: %v", err)
	}

	if err := e.Move("citizen-1", moveReq("player-citizen-1", 1, "player-citizen-1", 5, 1)); err != nil {
		t.Fatalf("unexpected move error: %v", err)
	}
	snap, _ := e.SnapshotOf("player-citizen-1")
	if snap.Items[1].Quantity != 2 || snap.Items[5].Quantity != 1 {
		t.Fatalf("move not applied: %+v", snap.Items)
	}

	removed, err := e.Remove("citizen-1", "player-citizen-1", 5, 0)
	if err != nil {
		t.Fatalf("unexpected remove error: %v", err)
	}
	if removed.Quantity != 1 {
		t.Fatalf("wrong removed stack: %+v", removed)
	}
}

func TestEngineEvictPersistsBeforeReturning(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	if _, err := e.LoadForPrincipal(ctx, "citizen-1", "player-citizen-1", playerTmpl); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if err := e.Add("player-citizen-1", "gold_bar", 2, nil); err != nil {
		t.Fatalf("unexpected add error: %v", err)
	}
	if err := e.Evict(ctx, "citizen-1"); err != nil {
		t.Fatalf("unexpected evict error: %v", err)
	}

	// Evict is awaited: the bytes are durable the moment it returns.
	if _, err := store.Load(ctx, "player-citizen-1"); err != nil {
		t.Fatalf("final save not durable after Evict: %v", err)
	}
}

func TestEngineRejectsAfterClose(t *testing.T) {
	store := persistence.NewMemoryStore()
	writer := persistence.NewWriter(store, 8)
	defer writer.Close()
	e := NewEngine(NewDirectory(testCatalog(), store, writer))
	e.Close()

	err := e.Move("citizen-1", moveReq("player-citizen-1", 1, "player-citizen-1", 2, 0))
	if !errors.Is(err, ErrEngineClosed) {
		t.Fatalf("expected ErrEngineClosed, got %v", err)
	}

	// Closing twice is safe.
	e.Close()
}

func TestEngineCloseNeverStrandsCallers(t *testing.T) {
	store := persistence.NewMemoryStore()
	writer := persistence.NewWriter(store, 8)
	defer writer.Close()
	e := NewEngine(NewDirectory(testCatalog(), store, writer))
	e.Close()

	// Once the loop is gone, every submission must come back with
	// ErrEngineClosed instead of parking on an ops channel nobody drains.
	for i := 0; i < 50; i++ {
		errc := make(chan error, 1)
		go func() {
			errc <- e.Move("citizen-1", moveReq("player-citizen-1", 1, "player-citizen-1", 2, 0))
		}()
		select {
		case err := <-errc:
			if !errors.Is(err, ErrEngineClosed) {
				t.Fatalf("iteration %d: expected ErrEngineClosed, got %v", i, err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("iteration %d: request after Close hung", i)
		}
	}
}
