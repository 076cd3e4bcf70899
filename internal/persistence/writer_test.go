package persistence

import (
	"context"
	"testing"
)

func TestWriterFlushDrains(t *testing.T) {
	store := NewMemoryStore()
	w := NewWriter(store, 16)
	defer w.Close()

	for i := 0; i < 5; i++ {
		if !w.Enqueue("player-1", []byte{byte('a' + i)}) {
			t.Fatalf("enqueue %d dropped with a near-empty queue", i)
		}
	}
	w.Flush()

	data, err := store.Load(context.Background(), "player-1")
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	// Last writer wins: the newest bytes survive.
	if string(data) != "e" {
		t.Fatalf("expected the last enqueued payload, got %q", data)
	}
}

func TestWriterDropsWhenFull(t *testing.T) {
	// A store that blocks until released, so the queue can fill up.
	release := make(chan struct{})
	store := &blockingStore{MemoryStore: NewMemoryStore(), release: release}
	w := NewWriter(store, 1)

	w.Enqueue("a", []byte("1")) // picked up by the loop, blocks in Save
	w.Enqueue("b", []byte("2")) // sits in the queue
	dropped := false
	for i := 0; i < 100; i++ {
		if !w.Enqueue("c", []byte("3")) {
			dropped = true
			break
		}
	}
	close(release)
	w.Close()

	if !dropped {
		t.Fatalf("full queue never dropped a save")
	}
}

type blockingStore struct {
	*MemoryStore
	release chan struct{}
}

func (b *blockingStore) Save(ctx context.Context, id string, data []byte) error {
	<-b.release
	return b.MemoryStore.Save(ctx, id, data)
}

func TestWriterCloseIsIdempotent(t *testing.T) {
	w := NewWriter(NewMemoryStore(), 4)
	w.Enqueue("id", []byte("x"))
	w.Close()
	w.Close()
}
