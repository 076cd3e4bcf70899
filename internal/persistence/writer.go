package persistence

import (
	"context"
	"log"
	"sync"
	"time"
)

const saveTimeout = 10 * time.Second

type saveReq struct {
	id   string
	data []byte
	// flush acks draining of everything enqueued before it.
	flush chan struct{}
}

// Writer drains container saves onto a Store from a single background
// goroutine so the engine never blocks on storage. Enqueue is
// fire-and-forget: a full queue drops the save with a log line rather than
// stalling gameplay, because the next mutation of the same container will
// enqueue fresh bytes anyway.
type Writer struct {
	store Store
	ch    chan saveReq
	wg    sync.WaitGroup
	once  sync.Once
}

// NewWriter starts the background save loop. queueSize bounds the number
// of pending saves.
func NewWriter(store Store, queueSize int) *Writer {
	if queueSize <= 0 {
		queueSize = 256
	}
	w := &Writer{
		store: store,
		ch:    make(chan saveReq, queueSize),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *Writer) run() {
	defer w.wg.Done()
	for req := range w.ch {
		if req.flush != nil {
			close(req.flush)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		if err := w.store.Save(ctx, req.id, req.data); err != nil {
			log.Printf("[Persistence] Save failed for %s: %v", req.id, err)
		}
		cancel()
	}
}

// Enqueue schedules a save without blocking. Returns false if the queue
// was full and the save was dropped.
func (w *Writer) Enqueue(id string, data []byte) bool {
	select {
	case w.ch <- saveReq{id: id, data: data}:
		return true
	default:
		log.Printf("[Persistence] Save queue full, dropping save for %s", id)
		return false
	}
}

// Flush blocks until every save enqueued before the call has been written.
func (w *Writer) Flush() {
	done := make(chan struct{})
	w.ch <- saveReq{flush: done}
	<-done
}

// Close flushes outstanding saves and stops the loop. Safe to call more
// than once.
func (w *Writer) Close() {
	w.once.Do(func() {
		close(w.ch)
	})
	w.wg.Wait()
}
