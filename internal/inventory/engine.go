package inventory

import (
	"context"
	"errors"
	"log"
	"sync"
)

// ErrEngineClosed is returned for requests submitted after shutdown began.
var ErrEngineClosed = errors.New("inventory engine closed")

// Engine serializes every inventory request onto a single goroutine. Each
// request runs to completion (resolution, all SetSlot calls, notifier
// dispatch) before the next begins, so container state needs no locks and
// mutations on a container apply in request-acceptance order. Persistence
// writes are handed off to the async writer; only eviction awaits its
// final save.
type Engine struct {
	dir    *Directory
	ops    chan func()
	quit   chan struct{}
	exited chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// NewEngine wraps a directory and starts the request loop.
func NewEngine(dir *Directory) *Engine {
	e := &Engine{
		dir:    dir,
		ops:    make(chan func(), 64),
		quit:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	e.wg.Add(1)
	go e.run()
	log.Println("[Engine] Request loop started")
	return e
}

func (e *Engine) run() {
	defer e.wg.Done()
	defer close(e.exited)
	for {
		select {
		case fn := <-e.ops:
			fn()
		case <-e.quit:
			// Drain requests already accepted before shutdown.
			for {
				select {
				case fn := <-e.ops:
					fn()
				default:
					return
				}
			}
		}
	}
}

// do runs fn on the engine goroutine and waits for it to complete. Once the
// loop has exited, nothing will ever drain the ops channel, so both the
// submit and the wait select on the loop's exit to avoid stranding callers.
func (e *Engine) do(fn func()) error {
	done := make(chan struct{})
	select {
	case e.ops <- func() { fn(); close(done) }:
	case <-e.exited:
		return ErrEngineClosed
	}
	select {
	case <-done:
		return nil
	case <-e.exited:
		// The wrapper closes done before the loop moves on, so if fn ran at
		// all, done is closed by now. Otherwise the submission raced the
		// drain and was never executed.
		select {
		case <-done:
			return nil
		default:
			return ErrEngineClosed
		}
	}
}

// Close stops accepting requests, finishes the ones already queued and
// returns once the loop has exited.
func (e *Engine) Close() {
	e.once.Do(func() { close(e.quit) })
	e.wg.Wait()
}

// Subscribe registers a change subscriber. Wire up before serving requests.
func (e *Engine) Subscribe(s Subscriber) { e.dir.Subscribe(s) }

// Uses exposes the usable-item registry. Register handlers before serving
// requests.
func (e *Engine) Uses() *UseRegistry { return e.dir.Uses() }

// Move applies one move request on behalf of a principal.
func (e *Engine) Move(principal string, req MoveRequest) error {
	var err error
	if doErr := e.do(func() { err = e.dir.HandleMove(principal, req) }); doErr != nil {
		return doErr
	}
	return err
}

// Use applies a direct-use request.
func (e *Engine) Use(principal, containerID string, slot int) error {
	var err error
	if doErr := e.do(func() { err = e.dir.HandleUse(principal, containerID, slot) }); doErr != nil {
		return doErr
	}
	return err
}

// Remove takes items out of a slot and returns the removed stack for the
// external effect dispatcher (drop, give). Quantity zero means the whole
// stack.
func (e *Engine) Remove(principal, containerID string, slot, quantity int) (ItemStack, error) {
	var (
		stack ItemStack
		err   error
	)
	if doErr := e.do(func() { stack, err = e.dir.HandleRemove(principal, containerID, slot, quantity) }); doErr != nil {
		return ItemStack{}, doErr
	}
	return stack, err
}

// Add inserts items into a container. Trusted server-side entry point.
func (e *Engine) Add(containerID, name string, quantity int, metadata map[string]any) error {
	var err error
	if doErr := e.do(func() { err = e.dir.AddTo(containerID, name, quantity, metadata) }); doErr != nil {
		return doErr
	}
	return err
}

// LoadForPrincipal loads (or returns) the principal's own container and
// hands back its snapshot. Mutable container state never leaves the
// engine goroutine.
func (e *Engine) LoadForPrincipal(ctx context.Context, principal, id string, tmpl Template) (Snapshot, error) {
	var (
		snap Snapshot
		err  error
	)
	doErr := e.do(func() {
		var c *Container
		c, err = e.dir.LoadForPrincipal(ctx, principal, id, tmpl)
		if err == nil {
			snap = c.Snapshot()
		}
	})
	if doErr != nil {
		return Snapshot{}, doErr
	}
	return snap, err
}

// OpenShared loads (or creates) a shared container, grants the principal
// access and returns its snapshot.
func (e *Engine) OpenShared(ctx context.Context, principal, id string, tmpl Template) (Snapshot, error) {
	var (
		snap Snapshot
		err  error
	)
	doErr := e.do(func() {
		var c *Container
		c, err = e.dir.OpenShared(ctx, principal, id, tmpl)
		if err == nil {
			snap = c.Snapshot()
		}
	})
	if doErr != nil {
		return Snapshot{}, doErr
	}
	return snap, err
}

// GrantAccess records an externally checked claim on a shared container.
func (e *Engine) GrantAccess(principal, id string) {
	_ = e.do(func() { e.dir.GrantAccess(principal, id) })
}

// RevokeAccess withdraws a claim on a shared container.
func (e *Engine) RevokeAccess(principal, id string) {
	_ = e.do(func() { e.dir.RevokeAccess(principal, id) })
}

// Evict saves and unloads the principal's container. The final save is
// awaited so durability is guaranteed before teardown completes.
func (e *Engine) Evict(ctx context.Context, principal string) error {
	var err error
	if doErr := e.do(func() { err = e.dir.Evict(ctx, principal) }); doErr != nil {
		return doErr
	}
	return err
}

// SnapshotOf returns a snapshot of a live container.
func (e *Engine) SnapshotOf(id string) (Snapshot, error) {
	var (
		snap Snapshot
		err  error
	)
	if doErr := e.do(func() { snap, err = e.dir.SnapshotOf(id) }); doErr != nil {
		return Snapshot{}, doErr
	}
	return snap, err
}
