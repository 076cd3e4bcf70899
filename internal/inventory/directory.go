package inventory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/gravitas-games/depot/internal/catalog"
	"github.com/gravitas-games/depot/internal/persistence"
)

// Template is the slot/weight shape a container is created with when no
// persisted state exists.
type Template struct {
	Label     string
	Slots     int
	MaxWeight int
}

// PersistedID reports whether a container id names state that must survive
// restarts. Purely transient containers (temporary loot, previews) fall
// outside these schemes and are never written to the store.
func PersistedID(id string) bool {
	return strings.HasPrefix(id, "player-") ||
		strings.HasPrefix(id, "trunk-") ||
		strings.HasPrefix(id, "stash-")
}

// Directory is the authoritative registry of all live containers. It owns
// their lifetime, mediates every cross-container operation and keeps the
// principal<->container indexes in lockstep. Its methods are not safe for
// concurrent use; the Engine serializes every call onto one goroutine.
type Directory struct {
	catalog  *catalog.Catalog
	store    persistence.Store
	writer   *persistence.Writer
	notifier Notifier
	uses     *UseRegistry

	containers map[string]*Container

	// Forward and reverse owner indexes, always updated together.
	containerOf map[string]string // principal -> owned container id
	ownerOf     map[string]string // container id -> owning principal

	// Transient access grants to shared containers (trunks, stashes).
	// The proximity/job checks behind a grant live outside the engine;
	// only the boolean fact is consumed here.
	grants map[string]map[string]bool // principal -> container id set

	// Containers touched by the request currently being applied, in touch
	// order. Nil outside a request.
	dirty     []*Container
	dirtySeen map[string]bool
}

// NewDirectory wires the directory to its collaborators. The writer
// receives fire-and-forget saves on every committed mutation; the store is
// only hit synchronously at load and eviction time.
func NewDirectory(cat *catalog.Catalog, store persistence.Store, writer *persistence.Writer) *Directory {
	d := &Directory{
		catalog:     cat,
		store:       store,
		writer:      writer,
		uses:        NewUseRegistry(),
		containers:  make(map[string]*Container),
		containerOf: make(map[string]string),
		ownerOf:     make(map[string]string),
		grants:      make(map[string]map[string]bool),
	}
	log.Println("[Directory] Started")
	return d
}

// Subscribe registers a change subscriber. Call during startup wiring only.
func (d *Directory) Subscribe(s Subscriber) {
	d.notifier.Subscribe(s)
}

// Uses exposes the usable-item registry for handler registration.
func (d *Directory) Uses() *UseRegistry { return d.uses }

// Resolve returns the live container for an id.
func (d *Directory) Resolve(id string) (*Container, error) {
	c, ok := d.containers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrContainerNotFound, id)
	}
	return c, nil
}

// Authorize reports whether the principal holds a claim on the container:
// it is their own, or they have been granted transient access to it.
func (d *Directory) Authorize(principal, id string) bool {
	if d.containerOf[principal] == id {
		return true
	}
	return d.grants[principal][id]
}

// GrantAccess records that an external check cleared the principal to use
// a shared container.
func (d *Directory) GrantAccess(principal, id string) {
	set, ok := d.grants[principal]
	if !ok {
		set = make(map[string]bool)
		d.grants[principal] = set
	}
	set[id] = true
}

// RevokeAccess withdraws a previously granted claim.
func (d *Directory) RevokeAccess(principal, id string) {
	if set, ok := d.grants[principal]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(d.grants, principal)
		}
	}
}

// LoadForPrincipal returns the principal's own container, loading it from
// persistence (or creating it empty from the template) on first access.
// Idempotent: a second call returns the live instance. A container already
// owned by another principal (duplicate login) is handed over; the previous
// owner's claim is released so their eviction cannot tear it down.
func (d *Directory) LoadForPrincipal(ctx context.Context, principal, id string, tmpl Template) (*Container, error) {
	if live, ok := d.containers[id]; ok {
		d.own(principal, id)
		return live, nil
	}

	c, err := d.load(ctx, id, tmpl)
	if err != nil {
		return nil, err
	}
	d.containers[id] = c
	d.own(principal, id)
	log.Printf("[Directory] Loaded container %s for %s", id, principal)
	return c, nil
}

// own records principal as the owner of the container, clearing any stale
// entry on either side so the forward and reverse indexes stay a bimap.
func (d *Directory) own(principal, id string) {
	if prev, ok := d.ownerOf[id]; ok && prev != principal {
		log.Printf("[Directory] Container %s handed over from %s to %s", id, prev, principal)
		delete(d.containerOf, prev)
	}
	if prevID, ok := d.containerOf[principal]; ok && prevID != id {
		delete(d.ownerOf, prevID)
	}
	d.containerOf[principal] = id
	d.ownerOf[id] = principal
}

// OpenShared loads (or creates) a shared container with no owning
// principal and grants the requesting principal access to it.
func (d *Directory) OpenShared(ctx context.Context, principal, id string, tmpl Template) (*Container, error) {
	c, ok := d.containers[id]
	if !ok {
		var err error
		c, err = d.load(ctx, id, tmpl)
		if err != nil {
			return nil, err
		}
		d.containers[id] = c
		log.Printf("[Directory] Opened shared container %s", id)
	}
	d.GrantAccess(principal, id)
	return c, nil
}

func (d *Directory) load(ctx context.Context, id string, tmpl Template) (*Container, error) {
	var items map[int]ItemStack

	data, err := d.store.Load(ctx, id)
	switch {
	case err == nil:
		items, err = DecodeItems(data)
		if err != nil {
			// Corrupt persisted bytes: start empty rather than refuse the
			// session, matching the self-heal policy for unknown items.
			log.Printf("[Directory] Failed to decode items for %s, starting empty: %v", id, err)
			items = make(map[int]ItemStack)
		}
	case errors.Is(err, persistence.ErrNotFound):
		items = make(map[int]ItemStack)
	default:
		return nil, fmt.Errorf("%w: load of %s failed: %v", ErrContainerNotFound, id, err)
	}

	return NewContainer(id, tmpl.Label, tmpl.Slots, tmpl.MaxWeight, items, d.catalog, d.containerChanged), nil
}

// Evict flushes the principal's owned container to persistence
// synchronously, tears it down and releases the principal's grants. A
// second call for the same principal is a no-op. A save failure is
// returned (and logged as a durability warning) but never blocks teardown.
func (d *Directory) Evict(ctx context.Context, principal string) error {
	// Release shared grants first; shared containers with no remaining
	// viewers and no owner are flushed and dropped below.
	granted := d.grants[principal]
	delete(d.grants, principal)

	var saveErr error
	for id := range granted {
		if !d.sharedInUse(id) {
			if err := d.teardown(ctx, id); err != nil && saveErr == nil {
				saveErr = err
			}
		}
	}

	id, ok := d.containerOf[principal]
	if !ok {
		return saveErr
	}
	delete(d.containerOf, principal)
	delete(d.ownerOf, id)
	if err := d.teardown(ctx, id); err != nil {
		saveErr = err
	}
	log.Printf("[Directory] Saved and unloaded container %s for %s", id, principal)
	return saveErr
}

// sharedInUse reports whether any principal still owns or has a grant on
// the container.
func (d *Directory) sharedInUse(id string) bool {
	if _, owned := d.ownerOf[id]; owned {
		return true
	}
	for _, set := range d.grants {
		if set[id] {
			return true
		}
	}
	return false
}

// teardown performs the final synchronous save and removes the container
// from the live set.
func (d *Directory) teardown(ctx context.Context, id string) error {
	c, ok := d.containers[id]
	if !ok {
		return nil
	}
	delete(d.containers, id)

	if !PersistedID(id) {
		return nil
	}
	data, err := EncodeItems(c.Snapshot().Items)
	if err == nil {
		err = d.store.Save(ctx, id, data)
	}
	if err != nil {
		log.Printf("[Directory] WARNING: final save of %s failed, state may be lost: %v", id, err)
		return fmt.Errorf("final save of %s: %w", id, err)
	}
	return nil
}

// HandleMove resolves, authorizes and applies one move request, then
// notifies subscribers exactly once per touched container, even when both
// sides of the move are the same container.
func (d *Directory) HandleMove(principal string, req MoveRequest) error {
	from, err := d.Resolve(req.From.Container)
	if err != nil {
		return err
	}
	to, err := d.Resolve(req.To.Container)
	if err != nil {
		return err
	}

	if !d.Authorize(principal, from.ID()) || !d.Authorize(principal, to.ID()) {
		return fmt.Errorf("%w: %s has no claim on %s/%s", ErrAccessDenied, principal, from.ID(), to.ID())
	}

	defer d.flushBatch(d.beginBatch())
	return resolveMove(from, to, req)
}

// HandleUse routes a direct-use request: the consumed unit is removed
// before the registered effect handler sees anything, so the handler
// receives a fact, not a request. Items with no registered handler or a
// non-useable definition are logged and ignored.
func (d *Directory) HandleUse(principal, containerID string, slot int) error {
	c, err := d.Resolve(containerID)
	if err != nil {
		return err
	}
	if !d.Authorize(principal, containerID) {
		return fmt.Errorf("%w: %s has no claim on %s", ErrAccessDenied, principal, containerID)
	}

	stack, ok := c.Get(slot)
	if !ok {
		return fmt.Errorf("%w: %s:%d", ErrSlotEmpty, containerID, slot)
	}
	item, ok := d.catalog.Lookup(stack.Name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrItemUnknown, stack.Name)
	}
	if !item.Useable {
		log.Printf("[Directory] %s tried to use non-useable item %s", principal, item.Name)
		return nil
	}
	handler, ok := d.uses.lookup(item.Name)
	if !ok {
		log.Printf("[Directory] No usable item handler registered for %s", item.Name)
		return nil
	}

	if item.Consumable {
		err := func() error {
			defer d.flushBatch(d.beginBatch())
			return c.RemoveFromSlot(slot, 1)
		}()
		if err != nil {
			return err
		}
	}

	handler(principal, item, slot)
	return nil
}

// HandleRemove validates and removes quantity units from a slot, returning
// the removed stack as a fact for the external effect dispatcher. Drop and
// give requests both reduce to this: there is no engine-side destination.
// Quantity zero means the whole stack.
func (d *Directory) HandleRemove(principal, containerID string, slot, quantity int) (ItemStack, error) {
	c, err := d.Resolve(containerID)
	if err != nil {
		return ItemStack{}, err
	}
	if !d.Authorize(principal, containerID) {
		return ItemStack{}, fmt.Errorf("%w: %s has no claim on %s", ErrAccessDenied, principal, containerID)
	}
	stack, ok := c.Get(slot)
	if !ok {
		return ItemStack{}, fmt.Errorf("%w: %s:%d", ErrSlotEmpty, containerID, slot)
	}
	if quantity <= 0 {
		quantity = stack.Quantity
	}

	err = func() error {
		defer d.flushBatch(d.beginBatch())
		return c.RemoveFromSlot(slot, quantity)
	}()
	if err != nil {
		return ItemStack{}, err
	}

	removed := stack.clone()
	removed.Quantity = quantity
	return removed, nil
}

// AddTo inserts items into a container directly, bypassing authorization.
// This is the entry point for trusted server-side grants (job payouts,
// pickups), not for client requests.
func (d *Directory) AddTo(containerID, name string, quantity int, metadata map[string]any) error {
	c, err := d.Resolve(containerID)
	if err != nil {
		return err
	}
	defer d.flushBatch(d.beginBatch())
	return c.AddItem(name, quantity, metadata)
}

// SnapshotOf returns a snapshot of a live container.
func (d *Directory) SnapshotOf(id string) (Snapshot, error) {
	c, err := d.Resolve(id)
	if err != nil {
		return Snapshot{}, err
	}
	return c.Snapshot(), nil
}

// containerChanged is the change hook installed on every container. Inside
// a request it only records the container; the batch flush dispatches one
// notification per container no matter how many SetSlot calls the request
// issued.
func (d *Directory) containerChanged(c *Container) {
	if d.dirtySeen != nil {
		if !d.dirtySeen[c.ID()] {
			d.dirtySeen[c.ID()] = true
			d.dirty = append(d.dirty, c)
		}
		return
	}
	d.dispatch(c)
}

// beginBatch opens a notification batch and returns a token for flushBatch.
func (d *Directory) beginBatch() bool {
	if d.dirtySeen != nil {
		// Nested mutation inside an already-open batch.
		return false
	}
	d.dirty = nil
	d.dirtySeen = make(map[string]bool, 2)
	return true
}

// flushBatch dispatches the deduplicated notifications collected since
// beginBatch, in touch order.
func (d *Directory) flushBatch(opened bool) {
	if !opened {
		return
	}
	dirty := d.dirty
	d.dirty = nil
	d.dirtySeen = nil
	for _, c := range dirty {
		d.dispatch(c)
	}
}

// dispatch performs the per-mutation contract: schedule a save for
// persisted containers, then publish the snapshot to subscribers.
func (d *Directory) dispatch(c *Container) {
	snap := c.Snapshot()
	if PersistedID(snap.ID) && d.writer != nil {
		data, err := EncodeItems(snap.Items)
		if err != nil {
			log.Printf("[Directory] Failed to encode %s for save: %v", snap.ID, err)
		} else {
			d.writer.Enqueue(snap.ID, data)
		}
	}
	d.notifier.publish(snap)
}
