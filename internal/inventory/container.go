package inventory

import (
	"fmt"
	"log"

	"github.com/gravitas-games/depot/internal/catalog"
)

// Container is a single stateful inventory instance: a fixed number of
// 1-based slots, a weight ceiling and the stacks currently held. All slot
// mutation funnels through SetSlot, which keeps the derived weight current
// and fires the change hook exactly once per successful call.
type Container struct {
	id        string
	label     string
	slots     int
	maxWeight int

	items         map[int]ItemStack
	currentWeight int

	catalog  *catalog.Catalog
	onChange func(*Container)
}

// NewContainer builds a container around an existing slot map (as loaded
// from persistence) and recalculates its weight, self-healing any stack
// whose item no longer exists in the catalog.
func NewContainer(id, label string, slots, maxWeight int, items map[int]ItemStack, cat *catalog.Catalog, onChange func(*Container)) *Container {
	if items == nil {
		items = make(map[int]ItemStack)
	}
	c := &Container{
		id:        id,
		label:     label,
		slots:     slots,
		maxWeight: maxWeight,
		items:     items,
		catalog:   cat,
		onChange:  onChange,
	}
	c.RecalculateWeight()
	return c
}

// ID returns the container identifier.
func (c *Container) ID() string { return c.id }

// Label returns the display label.
func (c *Container) Label() string { return c.label }

// SlotCount returns the number of slots.
func (c *Container) SlotCount() int { return c.slots }

// MaxWeight returns the weight ceiling.
func (c *Container) MaxWeight() int { return c.maxWeight }

// CurrentWeight returns the derived weight of all held stacks.
func (c *Container) CurrentWeight() int { return c.currentWeight }

// Get returns the stack in a slot. The second result is false for an empty
// slot. No side effects.
func (c *Container) Get(slot int) (ItemStack, bool) {
	stack, ok := c.items[slot]
	return stack, ok
}

// SetSlot places a stack into a slot, or clears it when stack is nil. This
// is the only primitive that mutates slot contents; add, remove and move
// are all expressed in terms of it. On success the weight is recalculated
// and the change hook fires once.
func (c *Container) SetSlot(slot int, stack *ItemStack) error {
	if slot < 1 || slot > c.slots {
		return fmt.Errorf("%w: slot %d of %d", ErrInvalidSlot, slot, c.slots)
	}

	if stack != nil {
		c.items[slot] = *stack
	} else {
		delete(c.items, slot)
	}

	c.RecalculateWeight()
	if c.onChange != nil {
		c.onChange(c)
	}
	return nil
}

// RecalculateWeight walks all occupied slots and rebuilds the derived
// weight from catalog unit weights. A stack whose item is missing from the
// catalog is corrupt persisted state: it is dropped and logged rather than
// carried forward.
func (c *Container) RecalculateWeight() int {
	weight := 0
	for slot, stack := range c.items {
		item, ok := c.catalog.Lookup(stack.Name)
		if !ok {
			log.Printf("[Inventory] Config for item %s not found, dropping stack in %s:%d", stack.Name, c.id, slot)
			delete(c.items, slot)
			continue
		}
		weight += item.Weight * stack.Quantity
	}
	c.currentWeight = weight
	return weight
}

// CanAccept reports whether quantity units of the named item would fit:
// the weight ceiling holds and either a compatible non-full stack or an
// empty slot exists.
func (c *Container) CanAccept(name string, quantity int) bool {
	item, ok := c.catalog.Lookup(name)
	if !ok {
		return false
	}
	if c.currentWeight+item.Weight*quantity > c.maxWeight {
		return false
	}
	if c.findStackableSlot(item) != 0 {
		return true
	}
	return c.findEmptySlot() != 0
}

// AddItem inserts quantity units of the named item, merging into compatible
// stacks by ascending slot number, then spilling into empty slots by
// ascending slot number. The full placement is planned before any slot is
// touched: a quantity that does not fit in whole is rejected with no
// mutation at all.
func (c *Container) AddItem(name string, quantity int, metadata map[string]any) error {
	item, ok := c.catalog.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrItemUnknown, name)
	}
	if quantity < 1 {
		return fmt.Errorf("%w: quantity %d", ErrInsufficientQuantity, quantity)
	}
	if c.currentWeight+item.Weight*quantity > c.maxWeight {
		return fmt.Errorf("%w: %s x%d would weigh %d over %d", ErrCapacityExceeded,
			name, quantity, c.currentWeight+item.Weight*quantity, c.maxWeight)
	}

	type placement struct {
		slot  int
		count int
		merge bool
	}
	var plan []placement
	remaining := quantity

	// Merges first: every non-full compatible stack, lowest slot first.
	if !item.Unique {
		for slot := 1; slot <= c.slots && remaining > 0; slot++ {
			stack, occupied := c.items[slot]
			if !occupied || stack.Name != item.Name {
				continue
			}
			moved := remaining
			if item.MaxStack > 0 {
				room := item.MaxStack - stack.Quantity
				if room <= 0 {
					continue
				}
				if moved > room {
					moved = room
				}
			}
			plan = append(plan, placement{slot: slot, count: moved, merge: true})
			remaining -= moved
		}
	}

	// Then empty slots, lowest first, one new stack per slot up to the cap.
	for slot := 1; slot <= c.slots && remaining > 0; slot++ {
		if _, occupied := c.items[slot]; occupied {
			continue
		}
		moved := remaining
		if item.MaxStack > 0 && moved > item.MaxStack {
			moved = item.MaxStack
		}
		plan = append(plan, placement{slot: slot, count: moved})
		remaining -= moved
	}

	if remaining > 0 {
		return fmt.Errorf("%w: no room for %s x%d in %s", ErrCapacityExceeded, name, quantity, c.id)
	}

	for _, p := range plan {
		if p.merge {
			stack := c.items[p.slot]
			stack.Quantity += p.count
			mustSetSlot(c, p.slot, &stack)
			continue
		}
		mustSetSlot(c, p.slot, &ItemStack{
			Name:     name,
			Quantity: p.count,
			Metadata: cloneMetadata(metadata),
		})
	}
	return nil
}

// RemoveFromSlot takes quantity units out of a slot, clearing the slot on
// an exact match.
func (c *Container) RemoveFromSlot(slot int, quantity int) error {
	if slot < 1 || slot > c.slots {
		return fmt.Errorf("%w: slot %d of %d", ErrInvalidSlot, slot, c.slots)
	}
	stack, ok := c.items[slot]
	if !ok {
		return fmt.Errorf("%w: %s:%d", ErrSlotEmpty, c.id, slot)
	}
	if stack.Quantity < quantity {
		return fmt.Errorf("%w: have %d, want %d", ErrInsufficientQuantity, stack.Quantity, quantity)
	}

	if stack.Quantity == quantity {
		return c.SetSlot(slot, nil)
	}
	stack.Quantity -= quantity
	return c.SetSlot(slot, &stack)
}

// findStackableSlot returns the lowest slot holding a non-full stack of the
// item, or 0 if the item is unique or no such slot exists.
func (c *Container) findStackableSlot(item catalog.Item) int {
	if item.Unique {
		return 0
	}
	for slot := 1; slot <= c.slots; slot++ {
		stack, ok := c.items[slot]
		if !ok || stack.Name != item.Name {
			continue
		}
		if item.MaxStack > 0 && stack.Quantity >= item.MaxStack {
			continue
		}
		return slot
	}
	return 0
}

// findEmptySlot returns the lowest unoccupied slot, or 0 when full.
func (c *Container) findEmptySlot() int {
	for slot := 1; slot <= c.slots; slot++ {
		if _, ok := c.items[slot]; !ok {
			return slot
		}
	}
	return 0
}
