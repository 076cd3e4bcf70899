package inventory

import "fmt"

// SlotRef addresses one slot of one container.
type SlotRef struct {
	Container string `json:"inventory"`
	Slot      int    `json:"slot"`
}

// MoveRequest is a client intent to move the stack (or part of it) at From
// onto To. Quantity zero means the whole source stack. Requests are
// ephemeral; they are validated, applied and forgotten.
type MoveRequest struct {
	From     SlotRef `json:"from"`
	To       SlotRef `json:"to"`
	Quantity int     `json:"quantity,omitempty"`
}

// resolveMove classifies a move into empty-slot placement, stack-merge or
// swap and applies it as one atomic transition across the two (possibly
// identical) containers. Capacity is validated before any SetSlot is
// issued, so a rejection leaves both containers untouched.
func resolveMove(from, to *Container, req MoveRequest) error {
	fromSlot, toSlot := req.From.Slot, req.To.Slot
	if fromSlot < 1 || fromSlot > from.slots {
		return fmt.Errorf("%w: source slot %d of %d", ErrInvalidSlot, fromSlot, from.slots)
	}
	if toSlot < 1 || toSlot > to.slots {
		return fmt.Errorf("%w: destination slot %d of %d", ErrInvalidSlot, toSlot, to.slots)
	}

	same := from == to
	if same && fromSlot == toSlot {
		// Dropping a stack back onto itself is a no-op, not an error.
		return nil
	}

	fromStack, ok := from.items[fromSlot]
	if !ok {
		return fmt.Errorf("%w: %s:%d", ErrSlotEmpty, from.id, fromSlot)
	}
	item, ok := from.catalog.Lookup(fromStack.Name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrItemUnknown, fromStack.Name)
	}

	quantity := req.Quantity
	if quantity <= 0 {
		quantity = fromStack.Quantity
	}
	if quantity > fromStack.Quantity {
		return fmt.Errorf("%w: have %d, want %d", ErrInsufficientQuantity, fromStack.Quantity, quantity)
	}

	toStack, occupied := to.items[toSlot]

	// Case 1: destination empty.
	if !occupied {
		if !same && to.currentWeight+item.Weight*quantity > to.maxWeight {
			return fmt.Errorf("%w: %s cannot take %s x%d", ErrCapacityExceeded, to.id, item.Name, quantity)
		}

		if quantity == fromStack.Quantity && !item.Unique {
			// Whole-stack relocation: the stack object moves as-is.
			mustSetSlot(from, fromSlot, nil)
			mustSetSlot(to, toSlot, &fromStack)
			return nil
		}

		// Partial quantity or unique item: synthesize a new stack at the
		// destination and shrink the source.
		placed := ItemStack{
			Name:     fromStack.Name,
			Quantity: quantity,
			Metadata: cloneMetadata(fromStack.Metadata),
		}
		if quantity == fromStack.Quantity {
			mustSetSlot(from, fromSlot, nil)
		} else {
			remainder := fromStack
			remainder.Quantity -= quantity
			mustSetSlot(from, fromSlot, &remainder)
		}
		mustSetSlot(to, toSlot, &placed)
		return nil
	}

	// Case 2: stack-merge. Requires the same stackable item with headroom;
	// a destination already at max stack degrades to a swap.
	if toStack.Name == fromStack.Name && !item.Unique &&
		(item.MaxStack == 0 || toStack.Quantity < item.MaxStack) {

		moved := quantity
		if item.MaxStack > 0 {
			if room := item.MaxStack - toStack.Quantity; moved > room {
				moved = room
			}
		}
		if !same && to.currentWeight+item.Weight*moved > to.maxWeight {
			return fmt.Errorf("%w: %s cannot absorb %s x%d", ErrCapacityExceeded, to.id, item.Name, moved)
		}

		if moved == fromStack.Quantity {
			mustSetSlot(from, fromSlot, nil)
		} else {
			remainder := fromStack
			remainder.Quantity -= moved
			mustSetSlot(from, fromSlot, &remainder)
		}
		merged := toStack
		merged.Quantity += moved
		mustSetSlot(to, toSlot, &merged)
		return nil
	}

	// Case 3: swap. Whole stacks exchange slots; each side's weight ceiling
	// is rechecked independently since items are exchanged, not removed.
	toItem, ok := to.catalog.Lookup(toStack.Name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrItemUnknown, toStack.Name)
	}
	if !same {
		fromWeight := from.currentWeight - item.Weight*fromStack.Quantity + toItem.Weight*toStack.Quantity
		if fromWeight > from.maxWeight {
			return fmt.Errorf("%w: swap would put %s at %d over %d", ErrCapacityExceeded, from.id, fromWeight, from.maxWeight)
		}
		toWeight := to.currentWeight - toItem.Weight*toStack.Quantity + item.Weight*fromStack.Quantity
		if toWeight > to.maxWeight {
			return fmt.Errorf("%w: swap would put %s at %d over %d", ErrCapacityExceeded, to.id, toWeight, to.maxWeight)
		}
	}

	mustSetSlot(from, fromSlot, &toStack)
	mustSetSlot(to, toSlot, &fromStack)
	return nil
}

// mustSetSlot applies a SetSlot whose slot index was already validated; a
// failure here would mean the resolver's precondition checks are broken.
func mustSetSlot(c *Container, slot int, stack *ItemStack) {
	if err := c.SetSlot(slot, stack); err != nil {
		panic(fmt.Sprintf("inventory: setSlot after validation failed: %v", err))
	}
}
