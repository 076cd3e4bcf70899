package inventory

import "errors"

// Request-level failures. Every one is terminal for the request that raised
// it: state is left untouched and the specific reason is reported to the
// caller. None of these are ever raised as panics.
var (
	// ErrContainerNotFound means a container id could not be resolved to a
	// live container, including the case where persistence was unavailable
	// during load.
	ErrContainerNotFound = errors.New("container not found")

	// ErrInvalidSlot means a slot index fell outside [1, slotCount].
	ErrInvalidSlot = errors.New("invalid slot")

	// ErrSlotEmpty means the addressed source slot holds no stack.
	ErrSlotEmpty = errors.New("slot empty")

	// ErrInsufficientQuantity means a removal asked for more units than the
	// slot holds.
	ErrInsufficientQuantity = errors.New("insufficient quantity")

	// ErrCapacityExceeded means the mutation would breach the container's
	// weight ceiling or no slot could hold the item.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrAccessDenied means the requesting principal holds no claim on one
	// of the containers the request targets.
	ErrAccessDenied = errors.New("access denied")

	// ErrItemUnknown means an item id is missing from the catalog. During
	// weight recalculation this indicates corrupt persisted state and is
	// self-healed; on a live request it rejects the request.
	ErrItemUnknown = errors.New("unknown item")
)
