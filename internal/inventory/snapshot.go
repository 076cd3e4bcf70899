package inventory

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Snapshot is an immutable point-in-time copy of a container's visible
// state. Subscribers (persistence, presentation) only ever see snapshots,
// never live slot maps.
type Snapshot struct {
	ID            string            `json:"id"`
	Label         string            `json:"label"`
	Slots         int               `json:"slots"`
	MaxWeight     int               `json:"maxWeight"`
	CurrentWeight int               `json:"currentWeight"`
	Items         map[int]ItemStack `json:"items"`
}

// Snapshot returns a deep copy of the container's state.
func (c *Container) Snapshot() Snapshot {
	items := make(map[int]ItemStack, len(c.items))
	for slot, stack := range c.items {
		items[slot] = stack.clone()
	}
	return Snapshot{
		ID:            c.id,
		Label:         c.label,
		Slots:         c.slots,
		MaxWeight:     c.maxWeight,
		CurrentWeight: c.currentWeight,
		Items:         items,
	}
}

// slotEntry is the wire shape of one occupied slot: a [slot, stack] pair.
type slotEntry struct {
	Slot  int
	Stack ItemStack
}

func (e slotEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{e.Slot, e.Stack})
}

func (e *slotEntry) UnmarshalJSON(data []byte) error {
	var pair [2]json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if err := json.Unmarshal(pair[0], &e.Slot); err != nil {
		return fmt.Errorf("bad slot number: %w", err)
	}
	if err := json.Unmarshal(pair[1], &e.Stack); err != nil {
		return fmt.Errorf("bad item stack: %w", err)
	}
	return nil
}

// EncodeItems serializes a slot map as a JSON array of [slot, stack] pairs
// ordered by slot number. This is the persisted representation of a
// container; everything else about it is derived or comes from config.
func EncodeItems(items map[int]ItemStack) ([]byte, error) {
	entries := make([]slotEntry, 0, len(items))
	for slot, stack := range items {
		entries = append(entries, slotEntry{Slot: slot, Stack: stack})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Slot < entries[j].Slot })
	return json.Marshal(entries)
}

// DecodeItems parses the persisted [slot, stack] pair form back into a slot
// map. Empty input yields an empty map.
func DecodeItems(data []byte) (map[int]ItemStack, error) {
	items := make(map[int]ItemStack)
	if len(data) == 0 {
		return items, nil
	}
	var entries []slotEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode item entries: %w", err)
	}
	for _, e := range entries {
		items[e.Slot] = e.Stack
	}
	return items, nil
}
