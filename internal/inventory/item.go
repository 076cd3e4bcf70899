package inventory

// ItemStack is one occupied slot's contents: an item name, a quantity and
// optional per-stack metadata (serial numbers, durability, ...). The stack
// itself enforces nothing; quantity caps are the resolver's job.
type ItemStack struct {
	Name     string         `json:"name"`
	Quantity int            `json:"quantity"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// clone returns a value copy with its own metadata map so that snapshots
// never alias live slot state.
func (s ItemStack) clone() ItemStack {
	out := s
	if s.Metadata != nil {
		out.Metadata = make(map[string]any, len(s.Metadata))
		for k, v := range s.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// cloneMetadata copies a metadata map, preserving nil.
func cloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
