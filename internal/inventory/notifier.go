package inventory

// Subscriber receives a container snapshot after every committed mutation.
// Delivery is exactly once per mutation; the snapshot is the source of
// truth, so subscribers must never need diffs to stay correct.
type Subscriber interface {
	ContainerChanged(snap Snapshot)
}

// Notifier fans a committed mutation out to every registered subscriber
// (persistence, presentation viewers, ...). A shared container can have
// several interested parties, which is why this is a list and not a single
// callback.
type Notifier struct {
	subs []Subscriber
}

// Subscribe registers a subscriber. Not safe to call while the engine is
// dispatching; wire subscribers up at startup.
func (n *Notifier) Subscribe(s Subscriber) {
	if s == nil {
		return
	}
	n.subs = append(n.subs, s)
}

func (n *Notifier) publish(snap Snapshot) {
	for _, s := range n.subs {
		s.ContainerChanged(snap)
	}
}
