package inventory

import (
	"log"

	"github.com/gravitas-games/depot/internal/catalog"
)

// UseHandler runs the side effect of a used item. By the time it fires,
// the engine has already validated the request and removed the consumed
// unit; the handler acts on a fact.
type UseHandler func(principal string, item catalog.Item, slot int)

// UseRegistry maps item names to their use-effect handlers. Registration
// happens at startup; lookups happen on the engine goroutine.
type UseRegistry struct {
	handlers map[string]UseHandler
}

// NewUseRegistry creates an empty registry.
func NewUseRegistry() *UseRegistry {
	return &UseRegistry{handlers: make(map[string]UseHandler)}
}

// Register installs the handler for an item name, replacing (with a
// warning) any previous one.
func (r *UseRegistry) Register(name string, handler UseHandler) {
	if _, exists := r.handlers[name]; exists {
		log.Printf("[UseRegistry] Overwriting usable item handler for %s", name)
	}
	r.handlers[name] = handler
	log.Printf("[UseRegistry] Registered usable item: %s", name)
}

func (r *UseRegistry) lookup(name string) (UseHandler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}
