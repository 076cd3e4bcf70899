package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Item describes the static attributes of an item definition. Definitions
// are loaded once at startup and never mutated afterwards.
type Item struct {
	// Unique ID, e.g. "water_bottle". Populated from the config file key.
	Name string `json:"name"`
	// Display name, e.g. "Water Bottle".
	Label string `json:"label"`
	// Weight in grams per unit.
	Weight int `json:"weight"`
	// Item type: "item", "weapon" or "account".
	Type string `json:"type"`
	// Image file name shown by clients.
	Image string `json:"image"`
	// Unique items never stack; each occupies its own slot.
	Unique bool `json:"unique"`
	// Useable items can be activated from the inventory.
	Useable bool `json:"useable"`
	// Consumable items lose one unit when used.
	Consumable bool `json:"consumable"`
	Description string `json:"description"`
	// MaxStack caps the quantity of a single stack. Zero means unbounded.
	MaxStack int `json:"maxStack,omitempty"`
}

// Catalog is the read-only item definition registry. It is constructed once
// at startup and safe for concurrent reads afterwards.
type Catalog struct {
	items map[string]Item
}

// New builds a catalog directly from item definitions. Intended for tests
// and embedding hosts that manage their own config loading.
func New(items ...Item) *Catalog {
	c := &Catalog{items: make(map[string]Item, len(items))}
	for _, it := range items {
		if it.Name == "" {
			continue
		}
		c.items[it.Name] = it
	}
	return c
}

// Load reads every *.json file in dir. Each file holds an object mapping
// item name to its definition. Files are validated against the JSON schema
// at schemaPath before registration; a file that fails validation is
// skipped so one bad file cannot take the whole catalog down.
func Load(dir, schemaPath string) (*Catalog, error) {
	schema, err := jsonschema.Compile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to compile item schema: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read item config dir: %w", err)
	}

	c := &Catalog{items: make(map[string]Item)}
	files := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		files++
		path := filepath.Join(dir, entry.Name())
		if err := c.loadFile(path, schema); err != nil {
			log.Printf("[Catalog] Skipping %s: %v", entry.Name(), err)
		}
	}

	log.Printf("[Catalog] Loaded %d item(s) from %d file(s) in %s", len(c.items), files, dir)
	return c, nil
}

func (c *Catalog) loadFile(path string, schema *jsonschema.Schema) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	// Validate the raw document before decoding into typed structs.
	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("failed to parse file: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	var defs map[string]Item
	if err := json.Unmarshal(data, &defs); err != nil {
		return fmt.Errorf("failed to decode definitions: %w", err)
	}

	for name, item := range defs {
		if _, exists := c.items[name]; exists {
			log.Printf("[Catalog] Duplicate item key %q in %s. Overwriting!", name, filepath.Base(path))
		}
		item.Name = name
		c.items[name] = item
	}
	return nil
}

// Lookup returns the definition for the provided item name, if present.
func (c *Catalog) Lookup(name string) (Item, bool) {
	item, ok := c.items[name]
	return item, ok
}

// Count returns the number of registered definitions.
func (c *Catalog) Count() int {
	return len(c.items)
}

// All returns every definition sorted by name, suitable for sending to
// clients on join.
func (c *Catalog) All() []Item {
	out := make([]Item, 0, len(c.items))
	for _, item := range c.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
