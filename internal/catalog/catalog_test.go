package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

const testSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "required": ["label", "weight", "type"],
    "properties": {
      "label": { "type": "string", "minLength": 1 },
      "weight": { "type": "integer", "minimum": 0 },
      "type": { "type": "string", "enum": ["item", "weapon", "account"] },
      "image": { "type": "string" },
      "unique": { "type": "boolean" },
      "useable": { "type": "boolean" },
      "consumable": { "type": "boolean" },
      "description": { "type": "string" },
      "maxStack": { "type": "integer", "minimum": 1 }
    },
    "additionalProperties": false
  }
}`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func testSchemaPath(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "item.schema.json", testSchema)
	return filepath.Join(dir, "item.schema.json")
}

func TestLoadValidDefinitions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "general.json", `{
		"water_bottle": {"label": "Water Bottle", "weight": 500, "type": "item", "useable": true, "consumable": true, "maxStack": 10},
		"bread": {"label": "Bread", "weight": 350, "type": "item"}
	}`)
	writeFile(t, dir, "weapons.json", `{
		"pistol": {"label": "Pistol", "weight": 1100, "type": "weapon", "unique": true}
	}`)
	writeFile(t, dir, "notes.txt", "not an item file")

	c, err := Load(dir, testSchemaPath(t))
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if c.Count() != 3 {
		t.Fatalf("expected 3 items, got %d", c.Count())
	}

	item, ok := c.Lookup("water_bottle")
	if !ok {
		t.Fatalf("water_bottle not registered")
	}
	// The name comes from the config key, not the definition body.
	if item.Name != "water_bottle" || item.Weight != 500 || !item.Consumable || item.MaxStack != 10 {
		t.Fatalf("definition decoded wrong: %+v", item)
	}

	pistol, _ := c.Lookup("pistol")
	if !pistol.Unique {
		t.Fatalf("pistol should be unique: %+v", pistol)
	}
}

func TestLoadSkipsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.json", `{"bread": {"label": "Bread", "weight": 350, "type": "item"}}`)
	// Negative weight fails schema validation; the file is skipped whole.
	writeFile(t, dir, "bad.json", `{"cursed": {"label": "Cursed", "weight": -5, "type": "item"}}`)
	writeFile(t, dir, "broken.json", `{not json at all`)

	c, err := Load(dir, testSchemaPath(t))
	if err != nil {
		t.Fatalf("one bad file must not fail the load: %v", err)
	}
	if c.Count() != 1 {
		t.Fatalf("expected only the good file's item, got %d", c.Count())
	}
	if _, ok := c.Lookup("cursed"); ok {
		t.Fatalf("item from an invalid file leaked into the catalog")
	}
}

func TestLoadMissingDir(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope"), testSchemaPath(t)); err == nil {
		t.Fatalf("expected an error for a missing directory")
	}
}

func TestAllSortedByName(t *testing.T) {
	c := New(
		Item{Name: "zebra", Weight: 1, Type: "item"},
		Item{Name: "apple", Weight: 1, Type: "item"},
		Item{Name: "mango", Weight: 1, Type: "item"},
	)
	all := c.All()
	if len(all) != 3 || all[0].Name != "apple" || all[1].Name != "mango" || all[2].Name != "zebra" {
		t.Fatalf("All() not sorted: %+v", all)
	}
}

func TestNewSkipsUnnamed(t *testing.T) {
	c := New(Item{Label: "nameless", Weight: 1, Type: "item"})
	if c.Count() != 0 {
		t.Fatalf("unnamed definition should be dropped")
	}
}
