// Package catalogs loads the item registry consulted during settlement.
package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// DefaultMaxStack applies to items whose definition leaves max_stack unset.
const DefaultMaxStack = 64

type ItemCatalog struct {
	Palette       []string
	Defs          map[string]ItemDef
	PaletteDigest string
	DefsDigest    string
}

type ItemDef struct {
	ID       string `json:"id"`
	MaxStack int    `json:"max_stack,omitempty"`
}

// Load reads <configDir>/items.json.
func Load(configDir string) (*ItemCatalog, error) {
	return LoadItems(filepath.Join(configDir, "items.json"))
}

func LoadItems(path string) (*ItemCatalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("items.json: %w", err)
	}
	c, err := New(defs)
	if err != nil {
		return nil, fmt.Errorf("items.json: %w", err)
	}
	c.DefsDigest = sha256Hex(raw)
	return c, nil
}

// New builds a catalog from in-memory definitions.
func New(defs []ItemDef) (*ItemCatalog, error) {
	c := &ItemCatalog{Defs: map[string]ItemDef{}}
	for _, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("empty id")
		}
		if d.MaxStack < 0 {
			return nil, fmt.Errorf("%s: negative max_stack", d.ID)
		}
		if d.MaxStack == 0 {
			d.MaxStack = DefaultMaxStack
		}
		c.Defs[d.ID] = d
	}
	ids := make([]string, 0, len(c.Defs))
	for id := range c.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	c.Palette = ids
	palJSON, _ := json.Marshal(ids)
	c.PaletteDigest = sha256Hex(palJSON)
	return c, nil
}

func (c *ItemCatalog) Exists(id string) bool {
	if c == nil {
		return false
	}
	_, ok := c.Defs[id]
	return ok
}

// MaxStackSize falls back to DefaultMaxStack for unknown items.
func (c *ItemCatalog) MaxStackSize(id string) int {
	if c != nil {
		if d, ok := c.Defs[id]; ok {
			return d.MaxStack
		}
	}
	return DefaultMaxStack
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
