// Package legacy reads the flat key-value shop file that predates the
// relational and JSON stores.
//
// Keys have the shapes
//
//	shop.<ownerId>.<slot>.{name|owner|traderUuid}
//	trade.<ownerId>.<slot>.<tradeId>.{input|inputQty|output|outputQty}
//
// and may be written either flat or as nested YAML maps; both forms are
// flattened to dotted keys before parsing.
package legacy

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// BackupSuffix is appended to the legacy file name once it has been imported.
const BackupSuffix = ".bak"

type ShopEntry struct {
	OwnerID   string
	Slot      string
	Name      string
	OwnerName string
	TraderRef string
}

type TradeEntry struct {
	OwnerID   string
	Slot      string
	TradeID   int
	Input     string
	InputQty  int
	Output    string
	OutputQty int
}

type File struct {
	Shops  []ShopEntry
	Trades []TradeEntry
}

func Read(path string) (File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	f, err := Parse(raw)
	if err != nil {
		return File{}, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

func Parse(raw []byte) (File, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return File{}, err
	}
	flat := map[string]string{}
	flatten("", doc, flat)

	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out File

	// Pass 1: shops, keyed by the name entry; owner/traderUuid are siblings.
	for _, k := range keys {
		parts := strings.Split(k, ".")
		if len(parts) != 4 || parts[0] != "shop" || parts[3] != "name" {
			continue
		}
		owner, slot := parts[1], parts[2]
		prefix := "shop." + owner + "." + slot + "."
		out.Shops = append(out.Shops, ShopEntry{
			OwnerID:   owner,
			Slot:      slot,
			Name:      flat[k],
			OwnerName: flat[prefix+"owner"],
			TraderRef: strings.TrimSpace(flat[prefix+"traderUuid"]),
		})
	}

	// Pass 2: trades, grouped by owner/slot/id.
	type tradeKey struct {
		owner, slot string
		id          int
	}
	byKey := map[tradeKey]*TradeEntry{}
	var order []tradeKey
	for _, k := range keys {
		parts := strings.Split(k, ".")
		if len(parts) != 5 || parts[0] != "trade" {
			continue
		}
		id, err := strconv.Atoi(parts[3])
		if err != nil {
			return File{}, fmt.Errorf("key %s: bad trade id: %w", k, err)
		}
		tk := tradeKey{owner: parts[1], slot: parts[2], id: id}
		te := byKey[tk]
		if te == nil {
			te = &TradeEntry{OwnerID: tk.owner, Slot: tk.slot, TradeID: id}
			byKey[tk] = te
			order = append(order, tk)
		}
		v := flat[k]
		switch parts[4] {
		case "input":
			te.Input = v
		case "output":
			te.Output = v
		case "inputQty":
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return File{}, fmt.Errorf("key %s: %w", k, err)
			}
			te.InputQty = n
		case "outputQty":
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return File{}, fmt.Errorf("key %s: %w", k, err)
			}
			te.OutputQty = n
		}
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.owner != b.owner {
			return a.owner < b.owner
		}
		if a.slot != b.slot {
			return a.slot < b.slot
		}
		return a.id < b.id
	})
	for _, tk := range order {
		out.Trades = append(out.Trades, *byKey[tk])
	}
	return out, nil
}

func flatten(prefix string, v any, out map[string]string) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			flatten(join(prefix, k), child, out)
		}
	case map[any]any:
		for k, child := range t {
			flatten(join(prefix, fmt.Sprint(k)), child, out)
		}
	case nil:
		out[prefix] = ""
	default:
		out[prefix] = fmt.Sprint(t)
	}
}

func join(prefix, k string) string {
	if prefix == "" {
		return k
	}
	return prefix + "." + k
}
