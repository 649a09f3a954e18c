package settlement

import (
	"math"

	"tradepost.ai/internal/tuning"
)

const (
	ModeFixed   = "fixed"
	ModeDynamic = "dynamic"

	DefaultRadius        = 2
	DefaultMaxContainers = 64
)

// SearchConfig controls the stock container search around a trader.
type SearchConfig struct {
	Mode          string
	FixedDistance int
	MaxContainers int
	// Tuning is consulted in dynamic mode. Nil means the defaults.
	Tuning *tuning.TradeTuning
}

// Radii returns the horizontal and vertical radius and the container limit.
func (c SearchConfig) Radii() (h, v float64, limit int) {
	if c.Mode == ModeDynamic {
		h, v, limit = DefaultRadius, DefaultRadius, DefaultMaxContainers
		if t := c.Tuning; t != nil {
			if t.SearchHorizontal > 0 {
				h = t.SearchHorizontal
			}
			if t.SearchVertical > 0 {
				v = t.SearchVertical
			}
			if t.MaxContainers > 0 {
				limit = t.MaxContainers
			}
		}
		return h, v, limit
	}
	d := c.FixedDistance
	if d < 1 {
		d = DefaultRadius
	}
	limit = c.MaxContainers
	if limit <= 0 {
		limit = DefaultMaxContainers
	}
	return float64(d), float64(d), limit
}

type discovery struct {
	containers []Inventory
	path       string
}

func (e *Engine) discover(traderRef string) discovery {
	if e.traders == nil {
		return discovery{path: "none"}
	}
	pos, ok := e.traders.TraderPosition(traderRef)
	if !ok {
		return discovery{path: "none"}
	}
	h, v, limit := e.search.Radii()
	box := Box{Center: pos, Horizontal: h, Vertical: v}

	if e.index != nil {
		if found := indexedContainers(e.index, box, limit); len(found) > 0 {
			return discovery{containers: found, path: "index"}
		}
	}
	if e.scanner != nil {
		return discovery{containers: scanContainers(e.scanner, box, limit), path: "scan"}
	}
	return discovery{path: "none"}
}

// containerSet collects inventories once each. Several block entities or
// positions can front the same inventory, e.g. both halves of a double chest.
type containerSet struct {
	list []Inventory
	seen map[Inventory]struct{}
}

func (c *containerSet) add(inv Inventory) bool {
	if c.seen == nil {
		c.seen = map[Inventory]struct{}{}
	}
	if _, dup := c.seen[inv]; dup {
		return false
	}
	c.seen[inv] = struct{}{}
	c.list = append(c.list, inv)
	return true
}

func indexedContainers(index SpatialIndex, box Box, limit int) []Inventory {
	var out containerSet
	for _, ent := range index.Nearby(box.Center, box.Horizontal, box.Vertical, box.Horizontal) {
		if ent == nil || !box.Contains(ent.Center()) {
			continue
		}
		inv, ok := ent.Container()
		if !ok || inv == nil {
			continue
		}
		if out.add(inv) && len(out.list) >= limit {
			break
		}
	}
	return out.list
}

// scanContainers walks every block whose center can fall inside box,
// x then y then z ascending.
func scanContainers(scanner VolumeScanner, box Box, limit int) []Inventory {
	base := BlockAt(box.Center)
	rh := int(math.Ceil(box.Horizontal))
	rv := int(math.Ceil(box.Vertical))
	var out containerSet
	for x := base.X - rh; x <= base.X+rh; x++ {
		for y := base.Y - rv; y <= base.Y+rv; y++ {
			for z := base.Z - rh; z <= base.Z+rh; z++ {
				p := BlockPos{X: x, Y: y, Z: z}
				if !box.Contains(p.Center()) {
					continue
				}
				inv, ok := scanner.ContainerAt(p)
				if !ok || inv == nil {
					continue
				}
				if out.add(inv) && len(out.list) >= limit {
					return out.list
				}
			}
		}
	}
	return out.list
}
