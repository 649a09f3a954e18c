package settlement

// ItemStack is an item id and a unit count. The zero value is an empty slot.
type ItemStack struct {
	Item  string
	Count int
}

func (s ItemStack) Empty() bool { return s.Item == "" || s.Count <= 0 }

// Inventory is a fixed-capacity ordered slot sequence. Player inventories
// and container states both satisfy it.
type Inventory interface {
	Len() int
	Slot(i int) ItemStack
	SetSlot(i int, s ItemStack)
}

// SlotInventory is a plain in-memory Inventory.
type SlotInventory struct {
	slots []ItemStack
}

func NewSlotInventory(size int, stacks ...ItemStack) *SlotInventory {
	inv := &SlotInventory{slots: make([]ItemStack, size)}
	copy(inv.slots, stacks)
	return inv
}

func (inv *SlotInventory) Len() int { return len(inv.slots) }

func (inv *SlotInventory) Slot(i int) ItemStack {
	if i < 0 || i >= len(inv.slots) {
		return ItemStack{}
	}
	return inv.slots[i]
}

func (inv *SlotInventory) SetSlot(i int, s ItemStack) {
	if i < 0 || i >= len(inv.slots) {
		return
	}
	if s.Empty() {
		s = ItemStack{}
	}
	inv.slots[i] = s
}

// CountItem sums item across all slots.
func CountItem(inv Inventory, item string) int {
	total := 0
	for i := 0; i < inv.Len(); i++ {
		if s := inv.Slot(i); !s.Empty() && s.Item == item {
			total += s.Count
		}
	}
	return total
}

// RemoveItem takes up to n units of item, scanning slots in ascending order,
// and returns how many were removed.
func RemoveItem(inv Inventory, item string, n int) int {
	removed := 0
	for i := 0; i < inv.Len() && removed < n; i++ {
		s := inv.Slot(i)
		if s.Empty() || s.Item != item {
			continue
		}
		take := n - removed
		if take > s.Count {
			take = s.Count
		}
		s.Count -= take
		inv.SetSlot(i, s)
		removed += take
	}
	return removed
}

// AddItem places n units of item, topping up matching stacks first and then
// filling empty slots, and returns the remainder that did not fit.
func AddItem(inv Inventory, item string, n, maxStack int) int {
	if maxStack <= 0 || n <= 0 {
		return n
	}
	left := n
	for i := 0; i < inv.Len() && left > 0; i++ {
		s := inv.Slot(i)
		if s.Empty() || s.Item != item || s.Count >= maxStack {
			continue
		}
		put := min(maxStack-s.Count, left)
		s.Count += put
		inv.SetSlot(i, s)
		left -= put
	}
	for i := 0; i < inv.Len() && left > 0; i++ {
		if !inv.Slot(i).Empty() {
			continue
		}
		put := min(maxStack, left)
		inv.SetSlot(i, ItemStack{Item: item, Count: put})
		left -= put
	}
	return left
}

// FreeSpaceFor estimates how many units of item inv can still absorb:
// a full stack per empty slot plus the headroom of matching stacks.
func FreeSpaceFor(inv Inventory, item string, maxStack int) int {
	space := 0
	for i := 0; i < inv.Len(); i++ {
		s := inv.Slot(i)
		switch {
		case s.Empty():
			space += maxStack
		case s.Item == item && s.Count < maxStack:
			space += maxStack - s.Count
		}
	}
	return space
}

func snapshotSlots(inv Inventory) []ItemStack {
	out := make([]ItemStack, inv.Len())
	for i := range out {
		out[i] = inv.Slot(i)
	}
	return out
}

func restoreSlots(inv Inventory, slots []ItemStack) {
	for i, s := range slots {
		inv.SetSlot(i, s)
	}
}
