package settlement

// ItemRegistry answers whether an item id is known and how many units fit
// in one slot.
type ItemRegistry interface {
	Exists(item string) bool
	MaxStackSize(item string) int
}

// Buyer is the purchasing player.
type Buyer interface {
	Inventory() Inventory
	// Drop places stacks that did not fit on the ground at the buyer.
	Drop(s ItemStack)
	// NotifyPickup is told what landed in the inventory.
	NotifyPickup(s ItemStack)
}

// Inventories handed out by BlockEntity and VolumeScanner must be comparable
// (typically pointers); the same inventory seen twice is counted once.

// BlockEntity is anything the spatial index tracks. Only entities exposing
// a container take part in settlement.
type BlockEntity interface {
	Center() Vec3
	Container() (Inventory, bool)
}

// SpatialIndex returns block entities near center, nearest first.
type SpatialIndex interface {
	Nearby(center Vec3, rx, ry, rz float64) []BlockEntity
}

// VolumeScanner inspects a single block position.
type VolumeScanner interface {
	ContainerAt(p BlockPos) (Inventory, bool)
}

// TraderLocator resolves a trader reference to its current position.
type TraderLocator interface {
	TraderPosition(ref string) (Vec3, bool)
}
