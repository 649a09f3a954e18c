package settlement

import "math"

// Vec3 is a world position. Y is up.
type Vec3 struct {
	X, Y, Z float64
}

// BlockPos is an integer block coordinate.
type BlockPos struct {
	X, Y, Z int
}

func (p BlockPos) Center() Vec3 {
	return Vec3{X: float64(p.X) + 0.5, Y: float64(p.Y) + 0.5, Z: float64(p.Z) + 0.5}
}

func BlockAt(v Vec3) BlockPos {
	return BlockPos{X: int(math.Floor(v.X)), Y: int(math.Floor(v.Y)), Z: int(math.Floor(v.Z))}
}

// Box is an axis-aligned search volume around a center with one radius for
// both horizontal axes and one for the vertical axis.
type Box struct {
	Center     Vec3
	Horizontal float64
	Vertical   float64
}

func (b Box) Contains(v Vec3) bool {
	return math.Abs(v.X-b.Center.X) <= b.Horizontal &&
		math.Abs(v.Y-b.Center.Y) <= b.Vertical &&
		math.Abs(v.Z-b.Center.Z) <= b.Horizontal
}
