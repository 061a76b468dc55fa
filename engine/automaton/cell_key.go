package automaton

// MaxAxisExtent is the exclusive per-axis coordinate bound for collision-free
// key packing: 20 bits per axis. The sparse engine rejects dimensions at or
// above this bound at construction instead of assuming it.
const MaxAxisExtent = 1 << 20

const axisMask = MaxAxisExtent - 1

// CellKey is a bijective packed integer encoding of a cell position, used as
// the sparse engine's hash key to avoid tuple-hash overhead. Packing is only
// collision-free while every coordinate is below MaxAxisExtent.
type CellKey uint64

// PackCellKey encodes a position. Coordinates must already be in range; the
// sparse engine's extent check at construction guarantees that.
//
// Parameters:
//   - x, y, z: the cell position, each in [0, MaxAxisExtent)
//
// Returns:
//   - CellKey: the packed key
func PackCellKey(x, y, z int) CellKey {
	return CellKey(uint64(z)<<40 | uint64(y)<<20 | uint64(x))
}

// Coords decodes the packed position.
//
// Returns:
//   - x, y, z: the cell position
func (k CellKey) Coords() (x, y, z int) {
	x = int(k & axisMask)
	y = int((k >> 20) & axisMask)
	z = int((k >> 40) & axisMask)
	return x, y, z
}
