package rules

import "fmt"

// BoundaryMode governs how neighbor lookups beyond the grid extent resolve.
// The numeric values are part of the compute kernel ABI and must match the
// constants in the WGSL sources.
type BoundaryMode uint32

const (
	// Toroidal wraps out-of-range coordinates around to the opposite edge.
	Toroidal BoundaryMode = iota
	// Mirror reflects out-of-range coordinates back into the grid. A single
	// reflection suffices because neighbor offsets are only ever ±1.
	Mirror
	// Fixed treats everything beyond the grid as permanently dead.
	Fixed
	// Infinite behaves like Fixed for neighbor resolution; the grid does not
	// represent growth beyond its extent.
	Infinite
)

// String returns the mode's display name.
func (m BoundaryMode) String() string {
	switch m {
	case Toroidal:
		return "Toroidal"
	case Mirror:
		return "Mirror"
	case Fixed:
		return "Fixed"
	case Infinite:
		return "Infinite"
	default:
		return "Unknown"
	}
}

// ParseBoundaryMode resolves a display name back to a BoundaryMode.
//
// Parameters:
//   - name: one of "Toroidal", "Mirror", "Fixed", "Infinite"
//
// Returns:
//   - BoundaryMode: the parsed mode
//   - error: non-nil if the name is not recognized
func ParseBoundaryMode(name string) (BoundaryMode, error) {
	switch name {
	case "Toroidal":
		return Toroidal, nil
	case "Mirror":
		return Mirror, nil
	case "Fixed":
		return Fixed, nil
	case "Infinite":
		return Infinite, nil
	default:
		return Toroidal, fmt.Errorf("rules: unknown boundary mode %q", name)
	}
}

// ResolveCoord maps a possibly out-of-range axis coordinate to an in-range one
// according to the boundary mode. Applied independently per axis.
//
// Parameters:
//   - coord: the coordinate to resolve, possibly outside [0, extent)
//   - extent: the grid extent along this axis
//   - mode: the boundary mode
//
// Returns:
//   - int: the resolved coordinate, meaningful only when ok is true
//   - bool: false when the coordinate resolves to the dead region
func ResolveCoord(coord, extent int, mode BoundaryMode) (int, bool) {
	if coord >= 0 && coord < extent {
		return coord, true
	}
	switch mode {
	case Toroidal:
		return ((coord % extent) + extent) % extent, true
	case Mirror:
		if coord < 0 {
			coord = -coord
		}
		if coord >= extent {
			coord = 2*extent - coord - 1
		}
		return coord, true
	default:
		return 0, false
	}
}
