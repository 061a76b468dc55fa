// Package automaton implements the 3D generalized Game-of-Life engines: a
// dense, accelerator-parallel grid and a sparse, CPU-incremental grid, both
// behind one capability interface consumed by the save/load and runner
// collaborators.
package automaton

import "github.com/Carmen-Shannon/voxel-life/engine/rules"

// Grid is the capability interface shared by both engines. Implementations
// are safe for concurrent use in the minimal sense required by the engines'
// contract: all operations on one instance are serialized, so no mutation can
// interleave with an in-flight Step. Callers still must not expect two Steps
// to overlap; a Step always runs to completion before the next begins.
type Grid interface {
	// Step advances the grid by exactly one generation. Synchronous: it
	// returns only after the full pass (and, for the dense engine, the device
	// completion barrier) has finished.
	//
	// Returns:
	//   - error: non-nil if the underlying pass failed; the visible state is
	//     unchanged on error
	Step() error

	// SetCell sets a single cell's state. Out-of-range coordinates are a
	// silent no-op: boundary math routinely produces transient out-of-range
	// probes, so the permissive policy is deliberate.
	//
	// Parameters:
	//   - x, y, z: the cell position
	//   - alive: the new state
	//
	// Returns:
	//   - error: non-nil only on a device I/O failure (dense engine)
	SetCell(x, y, z int, alive bool) error

	// GetCell reads a single cell's state. Out-of-range coordinates read as
	// dead.
	//
	// Parameters:
	//   - x, y, z: the cell position
	//
	// Returns:
	//   - bool: the cell's state, false out of range
	GetCell(x, y, z int) bool

	// Clear kills every cell and resets generation and population to zero.
	Clear() error

	// Randomize overwrites every cell, making each independently live with
	// probability density. Expected population is density times volume, not
	// an exact count. Resets the generation counter.
	//
	// Parameters:
	//   - density: live probability in [0, 1]
	//
	// Returns:
	//   - error: non-nil if density is out of range or the upload failed
	Randomize(density float64) error

	// Resize destroys and reallocates all state for the new dimensions. No
	// content is carried over: population and generation are zero afterwards.
	//
	// Parameters:
	//   - w, h, d: the new dimensions, all of which must be positive
	//
	// Returns:
	//   - error: ErrZeroDimension before any allocation when a dimension is
	//     zero or negative; otherwise non-nil only on allocation failure
	Resize(w, h, d int) error

	// Population returns the number of live cells as of the last completed
	// operation.
	Population() int

	// Generation returns the monotonically increasing step counter.
	Generation() uint64

	// Dimensions returns the grid extents.
	Dimensions() (w, h, d int)

	// Rule returns the active rule set.
	Rule() rules.RuleSet

	// SetRule replaces the active rule set. Takes effect on the next Step.
	// The rule must pass rules.RuleSet.Validate; on error the active rule is
	// unchanged. The engines share this gate: a rule the sparse frontier
	// cannot honor (birth on zero neighbors) must never reach either engine,
	// or their live sets silently diverge.
	//
	// Parameters:
	//   - r: the rule set
	//
	// Returns:
	//   - error: non-nil if the rule is invalid
	SetRule(r rules.RuleSet) error

	// Boundary returns the active boundary mode.
	Boundary() rules.BoundaryMode

	// SetBoundary replaces the active boundary mode. Takes effect on the next
	// Step.
	SetBoundary(mode rules.BoundaryMode)

	// Snapshot produces a complete self-describing copy of the grid state for
	// the save/load collaborators. The dense engine requires the
	// host snapshot to be Clean: call SyncFromDevice after stepping, or
	// Snapshot returns ErrStateDirty.
	//
	// Returns:
	//   - *Snapshot: the copied state
	//   - error: ErrStateDirty if the host-visible state is stale
	Snapshot() (*Snapshot, error)

	// LoadSnapshot replaces the grid's entire state from a snapshot, resizing
	// if the dimensions differ. Rule, boundary, generation, and population
	// all come from the snapshot. The dense engine uploads to the device as
	// the final step.
	//
	// Parameters:
	//   - s: the snapshot to load
	//
	// Returns:
	//   - error: non-nil if the snapshot is invalid or the upload failed
	LoadSnapshot(s *Snapshot) error

	// Release frees the engine's resources. For the dense engine this
	// releases the device-resident buffers; it must happen before the
	// backend itself is torn down. The grid is unusable afterwards.
	Release()
}

// neighborOffsets enumerates the 26-cell 3D Moore neighborhood.
var neighborOffsets = buildNeighborOffsets()

func buildNeighborOffsets() [][3]int {
	offsets := make([][3]int, 0, 26)
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				offsets = append(offsets, [3]int{dx, dy, dz})
			}
		}
	}
	return offsets
}
