package automaton

import "errors"

var (
	// ErrZeroDimension is returned by constructors and Resize when any grid
	// dimension is zero or negative; rejected before any allocation.
	ErrZeroDimension = errors.New("automaton: grid dimensions must be positive")

	// ErrExtentTooLarge is returned by the sparse engine when a dimension
	// exceeds the packed cell key's per-axis bound.
	ErrExtentTooLarge = errors.New("automaton: dimension exceeds the packed key bound")

	// ErrStateDirty is returned by the dense engine's Snapshot when the
	// host-visible state has not been synced since the last device write.
	ErrStateDirty = errors.New("automaton: host state is dirty; call SyncFromDevice first")

	// ErrNilBackend is returned when a dense grid is constructed without a
	// compute backend.
	ErrNilBackend = errors.New("automaton: compute backend is required")

	// ErrReleased is returned by operations on a grid after Release.
	ErrReleased = errors.New("automaton: grid has been released")

	// ErrInvalidSnapshot is returned when a snapshot's cell payload does not
	// match its declared dimensions.
	ErrInvalidSnapshot = errors.New("automaton: snapshot cells do not match dimensions")

	// ErrInvalidDensity is returned by Randomize for densities outside [0, 1].
	ErrInvalidDensity = errors.New("automaton: density must be in [0, 1]")
)
