// Package compute abstracts the parallel backend the dense automaton engine
// dispatches its per-cell rule kernel on. Two implementations are provided:
// a WebGPU backend that keeps grid state in device-resident storage buffers,
// and a host backend that runs the same contract on CPU slices.
package compute

import "encoding/binary"

// KernelParams parameterizes one rule dispatch. The field order and padding
// match the Params uniform block in the WGSL kernels (eight 32-bit words).
type KernelParams struct {
	Width    uint32
	Height   uint32
	Depth    uint32
	Boundary uint32

	SurviveMin uint32
	SurviveMax uint32
	BirthMask  uint32
}

// paramsSize is the byte size of the marshaled uniform block, padded to a
// 16-byte multiple as required for uniform buffers.
const paramsSize = 32

// Marshal serializes the params into the uniform buffer layout.
//
// Returns:
//   - []byte: 32-byte buffer ready for upload
func (p KernelParams) Marshal() []byte {
	buf := make([]byte, paramsSize)
	binary.LittleEndian.PutUint32(buf[0:4], p.Width)
	binary.LittleEndian.PutUint32(buf[4:8], p.Height)
	binary.LittleEndian.PutUint32(buf[8:12], p.Depth)
	binary.LittleEndian.PutUint32(buf[12:16], p.Boundary)
	binary.LittleEndian.PutUint32(buf[16:20], p.SurviveMin)
	binary.LittleEndian.PutUint32(buf[20:24], p.SurviveMax)
	binary.LittleEndian.PutUint32(buf[24:28], p.BirthMask)
	return buf
}

// CellCount returns the number of cells covered by a dispatch with these
// params.
func (p KernelParams) CellCount() int {
	return int(p.Width) * int(p.Height) * int(p.Depth)
}

// StatePair is a pair of equal-size backend-resident cell state buffers, one
// uint32 per cell (0 dead, 1 live). All state-addressing operations on the
// Backend target the pair's "current" buffer; Step reads "current" and writes
// "next".
type StatePair interface {
	// Swap flips which buffer is "current". O(1) handle swap; no data moves.
	Swap()

	// CellCount returns the number of cells each buffer holds.
	CellCount() int

	// Release frees the pair's backend resources. The pair must be released
	// before the Backend that allocated it.
	Release()
}

// Backend is the accelerator contract the dense engine is constructed with.
// Implementations must guarantee that Step's writes are fully visible before
// any subsequent read-back (completion barrier semantics), and that Download
// observes the result of every previously issued operation.
//
// A Backend may be shared by several grids; each StatePair is exclusively
// owned by the grid that allocated it.
type Backend interface {
	// AllocateStates allocates a zeroed state pair for cellCount cells.
	// Allocation failure is fatal to the caller's construction.
	//
	// Parameters:
	//   - cellCount: number of cells per buffer
	//
	// Returns:
	//   - StatePair: the allocated pair
	//   - error: non-nil if allocation failed
	AllocateStates(cellCount int) (StatePair, error)

	// Upload copies a full host-side state into the pair's current buffer.
	//
	// Parameters:
	//   - states: the target pair
	//   - data: one word per cell; len(data) must equal CellCount
	//
	// Returns:
	//   - error: non-nil on a device I/O failure (retryable)
	Upload(states StatePair, data []uint32) error

	// Download copies the pair's current buffer into dst, blocking until all
	// previously dispatched work has completed.
	//
	// Parameters:
	//   - states: the source pair
	//   - dst: destination; len(dst) must equal CellCount
	//
	// Returns:
	//   - error: non-nil on a device I/O failure (retryable)
	Download(states StatePair, dst []uint32) error

	// WriteCell sets a single cell in the current buffer. One full round trip
	// per call: O(1) bytes but O(1) round trips, so batched per-cell edits are
	// expensive by design.
	//
	// Parameters:
	//   - states: the target pair
	//   - index: linear cell index
	//   - alive: the new state
	//
	// Returns:
	//   - error: non-nil on a device I/O failure (retryable)
	WriteCell(states StatePair, index int, alive bool) error

	// ReadCell reads a single cell from the current buffer. Same round-trip
	// cost contract as WriteCell.
	//
	// Parameters:
	//   - states: the source pair
	//   - index: linear cell index
	//
	// Returns:
	//   - bool: the cell's state
	//   - error: non-nil on a device I/O failure (retryable)
	ReadCell(states StatePair, index int) (bool, error)

	// Step dispatches the rule kernel in parallel over every cell, reading the
	// pair's current buffer and writing its next buffer, then reduces the next
	// buffer's population and waits on the completion barrier. Step never
	// swaps the pair; the caller swaps after a successful return.
	//
	// Parameters:
	//   - states: the pair to advance
	//   - params: dimensions, rule, and boundary for this dispatch
	//
	// Returns:
	//   - int: the population of the next buffer
	//   - error: non-nil if the dispatch failed; the pair's current buffer is
	//     untouched either way
	Step(states StatePair, params KernelParams) (int, error)

	// Release tears the backend down. Every StatePair allocated from it must
	// be released first (strict nesting of lifetimes).
	Release()
}
