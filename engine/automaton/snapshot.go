package automaton

import "github.com/Carmen-Shannon/voxel-life/engine/rules"

// Snapshot is the complete self-describing grid state exchanged with the
// save/load collaborators: dimensions, a dense boolean cell
// payload in x-fastest order, and the rule, boundary, and generation it was
// produced under.
type Snapshot struct {
	Width  int
	Height int
	Depth  int

	// Cells holds Width*Height*Depth states, indexed z*W*H + y*W + x.
	Cells []bool

	Rule       rules.RuleSet
	Boundary   rules.BoundaryMode
	Generation uint64
}

// Validate checks the snapshot's dimensions against its payload.
//
// Returns:
//   - error: ErrZeroDimension or ErrInvalidSnapshot on a malformed snapshot
func (s *Snapshot) Validate() error {
	if s.Width <= 0 || s.Height <= 0 || s.Depth <= 0 {
		return ErrZeroDimension
	}
	if len(s.Cells) != s.Width*s.Height*s.Depth {
		return ErrInvalidSnapshot
	}
	return nil
}

// Index returns the linear index of a position within Cells.
func (s *Snapshot) Index(x, y, z int) int {
	return z*s.Width*s.Height + y*s.Width + x
}

// Population counts the live cells in the payload.
func (s *Snapshot) Population() int {
	count := 0
	for _, alive := range s.Cells {
		if alive {
			count++
		}
	}
	return count
}
