package rules

import "fmt"

// MaxNeighbors is the size of the 3D Moore neighborhood: the 26 cells adjacent
// to a cell, diagonals included.
const MaxNeighbors = 26

// NeighborSet is a set of neighbor counts in [0, MaxNeighbors], encoded as a
// bitmask. Bit i is set when a count of i is a member.
type NeighborSet uint32

// NewNeighborSet builds a NeighborSet from explicit counts. Counts outside
// [0, MaxNeighbors] are ignored.
//
// Parameters:
//   - counts: the neighbor counts to include
//
// Returns:
//   - NeighborSet: the set containing the given counts
func NewNeighborSet(counts ...int) NeighborSet {
	var s NeighborSet
	for _, c := range counts {
		s = s.Add(c)
	}
	return s
}

// NewNeighborRange builds a NeighborSet containing every count in [min, max].
//
// Parameters:
//   - min: the inclusive lower bound
//   - max: the inclusive upper bound
//
// Returns:
//   - NeighborSet: the set containing the full range
func NewNeighborRange(min, max int) NeighborSet {
	var s NeighborSet
	for c := min; c <= max; c++ {
		s = s.Add(c)
	}
	return s
}

// Add returns a copy of the set with the given count included.
func (s NeighborSet) Add(count int) NeighborSet {
	if count < 0 || count > MaxNeighbors {
		return s
	}
	return s | (1 << uint(count))
}

// Contains reports whether the given count is a member of the set.
func (s NeighborSet) Contains(count int) bool {
	if count < 0 || count > MaxNeighbors {
		return false
	}
	return s&(1<<uint(count)) != 0
}

// Counts returns the members of the set in ascending order.
func (s NeighborSet) Counts() []int {
	counts := make([]int, 0, MaxNeighbors+1)
	for c := 0; c <= MaxNeighbors; c++ {
		if s.Contains(c) {
			counts = append(counts, c)
		}
	}
	return counts
}

// Mask returns the raw bitmask, suitable for passing to a compute kernel.
func (s NeighborSet) Mask() uint32 {
	return uint32(s)
}

// RuleSet is a birth/survival predicate over live-neighbor counts in the
// 26-cell 3D neighborhood. A live cell survives when its neighbor count falls
// within [SurviveMin, SurviveMax]; a dead cell is born when its count is a
// member of Birth.
//
// Birth must not contain 0: a dead cell with no live neighbors can never
// change, and the sparse engine's frontier update depends on that.
type RuleSet struct {
	Name        string
	Description string
	Category    string

	SurviveMin int
	SurviveMax int
	Birth      NeighborSet
}

// NewRuleSet creates a custom RuleSet with the given survival range and birth
// set. The category defaults to "Custom".
//
// Parameters:
//   - name: identifier used in pattern files and preset lookup
//   - surviveMin: inclusive lower bound of the survival range
//   - surviveMax: inclusive upper bound of the survival range
//   - birth: the set of neighbor counts that cause a birth
//
// Returns:
//   - RuleSet: the configured rule set
func NewRuleSet(name string, surviveMin, surviveMax int, birth NeighborSet) RuleSet {
	return RuleSet{
		Name:       name,
		Category:   "Custom",
		SurviveMin: surviveMin,
		SurviveMax: surviveMax,
		Birth:      birth,
	}
}

// NextState evaluates the rule for a single cell.
//
// Parameters:
//   - alive: the cell's current state
//   - neighbors: the number of live cells among its 26 neighbors
//
// Returns:
//   - bool: the cell's state in the next generation
func (r RuleSet) NextState(alive bool, neighbors int) bool {
	if alive {
		return neighbors >= r.SurviveMin && neighbors <= r.SurviveMax
	}
	return r.Birth.Contains(neighbors)
}

// Validate checks the rule's parameters for internal consistency.
//
// Returns:
//   - error: nil if the rule is usable by both engines
func (r RuleSet) Validate() error {
	if r.SurviveMin < 0 || r.SurviveMax > MaxNeighbors || r.SurviveMin > r.SurviveMax {
		return fmt.Errorf("rules: invalid survival range [%d, %d]", r.SurviveMin, r.SurviveMax)
	}
	if r.Birth.Contains(0) {
		return fmt.Errorf("rules: birth on zero neighbors is not supported")
	}
	return nil
}

func preset(name string, bMin, bMax, sMin, sMax int, desc, cat string) RuleSet {
	return RuleSet{
		Name:        name,
		Description: desc,
		Category:    cat,
		SurviveMin:  sMin,
		SurviveMax:  sMax,
		Birth:       NewNeighborRange(bMin, bMax),
	}
}

// Named rule presets for the 3D automaton. Naming follows the BbSs convention
// collapsed into four digits: birth-min, birth-max, survive-min, survive-max.
var (
	Rule5766 = preset("5766", 5, 7, 6, 6,
		"Classic 3D rule: born with 5-7 neighbors, survives with 6 neighbors", "Classic")
	Rule4555 = preset("4555", 4, 5, 5, 5,
		"Alternative 3D rule: born with 4-5 neighbors, survives with 5 neighbors", "Classic")
	Rule2333 = preset("2333", 2, 3, 3, 3,
		"Growth rule: born with 2-3 neighbors, survives with 3 neighbors; expands rapidly", "Growth")
	Rule3444 = preset("3444", 3, 4, 4, 4,
		"Stable growth rule: born with 3-4 neighbors, survives with 4 neighbors", "Growth")
	Rule6777 = preset("6777", 6, 7, 7, 7,
		"Dense rule: born with 6-7 neighbors, survives with 7 neighbors; forms clusters", "Dense")
	Rule7888 = preset("7888", 7, 8, 8, 8,
		"Very dense rule: born with 7-8 neighbors, survives with 8 neighbors", "Dense")
	Rule4556 = preset("4556", 4, 5, 5, 6,
		"Oscillator rule: born with 4-5 neighbors, survives with 5-6 neighbors", "Oscillator")
	Rule5667 = preset("5667", 5, 6, 6, 7,
		"Complex oscillator rule: born with 5-6 neighbors, survives with 6-7 neighbors", "Oscillator")
)

// Presets returns all named rule presets in a stable order.
func Presets() []RuleSet {
	return []RuleSet{
		Rule5766,
		Rule4555,
		Rule2333,
		Rule3444,
		Rule6777,
		Rule7888,
		Rule4556,
		Rule5667,
	}
}

// PresetByName looks up a preset by its name.
//
// Parameters:
//   - name: the preset name, e.g. "5766"
//
// Returns:
//   - RuleSet: the matching preset
//   - bool: false if no preset has that name
func PresetByName(name string) (RuleSet, bool) {
	for _, r := range Presets() {
		if r.Name == name {
			return r, true
		}
	}
	return RuleSet{}, false
}

// PresetsByCategory returns the presets in the given category.
func PresetsByCategory(category string) []RuleSet {
	var out []RuleSet
	for _, r := range Presets() {
		if r.Category == category {
			out = append(out, r)
		}
	}
	return out
}

// Categories returns the known preset categories.
func Categories() []string {
	return []string{"Classic", "Growth", "Dense", "Oscillator", "Custom"}
}
