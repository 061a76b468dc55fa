package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeighborSet(t *testing.T) {
	t.Parallel()

	t.Run("membership follows construction", func(t *testing.T) {
		t.Parallel()
		s := NewNeighborSet(2, 3, 26)

		assert.True(t, s.Contains(2))
		assert.True(t, s.Contains(3))
		assert.True(t, s.Contains(26))
		assert.False(t, s.Contains(0))
		assert.False(t, s.Contains(4))
	})

	t.Run("out-of-range counts are ignored", func(t *testing.T) {
		t.Parallel()
		s := NewNeighborSet(-1, 27, 100)

		assert.Equal(t, NeighborSet(0), s)
		assert.False(t, s.Contains(-1))
		assert.False(t, s.Contains(27))
	})

	t.Run("range covers inclusive bounds", func(t *testing.T) {
		t.Parallel()
		s := NewNeighborRange(5, 7)

		assert.Equal(t, []int{5, 6, 7}, s.Counts())
	})

	t.Run("mask bit positions match counts", func(t *testing.T) {
		t.Parallel()
		s := NewNeighborSet(0, 1, 5)

		assert.Equal(t, uint32(1<<0|1<<1|1<<5), s.Mask())
	})
}

func TestRuleSetNextState(t *testing.T) {
	t.Parallel()

	rule := Rule5766 // B5-7 / S6

	t.Run("live cell survives only inside the range", func(t *testing.T) {
		t.Parallel()
		assert.False(t, rule.NextState(true, 5))
		assert.True(t, rule.NextState(true, 6))
		assert.False(t, rule.NextState(true, 7))
	})

	t.Run("dead cell is born only on birth counts", func(t *testing.T) {
		t.Parallel()
		assert.False(t, rule.NextState(false, 4))
		assert.True(t, rule.NextState(false, 5))
		assert.True(t, rule.NextState(false, 6))
		assert.True(t, rule.NextState(false, 7))
		assert.False(t, rule.NextState(false, 8))
	})

	t.Run("isolated dead cell never changes", func(t *testing.T) {
		t.Parallel()
		for _, r := range Presets() {
			assert.False(t, r.NextState(false, 0), "rule %s", r.Name)
		}
	})
}

func TestRuleSetValidate(t *testing.T) {
	t.Parallel()

	t.Run("all presets are valid", func(t *testing.T) {
		t.Parallel()
		for _, r := range Presets() {
			require.NoError(t, r.Validate(), "rule %s", r.Name)
		}
	})

	t.Run("rejects birth on zero neighbors", func(t *testing.T) {
		t.Parallel()
		r := NewRuleSet("bad", 2, 3, NewNeighborSet(0, 3))
		assert.Error(t, r.Validate())
	})

	t.Run("rejects inverted survival range", func(t *testing.T) {
		t.Parallel()
		r := NewRuleSet("bad", 5, 3, NewNeighborSet(4))
		assert.Error(t, r.Validate())
	})

	t.Run("rejects survival beyond the neighborhood", func(t *testing.T) {
		t.Parallel()
		r := NewRuleSet("bad", 1, 27, NewNeighborSet(4))
		assert.Error(t, r.Validate())
	})
}

func TestPresetLookup(t *testing.T) {
	t.Parallel()

	t.Run("every preset resolves by name", func(t *testing.T) {
		t.Parallel()
		for _, want := range Presets() {
			got, ok := PresetByName(want.Name)
			require.True(t, ok, "preset %s", want.Name)
			assert.Equal(t, want, got)
		}
	})

	t.Run("unknown name misses", func(t *testing.T) {
		t.Parallel()
		_, ok := PresetByName("0000")
		assert.False(t, ok)
	})

	t.Run("categories partition the presets", func(t *testing.T) {
		t.Parallel()
		total := 0
		for _, cat := range Categories() {
			total += len(PresetsByCategory(cat))
		}
		assert.Equal(t, len(Presets()), total)
	})
}

func TestResolveCoord(t *testing.T) {
	t.Parallel()

	const extent = 10

	t.Run("in-range coordinates pass through under every mode", func(t *testing.T) {
		t.Parallel()
		for _, mode := range []BoundaryMode{Toroidal, Mirror, Fixed, Infinite} {
			got, ok := ResolveCoord(4, extent, mode)
			require.True(t, ok, "mode %s", mode)
			assert.Equal(t, 4, got, "mode %s", mode)
		}
	})

	t.Run("toroidal wraps both directions", func(t *testing.T) {
		t.Parallel()
		got, ok := ResolveCoord(-1, extent, Toroidal)
		require.True(t, ok)
		assert.Equal(t, 9, got)

		got, ok = ResolveCoord(10, extent, Toroidal)
		require.True(t, ok)
		assert.Equal(t, 0, got)
	})

	t.Run("mirror reflects at both edges", func(t *testing.T) {
		t.Parallel()
		got, ok := ResolveCoord(-1, extent, Mirror)
		require.True(t, ok)
		assert.Equal(t, 1, got)

		got, ok = ResolveCoord(10, extent, Mirror)
		require.True(t, ok)
		assert.Equal(t, 9, got)
	})

	t.Run("fixed and infinite resolve to the dead region", func(t *testing.T) {
		t.Parallel()
		for _, mode := range []BoundaryMode{Fixed, Infinite} {
			_, ok := ResolveCoord(-1, extent, mode)
			assert.False(t, ok, "mode %s", mode)
			_, ok = ResolveCoord(10, extent, mode)
			assert.False(t, ok, "mode %s", mode)
		}
	})
}

func TestParseBoundaryMode(t *testing.T) {
	t.Parallel()

	for _, mode := range []BoundaryMode{Toroidal, Mirror, Fixed, Infinite} {
		got, err := ParseBoundaryMode(mode.String())
		require.NoError(t, err)
		assert.Equal(t, mode, got)
	}

	_, err := ParseBoundaryMode("Periodic")
	assert.Error(t, err)
}
