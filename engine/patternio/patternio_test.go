package patternio

import (
	"path/filepath"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/voxel-life/engine/automaton"
	"github.com/Carmen-Shannon/voxel-life/engine/rules"
)

func testSnapshot() *automaton.Snapshot {
	s := &automaton.Snapshot{
		Width:      5,
		Height:     4,
		Depth:      3,
		Cells:      make([]bool, 60),
		Rule:       rules.Rule4556,
		Boundary:   rules.Mirror,
		Generation: 42,
	}
	s.Cells[s.Index(0, 0, 0)] = true
	s.Cells[s.Index(4, 3, 2)] = true
	s.Cells[s.Index(2, 1, 1)] = true
	return s
}

func TestPatternRoundTrip(t *testing.T) {
	t.Parallel()

	t.Run("snapshot survives save and load unchanged", func(t *testing.T) {
		t.Parallel()
		want := testSnapshot()

		pattern, err := FromSnapshot("glider-farm", want)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, pattern.ID)
		assert.Equal(t, "glider-farm", pattern.Name)

		path := filepath.Join(t.TempDir(), "pattern.json")
		require.NoError(t, Save(path, pattern))

		loaded, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, pattern.ID, loaded.ID)

		got, err := loaded.Snapshot()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("preset identity survives the round trip", func(t *testing.T) {
		t.Parallel()
		pattern, err := FromSnapshot("preset", testSnapshot())
		require.NoError(t, err)

		got, err := pattern.Snapshot()
		require.NoError(t, err)
		// The preset's description and category are not stored; they are
		// restored by parameter-matching the stored name.
		assert.Equal(t, rules.Rule4556, got.Rule)
	})

	t.Run("custom rules round-trip by parameters", func(t *testing.T) {
		t.Parallel()
		snap := testSnapshot()
		snap.Rule = rules.NewRuleSet("my-rule", 3, 9, rules.NewNeighborSet(4, 6, 8))

		pattern, err := FromSnapshot("custom", snap)
		require.NoError(t, err)

		got, err := pattern.Snapshot()
		require.NoError(t, err)
		assert.Equal(t, snap.Rule.Name, got.Rule.Name)
		assert.Equal(t, snap.Rule.SurviveMin, got.Rule.SurviveMin)
		assert.Equal(t, snap.Rule.SurviveMax, got.Rule.SurviveMax)
		assert.Equal(t, snap.Rule.Birth, got.Rule.Birth)
	})

	t.Run("cell payload is bit-packed", func(t *testing.T) {
		t.Parallel()
		pattern, err := FromSnapshot("packed", testSnapshot())
		require.NoError(t, err)

		// 60 cells fit in 8 bytes instead of 60 booleans.
		assert.Len(t, pattern.Cells, 8)
	})
}

func TestPatternValidation(t *testing.T) {
	t.Parallel()

	t.Run("rejects nil and malformed snapshots", func(t *testing.T) {
		t.Parallel()
		_, err := FromSnapshot("nil", nil)
		assert.Error(t, err)

		_, err = FromSnapshot("short", &automaton.Snapshot{
			Width: 2, Height: 2, Depth: 2,
			Cells: make([]bool, 3),
		})
		assert.Error(t, err)
	})

	t.Run("rejects truncated cell payloads", func(t *testing.T) {
		t.Parallel()
		pattern, err := FromSnapshot("trunc", testSnapshot())
		require.NoError(t, err)

		pattern.Cells = pattern.Cells[:4]
		_, err = pattern.Snapshot()
		assert.Error(t, err)
	})

	t.Run("rejects unknown boundary names", func(t *testing.T) {
		t.Parallel()
		pattern, err := FromSnapshot("badmode", testSnapshot())
		require.NoError(t, err)

		pattern.Boundary = "Periodic"
		_, err = pattern.Snapshot()
		assert.Error(t, err)
	})

	t.Run("rejects unusable stored rules", func(t *testing.T) {
		t.Parallel()
		pattern, err := FromSnapshot("badrule", testSnapshot())
		require.NoError(t, err)

		pattern.Rule.Birth = []int{0}
		_, err = pattern.Snapshot()
		assert.Error(t, err)
	})

	t.Run("load reports missing files", func(t *testing.T) {
		t.Parallel()
		_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
		assert.Error(t, err)
	})
}

func TestDefaultFileName(t *testing.T) {
	t.Parallel()

	name := DefaultFileName()
	assert.Regexp(t, regexp.MustCompile(`^pattern_\d{8}_\d{6}\.json$`), name)
}
