package automaton

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/voxel-life/engine/compute"
	"github.com/Carmen-Shannon/voxel-life/engine/rules"
)

// denseLiveCells pulls the device state back and converts it to the sparse
// engine's sorted key representation.
func denseLiveCells(t *testing.T, grid DenseGrid) []CellKey {
	t.Helper()
	require.NoError(t, grid.SyncFromDevice())

	snap, err := grid.Snapshot()
	require.NoError(t, err)

	keys := make([]CellKey, 0, snap.Population())
	for z := 0; z < snap.Depth; z++ {
		for y := 0; y < snap.Height; y++ {
			for x := 0; x < snap.Width; x++ {
				if snap.Cells[snap.Index(x, y, z)] {
					keys = append(keys, PackCellKey(x, y, z))
				}
			}
		}
	}
	return keys
}

// randomSnapshot builds a reproducible seeding both engines load, so the
// comparison starts from identical state without sharing a grid.
func randomSnapshot(w, h, d int, density float64, seed int64, rule rules.RuleSet, mode rules.BoundaryMode) *Snapshot {
	rng := rand.New(rand.NewSource(seed))
	cells := make([]bool, w*h*d)
	for i := range cells {
		cells[i] = rng.Float64() < density
	}
	return &Snapshot{
		Width:    w,
		Height:   h,
		Depth:    d,
		Cells:    cells,
		Rule:     rule,
		Boundary: mode,
	}
}

// TestEngineEquivalence runs both engines from the same seeding for 50
// generations and requires identical live sets and populations at every
// step. The engines share nothing but the rules package, so agreement here
// pins the semantics rather than an implementation detail.
func TestEngineEquivalence(t *testing.T) {
	t.Parallel()

	const (
		w, h, d     = 12, 12, 12
		generations = 50
	)

	cases := []struct {
		rule     rules.RuleSet
		boundary rules.BoundaryMode
		density  float64
	}{
		{rules.Rule5766, rules.Toroidal, 0.25},
		{rules.Rule5766, rules.Fixed, 0.25},
		{rules.Rule4555, rules.Mirror, 0.20},
		{rules.Rule2333, rules.Infinite, 0.08},
		{rules.Rule6777, rules.Toroidal, 0.35},
	}

	for i, tc := range cases {
		seed := int64(1000 + i)
		name := fmt.Sprintf("%s_%s", tc.rule.Name, tc.boundary)
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			seeding := randomSnapshot(w, h, d, tc.density, seed, tc.rule, tc.boundary)

			backend := compute.NewHostBackend()
			defer backend.Release()

			dense, err := NewDenseGrid(backend, w, h, d)
			require.NoError(t, err)
			defer dense.Release()
			require.NoError(t, dense.LoadSnapshot(seeding))

			sparse, err := NewSparseGrid(w, h, d)
			require.NoError(t, err)
			defer sparse.Release()
			require.NoError(t, sparse.LoadSnapshot(seeding))

			for gen := 1; gen <= generations; gen++ {
				require.NoError(t, dense.Step())
				require.NoError(t, sparse.Step())

				denseLive := denseLiveCells(t, dense)
				if diff := cmp.Diff(sparse.LiveCells(), denseLive); diff != "" {
					t.Fatalf("generation %d diverged (-sparse +dense):\n%s", gen, diff)
				}
				require.Equal(t, sparse.Population(), dense.Population(),
					"generation %d population", gen)
				if len(denseLive) == 0 {
					// Both extinct; nothing further can diverge.
					break
				}
			}
		})
	}
}
