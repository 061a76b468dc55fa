package compute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/voxel-life/engine/rules"
)

// params5766 builds dispatch params for the B5-7/S6 rule on a w×h×d toroidal
// grid.
func params5766(w, h, d int) KernelParams {
	return KernelParams{
		Width:      uint32(w),
		Height:     uint32(h),
		Depth:      uint32(d),
		Boundary:   uint32(rules.Toroidal),
		SurviveMin: 6,
		SurviveMax: 6,
		BirthMask:  rules.NewNeighborRange(5, 7).Mask(),
	}
}

func TestKernelParamsMarshal(t *testing.T) {
	t.Parallel()

	p := KernelParams{
		Width:      3,
		Height:     4,
		Depth:      5,
		Boundary:   uint32(rules.Mirror),
		SurviveMin: 2,
		SurviveMax: 6,
		BirthMask:  0x28,
	}
	buf := p.Marshal()

	require.Len(t, buf, 32)
	assert.Equal(t, byte(3), buf[0])
	assert.Equal(t, byte(4), buf[4])
	assert.Equal(t, byte(5), buf[8])
	assert.Equal(t, byte(rules.Mirror), buf[12])
	assert.Equal(t, byte(2), buf[16])
	assert.Equal(t, byte(6), buf[20])
	assert.Equal(t, byte(0x28), buf[24])
	assert.Equal(t, 60, p.CellCount())
}

func TestHostBackendStateIO(t *testing.T) {
	t.Parallel()

	backend := NewHostBackend()
	defer backend.Release()

	t.Run("allocation is zeroed", func(t *testing.T) {
		t.Parallel()
		states, err := backend.AllocateStates(8)
		require.NoError(t, err)
		defer states.Release()

		dst := make([]uint32, 8)
		require.NoError(t, backend.Download(states, dst))
		assert.Equal(t, make([]uint32, 8), dst)
	})

	t.Run("rejects non-positive allocation", func(t *testing.T) {
		t.Parallel()
		_, err := backend.AllocateStates(0)
		assert.Error(t, err)
	})

	t.Run("upload then download round-trips", func(t *testing.T) {
		t.Parallel()
		states, err := backend.AllocateStates(4)
		require.NoError(t, err)
		defer states.Release()

		want := []uint32{1, 0, 1, 1}
		require.NoError(t, backend.Upload(states, want))

		got := make([]uint32, 4)
		require.NoError(t, backend.Download(states, got))
		assert.Equal(t, want, got)
	})

	t.Run("size mismatches error", func(t *testing.T) {
		t.Parallel()
		states, err := backend.AllocateStates(4)
		require.NoError(t, err)
		defer states.Release()

		assert.Error(t, backend.Upload(states, make([]uint32, 3)))
		assert.Error(t, backend.Download(states, make([]uint32, 5)))
	})

	t.Run("cell writes are readable", func(t *testing.T) {
		t.Parallel()
		states, err := backend.AllocateStates(4)
		require.NoError(t, err)
		defer states.Release()

		require.NoError(t, backend.WriteCell(states, 2, true))
		alive, err := backend.ReadCell(states, 2)
		require.NoError(t, err)
		assert.True(t, alive)

		require.NoError(t, backend.WriteCell(states, 2, false))
		alive, err = backend.ReadCell(states, 2)
		require.NoError(t, err)
		assert.False(t, alive)
	})

	t.Run("cell index out of range errors", func(t *testing.T) {
		t.Parallel()
		states, err := backend.AllocateStates(4)
		require.NoError(t, err)
		defer states.Release()

		assert.Error(t, backend.WriteCell(states, 4, true))
		_, err = backend.ReadCell(states, -1)
		assert.Error(t, err)
	})
}

func TestHostBackendStep(t *testing.T) {
	t.Parallel()

	backend := NewHostBackend()

	t.Run("step writes next and leaves current untouched", func(t *testing.T) {
		t.Parallel()
		// Lone cell under B5-7/S6: dies next generation.
		states, err := backend.AllocateStates(27)
		require.NoError(t, err)
		defer states.Release()

		data := make([]uint32, 27)
		data[13] = 1 // center of the 3×3×3
		require.NoError(t, backend.Upload(states, data))

		population, err := backend.Step(states, params5766(3, 3, 3))
		require.NoError(t, err)
		assert.Equal(t, 0, population)

		// Current buffer still holds the pre-step generation.
		got := make([]uint32, 27)
		require.NoError(t, backend.Download(states, got))
		assert.Equal(t, data, got)

		// After the caller's swap, current holds the result.
		states.Swap()
		require.NoError(t, backend.Download(states, got))
		assert.Equal(t, make([]uint32, 27), got)
	})

	t.Run("population counts the next generation", func(t *testing.T) {
		t.Parallel()
		// A 2×2×1 block under S[2,3] B{3} on a large fixed grid is a still
		// life; the dispatch must report its population unchanged.
		const w, h, d = 6, 6, 3
		states, err := backend.AllocateStates(w * h * d)
		require.NoError(t, err)
		defer states.Release()

		data := make([]uint32, w*h*d)
		for _, c := range [][3]int{{2, 2, 1}, {3, 2, 1}, {2, 3, 1}, {3, 3, 1}} {
			data[c[2]*w*h+c[1]*w+c[0]] = 1
		}
		require.NoError(t, backend.Upload(states, data))

		params := KernelParams{
			Width:      w,
			Height:     h,
			Depth:      d,
			Boundary:   uint32(rules.Fixed),
			SurviveMin: 2,
			SurviveMax: 3,
			BirthMask:  rules.NewNeighborSet(3).Mask(),
		}
		population, err := backend.Step(states, params)
		require.NoError(t, err)
		assert.Equal(t, 4, population)

		states.Swap()
		got := make([]uint32, w*h*d)
		require.NoError(t, backend.Download(states, got))
		assert.Equal(t, data, got)
	})

	t.Run("worker count does not change the result", func(t *testing.T) {
		t.Parallel()
		const w, h, d = 8, 8, 8
		data := make([]uint32, w*h*d)
		// Deterministic scatter with enough density for births under B5-7.
		for i := range data {
			if (i*2654435761)%7 < 3 {
				data[i] = 1
			}
		}

		run := func(backend Backend) ([]uint32, int) {
			states, err := backend.AllocateStates(w * h * d)
			require.NoError(t, err)
			defer states.Release()

			require.NoError(t, backend.Upload(states, data))
			population, err := backend.Step(states, params5766(w, h, d))
			require.NoError(t, err)

			states.Swap()
			got := make([]uint32, w*h*d)
			require.NoError(t, backend.Download(states, got))
			return got, population
		}

		serialNext, serialPop := run(NewHostBackend(WithStepWorkers(1)))
		parallelNext, parallelPop := run(NewHostBackend(WithStepWorkers(8)))

		assert.Equal(t, serialNext, parallelNext)
		assert.Equal(t, serialPop, parallelPop)
	})

	t.Run("params cell count mismatch errors", func(t *testing.T) {
		t.Parallel()
		states, err := backend.AllocateStates(27)
		require.NoError(t, err)
		defer states.Release()

		_, err = backend.Step(states, params5766(3, 3, 4))
		assert.Error(t, err)
	})
}
