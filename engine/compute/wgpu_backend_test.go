package compute

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/voxel-life/engine/rules"
)

// The word-level transcoding the upload/download paths rely on is pure and
// tested unconditionally; the device-facing paths need adapter access and run
// only when opted in below.
func TestWordTranscoding(t *testing.T) {
	t.Parallel()

	words := []uint32{0, 1, 0xDEADBEEF, 0xFFFFFFFF}

	raw := wordsToBytes(words)
	assert.Len(t, raw, 16)
	assert.Equal(t, []byte{0xEF, 0xBE, 0xAD, 0xDE}, raw[8:12])

	back := make([]uint32, len(words))
	bytesToWords(raw, back)
	assert.Equal(t, words, back)
}

// TestWGPUBackendSmoke runs the full dispatch path against a real adapter.
// Opt in with VOXLIFE_GPU_TESTS=1; software adapters (lavapipe, SwiftShader)
// work via the fallback option.
func TestWGPUBackendSmoke(t *testing.T) {
	if os.Getenv("VOXLIFE_GPU_TESTS") == "" {
		t.Skip("set VOXLIFE_GPU_TESTS=1 to run against a real adapter")
	}

	backend, err := NewWGPUBackend(WithForceFallbackAdapter())
	require.NoError(t, err)
	defer backend.Release()

	const w, h, d = 4, 4, 4
	states, err := backend.AllocateStates(w * h * d)
	require.NoError(t, err)
	defer states.Release()

	// Lone cell under B5-7/S6 dies; the GPU result must match the host
	// backend's.
	data := make([]uint32, w*h*d)
	data[1*w*h+1*w+1] = 1
	require.NoError(t, backend.Upload(states, data))

	alive, err := backend.ReadCell(states, 1*w*h+1*w+1)
	require.NoError(t, err)
	assert.True(t, alive)

	params := KernelParams{
		Width:      w,
		Height:     h,
		Depth:      d,
		Boundary:   uint32(rules.Toroidal),
		SurviveMin: 6,
		SurviveMax: 6,
		BirthMask:  rules.NewNeighborRange(5, 7).Mask(),
	}
	population, err := backend.Step(states, params)
	require.NoError(t, err)
	assert.Equal(t, 0, population)

	states.Swap()
	got := make([]uint32, w*h*d)
	require.NoError(t, backend.Download(states, got))
	assert.Equal(t, make([]uint32, w*h*d), got)
}
