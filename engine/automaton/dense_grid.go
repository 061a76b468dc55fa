package automaton

import (
	"math/rand"
	"sync"

	"github.com/pkg/errors"

	"github.com/Carmen-Shannon/voxel-life/engine/compute"
	"github.com/Carmen-Shannon/voxel-life/engine/rules"
)

// transientRetries is how many times a point mutation or sync retries a
// failing device I/O before giving up. Visible state is only updated after
// the operation succeeds, so a retried or abandoned operation is never
// partially applied.
const transientRetries = 3

// DenseGrid is the accelerator-parallel engine: a fixed W×H×D array held in
// two device-resident buffers, advanced by one parallel per-cell dispatch per
// Step. Point edits and reads each cost a full host↔device round trip — O(1)
// bytes but O(1) round trips — so batched per-cell edits are expensive by
// design; stage bulk state on the host and use LoadSnapshot or Randomize
// instead.
type DenseGrid interface {
	Grid

	// SyncFromDevice blocks until the device pass has completed, copies the
	// current device state into the host snapshot, and marks it Clean.
	//
	// Returns:
	//   - error: non-nil on a device I/O failure (retried internally)
	SyncFromDevice() error

	// SyncToDevice uploads the host snapshot to the device's current buffer
	// and marks the state Clean.
	//
	// Returns:
	//   - error: non-nil on a device I/O failure (retried internally)
	SyncToDevice() error

	// SyncState reports the host snapshot's freshness.
	SyncState() SyncState
}

type denseGridImpl struct {
	mu *sync.Mutex

	backend compute.Backend
	states  compute.StatePair

	width  int
	height int
	depth  int

	rule     rules.RuleSet
	boundary rules.BoundaryMode

	generation uint64
	population int

	// host is the host-visible snapshot of the device state, refreshed only
	// by explicit syncs. bridge tracks whether it is current.
	host   []uint32
	bridge syncBridge

	rng      *rand.Rand
	released bool
}

var _ DenseGrid = &denseGridImpl{}

// NewDenseGrid creates a dense grid on the injected compute backend and
// allocates its double-buffered device state, zeroed. Allocation failure is
// fatal: the error is returned and the grid is unusable.
//
// Parameters:
//   - backend: the compute backend the grid dispatches on; required
//   - w, h, d: the grid dimensions, all of which must be positive
//   - options: a variadic list of options to configure the grid
//
// Returns:
//   - DenseGrid: the configured grid
//   - error: ErrNilBackend, ErrZeroDimension, an invalid rule, or an
//     allocation failure
func NewDenseGrid(backend compute.Backend, w, h, d int, options ...GridOption) (DenseGrid, error) {
	if backend == nil {
		return nil, ErrNilBackend
	}
	if w <= 0 || h <= 0 || d <= 0 {
		return nil, ErrZeroDimension
	}

	cfg := newGridConfig()
	for _, opt := range options {
		opt(cfg)
	}
	if err := cfg.rule.Validate(); err != nil {
		return nil, err
	}

	g := &denseGridImpl{
		mu:       &sync.Mutex{},
		backend:  backend,
		width:    w,
		height:   h,
		depth:    d,
		rule:     cfg.rule,
		boundary: cfg.boundary,
		host:     make([]uint32, w*h*d),
		rng:      rand.New(rand.NewSource(cfg.seed)),
	}

	states, err := backend.AllocateStates(w * h * d)
	if err != nil {
		return nil, errors.Wrap(err, "dense grid allocation failed")
	}
	g.states = states

	return g, nil
}

func (g *denseGridImpl) Step() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return ErrReleased
	}

	// The dispatch reads "current" and writes "next"; an in-place update is
	// impossible by construction. The backend's barrier guarantees all kernel
	// writes are visible before the population result is read back.
	population, err := g.backend.Step(g.states, g.kernelParams())
	if err != nil {
		return errors.Wrap(err, "dense step dispatch failed")
	}

	g.states.Swap()
	g.generation++
	g.population = population
	g.bridge.markDeviceWrite()
	return nil
}

func (g *denseGridImpl) SetCell(x, y, z int, alive bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return ErrReleased
	}
	if !g.inRange(x, y, z) {
		return nil
	}

	idx := g.index(x, y, z)

	var current bool
	err := retryTransient(func() error {
		var readErr error
		current, readErr = g.backend.ReadCell(g.states, idx)
		return readErr
	})
	if err != nil {
		return errors.Wrap(err, "dense cell read failed")
	}
	if current == alive {
		return nil
	}

	if err := retryTransient(func() error {
		return g.backend.WriteCell(g.states, idx, alive)
	}); err != nil {
		return errors.Wrap(err, "dense cell write failed")
	}

	if alive {
		g.population++
	} else {
		g.population--
	}
	if g.bridge.clean() {
		// Keep the host snapshot consistent; when dirty it is stale anyway
		// and the next sync overwrites it wholesale.
		if alive {
			g.host[idx] = 1
		} else {
			g.host[idx] = 0
		}
	}
	return nil
}

func (g *denseGridImpl) GetCell(x, y, z int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released || !g.inRange(x, y, z) {
		return false
	}

	var alive bool
	err := retryTransient(func() error {
		var readErr error
		alive, readErr = g.backend.ReadCell(g.states, g.index(x, y, z))
		return readErr
	})
	if err != nil {
		return false
	}
	return alive
}

func (g *denseGridImpl) Clear() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return ErrReleased
	}

	for i := range g.host {
		g.host[i] = 0
	}
	if err := retryTransient(func() error {
		return g.backend.Upload(g.states, g.host)
	}); err != nil {
		return errors.Wrap(err, "dense clear upload failed")
	}

	g.population = 0
	g.generation = 0
	g.bridge.markSynced()
	return nil
}

func (g *denseGridImpl) Randomize(density float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return ErrReleased
	}
	if density < 0 || density > 1 {
		return ErrInvalidDensity
	}

	population := 0
	for i := range g.host {
		if g.rng.Float64() < density {
			g.host[i] = 1
			population++
		} else {
			g.host[i] = 0
		}
	}
	if err := retryTransient(func() error {
		return g.backend.Upload(g.states, g.host)
	}); err != nil {
		return errors.Wrap(err, "dense randomize upload failed")
	}

	g.population = population
	g.generation = 0
	g.bridge.markSynced()
	return nil
}

func (g *denseGridImpl) Resize(w, h, d int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return ErrReleased
	}
	if w <= 0 || h <= 0 || d <= 0 {
		return ErrZeroDimension
	}

	return g.reallocate(w, h, d)
}

// reallocate destroys and recreates all state for new dimensions. Caller
// holds the lock.
func (g *denseGridImpl) reallocate(w, h, d int) error {
	states, err := g.backend.AllocateStates(w * h * d)
	if err != nil {
		return errors.Wrap(err, "dense resize allocation failed")
	}

	g.states.Release()
	g.states = states
	g.width, g.height, g.depth = w, h, d
	g.host = make([]uint32, w*h*d)
	g.population = 0
	g.generation = 0
	g.bridge.markSynced()
	return nil
}

func (g *denseGridImpl) Population() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.population
}

func (g *denseGridImpl) Generation() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.generation
}

func (g *denseGridImpl) Dimensions() (int, int, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.width, g.height, g.depth
}

func (g *denseGridImpl) Rule() rules.RuleSet {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rule
}

func (g *denseGridImpl) SetRule(r rules.RuleSet) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := r.Validate(); err != nil {
		return err
	}
	g.rule = r
	return nil
}

func (g *denseGridImpl) Boundary() rules.BoundaryMode {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.boundary
}

func (g *denseGridImpl) SetBoundary(mode rules.BoundaryMode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.boundary = mode
}

func (g *denseGridImpl) SyncFromDevice() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return ErrReleased
	}
	if err := retryTransient(func() error {
		return g.backend.Download(g.states, g.host)
	}); err != nil {
		return errors.Wrap(err, "sync from device failed")
	}
	g.bridge.markSynced()
	return nil
}

func (g *denseGridImpl) SyncToDevice() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return ErrReleased
	}
	return g.syncToDeviceLocked()
}

func (g *denseGridImpl) syncToDeviceLocked() error {
	if err := retryTransient(func() error {
		return g.backend.Upload(g.states, g.host)
	}); err != nil {
		return errors.Wrap(err, "sync to device failed")
	}
	g.bridge.markSynced()
	return nil
}

func (g *denseGridImpl) SyncState() SyncState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.bridge.state
}

func (g *denseGridImpl) Snapshot() (*Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return nil, ErrReleased
	}
	if !g.bridge.clean() {
		return nil, ErrStateDirty
	}

	cells := make([]bool, len(g.host))
	for i, word := range g.host {
		cells[i] = word == 1
	}
	return &Snapshot{
		Width:      g.width,
		Height:     g.height,
		Depth:      g.depth,
		Cells:      cells,
		Rule:       g.rule,
		Boundary:   g.boundary,
		Generation: g.generation,
	}, nil
}

func (g *denseGridImpl) LoadSnapshot(s *Snapshot) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return ErrReleased
	}
	if s == nil {
		return ErrInvalidSnapshot
	}
	if err := s.Validate(); err != nil {
		return err
	}
	if err := s.Rule.Validate(); err != nil {
		return err
	}

	if s.Width != g.width || s.Height != g.height || s.Depth != g.depth {
		if err := g.reallocate(s.Width, s.Height, s.Depth); err != nil {
			return err
		}
	}

	population := 0
	for i, alive := range s.Cells {
		if alive {
			g.host[i] = 1
			population++
		} else {
			g.host[i] = 0
		}
	}
	if err := g.syncToDeviceLocked(); err != nil {
		return err
	}

	g.rule = s.Rule
	g.boundary = s.Boundary
	g.generation = s.Generation
	g.population = population
	return nil
}

func (g *denseGridImpl) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return
	}
	// The grid owns its state pair but not the backend; strict nesting means
	// the pair goes first, the injected backend later, by its owner.
	g.states.Release()
	g.released = true
}

func (g *denseGridImpl) kernelParams() compute.KernelParams {
	return compute.KernelParams{
		Width:      uint32(g.width),
		Height:     uint32(g.height),
		Depth:      uint32(g.depth),
		Boundary:   uint32(g.boundary),
		SurviveMin: uint32(g.rule.SurviveMin),
		SurviveMax: uint32(g.rule.SurviveMax),
		BirthMask:  g.rule.Birth.Mask(),
	}
}

func (g *denseGridImpl) inRange(x, y, z int) bool {
	return x >= 0 && x < g.width && y >= 0 && y < g.height && z >= 0 && z < g.depth
}

func (g *denseGridImpl) index(x, y, z int) int {
	return z*g.width*g.height + y*g.width + x
}

// retryTransient runs op up to transientRetries times, returning the last
// error if none succeed.
func retryTransient(op func() error) error {
	var err error
	for attempt := 0; attempt < transientRetries; attempt++ {
		if err = op(); err == nil {
			return nil
		}
	}
	return err
}
