package automaton

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"

	"github.com/Carmen-Shannon/voxel-life/engine/rules"
)

// parallelThreshold is the candidate-set size below which the sparse step
// stays serial even when a worker pool is configured; smaller frontiers are
// cheaper to evaluate inline than to shard.
const parallelThreshold = 2048

// SparseGrid is the CPU-incremental engine: live cells are a hash set of
// packed keys and each Step only touches the live cells and their 26
// neighbors — O(|live|·27) rather than O(W×H×D). Point edits and reads are
// O(1) amortized host operations with no device round trip; the cost
// asymmetry against the dense engine (cheap point edits versus cheap
// full-grid steps) is the behavioral contract, not an accident.
type SparseGrid interface {
	Grid

	// LiveCells returns the packed keys of every live cell in ascending
	// order.
	LiveCells() []CellKey
}

type sparseGridImpl struct {
	mu *sync.Mutex

	width  int
	height int
	depth  int

	rule     rules.RuleSet
	boundary rules.BoundaryMode

	generation uint64

	// live is the current generation; next is the scratch set the step
	// builds into before swapping. Population is tracked incrementally:
	// membership changes are observed sequentially, so a running count is
	// the single source of truth here (unlike the dense engine's reduction).
	live map[CellKey]struct{}
	next map[CellKey]struct{}

	rng *rand.Rand

	// evalPool shards candidate evaluation across persistent workers when
	// configured; nil means serial stepping.
	evalPool    worker.DynamicWorkerPool
	evalWorkers int
	taskID      int

	released bool
}

var _ SparseGrid = &sparseGridImpl{}

// NewSparseGrid creates a sparse grid. Dimensions must be positive and below
// MaxAxisExtent: the packed CellKey is only collision-free below that bound,
// so it is asserted here rather than assumed.
//
// Parameters:
//   - w, h, d: the grid dimensions
//   - options: a variadic list of options to configure the grid
//
// Returns:
//   - SparseGrid: the configured grid
//   - error: ErrZeroDimension, ErrExtentTooLarge, or an invalid rule
func NewSparseGrid(w, h, d int, options ...GridOption) (SparseGrid, error) {
	if w <= 0 || h <= 0 || d <= 0 {
		return nil, ErrZeroDimension
	}
	if w >= MaxAxisExtent || h >= MaxAxisExtent || d >= MaxAxisExtent {
		return nil, ErrExtentTooLarge
	}

	cfg := newGridConfig()
	for _, opt := range options {
		opt(cfg)
	}
	if err := cfg.rule.Validate(); err != nil {
		return nil, err
	}

	g := &sparseGridImpl{
		mu:          &sync.Mutex{},
		width:       w,
		height:      h,
		depth:       d,
		rule:        cfg.rule,
		boundary:    cfg.boundary,
		live:        make(map[CellKey]struct{}),
		next:        make(map[CellKey]struct{}),
		rng:         rand.New(rand.NewSource(cfg.seed)),
		evalWorkers: cfg.evalWorkers,
	}
	if cfg.evalWorkers >= 2 {
		g.evalPool = worker.NewDynamicWorkerPool(cfg.evalWorkers, 256, 1*time.Second)
	}
	return g, nil
}

func (g *sparseGridImpl) Step() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return ErrReleased
	}

	// Only a live cell or a neighbor of one can change: a dead cell with zero
	// live neighbors cannot be born (rules.RuleSet forbids birth on zero).
	candidates := g.candidateSet()

	clear(g.next)
	if g.evalPool != nil && len(candidates) >= parallelThreshold {
		g.evaluateParallel(candidates)
	} else {
		for key := range candidates {
			x, y, z := key.Coords()
			_, alive := g.live[key]
			if g.rule.NextState(alive, g.countNeighbors(x, y, z)) {
				g.next[key] = struct{}{}
			}
		}
	}

	g.live, g.next = g.next, g.live
	g.generation++
	return nil
}

// candidateSet builds the frontier: every live cell plus its boundary-resolved
// 26 neighbors. Neighbors that resolve to the dead region are skipped;
// resolving before keying keeps out-of-range coordinates from aliasing cells
// under the packed key.
func (g *sparseGridImpl) candidateSet() map[CellKey]struct{} {
	candidates := make(map[CellKey]struct{}, len(g.live)*8)
	for key := range g.live {
		x, y, z := key.Coords()
		candidates[key] = struct{}{}
		for _, off := range neighborOffsets {
			nx, ok := rules.ResolveCoord(x+off[0], g.width, g.boundary)
			if !ok {
				continue
			}
			ny, ok := rules.ResolveCoord(y+off[1], g.height, g.boundary)
			if !ok {
				continue
			}
			nz, ok := rules.ResolveCoord(z+off[2], g.depth, g.boundary)
			if !ok {
				continue
			}
			candidates[PackCellKey(nx, ny, nz)] = struct{}{}
		}
	}
	return candidates
}

// evaluateParallel shards the candidate set across the worker pool and merges
// each shard's survivors into the scratch set. The live set is read-only for
// the duration, so shards share it without locking.
func (g *sparseGridImpl) evaluateParallel(candidates map[CellKey]struct{}) {
	keys := make([]CellKey, 0, len(candidates))
	for key := range candidates {
		keys = append(keys, key)
	}

	shards := g.evalWorkers
	chunk := (len(keys) + shards - 1) / shards
	results := make([][]CellKey, shards)

	var wg sync.WaitGroup
	for i := 0; i < shards; i++ {
		start := i * chunk
		if start >= len(keys) {
			break
		}
		end := min(start+chunk, len(keys))

		wg.Add(1)
		shard := i
		slice := keys[start:end]
		id := g.taskID
		g.taskID++
		g.evalPool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()

				local := make([]CellKey, 0, len(slice)/4)
				for _, key := range slice {
					x, y, z := key.Coords()
					_, alive := g.live[key]
					if g.rule.NextState(alive, g.countNeighbors(x, y, z)) {
						local = append(local, key)
					}
				}
				results[shard] = local
				return nil, nil
			},
		})
	}
	wg.Wait()

	for _, local := range results {
		for _, key := range local {
			g.next[key] = struct{}{}
		}
	}
}

// countNeighbors resolves each of the 26 neighbor probes per the boundary
// mode and counts the live ones. Probes resolving to the dead region count
// zero.
func (g *sparseGridImpl) countNeighbors(x, y, z int) int {
	count := 0
	for _, off := range neighborOffsets {
		nx, ok := rules.ResolveCoord(x+off[0], g.width, g.boundary)
		if !ok {
			continue
		}
		ny, ok := rules.ResolveCoord(y+off[1], g.height, g.boundary)
		if !ok {
			continue
		}
		nz, ok := rules.ResolveCoord(z+off[2], g.depth, g.boundary)
		if !ok {
			continue
		}
		if _, alive := g.live[PackCellKey(nx, ny, nz)]; alive {
			count++
		}
	}
	return count
}

func (g *sparseGridImpl) SetCell(x, y, z int, alive bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return ErrReleased
	}
	if !g.inRange(x, y, z) {
		return nil
	}

	key := PackCellKey(x, y, z)
	if _, current := g.live[key]; current == alive {
		return nil
	}
	if alive {
		g.live[key] = struct{}{}
	} else {
		delete(g.live, key)
	}
	return nil
}

func (g *sparseGridImpl) GetCell(x, y, z int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released || !g.inRange(x, y, z) {
		return false
	}
	_, alive := g.live[PackCellKey(x, y, z)]
	return alive
}

func (g *sparseGridImpl) Clear() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return ErrReleased
	}
	clear(g.live)
	clear(g.next)
	g.generation = 0
	return nil
}

func (g *sparseGridImpl) Randomize(density float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return ErrReleased
	}
	if density < 0 || density > 1 {
		return ErrInvalidDensity
	}

	clear(g.live)
	clear(g.next)
	for z := 0; z < g.depth; z++ {
		for y := 0; y < g.height; y++ {
			for x := 0; x < g.width; x++ {
				if g.rng.Float64() < density {
					g.live[PackCellKey(x, y, z)] = struct{}{}
				}
			}
		}
	}
	g.generation = 0
	return nil
}

func (g *sparseGridImpl) Resize(w, h, d int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return ErrReleased
	}
	if w <= 0 || h <= 0 || d <= 0 {
		return ErrZeroDimension
	}
	if w >= MaxAxisExtent || h >= MaxAxisExtent || d >= MaxAxisExtent {
		return ErrExtentTooLarge
	}

	// Destructive by contract, matching the dense engine: no content carries
	// over a resize.
	g.width, g.height, g.depth = w, h, d
	clear(g.live)
	clear(g.next)
	g.generation = 0
	return nil
}

func (g *sparseGridImpl) Population() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.live)
}

func (g *sparseGridImpl) Generation() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.generation
}

func (g *sparseGridImpl) Dimensions() (int, int, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.width, g.height, g.depth
}

func (g *sparseGridImpl) Rule() rules.RuleSet {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rule
}

func (g *sparseGridImpl) SetRule(r rules.RuleSet) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := r.Validate(); err != nil {
		return err
	}
	g.rule = r
	return nil
}

func (g *sparseGridImpl) Boundary() rules.BoundaryMode {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.boundary
}

func (g *sparseGridImpl) SetBoundary(mode rules.BoundaryMode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.boundary = mode
}

func (g *sparseGridImpl) LiveCells() []CellKey {
	g.mu.Lock()
	defer g.mu.Unlock()

	keys := make([]CellKey, 0, len(g.live))
	for key := range g.live {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (g *sparseGridImpl) Snapshot() (*Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return nil, ErrReleased
	}

	s := &Snapshot{
		Width:      g.width,
		Height:     g.height,
		Depth:      g.depth,
		Cells:      make([]bool, g.width*g.height*g.depth),
		Rule:       g.rule,
		Boundary:   g.boundary,
		Generation: g.generation,
	}
	for key := range g.live {
		x, y, z := key.Coords()
		s.Cells[s.Index(x, y, z)] = true
	}
	return s, nil
}

func (g *sparseGridImpl) LoadSnapshot(s *Snapshot) error {
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
	if s.Width >= MaxAxisExtent || s.Height >= MaxAxisExtent || s.Depth >= MaxAxisExtent {
		return ErrExtentTooLarge
	}

	g.width, g.height, g.depth = s.Width, s.Height, s.Depth
	clear(g.live)
	clear(g.next)
	for z := 0; z < s.Depth; z++ {
		for y := 0; y < s.Height; y++ {
			for x := 0; x < s.Width; x++ {
				if s.Cells[s.Index(x, y, z)] {
					g.live[PackCellKey(x, y, z)] = struct{}{}
				}
			}
		}
	}
	g.rule = s.Rule
	g.boundary = s.Boundary
	g.generation = s.Generation
	return nil
}

func (g *sparseGridImpl) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return
	}
	if g.evalPool != nil {
		g.evalPool.Stop()
		g.evalPool = nil
	}
	g.live, g.next = nil, nil
	g.released = true
}

func (g *sparseGridImpl) inRange(x, y, z int) bool {
	return x >= 0 && x < g.width && y >= 0 && y < g.height && z >= 0 && z < g.depth
}
