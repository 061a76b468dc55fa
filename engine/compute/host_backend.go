package compute

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Carmen-Shannon/voxel-life/engine/rules"
)

// hostStatePair keeps both state buffers in host memory.
type hostStatePair struct {
	cellCount int
	current   int
	states    [2][]uint32
}

var _ StatePair = &hostStatePair{}

func (p *hostStatePair) Swap() {
	p.current = 1 - p.current
}

func (p *hostStatePair) CellCount() int {
	return p.cellCount
}

func (p *hostStatePair) Release() {
	p.states[0], p.states[1] = nil, nil
}

type hostBackendImpl struct {
	workers int
}

var _ Backend = &hostBackendImpl{}

// NewHostBackend creates a CPU implementation of the Backend contract. State
// lives in ordinary slices and Step splits the grid into z-slabs evaluated
// concurrently, one goroutine per worker. It exists so the dense engine runs
// (and is testable) on machines without a GPU; the cost contract is the same,
// only the throughput differs.
//
// Parameters:
//   - options: a variadic list of options to configure the backend
//
// Returns:
//   - Backend: the configured backend
func NewHostBackend(options ...HostBackendOption) Backend {
	b := &hostBackendImpl{
		workers: runtime.NumCPU(),
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// HostBackendOption configures NewHostBackend.
type HostBackendOption func(*hostBackendImpl)

// WithStepWorkers overrides the number of goroutines Step fans out to.
// Values below 1 are ignored.
//
// Parameters:
//   - n: the worker count
//
// Returns:
//   - HostBackendOption: the configured option
func WithStepWorkers(n int) HostBackendOption {
	return func(b *hostBackendImpl) {
		if n >= 1 {
			b.workers = n
		}
	}
}

func (b *hostBackendImpl) AllocateStates(cellCount int) (StatePair, error) {
	if cellCount <= 0 {
		return nil, fmt.Errorf("compute: invalid cell count %d", cellCount)
	}
	return &hostStatePair{
		cellCount: cellCount,
		states:    [2][]uint32{make([]uint32, cellCount), make([]uint32, cellCount)},
	}, nil
}

func (b *hostBackendImpl) Upload(states StatePair, data []uint32) error {
	p, err := b.pair(states)
	if err != nil {
		return err
	}
	if len(data) != p.cellCount {
		return fmt.Errorf("compute: upload size %d does not match cell count %d", len(data), p.cellCount)
	}
	copy(p.states[p.current], data)
	return nil
}

func (b *hostBackendImpl) Download(states StatePair, dst []uint32) error {
	p, err := b.pair(states)
	if err != nil {
		return err
	}
	if len(dst) != p.cellCount {
		return fmt.Errorf("compute: download size %d does not match cell count %d", len(dst), p.cellCount)
	}
	copy(dst, p.states[p.current])
	return nil
}

func (b *hostBackendImpl) WriteCell(states StatePair, index int, alive bool) error {
	p, err := b.pair(states)
	if err != nil {
		return err
	}
	if index < 0 || index >= p.cellCount {
		return fmt.Errorf("compute: cell index %d out of range", index)
	}
	var word uint32
	if alive {
		word = 1
	}
	p.states[p.current][index] = word
	return nil
}

func (b *hostBackendImpl) ReadCell(states StatePair, index int) (bool, error) {
	p, err := b.pair(states)
	if err != nil {
		return false, err
	}
	if index < 0 || index >= p.cellCount {
		return false, fmt.Errorf("compute: cell index %d out of range", index)
	}
	return p.states[p.current][index] == 1, nil
}

func (b *hostBackendImpl) Step(states StatePair, params KernelParams) (int, error) {
	p, err := b.pair(states)
	if err != nil {
		return 0, err
	}
	if params.CellCount() != p.cellCount {
		return 0, fmt.Errorf("compute: params cover %d cells, pair holds %d", params.CellCount(), p.cellCount)
	}

	var (
		current  = p.states[p.current]
		next     = p.states[1-p.current]
		w        = int(params.Width)
		h        = int(params.Height)
		d        = int(params.Depth)
		boundary = rules.BoundaryMode(params.Boundary)
		rule     = rules.RuleSet{
			SurviveMin: int(params.SurviveMin),
			SurviveMax: int(params.SurviveMax),
			Birth:      rules.NeighborSet(params.BirthMask),
		}
	)

	workers := b.workers
	if workers > d {
		workers = d
	}
	slabSize := (d + workers - 1) / workers
	counts := make([]int, workers)

	var eg errgroup.Group
	for i := 0; i < workers; i++ {
		var (
			slab   = i
			startZ = i * slabSize
			endZ   = min(startZ+slabSize, d)
		)
		if startZ >= d {
			break
		}

		eg.Go(func() error {
			live := 0
			for z := startZ; z < endZ; z++ {
				for y := 0; y < h; y++ {
					for x := 0; x < w; x++ {
						count := 0
						for dz := -1; dz <= 1; dz++ {
							for dy := -1; dy <= 1; dy++ {
								for dx := -1; dx <= 1; dx++ {
									if dx == 0 && dy == 0 && dz == 0 {
										continue
									}
									nx, ok := rules.ResolveCoord(x+dx, w, boundary)
									if !ok {
										continue
									}
									ny, ok := rules.ResolveCoord(y+dy, h, boundary)
									if !ok {
										continue
									}
									nz, ok := rules.ResolveCoord(z+dz, d, boundary)
									if !ok {
										continue
									}
									count += int(current[nz*w*h+ny*w+nx])
								}
							}
						}
						idx := z*w*h + y*w + x
						if rule.NextState(current[idx] == 1, count) {
							next[idx] = 1
							live++
						} else {
							next[idx] = 0
						}
					}
				}
			}
			counts[slab] = live
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return 0, err
	}

	population := 0
	for _, c := range counts {
		population += c
	}
	return population, nil
}

func (b *hostBackendImpl) Release() {}

func (b *hostBackendImpl) pair(states StatePair) (*hostStatePair, error) {
	p, ok := states.(*hostStatePair)
	if !ok || p == nil {
		return nil, fmt.Errorf("compute: state pair was not allocated by this backend")
	}
	return p, nil
}
