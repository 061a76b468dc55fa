package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/Carmen-Shannon/voxel-life/engine/automaton"
	"github.com/Carmen-Shannon/voxel-life/engine/compute"
	"github.com/Carmen-Shannon/voxel-life/engine/patternio"
	"github.com/Carmen-Shannon/voxel-life/engine/profiler"
	"github.com/Carmen-Shannon/voxel-life/engine/rules"
)

func main() {
	var (
		width    = flag.Int("width", 64, "grid width in cells")
		height   = flag.Int("height", 64, "grid height in cells")
		depth    = flag.Int("depth", 64, "grid depth in cells")
		engine   = flag.String("engine", "dense", "grid engine: dense or sparse")
		backend  = flag.String("backend", "gpu", "dense compute backend: gpu or cpu")
		ruleName = flag.String("rule", "5766", "rule preset name (see -rules)")
		boundary = flag.String("boundary", "Toroidal", "boundary mode: Toroidal, Mirror, Fixed, Infinite")
		density  = flag.Float64("density", 0.1, "random seeding density in [0, 1]")
		steps    = flag.Int("steps", 100, "generations to run")
		loadPath = flag.String("load", "", "pattern file to load instead of random seeding")
		savePath = flag.String("save", "", "pattern file to write after the run (empty = don't save)")
		workers  = flag.Int("workers", 0, "sparse engine evaluation workers (0 = serial)")
		seed     = flag.Int64("seed", 0, "RNG seed for -density seeding (0 = wall clock)")
		stats    = flag.Bool("stats", false, "log throughput and memory stats while running")
		list     = flag.Bool("rules", false, "list rule presets and exit")
	)
	flag.Parse()

	if *list {
		for _, cat := range rules.Categories() {
			presets := rules.PresetsByCategory(cat)
			if len(presets) == 0 {
				continue
			}
			fmt.Printf("%s:\n", cat)
			for _, r := range presets {
				fmt.Printf("  %-6s %s\n", r.Name, r.Description)
			}
		}
		return
	}

	rule, ok := rules.PresetByName(*ruleName)
	if !ok {
		log.Fatalf("[VoxLife] unknown rule %q; run with -rules to list presets", *ruleName)
	}
	mode, err := rules.ParseBoundaryMode(*boundary)
	if err != nil {
		log.Fatalf("[VoxLife] %v", err)
	}

	opts := []automaton.GridOption{
		automaton.WithRule(rule),
		automaton.WithBoundary(mode),
	}
	if *seed != 0 {
		opts = append(opts, automaton.WithSeed(*seed))
	}
	if *workers > 0 {
		opts = append(opts, automaton.WithEvaluationWorkers(*workers))
	}

	grid, err := buildGrid(*engine, *backend, *width, *height, *depth, opts)
	if err != nil {
		log.Fatalf("[VoxLife] %v", err)
	}
	defer grid.Release()

	if *loadPath != "" {
		pattern, err := patternio.Load(*loadPath)
		if err != nil {
			log.Fatalf("[VoxLife] %v", err)
		}
		snapshot, err := pattern.Snapshot()
		if err != nil {
			log.Fatalf("[VoxLife] %v", err)
		}
		if err := grid.LoadSnapshot(snapshot); err != nil {
			log.Fatalf("[VoxLife] loading pattern: %v", err)
		}
		log.Printf("[VoxLife] Loaded %q (%dx%dx%d, rule %s, gen %d, pop %d)",
			pattern.Name, snapshot.Width, snapshot.Height, snapshot.Depth,
			snapshot.Rule.Name, snapshot.Generation, snapshot.Population())
	} else {
		if err := grid.Randomize(*density); err != nil {
			log.Fatalf("[VoxLife] seeding: %v", err)
		}
		log.Printf("[VoxLife] Seeded %dx%dx%d at density %.2f (pop %d)",
			*width, *height, *depth, *density, grid.Population())
	}

	log.Printf("[VoxLife] Running %d generations of rule %s (%s, %s boundary)",
		*steps, grid.Rule().Name, *engine, grid.Boundary())

	prof := profiler.NewProfiler()
	for i := 0; i < *steps; i++ {
		if err := grid.Step(); err != nil {
			log.Fatalf("[VoxLife] step %d failed: %v", i+1, err)
		}
		if *stats {
			prof.Tick(grid.Generation(), grid.Population())
		}
	}

	log.Printf("[VoxLife] Done: generation %d, population %d", grid.Generation(), grid.Population())

	if *savePath != "" {
		// The dense engine refuses to snapshot while the latest generation is
		// device-only; pull it back first.
		if dense, ok := grid.(automaton.DenseGrid); ok {
			if err := dense.SyncFromDevice(); err != nil {
				log.Fatalf("[VoxLife] sync before save: %v", err)
			}
		}
		snapshot, err := grid.Snapshot()
		if err != nil {
			log.Fatalf("[VoxLife] snapshot: %v", err)
		}
		pattern, err := patternio.FromSnapshot(patternName(*savePath), snapshot)
		if err != nil {
			log.Fatalf("[VoxLife] %v", err)
		}
		if err := patternio.Save(*savePath, pattern); err != nil {
			log.Fatalf("[VoxLife] %v", err)
		}
		log.Printf("[VoxLife] Saved %s", *savePath)
	}
}

// buildGrid wires the requested engine. The dense engine owns its state pair
// but not the backend, so the backend's release is chained onto the grid's.
func buildGrid(engine, backendName string, w, h, d int, opts []automaton.GridOption) (automaton.Grid, error) {
	switch engine {
	case "sparse":
		return automaton.NewSparseGrid(w, h, d, opts...)
	case "dense":
		var backend compute.Backend
		var err error
		switch backendName {
		case "gpu":
			backend, err = compute.NewWGPUBackend()
		case "cpu":
			backend = compute.NewHostBackend()
		default:
			return nil, fmt.Errorf("unknown backend %q (want gpu or cpu)", backendName)
		}
		if err != nil {
			return nil, err
		}
		grid, err := automaton.NewDenseGrid(backend, w, h, d, opts...)
		if err != nil {
			backend.Release()
			return nil, err
		}
		return &ownedBackendGrid{DenseGrid: grid, backend: backend}, nil
	default:
		return nil, fmt.Errorf("unknown engine %q (want dense or sparse)", engine)
	}
}

// ownedBackendGrid releases the backend after the grid, preserving strict
// resource nesting when main owns both.
type ownedBackendGrid struct {
	automaton.DenseGrid
	backend compute.Backend
}

func (g *ownedBackendGrid) Release() {
	g.DenseGrid.Release()
	g.backend.Release()
}

func patternName(path string) string {
	name := path
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, ".json")
}
