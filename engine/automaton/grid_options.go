package automaton

import (
	"time"

	"github.com/Carmen-Shannon/voxel-life/engine/rules"
)

// gridConfig holds construction-time settings shared by both engines.
type gridConfig struct {
	rule        rules.RuleSet
	boundary    rules.BoundaryMode
	seed        int64
	evalWorkers int
}

func newGridConfig() *gridConfig {
	return &gridConfig{
		rule:     rules.Rule5766,
		boundary: rules.Toroidal,
		seed:     time.Now().UnixNano(),
	}
}

// GridOption configures NewDenseGrid and NewSparseGrid.
type GridOption func(*gridConfig)

// WithRule sets the initial rule set. Defaults to rules.Rule5766.
//
// Parameters:
//   - r: the rule set
//
// Returns:
//   - GridOption: the configured option
func WithRule(r rules.RuleSet) GridOption {
	return func(cfg *gridConfig) {
		cfg.rule = r
	}
}

// WithBoundary sets the initial boundary mode. Defaults to rules.Toroidal.
//
// Parameters:
//   - mode: the boundary mode
//
// Returns:
//   - GridOption: the configured option
func WithBoundary(mode rules.BoundaryMode) GridOption {
	return func(cfg *gridConfig) {
		cfg.boundary = mode
	}
}

// WithSeed fixes the Randomize RNG seed for reproducible runs. Defaults to
// the wall clock.
//
// Parameters:
//   - seed: the RNG seed
//
// Returns:
//   - GridOption: the configured option
func WithSeed(seed int64) GridOption {
	return func(cfg *gridConfig) {
		cfg.seed = seed
	}
}

// WithEvaluationWorkers enables parallel candidate evaluation on the sparse
// engine, sharding each generation's candidate set across a pool of n
// workers. The dense engine ignores this option; its parallelism lives in the
// compute backend. Values below 2 leave the sparse step serial.
//
// Parameters:
//   - n: the worker count
//
// Returns:
//   - GridOption: the configured option
func WithEvaluationWorkers(n int) GridOption {
	return func(cfg *gridConfig) {
		if n >= 2 {
			cfg.evalWorkers = n
		}
	}
}
