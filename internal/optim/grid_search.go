package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/rocketland/internal/altro"
	"github.com/san-kum/rocketland/internal/config"
	"github.com/san-kum/rocketland/internal/experiment"
)

// ErrNoCandidate is returned when no grid point produced a successful solve.
var ErrNoCandidate = errors.New("optim: no grid point solved")

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("optim: %d parameters but %d ranges", len(params), len(ranges))
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, fmt.Errorf("optim: empty range for %s", params[i])
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// Size is the number of grid points.
func (g *GridSearch) Size() int {
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

// Search runs every grid point and returns the parameters minimizing the
// metric among solves that succeeded.
func (g *GridSearch) Search(
	ctx context.Context,
	buildExperiment func(params map[string]float64) (*experiment.Experiment, error),
	metricName string,
) (map[string]float64, float64, error) {

	best := math.Inf(1)
	var bestParams map[string]float64

	err := g.searchRecursive(ctx, 0, make(map[string]float64), buildExperiment, metricName, &best, &bestParams)
	if err != nil {
		return nil, 0, err
	}
	if bestParams == nil {
		return nil, 0, ErrNoCandidate
	}
	return bestParams, best, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	buildExperiment func(map[string]float64) (*experiment.Experiment, error),
	metricName string,
	best *float64,
	bestParams *map[string]float64,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.paramNames) {
		exp, err := buildExperiment(current)
		if err != nil {
			return nil
		}

		result, err := exp.Run(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			return nil
		}
		if result.Stats.Status != altro.Succeeded {
			return nil
		}

		val, ok := result.Metrics[metricName]
		if !ok {
			return fmt.Errorf("optim: unknown metric %q", metricName)
		}
		if val < *best {
			*best = val
			*bestParams = make(map[string]float64)
			for k, v := range current {
				(*bestParams)[k] = v
			}
		}
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, buildExperiment, metricName, best, bestParams); err != nil {
			return err
		}
	}
	return nil
}

var solverParams = map[string]func(*config.SolverConfig, float64){
	"penalty_initial":      func(s *config.SolverConfig, v float64) { s.PenaltyInitial = v },
	"penalty_scaling":      func(s *config.SolverConfig, v float64) { s.PenaltyScaling = v },
	"penalty_max":          func(s *config.SolverConfig, v float64) { s.PenaltyMax = v },
	"cost_tolerance":       func(s *config.SolverConfig, v float64) { s.CostTolerance = v },
	"gradient_tolerance":   func(s *config.SolverConfig, v float64) { s.GradientTolerance = v },
	"constraint_tolerance": func(s *config.SolverConfig, v float64) { s.ConstraintTolerance = v },
}

// SolverParams lists the parameter names ApplySolverParams understands.
func SolverParams() []string {
	names := make([]string, 0, len(solverParams))
	for name := range solverParams {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplySolverParams returns a copy of base with the named solver settings
// replaced.
func ApplySolverParams(base *config.Config, params map[string]float64) (*config.Config, error) {
	cfg := base.Clone()
	for name, v := range params {
		set, ok := solverParams[name]
		if !ok {
			return nil, fmt.Errorf("optim: unknown solver parameter %q", name)
		}
		set(&cfg.Solver, v)
	}
	return cfg, nil
}
