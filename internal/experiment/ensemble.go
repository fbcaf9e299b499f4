package experiment

import (
	"context"
	"fmt"
	"sort"

	"github.com/san-kum/rocketland/internal/config"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// Ensemble repeats the closed loop over consecutive disturbance seeds.
type Ensemble struct {
	cfg       *config.Config
	numRuns   int
	seedStart uint64
	workers   int
	opts      []Option
}

// NewEnsemble runs numRuns closed loops seeded seedStart, seedStart+1, ...
// with at most workers running at once (0 means one per run).
func NewEnsemble(cfg *config.Config, numRuns int, seedStart uint64, workers int, opts ...Option) (*Ensemble, error) {
	if numRuns < 1 {
		return nil, fmt.Errorf("experiment: ensemble needs at least one run, got %d", numRuns)
	}
	return &Ensemble{cfg: cfg, numRuns: numRuns, seedStart: seedStart, workers: workers, opts: opts}, nil
}

// Run tracks ref once per seed. Results are ordered by seed; the first
// failing run cancels the others.
func (e *Ensemble) Run(ctx context.Context, ref *Result) ([]*MPCResult, error) {
	results := make([]*MPCResult, e.numRuns)

	g, ctx := errgroup.WithContext(ctx)
	if e.workers > 0 {
		g.SetLimit(e.workers)
	}
	for i := 0; i < e.numRuns; i++ {
		g.Go(func() error {
			cfg := e.cfg.Clone()
			cfg.Seed = e.seedStart + uint64(i)

			exp, err := New(cfg, e.opts...)
			if err != nil {
				return err
			}
			res, err := exp.RunMPC(ctx, ref)
			if err != nil {
				return fmt.Errorf("seed %d: %w", cfg.Seed, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Spread summarizes one metric over an ensemble. Std is the population
// deviation and Median the empirical quantile, which is the lower middle
// value for an even count.
type Spread struct {
	Mean, Std, Min, Max, Median float64
}

func MetricSpread(results []*MPCResult, name string) Spread {
	vals := make([]float64, 0, len(results))
	for _, r := range results {
		if v, ok := r.Metrics[name]; ok {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return Spread{}
	}
	sort.Float64s(vals)

	s := Spread{Min: vals[0], Max: vals[len(vals)-1]}
	s.Mean, s.Std = stat.PopMeanStdDev(vals, nil)
	s.Median = stat.Quantile(0.5, stat.Empirical, vals, nil)
	return s
}
