// Package automation runs scripted batches of landings from YAML scenarios
// and parameter sweeps.
package automation

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"sort"

	"github.com/san-kum/rocketland/internal/altro"
	"github.com/san-kum/rocketland/internal/config"
	"github.com/san-kum/rocketland/internal/experiment"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat/distuv"
	"gopkg.in/yaml.v3"
)

const (
	ModeSolve = "solve"
	ModeMPC   = "mpc"
)

// Scenario defines a scripted sequence of landings.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep starts from a preset (nominal when empty) and overrides the
// fields that are set.
type ScenarioStep struct {
	Name      string    `yaml:"name"`
	Preset    string    `yaml:"preset"`
	Mode      string    `yaml:"mode"`
	InitState []float64 `yaml:"init_state"`
	Knots     int       `yaml:"knots"`
	Horizon   int       `yaml:"horizon"`
	Seed      uint64    `yaml:"seed"`
	Noise     float64   `yaml:"noise"`
}

// StepResult is the outcome of one scenario step.
type StepResult struct {
	Name    string
	Mode    string
	Config  *config.Config
	Status  string
	Metrics map[string]float64
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("%s: scenario has no steps", path)
	}
	return &scenario, nil
}

// Config resolves the step's configuration.
func (s ScenarioStep) Config() (*config.Config, error) {
	name := s.Preset
	if name == "" {
		name = "nominal"
	}
	cfg := config.GetPreset(name)
	if cfg == nil {
		return nil, fmt.Errorf("unknown preset: %s", name)
	}
	if s.InitState != nil {
		if len(s.InitState) != 6 {
			return nil, fmt.Errorf("init_state needs 6 values, got %d", len(s.InitState))
		}
		x := s.InitState
		cfg.InitState = config.InitStateConfig{X: x[0], Y: x[1], Z: x[2], VX: x[3], VY: x[4], VZ: x[5]}
	}
	if s.Knots > 0 {
		cfg.Knots = s.Knots
	}
	if s.Horizon > 0 {
		cfg.MPC.Horizon = s.Horizon
	}
	if s.Seed > 0 {
		cfg.Seed = s.Seed
	}
	if s.Noise > 0 {
		cfg.MPC.Noise = config.NoiseConfig{Position: s.Noise, Velocity: s.Noise / 10}
	}
	return cfg, cfg.Validate()
}

// RunScenario executes the steps in order and stops at the first failure,
// returning the results so far.
func RunScenario(ctx context.Context, scenario *Scenario, log *zap.Logger) ([]StepResult, error) {
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		mode := step.Mode
		if mode == "" {
			mode = ModeSolve
		}
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step-%d", i+1)
		}
		log.Info("scenario step", zap.String("scenario", scenario.Name), zap.String("step", name),
			zap.Int("index", i+1), zap.Int("of", len(scenario.Steps)))

		cfg, err := step.Config()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		exp, err := experiment.New(cfg, experiment.WithLogger(log))
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		ref, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}

		res := StepResult{Name: name, Mode: mode, Config: cfg, Status: ref.Stats.Status.String(), Metrics: ref.Metrics}
		switch mode {
		case ModeSolve:
		case ModeMPC:
			closed, err := exp.RunMPC(ctx, ref)
			if err != nil {
				return results, fmt.Errorf("step %d mpc: %w", i+1, err)
			}
			res.Metrics = closed.Metrics
			res.Status = fmt.Sprintf("%d/%d solved", len(closed.Steps)-int(closed.Metrics["failed_solves"]), len(closed.Steps))
		default:
			return results, fmt.Errorf("step %d: unknown mode %q", i+1, mode)
		}
		results = append(results, res)
	}

	return results, nil
}

// sweepParams maps a sweepable name to its config field.
var sweepParams = map[string]func(*config.Config, float64){
	"x":           func(c *config.Config, v float64) { c.InitState.X = v },
	"y":           func(c *config.Config, v float64) { c.InitState.Y = v },
	"z":           func(c *config.Config, v float64) { c.InitState.Z = v },
	"vx":          func(c *config.Config, v float64) { c.InitState.VX = v },
	"vy":          func(c *config.Config, v float64) { c.InitState.VY = v },
	"vz":          func(c *config.Config, v float64) { c.InitState.VZ = v },
	"mass":        func(c *config.Config, v float64) { c.Rocket.Mass = v },
	"max_thrust":  func(c *config.Config, v float64) { c.Constraints.MaxThrust = v },
	"max_angle":   func(c *config.Config, v float64) { c.Constraints.MaxAngle = v },
	"glide_slope": func(c *config.Config, v float64) { c.Constraints.GlideSlope = v },
}

func SweepParams() []string {
	names := make([]string, 0, len(sweepParams))
	for name := range sweepParams {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParameterSweep solves the reference at NumSteps evenly spaced values of
// one parameter.
type ParameterSweep struct {
	Base      *config.Config
	ParamName string
	ParamMin  float64
	ParamMax  float64
	NumSteps  int
}

type SweepResult struct {
	ParamValue float64
	Status     altro.Status
	Iterations int
	Cost       float64
	Violation  float64
}

func RunSweep(ctx context.Context, sweep *ParameterSweep, log *zap.Logger) ([]SweepResult, error) {
	set, ok := sweepParams[sweep.ParamName]
	if !ok {
		return nil, fmt.Errorf("unknown sweep parameter %q (available: %v)", sweep.ParamName, SweepParams())
	}
	if sweep.NumSteps < 1 {
		return nil, fmt.Errorf("sweep needs at least one step, got %d", sweep.NumSteps)
	}

	paramStep := 0.0
	if sweep.NumSteps > 1 {
		paramStep = (sweep.ParamMax - sweep.ParamMin) / float64(sweep.NumSteps-1)
	}
	results := make([]SweepResult, 0, sweep.NumSteps)
	for i := 0; i < sweep.NumSteps; i++ {
		paramVal := sweep.ParamMin + float64(i)*paramStep
		cfg := sweep.Base.Clone()
		set(cfg, paramVal)
		if err := cfg.Validate(); err != nil {
			return results, fmt.Errorf("%s=%g: %w", sweep.ParamName, paramVal, err)
		}

		exp, err := experiment.New(cfg, experiment.WithLogger(log))
		if err != nil {
			return results, err
		}
		res, err := exp.Run(ctx)
		if err != nil {
			return results, err
		}

		results = append(results, SweepResult{
			ParamValue: paramVal,
			Status:     res.Stats.Status,
			Iterations: res.Stats.Iterations,
			Cost:       res.Stats.Cost,
			Violation:  res.Stats.Violation,
		})
		log.Debug("sweep point", zap.String("param", sweep.ParamName), zap.Float64("value", paramVal),
			zap.Stringer("status", res.Stats.Status))
	}

	return results, nil
}

// MonteCarloConfig perturbs every initial state component uniformly by at
// most Perturbation.
type MonteCarloConfig struct {
	Base         *config.Config
	Perturbation float64
	NumTrials    int
	Seed         uint64
}

type MonteCarloResult struct {
	TrialID   int
	InitState []float64
	Status    altro.Status
	// TerminalError is the ∞-norm of the final reference state.
	TerminalError float64
}

// RunMonteCarlo solves the reference from NumTrials perturbed initial
// states. Trials whose perturbed state fails validation are reported as
// errors.
func RunMonteCarlo(ctx context.Context, mc *MonteCarloConfig, log *zap.Logger) ([]MonteCarloResult, error) {
	dist := distuv.Uniform{Min: -mc.Perturbation, Max: mc.Perturbation, Src: rand.NewPCG(mc.Seed, mc.Seed^0x5851f42d4c957f2d)}

	results := make([]MonteCarloResult, 0, mc.NumTrials)
	for trial := 0; trial < mc.NumTrials; trial++ {
		cfg := mc.Base.Clone()
		x := cfg.GetInitState()
		for i := range x {
			x[i] += dist.Rand()
		}
		// keep the start above the ground
		if x[2] < 0 {
			x[2] = -x[2]
		}
		cfg.InitState = config.InitStateConfig{X: x[0], Y: x[1], Z: x[2], VX: x[3], VY: x[4], VZ: x[5]}

		exp, err := experiment.New(cfg, experiment.WithLogger(log))
		if err != nil {
			return results, err
		}
		res, err := exp.Run(ctx)
		if err != nil {
			return results, err
		}

		results = append(results, MonteCarloResult{
			TrialID:       trial,
			InitState:     x,
			Status:        res.Stats.Status,
			TerminalError: res.Metrics["terminal_error"],
		})
		if (trial+1)%10 == 0 {
			log.Info("monte carlo progress", zap.Int("done", trial+1), zap.Int("trials", mc.NumTrials))
		}
	}

	return results, nil
}

// MonteCarloStats counts converged and failed trials.
func MonteCarloStats(results []MonteCarloResult) (succeeded int, failed int) {
	for _, r := range results {
		if r.Status == altro.Succeeded {
			succeeded++
		} else {
			failed++
		}
	}
	return
}
