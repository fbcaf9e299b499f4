package config

import (
	"fmt"
	"os"

	"github.com/san-kum/rocketland/internal/dynamo"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDt         = 0.05
	DefaultKnots      = 301
	DefaultMass       = 10.0
	DefaultGravityZ   = -9.81
	DefaultMaxThrust  = 200.0
	DefaultMaxAngle   = 25.0
	DefaultGlideSlope = 45.0
	DefaultHorizon    = 21
)

type Config struct {
	Model       string           `yaml:"model"`
	Integrator  string           `yaml:"integrator"`
	Dt          float64          `yaml:"dt"`
	Knots       int              `yaml:"knots"`
	Seed        uint64           `yaml:"seed"`
	Rocket      RocketConfig     `yaml:"rocket"`
	InitState   InitStateConfig  `yaml:"init_state"`
	Cost        CostConfig       `yaml:"cost"`
	Constraints ConstraintConfig `yaml:"constraints"`
	Solver      SolverConfig     `yaml:"solver"`
	MPC         MPCConfig        `yaml:"mpc"`
}

type RocketConfig struct {
	Mass    float64    `yaml:"mass"`
	Gravity [3]float64 `yaml:"gravity"`
}

type InitStateConfig struct {
	X  float64 `yaml:"x"`
	Y  float64 `yaml:"y"`
	Z  float64 `yaml:"z"`
	VX float64 `yaml:"vx"`
	VY float64 `yaml:"vy"`
	VZ float64 `yaml:"vz"`
}

// CostConfig holds isotropic weights. A zero terminal weight means
// (knots − 1)·state weight.
type CostConfig struct {
	State    float64 `yaml:"state"`
	Control  float64 `yaml:"control"`
	Terminal float64 `yaml:"terminal"`
}

// ConstraintConfig sets the landing limits. Angles are in degrees; a zero
// limit disables the constraint.
type ConstraintConfig struct {
	MaxThrust  float64 `yaml:"max_thrust"`
	MaxAngle   float64 `yaml:"max_angle"`
	GlideSlope float64 `yaml:"glide_slope"`
	Ground     bool    `yaml:"ground"`
}

type SolverConfig struct {
	CostTolerance       float64 `yaml:"cost_tolerance"`
	GradientTolerance   float64 `yaml:"gradient_tolerance"`
	ConstraintTolerance float64 `yaml:"constraint_tolerance"`
	PenaltyInitial      float64 `yaml:"penalty_initial"`
	PenaltyScaling      float64 `yaml:"penalty_scaling"`
	PenaltyMax          float64 `yaml:"penalty_max"`
	MaxIterations       int     `yaml:"max_iterations"`
	MaxOuterIterations  int     `yaml:"max_outer_iterations"`
}

type MPCConfig struct {
	Horizon    int `yaml:"horizon"`
	Iterations int `yaml:"iterations"`
	// StateWeights is the diagonal of the tracking weight on (r, v).
	StateWeights  []float64   `yaml:"state_weights"`
	ControlWeight float64     `yaml:"control_weight"`
	TerminalScale float64     `yaml:"terminal_scale"`
	Noise         NoiseConfig `yaml:"noise"`
}

// NoiseConfig scales the uniform disturbance by the ∞-norm of the position
// and velocity blocks. Zero fractions disable it.
type NoiseConfig struct {
	Position float64 `yaml:"position"`
	Velocity float64 `yaml:"velocity"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:      "rocket",
		Integrator: "exact",
		Dt:         DefaultDt,
		Knots:      DefaultKnots,
		Seed:       1,
		Rocket: RocketConfig{
			Mass:    DefaultMass,
			Gravity: [3]float64{0, 0, DefaultGravityZ},
		},
		InitState: InitStateConfig{X: 4, Y: 2, Z: 20, VX: -3, VY: 2, VZ: -5},
		Cost:      CostConfig{State: 1e-2, Control: 1e-4},
		Constraints: ConstraintConfig{
			MaxThrust:  DefaultMaxThrust,
			MaxAngle:   DefaultMaxAngle,
			GlideSlope: DefaultGlideSlope,
			Ground:     true,
		},
		Solver: SolverConfig{
			CostTolerance:       1e-4,
			GradientTolerance:   10,
			ConstraintTolerance: 1e-6,
			PenaltyInitial:      1,
			PenaltyScaling:      10,
			PenaltyMax:          1e8,
			MaxIterations:       500,
			MaxOuterIterations:  30,
		},
		MPC: MPCConfig{
			Horizon:       DefaultHorizon,
			StateWeights:  []float64{1, 1, 1, 0.1, 0.1, 0.1},
			ControlWeight: 1e-3,
			TerminalScale: 10,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the values the solver cannot recover from. Range errors
// wrap dynamo.ErrParameterBounds.
func (c *Config) Validate() error {
	switch {
	case c.Dt <= 0:
		return fmt.Errorf("config: dt must be positive, got %g: %w", c.Dt, dynamo.ErrParameterBounds)
	case c.Knots < 2:
		return fmt.Errorf("config: need at least 2 knots, got %d: %w", c.Knots, dynamo.ErrParameterBounds)
	case c.Rocket.Mass <= 0:
		return fmt.Errorf("config: mass must be positive, got %g: %w", c.Rocket.Mass, dynamo.ErrParameterBounds)
	case c.MPC.Horizon < 2 || c.MPC.Horizon > c.Knots:
		return fmt.Errorf("config: mpc horizon %d outside [2, %d]: %w", c.MPC.Horizon, c.Knots, dynamo.ErrParameterBounds)
	case c.Constraints.MaxAngle < 0 || c.Constraints.MaxAngle >= 90:
		return fmt.Errorf("config: max angle %g outside [0, 90): %w", c.Constraints.MaxAngle, dynamo.ErrParameterBounds)
	case c.Constraints.GlideSlope < 0 || c.Constraints.GlideSlope >= 90:
		return fmt.Errorf("config: glide slope %g outside [0, 90): %w", c.Constraints.GlideSlope, dynamo.ErrParameterBounds)
	}
	if err := dynamo.CheckDim("config: mpc state weights", 6, len(c.MPC.StateWeights)); err != nil {
		return err
	}
	return nil
}

func (c *Config) GetInitState() []float64 {
	s := c.InitState
	return []float64{s.X, s.Y, s.Z, s.VX, s.VY, s.VZ}
}

// Duration is the length of the reference trajectory in seconds.
func (c *Config) Duration() float64 {
	return float64(c.Knots-1) * c.Dt
}

// TerminalWeight resolves the default terminal weight.
func (c *Config) TerminalWeight() float64 {
	if c.Cost.Terminal > 0 {
		return c.Cost.Terminal
	}
	return float64(c.Knots-1) * c.Cost.State
}

// Clone returns a deep copy, so presets can be modified safely.
func (c *Config) Clone() *Config {
	out := *c
	out.MPC.StateWeights = append([]float64(nil), c.MPC.StateWeights...)
	return &out
}
