package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/rocketland/internal/config"
	"github.com/san-kum/rocketland/internal/dynamo"
	"github.com/san-kum/rocketland/internal/integrators"
	"github.com/san-kum/rocketland/internal/metrics"
	"github.com/san-kum/rocketland/internal/models"
	"github.com/san-kum/rocketland/internal/mpc"
)

// Exact selects the model's own discretization instead of an integrator.
const Exact = "exact"

type Registry struct {
	models       map[string]func(config.RocketConfig) dynamo.System
	integrators  map[string]func() dynamo.Integrator
	disturbances map[string]func(config.NoiseConfig, uint64) mpc.Disturbance
}

func NewRegistry() *Registry {
	r := &Registry{
		models:       make(map[string]func(config.RocketConfig) dynamo.System),
		integrators:  make(map[string]func() dynamo.Integrator),
		disturbances: make(map[string]func(config.NoiseConfig, uint64) mpc.Disturbance),
	}

	r.models["rocket"] = func(c config.RocketConfig) dynamo.System {
		return models.NewRocket(c.Mass, c.Gravity)
	}

	r.integrators["euler"] = func() dynamo.Integrator { return integrators.NewEuler() }
	r.integrators["rk4"] = func() dynamo.Integrator { return integrators.NewRK4() }
	r.integrators["rk45"] = func() dynamo.Integrator { return integrators.NewRK45() }

	r.disturbances["none"] = func(config.NoiseConfig, uint64) mpc.Disturbance { return mpc.None{} }
	r.disturbances["uniform"] = func(c config.NoiseConfig, seed uint64) mpc.Disturbance {
		return mpc.NewUniformNoise(c.Position, c.Velocity, seed)
	}

	return r
}

func (r *Registry) GetModel(name string, params config.RocketConfig) (dynamo.System, error) {
	fn, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	return fn(params), nil
}

func (r *Registry) GetIntegrator(name string) (dynamo.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(), nil
}

func (r *Registry) GetDisturbance(name string, noise config.NoiseConfig, seed uint64) (mpc.Disturbance, error) {
	fn, ok := r.disturbances[name]
	if !ok {
		return nil, fmt.Errorf("unknown disturbance: %s", name)
	}
	return fn(noise, seed), nil
}

// Discretize turns sys into a discrete model, either through its exact
// discretization or through a registered integrator.
func (r *Registry) Discretize(sys dynamo.System, integrator string) (models.Discrete, error) {
	if integrator == Exact || integrator == "" {
		d, ok := sys.(models.Discrete)
		if !ok {
			return nil, fmt.Errorf("model has no exact discretization")
		}
		return d, nil
	}
	integ, err := r.GetIntegrator(integrator)
	if err != nil {
		return nil, err
	}
	return models.NewDiscretized(sys, integ), nil
}

func (r *Registry) ListModels() []string {
	return sortedKeys(r.models)
}

func (r *Registry) ListIntegrators() []string {
	return append(sortedKeys(r.integrators), Exact)
}

func (r *Registry) ListDisturbances() []string {
	return sortedKeys(r.disturbances)
}

func (r *Registry) DefaultMetrics(sys dynamo.System) []dynamo.Metric {
	return []dynamo.Metric{
		metrics.NewControlEffort(),
		metrics.NewPeakControl(),
		metrics.NewChatter(),
		metrics.NewEnergy(sys),
		metrics.NewClearance("min_altitude", 2),
		metrics.NewStability(1e3),
	}
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
