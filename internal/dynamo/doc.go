// Package dynamo provides the vector primitives shared by models, solvers
// and the MPC loop.
//
//   - [State], [Control]: plain float64 vectors with small arithmetic helpers
//   - [System]: continuous-time model (dX/dt = f(X, u, t))
//   - [Integrator]: numerical integrator used to discretize a [System]
//   - [Metric]: closed-loop observer producing a scalar summary
//
// Dimension problems are reported as [DimensionError] values which unwrap
// to [ErrDimensionMismatch]:
//
//	if err := dynamo.CheckDim("initial state", 6, len(x0)); err != nil {
//	    return err
//	}
package dynamo
