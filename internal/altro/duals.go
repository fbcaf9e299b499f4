package altro

import (
	"math"

	"github.com/san-kum/rocketland/internal/constraints"
	"github.com/san-kum/rocketland/internal/dynamo"
	"github.com/san-kum/rocketland/internal/traj"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// multipliers holds the dual estimate and penalty of one constraint entry at
// every knot of its range.
type multipliers struct {
	entry   constraints.Entry
	lambda  [][]float64
	penalty []float64
}

func newMultipliers(list *constraints.List, rho0 float64) []*multipliers {
	entries := list.Entries()
	out := make([]*multipliers, len(entries))
	for i, e := range entries {
		mu := &multipliers{
			entry:   e,
			lambda:  make([][]float64, e.Range.Len()),
			penalty: make([]float64, e.Range.Len()),
		}
		for j := range mu.lambda {
			mu.lambda[j] = make([]float64, e.Constraint.OutputDim())
		}
		mu.reset(rho0)
		out[i] = mu
	}
	return out
}

func (mu *multipliers) reset(rho0 float64) {
	for j := range mu.lambda {
		for q := range mu.lambda[j] {
			mu.lambda[j][q] = 0
		}
		mu.penalty[j] = rho0
	}
}

func (mu *multipliers) shift() {
	traj.ShiftVectors(mu.lambda)
	traj.ShiftScalars(mu.penalty)
}

// at returns the multiplier slot of knot k, or -1 outside the range.
func (mu *multipliers) at(k int) int {
	if !mu.entry.Range.Contains(k) {
		return -1
	}
	return k - mu.entry.Range.Start
}

// trial returns λ + ρc and c for knot slot j.
func (mu *multipliers) trial(j int, x dynamo.State, u dynamo.Control) (z, c []float64) {
	c = mu.entry.Constraint.Evaluate(x, u)
	z = make([]float64, len(c))
	floats.AddScaledTo(z, mu.lambda[j], mu.penalty[j], c)
	return z, c
}

// cost is the augmented Lagrangian term
// (‖Π_{K°}(λ + ρc)‖² − ‖λ‖²) / 2ρ at knot k.
func (mu *multipliers) cost(k int, x dynamo.State, u dynamo.Control) float64 {
	j := mu.at(k)
	if j < 0 {
		return 0
	}
	z, _ := mu.trial(j, x, u)
	p := constraints.ProjectPolar(mu.entry.Constraint.Sense(), z)
	lam := mu.lambda[j]
	return (floats.Dot(p, p) - floats.Dot(lam, lam)) / (2 * mu.penalty[j])
}

// expand adds the gradient Jᵀp and the Gauss-Newton Hessian ρJᵀ(∂Π)J of the
// augmented Lagrangian term at knot k to g and h, both over z = (x, u).
func (mu *multipliers) expand(k int, x dynamo.State, u dynamo.Control, g *mat.VecDense, h *mat.Dense) {
	j := mu.at(k)
	if j < 0 {
		return
	}
	sense := mu.entry.Constraint.Sense()
	z, _ := mu.trial(j, x, u)
	p := constraints.ProjectPolar(sense, z)
	jac := mu.entry.Constraint.Jacobian(x, u)

	rows, _ := jac.Dims()
	var grad mat.VecDense
	grad.MulVec(jac.T(), mat.NewVecDense(rows, p))
	g.AddVec(g, &grad)

	var djac, hess mat.Dense
	djac.Mul(constraints.PolarJacobian(sense, z), jac)
	hess.Mul(jac.T(), &djac)
	hess.Scale(mu.penalty[j], &hess)
	h.Add(h, &hess)
}

// update applies λ ← Π_{K°}(λ + ρc), clipped to ±dualMax, then grows the
// penalty geometrically at knots still violated beyond the tolerance.
func (mu *multipliers) update(xs []dynamo.State, us []dynamo.Control, o Options) {
	r := mu.entry.Range
	for k := r.Start; k < r.Stop; k++ {
		j := k - r.Start
		var u dynamo.Control
		if k < len(us) {
			u = us[k]
		}
		sense := mu.entry.Constraint.Sense()
		z, c := mu.trial(j, xs[k], u)
		p := constraints.ProjectPolar(sense, z)
		for q := range p {
			p[q] = math.Max(-o.DualMax, math.Min(o.DualMax, p[q]))
		}
		copy(mu.lambda[j], p)
		if constraints.Violation(sense, c) > o.ConstraintTolerance {
			mu.penalty[j] = math.Min(mu.penalty[j]*o.PenaltyScaling, o.PenaltyMax)
		}
	}
}

func (mu *multipliers) maxPenalty() float64 {
	return floats.Max(mu.penalty)
}
