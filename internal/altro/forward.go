package altro

import (
	"math"

	"github.com/san-kum/rocketland/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

type lineSearchResult int

const (
	stepAccepted lineSearchResult = iota
	stepRejected
	stepDiverged
)

// rollout simulates the closed loop u = ū + αd + K(x − x̄) into the candidate
// buffers. It returns false when a state leaves the admissible range.
func (s *Solver) rollout(pol *policy, alpha float64) bool {
	copy(s.xc[0], s.xs[0])
	dx := mat.NewVecDense(s.n, nil)
	var du mat.VecDense
	for k := 0; k < s.N-1; k++ {
		for i := 0; i < s.n; i++ {
			dx.SetVec(i, s.xc[k][i]-s.xs[k][i])
		}
		du.MulVec(pol.K[k], dx)
		for i := 0; i < s.m; i++ {
			s.uc[k][i] = s.us[k][i] + alpha*pol.d[k].AtVec(i) + du.AtVec(i)
		}
		next := s.problem.Model().Step(s.xc[k], s.uc[k], s.dt)
		if !s.admissible(next) {
			return false
		}
		copy(s.xc[k+1], next)
	}
	return true
}

func (s *Solver) admissible(x dynamo.State) bool {
	return x.IsValid() && x.InfNorm() <= s.opts.MaxStateValue
}

// forwardPass backtracks on α until the actual decrease of the augmented
// Lagrangian matches the decrease predicted by the backward pass.
func (s *Solver) forwardPass(pol *policy, J float64) (float64, float64, lineSearchResult) {
	alpha := 1.0
	diverged := false
	for i := 0; i < s.opts.MaxLineSearchIterations; i++ {
		ok := s.rollout(pol, alpha)
		diverged = !ok
		if ok {
			Jn := s.cost(s.xc, s.uc)
			expected := pol.expected(alpha)
			if expected > 0 && !math.IsNaN(Jn) {
				z := (J - Jn) / expected
				if z >= s.opts.LineSearchLowerBound && z <= s.opts.LineSearchUpperBound {
					s.xs, s.xc = s.xc, s.xs
					s.us, s.uc = s.uc, s.us
					return Jn, alpha, stepAccepted
				}
			}
		}
		alpha *= s.opts.LineSearchDecrease
	}
	if diverged {
		return J, 0, stepDiverged
	}
	return J, 0, stepRejected
}
