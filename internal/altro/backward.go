package altro

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// policy is the local feedback law u = ū + αd + K(x − x̄) produced by the
// backward pass, with the expected cost change ΔV(α) = α·dV[0] + α²·dV[1].
type policy struct {
	K        []*mat.Dense
	d        []*mat.VecDense
	dV       [2]float64
	gradient float64
}

func (p *policy) expected(alpha float64) float64 {
	return -(alpha*p.dV[0] + alpha*alpha*p.dV[1])
}

// expansion is the second-order model of the augmented Lagrangian at one
// knot over z = (x, u).
type expansion struct {
	g *mat.VecDense
	h *mat.Dense
}

func (s *Solver) expand(k int) expansion {
	n, m := s.n, s.m
	x := s.xs[k]
	terminal := k == s.N-1

	c := s.problem.Objective().Cost(k)
	var u []float64
	if !terminal {
		u = s.us[k]
	}
	gx, gu := c.Gradient(x, u)
	hxx, huu, hux := c.Hessian(x, u)

	e := expansion{g: mat.NewVecDense(n+m, nil), h: mat.NewDense(n+m, n+m, nil)}
	for i := 0; i < n; i++ {
		e.g.SetVec(i, gx[i])
		for j := 0; j < n; j++ {
			e.h.Set(i, j, hxx.At(i, j))
		}
	}
	if !terminal {
		for i := 0; i < m; i++ {
			e.g.SetVec(n+i, gu[i])
			for j := 0; j < m; j++ {
				e.h.Set(n+i, n+j, huu.At(i, j))
			}
			for j := 0; j < n; j++ {
				e.h.Set(n+i, j, hux.At(i, j))
				e.h.Set(j, n+i, hux.At(i, j))
			}
		}
	}
	for _, mu := range s.duals {
		mu.expand(k, x, u, e.g, e.h)
	}
	return e
}

// backwardPass runs the Riccati recursion at regularization reg. It returns
// false when Q_uu + reg·I is not positive definite at some knot.
func (s *Solver) backwardPass(reg float64) (*policy, bool) {
	n, m, N := s.n, s.m, s.N
	pol := &policy{K: make([]*mat.Dense, N-1), d: make([]*mat.VecDense, N-1)}

	term := s.expand(N - 1)
	Vx := mat.NewVecDense(n, nil)
	Vx.CopyVec(term.g.SliceVec(0, n))
	Vxx := mat.DenseCopyOf(term.h.Slice(0, n, 0, n))

	for k := N - 2; k >= 0; k-- {
		e := s.expand(k)
		A, B := s.problem.Model().Jacobian(s.xs[k], s.us[k], s.dt)

		var Qx, Qu mat.VecDense
		Qx.MulVec(A.T(), Vx)
		Qx.AddVec(&Qx, e.g.SliceVec(0, n))
		Qu.MulVec(B.T(), Vx)
		Qu.AddVec(&Qu, e.g.SliceVec(n, n+m))

		var VxxA, VxxB, Qxx, Quu, Qux mat.Dense
		VxxA.Mul(Vxx, A)
		VxxB.Mul(Vxx, B)
		Qxx.Mul(A.T(), &VxxA)
		Qxx.Add(&Qxx, e.h.Slice(0, n, 0, n))
		Quu.Mul(B.T(), &VxxB)
		Quu.Add(&Quu, e.h.Slice(n, n+m, n, n+m))
		Qux.Mul(B.T(), &VxxA)
		Qux.Add(&Qux, e.h.Slice(n, n+m, 0, n))

		QuuReg := mat.NewSymDense(m, nil)
		for i := 0; i < m; i++ {
			for j := i; j < m; j++ {
				QuuReg.SetSym(i, j, 0.5*(Quu.At(i, j)+Quu.At(j, i)))
			}
			QuuReg.SetSym(i, i, QuuReg.At(i, i)+reg)
		}
		var chol mat.Cholesky
		if ok := chol.Factorize(QuuReg); !ok {
			return nil, false
		}

		K := mat.NewDense(m, n, nil)
		d := mat.NewVecDense(m, nil)
		if err := chol.SolveTo(K, &Qux); err != nil {
			return nil, false
		}
		if err := chol.SolveVecTo(d, &Qu); err != nil {
			return nil, false
		}
		K.Scale(-1, K)
		d.ScaleVec(-1, d)
		pol.K[k], pol.d[k] = K, d

		// Vx = Qx + KᵀQuu d + KᵀQu + Quxᵀd
		var Quud, tmp mat.VecDense
		Quud.MulVec(&Quu, d)
		tmp.AddVec(&Quud, &Qu)
		var nextVx mat.VecDense
		nextVx.MulVec(K.T(), &tmp)
		nextVx.AddVec(&nextVx, &Qx)
		tmp.Reset()
		tmp.MulVec(Qux.T(), d)
		nextVx.AddVec(&nextVx, &tmp)

		// Vxx = Qxx + KᵀQuu K + KᵀQux + QuxᵀK
		var QuuK, KtQuuK, KtQux, nextVxx mat.Dense
		QuuK.Mul(&Quu, K)
		KtQuuK.Mul(K.T(), &QuuK)
		KtQux.Mul(K.T(), &Qux)
		nextVxx.Add(&Qxx, &KtQuuK)
		nextVxx.Add(&nextVxx, &KtQux)
		nextVxx.Add(&nextVxx, KtQux.T())
		symmetrize(&nextVxx)

		pol.dV[0] += mat.Dot(d, &Qu)
		pol.dV[1] += 0.5 * mat.Dot(d, &Quud)

		Vx = &nextVx
		Vxx = &nextVxx
	}

	pol.gradient = s.gradient(pol)
	return pol, true
}

// gradient is the mean over knots of max|d|/(|u| + 1).
func (s *Solver) gradient(pol *policy) float64 {
	sum := 0.0
	for k, d := range pol.d {
		g := 0.0
		for i := 0; i < s.m; i++ {
			g = math.Max(g, math.Abs(d.AtVec(i))/(math.Abs(s.us[k][i])+1))
		}
		sum += g
	}
	return sum / float64(len(pol.d))
}

func symmetrize(a *mat.Dense) {
	r, _ := a.Dims()
	for i := 0; i < r; i++ {
		for j := i + 1; j < r; j++ {
			v := 0.5 * (a.At(i, j) + a.At(j, i))
			a.Set(i, j, v)
			a.Set(j, i, v)
		}
	}
}
