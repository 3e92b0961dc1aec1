// Package solver solves bound-constrained nonlinear programs with equality
// constraints, of the form
//
//	min f(x)  s.t.  c(x) = b,  xl <= x <= xu
//
// using an augmented Lagrangian outer loop around gonum's L-BFGS minimizer.
// The caller supplies a single evaluation function producing the objective
// and every constraint in one pass over dual numbers, so exact first
// derivatives come out of the same arithmetic that computes the values.
package solver

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/num/dual"
	"gonum.org/v1/gonum/optimize"
)

// Func evaluates the objective and all constraints in one pass.
// out[0] receives the objective and out[1:] the constraint values.
// During differentiation exactly one entry of x carries a unit dual part;
// the corresponding partial derivatives arrive in the dual parts of out.
type Func func(x, out []dual.Number)

// Problem is a fully assembled NLP: initial guess, variable bounds,
// constraint bounds and the combined evaluation callback.
type Problem struct {
	X0     []float64
	XLower []float64
	XUpper []float64
	CLower []float64
	CUpper []float64
	Eval   Func
}

// Status reports why the solver stopped.
type Status int

const (
	Converged Status = iota
	IterationLimit
	TimeLimit
	Failed
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "converged"
	case IterationLimit:
		return "iteration limit"
	case TimeLimit:
		return "time limit"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result holds the best candidate found, whether or not the solve converged.
type Result struct {
	Status      Status
	X           []float64
	Objective   float64
	MaxResidual float64
	OuterIters  int
	Runtime     time.Duration
}

// Options tune the solve. Zero values select defaults.
type Options struct {
	TimeBudget    time.Duration // wall-clock cap for the whole solve
	OuterIters    int           // augmented Lagrangian iterations
	InnerIters    int           // L-BFGS major iterations per outer pass
	ResidualTol   float64       // max |c(x)-b| accepted as converged
	GradientTol   float64       // inner gradient threshold
	Penalty       float64       // initial quadratic penalty weight
	PenaltyGrowth float64       // penalty multiplier when residuals stall
}

func (o *Options) setDefaults() {
	if o.TimeBudget <= 0 {
		o.TimeBudget = 500 * time.Millisecond
	}
	if o.OuterIters <= 0 {
		// Multipliers tighten the residual roughly one decade per pass;
		// reaching ResidualTol from meter-scale violations takes over a
		// dozen passes, so leave generous headroom under the time budget.
		o.OuterIters = 25
	}
	if o.InnerIters <= 0 {
		o.InnerIters = 250
	}
	if o.ResidualTol <= 0 {
		o.ResidualTol = 1e-6
	}
	if o.GradientTol <= 0 {
		o.GradientTol = 1e-8
	}
	if o.Penalty <= 0 {
		o.Penalty = 10
	}
	if o.PenaltyGrowth <= 1 {
		o.PenaltyGrowth = 10
	}
}

// Solve runs the augmented Lagrangian loop. It returns the best candidate
// even when the status is not Converged; only malformed problems produce an
// error. Variable bounds are enforced by quadratic penalties during the
// inner solves and by projection on the returned point.
func Solve(p Problem, opts Options) (Result, error) {
	opts.setDefaults()
	start := time.Now()

	n := len(p.X0)
	m := len(p.CLower)
	if n == 0 || p.Eval == nil {
		return Result{Status: Failed}, fmt.Errorf("solver: empty problem")
	}
	if len(p.XLower) != n || len(p.XUpper) != n {
		return Result{Status: Failed}, fmt.Errorf("solver: variable bounds length %d/%d, want %d", len(p.XLower), len(p.XUpper), n)
	}
	if len(p.CUpper) != m {
		return Result{Status: Failed}, fmt.Errorf("solver: constraint bounds length %d/%d", m, len(p.CUpper))
	}
	for j := 0; j < m; j++ {
		if p.CLower[j] != p.CUpper[j] {
			return Result{Status: Failed}, fmt.Errorf("solver: constraint %d is not an equality (%g != %g)", j, p.CLower[j], p.CUpper[j])
		}
	}
	target := p.CLower

	ev := newEvaluator(p.Eval, n, m)

	x := make([]float64, n)
	copy(x, p.X0)
	project(x, p.XLower, p.XUpper)

	lambda := make([]float64, m)
	mu := opts.Penalty
	deadline := start.Add(opts.TimeBudget)

	status := IterationLimit
	prevRes := math.Inf(1)
	outer := 0

	for k := 0; k < opts.OuterIters; k++ {
		remain := time.Until(deadline)
		if remain <= 0 {
			status = TimeLimit
			break
		}
		outer = k + 1

		prob := optimize.Problem{
			Func: func(xv []float64) float64 {
				return ev.lagrangian(xv, target, lambda, mu, p.XLower, p.XUpper)
			},
			Grad: func(g, xv []float64) {
				ev.lagrangianGrad(g, xv, target, lambda, mu, p.XLower, p.XUpper)
			},
		}
		settings := &optimize.Settings{
			Runtime:           remain,
			MajorIterations:   opts.InnerIters,
			GradientThreshold: opts.GradientTol,
			Converger: &optimize.FunctionConverge{
				Absolute:   1e-12,
				Iterations: 50,
			},
		}

		res, err := optimize.Minimize(prob, x, settings, &optimize.LBFGS{})
		if res != nil && len(res.X) == n {
			copy(x, res.X)
		} else if err != nil {
			// Inner solve produced nothing usable; keep the current point.
			status = Failed
			break
		}

		resNorm := ev.maxResidual(x, target)
		if resNorm <= opts.ResidualTol {
			status = Converged
			break
		}

		// First-order multiplier update; grow the penalty when the
		// residual norm is not shrinking fast enough.
		r := ev.residuals(x, target)
		for j := range lambda {
			lambda[j] += mu * r[j]
		}
		if resNorm > 0.25*prevRes {
			mu *= opts.PenaltyGrowth
		}
		prevRes = resNorm
	}

	project(x, p.XLower, p.XUpper)
	vals := ev.value(x)
	maxRes := 0.0
	for j := 0; j < m; j++ {
		if d := math.Abs(vals[j+1] - target[j]); d > maxRes {
			maxRes = d
		}
	}

	return Result{
		Status:      status,
		X:           x,
		Objective:   vals[0],
		MaxResidual: maxRes,
		OuterIters:  outer,
		Runtime:     time.Since(start),
	}, nil
}

func project(x, lo, hi []float64) {
	for i := range x {
		if x[i] < lo[i] {
			x[i] = lo[i]
		} else if x[i] > hi[i] {
			x[i] = hi[i]
		}
	}
}

// evaluator owns the dual-number scratch space for repeated callback passes.
type evaluator struct {
	eval Func
	n, m int
	xd   []dual.Number
	out  []dual.Number
	vals []float64
	res  []float64
}

func newEvaluator(f Func, n, m int) *evaluator {
	return &evaluator{
		eval: f,
		n:    n,
		m:    m,
		xd:   make([]dual.Number, n),
		out:  make([]dual.Number, m+1),
		vals: make([]float64, m+1),
		res:  make([]float64, m),
	}
}

// value runs one unseeded pass and returns [f, c_1..c_m]. The returned slice
// is reused across calls.
func (e *evaluator) value(x []float64) []float64 {
	for i := range x {
		e.xd[i] = dual.Number{Real: x[i]}
	}
	e.eval(e.xd, e.out)
	for j := range e.out {
		e.vals[j] = e.out[j].Real
	}
	return e.vals
}

// residuals returns c(x) - b. The returned slice is reused across calls.
func (e *evaluator) residuals(x, target []float64) []float64 {
	vals := e.value(x)
	for j := 0; j < e.m; j++ {
		e.res[j] = vals[j+1] - target[j]
	}
	return e.res
}

func (e *evaluator) maxResidual(x, target []float64) float64 {
	r := e.residuals(x, target)
	max := 0.0
	for _, v := range r {
		if a := math.Abs(v); a > max {
			max = a
		}
	}
	return max
}

// lagrangian is f + sum(lambda*r + mu/2*r^2) + mu/2 * bound violations^2.
func (e *evaluator) lagrangian(x, target, lambda []float64, mu float64, lo, hi []float64) float64 {
	vals := e.value(x)
	l := vals[0]
	for j := 0; j < e.m; j++ {
		r := vals[j+1] - target[j]
		l += lambda[j]*r + 0.5*mu*r*r
	}
	for i := range x {
		if d := lo[i] - x[i]; d > 0 {
			l += 0.5 * mu * d * d
		}
		if d := x[i] - hi[i]; d > 0 {
			l += 0.5 * mu * d * d
		}
	}
	return l
}

// lagrangianGrad fills g with the gradient of the augmented Lagrangian,
// one seeded forward-mode pass per variable.
func (e *evaluator) lagrangianGrad(g, x, target, lambda []float64, mu float64, lo, hi []float64) {
	// Residuals first: the chain-rule weights depend on them.
	vals := e.value(x)
	for j := 0; j < e.m; j++ {
		e.res[j] = vals[j+1] - target[j]
	}

	for i := range x {
		e.xd[i].Emag = 1
		e.eval(e.xd, e.out)
		gi := e.out[0].Emag
		for j := 0; j < e.m; j++ {
			gi += (lambda[j] + mu*e.res[j]) * e.out[j+1].Emag
		}
		e.xd[i].Emag = 0

		if d := lo[i] - x[i]; d > 0 {
			gi -= mu * d
		}
		if d := x[i] - hi[i]; d > 0 {
			gi += mu * d
		}
		g[i] = gi
	}
}
