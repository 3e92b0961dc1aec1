// Package mpc plans steering and acceleration for a vehicle by solving a
// short-horizon constrained trajectory optimization each control cycle.
// The vehicle state and a polynomial fit of the reference path go in; the
// first actuator command of the optimized plan plus the predicted
// trajectory come out. Cycles are independent: a Controller keeps no state
// between solves and may be called from concurrent loops.
package mpc

import (
	"fmt"
	"math"
	"time"

	"mpc-drive-core/solver"
	"mpc-drive-core/utils"
)

// State variables other than speed carry no bound of their own; the solver
// wants explicit limits, so "unbounded" is a limit it can never reach.
const freeBound = 1e19

// Solution is the output of one control cycle. PredictedX/Y include the
// current step, so both have Horizon entries.
type Solution struct {
	SteerRad   float64
	AccelMPS2  float64
	PredictedX []float64
	PredictedY []float64

	Converged bool
	Objective float64
	SolveTime time.Duration
}

// Controller solves the receding-horizon problem. Construct once, call
// Solve every cycle.
type Controller struct {
	cfg   Config
	lay   layout
	model Model
	log   *utils.Logger
}

// NewController validates cfg and builds a controller. A nil logger falls
// back to stdout at INFO.
func NewController(cfg Config, log *utils.Logger) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("mpc config: %w", err)
	}
	if log == nil {
		log = utils.NewStdoutLogger(utils.INFO)
	}
	return &Controller{
		cfg:   cfg,
		lay:   newLayout(cfg.Horizon),
		model: Model{LfM: cfg.LfM, StepS: cfg.StepS},
		log:   log,
	}, nil
}

// Config returns the controller's immutable configuration.
func (c *Controller) Config() Config { return c.cfg }

// Model returns the kinematic model the controller plans with.
func (c *Controller) Model() Model { return c.model }

// Solve runs one control cycle. A solver that stops on its time budget or
// fails to converge is logged and the best candidate it produced is still
// returned: a real-time controller must always emit a command, and a stale
// one beats none. Only malformed input or a broken problem yields an error.
func (c *Controller) Solve(init State, coeffs []float64) (Solution, error) {
	if err := checkInputs(init, coeffs); err != nil {
		return Solution{}, err
	}

	lay := c.lay
	cfg := c.cfg

	// Decision vector: zero everywhere except the initial-state segment
	// heads, which double as initial guess and pre-satisfy the pinning
	// constraints below.
	x0 := make([]float64, lay.nVars)
	xl := make([]float64, lay.nVars)
	xu := make([]float64, lay.nVars)
	for i := 0; i < lay.steer; i++ {
		xl[i], xu[i] = -freeBound, freeBound
	}
	for i := lay.v; i < lay.cte; i++ {
		xl[i], xu[i] = -cfg.SpeedLimitMPS, cfg.SpeedLimitMPS
	}
	for i := lay.steer; i < lay.accel; i++ {
		xl[i], xu[i] = -cfg.MaxSteerRad, cfg.MaxSteerRad
	}
	for i := lay.accel; i < lay.nVars; i++ {
		xl[i], xu[i] = -cfg.MaxAccelMPS2, cfg.MaxAccelMPS2
	}

	// Constraint bounds: all equalities at zero, except the six
	// initial-state entries where the expression is the raw variable, so
	// the bound itself carries the measured value.
	cl := make([]float64, lay.nCons)
	cu := make([]float64, lay.nCons)
	heads := [6]int{lay.x, lay.y, lay.psi, lay.v, lay.cte, lay.epsi}
	vals := [6]float64{init.X, init.Y, init.Psi, init.V, init.Cte, init.Epsi}
	for i, off := range heads {
		x0[off] = vals[i]
		cl[off] = vals[i]
		cu[off] = vals[i]
	}

	prob := &problem{cfg: cfg, lay: lay, model: c.model, coeffs: coeffs}
	res, err := solver.Solve(solver.Problem{
		X0:     x0,
		XLower: xl,
		XUpper: xu,
		CLower: cl,
		CUpper: cu,
		Eval:   prob.eval,
	}, solver.Options{TimeBudget: cfg.SolverBudget()})
	if err != nil {
		return Solution{}, fmt.Errorf("mpc solve: %w", err)
	}

	converged := res.Status == solver.Converged
	if !converged {
		// Non-fatal: extract whatever candidate the solver reached.
		c.log.Warn("solver did not converge: %s (max residual %.3g after %d outer iters in %s)",
			res.Status, res.MaxResidual, res.OuterIters, res.Runtime)
	}

	return Solution{
		SteerRad:   utils.ClampFloat(res.X[lay.steer], -cfg.MaxSteerRad, cfg.MaxSteerRad),
		AccelMPS2:  utils.ClampFloat(res.X[lay.accel], -cfg.MaxAccelMPS2, cfg.MaxAccelMPS2),
		PredictedX: append([]float64(nil), res.X[lay.x:lay.x+lay.n]...),
		PredictedY: append([]float64(nil), res.X[lay.y:lay.y+lay.n]...),
		Converged:  converged,
		Objective:  res.Objective,
		SolveTime:  res.Runtime,
	}, nil
}

func checkInputs(init State, coeffs []float64) error {
	for _, v := range [6]float64{init.X, init.Y, init.Psi, init.V, init.Cte, init.Epsi} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("mpc: non-finite value in vehicle state")
		}
	}
	if len(coeffs) < 2 {
		return fmt.Errorf("mpc: reference path needs at least 2 coefficients, got %d", len(coeffs))
	}
	for _, v := range coeffs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("mpc: non-finite path coefficient")
		}
	}
	return nil
}
