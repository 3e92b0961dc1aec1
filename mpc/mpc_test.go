package mpc

import (
	"math"
	"testing"

	"mpc-drive-core/utils"
)

func testConfig() Config {
	cfg := DefaultConfig()
	// Interior target keeps the speed optimum off the variable bound, the
	// smaller horizon keeps test solves fast, and the extra budget absorbs
	// slow CI machines.
	cfg.Horizon = 8
	cfg.TargetMPS = 20
	cfg.SolverBudgetMS = 3000
	return cfg
}

func quietController(t *testing.T, cfg Config) *Controller {
	t.Helper()
	ctrl, err := NewController(cfg, utils.NewStdoutLogger(utils.ERROR))
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return ctrl
}

func TestSolveStraightLineHoldsCourse(t *testing.T) {
	cfg := testConfig()
	ctrl := quietController(t, cfg)

	sol, err := ctrl.Solve(State{V: cfg.TargetMPS}, []float64{0, 0})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	if len(sol.PredictedX) != cfg.Horizon || len(sol.PredictedY) != cfg.Horizon {
		t.Fatalf("predicted trajectory lengths %d/%d, want %d", len(sol.PredictedX), len(sol.PredictedY), cfg.Horizon)
	}
	if math.Abs(sol.SteerRad) > 0.05 {
		t.Errorf("steering = %g, want near zero on a straight path", sol.SteerRad)
	}
	if math.Abs(sol.AccelMPS2) > 0.2 {
		t.Errorf("acceleration = %g, want near zero at target speed", sol.AccelMPS2)
	}
	step := cfg.TargetMPS * cfg.StepS
	for i := 1; i < len(sol.PredictedX); i++ {
		dx := sol.PredictedX[i] - sol.PredictedX[i-1]
		if dx < 0.5*step || dx > 1.5*step {
			t.Errorf("x step %d = %g, want about %g", i, dx, step)
		}
	}
	for i, y := range sol.PredictedY {
		if math.Abs(y) > 0.5 {
			t.Errorf("predicted y[%d] = %g, want near zero", i, y)
		}
	}
}

func TestSolveCorrectiveSteering(t *testing.T) {
	// Vehicle offset 1 m above a flat path at y=0: expect steering that
	// brings the predicted trajectory back toward the path.
	cfg := testConfig()
	ctrl := quietController(t, cfg)

	sol, err := ctrl.Solve(State{Y: 1, V: cfg.TargetMPS, Cte: 1}, []float64{0, 0, 0})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	if !sol.Converged {
		t.Errorf("solve did not converge within the default budget (objective %g)", sol.Objective)
	}
	if sol.SteerRad >= 0 {
		t.Errorf("steering = %g, want negative to steer back toward y=0", sol.SteerRad)
	}
	first := sol.PredictedY[0]
	last := sol.PredictedY[len(sol.PredictedY)-1]
	if math.Abs(last) >= math.Abs(first) {
		t.Errorf("predicted y does not trend toward the path: first %g, last %g", first, last)
	}
	// Returning to the path must not mean swinging past it: with a weak
	// heading-error weight the optimum crosses y=0 and ends further out on
	// the other side.
	if math.Abs(last) > 0.5 {
		t.Errorf("predicted y ends at %g, want settled near the path", last)
	}
}

func TestSolveRespectsActuatorBounds(t *testing.T) {
	cfg := testConfig()
	ctrl := quietController(t, cfg)

	// An aggressive initial error invites saturated commands.
	sol, err := ctrl.Solve(State{Y: 5, V: cfg.TargetMPS, Cte: 5, Epsi: 0.4}, []float64{0, 0, 0})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if math.Abs(sol.SteerRad) > cfg.MaxSteerRad {
		t.Errorf("steering %g exceeds limit %g", sol.SteerRad, cfg.MaxSteerRad)
	}
	if math.Abs(sol.AccelMPS2) > cfg.MaxAccelMPS2 {
		t.Errorf("acceleration %g exceeds limit %g", sol.AccelMPS2, cfg.MaxAccelMPS2)
	}
}

func TestSolveTimeBudgetStillReturnsCommand(t *testing.T) {
	// An absurdly small budget forces the solver to stop early; the
	// controller must still hand back a usable command.
	cfg := testConfig()
	cfg.SolverBudgetMS = 1
	ctrl := quietController(t, cfg)

	sol, err := ctrl.Solve(State{Y: 1, V: cfg.TargetMPS, Cte: 1}, []float64{0, 0})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if len(sol.PredictedX) != cfg.Horizon {
		t.Fatalf("predicted trajectory length %d, want %d", len(sol.PredictedX), cfg.Horizon)
	}
	if math.IsNaN(sol.SteerRad) || math.IsNaN(sol.AccelMPS2) {
		t.Fatalf("command contains NaN: %+v", sol)
	}
}

func TestSolveRejectsMalformedInput(t *testing.T) {
	ctrl := quietController(t, testConfig())

	if _, err := ctrl.Solve(State{V: math.NaN()}, []float64{0, 0}); err == nil {
		t.Error("expected error for NaN state")
	}
	if _, err := ctrl.Solve(State{}, []float64{1}); err == nil {
		t.Error("expected error for single-coefficient path")
	}
	if _, err := ctrl.Solve(State{}, []float64{0, math.Inf(1)}); err == nil {
		t.Error("expected error for infinite coefficient")
	}
}

func TestNewControllerValidatesConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Horizon = 1
	if _, err := NewController(cfg, nil); err == nil {
		t.Error("expected error for horizon < 2")
	}

	cfg = DefaultConfig()
	cfg.Weights.Cte = -1
	if _, err := NewController(cfg, nil); err == nil {
		t.Error("expected error for negative weight")
	}
}
