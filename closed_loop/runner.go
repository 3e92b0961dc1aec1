package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"mpc-drive-core/mpc"
	"mpc-drive-core/pathfit"
	"mpc-drive-core/telemetry"
	"mpc-drive-core/utils"
)

// RunnerConfig wires the closed loop together.
type RunnerConfig struct {
	Interface    string // SocketCAN interface; empty disables transmit
	ScenarioPath string
	ConfigPath   string // optional YAML tuning file, overrides the scenario's
}

// Runner simulates the plant with the controller's own kinematics and runs
// fit -> solve -> actuate every cycle. With a CAN interface attached it also
// transmits each command and folds received speed feedback into the loop.
type Runner struct {
	cfg    RunnerConfig
	log    *utils.Logger
	scen   Scenario
	ctrl   *mpc.Controller
	writer telemetry.CommandWriter
	reader telemetry.StateReader

	// plant state, global frame
	x, y, psi, v float64
}

func NewRunner(ctx context.Context, cfg RunnerConfig, log *utils.Logger) (*Runner, error) {
	scen, err := LoadScenario(cfg.ScenarioPath)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}

	tuningPath := cfg.ConfigPath
	if tuningPath == "" {
		tuningPath = scen.MPCConfigPath
	}
	mpcCfg := mpc.DefaultConfig()
	if tuningPath != "" {
		mpcCfg, err = mpc.LoadConfig(tuningPath)
		if err != nil {
			return nil, fmt.Errorf("load mpc config: %w", err)
		}
	}

	ctrl, err := mpc.NewController(mpcCfg, log)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		cfg:  cfg,
		log:  log,
		scen: scen,
		ctrl: ctrl,
		x:    scen.Start.XM,
		y:    scen.Start.YM,
		psi:  scen.Start.PsiRad,
		v:    scen.Start.SpeedMPS,
	}

	if cfg.Interface != "" {
		writer, err := telemetry.NewSocketCANWriter(ctx, cfg.Interface)
		if err != nil {
			return nil, err
		}
		r.writer = writer

		reader, err := telemetry.NewSocketCANReader(ctx, cfg.Interface)
		if err != nil {
			_ = writer.Close()
			return nil, err
		}
		r.reader = reader
	}

	return r, nil
}

func (r *Runner) Close() {
	if r.writer != nil {
		_ = r.writer.Close()
	}
	if r.reader != nil {
		_ = r.reader.Close()
	}
}

func (r *Runner) Run(ctx context.Context) error {
	cfg := r.ctrl.Config()
	dt := cfg.StepS
	cycles := int(r.scen.Timing.DurationS / dt)
	logEvery := r.scen.Timing.LogEvery
	if logEvery <= 0 {
		logEvery = 10
	}

	r.log.Info("Starting closed loop: scenario=%s cycles=%d dt=%.3fs horizon=%d target=%.1f m/s iface=%s",
		r.scen.Meta.Name, cycles, dt, cfg.Horizon, cfg.TargetMPS, r.cfg.Interface)

	var ticker *time.Ticker
	if r.scen.Timing.RealTimeMode {
		ticker = time.NewTicker(time.Duration(dt * float64(time.Second)))
		defer ticker.Stop()
	}

	var rxCh chan telemetry.VehicleState
	if r.reader != nil {
		rxCh = make(chan telemetry.VehicleState, 100)
		go r.receiveLoop(ctx, rxCh)
	}

	for i := 0; i < cycles; i++ {
		if ctx.Err() != nil {
			r.log.Warn("Context canceled; stopping after %d cycles", i)
			return ctx.Err()
		}

		if r.applyFeedback(rxCh) {
			r.log.Trace("RX speed feedback: v=%.3f m/s", r.v)
		}

		coeffs, err := r.fitAhead()
		if err != nil {
			return fmt.Errorf("cycle %d: %w", i, err)
		}
		cte, epsi := pathfit.Errors(coeffs)

		// The problem is posed in the vehicle frame: position and
		// heading are zero by construction, only speed and the path
		// errors carry information.
		sol, err := r.ctrl.Solve(mpc.State{V: r.v, Cte: cte, Epsi: epsi}, coeffs)
		if err != nil {
			return fmt.Errorf("cycle %d: %w", i, err)
		}

		r.advancePlant(sol.SteerRad, sol.AccelMPS2, dt)

		if r.writer != nil {
			cmd := telemetry.Command{
				SteerRad:  sol.SteerRad,
				AccelMPS2: sol.AccelMPS2,
				Converged: sol.Converged,
			}
			if err := r.writer.WriteCommand(ctx, cmd); err != nil {
				r.log.Error("Transmit failed at cycle %d: %v", i, err)
				return err
			}
		}

		if i%logEvery == 0 {
			r.log.Info("t=%6.2fs x=%8.2f y=%8.2f psi=%6.3f v=%5.2f cte=%6.3f epsi=%6.3f steer=%6.3f accel=%6.3f solve=%s",
				float64(i)*dt, r.x, r.y, r.psi, r.v, cte, epsi, sol.SteerRad, sol.AccelMPS2, sol.SolveTime)
		} else {
			r.log.Debug("t=%.2fs cte=%.3f steer=%.3f accel=%.3f obj=%.3g", float64(i)*dt, cte, sol.SteerRad, sol.AccelMPS2, sol.Objective)
		}

		if ticker != nil {
			select {
			case <-ctx.Done():
			case <-ticker.C:
			}
		}
	}

	r.log.Info("Completed closed loop: %d cycles", cycles)
	return nil
}

// receiveLoop forwards decoded vehicle-state frames until the context ends
// or the bus fails. Frames are dropped rather than block the receive path.
func (r *Runner) receiveLoop(ctx context.Context, out chan<- telemetry.VehicleState) {
	r.log.Debug("RX loop started")
	defer r.log.Debug("RX loop stopped")
	for {
		state, err := r.reader.ReadState(ctx)
		if err != nil {
			if ctx.Err() == nil {
				r.log.Error("RX failed, continuing on integrated speed: %v", err)
			}
			return
		}
		select {
		case out <- state:
		default:
		}
	}
}

// applyFeedback drains pending sensor frames; the newest measured speed
// replaces the integrated plant speed, so the loop tracks the real vehicle
// when a bus is attached. A nil channel is a no-op.
func (r *Runner) applyFeedback(rx <-chan telemetry.VehicleState) bool {
	updated := false
	for {
		select {
		case fb := <-rx:
			r.v = fb.SpeedMPS
			updated = true
		default:
			return updated
		}
	}
}

// fitAhead picks the waypoint window ahead of the plant, transforms it into
// the vehicle frame and fits the reference polynomial.
func (r *Runner) fitAhead() ([]float64, error) {
	track := r.scen.Track

	nearest, nearestDist := 0, math.Inf(1)
	for i := range track.XM {
		d := math.Hypot(track.XM[i]-r.x, track.YM[i]-r.y)
		if d < nearestDist {
			nearest, nearestDist = i, d
		}
	}

	end := nearest + track.LookAheadCount
	if end > len(track.XM) {
		end = len(track.XM)
	}
	if end-nearest < track.FitDegree+1 {
		nearest = end - (track.FitDegree + 1)
		if nearest < 0 {
			return nil, fmt.Errorf("ran out of track near waypoint %d", end)
		}
	}

	vx, vy, err := pathfit.ToVehicleFrame(track.XM[nearest:end], track.YM[nearest:end], r.x, r.y, r.psi)
	if err != nil {
		return nil, err
	}
	return pathfit.Fit(vx, vy, track.FitDegree)
}

// advancePlant integrates the global-frame bicycle kinematics one step.
func (r *Runner) advancePlant(steer, accel, dt float64) {
	lf := r.ctrl.Config().LfM
	r.x += r.v * math.Cos(r.psi) * dt
	r.y += r.v * math.Sin(r.psi) * dt
	r.psi += r.v * steer / lf * dt
	r.v += accel * dt
}
