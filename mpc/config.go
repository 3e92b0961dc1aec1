package mpc

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Weights are the multipliers applied to each normalized cost term.
type Weights struct {
	Cte       float64 `yaml:"cte" json:"cte"`
	Epsi      float64 `yaml:"epsi" json:"epsi"`
	Speed     float64 `yaml:"speed" json:"speed"`
	Steer     float64 `yaml:"steer" json:"steer"`
	Accel     float64 `yaml:"accel" json:"accel"`
	SteerRate float64 `yaml:"steer_rate" json:"steer_rate"`
	AccelRate float64 `yaml:"accel_rate" json:"accel_rate"`
}

// Scales are characteristic magnitudes used to normalize cost terms before
// squaring, so the weights stay comparable across terms with different
// physical units. Roughly: |term| is expected to stay below its scale most
// of the time. Speed, steering and acceleration are normalized by the target
// speed and the actuator limits instead.
type Scales struct {
	CteM          float64 `yaml:"cte_m" json:"cte_m"`
	EpsiRad       float64 `yaml:"epsi_rad" json:"epsi_rad"`
	SteerRateRad  float64 `yaml:"steer_rate_rad" json:"steer_rate_rad"`
	AccelRateMPS2 float64 `yaml:"accel_rate_mps2" json:"accel_rate_mps2"`
}

// Config holds every fixed parameter of the MPC problem. It is immutable for
// the lifetime of a Controller; a solve never mutates it.
type Config struct {
	Horizon int     `yaml:"horizon" json:"horizon"`   // number of planned timesteps N
	StepS   float64 `yaml:"step_s" json:"step_s"`     // timestep dt, seconds
	LfM     float64 `yaml:"lf_m" json:"lf_m"`         // CoG to front axle, meters

	MaxSteerRad   float64 `yaml:"max_steer_rad" json:"max_steer_rad"`
	MaxAccelMPS2  float64 `yaml:"max_accel_mps2" json:"max_accel_mps2"`
	SpeedLimitMPS float64 `yaml:"speed_limit_mps" json:"speed_limit_mps"`
	TargetMPS     float64 `yaml:"target_mps" json:"target_mps"`

	Weights Weights `yaml:"weights" json:"weights"`
	Scales  Scales  `yaml:"scales" json:"scales"`

	SolverBudgetMS int `yaml:"solver_budget_ms" json:"solver_budget_ms"`
}

// DefaultConfig returns the tuning used on the reference track. The Lf value
// was calibrated by matching the turn radius of the model against the real
// vehicle at constant steering and speed.
func DefaultConfig() Config {
	const (
		maxSteer = 0.436332 // 25 degrees
		maxAccel = 1.0
	)
	return Config{
		Horizon:       12,
		StepS:         0.1,
		LfM:           2.67,
		MaxSteerRad:   maxSteer,
		MaxAccelMPS2:  maxAccel,
		SpeedLimitMPS: 31.29, // 70 mph
		TargetMPS:     31.29,
		Weights: Weights{
			Cte: 50,
			// The heading-error term must be strong enough to keep the
			// linearized cte propagation honest at cruising speed; too
			// weak and the optimum overshoots past the path.
			Epsi: 50,
			Speed:     50,
			Steer:     5,
			Accel:     1,
			SteerRate: 50,
			AccelRate: 1,
		},
		Scales: Scales{
			CteM:          4.0,
			EpsiRad:       math.Pi / 5,
			SteerRateRad:  maxSteer / 4,
			AccelRateMPS2: maxAccel / 2,
		},
		SolverBudgetMS: 500,
	}
}

// LoadConfig reads a YAML tuning file on top of the defaults, so a file only
// has to name the fields it overrides.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the problem layout cannot express.
func (c Config) Validate() error {
	if c.Horizon < 2 {
		return fmt.Errorf("horizon must be >= 2, got %d", c.Horizon)
	}
	if c.StepS <= 0 {
		return fmt.Errorf("step_s must be positive, got %g", c.StepS)
	}
	if c.LfM <= 0 {
		return fmt.Errorf("lf_m must be positive, got %g", c.LfM)
	}
	if c.MaxSteerRad <= 0 || c.MaxAccelMPS2 <= 0 {
		return fmt.Errorf("actuator limits must be positive (steer %g, accel %g)", c.MaxSteerRad, c.MaxAccelMPS2)
	}
	if c.SpeedLimitMPS <= 0 {
		return fmt.Errorf("speed_limit_mps must be positive, got %g", c.SpeedLimitMPS)
	}
	if c.TargetMPS <= 0 || c.TargetMPS > c.SpeedLimitMPS {
		return fmt.Errorf("target_mps %g must be in (0, speed limit %g]", c.TargetMPS, c.SpeedLimitMPS)
	}
	for name, w := range map[string]float64{
		"cte": c.Weights.Cte, "epsi": c.Weights.Epsi, "speed": c.Weights.Speed,
		"steer": c.Weights.Steer, "accel": c.Weights.Accel,
		"steer_rate": c.Weights.SteerRate, "accel_rate": c.Weights.AccelRate,
	} {
		if w < 0 {
			return fmt.Errorf("weight %s must be non-negative, got %g", name, w)
		}
	}
	if c.Scales.CteM <= 0 || c.Scales.EpsiRad <= 0 || c.Scales.SteerRateRad <= 0 || c.Scales.AccelRateMPS2 <= 0 {
		return fmt.Errorf("all normalization scales must be positive")
	}
	return nil
}

// SolverBudget returns the per-cycle wall-clock budget for the NLP solver.
func (c Config) SolverBudget() time.Duration {
	if c.SolverBudgetMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.SolverBudgetMS) * time.Millisecond
}
