package main

import (
	"encoding/json"
	"fmt"
	"os"
)

// Scenario defines a complete closed-loop run: a global-frame center line
// to track, timing, the starting state, and optionally a tuning file for
// the controller.
type Scenario struct {
	Meta   ScenarioMeta   `json:"meta"`
	Timing ScenarioTiming `json:"timing"`
	Track  Track          `json:"track"`
	Start  StartState     `json:"start"`

	// Optional YAML file overriding the default controller tuning.
	MPCConfigPath string `json:"mpc_config,omitempty"`
}

// ScenarioMeta contains scenario metadata.
type ScenarioMeta struct {
	Name        string `json:"name"`
	Version     int    `json:"version"`
	Description string `json:"description"`
}

// ScenarioTiming defines timing parameters.
type ScenarioTiming struct {
	DurationS    float64 `json:"duration_s"`
	LogEvery     int     `json:"log_every_cycles"`
	RealTimeMode bool    `json:"real_time_mode"`
}

// Track is the reference center line in the global frame.
type Track struct {
	XM []float64 `json:"x_m"`
	YM []float64 `json:"y_m"`

	FitDegree      int `json:"fit_degree"`       // polynomial degree per cycle
	LookAheadCount int `json:"look_ahead_count"` // waypoints fitted per cycle
}

// StartState is the plant state at t=0.
type StartState struct {
	XM       float64 `json:"x_m"`
	YM       float64 `json:"y_m"`
	PsiRad   float64 `json:"psi_rad"`
	SpeedMPS float64 `json:"speed_mps"`
}

// LoadScenario loads a scenario from a JSON file.
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read file: %w", err)
	}

	var scen Scenario
	if err := json.Unmarshal(data, &scen); err != nil {
		return Scenario{}, fmt.Errorf("unmarshal: %w", err)
	}

	if scen.Timing.DurationS <= 0 {
		return Scenario{}, fmt.Errorf("invalid duration_s: %f", scen.Timing.DurationS)
	}
	if len(scen.Track.XM) != len(scen.Track.YM) {
		return Scenario{}, fmt.Errorf("track x_m and y_m lengths differ (%d vs %d)", len(scen.Track.XM), len(scen.Track.YM))
	}
	if scen.Track.FitDegree <= 0 {
		scen.Track.FitDegree = 3
	}
	if scen.Track.LookAheadCount <= 0 {
		scen.Track.LookAheadCount = scen.Track.FitDegree + 3
	}
	if len(scen.Track.XM) < scen.Track.FitDegree+1 {
		return Scenario{}, fmt.Errorf("track needs at least %d waypoints for degree %d, got %d",
			scen.Track.FitDegree+1, scen.Track.FitDegree, len(scen.Track.XM))
	}

	return scen, nil
}
