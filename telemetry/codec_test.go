package telemetry

import (
	"math"
	"testing"
)

func TestCommandRoundTrip(t *testing.T) {
	in := Command{SteerRad: -0.2183, AccelMPS2: 0.731, Converged: true}

	out, err := DecodeCommand(EncodeCommand(in))
	if err != nil {
		t.Fatalf("DecodeCommand: %v", err)
	}
	if math.Abs(out.SteerRad-in.SteerRad) > steerFactor {
		t.Errorf("steer = %g, want %g within one count", out.SteerRad, in.SteerRad)
	}
	if math.Abs(out.AccelMPS2-in.AccelMPS2) > accelFactor {
		t.Errorf("accel = %g, want %g within one count", out.AccelMPS2, in.AccelMPS2)
	}
	if !out.Converged {
		t.Error("converged flag lost in transit")
	}
}

func TestStateRoundTripAndIDChecks(t *testing.T) {
	s := VehicleState{SpeedMPS: 19.87, YawRateRS: -0.0421}
	out, err := DecodeState(EncodeState(s))
	if err != nil {
		t.Fatalf("DecodeState: %v", err)
	}
	if math.Abs(out.SpeedMPS-s.SpeedMPS) > speedFactor {
		t.Errorf("speed = %g, want %g within one count", out.SpeedMPS, s.SpeedMPS)
	}

	if _, err := DecodeCommand(EncodeState(s)); err == nil {
		t.Error("expected error decoding a state frame as a command")
	}
	if _, err := DecodeState(EncodeCommand(Command{})); err == nil {
		t.Error("expected error decoding a command frame as a state")
	}
}
