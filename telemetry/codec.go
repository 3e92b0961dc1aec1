// Package telemetry moves controller inputs and outputs over CAN: the
// per-cycle actuator command goes out, vehicle-state frames come in.
// Signal layouts are fixed here rather than loaded from a DBC.
package telemetry

import (
	"fmt"
	"math"

	"go.einride.tech/can"
)

// Frame IDs on the control bus.
const (
	CommandFrameID = 0x210 // MPC_CMD: steer + accel, 8 bytes
	StateFrameID   = 0x300 // VEHICLE_STATE_1: speed + yaw rate, 8 bytes
)

// Signal scale factors. All signals are little-endian signed 16-bit.
const (
	steerFactor = 1e-4 // rad per count
	accelFactor = 1e-3 // m/s^2 per count
	speedFactor = 0.01 // m/s per count
	yawFactor   = 1e-4 // rad/s per count
)

// Command is one cycle's actuator output.
type Command struct {
	SteerRad  float64
	AccelMPS2 float64
	Converged bool
}

// VehicleState is the decoded content of a state frame.
type VehicleState struct {
	SpeedMPS  float64
	YawRateRS float64
}

func putSignal(data []byte, offset int, value, factor float64) {
	raw := math.Round(value / factor)
	if raw > math.MaxInt16 {
		raw = math.MaxInt16
	} else if raw < math.MinInt16 {
		raw = math.MinInt16
	}
	u := uint16(int16(raw))
	data[offset] = byte(u)
	data[offset+1] = byte(u >> 8)
}

func getSignal(data []byte, offset int, factor float64) float64 {
	raw := int16(uint16(data[offset]) | uint16(data[offset+1])<<8)
	return float64(raw) * factor
}

// EncodeCommand packs a command into its CAN frame.
func EncodeCommand(cmd Command) can.Frame {
	var f can.Frame
	f.ID = CommandFrameID
	f.Length = 8
	putSignal(f.Data[:], 0, cmd.SteerRad, steerFactor)
	putSignal(f.Data[:], 2, cmd.AccelMPS2, accelFactor)
	if cmd.Converged {
		f.Data[4] = 1
	}
	return f
}

// DecodeCommand unpacks a command frame.
func DecodeCommand(f can.Frame) (Command, error) {
	if f.ID != CommandFrameID {
		return Command{}, fmt.Errorf("telemetry: frame 0x%X is not a command frame", uint32(f.ID))
	}
	if f.Length < 5 {
		return Command{}, fmt.Errorf("telemetry: command frame too short (%d bytes)", f.Length)
	}
	return Command{
		SteerRad:  getSignal(f.Data[:], 0, steerFactor),
		AccelMPS2: getSignal(f.Data[:], 2, accelFactor),
		Converged: f.Data[4] == 1,
	}, nil
}

// EncodeState packs a vehicle state into its CAN frame.
func EncodeState(s VehicleState) can.Frame {
	var f can.Frame
	f.ID = StateFrameID
	f.Length = 8
	putSignal(f.Data[:], 0, s.SpeedMPS, speedFactor)
	putSignal(f.Data[:], 2, s.YawRateRS, yawFactor)
	return f
}

// DecodeState unpacks a state frame.
func DecodeState(f can.Frame) (VehicleState, error) {
	if f.ID != StateFrameID {
		return VehicleState{}, fmt.Errorf("telemetry: frame 0x%X is not a state frame", uint32(f.ID))
	}
	if f.Length < 4 {
		return VehicleState{}, fmt.Errorf("telemetry: state frame too short (%d bytes)", f.Length)
	}
	return VehicleState{
		SpeedMPS:  getSignal(f.Data[:], 0, speedFactor),
		YawRateRS: getSignal(f.Data[:], 2, yawFactor),
	}, nil
}
