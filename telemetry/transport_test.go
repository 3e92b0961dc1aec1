//go:build linux || darwin

package telemetry

import (
	"context"
	"fmt"
	"math"
	"testing"

	"go.einride.tech/can"
)

type fakeFrameSource struct {
	frames []can.Frame
	next   int
}

func (f *fakeFrameSource) Receive() bool {
	f.next++
	return f.next <= len(f.frames)
}

func (f *fakeFrameSource) Frame() can.Frame {
	return f.frames[f.next-1]
}

func TestPumpStateFramesFiltersBusTraffic(t *testing.T) {
	short := can.Frame{ID: StateFrameID, Length: 2}
	src := &fakeFrameSource{frames: []can.Frame{
		EncodeState(VehicleState{SpeedMPS: 12}),
		EncodeCommand(Command{SteerRad: 0.1}), // unrelated ID, skipped
		short,                                 // undecodable, skipped
		EncodeState(VehicleState{SpeedMPS: 14}),
	}}
	states := make(chan VehicleState, 4)
	errs := make(chan error, 1)

	pumpStateFrames(src, states, errs)

	if len(states) != 2 {
		t.Fatalf("pumped %d states, want 2", len(states))
	}
	first, second := <-states, <-states
	if math.Abs(first.SpeedMPS-12) > speedFactor || math.Abs(second.SpeedMPS-14) > speedFactor {
		t.Fatalf("pumped speeds %g, %g, want 12, 14", first.SpeedMPS, second.SpeedMPS)
	}
	select {
	case <-errs:
	default:
		t.Fatal("expected a terminal error once the source stops")
	}
}

func TestPumpStateFramesDropsWhenConsumerLags(t *testing.T) {
	src := &fakeFrameSource{frames: []can.Frame{
		EncodeState(VehicleState{SpeedMPS: 1}),
		EncodeState(VehicleState{SpeedMPS: 2}),
		EncodeState(VehicleState{SpeedMPS: 3}),
	}}
	states := make(chan VehicleState, 1)
	errs := make(chan error, 1)

	// Must not block even though only one state fits.
	pumpStateFrames(src, states, errs)

	got := <-states
	if math.Abs(got.SpeedMPS-1) > speedFactor {
		t.Fatalf("kept speed %g, want the first pumped state", got.SpeedMPS)
	}
}

func TestReadStateDeliversAndReportsFailure(t *testing.T) {
	r := &SocketCANReader{
		states: make(chan VehicleState, 1),
		errs:   make(chan error, 1),
	}

	r.states <- VehicleState{SpeedMPS: 9}
	got, err := r.ReadState(context.Background())
	if err != nil {
		t.Fatalf("ReadState: %v", err)
	}
	if math.Abs(got.SpeedMPS-9) > speedFactor {
		t.Fatalf("speed = %g, want 9", got.SpeedMPS)
	}

	r.errs <- fmt.Errorf("bus down")
	for i := 0; i < 2; i++ {
		if _, err := r.ReadState(context.Background()); err == nil {
			t.Fatalf("call %d after failure: expected the error to persist", i+1)
		}
	}
}

func TestReadStateHonorsCancellation(t *testing.T) {
	r := &SocketCANReader{
		states: make(chan VehicleState),
		errs:   make(chan error, 1),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.ReadState(ctx); err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
