//go:build linux || darwin

package telemetry

import (
	"context"
	"fmt"
	"net"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"
)

// CommandWriter transmits actuator commands.
type CommandWriter interface {
	WriteCommand(ctx context.Context, cmd Command) error
	Close() error
}

// StateReader delivers decoded vehicle-state frames.
type StateReader interface {
	ReadState(ctx context.Context) (VehicleState, error)
	Close() error
}

// SocketCANWriter sends command frames on a SocketCAN interface.
type SocketCANWriter struct {
	conn net.Conn
	tx   *socketcan.Transmitter
}

// NewSocketCANWriter dials the interface (e.g. "can0", "vcan0").
func NewSocketCANWriter(ctx context.Context, iface string) (*SocketCANWriter, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial: %w", err)
	}
	return &SocketCANWriter{conn: conn, tx: socketcan.NewTransmitter(conn)}, nil
}

func (w *SocketCANWriter) WriteCommand(ctx context.Context, cmd Command) error {
	return w.tx.TransmitFrame(ctx, EncodeCommand(cmd))
}

func (w *SocketCANWriter) Close() error {
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}

// SocketCANReader receives frames and surfaces decoded vehicle states,
// skipping unrelated traffic on the bus. A single background goroutine owns
// the receiver for the lifetime of the reader; Close unblocks it by closing
// the connection.
type SocketCANReader struct {
	conn   net.Conn
	states chan VehicleState
	errs   chan error
}

// NewSocketCANReader dials the interface for receive and starts the pump.
func NewSocketCANReader(ctx context.Context, iface string) (*SocketCANReader, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial: %w", err)
	}
	r := &SocketCANReader{
		conn:   conn,
		states: make(chan VehicleState, 16),
		errs:   make(chan error, 1),
	}
	go pumpStateFrames(socketcan.NewReceiver(conn), r.states, r.errs)
	return r, nil
}

// frameSource is the receive side of a CAN connection.
type frameSource interface {
	Receive() bool
	Frame() can.Frame
}

// pumpStateFrames forwards decoded state frames until the source fails,
// dropping frames when the consumer lags behind the bus.
func pumpStateFrames(src frameSource, states chan<- VehicleState, errs chan<- error) {
	for src.Receive() {
		f := src.Frame()
		if f.ID != StateFrameID {
			continue
		}
		s, err := DecodeState(f)
		if err != nil {
			continue
		}
		select {
		case states <- s:
		default:
		}
	}
	errs <- fmt.Errorf("socketcan receive failed")
}

// ReadState blocks until the next state frame, a receive failure or context
// cancellation. After a failure every subsequent call keeps reporting it.
func (r *SocketCANReader) ReadState(ctx context.Context) (VehicleState, error) {
	select {
	case <-ctx.Done():
		return VehicleState{}, ctx.Err()
	case err := <-r.errs:
		r.errs <- err
		return VehicleState{}, err
	case s := <-r.states:
		return s, nil
	}
}

func (r *SocketCANReader) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
