// Package tank provides host side operations of the fish tank node.
package tank

import (
	"context"
	"errors"
	"fmt"

	"github.com/robotalks/tank.go/pkg/l0/comm"
	"github.com/robotalks/tank.go/pkg/node"
)

// DefaultClientID is the client id shared by host processes.
const DefaultClientID uint32 = 56432

// ErrInvalidPin is returned for a pin the node doesn't address.
var ErrInvalidPin = errors.New("invalid pin")

// Executor executes a command and waits for the reply.
type Executor interface {
	Exec(ctx context.Context, pkt *comm.Packet) (*comm.Packet, error)
}

// Tank issues commands to a node.
type Tank struct {
	Executor Executor
}

// New creates a Tank.
func New(exec Executor) *Tank {
	return &Tank{Executor: exec}
}

// Exec validates and executes a single command.
func (t *Tank) Exec(ctx context.Context, op comm.OpCode, pin, pinMode uint8) (*comm.Packet, error) {
	if !op.IsValid() {
		return nil, fmt.Errorf("unsupported op code %d", uint16(op))
	}
	if op != comm.OpGetTemperature && int(pin) >= comm.PinCount {
		return nil, fmt.Errorf("%w %d", ErrInvalidPin, pin)
	}
	return t.Executor.Exec(ctx, &comm.Packet{OpCode: op, Pin: pin, PinMode: pinMode})
}

// Temperature reads the water temperature in Celsius.
// node.DisconnectedTemperature means the sensor is not attached.
func (t *Tank) Temperature(ctx context.Context) (float32, error) {
	reply, err := t.Exec(ctx, comm.OpGetTemperature, 0, 0)
	if err != nil {
		return 0, err
	}
	return reply.Float(), nil
}

// InputPin configures pin as digital input, optionally with pull-up,
// and returns the mode applied by the node.
func (t *Tank) InputPin(ctx context.Context, pin uint8, pullup bool) (uint8, error) {
	mode := node.PinModeInput
	if pullup {
		mode = node.PinModeInputPullup
	}
	reply, err := t.Exec(ctx, comm.OpInputPin, pin, mode)
	if err != nil {
		return 0, err
	}
	return reply.PinMode, nil
}

// ReadDigitalPin reads the level of pin.
func (t *Tank) ReadDigitalPin(ctx context.Context, pin uint8) (bool, error) {
	reply, err := t.Exec(ctx, comm.OpReadDigitPin, pin, node.PinModeInput)
	if err != nil {
		return false, err
	}
	return reply.Data != 0, nil
}

// InputAnalogPin configures pin as analog input.
func (t *Tank) InputAnalogPin(ctx context.Context, pin uint8) error {
	_, err := t.Exec(ctx, comm.OpInputAnalogPin, pin, node.PinModeInput)
	return err
}

// ReadAnalogPin reads the analog value of pin.
func (t *Tank) ReadAnalogPin(ctx context.Context, pin uint8) (uint32, error) {
	reply, err := t.Exec(ctx, comm.OpReadAnalogPin, pin, node.PinModeInput)
	if err != nil {
		return 0, err
	}
	return reply.Data, nil
}

// RelayEngaged reads a low trigger relay, which is engaged when the
// pin is low.
func (t *Tank) RelayEngaged(ctx context.Context, pin uint8) (bool, error) {
	high, err := t.ReadDigitalPin(ctx, pin)
	return err == nil && !high, err
}
