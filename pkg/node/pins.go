package node

import "github.com/robotalks/tank.go/pkg/l0/comm"

// Pin modes, same values as the board's native constants.
const (
	PinModeInput       uint8 = 0x00
	PinModeOutput      uint8 = 0x01
	PinModeInputPullup uint8 = 0x02
)

// Board drives the pins of the node.
type Board interface {
	SetPinMode(pin, mode uint8) error
	DigitalRead(pin uint8) (uint32, error)
	AnalogRead(pin uint8) (uint32, error)
}

// PinState is the last known state of a pin.
type PinState struct {
	Configured bool
	Mode       uint8
	Analog     bool
	Value      uint32
}

// PinTable holds the state of every addressable pin.
type PinTable [comm.PinCount]PinState

// Valid checks pin is addressable.
func (t *PinTable) Valid(pin uint8) bool {
	return int(pin) < len(t)
}

// Reset clears all states.
func (t *PinTable) Reset() {
	*t = PinTable{}
}
