package node

import (
	"fmt"
	"sync"

	"github.com/robotalks/tank.go/pkg/l0/comm"
)

// AnalogMax is the max value of a 10-bit analog read.
const AnalogMax = 1023

// SimBoard is an in-memory Board.
type SimBoard struct {
	lock    sync.RWMutex
	modes   [comm.PinCount]uint8
	digital [comm.PinCount]bool
	analog  [comm.PinCount]uint32
}

// NewSimBoard creates a SimBoard with every pin as input and low.
func NewSimBoard() *SimBoard {
	return &SimBoard{}
}

func (b *SimBoard) check(pin uint8) error {
	if int(pin) >= comm.PinCount {
		return fmt.Errorf("invalid pin %d", pin)
	}
	return nil
}

// SetPinMode implements Board.
func (b *SimBoard) SetPinMode(pin, mode uint8) error {
	if err := b.check(pin); err != nil {
		return err
	}
	b.lock.Lock()
	b.modes[pin] = mode
	if mode == PinModeInputPullup {
		b.digital[pin] = true
	}
	b.lock.Unlock()
	return nil
}

// DigitalRead implements Board.
func (b *SimBoard) DigitalRead(pin uint8) (uint32, error) {
	if err := b.check(pin); err != nil {
		return 0, err
	}
	b.lock.RLock()
	defer b.lock.RUnlock()
	if b.digital[pin] {
		return 1, nil
	}
	return 0, nil
}

// AnalogRead implements Board.
func (b *SimBoard) AnalogRead(pin uint8) (uint32, error) {
	if err := b.check(pin); err != nil {
		return 0, err
	}
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.analog[pin], nil
}

// Mode returns the mode last set on pin.
func (b *SimBoard) Mode(pin uint8) (uint8, error) {
	if err := b.check(pin); err != nil {
		return 0, err
	}
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.modes[pin], nil
}

// SetDigital drives the level seen by DigitalRead.
func (b *SimBoard) SetDigital(pin uint8, high bool) error {
	if err := b.check(pin); err != nil {
		return err
	}
	b.lock.Lock()
	b.digital[pin] = high
	b.lock.Unlock()
	return nil
}

// SetAnalog sets the value seen by AnalogRead, clamped to AnalogMax.
func (b *SimBoard) SetAnalog(pin uint8, val uint32) error {
	if err := b.check(pin); err != nil {
		return err
	}
	if val > AnalogMax {
		val = AnalogMax
	}
	b.lock.Lock()
	b.analog[pin] = val
	b.lock.Unlock()
	return nil
}

// SimSensor is a TemperatureSensor answering on a single bus.
// Each read adds Drift to the temperature.
type SimSensor struct {
	Bus         int
	Temperature float32
	Drift       float32
	Detached    bool

	lock sync.Mutex
}

// NewSimSensor creates a sensor on the default bus.
func NewSimSensor(temp float32) *SimSensor {
	return &SimSensor{Bus: DefaultSensorBus, Temperature: temp}
}

// ReadTemperature implements TemperatureSensor.
func (s *SimSensor) ReadTemperature(bus int) (float32, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.Detached || bus != s.Bus {
		return DisconnectedTemperature, ErrNoSensor
	}
	temp := s.Temperature
	s.Temperature += s.Drift
	return temp, nil
}

// SetDetached simulates unplugging the sensor.
func (s *SimSensor) SetDetached(detached bool) {
	s.lock.Lock()
	s.Detached = detached
	s.lock.Unlock()
}

// Set changes the current temperature.
func (s *SimSensor) Set(temp float32) {
	s.lock.Lock()
	s.Temperature = temp
	s.lock.Unlock()
}
