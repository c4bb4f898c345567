package node

import "errors"

// DisconnectedTemperature is reported when the sensor doesn't answer.
const DisconnectedTemperature float32 = -127

// DefaultSensorBus is the bus address of the temperature sensor.
const DefaultSensorBus = 52

// ErrNoSensor indicates no sensor on the bus.
var ErrNoSensor = errors.New("no sensor on bus")

// TemperatureSensor reads temperature in Celsius from a bus address.
type TemperatureSensor interface {
	ReadTemperature(bus int) (float32, error)
}
