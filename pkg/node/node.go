// Package node implements the node side of the L0 protocol: it answers
// commands from the host with sensor readings and pin states.
package node

import (
	"context"
	"flag"
	"io"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/tank.go/pkg/l0/comm"
)

// Config defines the configurations of a node.
type Config struct {
	SensorBus    int
	Interval     time.Duration
	PollWait     time.Duration
	FrameTimeout time.Duration
}

var defaultConfig = Config{
	SensorBus:    DefaultSensorBus,
	Interval:     10 * time.Millisecond,
	PollWait:     comm.DefaultPollWait,
	FrameTimeout: comm.DefaultFrameTimeout,
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.IntVar(&defaultConfig.SensorBus, "sensor-bus", defaultConfig.SensorBus, "Temperature sensor bus address.")
	flag.DurationVar(&defaultConfig.Interval, "loop-interval", defaultConfig.Interval, "Delay between polling cycles.")
	flag.DurationVar(&defaultConfig.FrameTimeout, "frame-timeout", defaultConfig.FrameTimeout, "Max wait for the rest of a frame.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// NewNode creates a node using the config.
func (c *Config) NewNode(t comm.Transport, board Board, sensor TemperatureSensor) *Node {
	n := &Node{
		Config:    *c,
		Board:     board,
		Sensor:    sensor,
		transport: t,
		reader:    comm.NewReader(t),
		sender:    comm.NewSender(t),
	}
	n.reader.PollWait, n.reader.FrameTimeout = c.PollWait, c.FrameTimeout
	return n
}

// Node owns the link, the pin table and the collaborators.
// It's single threaded: Poll and Run must not be called concurrently.
type Node struct {
	Config
	Pins   PinTable
	Board  Board
	Sensor TemperatureSensor

	transport comm.Transport
	reader    *comm.Reader
	sender    *comm.Sender
	request   comm.Packet
}

// SetObserver installs the diagnostics observer.
func (n *Node) SetObserver(o comm.Observer) {
	n.reader.Observer = o
	n.sender.Observer = o
}

// Poll runs one cycle: reads a command and replies it.
// It returns the read status, and error only if the transport fails.
func (n *Node) Poll() (comm.ReadStatus, error) {
	status, err := n.reader.ReadPacket(&n.request)
	if err != nil || status != comm.ReadOK {
		return status, err
	}
	reply, ok := n.dispatch(&n.request)
	if !ok {
		return status, nil
	}
	return status, n.sender.SendPacket(&reply)
}

// Run polls until ctx is done or the transport fails.
func (n *Node) Run(ctx context.Context) error {
	for {
		if _, err := n.Poll(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(n.Interval):
		}
	}
}

// Close closes the transport and resets the pin table.
func (n *Node) Close() error {
	n.Pins.Reset()
	if closer, ok := n.transport.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (n *Node) dispatch(req *comm.Packet) (reply comm.Packet, ok bool) {
	reply = *req
	reply.Data, reply.CRC = 0, 0
	if req.OpCode == comm.OpGetTemperature {
		temp, err := n.Sensor.ReadTemperature(n.SensorBus)
		if err != nil {
			glog.Warningf("read temperature on bus %d: %v", n.SensorBus, err)
			temp = DisconnectedTemperature
		}
		reply.SetFloat(temp)
		return reply, true
	}
	if !n.Pins.Valid(req.Pin) {
		glog.Warningf("%s: pin %d out of range", req.OpCode, req.Pin)
		return reply, false
	}
	pin := &n.Pins[req.Pin]
	var err error
	switch req.OpCode {
	case comm.OpInputPin:
		mode := PinModeInput
		if req.PinMode == PinModeInputPullup {
			mode = PinModeInputPullup
		}
		if err = n.Board.SetPinMode(req.Pin, mode); err == nil {
			pin.Configured, pin.Mode, pin.Analog = true, mode, false
			reply.PinMode = mode
		}
	case comm.OpReadDigitPin:
		if reply.Data, err = n.Board.DigitalRead(req.Pin); err == nil {
			pin.Value = reply.Data
		}
	case comm.OpInputAnalogPin:
		if err = n.Board.SetPinMode(req.Pin, PinModeInput); err == nil {
			pin.Configured, pin.Mode, pin.Analog = true, PinModeInput, true
			reply.PinMode = PinModeInput
		}
	case comm.OpReadAnalogPin:
		if reply.Data, err = n.Board.AnalogRead(req.Pin); err == nil {
			pin.Value = reply.Data
		}
	default:
		glog.Warningf("unknown op code %d", uint16(req.OpCode))
		return reply, false
	}
	if err != nil {
		glog.Errorf("%s pin %d: %v", req.OpCode, req.Pin, err)
		return reply, false
	}
	return reply, true
}
