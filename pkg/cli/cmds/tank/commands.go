// Package tank registers the fish tank commands in tankctl.
package tank

import (
	"context"
	"fmt"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/tank.go/pkg/cli/sh"
	"github.com/robotalks/tank.go/pkg/l0/comm"
	"github.com/robotalks/tank.go/pkg/tank"
)

func opCmd(op comm.OpCode) func(c *ishell.Context) {
	return sh.MustBeConnected(func(c *ishell.Context) {
		cmd, err := sh.ParseCommand(op, c.Args)
		if err != nil {
			c.Err(err)
			return
		}
		sh.DoCommand(c, cmd)
	})
}

var (
	// TemperatureCmd reads the water temperature.
	TemperatureCmd = ishell.Cmd{
		Name:    "temp",
		Aliases: []string{"t"},
		Help:    "",
		Func:    opCmd(comm.OpGetTemperature),
	}

	// InputCmd configures a digital input pin.
	InputCmd = ishell.Cmd{
		Name:    "input",
		Aliases: []string{"in"},
		Help:    "PIN [input|pullup|MODE]",
		Func:    opCmd(comm.OpInputPin),
	}

	// ReadCmd reads a digital pin.
	ReadCmd = ishell.Cmd{
		Name:    "read",
		Aliases: []string{"r"},
		Help:    "PIN",
		Func:    opCmd(comm.OpReadDigitPin),
	}

	// AnalogInputCmd configures an analog input pin.
	AnalogInputCmd = ishell.Cmd{
		Name:    "ainput",
		Aliases: []string{"ain"},
		Help:    "PIN",
		Func:    opCmd(comm.OpInputAnalogPin),
	}

	// AnalogReadCmd reads an analog pin.
	AnalogReadCmd = ishell.Cmd{
		Name:    "aread",
		Aliases: []string{"ar"},
		Help:    "PIN",
		Func:    opCmd(comm.OpReadAnalogPin),
	}

	// RelayCmd shows whether a low trigger relay is engaged.
	RelayCmd = ishell.Cmd{
		Name: "relay",
		Help: "PIN",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			pin, err := sh.ParsePin(c.Args, 0)
			if err != nil {
				c.Err(err)
				return
			}
			s := sh.ShellFrom(c)
			ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
			defer cancel()
			engaged, err := s.Env.Tank.RelayEngaged(ctx, pin)
			if err != nil {
				c.Err(err)
				return
			}
			state := "released"
			if engaged {
				state = "engaged"
			}
			c.Printf("relay %s: %s\n", c.Args[0], state)
		}),
	}

	// PinsCmd lists the named pins.
	PinsCmd = ishell.Cmd{
		Name: "pins",
		Help: "",
		Func: func(c *ishell.Context) {
			for _, name := range tank.SortedPinNames() {
				c.Printf("%-10s %d\n", name, tank.PinNames[name])
			}
		},
	}

	// ExecCmd sends any op code.
	ExecCmd = ishell.Cmd{
		Name:    "exec",
		Aliases: []string{"x"},
		Help:    "OP [PIN [MODE]]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("OP required"))
				return
			}
			op, err := comm.ParseOpCode(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			cmd, err := sh.ParseCommand(op, c.Args[1:])
			if err != nil {
				c.Err(err)
				return
			}
			sh.DoCommand(c, cmd)
		}),
	}
)

func init() {
	sh.AddCmds(
		&TemperatureCmd,
		&InputCmd,
		&ReadCmd,
		&AnalogInputCmd,
		&AnalogReadCmd,
		&RelayCmd,
		&PinsCmd,
		&ExecCmd,
	)
}
