// Package sh provides the interactive shell of tankctl.
package sh

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/tank.go/pkg/env"
	"github.com/robotalks/tank.go/pkg/l0/comm"
	"github.com/robotalks/tank.go/pkg/node"
	"github.com/robotalks/tank.go/pkg/tank"
	"github.com/robotalks/tank.go/pkg/telemetry"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool
	Timeout     time.Duration

	Shell  *ishell.Shell
	Config *env.Config
	Env    *env.Env
}

// DefaultCommandTimeout bounds a command including link repairs.
const DefaultCommandTimeout = time.Minute

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	evalOnly   bool
	outputJSON bool

	commands = []*ishell.Cmd{
		&ConnectCmd,
		&DisconnectCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		Timeout:     DefaultCommandTimeout,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Env == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// ParsePin parses a pin name or number from args[index].
func ParsePin(args []string, index int) (uint8, error) {
	if len(args) <= index {
		return 0, fmt.Errorf("PIN required")
	}
	return tank.LookupPin(args[index])
}

// ParseCommand builds a command from shell args: PIN [MODE].
// MODE is a number or one of input, output, pullup.
func ParseCommand(op comm.OpCode, args []string) (*telemetry.Command, error) {
	cmd := &telemetry.Command{Op: op}
	if op == comm.OpGetTemperature {
		return cmd, nil
	}
	pin, err := ParsePin(args, 0)
	if err != nil {
		return nil, err
	}
	cmd.Pin = pin
	if len(args) > 1 {
		switch args[1] {
		case "input":
			cmd.PinMode = node.PinModeInput
		case "output":
			cmd.PinMode = node.PinModeOutput
		case "pullup":
			cmd.PinMode = node.PinModeInputPullup
		default:
			mode, err := strconv.ParseUint(args[1], 0, 8)
			if err != nil {
				return nil, fmt.Errorf("invalid MODE %q", args[1])
			}
			cmd.PinMode = uint8(mode)
		}
	}
	return cmd, nil
}

var pinModeNames = map[uint8]string{
	node.PinModeInput:       "INPUT",
	node.PinModeOutput:      "OUTPUT",
	node.PinModeInputPullup: "INPUT_PULLUP",
}

// FormatReply prints a reply for display.
func FormatReply(r *telemetry.Reply, asJSON bool) (string, error) {
	if asJSON {
		return telemetry.JSON(r.Struct())
	}
	if r.Error != "" {
		return "", fmt.Errorf("%s: %s", r.Op, r.Error)
	}
	switch r.Op {
	case comm.OpGetTemperature:
		if r.Temperature == node.DisconnectedTemperature {
			return "sensor disconnected", nil
		}
		return fmt.Sprintf("%.2f°C", r.Temperature), nil
	case comm.OpInputPin, comm.OpInputAnalogPin:
		mode, ok := pinModeNames[r.PinMode]
		if !ok {
			mode = strconv.Itoa(int(r.PinMode))
		}
		return fmt.Sprintf("pin %d: %s", r.Pin, mode), nil
	case comm.OpReadDigitPin:
		level := "LOW"
		if r.Data != 0 {
			level = "HIGH"
		}
		return fmt.Sprintf("pin %d: %s", r.Pin, level), nil
	}
	return fmt.Sprintf("pin %d: %d", r.Pin, r.Data), nil
}

// Exec executes cmd on the connected tank.
func (s *Shell) Exec(cmd *telemetry.Command) *telemetry.Reply {
	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()
	pkt, err := s.Env.Tank.Exec(ctx, cmd.Op, cmd.Pin, cmd.PinMode)
	return telemetry.ReplyFor(cmd, pkt, err)
}

// DoCommand executes cmd and prints the reply.
func DoCommand(c *ishell.Context, cmd *telemetry.Command) error {
	s := ShellFrom(c)
	if s.Env == nil {
		err := fmt.Errorf("not connected")
		c.Err(err)
		return err
	}
	out, err := FormatReply(s.Exec(cmd), s.OutputJSON)
	if err != nil {
		c.Err(err)
		return err
	}
	c.Println(out)
	return nil
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}

// Connect opens the link, using the configured one if linkURL is empty.
// The current link is kept if the new one fails.
func (s *Shell) Connect(linkURL string) error {
	conf := *s.Config
	conf.MQTTBrokerURL = ""
	if linkURL != "" {
		conf.LinkURL = linkURL
	}
	e, err := conf.NewEnv()
	if err != nil {
		return err
	}
	if err := e.Conn.Connect(); err != nil {
		e.Close()
		return err
	}
	old := s.Env
	s.Env = e
	if old != nil {
		old.Close()
	}
	s.setPrompt(fmt.Sprintf("%s > ", conf.LinkURL))
	return nil
}

// Disconnect closes current link.
func (s *Shell) Disconnect() {
	if s.Env != nil {
		s.Env.Close()
		s.Env = nil
		s.setPrompt(unconnectedPrompt)
	}
}

func (s *Shell) setPrompt(prompt string) {
	if s.Shell != nil {
		s.Shell.SetPrompt(prompt)
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoConnect {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", s.Config.LinkURL)
		}
		if err := s.Connect(""); err != nil {
			log.Fatalf("connect %q failed: %v", s.Config.LinkURL, err)
		}
	}
	defer s.Disconnect()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// ConnectCmd opens a link.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[LINK-URL]",
		Func: func(c *ishell.Context) {
			var linkURL string
			if len(c.Args) > 0 {
				linkURL = c.Args[0]
			}
			if err := ShellFrom(c).Connect(linkURL); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd closes current link.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.NewConfig()).WithAutoConnect(true).Run(flag.Args()...)
}
