// Package link opens concrete transports for the L0 protocol.
package link

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/net/websocket"

	"github.com/robotalks/tank.go/pkg/l0/comm"
)

// Link parameters.
const (
	// DefaultBaud is the baud rate of the primary data link.
	DefaultBaud = 57600
	// DiagBaud is the baud rate of the node's diagnostic text channel.
	// It's not used by the protocol.
	DiagBaud = 9600
	// DefaultSerialReadTimeout is the timeout of a single read on serial port.
	DefaultSerialReadTimeout = 100 * time.Millisecond
	// DefaultDialTimeout applies to network links.
	DefaultDialTimeout = 5 * time.Second
)

// Options describes a link parsed from URL.
//
//	serial:///dev/ttyACM0?baud=57600&timeout=100ms
//	tcp://host:port
//	ws://host:port/path?origin=http://host/
type Options struct {
	Scheme      string
	Address     string
	Baud        int
	ReadTimeout time.Duration
	Origin      string
}

// ParseURL parses link URL into Options.
func ParseURL(rawURL string) (*Options, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid link URL: %v", err)
	}
	opts := &Options{Scheme: u.Scheme}
	query := u.Query()
	switch u.Scheme {
	case "serial", "":
		opts.Scheme = "serial"
		if opts.Address = u.Path; opts.Address == "" {
			opts.Address = u.Opaque
		}
		if opts.Address == "" {
			return nil, fmt.Errorf("serial device required: %q", rawURL)
		}
		opts.Baud, opts.ReadTimeout = DefaultBaud, DefaultSerialReadTimeout
		if val := query.Get("baud"); val != "" {
			if opts.Baud, err = strconv.Atoi(val); err != nil || opts.Baud <= 0 {
				return nil, fmt.Errorf("invalid baud %q", val)
			}
		}
		if val := query.Get("timeout"); val != "" {
			if opts.ReadTimeout, err = time.ParseDuration(val); err != nil || opts.ReadTimeout <= 0 {
				return nil, fmt.Errorf("invalid timeout %q", val)
			}
		}
	case "tcp":
		if opts.Address = u.Host; opts.Address == "" {
			return nil, fmt.Errorf("host required: %q", rawURL)
		}
	case "ws", "wss":
		if u.Host == "" {
			return nil, fmt.Errorf("host required: %q", rawURL)
		}
		if opts.Origin = query.Get("origin"); opts.Origin == "" {
			opts.Origin = "http://localhost/"
		}
		query.Del("origin")
		u.RawQuery = query.Encode()
		opts.Address = u.String()
	default:
		return nil, fmt.Errorf("unknown link URL scheme: %q", u.Scheme)
	}
	return opts, nil
}

// Open opens the link described by URL.
func Open(rawURL string) (*comm.StreamTransport, error) {
	opts, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	return opts.Open()
}

// Open opens the link.
func (o *Options) Open() (*comm.StreamTransport, error) {
	switch o.Scheme {
	case "serial":
		port, err := OpenSerial(o.Address, o.Baud, o.ReadTimeout)
		if err != nil {
			return nil, err
		}
		return comm.NewStreamTransport(port), nil
	case "tcp":
		conn, err := net.DialTimeout("tcp", o.Address, DefaultDialTimeout)
		if err != nil {
			return nil, err
		}
		return comm.NewStreamTransport(conn), nil
	case "ws", "wss":
		conn, err := websocket.Dial(o.Address, "", o.Origin)
		if err != nil {
			return nil, err
		}
		conn.PayloadType = websocket.BinaryFrame
		return comm.NewStreamTransport(conn), nil
	}
	return nil, fmt.Errorf("unknown link scheme: %q", o.Scheme)
}

// Listener accepts links on the node side.
type Listener struct {
	net.Listener
}

// Listen listens on a tcp link URL.
func Listen(rawURL string) (*Listener, error) {
	opts, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	if opts.Scheme != "tcp" {
		return nil, fmt.Errorf("can't listen on %q link", opts.Scheme)
	}
	ln, err := net.Listen("tcp", opts.Address)
	if err != nil {
		return nil, err
	}
	return &Listener{Listener: ln}, nil
}

// AcceptLink waits for the next link.
func (l *Listener) AcceptLink() (*comm.StreamTransport, error) {
	conn, err := l.Accept()
	if err != nil {
		return nil, err
	}
	return comm.NewStreamTransport(conn), nil
}

// WebsocketHandler serves each websocket connection as a link.
// The connection is closed when serve returns.
func WebsocketHandler(serve func(*comm.StreamTransport)) http.Handler {
	return websocket.Handler(func(conn *websocket.Conn) {
		conn.PayloadType = websocket.BinaryFrame
		t := comm.NewStreamTransport(conn)
		defer t.Close()
		serve(t)
	})
}
