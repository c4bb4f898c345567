// Package env sets up the host side environment of a tank from
// flags and environment variables.
package env

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"

	"github.com/robotalks/tank.go/pkg/l0/comm"
	"github.com/robotalks/tank.go/pkg/l0/link"
	"github.com/robotalks/tank.go/pkg/tank"
	"github.com/robotalks/tank.go/pkg/telemetry/mqtt"
)

// Config provides common options of host processes.
type Config struct {
	// LinkURL specifies the link to the node,
	// e.g. serial:///dev/ttyACM0, tcp://host:port.
	LinkURL string
	// MQTTBrokerURL specifies the MQTT broker, empty to disable telemetry.
	// e.g. mqtt://host:port/topic-prefix/
	MQTTBrokerURL string
	ClientID      uint32
	// Name identifies the tank in MQTT topics.
	// NewEnv sets it from DefaultName if empty.
	Name         string
	MaxRepair    int
	RepairDelay  time.Duration
	Timeout      time.Duration
	PollInterval time.Duration
}

var defaultConfig = Config{
	LinkURL:      "serial:///dev/ttyACM0",
	ClientID:     tank.DefaultClientID,
	MaxRepair:    tank.DefaultMaxRepair,
	RepairDelay:  tank.DefaultRepairDelay,
	Timeout:      comm.DefaultFrameTimeout,
	PollInterval: tank.DefaultPollInterval,
}

func init() {
	if val := os.Getenv("TANK_LINK_URL"); val != "" {
		defaultConfig.LinkURL = val
	}
	if val := os.Getenv("TANK_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	if val := os.Getenv("TANK_CLIENT_ID"); val != "" {
		if id, err := strconv.ParseUint(val, 0, 32); err == nil {
			defaultConfig.ClientID = uint32(id)
		} else {
			glog.Warningf("ignore invalid TANK_CLIENT_ID %q", val)
		}
	}
	defaultConfig.Name = os.Getenv("TANK_NAME")
}

// DefaultName derives a stable tank name from the machine id.
func DefaultName() string {
	id, err := machineid.ProtectedID("tank.go")
	if err != nil || len(id) < 8 {
		glog.Warningf("machine id unavailable: %v", err)
		if host, err := os.Hostname(); err == nil && host != "" {
			return host
		}
		return "tank"
	}
	return "tank-" + id[:8]
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.LinkURL, "link", defaultConfig.LinkURL, "Link URL of the node")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL")
	flag.Var(clientIDValue{&defaultConfig.ClientID}, "client-id", "Client ID in packets")
	flag.StringVar(&defaultConfig.Name, "name", defaultConfig.Name, "Tank name in MQTT topics (default derived from machine id)")
	flag.IntVar(&defaultConfig.MaxRepair, "max-repair", defaultConfig.MaxRepair, "Max link repairs per command")
	flag.DurationVar(&defaultConfig.RepairDelay, "repair-delay", defaultConfig.RepairDelay, "Delay around re-opening the link")
	flag.DurationVar(&defaultConfig.Timeout, "timeout", defaultConfig.Timeout, "Timeout waiting for a reply")
	flag.DurationVar(&defaultConfig.PollInterval, "poll-interval", defaultConfig.PollInterval, "Temperature polling interval")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Env is the host side environment.
type Env struct {
	Config *Config
	Conn   *tank.Conn
	Tank   *tank.Tank
	// Queue is nil if MQTT is not configured.
	Queue *mqtt.Queue
}

// NewEnv creates Env from config. Nothing is connected yet.
func (c *Config) NewEnv() (*Env, error) {
	opts, err := link.ParseURL(c.LinkURL)
	if err != nil {
		return nil, err
	}
	if c.Name == "" {
		c.Name = DefaultName()
	}
	conn := tank.NewConn(func() (tank.Link, error) {
		t, err := opts.Open()
		if err != nil {
			return nil, err
		}
		return t, nil
	}, c.ClientID)
	conn.MaxRepair, conn.RepairDelay, conn.Timeout = c.MaxRepair, c.RepairDelay, c.Timeout
	conn.Observer = &comm.LogObserver{Prefix: "host: "}
	env := &Env{Config: c, Conn: conn, Tank: tank.New(conn)}
	if c.MQTTBrokerURL != "" {
		if env.Queue, err = mqtt.NewQueueFromURL(c.MQTTBrokerURL); err != nil {
			return nil, fmt.Errorf("create MQTT queue error: %v", err)
		}
	}
	return env, nil
}

// MustNewEnv creates Env and fails on error.
func (c *Config) MustNewEnv() *Env {
	env, err := c.NewEnv()
	if err != nil {
		log.Fatalln(err)
	}
	return env
}

// NewPoller creates a temperature poller feeding sink.
func (e *Env) NewPoller(sink tank.ReadingSink) *tank.Poller {
	p := tank.NewPoller(e.Tank, sink)
	if e.Config.PollInterval > 0 {
		p.Interval = e.Config.PollInterval
	} else {
		glog.Warningf("invalid poll interval %s, use %s", e.Config.PollInterval, p.Interval)
	}
	return p
}

// NewBridge creates the MQTT bridge, or nil without MQTT.
func (e *Env) NewBridge() *mqtt.Bridge {
	if e.Queue == nil {
		return nil
	}
	return mqtt.NewBridge(e.Queue, e.Tank, e.Config.Name)
}

// Close closes connections.
func (e *Env) Close() error {
	if e.Queue != nil {
		e.Queue.Close()
	}
	return e.Conn.Close()
}

type clientIDValue struct {
	id *uint32
}

func (v clientIDValue) String() string {
	if v.id == nil {
		return ""
	}
	return strconv.FormatUint(uint64(*v.id), 10)
}

func (v clientIDValue) Set(s string) error {
	id, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return fmt.Errorf("invalid client id %q", s)
	}
	*v.id = uint32(id)
	return nil
}
