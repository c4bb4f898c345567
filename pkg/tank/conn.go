package tank

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/tank.go/pkg/l0/comm"
)

// Repair defaults.
const (
	DefaultMaxRepair   = 5
	DefaultRepairDelay = 2 * time.Second
)

// Link is a transport that can be closed.
type Link interface {
	comm.Transport
	io.Closer
}

// Dialer opens a new link.
type Dialer func() (Link, error)

// Conn is an Executor which keeps a link to the node and repairs it
// when a command fails.
type Conn struct {
	ClientID uint32
	// MaxRepair is the max number of repairs for a single command.
	MaxRepair int
	// RepairDelay is waited after closing a broken link and again after
	// re-opening it, as a serial open resets the node.
	RepairDelay time.Duration
	// Timeout bounds a single attempt of a command.
	Timeout  time.Duration
	Observer comm.Observer

	dial   Dialer
	lock   sync.Mutex
	link   Link
	client *comm.Client
	cancel context.CancelFunc
	done   chan struct{}
}

// NewConn creates a Conn. The link is opened on first use.
func NewConn(dial Dialer, clientID uint32) *Conn {
	return &Conn{
		ClientID:    clientID,
		MaxRepair:   DefaultMaxRepair,
		RepairDelay: DefaultRepairDelay,
		Timeout:     comm.DefaultFrameTimeout,
		dial:        dial,
	}
}

// Connect opens the link if not yet.
func (c *Conn) Connect() error {
	_, err := c.current()
	return err
}

// Close closes the link.
func (c *Conn) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.disconnect()
}

// Exec implements Executor.
func (c *Conn) Exec(ctx context.Context, pkt *comm.Packet) (*comm.Packet, error) {
	var err error
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if attempt > c.MaxRepair {
				return nil, fmt.Errorf("%s failed after %d repairs: %w", pkt.OpCode, c.MaxRepair, err)
			}
			glog.Warningf("%s failed, repair link (%d/%d): %v", pkt.OpCode, attempt, c.MaxRepair, err)
			if err = c.repair(ctx); err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				continue
			}
		}
		var client *comm.Client
		if client, err = c.current(); err != nil {
			continue
		}
		var reply *comm.Packet
		if reply, err = c.execOnce(ctx, client, pkt); err == nil {
			return reply, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !repairable(err) {
			return nil, err
		}
	}
}

func (c *Conn) execOnce(ctx context.Context, client *comm.Client, pkt *comm.Packet) (*comm.Packet, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	return client.Exec(ctx, pkt)
}

func (c *Conn) current() (*comm.Client, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	link, err := c.dial()
	if err != nil {
		return nil, fmt.Errorf("open link: %w", err)
	}
	client := comm.NewClient(link, c.ClientID)
	if c.Observer != nil {
		client.SetObserver(c.Observer)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := client.Run(ctx); err != nil && err != context.Canceled {
			glog.Warningf("link closed: %v", err)
		}
	}()
	c.link, c.client, c.cancel, c.done = link, client, cancel, done
	glog.Info("link connected")
	return client, nil
}

func (c *Conn) disconnect() error {
	if c.link == nil {
		return nil
	}
	c.cancel()
	err := c.link.Close()
	<-c.done
	c.link, c.client, c.cancel, c.done = nil, nil, nil, nil
	return err
}

func (c *Conn) repair(ctx context.Context) error {
	c.lock.Lock()
	if err := c.disconnect(); err != nil {
		glog.Warningf("close link: %v", err)
	}
	c.lock.Unlock()
	if err := sleep(ctx, c.RepairDelay); err != nil {
		return err
	}
	if _, err := c.current(); err != nil {
		return err
	}
	return sleep(ctx, c.RepairDelay)
}

func repairable(err error) bool {
	var unexpected *comm.UnexpectedReplyError
	return !errors.Is(err, ErrInvalidPin) && !errors.As(err, &unexpected)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
