package tank

import (
	"context"
	"time"

	"github.com/golang/glog"
)

// DefaultPollInterval is the interval between temperature readings.
const DefaultPollInterval = 5 * time.Minute

// Reading is a temperature sample.
type Reading struct {
	Time        time.Time
	Temperature float32
}

// ReadingSink receives accepted readings.
type ReadingSink interface {
	AddReading(ctx context.Context, r Reading) error
}

// ReadingSinkFunc is a func implementing ReadingSink.
type ReadingSinkFunc func(ctx context.Context, r Reading) error

// AddReading implements ReadingSink.
func (f ReadingSinkFunc) AddReading(ctx context.Context, r Reading) error {
	return f(ctx, r)
}

// TemperatureReader reads water temperature.
type TemperatureReader interface {
	Temperature(ctx context.Context) (float32, error)
}

// Poller reads temperature periodically and feeds the sink.
// Readings not above zero are sensor faults and are dropped.
type Poller struct {
	Reader   TemperatureReader
	Sink     ReadingSink
	Interval time.Duration

	now func() time.Time
}

// NewPoller creates a Poller with the default interval.
func NewPoller(reader TemperatureReader, sink ReadingSink) *Poller {
	return &Poller{
		Reader:   reader,
		Sink:     sink,
		Interval: DefaultPollInterval,
		now:      time.Now,
	}
}

// Poll takes a single reading. It returns whether the reading was accepted.
func (p *Poller) Poll(ctx context.Context) (bool, error) {
	temp, err := p.Reader.Temperature(ctx)
	if err != nil {
		return false, err
	}
	if temp <= 0 {
		glog.V(1).Infof("drop temperature %v", temp)
		return false, nil
	}
	now := time.Now
	if p.now != nil {
		now = p.now
	}
	r := Reading{Time: now(), Temperature: temp}
	if err := p.Sink.AddReading(ctx, r); err != nil {
		return false, err
	}
	return true, nil
}

// Run polls immediately and then every Interval until ctx is done.
// A non-positive Interval uses DefaultPollInterval.
// Failures are logged and don't stop polling.
func (p *Poller) Run(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		glog.Warningf("invalid poll interval %s, use %s", interval, DefaultPollInterval)
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			glog.Errorf("poll temperature: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
