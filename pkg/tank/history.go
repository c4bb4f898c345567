package tank

import (
	"context"
	"sort"
	"sync"
	"time"
)

// DefaultRetention is how long History keeps readings.
const DefaultRetention = 30 * 24 * time.Hour

// History keeps accepted readings in time order for later queries.
type History struct {
	// Retention drops readings older than it, zero keeps everything.
	Retention time.Duration

	lock     sync.RWMutex
	readings []Reading
	now      func() time.Time
}

// NewHistory creates a History with DefaultRetention.
func NewHistory() *History {
	return &History{Retention: DefaultRetention, now: time.Now}
}

// AddReading implements ReadingSink.
func (h *History) AddReading(_ context.Context, r Reading) error {
	h.lock.Lock()
	defer h.lock.Unlock()
	i := sort.Search(len(h.readings), func(i int) bool {
		return h.readings[i].Time.After(r.Time)
	})
	h.readings = append(h.readings, Reading{})
	copy(h.readings[i+1:], h.readings[i:])
	h.readings[i] = r
	if h.Retention > 0 {
		h.expire(h.clock().Add(-h.Retention))
	}
	return nil
}

// Between returns readings taken in [from, until].
func (h *History) Between(from, until time.Time) []Reading {
	h.lock.RLock()
	defer h.lock.RUnlock()
	start := sort.Search(len(h.readings), func(i int) bool {
		return !h.readings[i].Time.Before(from)
	})
	end := sort.Search(len(h.readings), func(i int) bool {
		return h.readings[i].Time.After(until)
	})
	if start >= end {
		return nil
	}
	return append([]Reading(nil), h.readings[start:end]...)
}

// Since returns readings taken within d before now.
func (h *History) Since(d time.Duration) []Reading {
	now := h.clock()
	return h.Between(now.Add(-d), now)
}

// Len returns the number of kept readings.
func (h *History) Len() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.readings)
}

func (h *History) expire(before time.Time) {
	n := sort.Search(len(h.readings), func(i int) bool {
		return !h.readings[i].Time.Before(before)
	})
	if n > 0 {
		h.readings = append(h.readings[:0], h.readings[n:]...)
	}
}

func (h *History) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}

// MultiSink hands each reading to all sinks and returns the first error.
type MultiSink []ReadingSink

// AddReading implements ReadingSink.
func (m MultiSink) AddReading(ctx context.Context, r Reading) error {
	var first error
	for _, sink := range m {
		if err := sink.AddReading(ctx, r); err != nil && first == nil {
			first = err
		}
	}
	return first
}
