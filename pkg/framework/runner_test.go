package framework

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Add(nil, nil).Aggregate())
	errs.Add(errors.New("link closed"))
	require.Equal(t, "link closed", errs.Aggregate().Error())
	errs.Add(nil, errors.New("broker lost"))
	require.Equal(t, "2 errors:\n  link closed\n  broker lost", errs.Aggregate().Error())
}

func TestRunnerStopsOnCancel(t *testing.T) {
	r := NewRunner()
	for _, name := range []string{"poller", "bridge"} {
		r.Go(name, RunFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}))
	}
	go func() {
		time.Sleep(10 * time.Millisecond)
		r.Stop()
	}()
	require.NoError(t, r.Wait())
}

func TestRunnerStopOnExit(t *testing.T) {
	fail := errors.New("transport failed")
	r := NewRunner().StopOnExit()
	r.Go("node", RunFunc(func(ctx context.Context) error {
		return fail
	}))
	r.Go("waiter", RunFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	err := r.Wait()
	require.Error(t, err)
	require.True(t, errors.Is(err.(*AggregatedError).Errors[0], fail))
	require.True(t, strings.HasPrefix(err.Error(), "node: "))
}

type closeRecorder struct {
	closed chan struct{}
}

func (c *closeRecorder) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}

func TestRunWithCloser(t *testing.T) {
	c := &closeRecorder{closed: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	go cancel()
	err := RunWithCloser(ctx, c, func() error {
		<-c.closed
		return nil
	})
	require.Equal(t, context.Canceled, err)

	c = &closeRecorder{closed: make(chan struct{})}
	require.NoError(t, RunWithCloser(context.Background(), c, func() error { return nil }))
	select {
	case <-c.closed:
	default:
		t.Fatal("closer not closed")
	}
}
