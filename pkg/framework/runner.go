// Package framework runs the long lived parts of a process together and
// stops them on signals.
package framework

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
)

// ErrForcedExit is returned by Wait when a second stop signal arrives.
var ErrForcedExit = errors.New("forced exit")

// Runnable runs until ctx is done or it fails.
type Runnable interface {
	Run(ctx context.Context) error
}

// RunFunc is a func implementing Runnable.
type RunFunc func(ctx context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

type result struct {
	name string
	err  error
}

// Runner runs Runnables concurrently and collects their errors.
type Runner struct {
	Context context.Context

	cancel  context.CancelFunc
	count   int
	stopAll bool
	resCh   chan result
	exitCh  chan struct{}
}

// NewRunner creates a runner with a background context.
func NewRunner() *Runner {
	return NewRunnerWith(context.Background())
}

// NewRunnerWith creates a runner under ctx.
func NewRunnerWith(ctx context.Context) *Runner {
	ctx, cancel := context.WithCancel(ctx)
	return &Runner{
		Context: ctx,
		cancel:  cancel,
		resCh:   make(chan result),
		exitCh:  make(chan struct{}),
	}
}

// HandleSignals stops all on Ctrl-C or SIGTERM, and forces exit
// on the second one.
func (r *Runner) HandleSignals() *Runner {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		glog.Infof("%v: stopping", sig)
		r.cancel()
		<-sigCh
		glog.Error("stop requested again, force exit")
		close(r.exitCh)
	}()
	return r
}

// StopOnExit makes the first returned Runnable stop all others.
func (r *Runner) StopOnExit() *Runner {
	r.stopAll = true
	return r
}

// Go starts a named Runnable.
func (r *Runner) Go(name string, runnable Runnable) *Runner {
	r.count++
	glog.V(3).Infof("start %s", name)
	go func() {
		err := runnable.Run(r.Context)
		glog.V(3).Infof("%s stopped: %v", name, err)
		r.resCh <- result{name: name, err: err}
	}()
	return r
}

// Stop cancels the context of all Runnables.
func (r *Runner) Stop() {
	r.cancel()
}

// Wait waits for all Runnables and aggregates errors other than
// cancellation.
func (r *Runner) Wait() error {
	var errs AggregatedError
	for n := 0; n < r.count; n++ {
		select {
		case <-r.exitCh:
			return ErrForcedExit
		case res := <-r.resCh:
			if r.stopAll {
				r.cancel()
			}
			if res.err != nil && res.err != context.Canceled {
				errs.Add(fmt.Errorf("%s: %w", res.name, res.err))
			}
		}
	}
	r.cancel()
	return errs.Aggregate()
}

// RunWithCloser runs fn which can't be canceled by a context, and stops it
// by closing closer when ctx is done. closer is always closed on return.
func RunWithCloser(ctx context.Context, closer io.Closer, fn func() error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn()
	}()
	select {
	case err := <-errCh:
		closer.Close()
		return err
	case <-ctx.Done():
		closer.Close()
		<-errCh
		return ctx.Err()
	}
}
