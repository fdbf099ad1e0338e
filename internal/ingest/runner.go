package ingest

import (
	"context"
	"sync"
)

// Runner starts syncs on demand (API trigger, CLI, scheduler) and keeps the
// outcome of the latest one. At most one sync is in flight.
type Runner struct {
	syncer *Syncer

	mu      sync.Mutex
	running bool
	last    *Report
	lastErr error
	done    chan struct{}
}

// NewRunner wraps syncer.
func NewRunner(syncer *Syncer) *Runner {
	return &Runner{syncer: syncer}
}

// Syncer returns the wrapped syncer.
func (r *Runner) Syncer() *Syncer { return r.syncer }

func (r *Runner) begin() (chan struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil, ErrRunInProgress
	}
	r.running = true
	r.syncer.stop.Store(false)
	r.done = make(chan struct{})
	return r.done, nil
}

func (r *Runner) finish(done chan struct{}, rep *Report, err error) {
	r.mu.Lock()
	r.running = false
	if rep != nil {
		r.last = rep
	}
	r.lastErr = err
	r.mu.Unlock()
	close(done)
}

// RunNow runs a sync and waits for it.
func (r *Runner) RunNow(ctx context.Context) (*Report, error) {
	done, err := r.begin()
	if err != nil {
		return nil, err
	}
	rep, err := r.syncer.Run(ctx)
	r.finish(done, rep, err)
	return rep, err
}

// Trigger starts a sync in the background and returns immediately.
// ErrRunInProgress is returned when one is already running.
func (r *Runner) Trigger(ctx context.Context) error {
	done, err := r.begin()
	if err != nil {
		return err
	}
	go func() {
		rep, err := r.syncer.Run(ctx)
		r.finish(done, rep, err)
	}()
	return nil
}

// Running reports whether a sync is in flight.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Last returns the latest report and error. The report is nil before the
// first run.
func (r *Runner) Last() (*Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.lastErr
}

// Wait blocks until the in-flight sync, if any, has finished.
func (r *Runner) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Stop asks the in-flight sync to stop after its current articles. It
// reports false when no sync is running. A stop sent before the sync has
// started still takes effect.
func (r *Runner) Stop() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return false
	}
	r.syncer.Stop()
	return true
}
