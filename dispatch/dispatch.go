// Package dispatch runs mirror jobs for incoming events. At most one job per
// source ref is in flight, a newer event for the same ref cancels the running
// job and is started once the cancelled job has returned. Jobs of different
// refs run concurrently.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/hjoncour/gh-to-gl-migrator/internal/lock"
	"github.com/hjoncour/gh-to-gl-migrator/policy"
)

var ErrStopped = errors.New("dispatcher is stopped")

// RunFunc mirrors single event, it must return when ctx is cancelled
type RunFunc func(ctx context.Context, event policy.PushEvent) error

type job struct {
	event  policy.PushEvent
	cancel context.CancelFunc
	done   chan struct{}
}

// Dispatcher is safe for concurrent use by multiple goroutines.
type Dispatcher struct {
	ctx      context.Context
	lock     lock.Mutex
	run      RunFunc
	inflight map[string]*job
	wg       sync.WaitGroup
	log      *slog.Logger
}

// New returns Dispatcher, jobs are cancelled when ctx is done.
func New(ctx context.Context, run RunFunc, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		ctx:      ctx,
		run:      run,
		inflight: make(map[string]*job),
		log:      log,
	}
}

// Submit schedules mirror of the event. If a job for the same ref is
// in flight it's cancelled and superseded by this event.
func (d *Dispatcher) Submit(event policy.PushEvent) error {
	if d.ctx.Err() != nil {
		return ErrStopped
	}

	key := event.Key()

	d.lock.Lock()
	prev := d.inflight[key]
	if prev != nil {
		d.log.Info("superseding in flight mirror", "ref", key)
		prev.cancel()
	}

	ctx, cancel := context.WithCancel(d.ctx)
	j := &job{event: event, cancel: cancel, done: make(chan struct{})}
	d.inflight[key] = j
	d.wg.Add(1)
	d.lock.Unlock()

	go d.exec(ctx, key, j, prev)
	return nil
}

func (d *Dispatcher) exec(ctx context.Context, key string, j, prev *job) {
	defer d.wg.Done()
	defer close(j.done)
	defer func() {
		d.lock.Lock()
		if d.inflight[key] == j {
			delete(d.inflight, key)
		}
		d.lock.Unlock()
		j.cancel()
	}()

	// wait for superseded job to return so that same ref is never
	// pushed concurrently
	if prev != nil {
		<-prev.done
	}

	if ctx.Err() != nil {
		d.log.Debug("mirror superseded before start", "ref", key)
		return
	}

	err := d.run(ctx, j.event)
	switch {
	case err == nil:
	case ctx.Err() != nil && d.ctx.Err() == nil:
		d.log.Info("mirror cancelled by newer event", "ref", key, "err", err)
	default:
		d.log.Error("mirror failed", "ref", key, "err", err)
	}
}

// InFlight returns true if a job for given ref key is scheduled or running
func (d *Dispatcher) InFlight(key string) bool {
	d.lock.Lock()
	defer d.lock.Unlock()

	_, ok := d.inflight[key]
	return ok
}

// Wait blocks until all submitted jobs have returned
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
