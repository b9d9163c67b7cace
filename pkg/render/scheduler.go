// Package render serializes every view render into one FIFO queue and swaps
// the results into named panes.
//
// A job starts only after the previous job has swapped (or failed), so two
// overlapping navigations never interleave their writes even when a later
// producer would have finished first. A failed job never blocks the jobs
// behind it.
package render

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vanderheijden86/bugwork/pkg/debug"
	"github.com/vanderheijden86/bugwork/pkg/metrics"
	"github.com/vanderheijden86/bugwork/pkg/router"
)

// Job is a queued render.
type Job struct {
	Selector string

	done chan struct{}
	err  error
}

// Wait blocks until the job has swapped or failed.
func (j *Job) Wait() error {
	<-j.done
	return j.err
}

// Scheduler owns the render queue. The tail is the only shared state and
// Submit is its only writer.
type Scheduler struct {
	host Host

	mu   sync.Mutex
	tail chan struct{}
}

// NewScheduler creates a scheduler that swaps into host.
func NewScheduler(host Host) *Scheduler {
	tail := make(chan struct{})
	close(tail)
	return &Scheduler{host: host, tail: tail}
}

// Submit appends a job to the queue and returns immediately.
func (s *Scheduler) Submit(ctx context.Context, selector string, produce Producer) *Job {
	job := &Job{Selector: selector, done: make(chan struct{})}

	s.mu.Lock()
	prev := s.tail
	s.tail = job.done
	s.mu.Unlock()

	go func() {
		defer close(job.done)
		<-prev
		job.err = s.run(ctx, selector, produce)
		if job.err != nil {
			metrics.RenderJob.Fail()
			debug.Log("render %s: %v", selector, job.err)
		}
	}()
	return job
}

func (s *Scheduler) run(ctx context.Context, selector string, produce Producer) (err error) {
	defer metrics.Timer(metrics.RenderJob)()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render: producer for %s panicked: %v", selector, r)
		}
	}()

	frag, err := produce(ctx)
	if err != nil {
		return fmt.Errorf("render: producing %s: %w", selector, err)
	}
	if frag == nil {
		return errors.New("render: producer returned no fragment for " + selector)
	}
	return s.host.Swap(selector, frag)
}

// Idle blocks until every job submitted so far has finished.
func (s *Scheduler) Idle() {
	s.mu.Lock()
	tail := s.tail
	s.mu.Unlock()
	<-tail
}

// Step adapts a view into a route step: it queues a render of view into
// selector and continues the chain once the swap has happened. A failed
// render halts the chain without reporting an error.
func (s *Scheduler) Step(selector string, view View) router.Step {
	return func(ctx context.Context, nav *router.Context) router.Result {
		job := s.Submit(ctx, selector, func(ctx context.Context) (Fragment, error) {
			return view.Render(ctx, nav)
		})
		if err := job.Wait(); err != nil {
			return router.Stop
		}
		return router.Next
	}
}
