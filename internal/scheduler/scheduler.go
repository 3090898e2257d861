// Package scheduler runs the sync jobs on fixed intervals. Each job gets its
// own ticker goroutine; a job never overlaps itself, whether triggered by the
// ticker or by hand.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dealgrab/dealgrab-sync/internal/metrics"
)

// Job is one schedulable unit of work.
type Job struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

type jobState struct {
	job     Job
	running atomic.Bool
}

// Scheduler owns the job tickers.
type Scheduler struct {
	jobs []*jobState
	log  *slog.Logger
	wg   sync.WaitGroup
}

func New(log *slog.Logger) *Scheduler {
	return &Scheduler{log: log}
}

func (s *Scheduler) Add(job Job) {
	s.jobs = append(s.jobs, &jobState{job: job})
}

// Start launches one ticker goroutine per job. Every job runs once
// immediately so a fresh deployment has data before its first interval
// elapses. Start returns right away; cancel ctx and call Wait to stop.
func (s *Scheduler) Start(ctx context.Context) {
	for _, state := range s.jobs {
		s.wg.Add(1)
		go func(state *jobState) {
			defer s.wg.Done()

			s.runJob(ctx, state)
			ticker := time.NewTicker(state.job.Interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					s.runJob(ctx, state)
				}
			}
		}(state)
	}
}

// Wait blocks until every ticker goroutine has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Trigger runs a job by name in the background. A job already in flight is
// not started again.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	for _, state := range s.jobs {
		if state.job.Name != name {
			continue
		}
		s.wg.Add(1)
		go func(state *jobState) {
			defer s.wg.Done()
			s.runJob(ctx, state)
		}(state)
		return nil
	}
	return fmt.Errorf("unknown job %q", name)
}

// JobNames lists the registered jobs.
func (s *Scheduler) JobNames() []string {
	names := make([]string, 0, len(s.jobs))
	for _, state := range s.jobs {
		names = append(names, state.job.Name)
	}
	return names
}

func (s *Scheduler) runJob(ctx context.Context, state *jobState) {
	if !state.running.CompareAndSwap(false, true) {
		s.log.Warn("Job still running, skipping this tick", "job", state.job.Name)
		return
	}
	defer state.running.Store(false)

	runCtx := ctx
	if state.job.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, state.job.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := s.safeRun(runCtx, state.job)
	metrics.ObserveJob(state.job.Name, time.Since(start), err)

	if err != nil {
		s.log.Error("Job failed", "job", state.job.Name, "duration", time.Since(start), "error", err)
		return
	}
	s.log.Info("Job finished", "job", state.job.Name, "duration", time.Since(start))
}

func (s *Scheduler) safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Job panicked", "job", job.Name, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("job %s panicked: %v", job.Name, r)
		}
	}()
	return job.Run(ctx)
}
