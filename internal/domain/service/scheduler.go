package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/gammazero/workerpool"
)

// ErrSchedulerStopped is returned by Submit once Stop has been called.
var ErrSchedulerStopped = errors.New("scheduler stopped")

// Scheduler runs deferred continuations on a bounded worker pool so that
// slow background work cannot exhaust the process.
type Scheduler struct {
	pool   *workerpool.WorkerPool
	logger *slog.Logger

	mu      sync.RWMutex
	stopped bool
}

// NewScheduler creates a Scheduler with the given number of workers.
func NewScheduler(workers int, logger *slog.Logger) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		pool:   workerpool.New(workers),
		logger: logger,
	}
}

// Submit queues job for execution. A panicking job is logged and does not
// take down its worker.
func (s *Scheduler) Submit(name string, job func()) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return fmt.Errorf("submitting %s: %w", name, ErrSchedulerStopped)
	}

	s.pool.Submit(func() {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("background job panicked",
					"job", name,
					"panic", rec,
					"stack", string(debug.Stack()),
				)
			}
		}()
		job()
	})
	return nil
}

// Pending returns the number of queued jobs that have not started.
func (s *Scheduler) Pending() int {
	return s.pool.WaitingQueueSize()
}

// Stopped reports whether Stop or StopWait has been called.
func (s *Scheduler) Stopped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopped
}

// Check reports an error when the scheduler no longer accepts work or more
// than maxPending jobs are waiting for a worker. It fits health.CheckFunc.
func (s *Scheduler) Check(maxPending int) func(context.Context) error {
	return func(context.Context) error {
		if s.Stopped() {
			return ErrSchedulerStopped
		}
		if n := s.Pending(); maxPending > 0 && n > maxPending {
			return fmt.Errorf("%d continuations waiting for a worker (limit %d)", n, maxPending)
		}
		return nil
	}
}

// Stop waits for running jobs and abandons queued ones.
func (s *Scheduler) Stop() {
	if !s.markStopped() {
		return
	}
	if n := s.pool.WaitingQueueSize(); n > 0 {
		s.logger.Warn("abandoning queued background jobs", "count", n)
	}
	s.pool.Stop()
}

// StopWait waits for running and queued jobs to finish.
func (s *Scheduler) StopWait() {
	if !s.markStopped() {
		return
	}
	if n := s.pool.WaitingQueueSize(); n > 0 {
		s.logger.Info("draining queued background jobs", "count", n)
	}
	s.pool.StopWait()
}

func (s *Scheduler) markStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.stopped = true
	return true
}
