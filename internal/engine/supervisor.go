package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/apeks827/JiraTasksUpdate/internal/otel"
)

// supervisor owns the restart policy for one worker loop. The worker
// function returns nil when it stopped because a run flag went false and an
// error when it failed; failures are restarted after a backoff, clean stops
// park the worker until an explicit Resume. A restart counter above
// maxCalls resets and takes one extra backoff instead of restarting
// immediately, acting as a coarse circuit breaker.
type supervisor struct {
	name     string
	backoff  time.Duration
	maxCalls int
	run      func(ctx context.Context) error
	wake     chan struct{}
}

func newSupervisor(name string, backoff time.Duration, maxCalls int, run func(ctx context.Context) error) *supervisor {
	if maxCalls <= 0 {
		maxCalls = 10
	}
	return &supervisor{
		name:     name,
		backoff:  backoff,
		maxCalls: maxCalls,
		run:      run,
		wake:     make(chan struct{}, 1),
	}
}

// Run drives the worker until ctx is cancelled.
func (s *supervisor) Run(ctx context.Context) {
	calls := 0
	for {
		calls++
		if calls > s.maxCalls {
			slog.Warn("worker restart count exceeded ceiling, backing off", "loop", s.name, "ceiling", s.maxCalls)
			calls = 0
			otel.RecordLoopRestart(ctx, s.name)
			if !sleepCtx(ctx, s.backoff) {
				return
			}
			continue
		}

		err := s.run(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			slog.Error("worker failed, restarting after backoff", "loop", s.name, "backoff", s.backoff, "err", err)
			otel.RecordLoopRestart(ctx, s.name)
			if !sleepCtx(ctx, s.backoff) {
				return
			}
			continue
		}

		// Clean stop by flags: wait for an explicit resume.
		slog.Info("worker stopped, waiting for resume", "loop", s.name)
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
			slog.Info("worker resumed", "loop", s.name)
		}
	}
}

// Resume wakes a worker that stopped cleanly. Safe to call at any time; a
// pending resume is coalesced.
func (s *supervisor) Resume() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// sleepCtx sleeps for d or until ctx is cancelled; it reports false on
// cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
