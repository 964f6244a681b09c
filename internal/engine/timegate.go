package engine

import (
	"context"
	"log/slog"
)

// RunTimeGate drives the day/night gating state machine until ctx is
// cancelled. Inside sleep hours the time-gate flag is held false. At the
// wake hour the gate flaps false for a short settle delay, re-enables, and
// explicitly resumes the poller, since the flag flip alone would not
// restart a stopped loop.
func (e *Engine) RunTimeGate(ctx context.Context) {
	fired := false
	for {
		fired = e.timeGateTick(ctx, fired)
		if !sleepCtx(ctx, e.timeCheckInterval) {
			return
		}
	}
}

// timeGateTick performs one clock check and returns the new state of the
// one-shot wake guard. The guard keeps the wake sequence from re-firing
// every check within the same waking window; it re-arms when the hour next
// enters the sleep set.
func (e *Engine) timeGateTick(ctx context.Context, fired bool) bool {
	hour := e.now().Hour()
	slog.Debug("time gate check", "hour", hour)

	switch {
	case e.sleepHours[hour]:
		if e.state.TimeGate() {
			slog.Info("entering sleep hours, suspending poller", "hour", hour)
		}
		e.state.SetTimeGate(false)
		return false
	case hour == e.wakeHour && !fired:
		slog.Info("wake hour reached, resuming poller", "hour", hour, "settle", e.settleDelay)
		e.state.SetTimeGate(false)
		if !sleepCtx(ctx, e.settleDelay) {
			return true
		}
		e.state.SetTimeGate(true)
		e.ResumePoller()
		return true
	}
	return fired
}
