// Package otel holds the OpenTelemetry metric instruments for the daemon:
// tickets processed, notifications sent, and loop restarts.
package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/metric"
)

// Ticket processing outcomes recorded on the processed counter.
const (
	OutcomeAssigned = "assigned"
	OutcomeSkipped  = "skipped"
	OutcomeCached   = "cached"
	OutcomeError    = "error"
	OutcomeDryRun   = "dry_run"
)

var (
	initMetricsOnce      sync.Once
	ticketsProcessed     metric.Int64Counter
	notificationsCounter metric.Int64Counter
	loopRestartsCounter  metric.Int64Counter
)

// InitMetrics creates the meter instruments. Safe to call multiple times;
// only runs once. Call after InitMeterProvider.
func InitMetrics(ctx context.Context) error {
	var err error
	initMetricsOnce.Do(func() {
		m := Meter()
		ticketsProcessed, err = m.Int64Counter("jiratasksupdate_tickets_processed_total", metric.WithDescription("Tickets seen by the poller, by outcome and skip reason"))
		if err != nil {
			return
		}
		notificationsCounter, err = m.Int64Counter("jiratasksupdate_notifications_total", metric.WithDescription("Telegram notifications attempted, by outcome"))
		if err != nil {
			return
		}
		loopRestartsCounter, err = m.Int64Counter("jiratasksupdate_loop_restarts_total", metric.WithDescription("Worker loop restarts, by loop name"))
	})
	return err
}

// RecordTicket records one processed ticket with its outcome and, for
// skips, the rule reason.
func RecordTicket(ctx context.Context, outcome, reason string) {
	if ticketsProcessed == nil {
		return
	}
	ticketsProcessed.Add(ctx, 1, metric.WithAttributes(
		AttrOutcome.String(outcome),
		AttrReason.String(reason),
	))
}

// RecordNotification records one notification attempt.
func RecordNotification(ctx context.Context, outcome string) {
	if notificationsCounter == nil {
		return
	}
	notificationsCounter.Add(ctx, 1, metric.WithAttributes(AttrOutcome.String(outcome)))
}

// RecordLoopRestart records one supervisor restart of a worker loop.
func RecordLoopRestart(ctx context.Context, loop string) {
	if loopRestartsCounter == nil {
		return
	}
	loopRestartsCounter.Add(ctx, 1, metric.WithAttributes(AttrLoop.String(loop)))
}
