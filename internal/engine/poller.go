package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/apeks827/JiraTasksUpdate/internal/dedup"
	"github.com/apeks827/JiraTasksUpdate/internal/otel"
	"github.com/apeks827/JiraTasksUpdate/internal/rules"
	"github.com/apeks827/JiraTasksUpdate/internal/tracker"
)

// pollNewTickets is the poller worker body. It returns nil when a run flag
// stopped it (the supervisor then parks until ResumePoller) and an error on
// a fetch failure (the supervisor restarts after the backoff).
func (e *Engine) pollNewTickets(ctx context.Context) error {
	for {
		if !e.state.Runnable() {
			slog.Info("new-ticket poller stopped by run flags",
				"processing", e.state.Processing(), "time_gate", e.state.TimeGate())
			return nil
		}
		if err := e.processNewBatch(ctx); err != nil {
			return err
		}
		if !sleepCtx(ctx, e.pollInterval) {
			return nil
		}
	}
}

// processNewBatch fetches one batch of candidate tickets and processes each.
// A fetch failure aborts the batch; per-ticket failures only skip that
// ticket for this cycle.
func (e *Engine) processNewBatch(ctx context.Context) error {
	slog.Info("searching for new tickets")
	tickets, err := e.tracker.Search(ctx, e.queries.NewTickets)
	if err != nil {
		return fmt.Errorf("fetch new tickets: %w", err)
	}
	if len(tickets) == 0 {
		slog.Info("no new tickets")
		return nil
	}
	slog.Info("found new tickets", "count", len(tickets))
	for _, t := range tickets {
		e.processNewTicket(ctx, t)
	}
	return nil
}

// processNewTicket applies the skip pipeline to one candidate and assigns it
// when it passes. No ordering guarantee across tickets in a batch.
func (e *Engine) processNewTicket(ctx context.Context, t tracker.Ticket) {
	// Permanent skip keys are never cached: membership alone is enough.
	if e.rules.IssueKeys[t.Key] {
		slog.Info("ticket in permanent skip list", "key", t.Key)
		otel.RecordTicket(ctx, otel.OutcomeSkipped, string(rules.ReasonKey))
		return
	}
	if e.cache.Contains(t.Key) {
		slog.Debug("ticket in dedup cache, skipping", "key", t.Key)
		otel.RecordTicket(ctx, otel.OutcomeCached, "")
		return
	}
	if err := t.Validate(); err != nil {
		// Malformed record: skip this cycle without caching so the next
		// cycle retries it.
		slog.Error("malformed ticket, skipping this cycle", "key", t.Key, "err", err)
		otel.RecordTicket(ctx, otel.OutcomeError, "malformed")
		return
	}

	slog.Info("processing ticket", "key", t.Key, "summary", t.Summary, "creator", t.Creator)

	if v := e.rules.Evaluate(t); v.Skip {
		slog.Info("ticket filtered by rule", "key", t.Key, "reason", v.Reason, "match", v.Match)
		e.cache.Add(t.Key, dedup.FilteredTTL)
		otel.RecordTicket(ctx, otel.OutcomeSkipped, string(v.Reason))
		return
	}

	if err := e.assignTicket(ctx, t); err != nil {
		// Not cached: retried on the next cycle.
		slog.Error("assignment failed, ticket will be retried", "key", t.Key, "err", err)
		otel.RecordTicket(ctx, otel.OutcomeError, "assign")
		return
	}
	e.cache.Add(t.Key, dedup.AssignedTTL)
}

// assignTicket transitions the ticket, picks the next operator from the
// rotation, notifies them, and corrects the assignee if the tracker shows a
// different one. Notification failure does not roll back the transition;
// the two actions are deliberately not transactional.
func (e *Engine) assignTicket(ctx context.Context, t tracker.Ticket) error {
	if e.dryRun {
		slog.Info("[dry-run] would transition ticket", "key", t.Key, "transition", e.transitionID)
	} else {
		if err := e.tracker.Transition(ctx, t.Key, e.transitionID); err != nil {
			return err
		}
		slog.Info("transitioned ticket", "key", t.Key, "transition", e.transitionID)
	}

	assignee := e.rotation.Next()
	slog.Info("assigning ticket", "key", t.Key, "assignee", assignee.Username, "notify_chat", assignee.ChatID)

	if e.dryRun {
		slog.Info("[dry-run] would notify and assign", "key", t.Key, "assignee", assignee.Username, "chat_id", assignee.ChatID)
		otel.RecordTicket(ctx, otel.OutcomeDryRun, "")
		return nil
	}

	e.notifyNewTicket(ctx, assignee.ChatID, t)

	if t.Assignee != assignee.Username {
		if err := e.tracker.Assign(ctx, t.Key, assignee.Username); err != nil {
			// The transition already happened and the operator was
			// notified; log and keep the short-TTL cache insert.
			slog.Error("reassign failed", "key", t.Key, "assignee", assignee.Username, "err", err)
		} else {
			slog.Info("reassigned ticket", "key", t.Key, "assignee", assignee.Username)
		}
	}
	otel.RecordTicket(ctx, otel.OutcomeAssigned, "")
	return nil
}

// notifyNewTicket sends the assignment notification. Best-effort: a send
// failure is logged and never blocks the assignment.
func (e *Engine) notifyNewTicket(ctx context.Context, chatID int64, t tracker.Ticket) {
	if e.notifier == nil {
		slog.Warn("notifier disabled, skipping notification", "key", t.Key)
		return
	}
	text := fmt.Sprintf("Hi! There is a new issue: %s from: %s",
		hlink(t.Key+": "+t.Summary, e.BrowseURL(t.Key)),
		hlink(t.Creator, e.contactURL(t.Creator)),
	)
	if err := e.notifier.SendMessage(ctx, chatID, text, true); err != nil {
		slog.Error("notification failed", "key", t.Key, "chat_id", chatID, "err", err)
		otel.RecordNotification(ctx, otel.OutcomeError)
		return
	}
	slog.Info("sent assignment notification", "key", t.Key, "chat_id", chatID)
	otel.RecordNotification(ctx, "sent")
}
