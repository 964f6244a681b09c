package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/apeks827/JiraTasksUpdate/internal/otel"
	"github.com/apeks827/JiraTasksUpdate/internal/tracker"
)

// watchUpdates is the update-watcher worker body. Simpler than the poller:
// no rules, no dedup, no tracker mutation. It only relays recent changes
// in watched tickets to the primary chat. Same return contract as
// pollNewTickets.
func (e *Engine) watchUpdates(ctx context.Context) error {
	for {
		// Sleep first: the watch window of the query covers the interval,
		// so an immediate first fetch would double-report.
		if !sleepCtx(ctx, e.updatesInterval) {
			return nil
		}
		if !e.state.Runnable() {
			slog.Info("update watcher stopped by run flags")
			return nil
		}
		if err := e.processUpdatesBatch(ctx); err != nil {
			return err
		}
	}
}

// processUpdatesBatch fetches recently changed watched tickets and notifies
// for each.
func (e *Engine) processUpdatesBatch(ctx context.Context) error {
	slog.Info("searching for ticket updates")
	tickets, err := e.tracker.Search(ctx, e.queries.Updates)
	if err != nil {
		return fmt.Errorf("fetch updates: %w", err)
	}
	if len(tickets) == 0 {
		slog.Info("no updates")
		return nil
	}
	slog.Info("found updated tickets", "count", len(tickets))
	for _, t := range tickets {
		slog.Info("ticket updated", "key", t.Key, "summary", t.Summary, "creator", t.Creator)
		if e.dryRun {
			slog.Info("[dry-run] would send update notification", "key", t.Key)
			continue
		}
		e.notifyUpdate(ctx, t)
	}
	return nil
}

func (e *Engine) notifyUpdate(ctx context.Context, t tracker.Ticket) {
	if e.notifier == nil {
		slog.Warn("notifier disabled, skipping update notification", "key", t.Key)
		return
	}
	text := fmt.Sprintf("Hi! There is a new update: %s from %s",
		hlink(t.Key+": "+t.Summary, e.BrowseURL(t.Key)), t.Creator)
	if err := e.notifier.SendMessage(ctx, e.mainChatID, text, true); err != nil {
		slog.Error("update notification failed", "key", t.Key, "err", err)
		otel.RecordNotification(ctx, otel.OutcomeError)
		return
	}
	otel.RecordNotification(ctx, "sent")
}
