// Package bot implements the Telegram command surface: a small exact-match
// command vocabulary authorized to a single chat id, handled one command at
// a time off the inbound channel.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/apeks827/JiraTasksUpdate/internal/engine"
	"github.com/apeks827/JiraTasksUpdate/internal/notify"
	"github.com/apeks827/JiraTasksUpdate/internal/report"
	"github.com/apeks827/JiraTasksUpdate/internal/tracker"
)

// Command vocabulary. The button labels must stay in sync with the reply
// keyboard in notify/telegram.
const (
	cmdStart      = "/start"
	cmdHelp       = "/help"
	cmdIssuesOnMe = "Issues on me"
	cmdStop       = "-"
	cmdUpdates    = "Updates"
	cmdReport     = "Daily Report"
)

const helpText = "JiraTasksUpdate Bot\n\n" +
	"Commands:\n" +
	"- Issues on me: show my assigned issues\n" +
	"- Updates: show recent updates in watched issues\n" +
	"- Daily Report: generate and send daily metrics\n" +
	"- -: stop ticket processing"

// Bot wires inbound chat messages to engine queries and run-flag control.
type Bot struct {
	engine       *engine.Engine
	notifier     notify.Notifier
	authorizedID int64
}

// New builds the command surface. authorizedID is the only chat whose
// commands are honored.
func New(e *engine.Engine, n notify.Notifier, authorizedID int64) *Bot {
	return &Bot{engine: e, notifier: n, authorizedID: authorizedID}
}

// Run consumes inbound messages until ctx is cancelled or the channel
// closes. Handlers execute serially.
func (b *Bot) Run(ctx context.Context, updates <-chan notify.Inbound) {
	for {
		select {
		case <-ctx.Done():
			return
		case in, ok := <-updates:
			if !ok {
				return
			}
			b.handle(ctx, in)
		}
	}
}

func (b *Bot) handle(ctx context.Context, in notify.Inbound) {
	if in.Text == cmdStart || in.Text == cmdHelp {
		b.handleStart(ctx, in)
		return
	}
	if in.ChatID != b.authorizedID {
		// Non-command text from strangers is dropped without a reply.
		slog.Debug("ignoring message from unauthorized chat", "chat_id", in.ChatID)
		return
	}
	switch in.Text {
	case cmdIssuesOnMe:
		b.showIssuesOnMe(ctx, in.ChatID)
	case cmdStop:
		b.stopProcessing(ctx, in.ChatID)
	case cmdUpdates:
		b.showUpdates(ctx, in.ChatID)
	case cmdReport:
		b.showDailyReport(ctx, in.ChatID)
	default:
		b.reply(ctx, in.ChatID, "Unknown command. Use /start for help.")
	}
}

// handleStart shows the menu and, when processing had been stopped, resumes
// it: the flag is set back to true and the poller loop is explicitly
// restarted, since the flag alone never resumes a stopped loop.
func (b *Bot) handleStart(ctx context.Context, in notify.Inbound) {
	if in.ChatID != b.authorizedID {
		slog.Warn("unauthorized access attempt", "chat_id", in.ChatID)
		b.reply(ctx, in.ChatID, "Access denied.")
		return
	}
	if err := b.notifier.SendMenu(ctx, in.ChatID, helpText); err != nil {
		slog.Error("send menu failed", "err", err)
	}
	if !b.engine.State().Processing() {
		b.engine.State().SetProcessing(true)
		b.engine.ResumePoller()
		slog.Info("processing resumed from /start", "chat_id", in.ChatID)
	}
}

func (b *Bot) stopProcessing(ctx context.Context, chatID int64) {
	b.engine.State().SetProcessing(false)
	if err := b.notifier.SendRemoveMenu(ctx, chatID, "Bot stopped. Send /start to resume.", false); err != nil {
		slog.Error("send stop reply failed", "err", err)
	}
	slog.Info("processing stopped from chat", "chat_id", chatID)
}

func (b *Bot) showIssuesOnMe(ctx context.Context, chatID int64) {
	tickets, err := b.engine.IssuesOnMe(ctx)
	if err != nil {
		slog.Error("issues-on-me query failed", "err", err)
		b.reply(ctx, chatID, "Error: "+err.Error())
		return
	}
	if len(tickets) == 0 {
		b.reply(ctx, chatID, "No issues assigned to you.")
		return
	}
	if err := b.notifier.SendLinkList(ctx, chatID, "Your assigned issues:", b.links(tickets)); err != nil {
		slog.Error("send issues-on-me list failed", "err", err)
	}
}

func (b *Bot) showUpdates(ctx context.Context, chatID int64) {
	tickets, err := b.engine.RecentUpdates(ctx)
	if err != nil {
		slog.Error("updates query failed", "err", err)
		b.reply(ctx, chatID, "Error: "+err.Error())
		return
	}
	if len(tickets) == 0 {
		b.reply(ctx, chatID, "No recent updates.")
		return
	}
	if err := b.notifier.SendLinkList(ctx, chatID, "Recent updates:", b.links(tickets)); err != nil {
		slog.Error("send updates list failed", "err", err)
	}
}

// showDailyReport computes the aggregate over the same two queries the
// engine already issues and replies synchronously.
func (b *Bot) showDailyReport(ctx context.Context, chatID int64) {
	newTickets, err := b.engine.NewOnDesk(ctx)
	if err != nil {
		slog.Error("daily report: new tickets query failed", "err", err)
		b.reply(ctx, chatID, "Error generating report: "+err.Error())
		return
	}
	updates, err := b.engine.RecentUpdates(ctx)
	if err != nil {
		slog.Error("daily report: updates query failed", "err", err)
		b.reply(ctx, chatID, "Error generating report: "+err.Error())
		return
	}
	metrics := report.BuildMetrics(newTickets, updates)
	b.reply(ctx, chatID, report.FormatMessage(metrics))
	slog.Info("sent daily report", "chat_id", chatID, "total", metrics.Total)
}

func (b *Bot) links(tickets []tracker.Ticket) []notify.Link {
	out := make([]notify.Link, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, notify.Link{
			Label: fmt.Sprintf("%s: %s", t.Key, t.Summary),
			URL:   b.engine.BrowseURL(t.Key),
		})
	}
	return out
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if err := b.notifier.SendMessage(ctx, chatID, text, false); err != nil {
		slog.Error("send reply failed", "chat_id", chatID, "err", err)
	}
}
