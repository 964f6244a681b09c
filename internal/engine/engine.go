// Package engine implements the polling-and-assignment core: the new-ticket
// poller, the update watcher, the time gate, and the shared run state. The
// external collaborators (tracker, notifier) are injected as interfaces.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/apeks827/JiraTasksUpdate/internal/config"
	"github.com/apeks827/JiraTasksUpdate/internal/dedup"
	"github.com/apeks827/JiraTasksUpdate/internal/notify"
	"github.com/apeks827/JiraTasksUpdate/internal/rotation"
	"github.com/apeks827/JiraTasksUpdate/internal/rules"
	"github.com/apeks827/JiraTasksUpdate/internal/tracker"
)

// Options configures an Engine.
type Options struct {
	Tracker  tracker.Client
	Notifier notify.Notifier // nil disables notifications (logged instead)
	Config   *config.Config
	DryRun   bool
	// PollInterval overrides polling.new_issues_interval when positive.
	PollInterval time.Duration
	// Clock overrides the wall clock, for tests.
	Clock func() time.Time
}

// Engine is the polling-and-assignment core. Construct with New; all state
// lives in memory for the lifetime of the run.
type Engine struct {
	tracker  tracker.Client
	notifier notify.Notifier
	rules    rules.Rules
	cache    *dedup.Cache
	rotation *rotation.Rotation
	state    *State

	queries       tracker.Queries
	server        string
	transitionID  string
	mainChatID    int64
	contactDomain string

	sleepHours  map[int]bool
	wakeHour    int
	settleDelay time.Duration

	pollInterval      time.Duration
	updatesInterval   time.Duration
	timeCheckInterval time.Duration

	dryRun bool
	now    func() time.Time

	pollerSup  *supervisor
	watcherSup *supervisor
}

// New builds an Engine from options. An empty rotation is a configuration
// error and fails here, before any loop starts.
func New(opts Options) (*Engine, error) {
	if opts.Tracker == nil {
		return nil, errors.New("engine: tracker client is required")
	}
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("engine: config is required")
	}

	pool := make([]rotation.Assignee, 0, len(cfg.Assignee.Rotation))
	for _, r := range cfg.Assignee.Rotation {
		pool = append(pool, rotation.Assignee{Username: r.Username, ChatID: r.NotifyChatID})
	}
	rot, err := rotation.New(pool)
	if err != nil {
		return nil, err
	}

	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	pollInterval := cfg.Polling.NewIssuesInterval()
	if opts.PollInterval > 0 {
		pollInterval = opts.PollInterval
	}

	e := &Engine{
		tracker:  opts.Tracker,
		notifier: opts.Notifier,
		rules: rules.New(
			cfg.SkipRules.IssueKeys,
			cfg.SkipRules.CommentKeywords,
			cfg.SkipRules.NameKeywords,
			cfg.SkipRules.CreatorList,
		),
		cache:    dedup.NewWithClock(now),
		rotation: rot,
		state:    NewState(),

		queries:       cfg.Jira.Search.WithDefaults(),
		server:        cfg.Jira.Server,
		transitionID:  cfg.Assignee.TransitionID,
		mainChatID:    cfg.Telegram.Users.MainID,
		contactDomain: cfg.Telegram.ContactDomain,

		sleepHours:  cfg.SleepHourSet(),
		wakeHour:    cfg.TimeControl.WakeUpHour,
		settleDelay: cfg.TimeControl.SettleDelay(),

		pollInterval:      pollInterval,
		updatesInterval:   cfg.Polling.UpdatesInterval(),
		timeCheckInterval: cfg.Polling.TimeCheckInterval(),

		dryRun: opts.DryRun,
		now:    now,
	}
	e.pollerSup = newSupervisor("new_tickets", cfg.Polling.RestartDelay(), cfg.Polling.MaxCallCount, e.pollNewTickets)
	e.watcherSup = newSupervisor("updates", cfg.Polling.UpdatesRestartDelay(), cfg.Polling.MaxCallCount, e.watchUpdates)
	return e, nil
}

// State exposes the shared run flags.
func (e *Engine) State() *State {
	return e.state
}

// RunPoller runs the supervised new-ticket poller until ctx is cancelled.
func (e *Engine) RunPoller(ctx context.Context) {
	e.pollerSup.Run(ctx)
}

// RunWatcher runs the supervised update watcher until ctx is cancelled.
func (e *Engine) RunWatcher(ctx context.Context) {
	e.watcherSup.Run(ctx)
}

// ResumePoller explicitly restarts a poller that stopped on its flags.
// Required after SetProcessing(true) or a time-gate wake: the flag alone
// never resumes the loop.
func (e *Engine) ResumePoller() {
	e.pollerSup.Resume()
}

// ResumeWatcher explicitly restarts a stopped update watcher.
func (e *Engine) ResumeWatcher() {
	e.watcherSup.Resume()
}

// Stop sets both run flags to false. Loops observe this at their next flag
// check; in-flight tracker calls are not interrupted.
func (e *Engine) Stop() {
	e.state.SetProcessing(false)
	e.state.SetTimeGate(false)
}

// ProcessOnce runs one batch of the poller and one of the watcher, for cron
// mode. The first error from either batch is reported.
func (e *Engine) ProcessOnce(ctx context.Context) error {
	var errs []error
	if err := e.processNewBatch(ctx); err != nil {
		slog.Error("once: new-ticket batch failed", "err", err)
		errs = append(errs, err)
	}
	if err := e.processUpdatesBatch(ctx); err != nil {
		slog.Error("once: updates batch failed", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// IssuesOnMe returns tickets currently assigned to the acting Jira user.
func (e *Engine) IssuesOnMe(ctx context.Context) ([]tracker.Ticket, error) {
	return e.tracker.Search(ctx, e.queries.MyTickets)
}

// RecentUpdates returns the report-window updates among watched tickets.
func (e *Engine) RecentUpdates(ctx context.Context) ([]tracker.Ticket, error) {
	return e.tracker.Search(ctx, e.queries.RecentUpdates)
}

// NewOnDesk returns the unassigned tickets currently waiting in the queue.
func (e *Engine) NewOnDesk(ctx context.Context) ([]tracker.Ticket, error) {
	return e.tracker.Search(ctx, e.queries.NewTickets)
}

// BrowseURL returns the tracker web link for a ticket key.
func (e *Engine) BrowseURL(key string) string {
	return tracker.BrowseURL(e.server, key)
}

func (e *Engine) contactURL(username string) string {
	domain := e.contactDomain
	if domain == "" {
		domain = "ozon.ru"
	}
	return "https://teams.microsoft.com/l/chat/0/0?users=" + username + "@" + domain
}

func hlink(label, url string) string {
	return fmt.Sprintf(`<a href=%q>%s</a>`, url, label)
}
