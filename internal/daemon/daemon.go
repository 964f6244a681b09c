// Package daemon wires the clients and starts the worker loops: new-ticket
// poller, update watcher, time gate, and the Telegram command surface, each
// on its own goroutine. Shutdown is cooperative: cancelling the context
// flips the run flags and waits for loops to observe them.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/apeks827/JiraTasksUpdate/internal/bot"
	"github.com/apeks827/JiraTasksUpdate/internal/config"
	"github.com/apeks827/JiraTasksUpdate/internal/engine"
	"github.com/apeks827/JiraTasksUpdate/internal/notify"
	"github.com/apeks827/JiraTasksUpdate/internal/notify/telegram"
	"github.com/apeks827/JiraTasksUpdate/internal/otel"
	"github.com/apeks827/JiraTasksUpdate/internal/tracker"
	"github.com/apeks827/JiraTasksUpdate/internal/tracker/jiraclient"
)

// StartForeground builds the clients and runs all enabled workers until ctx
// is cancelled. Credential and configuration failures are fatal here,
// before any loop starts.
func StartForeground(ctx context.Context, opts Options) error {
	eng, tg, err := build(opts)
	if err != nil {
		return err
	}

	startPprof(opts.PprofAddr)

	var metricsSrv *http.Server
	if opts.Config.Metrics.Enabled {
		metricsSrv = startMetrics(ctx, opts.Config.Metrics.Addr)
		if metricsSrv != nil {
			if err := otel.InitMetrics(ctx); err != nil {
				slog.Warn("metrics instruments init failed, continuing without", "err", err)
			}
		}
	}

	features := opts.Config.Features
	var wg sync.WaitGroup
	runWorker := func(name string, fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			slog.Info("worker started", "worker", name)
			fn(ctx)
			slog.Info("worker exited", "worker", name)
		}()
	}

	if features.MainLoopEnabled() {
		runWorker("new_tickets", eng.RunPoller)
	} else {
		slog.Info("new-ticket poller disabled in config")
	}
	if features.UpdatesWatcherEnabled() {
		runWorker("updates", eng.RunWatcher)
	} else {
		slog.Info("update watcher disabled in config")
	}
	if features.TimeControlEnabled() && !opts.NoTimeGate {
		runWorker("time_gate", eng.RunTimeGate)
	} else {
		slog.Info("time gate disabled")
	}
	if tg != nil && features.TelegramBotEnabled() {
		surface := bot.New(eng, tg, opts.Config.Telegram.Users.MainID)
		updates := tg.Updates(ctx)
		runWorker("command_surface", func(ctx context.Context) {
			surface.Run(ctx, updates)
		})
	} else {
		slog.Info("telegram command surface disabled")
	}

	slog.Info("daemon running", "dry_run", opts.DryRun)
	<-ctx.Done()

	// Cooperative shutdown: flags first, then wait out the loops. May take
	// up to one sleep interval plus one in-flight external call.
	slog.Info("shutting down")
	eng.Stop()
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	wg.Wait()
	return ctx.Err()
}

// RunOnce processes a single batch of new tickets and updates, then
// returns. A failure during the batch yields a non-nil error (non-zero
// process exit).
func RunOnce(ctx context.Context, opts Options) error {
	eng, _, err := build(opts)
	if err != nil {
		return err
	}
	slog.Info("processing once", "dry_run", opts.DryRun)
	return eng.ProcessOnce(ctx)
}

// build constructs the tracker client, the Telegram bot (unless disabled),
// and the engine.
func build(opts Options) (*engine.Engine, *telegram.Bot, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, nil, errors.New("daemon: config is required")
	}

	tc, err := buildTracker(cfg)
	if err != nil {
		return nil, nil, err
	}

	var tg *telegram.Bot
	var notifier notify.Notifier
	if opts.NoTelegram {
		slog.Info("telegram disabled, notifications will be logged only")
	} else {
		token, err := cfg.TelegramToken()
		if err != nil {
			return nil, nil, err
		}
		tg, err = telegram.New(token)
		if err != nil {
			return nil, nil, err
		}
		notifier = tg
		slog.Info("telegram bot initialized")
	}

	eng, err := engine.New(engine.Options{
		Tracker:      tc,
		Notifier:     notifier,
		Config:       cfg,
		DryRun:       opts.DryRun,
		PollInterval: opts.PollInterval,
	})
	if err != nil {
		return nil, nil, err
	}
	return eng, tg, nil
}

func buildTracker(cfg *config.Config) (tracker.Client, error) {
	token, err := cfg.JiraToken()
	if err != nil {
		return nil, err
	}
	tc, err := jiraclient.New(jiraclient.Options{
		Server:     cfg.Jira.Server,
		Token:      token,
		MaxResults: cfg.Jira.MaxResults,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("jira client initialized", "server", cfg.Jira.Server)
	return tc, nil
}

// startMetrics serves /metrics on addr. Failure to init or serve is logged,
// never fatal.
func startMetrics(ctx context.Context, addr string) *http.Server {
	if addr == "" {
		addr = ":9090"
	}
	handler, err := otel.InitMeterProvider(ctx, "jiratasksupdate")
	if err != nil {
		slog.Warn("metrics provider init failed, metrics disabled", "err", err)
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		slog.Info("metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("metrics server stopped", "err", err)
		}
	}()
	return srv
}
