package daemon

import (
	"time"

	"github.com/apeks827/JiraTasksUpdate/internal/config"
)

// Options configures a daemon run. Config is required; the remaining fields
// are CLI overrides on top of it.
type Options struct {
	Config *config.Config
	// DryRun suppresses tracker mutations and notifications, logging the
	// would-be actions instead.
	DryRun bool
	// NoTelegram disables the notifier and the command surface.
	NoTelegram bool
	// NoTimeGate disables the day/night gate (run around the clock).
	NoTimeGate bool
	// PollInterval overrides polling.new_issues_interval when positive.
	PollInterval time.Duration
	// PprofAddr enables the pprof server when non-empty.
	PprofAddr string
}
