// Package config loads and validates the YAML configuration file.
// Secrets (Jira and Telegram tokens) are never stored in the file; the file
// names the environment variables that hold them.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/apeks827/JiraTasksUpdate/internal/tracker"
)

// Config is the full configuration tree.
type Config struct {
	Jira        Jira        `yaml:"jira"`
	Telegram    Telegram    `yaml:"telegram"`
	SkipRules   SkipRules   `yaml:"skip_rules"`
	Assignee    Assignee    `yaml:"assignee"`
	TimeControl TimeControl `yaml:"time_control"`
	Polling     Polling     `yaml:"polling"`
	Features    Features    `yaml:"features"`
	Logging     Logging     `yaml:"logging"`
	Metrics     Metrics     `yaml:"metrics"`
	Reports     Reports     `yaml:"reports"`
}

// Jira holds tracker connection settings and query overrides.
type Jira struct {
	Server      string          `yaml:"server"`
	TokenEnvVar string          `yaml:"token_env_var"`
	MaxResults  int             `yaml:"max_results"`
	Search      tracker.Queries `yaml:"search"`
}

// Telegram holds bot settings and the authorized user.
type Telegram struct {
	TokenEnvVar string `yaml:"token_env_var"`
	Users       Users  `yaml:"users"`
	// ContactDomain builds the creator contact link in notifications
	// (<user>@<domain> in a Teams chat URL).
	ContactDomain string `yaml:"contact_domain"`
}

// Users holds the chat ids the service talks to. MainID is the single
// authorized command-surface identity and the update-notification target.
type Users struct {
	MainID      int64 `yaml:"main_id"`
	SecondaryID int64 `yaml:"secondary_id"`
}

// SkipRules holds the four static filter collections.
type SkipRules struct {
	IssueKeys       []string `yaml:"issue_keys"`
	CommentKeywords []string `yaml:"comment_keywords"`
	NameKeywords    []string `yaml:"name_keywords"`
	CreatorList     []string `yaml:"creator_list"`
}

// RotationEntry pairs a Jira username with the Telegram chat to notify on
// assignment.
type RotationEntry struct {
	Username     string `yaml:"username"`
	NotifyChatID int64  `yaml:"notify_chat_id"`
}

// Assignee holds the rotation pool and the workflow transition applied on
// assignment.
type Assignee struct {
	TransitionID string          `yaml:"transition_id"`
	Rotation     []RotationEntry `yaml:"rotation"`
}

// TimeControl holds the day/night gating schedule.
type TimeControl struct {
	SleepHours    []int `yaml:"sleep_hours"`
	WakeUpHour    int   `yaml:"wake_up_hour"`
	SettleSeconds int   `yaml:"settle_seconds"`
}

// Polling holds loop intervals and restart backoffs, in seconds as in the
// config file.
type Polling struct {
	NewIssuesIntervalSec   int `yaml:"new_issues_interval"`
	UpdatesIntervalSec     int `yaml:"updates_interval"`
	TimeCheckIntervalSec   int `yaml:"time_check_interval"`
	RestartDelaySec        int `yaml:"restart_delay"`
	UpdatesRestartDelaySec int `yaml:"updates_restart_delay"`
	MaxCallCount           int `yaml:"max_call_count"`
}

// Features toggles the four workers independently.
type Features struct {
	MainLoop       *bool `yaml:"main_loop"`
	UpdatesWatcher *bool `yaml:"updates_watcher"`
	TelegramBot    *bool `yaml:"telegram_bot"`
	TimeControl    *bool `yaml:"time_control"`
}

// Logging holds slog settings.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Metrics holds the optional Prometheus endpoint settings.
type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Reports holds the export directory for the report subcommand.
type Reports struct {
	Dir string `yaml:"dir"`
}

// Load reads and validates a config file. A missing file or invalid content
// is fatal at startup.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Jira.TokenEnvVar == "" {
		c.Jira.TokenEnvVar = "JIRA_TOKEN"
	}
	if c.Jira.MaxResults <= 0 {
		c.Jira.MaxResults = 50
	}
	c.Jira.Search = c.Jira.Search.WithDefaults()
	if c.Telegram.TokenEnvVar == "" {
		c.Telegram.TokenEnvVar = "TG_TOKEN"
	}
	if c.Telegram.ContactDomain == "" {
		c.Telegram.ContactDomain = "ozon.ru"
	}
	if c.Assignee.TransitionID == "" {
		c.Assignee.TransitionID = "21"
	}
	if c.TimeControl.WakeUpHour == 0 {
		c.TimeControl.WakeUpHour = 11
	}
	if c.TimeControl.SettleSeconds <= 0 {
		c.TimeControl.SettleSeconds = 11
	}
	if c.Polling.NewIssuesIntervalSec <= 0 {
		c.Polling.NewIssuesIntervalSec = 10
	}
	if c.Polling.UpdatesIntervalSec <= 0 {
		c.Polling.UpdatesIntervalSec = 300
	}
	if c.Polling.TimeCheckIntervalSec <= 0 {
		c.Polling.TimeCheckIntervalSec = 300
	}
	if c.Polling.RestartDelaySec <= 0 {
		c.Polling.RestartDelaySec = 15
	}
	if c.Polling.UpdatesRestartDelaySec <= 0 {
		c.Polling.UpdatesRestartDelaySec = 30
	}
	if c.Polling.MaxCallCount <= 0 {
		c.Polling.MaxCallCount = 10
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Reports.Dir == "" {
		c.Reports.Dir = "reports"
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Jira.Server == "" {
		return fmt.Errorf("jira.server is required")
	}
	if len(c.Assignee.Rotation) == 0 {
		return fmt.Errorf("assignee.rotation must not be empty")
	}
	for i, r := range c.Assignee.Rotation {
		if r.Username == "" {
			return fmt.Errorf("assignee.rotation[%d]: username is required", i)
		}
		if r.NotifyChatID == 0 {
			return fmt.Errorf("assignee.rotation[%d]: notify_chat_id is required", i)
		}
	}
	if c.Telegram.Users.MainID == 0 {
		return fmt.Errorf("telegram.users.main_id is required")
	}
	for _, h := range c.TimeControl.SleepHours {
		if h < 0 || h > 23 {
			return fmt.Errorf("time_control.sleep_hours: hour %d out of range", h)
		}
	}
	if c.TimeControl.WakeUpHour < 0 || c.TimeControl.WakeUpHour > 23 {
		return fmt.Errorf("time_control.wake_up_hour out of range")
	}
	return nil
}

// JiraToken reads the Jira token from the configured environment variable.
func (c *Config) JiraToken() (string, error) {
	tok := os.Getenv(c.Jira.TokenEnvVar)
	if tok == "" {
		return "", fmt.Errorf("jira token not found in %s environment variable", c.Jira.TokenEnvVar)
	}
	return tok, nil
}

// TelegramToken reads the bot token from the configured environment variable.
func (c *Config) TelegramToken() (string, error) {
	tok := os.Getenv(c.Telegram.TokenEnvVar)
	if tok == "" {
		return "", fmt.Errorf("telegram token not found in %s environment variable", c.Telegram.TokenEnvVar)
	}
	return tok, nil
}

// SleepHourSet returns sleep hours as a set.
func (c *Config) SleepHourSet() map[int]bool {
	m := make(map[int]bool, len(c.TimeControl.SleepHours))
	for _, h := range c.TimeControl.SleepHours {
		m[h] = true
	}
	return m
}

// Enabled reports whether a feature toggle is on; unset toggles default on.
func enabled(v *bool) bool { return v == nil || *v }

// MainLoopEnabled reports whether the new-ticket poller runs.
func (f Features) MainLoopEnabled() bool { return enabled(f.MainLoop) }

// UpdatesWatcherEnabled reports whether the update watcher runs.
func (f Features) UpdatesWatcherEnabled() bool { return enabled(f.UpdatesWatcher) }

// TelegramBotEnabled reports whether the command surface runs.
func (f Features) TelegramBotEnabled() bool { return enabled(f.TelegramBot) }

// TimeControlEnabled reports whether the time gate runs.
func (f Features) TimeControlEnabled() bool { return enabled(f.TimeControl) }

// Duration accessors for the seconds-valued config fields.

func (p Polling) NewIssuesInterval() time.Duration {
	return time.Duration(p.NewIssuesIntervalSec) * time.Second
}

func (p Polling) UpdatesInterval() time.Duration {
	return time.Duration(p.UpdatesIntervalSec) * time.Second
}

func (p Polling) TimeCheckInterval() time.Duration {
	return time.Duration(p.TimeCheckIntervalSec) * time.Second
}

func (p Polling) RestartDelay() time.Duration {
	return time.Duration(p.RestartDelaySec) * time.Second
}

func (p Polling) UpdatesRestartDelay() time.Duration {
	return time.Duration(p.UpdatesRestartDelaySec) * time.Second
}

func (t TimeControl) SettleDelay() time.Duration {
	return time.Duration(t.SettleSeconds) * time.Second
}
