package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
jira:
  server: https://jira.example.com
telegram:
  users:
    main_id: 42
assignee:
  rotation:
    - username: alice
      notify_chat_id: 100
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_appliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Jira.TokenEnvVar != "JIRA_TOKEN" || cfg.Telegram.TokenEnvVar != "TG_TOKEN" {
		t.Errorf("token env defaults: jira=%q tg=%q", cfg.Jira.TokenEnvVar, cfg.Telegram.TokenEnvVar)
	}
	if cfg.Assignee.TransitionID != "21" {
		t.Errorf("transition default: got %q, want 21", cfg.Assignee.TransitionID)
	}
	if cfg.TimeControl.WakeUpHour != 11 || cfg.TimeControl.SettleDelay() != 11*time.Second {
		t.Errorf("time control defaults: wake=%d settle=%s", cfg.TimeControl.WakeUpHour, cfg.TimeControl.SettleDelay())
	}
	if cfg.Polling.NewIssuesInterval() != 10*time.Second {
		t.Errorf("poll interval default: got %s", cfg.Polling.NewIssuesInterval())
	}
	if cfg.Jira.Search.NewTickets == "" {
		t.Error("default JQL should be filled in")
	}
	if cfg.Telegram.ContactDomain != "ozon.ru" {
		t.Errorf("contact domain default: got %q", cfg.Telegram.ContactDomain)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load on missing file: expected error")
	}
}

func TestLoad_invalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "jira: [unclosed")); err == nil {
		t.Fatal("Load on invalid yaml: expected error")
	}
}

func TestValidate_rejections(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing server",
			body: strings.Replace(minimalYAML, "server: https://jira.example.com", "server: \"\"", 1),
			want: "jira.server",
		},
		{
			name: "empty rotation",
			body: `
jira:
  server: https://jira.example.com
telegram:
  users:
    main_id: 42
assignee:
  rotation: []
`,
			want: "rotation",
		},
		{
			name: "rotation entry without chat id",
			body: `
jira:
  server: https://jira.example.com
telegram:
  users:
    main_id: 42
assignee:
  rotation:
    - username: alice
`,
			want: "notify_chat_id",
		},
		{
			name: "missing main id",
			body: `
jira:
  server: https://jira.example.com
assignee:
  rotation:
    - username: alice
      notify_chat_id: 100
`,
			want: "main_id",
		},
		{
			name: "sleep hour out of range",
			body: minimalYAML + `
time_control:
  sleep_hours: [23, 24]
`,
			want: "sleep_hours",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if err == nil {
				t.Fatal("Load: expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q should mention %q", err, tc.want)
			}
		})
	}
}

func TestTokens_fromEnvironment(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	t.Setenv("JIRA_TOKEN", "")
	if _, err := cfg.JiraToken(); err == nil {
		t.Error("JiraToken with unset env: expected error")
	}
	t.Setenv("JIRA_TOKEN", "secret")
	tok, err := cfg.JiraToken()
	if err != nil || tok != "secret" {
		t.Errorf("JiraToken: got (%q, %v)", tok, err)
	}

	t.Setenv("TG_TOKEN", "bot-secret")
	tok, err = cfg.TelegramToken()
	if err != nil || tok != "bot-secret" {
		t.Errorf("TelegramToken: got (%q, %v)", tok, err)
	}
}

func TestFeatures_defaultOn(t *testing.T) {
	var f Features
	if !f.MainLoopEnabled() || !f.UpdatesWatcherEnabled() || !f.TelegramBotEnabled() || !f.TimeControlEnabled() {
		t.Error("unset feature toggles should default to enabled")
	}
	off := false
	f.TimeControl = &off
	if f.TimeControlEnabled() {
		t.Error("explicit false should disable the feature")
	}
}

func TestSleepHourSet(t *testing.T) {
	cfg := Config{TimeControl: TimeControl{SleepHours: []int{23, 0, 1}}}
	set := cfg.SleepHourSet()
	if !set[23] || !set[0] || !set[1] || set[11] {
		t.Errorf("SleepHourSet: got %v", set)
	}
}
