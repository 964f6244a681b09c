// Package report aggregates ticket metrics for the Daily Report command and
// exports ticket lists to CSV and Markdown files.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/apeks827/JiraTasksUpdate/internal/tracker"
)

// Metrics is the aggregate over one new-ticket snapshot and one updates
// snapshot.
type Metrics struct {
	Timestamp         time.Time
	NewCount          int
	UpdatedCount      int
	Total             int
	StatusBreakdown   map[string]int
	CreatorBreakdown  map[string]int
	PriorityBreakdown map[string]int
}

// CreatorCount is one entry of the top-creators ranking.
type CreatorCount struct {
	Creator string
	Count   int
}

// BuildMetrics computes counts by status (over both sets) and by creator and
// priority (over the new set).
func BuildMetrics(newTickets, updates []tracker.Ticket) Metrics {
	m := Metrics{
		Timestamp:         time.Now(),
		NewCount:          len(newTickets),
		UpdatedCount:      len(updates),
		Total:             len(newTickets) + len(updates),
		StatusBreakdown:   make(map[string]int),
		CreatorBreakdown:  make(map[string]int),
		PriorityBreakdown: make(map[string]int),
	}
	for _, t := range newTickets {
		m.StatusBreakdown[orUnknown(t.Status)]++
		m.CreatorBreakdown[orUnknown(t.Creator)]++
		m.PriorityBreakdown[orUnknown(t.Priority)]++
	}
	for _, t := range updates {
		m.StatusBreakdown[orUnknown(t.Status)]++
	}
	return m
}

// TopCreators returns up to n creators ordered by descending count, ties
// broken by name for determinism.
func (m Metrics) TopCreators(n int) []CreatorCount {
	out := make([]CreatorCount, 0, len(m.CreatorBreakdown))
	for c, k := range m.CreatorBreakdown {
		out = append(out, CreatorCount{Creator: c, Count: k})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Creator < out[j].Creator
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// FormatMessage renders the metrics as the Daily Report chat message.
func FormatMessage(m Metrics) string {
	var b strings.Builder
	b.WriteString("Daily Jira Metrics\n\n")
	fmt.Fprintf(&b, "New Issues: %d\n", m.NewCount)
	fmt.Fprintf(&b, "Updated Issues: %d\n", m.UpdatedCount)
	fmt.Fprintf(&b, "Total: %d\n", m.Total)
	if len(m.StatusBreakdown) > 0 {
		b.WriteString("\nStatus Breakdown:\n")
		for _, s := range sortedKeys(m.StatusBreakdown) {
			fmt.Fprintf(&b, "  %s: %d\n", s, m.StatusBreakdown[s])
		}
	}
	if top := m.TopCreators(5); len(top) > 0 {
		b.WriteString("\nTop Creators:\n")
		for _, cc := range top {
			fmt.Fprintf(&b, "  %s: %d\n", cc.Creator, cc.Count)
		}
	}
	return b.String()
}

// Reporter writes export files into Dir, creating it as needed.
type Reporter struct {
	Dir string
}

// ExportCSV writes tickets to a CSV file and returns its path.
func (r Reporter) ExportCSV(tickets []tracker.Ticket, filename string) (string, error) {
	path, err := r.prepare(filename)
	if err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Key", "Summary", "Status", "Creator", "Assignee", "Priority", "Created", "Updated"}); err != nil {
		return "", err
	}
	for _, t := range tickets {
		rec := []string{
			t.Key, t.Summary, t.Status, t.Creator,
			orUnassigned(t.Assignee), t.Priority,
			formatTime(t.Created), formatTime(t.Updated),
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// ExportMarkdown writes tickets as a Markdown table and returns the path.
func (r Reporter) ExportMarkdown(tickets []tracker.Ticket, filename string) (string, error) {
	path, err := r.prepare(filename)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("# Jira Issues Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", time.Now().Format(time.RFC3339))
	if len(tickets) == 0 {
		b.WriteString("No issues found.\n")
	} else {
		fmt.Fprintf(&b, "## Summary\n\nTotal issues: %d\n\n", len(tickets))
		b.WriteString("## Issues\n\n")
		b.WriteString("| Key | Summary | Status | Creator | Assignee | Priority |\n")
		b.WriteString("|-----|---------|--------|---------|----------|----------|\n")
		for _, t := range tickets {
			summary := strings.ReplaceAll(t.Summary, "|", `\|`)
			if len([]rune(summary)) > 50 {
				summary = string([]rune(summary)[:50])
			}
			fmt.Fprintf(&b, "| `%s` | %s | %s | %s | %s | %s |\n",
				t.Key, summary, t.Status, t.Creator, orUnassigned(t.Assignee), orDash(t.Priority))
		}
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

func (r Reporter) prepare(filename string) (string, error) {
	dir := r.Dir
	if dir == "" {
		dir = "reports"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}
	return filepath.Join(dir, filename), nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func orUnassigned(s string) string {
	if s == "" {
		return "Unassigned"
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
