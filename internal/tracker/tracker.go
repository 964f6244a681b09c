// Package tracker defines the typed ticket model and the narrow client
// surface the engine needs from the issue tracker. The Jira implementation
// lives in tracker/jiraclient; the engine only sees this interface.
package tracker

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Ticket is a work record fetched from the tracker. It is populated once at
// the tracker boundary; the engine treats it as read-only.
type Ticket struct {
	Key      string
	Summary  string
	Creator  string
	Status   string
	Assignee string
	Priority string
	Comments []string
	Created  time.Time
	Updated  time.Time
}

// Validate reports whether the ticket carries the fields the engine relies
// on. A ticket failing validation is a per-ticket processing error, not a
// crash.
func (t Ticket) Validate() error {
	if t.Key == "" {
		return fmt.Errorf("ticket missing key")
	}
	if t.Creator == "" {
		return fmt.Errorf("ticket %s missing creator", t.Key)
	}
	return nil
}

// CommentText returns all comment bodies joined, used for keyword matching.
func (t Ticket) CommentText() string {
	return strings.Join(t.Comments, "")
}

// Client is the capability surface the engine requires from the tracker.
type Client interface {
	// Search runs a JQL query and returns matching tickets.
	Search(ctx context.Context, jql string) ([]Ticket, error)
	// Transition advances the workflow state of a ticket.
	Transition(ctx context.Context, key, transitionID string) error
	// Assign sets the ticket owner.
	Assign(ctx context.Context, key, username string) error
}

// Queries holds the JQL strings the engine issues. Zero values fall back to
// the defaults below via WithDefaults.
type Queries struct {
	NewTickets    string `yaml:"new_issues_jql"`
	MyTickets     string `yaml:"my_issues_jql"`
	Updates       string `yaml:"updates_jql"`
	RecentUpdates string `yaml:"recent_updates_jql"`
}

// Defaults from the production queue this service was built for.
const (
	DefaultNewTicketsJQL = `project = SD911 AND status = "Ожидает обработки" AND assignee in (EMPTY) AND "Группа исполнителей" = TS_TMB_team`
	DefaultMyTicketsJQL  = `status in ("Ожидает обработки", "Повторно открыта", "Ожидает разработки", Уточнено, "В работе", Согласовано) AND assignee in (currentUser())`
	DefaultUpdatesJQL    = `updatedDate >= -6m AND key in watchedIssues() AND status not in (Обработано, Закрыто, Отменено)`
	DefaultRecentJQL     = `updatedDate >= -4d AND key in watchedIssues() AND status not in (Обработано, Закрыто, Отменено)`
)

// WithDefaults fills empty query slots with the built-in JQL.
func (q Queries) WithDefaults() Queries {
	if q.NewTickets == "" {
		q.NewTickets = DefaultNewTicketsJQL
	}
	if q.MyTickets == "" {
		q.MyTickets = DefaultMyTicketsJQL
	}
	if q.Updates == "" {
		q.Updates = DefaultUpdatesJQL
	}
	if q.RecentUpdates == "" {
		q.RecentUpdates = DefaultRecentJQL
	}
	return q
}

// BrowseURL returns the web link for a ticket key.
func BrowseURL(server, key string) string {
	return strings.TrimRight(server, "/") + "/browse/" + key
}
