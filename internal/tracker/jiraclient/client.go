// Package jiraclient adapts go-jira to the tracker.Client interface.
package jiraclient

import (
	"context"
	"fmt"
	"time"

	jira "github.com/andygrunwald/go-jira"

	"github.com/apeks827/JiraTasksUpdate/internal/tracker"
)

// Client wraps a go-jira client behind tracker.Client.
type Client struct {
	jc         *jira.Client
	maxResults int
}

var _ tracker.Client = (*Client)(nil)

// Options configures the Jira connection.
type Options struct {
	Server     string
	Token      string // bearer token (PAT)
	MaxResults int
}

// New builds a Jira client with bearer auth. Fails fast on a missing server
// or token; credential problems surface on the first call.
func New(opts Options) (*Client, error) {
	if opts.Server == "" {
		return nil, fmt.Errorf("jira server URL is required")
	}
	if opts.Token == "" {
		return nil, fmt.Errorf("jira token is required")
	}
	tp := jira.BearerAuthTransport{Token: opts.Token}
	jc, err := jira.NewClient(tp.Client(), opts.Server)
	if err != nil {
		return nil, fmt.Errorf("create jira client: %w", err)
	}
	max := opts.MaxResults
	if max <= 0 {
		max = 50
	}
	return &Client{jc: jc, maxResults: max}, nil
}

// Search runs a JQL query and converts results to typed tickets.
// Conversion never panics on nil field groups; validation of required
// fields is left to the caller.
func (c *Client) Search(ctx context.Context, jql string) ([]tracker.Ticket, error) {
	issues, _, err := c.jc.Issue.SearchWithContext(ctx, jql, &jira.SearchOptions{
		MaxResults: c.maxResults,
		Fields:     []string{"summary", "creator", "status", "assignee", "priority", "comment", "created", "updated"},
	})
	if err != nil {
		return nil, fmt.Errorf("jira search: %w", err)
	}
	out := make([]tracker.Ticket, 0, len(issues))
	for i := range issues {
		out = append(out, convert(&issues[i]))
	}
	return out, nil
}

// Transition advances the issue's workflow state.
func (c *Client) Transition(ctx context.Context, key, transitionID string) error {
	if _, err := c.jc.Issue.DoTransitionWithContext(ctx, key, transitionID); err != nil {
		return fmt.Errorf("jira transition %s -> %s: %w", key, transitionID, err)
	}
	return nil
}

// Assign sets the issue owner.
func (c *Client) Assign(ctx context.Context, key, username string) error {
	if _, err := c.jc.Issue.UpdateAssigneeWithContext(ctx, key, &jira.User{Name: username}); err != nil {
		return fmt.Errorf("jira assign %s -> %s: %w", key, username, err)
	}
	return nil
}

func convert(is *jira.Issue) tracker.Ticket {
	t := tracker.Ticket{Key: is.Key}
	f := is.Fields
	if f == nil {
		return t
	}
	t.Summary = f.Summary
	if f.Creator != nil {
		t.Creator = f.Creator.Name
	}
	if f.Status != nil {
		t.Status = f.Status.Name
	}
	if f.Assignee != nil {
		t.Assignee = f.Assignee.Name
	}
	if f.Priority != nil {
		t.Priority = f.Priority.Name
	}
	if f.Comments != nil {
		for _, cm := range f.Comments.Comments {
			if cm != nil {
				t.Comments = append(t.Comments, cm.Body)
			}
		}
	}
	t.Created = time.Time(f.Created)
	t.Updated = time.Time(f.Updated)
	return t
}
