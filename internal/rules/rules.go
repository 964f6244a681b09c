// Package rules implements the skip-rule pipeline for candidate tickets.
// Evaluation is pure: no side effects, deterministic for a given ticket.
package rules

import (
	"strings"

	"github.com/apeks827/JiraTasksUpdate/internal/tracker"
)

// Reason says which rule filtered a ticket.
type Reason string

const (
	ReasonNone    Reason = ""
	ReasonKey     Reason = "issue_key"
	ReasonComment Reason = "comment_keyword"
	ReasonTitle   Reason = "title_keyword"
	ReasonCreator Reason = "creator"
)

// Verdict is the outcome of evaluating a ticket against the rule set.
type Verdict struct {
	Skip   bool
	Reason Reason
	// Match is the keyword or identity that triggered the skip.
	Match string
}

// Rules is the static skip-rule set loaded at startup.
type Rules struct {
	IssueKeys       map[string]bool
	CommentKeywords []string // case-sensitive substring match on joined comments
	TitleKeywords   []string // matched against the lower-cased summary
	Creators        map[string]bool
}

// New builds a rule set from config slices.
func New(issueKeys, commentKeywords, titleKeywords, creators []string) Rules {
	return Rules{
		IssueKeys:       toSet(issueKeys),
		CommentKeywords: commentKeywords,
		TitleKeywords:   titleKeywords,
		Creators:        toSet(creators),
	}
}

// Evaluate returns the skip verdict for a ticket. Check order only affects
// which reason is reported, never whether the ticket is skipped.
func (r Rules) Evaluate(t tracker.Ticket) Verdict {
	if r.IssueKeys[t.Key] {
		return Verdict{Skip: true, Reason: ReasonKey, Match: t.Key}
	}
	comments := t.CommentText()
	for _, kw := range r.CommentKeywords {
		if kw != "" && strings.Contains(comments, kw) {
			return Verdict{Skip: true, Reason: ReasonComment, Match: kw}
		}
	}
	title := strings.ToLower(t.Summary)
	for _, kw := range r.TitleKeywords {
		if kw != "" && strings.Contains(title, kw) {
			return Verdict{Skip: true, Reason: ReasonTitle, Match: kw}
		}
	}
	if r.Creators[t.Creator] {
		return Verdict{Skip: true, Reason: ReasonCreator, Match: t.Creator}
	}
	return Verdict{}
}

func toSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		if it != "" {
			m[it] = true
		}
	}
	return m
}
