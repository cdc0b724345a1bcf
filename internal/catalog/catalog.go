// Package catalog describes the opportunity records the strategist matches
// users against. Jobs, contests and news share one shape and are told apart
// by their namespace.
package catalog

import (
	"fmt"
	"strings"
	"time"
)

// Namespace is a catalog partition queried independently from the similarity index.
type Namespace string

const (
	NamespaceJobs     Namespace = "job"
	NamespaceContests Namespace = "contest"
	NamespaceNews     Namespace = "news"
)

// Namespaces returns every catalog namespace in snapshot order.
func Namespaces() []Namespace {
	return []Namespace{NamespaceJobs, NamespaceContests, NamespaceNews}
}

// ParseNamespace accepts the canonical names plus the plural and legacy
// spellings used by catalog producers ("jobs", "hackathon", ...).
func ParseNamespace(s string) (Namespace, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "job", "jobs":
		return NamespaceJobs, nil
	case "contest", "contests", "hackathon", "hackathons":
		return NamespaceContests, nil
	case "news":
		return NamespaceNews, nil
	default:
		return "", fmt.Errorf("unknown catalog namespace %q", s)
	}
}

func (n Namespace) String() string { return string(n) }

// Item is a single catalog record.
type Item struct {
	ID          string    `json:"id"`
	Namespace   Namespace `json:"namespace"`
	Title       string    `json:"title"`
	Org         string    `json:"org,omitempty"`
	Link        string    `json:"link,omitempty"`
	Source      string    `json:"source,omitempty"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
	Skills      []string  `json:"skills,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// Text returns the descriptive text used as generator context.
func (i Item) Text() string {
	var b strings.Builder
	b.WriteString(i.Title)
	if i.Org != "" {
		b.WriteString(" at ")
		b.WriteString(i.Org)
	}
	if desc := strings.TrimSpace(i.Description); desc != "" {
		b.WriteString("\n\n")
		b.WriteString(desc)
	}
	if len(i.Skills) > 0 {
		b.WriteString("\n\nRequired skills: ")
		b.WriteString(strings.Join(i.Skills, ", "))
	}
	return b.String()
}

// Match is an item returned by the similarity index with its score.
type Match struct {
	Item  Item
	Score float64
}

// Tier is the readiness classification of a match.
type Tier string

const (
	TierReady   Tier = "ready"
	TierGap     Tier = "gap"
	TierDiscard Tier = "discard"
)

// MatchResult is a classified match. It only lives for one orchestration run.
type MatchResult struct {
	Match
	Tier Tier
}

// Retained reports whether the match survives classification.
func (m MatchResult) Retained() bool {
	return m.Tier == TierReady || m.Tier == TierGap
}
