// Package domain defines the records and ports of the discovery pipeline
package domain

import "time"

// Issue is the normalized record passed through the pipeline.
// URL is the canonical identity: two records with equal URL are the same issue
type Issue struct {
	ForgeID   string     `json:"forge_id"`
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	URL       string     `json:"url"`
	State     string     `json:"state"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	Labels    []string   `json:"labels"`

	RepoOwner           string     `json:"repo_owner"`
	RepoName            string     `json:"repo_name"`
	RepoURL             string     `json:"repo_url"`
	RepoStars           int        `json:"repo_stars"`
	RepoForks           int        `json:"repo_forks"`
	RepoPrimaryLanguage *string    `json:"repo_primary_language,omitempty"`
	RepoTopics          []string   `json:"repo_topics"`
	RepoLastPush        *time.Time `json:"repo_last_push,omitempty"`
}

// Issue states. Any forge value outside these maps to StateClosed
const (
	StateOpen   = "open"
	StateClosed = "closed"
)

// IssueStateChange is emitted by the staleness checker when a previously
// published issue is observed closed. It never mutates Issues already logged
type IssueStateChange struct {
	URL        string    `json:"url"`
	NewState   string    `json:"new_state"`
	Reason     string    `json:"reason"`
	ObservedAt time.Time `json:"observed_at"`
}

// Strategy is a static discovery query configuration
type Strategy struct {
	Name      string        `json:"name" validate:"required"`
	Query     string        `json:"query" validate:"required"`
	Priority  int           `json:"priority" validate:"min=0"`
	Interval  time.Duration `json:"interval" validate:"min=1m"`
	ResultCap int           `json:"result_cap" validate:"min=1,max=1000"`
}

// StrategyStats are the per-strategy counters kept by the scheduler
type StrategyStats struct {
	LastRun          time.Time `json:"last_run"`
	Runs             int64     `json:"runs"`
	Errors           int64     `json:"errors"`
	IssuesDiscovered int64     `json:"issues_discovered"`
}

// LogEntry is one record read back from the durable log
type LogEntry struct {
	LSN     string `json:"lsn"`
	Payload []byte `json:"payload"`
}
