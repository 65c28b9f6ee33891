package domain

import (
	"context"
	"time"
)

// Source is the tracked-issue inventory the checker walks.
// OpenIssues returns the least recently verified open issues first
type Source interface {
	OpenIssues(ctx context.Context, limit int) ([]IssueRef, error)
	MarkChecked(ctx context.Context, urls []string, at time.Time) error
	MarkClosed(ctx context.Context, url string, closedAt time.Time) error
}

// CheckerPort runs one staleness pass
type CheckerPort interface {
	Check(ctx context.Context) (CheckResult, error)
}
