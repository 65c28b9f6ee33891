package domain

import (
	"context"
	"iter"
	"time"
)

// Searcher yields normalized Issues for a forge search expression.
// The sequence is finite, restartable per call, and silently truncates on
// unrecoverable page errors; the next interval tick picks up the remainder
type Searcher interface {
	SearchIssues(ctx context.Context, query string, maxResults int) iter.Seq[Issue]
}

// IssueStatus is the answer to a staleness probe
type IssueStatus struct {
	State    string
	Reason   string
	ClosedAt *time.Time
}

// StatusChecker verifies whether a previously seen issue is still open
type StatusChecker interface {
	CheckIssueStatus(ctx context.Context, owner, repo string, number int) (IssueStatus, error)
}

// DurableLog is the append-only stream the pipeline publishes to.
// Append trims the stream approximately at maxLenApprox and returns the
// assigned log sequence number. Consumers read from a checkpointed LSN
type DurableLog interface {
	Append(ctx context.Context, key string, payload []byte, maxLenApprox int64) (string, error)
	AppendBatch(ctx context.Context, key string, payloads [][]byte, maxLenApprox int64) ([]string, error)
	Read(ctx context.Context, key, fromLSN string, count int64) ([]LogEntry, error)
}

// SeenSet is the shared dedup tier keyed by canonical URL.
// Entries first seen within the retention window are guaranteed present;
// older entries may be swept
type SeenSet interface {
	Contains(ctx context.Context, url string) (bool, error)
	Add(ctx context.Context, url string, firstSeen time.Time) error
	Sweep(ctx context.Context, olderThan time.Time) (int64, error)
}

// PublisherPort is the dedup-then-append surface the executor feeds.
// PublishChange bypasses the buffer; state transitions are rare and urgent
type PublisherPort interface {
	Publish(ctx context.Context, iss Issue) bool
	Flush(ctx context.Context) (int, error)
	PublishChange(ctx context.Context, ch IssueStateChange) error
}

// SchedulerPort drives the static strategy table
type SchedulerPort interface {
	Start(ctx context.Context) error
	Stop()
	Trigger(name string) bool
	Stats() map[string]StrategyStats
}

// RunnerPort is the supervisor surface the binary blocks on
type RunnerPort interface {
	Run(ctx context.Context) error
}
