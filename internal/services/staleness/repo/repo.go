// Package repo provides the staleness repository implementation
package repo

import (
	"context"
	"time"

	"issueradar/internal/modkit/repokit"
	"issueradar/internal/platform/store"
	ptime "issueradar/internal/platform/time"
	"issueradar/internal/services/staleness/domain"
)

// Repo defines the staleness repository contract
type Repo interface {
	OpenIssues(ctx context.Context, limit int) ([]domain.IssueRef, error)
	MarkChecked(ctx context.Context, urls []string, at time.Time) error
	MarkClosed(ctx context.Context, url string, closedAt time.Time) error
	UpsertTracked(ctx context.Context, ref domain.IssueRef) error
}

type (
	// PG is a Postgres staleness repository
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG constructs a Postgres staleness repository
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind binds a Queryer to a Postgres implementation of Repo
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

// OpenIssues returns open tracked issues ordered by least recently checked
func (r *queries) OpenIssues(ctx context.Context, limit int) ([]domain.IssueRef, error) {
	const sql = `
		SELECT url, owner, repo, number, last_checked_at
		FROM tracked_issues
		WHERE state = 'open'
		ORDER BY last_checked_at ASC NULLS FIRST
		LIMIT $1
	`
	return store.Many(ctx, r.q, func(row store.Row) (domain.IssueRef, error) {
		var ref domain.IssueRef
		var checked *time.Time
		if err := row.Scan(&ref.URL, &ref.Owner, &ref.Repo, &ref.Number, &checked); err != nil {
			return ref, err
		}
		if checked != nil {
			ref.LastCheckedAt = checked.UTC()
		}
		return ref, nil
	}, sql, limit)
}

// MarkChecked bumps last_checked_at for a batch of urls
func (r *queries) MarkChecked(ctx context.Context, urls []string, at time.Time) error {
	if len(urls) == 0 {
		return nil
	}
	const sql = `
		UPDATE tracked_issues
		SET last_checked_at = $2
		WHERE url = ANY($1)
	`
	_, err := r.q.Exec(ctx, sql, urls, at.UTC())
	return err
}

// MarkClosed flips one tracked issue to closed
func (r *queries) MarkClosed(ctx context.Context, url string, closedAt time.Time) error {
	const sql = `
		UPDATE tracked_issues
		SET state = 'closed', closed_at = $2
		WHERE url = $1
	`
	return store.ExecOne(ctx, r.q, sql, url, closedAt.UTC())
}

// UpsertTracked registers an issue for staleness verification
func (r *queries) UpsertTracked(ctx context.Context, ref domain.IssueRef) error {
	const sql = `
		INSERT INTO tracked_issues (url, owner, repo, number, state, first_seen_at, last_checked_at)
		VALUES ($1, $2, $3, $4, 'open', NOW(), $5)
		ON CONFLICT (url) DO NOTHING
	`
	_, err := r.q.Exec(ctx, sql, ref.URL, ref.Owner, ref.Repo, ref.Number, ptime.Ptr(ref.LastCheckedAt))
	return err
}
