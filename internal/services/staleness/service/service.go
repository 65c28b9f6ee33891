// Package service runs periodic re-verification of tracked issues
package service

import (
	"context"
	"time"

	"issueradar/internal/modkit/repokit"
	perr "issueradar/internal/platform/errors"
	"issueradar/internal/platform/logger"
	ddomain "issueradar/internal/services/discovery/domain"
	"issueradar/internal/services/staleness/domain"
	"issueradar/internal/services/staleness/repo"
)

// Config tunes one staleness pass
type Config struct {
	Interval  time.Duration // pass cadence on the shared scheduler
	BatchSize int           // issues re-verified per pass
}

// Svc walks the tracked-issue inventory, asks the forge whether each is
// still open, and publishes a state change record for every close it finds
type Svc struct {
	Repo    repo.Repo
	db      repokit.TxRunner
	binder  repokit.Binder[repo.Repo]
	checker ddomain.StatusChecker
	changes ddomain.PublisherPort
	config  Config
	log     logger.Logger
	now     func() time.Time
}

// New constructs a staleness service over the Postgres inventory
func New(db repokit.TxRunner, checker ddomain.StatusChecker, changes ddomain.PublisherPort, cfg Config) *Svc {
	if db == nil {
		panic("staleness.Service requires a non nil TxRunner")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 6 * time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	guarded := repokit.WithBeginHooks(db, passTimeout)
	return &Svc{
		Repo:    repo.NewPG().Bind(guarded),
		db:      guarded,
		binder:  repo.NewPG(),
		checker: checker,
		changes: changes,
		config:  cfg,
		log:     *logger.Named("staleness"),
		now:     time.Now,
	}
}

// passTimeout caps each statement inside a pass transaction
func passTimeout(ctx context.Context, q repokit.Queryer) error {
	_, err := q.Exec(ctx, "SET LOCAL statement_timeout = '30s'")
	return err
}

// Interval returns the configured pass cadence
func (s *Svc) Interval() time.Duration { return s.config.Interval }

// Track registers a discovered issue for future verification
func (s *Svc) Track(ctx context.Context, ref domain.IssueRef) error {
	if err := s.Repo.UpsertTracked(ctx, ref); err != nil {
		// concurrent strategy runs can race the insert
		if perr.IsDuplicateKey(err) {
			return nil
		}
		return err
	}
	return nil
}

// Check runs one staleness pass. Per-issue failures are counted and skipped;
// the pass only fails when the inventory itself is unreadable
func (s *Svc) Check(ctx context.Context) (domain.CheckResult, error) {
	var res domain.CheckResult

	refs, err := s.Repo.OpenIssues(ctx, s.config.BatchSize)
	if err != nil {
		return res, perr.Wrapf(err, perr.ErrorCodeUnavailable, "open issue inventory read failed")
	}
	if len(refs) == 0 {
		return res, nil
	}

	checked := make([]string, 0, len(refs))
	var closures []closedMark
	for _, ref := range refs {
		if ctx.Err() != nil {
			break
		}
		status, err := s.checker.CheckIssueStatus(ctx, ref.Owner, ref.Repo, ref.Number)
		if err != nil {
			if perr.IsCode(err, perr.ErrorCodeNotFound) {
				// deleted or made private; closed as far as consumers care
				status = ddomain.IssueStatus{State: ddomain.StateClosed, Reason: "unreachable"}
			} else {
				res.Errors++
				s.log.Warn().Err(err).Str("url", ref.URL).Msg("status check failed")
				continue
			}
		}
		res.Checked++
		checked = append(checked, ref.URL)

		if status.State != ddomain.StateClosed {
			continue
		}
		res.Closed++
		closedAt := s.now().UTC()
		if status.ClosedAt != nil {
			closedAt = status.ClosedAt.UTC()
		}
		closures = append(closures, closedMark{url: ref.URL, at: closedAt})
		change := ddomain.IssueStateChange{
			URL:        ref.URL,
			NewState:   ddomain.StateClosed,
			Reason:     status.Reason,
			ObservedAt: s.now().UTC(),
		}
		if err := s.changes.PublishChange(ctx, change); err != nil {
			s.log.Error().Err(err).Str("url", ref.URL).Msg("state change publish failed")
		}
	}

	if err := s.applyPass(ctx, closures, checked); err != nil {
		s.log.Error().Err(err).Int("closed", len(closures)).Int("checked", len(checked)).
			Msg("inventory update failed")
	}

	s.log.Info().
		Int("checked", res.Checked).
		Int("closed", res.Closed).
		Int("errors", res.Errors).
		Msg("staleness pass finished")
	return res, nil
}

// closedMark is one observed close awaiting its inventory write
type closedMark struct {
	url string
	at  time.Time
}

// applyPass records the pass outcome in one transaction, so a crash cannot
// bump last_checked_at without also recording the closes the pass observed
func (s *Svc) applyPass(ctx context.Context, closed []closedMark, checked []string) error {
	if len(closed) == 0 && len(checked) == 0 {
		return nil
	}
	return repokit.WithTx(ctx, s.db, func(q repokit.Queryer) error {
		r := s.binder.Bind(q)
		for _, c := range closed {
			if err := r.MarkClosed(ctx, c.url, c.at); err != nil {
				return err
			}
		}
		return r.MarkChecked(ctx, checked, s.now())
	})
}
