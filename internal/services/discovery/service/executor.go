package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	perr "issueradar/internal/platform/errors"
	"issueradar/internal/platform/logger"
	"issueradar/internal/services/discovery/domain"
)

// Executor drives one strategy to completion: iterate the search, offer
// every Issue to the publisher, count what was actually published
type Executor struct {
	search domain.Searcher
	pub    domain.PublisherPort
	log    logger.Logger
}

// NewExecutor constructs an Executor over the searcher and publisher
func NewExecutor(search domain.Searcher, pub domain.PublisherPort) *Executor {
	return &Executor{
		search: search,
		pub:    pub,
		log:    *logger.Named("executor"),
	}
}

// Run executes the strategy once and returns the number of issues published
// (duplicates excluded). Failures never propagate to the scheduler: a
// panicked run reports zero with an error for the strategy's error counter
func (e *Executor) Run(ctx context.Context, st domain.Strategy) (published int, err error) {
	runID := uuid.NewString()
	ctx = logger.WithRun(ctx, runID)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			published = 0
			err = perr.PanicErrf("strategy %s panicked: %v", st.Name, r)
		}
		e.log.Info().
			Str("strategy", st.Name).
			Str("run_id", runID).
			Int("published", published).
			Dur("elapsed", time.Since(start)).
			Err(err).
			Msg("strategy run finished")
	}()

	e.log.Debug().Str("strategy", st.Name).Str("run_id", runID).Int("cap", st.ResultCap).Msg("strategy run started")

	seen := 0
	for iss := range e.search.SearchIssues(ctx, st.Query, st.ResultCap) {
		seen++
		if e.pub.Publish(ctx, iss) {
			published++
		}
	}
	if seen == 0 && ctx.Err() != nil {
		return 0, ctx.Err()
	}
	return published, nil
}
