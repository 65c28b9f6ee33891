// Package service contains the discovery pipeline workflows
package service

import (
	"context"
	"sync"
	"time"

	"issueradar/internal/platform/logger"
	"issueradar/internal/services/discovery/domain"
)

// Deduper is the two-tier seen set keyed by canonical URL.
// The local tier avoids a network round trip for hot duplicates;
// the shared tier survives restarts and covers horizontal workers
type Deduper struct {
	mu     sync.Mutex
	local  map[string]struct{}
	shared domain.SeenSet
	log    logger.Logger
	now    func() time.Time
}

// NewDeduper constructs a Deduper over the shared tier
func NewDeduper(shared domain.SeenSet) *Deduper {
	return &Deduper{
		local:  make(map[string]struct{}),
		shared: shared,
		log:    *logger.Named("dedup"),
		now:    time.Now,
	}
}

// CheckAndMark reports whether url was already seen and claims it when it
// was not. The local check, the shared lookup, and the local claim happen
// under one lock, so concurrent callers with the same url resolve to
// exactly one claim. A shared-tier error is treated as a miss: re-publishing
// a duplicate is the documented at-least-once failure mode, losing an issue
// is not
func (d *Deduper) CheckAndMark(ctx context.Context, url string) bool {
	d.mu.Lock()
	if _, hit := d.local[url]; hit {
		d.mu.Unlock()
		return true
	}

	seen, err := d.shared.Contains(ctx, url)
	if err != nil {
		d.log.Warn().Err(err).Str("url", url).Msg("shared seen lookup failed treating as new")
		seen = false
	}
	d.local[url] = struct{}{}
	d.mu.Unlock()

	if seen {
		return true
	}

	// the local claim already excludes in-process racers; the shared add is
	// idempotent so cross-process races collapse to one member. An add error
	// is logged, not surfaced: the local tier still holds the url for this
	// process lifetime
	if err := d.shared.Add(ctx, url, d.now()); err != nil {
		d.log.Warn().Err(err).Str("url", url).Msg("shared seen add failed")
	}
	return false
}

// LocalSize reports the local tier cardinality for stats surfaces
func (d *Deduper) LocalSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.local)
}
