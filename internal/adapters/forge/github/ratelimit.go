package github

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// lowWater is the remaining-quota floor below which discovery yields to the reset clock
	lowWater = 100

	// quotaSleepCap bounds a single quota-guard sleep
	quotaSleepCap = 5 * time.Minute

	backoffMin = 1.0
	backoffMax = 32.0
)

// State is a snapshot of the limiter for stats surfaces
type State struct {
	Remaining   int       `json:"remaining"`
	ResetAt     time.Time `json:"reset_at"`
	Backoff     float64   `json:"backoff_factor"`
	LastRequest time.Time `json:"last_request"`
}

// Limiter enforces minimum inter-request spacing, preserves quota headroom,
// and applies exponential backoff on failure. It never fails; it only delays
type Limiter struct {
	mu          sync.Mutex
	pacer       *rate.Limiter
	minInterval time.Duration
	backoff     float64
	remaining   int
	resetAt     time.Time
	lastRequest time.Time

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewLimiter derives the minimum spacing from the quota shape,
// e.g. 3600s / 5000 = 720ms between requests at backoff 1.0
func NewLimiter(window time.Duration, limit int) *Limiter {
	if window <= 0 {
		window = time.Hour
	}
	if limit <= 0 {
		limit = 5000
	}
	min := window / time.Duration(limit)
	return &Limiter{
		pacer:       rate.NewLimiter(rate.Every(min), 1),
		minInterval: min,
		backoff:     backoffMin,
		remaining:   limit,
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// Acquire blocks until a request may be issued: first the quota guard,
// then the spacing pacer at the current backoff factor
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	wait := time.Duration(0)
	if l.remaining < lowWater && l.resetAt.After(l.now()) {
		wait = min(l.resetAt.Sub(l.now())+time.Second, quotaSleepCap)
	}
	l.pacer.SetLimit(rate.Every(time.Duration(float64(l.minInterval) * l.backoff)))
	l.mu.Unlock()

	if wait > 0 {
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
	if err := l.pacer.Wait(ctx); err != nil {
		return err
	}

	l.mu.Lock()
	l.lastRequest = l.now()
	l.mu.Unlock()
	return nil
}

// Update records quota metadata from a response
func (l *Limiter) Update(remaining int, resetAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if remaining < 0 {
		remaining = 0
	}
	l.remaining = remaining
	if !resetAt.IsZero() {
		l.resetAt = resetAt
	}
}

// Success halves the backoff factor down to 1.0
func (l *Limiter) Success() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.backoff = max(l.backoff/2, backoffMin)
}

// Failure doubles the backoff factor up to 32
func (l *Limiter) Failure() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.backoff = min(l.backoff*2, backoffMax)
}

// Snapshot returns the current limiter state
func (l *Limiter) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return State{
		Remaining:   l.remaining,
		ResetAt:     l.resetAt,
		Backoff:     l.backoff,
		LastRequest: l.lastRequest,
	}
}
