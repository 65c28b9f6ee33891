package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeSeen is an in-memory stand-in for the shared tier
type fakeSeen struct {
	mu       sync.Mutex
	members  map[string]time.Time
	failNext error
	failAdd  error
	delay    time.Duration
	lookups  int
}

func newFakeSeen() *fakeSeen {
	return &fakeSeen{members: map[string]time.Time{}}
}

func (f *fakeSeen) Contains(_ context.Context, url string) (bool, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return false, err
	}
	_, ok := f.members[url]
	return ok, nil
}

func (f *fakeSeen) Add(_ context.Context, url string, firstSeen time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAdd != nil {
		err := f.failAdd
		f.failAdd = nil
		return err
	}
	if _, ok := f.members[url]; !ok {
		f.members[url] = firstSeen
	}
	return nil
}

func (f *fakeSeen) Sweep(_ context.Context, olderThan time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for url, at := range f.members {
		if at.Before(olderThan) {
			delete(f.members, url)
			n++
		}
	}
	return n, nil
}

const testURL = "https://github.com/acme/widgets/issues/1"

func TestDeduper_FirstClaimThenDuplicate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := NewDeduper(newFakeSeen())

	if d.CheckAndMark(ctx, testURL) {
		t.Fatalf("fresh url must not be duplicate")
	}
	if !d.CheckAndMark(ctx, testURL) {
		t.Fatalf("claimed url must be duplicate")
	}
}

func TestDeduper_LocalTierShortCircuitsShared(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	shared := newFakeSeen()
	d := NewDeduper(shared)

	d.CheckAndMark(ctx, testURL)
	before := shared.lookups
	for i := 0; i < 5; i++ {
		if !d.CheckAndMark(ctx, testURL) {
			t.Fatalf("claimed url must be duplicate")
		}
	}
	if shared.lookups != before {
		t.Fatalf("local hits must not touch the shared tier")
	}
}

func TestDeduper_SharedHitClaimsLocal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	shared := newFakeSeen()
	_ = shared.Add(ctx, testURL, time.Now())
	d := NewDeduper(shared)

	if !d.CheckAndMark(ctx, testURL) {
		t.Fatalf("shared member must be duplicate")
	}
	if d.LocalSize() != 1 {
		t.Fatalf("shared hit must populate the local tier")
	}
}

func TestDeduper_SharedErrorTreatedAsNew(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	shared := newFakeSeen()
	_ = shared.Add(ctx, testURL, time.Now())
	shared.failNext = errors.New("connection refused")
	d := NewDeduper(shared)

	// re-publishing beats losing the issue when the shared tier is down
	if d.CheckAndMark(ctx, testURL) {
		t.Fatalf("shared error must read as not duplicate")
	}
}

func TestDeduper_ClaimSurvivesSharedAddError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	shared := newFakeSeen()
	shared.failAdd = errors.New("connection refused")
	d := NewDeduper(shared)

	if d.CheckAndMark(ctx, testURL) {
		t.Fatalf("fresh url must not be duplicate")
	}
	if !d.CheckAndMark(ctx, testURL) {
		t.Fatalf("local tier must still hold the url")
	}
}

func TestDeduper_ConcurrentCallersClaimOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	shared := newFakeSeen()
	shared.delay = time.Millisecond // widen the check window
	d := NewDeduper(shared)

	const callers = 8
	var (
		wg     sync.WaitGroup
		claims atomic.Int64
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if !d.CheckAndMark(ctx, testURL) {
				claims.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := claims.Load(); got != 1 {
		t.Fatalf("claims = %d want exactly 1", got)
	}
	if d.LocalSize() != 1 {
		t.Fatalf("local size = %d want 1", d.LocalSize())
	}
}
