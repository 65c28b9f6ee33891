package service

import (
	"context"
	"iter"
	"sync"
	"testing"
	"time"

	perr "issueradar/internal/platform/errors"
	"issueradar/internal/services/discovery/domain"
)

// fakeSearcher yields a fixed slice, optionally panicking partway through
type fakeSearcher struct {
	issues     []domain.Issue
	panicAfter int // 0 disables
	lastQuery  string
	lastMax    int
}

func (f *fakeSearcher) SearchIssues(_ context.Context, query string, maxResults int) iter.Seq[domain.Issue] {
	f.lastQuery = query
	f.lastMax = maxResults
	return func(yield func(domain.Issue) bool) {
		for i, iss := range f.issues {
			if f.panicAfter > 0 && i == f.panicAfter {
				panic("searcher exploded")
			}
			if i >= maxResults {
				return
			}
			if !yield(iss) {
				return
			}
		}
	}
}

// fakePub accepts everything except urls in reject
type fakePub struct {
	mu     sync.Mutex
	seen   []string
	reject map[string]bool
}

func (f *fakePub) Publish(_ context.Context, iss domain.Issue) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reject[iss.URL] {
		return false
	}
	f.seen = append(f.seen, iss.URL)
	return true
}

func (f *fakePub) Flush(context.Context) (int, error) { return 0, nil }

func (f *fakePub) PublishChange(context.Context, domain.IssueStateChange) error { return nil }

func testStrategy() domain.Strategy {
	return domain.Strategy{
		Name:      "good-first-issue",
		Query:     `is:issue is:open label:"good first issue"`,
		Priority:  1,
		Interval:  30 * time.Minute,
		ResultCap: 100,
	}
}

func TestExecutor_CountsOnlyPublished(t *testing.T) {
	t.Parallel()

	search := &fakeSearcher{issues: []domain.Issue{testIssue(1), testIssue(2), testIssue(3)}}
	pub := &fakePub{reject: map[string]bool{testIssue(2).URL: true}}
	e := NewExecutor(search, pub)

	n, err := e.Run(context.Background(), testStrategy())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if n != 2 {
		t.Fatalf("published = %d want 2, rejected issues must not count", n)
	}
	if search.lastMax != 100 {
		t.Fatalf("result cap %d not forwarded", search.lastMax)
	}
}

func TestExecutor_PanicBecomesError(t *testing.T) {
	t.Parallel()

	search := &fakeSearcher{
		issues:     []domain.Issue{testIssue(1), testIssue(2), testIssue(3)},
		panicAfter: 2,
	}
	e := NewExecutor(search, &fakePub{})

	n, err := e.Run(context.Background(), testStrategy())
	if err == nil {
		t.Fatalf("expected error from panicked run")
	}
	if !perr.IsCode(err, perr.ErrorCodePanic) {
		t.Fatalf("error code = %v want panic", perr.CodeOf(err))
	}
	if n != 0 {
		t.Fatalf("published = %d want 0 after panic", n)
	}
}

func TestExecutor_EmptyRunWithCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewExecutor(&fakeSearcher{}, &fakePub{})
	_, err := e.Run(ctx, testStrategy())
	if err == nil {
		t.Fatalf("cancelled empty run should surface the context error")
	}
}

func TestExecutor_EmptyResultIsNotAnError(t *testing.T) {
	t.Parallel()

	e := NewExecutor(&fakeSearcher{}, &fakePub{})
	n, err := e.Run(context.Background(), testStrategy())
	if err != nil {
		t.Fatalf("empty search must not error, got %v", err)
	}
	if n != 0 {
		t.Fatalf("published = %d want 0", n)
	}
}
