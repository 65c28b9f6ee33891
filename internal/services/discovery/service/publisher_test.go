package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"issueradar/internal/services/discovery/domain"
)

// fakeLog records appended payloads and can fail the next n appends
type fakeLog struct {
	mu       sync.Mutex
	entries  [][]byte
	batches  []int
	failures int
	seq      int
}

func (f *fakeLog) Append(_ context.Context, _ string, payload []byte, _ int64) (string, error) {
	ids, err := f.append([][]byte{payload})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

func (f *fakeLog) AppendBatch(_ context.Context, _ string, payloads [][]byte, _ int64) ([]string, error) {
	return f.append(payloads)
}

func (f *fakeLog) append(payloads [][]byte) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("log unavailable")
	}
	ids := make([]string, len(payloads))
	for i, p := range payloads {
		f.seq++
		f.entries = append(f.entries, p)
		ids[i] = fmt.Sprintf("%d-0", f.seq)
	}
	f.batches = append(f.batches, len(payloads))
	return ids, nil
}

func (f *fakeLog) Read(context.Context, string, string, int64) ([]domain.LogEntry, error) {
	return nil, nil
}

func testIssue(n int) domain.Issue {
	return domain.Issue{
		ForgeID:   fmt.Sprintf("I_%d", n),
		Number:    n,
		Title:     fmt.Sprintf("issue %d", n),
		URL:       fmt.Sprintf("https://github.com/acme/widgets/issues/%d", n),
		State:     domain.StateOpen,
		CreatedAt: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newTestPublisher(batch int) (*Publisher, *fakeLog) {
	fl := &fakeLog{}
	p := NewPublisher(NewDeduper(newFakeSeen()), fl, PublisherConfig{
		StreamKey: "issues:test",
		BatchSize: batch,
	})
	return p, fl
}

func TestPublisher_FlushesAtThreshold(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, fl := newTestPublisher(100)

	for i := 0; i < 150; i++ {
		if !p.Publish(ctx, testIssue(i)) {
			t.Fatalf("publish %d rejected", i)
		}
	}

	st := p.Stats()
	if st.Published != 100 || st.Buffered != 50 {
		t.Fatalf("published=%d buffered=%d want 100/50", st.Published, st.Buffered)
	}
	if len(fl.batches) != 1 || fl.batches[0] != 100 {
		t.Fatalf("batches = %v want [100]", fl.batches)
	}

	for i := 150; i < 200; i++ {
		p.Publish(ctx, testIssue(i))
	}
	st = p.Stats()
	if st.Published != 200 || st.Buffered != 0 || st.Flushes != 2 {
		t.Fatalf("after 200: %+v", st)
	}
}

func TestPublisher_RejectsDuplicates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, _ := newTestPublisher(100)

	if !p.Publish(ctx, testIssue(1)) {
		t.Fatalf("first publish rejected")
	}
	if p.Publish(ctx, testIssue(1)) {
		t.Fatalf("duplicate accepted")
	}
	st := p.Stats()
	if st.Duplicates != 1 || st.Buffered != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestPublisher_RejectsIncompleteRecords(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, _ := newTestPublisher(100)

	iss := testIssue(1)
	iss.URL = ""
	if p.Publish(ctx, iss) {
		t.Fatalf("record without url accepted")
	}
	iss = testIssue(2)
	iss.Title = ""
	if p.Publish(ctx, iss) {
		t.Fatalf("record without title accepted")
	}
}

func TestPublisher_EmptyFlushIsNoop(t *testing.T) {
	t.Parallel()
	p, fl := newTestPublisher(100)

	n, err := p.Flush(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("empty flush: n=%d err=%v", n, err)
	}
	if len(fl.batches) != 0 {
		t.Fatalf("empty flush must not hit the log")
	}
}

func TestPublisher_RetriesOnceThenSucceeds(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, fl := newTestPublisher(100)
	fl.failures = 1

	p.Publish(ctx, testIssue(1))
	n, err := p.Flush(ctx)
	if err != nil {
		t.Fatalf("flush should succeed on retry, got %v", err)
	}
	if n != 1 {
		t.Fatalf("flushed %d want 1", n)
	}
	if p.Stats().DropErrors != 0 {
		t.Fatalf("successful retry must not count as drop")
	}
}

func TestPublisher_DropsBatchAfterTwoFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, fl := newTestPublisher(100)
	fl.failures = 2

	p.Publish(ctx, testIssue(1))
	p.Publish(ctx, testIssue(2))
	n, err := p.Flush(ctx)
	if err == nil {
		t.Fatalf("expected error after two failed appends")
	}
	if n != 0 {
		t.Fatalf("flushed %d want 0", n)
	}
	st := p.Stats()
	if st.DropErrors != 1 || st.Buffered != 0 {
		t.Fatalf("stats = %+v, batch must be dropped not requeued", st)
	}
}

func TestPublisher_CloseFlushesResidue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, fl := newTestPublisher(100)

	for i := 0; i < 7; i++ {
		p.Publish(ctx, testIssue(i))
	}
	if err := p.Close(ctx); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if len(fl.entries) != 7 {
		t.Fatalf("log has %d entries want 7", len(fl.entries))
	}
}

func TestPublisher_PublishChangeAppendsRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, fl := newTestPublisher(100)

	ch := domain.IssueStateChange{
		URL:        testURL,
		NewState:   domain.StateClosed,
		Reason:     "COMPLETED",
		ObservedAt: time.Now().UTC(),
	}
	if err := p.PublishChange(ctx, ch); err != nil {
		t.Fatalf("PublishChange returned error: %v", err)
	}
	if len(fl.entries) != 1 {
		t.Fatalf("log has %d entries want 1", len(fl.entries))
	}
	var got domain.IssueStateChange
	if err := json.Unmarshal(fl.entries[0], &got); err != nil {
		t.Fatalf("payload not valid JSON: %v", err)
	}
	if got.URL != ch.URL || got.NewState != domain.StateClosed {
		t.Fatalf("payload = %+v", got)
	}
}

func TestPublisher_BatchesNeverExceedBatchSize(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, fl := newTestPublisher(10)

	for i := 0; i < 35; i++ {
		p.Publish(ctx, testIssue(i))
	}
	_, _ = p.Flush(ctx)
	for _, b := range fl.batches {
		if b > 10 {
			t.Fatalf("batch of %d exceeds configured size 10", b)
		}
	}
}

func TestPublisher_ConcurrentSameURLAcceptedOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fl := &fakeLog{}
	shared := newFakeSeen()
	shared.delay = time.Millisecond // widen the dedup check window
	p := NewPublisher(NewDeduper(shared), fl, PublisherConfig{
		StreamKey: "issues:test",
		BatchSize: 100,
	})

	const workers = 8
	var (
		wg       sync.WaitGroup
		accepted atomic.Int64
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if p.Publish(ctx, testIssue(1)) {
				accepted.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()
	if _, err := p.Flush(ctx); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}

	if got := accepted.Load(); got != 1 {
		t.Fatalf("accepted = %d want exactly 1", got)
	}
	if len(fl.entries) != 1 {
		t.Fatalf("log has %d entries want 1", len(fl.entries))
	}
	if st := p.Stats(); st.Duplicates != workers-1 {
		t.Fatalf("duplicates = %d want %d", st.Duplicates, workers-1)
	}
}

func TestPublisher_ConcurrentPublishersKeepBatchesCapped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, fl := newTestPublisher(2)

	const (
		workers = 8
		each    = 25
	)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				p.Publish(ctx, testIssue(w*1000+i))
			}
		}()
	}
	wg.Wait()
	if _, err := p.Flush(ctx); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}

	total := 0
	for _, b := range fl.batches {
		if b > 2 {
			t.Fatalf("batch of %d exceeds configured size 2", b)
		}
		total += b
	}
	if total != workers*each {
		t.Fatalf("published %d want %d", total, workers*each)
	}
}

func TestPublisher_OnPublishedSeesOnlyLoggedRecords(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, _ := newTestPublisher(2)

	var seen []string
	p.SetOnPublished(func(_ context.Context, iss domain.Issue) {
		seen = append(seen, iss.URL)
	})

	p.Publish(ctx, testIssue(1))
	if len(seen) != 0 {
		t.Fatalf("hook fired before flush: %v", seen)
	}
	p.Publish(ctx, testIssue(2)) // threshold flush
	if len(seen) != 2 {
		t.Fatalf("hook saw %d records want 2", len(seen))
	}
	if seen[0] != testIssue(1).URL || seen[1] != testIssue(2).URL {
		t.Fatalf("hook order = %v", seen)
	}
}

func TestPublisher_OnPublishedSkippedOnDroppedBatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, fl := newTestPublisher(100)
	fl.failures = 2 // exhausts the retry, batch dropped

	fired := false
	p.SetOnPublished(func(context.Context, domain.Issue) { fired = true })

	p.Publish(ctx, testIssue(1))
	if _, err := p.Flush(ctx); err == nil {
		t.Fatalf("expected flush error after two failures")
	}
	if fired {
		t.Fatalf("hook fired for a dropped batch")
	}
}
