package service

import (
	"context"
	"testing"
	"time"

	"issueradar/internal/services/discovery/domain"
)

func testConfig() Config {
	return Config{
		Strategies: []domain.Strategy{
			{Name: "good-first-issue", Query: "q1", Priority: 1, Interval: time.Hour, ResultCap: 100},
			{Name: "help-wanted", Query: "q2", Priority: 1, Interval: time.Hour, ResultCap: 100},
		},
		StreamKey: "issues:test",
		BatchSize: 100,
	}
}

func TestNew_RegistersStrategyAndSweepJobs(t *testing.T) {
	t.Parallel()

	svc, err := New(&fakeSearcher{}, &fakeLog{}, newFakeSeen(), testConfig())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	stats := svc.Sched.Stats()
	for _, name := range []string{"good-first-issue", "help-wanted", "seen-sweep"} {
		if _, ok := stats[name]; !ok {
			t.Fatalf("job %q not registered, have %v", name, stats)
		}
	}
}

func TestNew_RequiresStrategies(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Strategies = nil
	if _, err := New(&fakeSearcher{}, &fakeLog{}, newFakeSeen(), cfg); err == nil {
		t.Fatalf("expected error without strategies")
	}
}

func TestSvc_RegisterJobForSiblings(t *testing.T) {
	t.Parallel()

	svc, err := New(&fakeSearcher{}, &fakeLog{}, newFakeSeen(), testConfig())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := svc.RegisterJob("staleness", time.Hour, noopRun); err != nil {
		t.Fatalf("RegisterJob returned error: %v", err)
	}
	if _, ok := svc.Sched.Stats()["staleness"]; !ok {
		t.Fatalf("sibling job not registered")
	}
}

func TestSvc_SweepEvictsOldEntries(t *testing.T) {
	t.Parallel()

	seen := newFakeSeen()
	now := time.Now().UTC()
	_ = seen.Add(context.Background(), "https://old.example/1", now.Add(-40*24*time.Hour))
	_ = seen.Add(context.Background(), "https://fresh.example/2", now.Add(-time.Hour))

	svc, err := New(&fakeSearcher{}, &fakeLog{}, seen, testConfig())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	n, err := svc.sweepSeen(context.Background())
	if err != nil {
		t.Fatalf("sweepSeen returned error: %v", err)
	}
	if n != 1 {
		t.Fatalf("evicted %d want 1", n)
	}
}
