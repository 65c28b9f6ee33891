package service

import (
	"context"
	"sync"
	"time"

	perr "issueradar/internal/platform/errors"
	"issueradar/internal/platform/logger"
	"issueradar/internal/services/discovery/domain"
)

// Job is one scheduled unit of work. Run reports how many records it
// produced; the scheduler keeps the counters
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (int, error)
}

// jobState pairs a job with its trigger channel and counters.
// The capacity-1 trigger is the whole overlap story: a send while a run is
// pending or in progress is dropped, which coalesces missed fires and
// guarantees at most one run per job at any time
type jobState struct {
	job     Job
	trigger chan struct{}

	mu    sync.Mutex
	stats domain.StrategyStats
}

// Scheduler owns the static job table. Jobs fire on independent intervals
// and run concurrently with each other, never with themselves
type Scheduler struct {
	mu         sync.Mutex
	jobs       map[string]*jobState
	started    bool
	stopCh     chan struct{}
	cancelRuns context.CancelFunc
	wg         sync.WaitGroup
	log        logger.Logger
}

// NewScheduler constructs an empty Scheduler
func NewScheduler() *Scheduler {
	return &Scheduler{
		jobs: make(map[string]*jobState),
		log:  *logger.Named("scheduler"),
	}
}

// Register adds a job before Start. Duplicate names are rejected
func (s *Scheduler) Register(j Job) error {
	if j.Name == "" || j.Interval <= 0 || j.Run == nil {
		return perr.InvalidArgf("scheduler job needs name, interval and run func")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return perr.Conflictf("scheduler already started")
	}
	if _, dup := s.jobs[j.Name]; dup {
		return perr.Conflictf("scheduler job %q already registered", j.Name)
	}
	s.jobs[j.Name] = &jobState{
		job:     j,
		trigger: make(chan struct{}, 1),
	}
	return nil
}

// Start launches the timer and runner loops. Idempotent
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.stopCh = make(chan struct{})
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRuns = cancel
	for _, js := range s.jobs {
		s.wg.Add(2)
		go s.tickLoop(js)
		go s.runLoop(runCtx, js)
	}
	n := len(s.jobs)
	s.mu.Unlock()

	s.log.Info().Int("jobs", n).Msg("scheduler started")
	return nil
}

// Stop cancels the timer loops, stops future runs, and waits for in-flight
// runs to complete. In-flight runs observe cancellation at their next page
// boundary; the current page is allowed to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.stopCh)
	cancel := s.cancelRuns
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.log.Info().Msg("scheduler stopped")
}

// Trigger advances a job's next fire to now. Returns false for unknown
// names or when a run is already pending
func (s *Scheduler) Trigger(name string) bool {
	s.mu.Lock()
	js, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case js.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Stats returns a copy of every job's counters
func (s *Scheduler) Stats() map[string]domain.StrategyStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domain.StrategyStats, len(s.jobs))
	for name, js := range s.jobs {
		js.mu.Lock()
		out[name] = js.stats
		js.mu.Unlock()
	}
	return out
}

func (s *Scheduler) tickLoop(js *jobState) {
	defer s.wg.Done()
	t := time.NewTicker(js.job.Interval)
	defer t.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-t.C:
			select {
			case js.trigger <- struct{}{}:
			default:
				// previous run still pending; fire dropped
				s.log.Debug().Str("job", js.job.Name).Msg("tick coalesced")
			}
		}
	}
}

func (s *Scheduler) runLoop(ctx context.Context, js *jobState) {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		case <-js.trigger:
			// a trigger queued before Stop must not start a run once the
			// drain began; select picks ready cases at random
			select {
			case <-s.stopCh:
				return
			default:
			}
			s.runOnce(ctx, js)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, js *jobState) {
	start := time.Now().UTC()
	n, err := js.job.Run(ctx)

	js.mu.Lock()
	js.stats.LastRun = start
	js.stats.Runs++
	if err != nil {
		js.stats.Errors++
	}
	js.stats.IssuesDiscovered += int64(n)
	js.mu.Unlock()

	if err != nil {
		s.log.Warn().Str("job", js.job.Name).Err(err).Msg("job run failed")
	}
}
