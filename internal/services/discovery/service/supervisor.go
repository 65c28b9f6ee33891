package service

import (
	"context"
	"sync/atomic"
	"time"

	"issueradar/internal/platform/logger"
)

// Supervisor lifecycle states
const (
	StateInit int32 = iota
	StateStarting
	StateRunning
	StateDraining
	StateStopped
	StateFailed
)

func stateName(s int32) string {
	switch s {
	case StateInit:
		return "init"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Supervisor owns the pipeline lifecycle: start the scheduler, emit
// aggregate stats every minute, and on termination drain in order:
// scheduler, publisher residue, then any registered closers
type Supervisor struct {
	svc        *Svc
	state      atomic.Int32
	statsEvery time.Duration
	closers    []func()
	log        logger.Logger
}

// NewSupervisor constructs a Supervisor over the wired service.
// closers run last during drain (client teardown, store close)
func NewSupervisor(svc *Svc, statsEvery time.Duration, closers ...func()) *Supervisor {
	if statsEvery <= 0 {
		statsEvery = time.Minute
	}
	return &Supervisor{
		svc:        svc,
		statsEvery: statsEvery,
		closers:    closers,
		log:        *logger.Named("supervisor"),
	}
}

// State returns the current lifecycle state name
func (s *Supervisor) State() string { return stateName(s.state.Load()) }

// Trigger forwards a manual strategy trigger. Only the running state
// accepts triggers; draining refuses new work
func (s *Supervisor) Trigger(name string) bool {
	if s.state.Load() != StateRunning {
		return false
	}
	return s.svc.Sched.Trigger(name)
}

// Run blocks until ctx is cancelled, then drains and returns.
// A clean drain returns nil; only startup failures are fatal
func (s *Supervisor) Run(ctx context.Context) error {
	s.state.Store(StateStarting)

	if err := s.svc.Sched.Start(ctx); err != nil {
		s.state.Store(StateFailed)
		return err
	}
	s.state.Store(StateRunning)
	s.log.Info().Msg("pipeline running")

	t := time.NewTicker(s.statsEvery)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.emitStats()
		case <-ctx.Done():
			s.drain()
			return nil
		}
	}
}

// drain refuses new runs, waits for in-flight ones, flushes the publisher,
// and tears down collaborators
func (s *Supervisor) drain() {
	s.state.Store(StateDraining)
	s.log.Info().Msg("draining")

	s.svc.Sched.Stop()

	flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := s.svc.Pub.Close(flushCtx); err != nil {
		s.log.Error().Err(err).Msg("residual flush failed")
	}
	cancel()

	for _, c := range s.closers {
		c()
	}
	s.state.Store(StateStopped)
	s.log.Info().Msg("pipeline stopped")
}

func (s *Supervisor) emitStats() {
	pub := s.svc.Pub.Stats()
	ev := s.log.Info().
		Int64("published", pub.Published).
		Int64("duplicates", pub.Duplicates).
		Int64("flushes", pub.Flushes).
		Int64("drop_errors", pub.DropErrors).
		Int("buffered", pub.Buffered).
		Int("local_seen", s.svc.Dedup.LocalSize())
	var runs, errs, found int64
	for _, st := range s.svc.Sched.Stats() {
		runs += st.Runs
		errs += st.Errors
		found += st.IssuesDiscovered
	}
	ev.Int64("runs", runs).Int64("run_errors", errs).Int64("discovered", found).Msg("pipeline stats")
}
