package service

import (
	"context"
	"time"

	perr "issueradar/internal/platform/errors"
	"issueradar/internal/platform/logger"
	"issueradar/internal/services/discovery/domain"
)

// Config carries the wired-in tuning for the discovery pipeline
type Config struct {
	Strategies []domain.Strategy

	StreamKey string
	BatchSize int
	MaxLogLen int64

	SweepInterval time.Duration // seen-set maintenance cadence
	SeenRetention time.Duration // entries older than this are evicted
	StatsEvery    time.Duration
}

// Svc is the assembled discovery pipeline: dedup, publisher, executor and
// scheduler wired over a Searcher and the durable log
type Svc struct {
	Sched *Scheduler
	Pub   *Publisher
	Dedup *Deduper
	Exec  *Executor
	Log   domain.DurableLog

	seen domain.SeenSet
	cfg  Config
	log  logger.Logger
}

// New wires the pipeline and registers one scheduler job per strategy plus
// the seen-set sweep job. Start happens later, under the supervisor
func New(search domain.Searcher, dlog domain.DurableLog, seen domain.SeenSet, cfg Config) (*Svc, error) {
	if len(cfg.Strategies) == 0 {
		return nil, perr.InvalidArgf("discovery needs at least one strategy")
	}
	if cfg.StreamKey == "" {
		cfg.StreamKey = "issues:discovered"
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 24 * time.Hour
	}
	if cfg.SeenRetention <= 0 {
		cfg.SeenRetention = 30 * 24 * time.Hour
	}

	dedup := NewDeduper(seen)
	pub := NewPublisher(dedup, dlog, PublisherConfig{
		StreamKey: cfg.StreamKey,
		BatchSize: cfg.BatchSize,
		MaxLogLen: cfg.MaxLogLen,
	})
	exec := NewExecutor(search, pub)
	sched := NewScheduler()

	s := &Svc{
		Sched: sched,
		Pub:   pub,
		Dedup: dedup,
		Exec:  exec,
		Log:   dlog,
		seen:  seen,
		cfg:   cfg,
		log:   *logger.Named("discovery"),
	}

	for _, st := range cfg.Strategies {
		st := st
		if err := sched.Register(Job{
			Name:     st.Name,
			Interval: st.Interval,
			Run: func(ctx context.Context) (int, error) {
				return exec.Run(ctx, st)
			},
		}); err != nil {
			return nil, err
		}
	}

	if err := sched.Register(Job{
		Name:     "seen-sweep",
		Interval: cfg.SweepInterval,
		Run:      s.sweepSeen,
	}); err != nil {
		return nil, err
	}

	return s, nil
}

// RegisterJob lets sibling services hang extra work off the shared
// scheduler before it starts
func (s *Svc) RegisterJob(name string, every time.Duration, run func(ctx context.Context) (int, error)) error {
	return s.Sched.Register(Job{Name: name, Interval: every, Run: run})
}

// Strategies returns the configured strategy table
func (s *Svc) Strategies() []domain.Strategy { return s.cfg.Strategies }

// StreamKey returns the durable log stream the pipeline publishes to
func (s *Svc) StreamKey() string { return s.cfg.StreamKey }

func (s *Svc) sweepSeen(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.SeenRetention)
	n, err := s.seen.Sweep(ctx, cutoff)
	if err != nil {
		return 0, perr.Wrapf(err, perr.ErrorCodeUnavailable, "seen sweep failed")
	}
	if n > 0 {
		s.log.Info().Int64("evicted", n).Time("cutoff", cutoff).Msg("seen set swept")
	}
	return int(n), nil
}
