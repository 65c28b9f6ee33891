package service

import (
	"context"
	"encoding/json"
	"sync"

	perr "issueradar/internal/platform/errors"
	"issueradar/internal/platform/logger"
	"issueradar/internal/services/discovery/domain"
)

// PublisherConfig tunes buffering and log trimming
type PublisherConfig struct {
	StreamKey string
	BatchSize int   // flush threshold; batches never exceed this
	MaxLogLen int64 // approximate stream ceiling
}

// PublisherStats are the counters exposed on the stats surface
type PublisherStats struct {
	Published  int64 `json:"published"`
	Duplicates int64 `json:"duplicates"`
	Flushes    int64 `json:"flushes"`
	DropErrors int64 `json:"drop_errors"`
	Buffered   int   `json:"buffered"`
}

// Publisher owns the bounded buffer between discovery and the durable log.
// Issues are marked seen at buffer time, so a crash between mark and flush
// loses at most one buffer of issues; they resurface on the next tick
type Publisher struct {
	mu  sync.Mutex
	buf []domain.Issue

	dedup *Deduper
	dlog  domain.DurableLog
	cfg   PublisherConfig
	log   logger.Logger

	published  int64
	duplicates int64
	flushes    int64
	dropErrors int64

	onPublished func(ctx context.Context, iss domain.Issue)
}

// NewPublisher constructs a Publisher over the dedup tier and the log
func NewPublisher(dedup *Deduper, dlog domain.DurableLog, cfg PublisherConfig) *Publisher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxLogLen <= 0 {
		cfg.MaxLogLen = 100_000
	}
	if cfg.StreamKey == "" {
		cfg.StreamKey = "issues:discovered"
	}
	return &Publisher{
		dedup: dedup,
		dlog:  dlog,
		cfg:   cfg,
		log:   *logger.Named("publisher"),
	}
}

// SetOnPublished installs an observer invoked for every record that reached
// the log. Install before the pipeline starts; the hook runs on the flushing
// goroutine and must not block
func (p *Publisher) SetOnPublished(fn func(ctx context.Context, iss domain.Issue)) {
	p.mu.Lock()
	p.onPublished = fn
	p.mu.Unlock()
}

// Publish offers one Issue to the pipeline. Duplicates and records without
// a canonical URL are rejected with false. Reaching the batch threshold
// triggers a flush inline
func (p *Publisher) Publish(ctx context.Context, iss domain.Issue) bool {
	if iss.URL == "" || iss.Title == "" {
		return false
	}
	if p.dedup.CheckAndMark(ctx, iss.URL) {
		p.mu.Lock()
		p.duplicates++
		p.mu.Unlock()
		return false
	}

	p.mu.Lock()
	p.buf = append(p.buf, iss)
	full := len(p.buf) >= p.cfg.BatchSize
	p.mu.Unlock()

	if full {
		if _, err := p.Flush(ctx); err != nil {
			p.log.Error().Err(err).Msg("threshold flush failed batch dropped")
		}
	}
	return true
}

// Flush drains the buffer and appends it to the log in pipelined batches
// capped at BatchSize; concurrent producers can grow the buffer past the
// threshold between append and drain. A failed append is retried once;
// after that the batch is dropped and the error counter incremented.
// Returns the number of records published
func (p *Publisher) Flush(ctx context.Context) (int, error) {
	p.mu.Lock()
	batch := p.buf
	p.buf = nil
	p.mu.Unlock()

	if len(batch) == 0 {
		return 0, nil
	}

	payloads := make([][]byte, 0, len(batch))
	kept := make([]domain.Issue, 0, len(batch))
	for i := range batch {
		b, err := json.Marshal(&batch[i])
		if err != nil {
			p.log.Error().Err(err).Str("url", batch[i].URL).Msg("issue marshal failed record skipped")
			continue
		}
		payloads = append(payloads, b)
		kept = append(kept, batch[i])
	}

	var (
		total   int
		dropErr error
	)
	for start := 0; start < len(payloads); start += p.cfg.BatchSize {
		end := start + p.cfg.BatchSize
		if end > len(payloads) {
			end = len(payloads)
		}
		n, err := p.appendBatch(ctx, payloads[start:end], kept[start:end])
		total += n
		if err != nil {
			dropErr = err
		}
	}
	return total, dropErr
}

// appendBatch writes one BatchSize-capped batch with the one-retry policy
func (p *Publisher) appendBatch(ctx context.Context, payloads [][]byte, kept []domain.Issue) (int, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		lsns, err := p.dlog.AppendBatch(ctx, p.cfg.StreamKey, payloads, p.cfg.MaxLogLen)
		if err == nil {
			p.mu.Lock()
			p.published += int64(len(lsns))
			p.flushes++
			hook := p.onPublished
			p.mu.Unlock()
			if hook != nil {
				for i := range kept {
					hook(ctx, kept[i])
				}
			}
			p.log.Debug().Int("count", len(lsns)).Str("last_lsn", lsns[len(lsns)-1]).Msg("batch published")
			return len(lsns), nil
		}
		lastErr = err
	}

	p.mu.Lock()
	p.dropErrors++
	p.mu.Unlock()
	p.log.Error().Err(lastErr).Int("count", len(payloads)).Msg("log append failed twice batch dropped")
	return 0, perr.Wrapf(lastErr, perr.ErrorCodeUnavailable, "publish batch dropped")
}

// PublishChange appends a state change record outside the issue buffer.
// Same one-retry policy as Flush
func (p *Publisher) PublishChange(ctx context.Context, ch domain.IssueStateChange) error {
	b, err := json.Marshal(&ch)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "state change marshal failed")
	}
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if _, lastErr = p.dlog.Append(ctx, p.cfg.StreamKey, b, p.cfg.MaxLogLen); lastErr == nil {
			return nil
		}
	}
	p.mu.Lock()
	p.dropErrors++
	p.mu.Unlock()
	return perr.Wrapf(lastErr, perr.ErrorCodeUnavailable, "state change append dropped")
}

// Close flushes any residual buffered records. Called on shutdown
func (p *Publisher) Close(ctx context.Context) error {
	_, err := p.Flush(ctx)
	return err
}

// Stats returns a snapshot of the publisher counters
func (p *Publisher) Stats() PublisherStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PublisherStats{
		Published:  p.published,
		Duplicates: p.duplicates,
		Flushes:    p.flushes,
		DropErrors: p.dropErrors,
		Buffered:   len(p.buf),
	}
}
