// Package repo implements the durable log and shared seen set over Redis
package repo

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	perr "issueradar/internal/platform/errors"
	"issueradar/internal/services/discovery/domain"
)

// payloadField is the single stream entry field holding the JSON record
const payloadField = "payload"

// agesSuffix extends the seen key with a first-seen index used for retention
const agesSuffix = ":ages"

// Redis binds the discovery ports to a Redis client.
// The durable log is a stream (XADD with approximate MAXLEN trimming);
// the seen set is a plain set plus a first-seen sorted set for sweeping
type Redis struct {
	rdb *redis.Client
}

// NewRedis constructs the Redis repo
func NewRedis(rdb *redis.Client) *Redis {
	if rdb == nil {
		panic("discovery.repo requires a non nil redis client")
	}
	return &Redis{rdb: rdb}
}

// Append adds one record to the stream, trimming approximately at maxLenApprox
func (r *Redis) Append(ctx context.Context, key string, payload []byte, maxLenApprox int64) (string, error) {
	id, err := r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: key,
		MaxLen: maxLenApprox,
		Approx: true,
		Values: map[string]any{payloadField: payload},
	}).Result()
	if err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeUnavailable, "log append failed")
	}
	return id, nil
}

// AppendBatch pipelines one XADD per record and returns the assigned LSNs
// in input order. The pipeline is all-or-nothing from the caller's view:
// any command error fails the batch
func (r *Redis) AppendBatch(ctx context.Context, key string, payloads [][]byte, maxLenApprox int64) ([]string, error) {
	if len(payloads) == 0 {
		return nil, nil
	}
	cmds := make([]*redis.StringCmd, len(payloads))
	pipe := r.rdb.Pipeline()
	for i, p := range payloads {
		cmds[i] = pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: key,
			MaxLen: maxLenApprox,
			Approx: true,
			Values: map[string]any{payloadField: p},
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "log batch append failed")
	}
	ids := make([]string, len(cmds))
	for i, c := range cmds {
		ids[i] = c.Val()
	}
	return ids, nil
}

// Read returns up to count entries with LSN strictly greater than fromLSN.
// An empty fromLSN reads from the beginning of the retained window
func (r *Redis) Read(ctx context.Context, key, fromLSN string, count int64) ([]domain.LogEntry, error) {
	start := "-"
	if fromLSN != "" {
		start = "(" + fromLSN
	}
	msgs, err := r.rdb.XRangeN(ctx, key, start, "+", count).Result()
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "log read failed")
	}
	out := make([]domain.LogEntry, 0, len(msgs))
	for _, m := range msgs {
		var payload []byte
		if v, ok := m.Values[payloadField]; ok {
			if s, ok := v.(string); ok {
				payload = []byte(s)
			}
		}
		out = append(out, domain.LogEntry{LSN: m.ID, Payload: payload})
	}
	return out, nil
}

// SeenSet binds the shared dedup tier to a pair of keys under one base key
type SeenSet struct {
	rdb *redis.Client
	key string
}

// NewSeenSet constructs the shared seen set over the given base key
func NewSeenSet(rdb *redis.Client, key string) *SeenSet {
	if rdb == nil {
		panic("discovery.repo requires a non nil redis client")
	}
	return &SeenSet{rdb: rdb, key: key}
}

// Contains reports whether url is in the shared tier
func (s *SeenSet) Contains(ctx context.Context, url string) (bool, error) {
	ok, err := s.rdb.SIsMember(ctx, s.key, url).Result()
	if err != nil {
		return false, perr.Wrapf(err, perr.ErrorCodeUnavailable, "seen lookup failed")
	}
	return ok, nil
}

// Add inserts url with its first-seen instant. Re-adding keeps the
// original first-seen score so retention counts from first sight
func (s *SeenSet) Add(ctx context.Context, url string, firstSeen time.Time) error {
	pipe := s.rdb.Pipeline()
	pipe.SAdd(ctx, s.key, url)
	pipe.ZAddNX(ctx, s.key+agesSuffix, redis.Z{
		Score:  float64(firstSeen.UTC().Unix()),
		Member: url,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "seen add failed")
	}
	return nil
}

// Sweep evicts entries first seen before olderThan and returns the count.
// URLs inside the retention window are never touched
func (s *SeenSet) Sweep(ctx context.Context, olderThan time.Time) (int64, error) {
	cutoff := strconv.FormatInt(olderThan.UTC().Unix(), 10)
	ages := s.key + agesSuffix

	var removed int64
	for {
		urls, err := s.rdb.ZRangeByScore(ctx, ages, &redis.ZRangeBy{
			Min: "-inf", Max: "(" + cutoff, Count: 1000,
		}).Result()
		if err != nil {
			return removed, perr.Wrapf(err, perr.ErrorCodeUnavailable, "seen sweep scan failed")
		}
		if len(urls) == 0 {
			return removed, nil
		}
		members := make([]any, len(urls))
		for i, u := range urls {
			members[i] = u
		}
		pipe := s.rdb.Pipeline()
		pipe.SRem(ctx, s.key, members...)
		pipe.ZRem(ctx, ages, members...)
		if _, err := pipe.Exec(ctx); err != nil {
			return removed, perr.Wrapf(err, perr.ErrorCodeUnavailable, "seen sweep evict failed")
		}
		removed += int64(len(urls))
	}
}
