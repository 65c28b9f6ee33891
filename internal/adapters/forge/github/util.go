package github

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"
)

func parseRateHeaders(h http.Header) (remaining int, reset time.Time) {
	remaining = -1
	if s := h.Get("X-RateLimit-Remaining"); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			remaining = v
		}
	}
	if s := h.Get("X-RateLimit-Reset"); s != "" {
		if sec, err := strconv.Atoi(s); err == nil && sec > 0 {
			reset = time.Unix(int64(sec), 0).UTC()
		}
	}
	return
}

// transientWait is the 5xx/transport backoff ladder: 5s, 10s, 15s
func transientWait(attempt int) time.Duration {
	return time.Duration(attempt+1) * 5 * time.Second
}

// rateLimitWait is the 403 backoff ladder: 60s, 120s, 180s
func rateLimitWait(attempt int) time.Duration {
	return time.Duration(attempt+1) * 60 * time.Second
}

func drainAndClose(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 512))
	_ = rc.Close()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
