// Package sink implements secretpush's two AWS-backed destinations
// (SSM Parameter Store, Secrets Manager) behind pkg/sink.Sink, sharing
// a bounded, rate-limited worker pool with throttling-aware retry
// (spec §4.9, §5).
package sink

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/aws/smithy-go"
	"golang.org/x/time/rate"

	pkgsink "github.com/Josh5/secretpush/pkg/sink"
)

const (
	defaultConcurrency = 8
	defaultRateLimit   = 10.0
	retryBaseDelay     = 200 * time.Millisecond
	maxRetryAttempts   = 5
	maxRetryElapsed    = 30 * time.Second
)

// writeFunc performs a single attempt at writing one record and
// classifies its outcome. The pool retries it on a throttling error
// and returns whatever writeFunc produced once it stops retrying.
type writeFunc func(ctx context.Context, rec pkgsink.Record) (pkgsink.Event, error)

// runPool fans records out across a bounded worker pool, gated by a
// per-sink token bucket, retrying throttled calls with exponential
// backoff and full jitter. One event is emitted per record, in
// completion order, and the channel closes once every record has been
// attempted.
func runPool(ctx context.Context, sinkName string, records []pkgsink.Record, concurrency int, rps float64, write writeFunc) <-chan pkgsink.Event {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if rps <= 0 {
		rps = defaultRateLimit
	}
	limiter := rate.NewLimiter(rate.Limit(rps), int(math.Ceil(rps)))

	out := make(chan pkgsink.Event, len(records))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, rec := range records {
		rec := rec
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			out <- dispatchWithRetry(ctx, sinkName, rec, limiter, write)
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

func dispatchWithRetry(ctx context.Context, sinkName string, rec pkgsink.Record, limiter *rate.Limiter, write writeFunc) pkgsink.Event {
	start := time.Now()
	var last pkgsink.Event
	for attempt := 0; attempt < maxRetryAttempts; attempt++ {
		if ctx.Err() != nil {
			return pkgsink.Event{SinkName: sinkName, FullName: rec.FullName, SourceName: rec.SourceName, Outcome: pkgsink.Failed, Reason: pkgsink.ReasonAWS, Err: ctx.Err()}
		}
		if err := limiter.Wait(ctx); err != nil {
			return pkgsink.Event{SinkName: sinkName, FullName: rec.FullName, SourceName: rec.SourceName, Outcome: pkgsink.Failed, Reason: pkgsink.ReasonAWS, Err: err}
		}

		event, err := write(ctx, rec)
		event.SinkName = sinkName
		event.FullName = rec.FullName
		event.SourceName = rec.SourceName
		if err == nil {
			return event
		}
		last = event
		if !isThrottling(err) || time.Since(start) >= maxRetryElapsed {
			return last
		}
		sleepWithFullJitter(ctx, attempt)
	}
	return last
}

// sleepWithFullJitter sleeps a random duration in [0, base] where base
// doubles each attempt starting at retryBaseDelay (spec §4.9's
// "exponential backoff, full jitter").
func sleepWithFullJitter(ctx context.Context, attempt int) {
	backoff := retryBaseDelay * time.Duration(int64(1)<<uint(attempt))
	jittered := time.Duration(rand.Int63n(int64(backoff) + 1))
	select {
	case <-time.After(jittered):
	case <-ctx.Done():
	}
}

// isThrottling reports whether err is an AWS throttling-class error,
// the only class this system retries.
func isThrottling(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException", "RequestLimitExceeded", "ProvisionedThroughputExceededException", "Throttling", "SlowDown":
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "Throttling") || strings.Contains(msg, "TooManyRequests") || strings.Contains(msg, "RequestLimitExceeded")
}

// isAccessDenied reports whether err is an AWS permission-denial, which
// spec §4.9 says should be treated as "unknown" on the read path rather
// than aborting the item.
func isAccessDenied(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "AccessDeniedException"
	}
	return strings.Contains(err.Error(), "AccessDenied")
}
