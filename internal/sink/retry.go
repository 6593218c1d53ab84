package sink

import (
	"context"
	"log/slog"
	"time"

	"github.com/jpillora/backoff"

	"github.com/wal2http/wal2http/internal/event"
)

// maxAttempts is the total number of delivery attempts (one initial try
// plus up to four retries) before the retry envelope gives up.
const maxAttempts = 5

// Notifier is invoked once retries are exhausted. Implementations must not
// block for long and must not themselves retry; a Notifier failure is
// logged and otherwise ignored (spec.md §4.5).
type Notifier interface {
	NotifyFailure(ctx context.Context, ev event.Event, cause error) error
}

// retrying wraps a Sink with the exponential-backoff retry envelope from
// spec.md §4.5: on a TransientError, sleep min(2^(attempt-1), 30s) and try
// again, up to maxAttempts total attempts; a PermanentError (or retry
// exhaustion) returns immediately without advancing applied_lsn upstream.
type retrying struct {
	inner    Sink
	notifier Notifier
	logger   *slog.Logger
}

// WithRetry wraps s with the retry envelope. notifier may be nil, in which
// case retry exhaustion is logged but no notification is sent.
func WithRetry(s Sink, notifier Notifier, logger *slog.Logger) Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &retrying{inner: s, notifier: notifier, logger: logger}
}

func (r *retrying) Deliver(ctx context.Context, ev event.Event) error {
	b := &backoff.Backoff{
		Min:    1 * time.Second,
		Max:    30 * time.Second,
		Factor: 2,
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := r.inner.Deliver(ctx, ev)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsTransient(err) {
			return err
		}

		if attempt == maxAttempts-1 {
			break
		}

		delay := b.Duration()
		r.logger.Warn("sink delivery failed, retrying",
			"correlation_id", ev.CorrelationID, "attempt", attempt+1, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return &PermanentError{Err: ctx.Err()}
		case <-time.After(delay):
		}
	}

	r.logger.Error("sink delivery exhausted retries", "correlation_id", ev.CorrelationID, "error", lastErr)
	if r.notifier != nil {
		if notifyErr := r.notifier.NotifyFailure(ctx, ev, lastErr); notifyErr != nil {
			r.logger.Error("failure notifier errored", "error", notifyErr)
		}
	}
	return &PermanentError{Err: lastErr}
}
