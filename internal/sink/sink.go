// Package sink delivers formatted events to a pluggable destination (HTTP
// webhook, Hook0, or stdout) with bounded exponential-backoff retry.
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/wal2http/wal2http/internal/event"
)

// Sink is the capability every delivery destination implements: a single
// attempt at delivering one event. Deliver must not retry internally —
// retry is the job of WithRetry, which wraps any Sink.
type Sink interface {
	Deliver(ctx context.Context, ev event.Event) error
}

// TransientError marks a delivery failure the retry envelope should retry:
// connection errors, timeouts, HTTP 408/429/5xx.
type TransientError struct{ Err error }

func (e *TransientError) Error() string { return fmt.Sprintf("transient delivery error: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a delivery failure that must not be retried: HTTP
// 4xx other than 408/429, validation/configuration errors, or retry
// exhaustion.
type PermanentError struct{ Err error }

func (e *PermanentError) Error() string { return fmt.Sprintf("permanent delivery error: %v", e.Err) }
func (e *PermanentError) Unwrap() error { return e.Err }

// IsTransient reports whether err (or anything it wraps) is a TransientError.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}
