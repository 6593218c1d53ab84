package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"github.com/wal2http/wal2http/internal/event"
)

// Stdout prints each event as a single line of JSON, flushed immediately.
// It never fails transiently; a marshal error is permanent (it will never
// succeed on retry).
type Stdout struct {
	w *bufio.Writer
}

// NewStdout wraps w (typically os.Stdout) for line-oriented event printing.
func NewStdout(w io.Writer) *Stdout {
	return &Stdout{w: bufio.NewWriter(w)}
}

func (s *Stdout) Deliver(_ context.Context, ev event.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return &PermanentError{Err: err}
	}
	if _, err := s.w.Write(data); err != nil {
		return &PermanentError{Err: err}
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return &PermanentError{Err: err}
	}
	if err := s.w.Flush(); err != nil {
		return &PermanentError{Err: err}
	}
	return nil
}
