package replication

import (
	"context"
	"time"

	"github.com/wal2http/wal2http/internal/event"
	"github.com/wal2http/wal2http/internal/protocol"
)

// bufferedEvent is one streaming-transaction change held until its
// StreamCommit (emitted then, in order) or discarded on StreamAbort.
type bufferedEvent struct {
	msg protocol.Message
	xid uint32
}

// dispatch applies one decoded message to session state and, for message
// kinds that produce sink output, delivers it. Returns a non-nil error
// only for conditions that must terminate the session (UnknownRelation or
// another event-formatting failure; decode errors are returned by the
// caller before dispatch is reached) — sink delivery
// failures are logged here and otherwise swallowed, since §4.5 requires
// the session to keep streaming with applied_lsn simply stalled.
func (s *Session) dispatch(ctx context.Context, msg protocol.Message) error {
	switch m := msg.(type) {
	case *protocol.Relation:
		s.state.Relations.Put(m.Info)
		return nil

	case *protocol.Type:
		return nil

	case *protocol.Begin:
		s.state.BeginTransaction(m.FinalLSN)
		s.txnLSN = m.FinalLSN
		s.txnTimestamp = event.TimeFromPG(m.Timestamp)
		s.txnXid = m.Xid
		_, err := s.deliver(ctx, msg, s.eventContext(m.FinalLSN, s.txnTimestamp, &m.Xid))
		return err

	case *protocol.Commit:
		delivered, err := s.deliver(ctx, msg, s.eventContext(m.EndLSN, event.TimeFromPG(m.Timestamp), &s.txnXid))
		if err != nil {
			return err
		}
		if delivered {
			s.state.CommitTransaction(m.EndLSN)
		}
		return nil

	case *protocol.Origin:
		_, err := s.deliver(ctx, msg, s.eventContext(s.txnLSN, s.txnTimestamp, &s.txnXid))
		return err

	case *protocol.Insert:
		return s.dispatchRowEvent(ctx, msg, m.Streaming, m.Xid)

	case *protocol.Update:
		return s.dispatchRowEvent(ctx, msg, m.Streaming, m.Xid)

	case *protocol.Delete:
		return s.dispatchRowEvent(ctx, msg, m.Streaming, m.Xid)

	case *protocol.Truncate:
		return s.dispatchRowEvent(ctx, msg, m.Streaming, m.Xid)

	case *protocol.StreamStart:
		s.inStream = true
		return nil

	case *protocol.StreamStop:
		s.inStream = false
		return nil

	case *protocol.StreamCommit:
		return s.flushStream(ctx, m)

	case *protocol.StreamAbort:
		delete(s.streamBuf, m.Xid)
		return nil

	default:
		return nil
	}
}

// dispatchRowEvent routes a row-change message either straight to delivery
// (ordinary transaction) or into the per-xid stream buffer (streaming
// transaction, held until StreamCommit/StreamAbort).
func (s *Session) dispatchRowEvent(ctx context.Context, msg protocol.Message, streaming bool, xid uint32) error {
	if streaming {
		s.streamBuf[xid] = append(s.streamBuf[xid], bufferedEvent{msg: msg, xid: xid})
		return nil
	}
	_, err := s.deliver(ctx, msg, s.eventContext(s.txnLSN, s.txnTimestamp, &s.txnXid))
	return err
}

// flushStream emits every event buffered for m.Xid, in order, then the
// commit event itself, gating applied_lsn on the commit's delivery result.
// Per spec.md §8 property 7, an aborted stream (handled in dispatch above)
// never reaches here and its buffer is simply discarded.
func (s *Session) flushStream(ctx context.Context, m *protocol.StreamCommit) error {
	ts := event.TimeFromPG(m.Timestamp)
	ectx := s.eventContext(m.EndLSN, ts, &m.Xid)

	for _, buffered := range s.streamBuf[m.Xid] {
		if _, err := s.deliver(ctx, buffered.msg, ectx); err != nil {
			return err
		}
	}
	delete(s.streamBuf, m.Xid)

	delivered, err := s.deliver(ctx, m, ectx)
	if err != nil {
		return err
	}
	if delivered {
		s.state.CommitTransaction(m.EndLSN)
	}
	return nil
}

func (s *Session) eventContext(lsn protocol.LSN, ts time.Time, xid *uint32) event.Context {
	return event.Context{
		Xid:           xid,
		LSN:           lsn,
		Timestamp:     ts,
		CorrelationID: s.correlationID,
	}
}

// deliver formats msg and, if it produces sink output, hands it to the
// sink. A formatter error (UnknownRelation) is returned to the caller as
// fatal; a sink delivery error is logged here and swallowed, matching
// §4.5's "the session logs but continues streaming". The returned bool
// reports whether delivery succeeded, used by callers that gate LSN
// advancement on it.
func (s *Session) deliver(ctx context.Context, msg protocol.Message, ectx event.Context) (bool, error) {
	ev, ok, err := event.Format(msg, s.state.Relations, ectx)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := s.sink.Deliver(ctx, ev); err != nil {
		s.logger.Error("sink delivery failed", "kind", ev.Kind, "lsn", ev.LSN, "correlation_id", ev.CorrelationID, "error", err)
		return false, nil
	}
	return true, nil
}
