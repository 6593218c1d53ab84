package event

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/wal2http/wal2http/internal/protocol"
)

// RelationResolver looks up the schema for a relation OID. Implemented by
// *replication.RelationCache; declared here as an interface so this package
// does not import replication (avoids a cycle, since replication depends on
// event for dispatch).
type RelationResolver interface {
	MustGet(oid uint32) (*protocol.RelationInfo, error)
}

// Context carries the per-message metadata that isn't part of the parsed
// message itself: the transaction's xid (nil outside a transaction), the
// LSN to report, the transaction's wall-clock timestamp, and the
// session-unique correlation id.
type Context struct {
	Xid           *uint32
	LSN           protocol.LSN
	Timestamp     time.Time
	CorrelationID string
}

// Format converts a parsed message into its canonical Event. Returns
// (Event{}, false, nil) for message kinds that produce no sink output
// (Type, Relation, StreamStart, StreamStop, StreamAbort) — callers should skip delivery in that
// case. A *protocol.UnknownRelation error is fatal for the event per
// spec.md §4.2.
func Format(msg protocol.Message, relations RelationResolver, ctx Context) (Event, bool, error) {
	base := Event{
		Xid:           ctx.Xid,
		LSN:           ctx.LSN.String(),
		Timestamp:     formatTimestamp(ctx.Timestamp),
		CorrelationID: ctx.CorrelationID,
	}

	switch m := msg.(type) {
	case *protocol.Begin:
		base.Kind = "begin"
		return base, true, nil

	case *protocol.Commit:
		base.Kind = "commit"
		return base, true, nil

	case *protocol.Insert:
		rel, err := relations.MustGet(m.RelationOID)
		if err != nil {
			return Event{}, false, err
		}
		base.Kind = "insert"
		base.Schema = rel.Namespace
		base.Table = rel.Name
		newCols, err := tupleToMap(m.New, rel)
		if err != nil {
			return Event{}, false, err
		}
		base.New = newCols
		return base, true, nil

	case *protocol.Update:
		rel, err := relations.MustGet(m.RelationOID)
		if err != nil {
			return Event{}, false, err
		}
		base.Kind = "update"
		base.Schema = rel.Namespace
		base.Table = rel.Name
		newCols, err := tupleToMap(m.New, rel)
		if err != nil {
			return Event{}, false, err
		}
		base.New = newCols
		if m.Old != nil {
			oldCols, err := tupleToMap(*m.Old, rel)
			if err != nil {
				return Event{}, false, err
			}
			base.Old = oldCols
		}
		return base, true, nil

	case *protocol.Delete:
		rel, err := relations.MustGet(m.RelationOID)
		if err != nil {
			return Event{}, false, err
		}
		base.Kind = "delete"
		base.Schema = rel.Namespace
		base.Table = rel.Name
		oldCols, err := tupleToMap(m.Old, rel)
		if err != nil {
			return Event{}, false, err
		}
		base.Old = oldCols
		return base, true, nil

	case *protocol.Truncate:
		base.Kind = "truncate"
		flags := int(m.Flags)
		base.TruncateFlags = &flags
		return base, true, nil

	case *protocol.Origin:
		base.Kind = "origin"
		return base, true, nil

	case *protocol.StreamCommit:
		base.Kind = "commit"
		return base, true, nil

	case *protocol.Type, *protocol.StreamStart, *protocol.StreamStop, *protocol.StreamAbort, *protocol.Relation:
		// No sink output: Type is schema bookkeeping, Relation updates the
		// cache only, stream envelopes are handled by the session's
		// buffering logic rather than emitted directly.
		return Event{}, false, nil

	default:
		return Event{}, false, nil
	}
}

func tupleToMap(tuple protocol.TupleData, rel *protocol.RelationInfo) (map[string]any, error) {
	out := make(map[string]any, len(tuple.Columns))
	for i, col := range tuple.Columns {
		name := fmt.Sprintf("col%d", i)
		if i < len(rel.Columns) {
			name = rel.Columns[i].Name
		}
		switch col.Kind {
		case protocol.TupleColumnNull:
			out[name] = nil
		case protocol.TupleColumnUnchangedTOAST:
			out[name] = unchangedTOASTSentinel
		case protocol.TupleColumnText:
			out[name] = string(col.Data)
		case protocol.TupleColumnBinary:
			out[name] = hex.EncodeToString(col.Data)
		default:
			return nil, fmt.Errorf("unexpected tuple column kind %q for column %q", col.Kind, name)
		}
	}
	return out, nil
}
