package protocol

import "fmt"

// ProtocolError reports a malformed pgoutput payload: an empty message, a
// decode that ran off the end of the slice, an unexpected tuple tag, or a
// tuple column kind outside {n,u,t,b}. An unknown top-level message kind is
// not a ProtocolError; Decode returns a nil message for it. The stream is
// desynchronized once this occurs.
type ProtocolError struct {
	Kind   byte
	Offset int
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error decoding kind %q at offset %d: %s", e.Kind, e.Offset, e.Reason)
}

// UnknownRelation reports a row event referencing a relation OID that has
// not been announced by a prior Relation message in this session.
type UnknownRelation struct {
	OID uint32
}

func (e *UnknownRelation) Error() string {
	return fmt.Sprintf("unknown relation OID %d: row event arrived before its Relation message", e.OID)
}
