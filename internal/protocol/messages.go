package protocol

// Message is the tagged union of every pgoutput logical-replication message
// this parser understands. Concrete types below all implement it.
type Message interface {
	isMessage()
}

// ReplicaIdentity is the single-byte replica-identity tag carried on a
// Relation message: 'd' default, 'n' nothing, 'f' full, 'i' using index.
type ReplicaIdentity byte

const (
	ReplicaIdentityDefault ReplicaIdentity = 'd'
	ReplicaIdentityNothing ReplicaIdentity = 'n'
	ReplicaIdentityFull    ReplicaIdentity = 'f'
	ReplicaIdentityIndex   ReplicaIdentity = 'i'
)

// Column describes one column of a relation's schema as announced by a
// Relation message.
type Column struct {
	IsKey    bool
	Name     string
	TypeOID  uint32
	TypeMod  int32
}

// RelationInfo is the schema of a relation as of the most recent Relation
// message for its OID. Never removed during a session; replaced atomically
// on the next Relation message for the same OID.
type RelationInfo struct {
	OID             uint32
	Namespace       string
	Name            string
	ReplicaIdentity ReplicaIdentity
	Columns         []Column
}

// TupleColumnKind is the one-byte kind tag of a tuple column value.
type TupleColumnKind byte

const (
	TupleColumnNull            TupleColumnKind = 'n'
	TupleColumnUnchangedTOAST  TupleColumnKind = 'u'
	TupleColumnText            TupleColumnKind = 't'
	TupleColumnBinary          TupleColumnKind = 'b'
)

// TupleColumn is one column's value within a TupleData.
type TupleColumn struct {
	Kind TupleColumnKind
	Data []byte // nil for Null/UnchangedTOAST
}

// TupleData is an ordered list of column values, one per column of the
// relation as of when the row was produced.
type TupleData struct {
	Columns []TupleColumn
}

// KeyKind distinguishes whether an Update/Delete's old-tuple carries only
// key columns ('K') or the full old row ('O').
type KeyKind byte

const (
	KeyKindNone KeyKind = 0
	KeyKindKey  KeyKind = 'K'
	KeyKindOld  KeyKind = 'O'
)

type Begin struct {
	FinalLSN  LSN
	Timestamp int64 // microseconds since PostgreSQL epoch (2000-01-01 UTC)
	Xid       uint32
}

func (*Begin) isMessage() {}

type Commit struct {
	Flags     int8
	CommitLSN LSN
	EndLSN    LSN
	Timestamp int64
}

func (*Commit) isMessage() {}

type Relation struct {
	Info RelationInfo
}

func (*Relation) isMessage() {}

type Insert struct {
	RelationOID uint32
	New         TupleData
	Streaming   bool
	Xid         uint32 // only set when Streaming
}

func (*Insert) isMessage() {}

type Update struct {
	RelationOID uint32
	KeyKind     KeyKind // KeyKindNone if no old-row info present
	Old         *TupleData
	New         TupleData
	Streaming   bool
	Xid         uint32
}

func (*Update) isMessage() {}

type Delete struct {
	RelationOID uint32
	KeyKind     KeyKind // always KeyKindKey or KeyKindOld
	Old         TupleData
	Streaming   bool
	Xid         uint32
}

func (*Delete) isMessage() {}

const (
	TruncateCascade        = 1 << 0
	TruncateRestartIdentity = 1 << 1
)

type Truncate struct {
	RelationOIDs []uint32
	Flags        int8
	Streaming    bool
	Xid          uint32
}

func (*Truncate) isMessage() {}

type Type struct {
	OID       uint32
	Namespace string
	Name      string
}

func (*Type) isMessage() {}

type Origin struct {
	LSN  LSN
	Name string
}

func (*Origin) isMessage() {}

type StreamStart struct {
	Xid          uint32
	FirstSegment bool
}

func (*StreamStart) isMessage() {}

type StreamStop struct{}

func (*StreamStop) isMessage() {}

type StreamCommit struct {
	Xid       uint32
	Flags     int8
	CommitLSN LSN
	EndLSN    LSN
	Timestamp int64
}

func (*StreamCommit) isMessage() {}

type StreamAbort struct {
	Xid    uint32
	Subxid uint32
}

func (*StreamAbort) isMessage() {}
