package protocol

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// wireBuilder assembles pgoutput message bytes for test fixtures, mirroring
// the big-endian, null-terminated, length-prefixed layouts decode.go reads.
type wireBuilder struct {
	buf bytes.Buffer
}

func (w *wireBuilder) byte(b byte) *wireBuilder {
	w.buf.WriteByte(b)
	return w
}

func (w *wireBuilder) int8(v int8) *wireBuilder {
	w.buf.WriteByte(byte(v))
	return w
}

func (w *wireBuilder) uint32(v uint32) *wireBuilder {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
	return w
}

func (w *wireBuilder) int32(v int32) *wireBuilder { return w.uint32(uint32(v)) }

func (w *wireBuilder) uint16(v uint16) *wireBuilder {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
	return w
}

func (w *wireBuilder) int64(v int64) *wireBuilder {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	w.buf.Write(b[:])
	return w
}

func (w *wireBuilder) cstring(s string) *wireBuilder {
	w.buf.WriteString(s)
	w.buf.WriteByte(0)
	return w
}

func (w *wireBuilder) textCol(s string) *wireBuilder {
	w.byte('t')
	w.int32(int32(len(s)))
	w.buf.WriteString(s)
	return w
}

func (w *wireBuilder) nullCol() *wireBuilder      { return w.byte('n') }
func (w *wireBuilder) unchangedCol() *wireBuilder { return w.byte('u') }

func (w *wireBuilder) bytes() []byte { return w.buf.Bytes() }

func TestDecodeBegin(t *testing.T) {
	data := new(wireBuilder).byte('B').int64(0x100).int64(123456).uint32(42).bytes()

	msg, err := Decode(data, false)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	begin, ok := msg.(*Begin)
	if !ok {
		t.Fatalf("got %T, want *Begin", msg)
	}
	if begin.FinalLSN != 0x100 || begin.Timestamp != 123456 || begin.Xid != 42 {
		t.Errorf("got %+v", begin)
	}
}

func TestDecodeCommit(t *testing.T) {
	data := new(wireBuilder).byte('C').int8(0).int64(0x100).int64(0x110).int64(999).bytes()

	msg, err := Decode(data, false)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	commit, ok := msg.(*Commit)
	if !ok {
		t.Fatalf("got %T, want *Commit", msg)
	}
	if commit.CommitLSN != 0x100 || commit.EndLSN != 0x110 {
		t.Errorf("got %+v", commit)
	}
}

func TestDecodeRelation(t *testing.T) {
	data := new(wireBuilder).
		byte('R').
		uint32(16384).
		cstring("public").
		cstring("t").
		byte('d').
		uint16(2).
		byte(1).cstring("id").uint32(23).int32(-1).
		byte(0).cstring("name").uint32(25).int32(-1).
		bytes()

	msg, err := Decode(data, false)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	rel, ok := msg.(*Relation)
	if !ok {
		t.Fatalf("got %T, want *Relation", msg)
	}
	if rel.Info.OID != 16384 || rel.Info.Namespace != "public" || rel.Info.Name != "t" {
		t.Fatalf("got %+v", rel.Info)
	}
	if len(rel.Info.Columns) != 2 || rel.Info.Columns[0].Name != "id" || !rel.Info.Columns[0].IsKey {
		t.Fatalf("got columns %+v", rel.Info.Columns)
	}
	if rel.Info.Columns[1].Name != "name" || rel.Info.Columns[1].IsKey {
		t.Fatalf("got columns %+v", rel.Info.Columns)
	}
}

func TestDecodeInsert(t *testing.T) {
	data := new(wireBuilder).
		byte('I').
		uint32(16384).
		byte('N').
		uint16(2).
		textCol("1").
		textCol("a").
		bytes()

	msg, err := Decode(data, false)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	ins, ok := msg.(*Insert)
	if !ok {
		t.Fatalf("got %T, want *Insert", msg)
	}
	if ins.RelationOID != 16384 || len(ins.New.Columns) != 2 {
		t.Fatalf("got %+v", ins)
	}
	if string(ins.New.Columns[0].Data) != "1" || string(ins.New.Columns[1].Data) != "a" {
		t.Fatalf("got columns %+v", ins.New.Columns)
	}
	if ins.Streaming {
		t.Errorf("expected Streaming=false when inStream=false")
	}
}

func TestDecodeUpdateWithKeyOldTuple(t *testing.T) {
	data := new(wireBuilder).
		byte('U').
		uint32(16384).
		byte('K').
		uint16(1).
		textCol("1").
		byte('N').
		uint16(2).
		textCol("1").
		unchangedCol().
		bytes()

	msg, err := Decode(data, false)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	upd, ok := msg.(*Update)
	if !ok {
		t.Fatalf("got %T, want *Update", msg)
	}
	if upd.KeyKind != KeyKindKey || upd.Old == nil || len(upd.Old.Columns) != 1 {
		t.Fatalf("got %+v", upd)
	}
	if upd.New.Columns[1].Kind != TupleColumnUnchangedTOAST {
		t.Fatalf("got new columns %+v", upd.New.Columns)
	}
}

func TestDecodeUpdateNoOldTuple(t *testing.T) {
	data := new(wireBuilder).
		byte('U').
		uint32(16384).
		byte('N').
		uint16(1).
		textCol("x").
		bytes()

	msg, err := Decode(data, false)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	upd := msg.(*Update)
	if upd.KeyKind != KeyKindNone || upd.Old != nil {
		t.Fatalf("got %+v", upd)
	}
}

func TestDecodeDelete(t *testing.T) {
	data := new(wireBuilder).
		byte('D').
		uint32(16384).
		byte('O').
		uint16(1).
		textCol("1").
		bytes()

	msg, err := Decode(data, false)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	del := msg.(*Delete)
	if del.KeyKind != KeyKindOld || len(del.Old.Columns) != 1 {
		t.Fatalf("got %+v", del)
	}
}

func TestDecodeTruncate(t *testing.T) {
	data := new(wireBuilder).
		byte('T').
		uint32(2).
		int8(TruncateCascade).
		uint32(100).
		uint32(200).
		bytes()

	msg, err := Decode(data, false)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	tr := msg.(*Truncate)
	if len(tr.RelationOIDs) != 2 || tr.RelationOIDs[0] != 100 || tr.RelationOIDs[1] != 200 {
		t.Fatalf("got %+v", tr)
	}
	if tr.Flags&TruncateCascade == 0 {
		t.Errorf("expected CASCADE flag set")
	}
}

func TestDecodeStreamingEnvelope(t *testing.T) {
	data := new(wireBuilder).
		byte('I').
		uint32(7). // subtransaction xid, present because inStream=true
		uint32(16384).
		byte('N').
		uint16(1).
		textCol("1").
		bytes()

	msg, err := Decode(data, true)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	ins := msg.(*Insert)
	if !ins.Streaming || ins.Xid != 7 {
		t.Fatalf("got %+v", ins)
	}
}

func TestDecodeStreamStartStopCommitAbort(t *testing.T) {
	start, err := Decode(new(wireBuilder).byte('S').uint32(7).int8(1).bytes(), false)
	if err != nil || start.(*StreamStart).Xid != 7 || !start.(*StreamStart).FirstSegment {
		t.Fatalf("StreamStart: %+v, %v", start, err)
	}

	if _, err := Decode([]byte{'E'}, false); err != nil {
		t.Fatalf("StreamStop: %v", err)
	}

	commit, err := Decode(new(wireBuilder).byte('c').uint32(7).int8(0).int64(0x100).int64(0x110).int64(1).bytes(), false)
	if err != nil || commit.(*StreamCommit).EndLSN != 0x110 {
		t.Fatalf("StreamCommit: %+v, %v", commit, err)
	}

	abort, err := Decode(new(wireBuilder).byte('A').uint32(7).uint32(3).bytes(), false)
	if err != nil || abort.(*StreamAbort).Xid != 7 || abort.(*StreamAbort).Subxid != 3 {
		t.Fatalf("StreamAbort: %+v, %v", abort, err)
	}
}

func TestDecodeUnknownKindIsSkippedNotFatal(t *testing.T) {
	msg, err := Decode([]byte{'Z'}, false)
	if err != nil {
		t.Fatalf("unknown top-level kind should not error, got %v", err)
	}
	if msg != nil {
		t.Fatalf("expected nil message for unknown kind, got %+v", msg)
	}
}

func TestDecodeTruncatedBufferFails(t *testing.T) {
	_, err := Decode([]byte{'B', 0, 0}, false)
	if err == nil {
		t.Fatal("expected ProtocolError for truncated Begin")
	}
	if _, ok := err.(*ProtocolError); !ok {
		t.Fatalf("got %T, want *ProtocolError", err)
	}
}

func TestDecodeUnknownTupleColumnKindFails(t *testing.T) {
	data := new(wireBuilder).
		byte('I').
		uint32(16384).
		byte('N').
		uint16(1).
		byte('?'). // not in {n,u,t,b}
		bytes()

	_, err := Decode(data, false)
	if err == nil {
		t.Fatal("expected ProtocolError for unknown tuple column kind")
	}
}

func TestLSNStringAndParseRoundTrip(t *testing.T) {
	cases := []LSN{0, 0x110, 0xDEADBEEF, 0x100000000}
	for _, lsn := range cases {
		s := lsn.String()
		parsed, err := ParseLSN(s)
		if err != nil {
			t.Fatalf("ParseLSN(%q): %v", s, err)
		}
		if parsed != lsn {
			t.Errorf("round trip %v -> %q -> %v", lsn, s, parsed)
		}
	}
}
