package event

import (
	"testing"
	"time"

	"github.com/wal2http/wal2http/internal/protocol"
)

type fakeRelations struct {
	infos map[uint32]*protocol.RelationInfo
}

func (f *fakeRelations) MustGet(oid uint32) (*protocol.RelationInfo, error) {
	info, ok := f.infos[oid]
	if !ok {
		return nil, &protocol.UnknownRelation{OID: oid}
	}
	return info, nil
}

func newFakeRelations() *fakeRelations {
	return &fakeRelations{infos: map[uint32]*protocol.RelationInfo{
		16384: {
			OID:       16384,
			Namespace: "public",
			Name:      "t",
			Columns: []protocol.Column{
				{Name: "id"},
				{Name: "blob"},
				{Name: "note"},
			},
		},
	}}
}

func TestFormatInsertShape(t *testing.T) {
	rel := newFakeRelations()
	msg := &protocol.Insert{
		RelationOID: 16384,
		New: protocol.TupleData{Columns: []protocol.TupleColumn{
			{Kind: protocol.TupleColumnText, Data: []byte("1")},
			{Kind: protocol.TupleColumnBinary, Data: []byte{0xDE, 0xAD, 0xBE, 0xEF}},
			{Kind: protocol.TupleColumnNull},
		}},
	}

	ctx := Context{LSN: 0x110, Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), CorrelationID: "c1"}
	ev, ok, err := Format(msg, rel, ctx)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true for Insert")
	}

	if ev.Kind != "insert" || ev.Schema != "public" || ev.Table != "t" {
		t.Fatalf("got %+v", ev)
	}
	if ev.New["id"] != "1" {
		t.Errorf("got id=%v", ev.New["id"])
	}
	if ev.New["blob"] != "deadbeef" {
		t.Errorf("got blob=%v, want hex-encoded", ev.New["blob"])
	}
	if ev.New["note"] != nil {
		t.Errorf("got note=%v, want nil for null column", ev.New["note"])
	}
	if ev.LSN != "0/110" {
		t.Errorf("got lsn=%q", ev.LSN)
	}
}

func TestFormatUnchangedTOASTSentinel(t *testing.T) {
	rel := newFakeRelations()
	msg := &protocol.Update{
		RelationOID: 16384,
		New: protocol.TupleData{Columns: []protocol.TupleColumn{
			{Kind: protocol.TupleColumnText, Data: []byte("1")},
			{Kind: protocol.TupleColumnUnchangedTOAST},
			{Kind: protocol.TupleColumnText, Data: []byte("new")},
		}},
	}

	ev, ok, err := Format(msg, rel, Context{})
	if err != nil || !ok {
		t.Fatalf("Format: ok=%v err=%v", ok, err)
	}

	sentinel, isMap := ev.New["blob"].(map[string]any)
	if !isMap || sentinel["__unchanged__"] != true {
		t.Fatalf("got blob=%#v, want unchanged-toast sentinel", ev.New["blob"])
	}
}

func TestFormatUnknownRelationIsFatal(t *testing.T) {
	rel := newFakeRelations()
	msg := &protocol.Insert{RelationOID: 99999}

	_, _, err := Format(msg, rel, Context{})
	if err == nil {
		t.Fatal("expected UnknownRelation error")
	}
	if _, ok := err.(*protocol.UnknownRelation); !ok {
		t.Fatalf("got %T, want *protocol.UnknownRelation", err)
	}
}

func TestFormatSkipsBookkeepingMessages(t *testing.T) {
	rel := newFakeRelations()
	for _, msg := range []protocol.Message{
		&protocol.Type{OID: 1, Name: "int4"},
		&protocol.StreamStart{Xid: 1},
		&protocol.StreamStop{},
		&protocol.Relation{Info: protocol.RelationInfo{OID: 1}},
	} {
		_, ok, err := Format(msg, rel, Context{})
		if err != nil {
			t.Fatalf("Format(%T): %v", msg, err)
		}
		if ok {
			t.Errorf("Format(%T) should produce no sink output", msg)
		}
	}
}

func TestFormatTruncateCarriesFlags(t *testing.T) {
	rel := newFakeRelations()
	msg := &protocol.Truncate{RelationOIDs: []uint32{16384}, Flags: protocol.TruncateCascade}

	ev, ok, err := Format(msg, rel, Context{})
	if err != nil || !ok {
		t.Fatalf("Format: ok=%v err=%v", ok, err)
	}
	if ev.Kind != "truncate" || ev.TruncateFlags == nil || *ev.TruncateFlags != protocol.TruncateCascade {
		t.Fatalf("got %+v", ev)
	}
}
