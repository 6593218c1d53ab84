package protocol

// Decode parses the payload of a single pgoutput logical-replication
// message (the bytes of a CopyBoth 'w' message after its 25-byte XLogData
// header has been stripped). inStream must be true between a StreamStart
// and its matching StreamStop/StreamCommit/StreamAbort — while true,
// Insert/Update/Delete/Truncate carry a leading 4-byte subtransaction xid.
//
// An unknown top-level kind byte is forward-compatibility: callers should
// log and skip rather than treat it as fatal. Every other decode failure
// (truncated buffer, bad tuple column kind) returns *ProtocolError and is
// fatal for the session per spec: the stream is desynchronized.
func Decode(data []byte, inStream bool) (Message, error) {
	buf := NewBuffer(data)
	kind, err := buf.Byte()
	if err != nil {
		return nil, &ProtocolError{Offset: buf.Offset(), Reason: "empty message"}
	}

	switch kind {
	case 'B':
		return decodeBegin(buf)
	case 'C':
		return decodeCommit(buf)
	case 'R':
		return decodeRelation(buf)
	case 'I':
		return decodeInsert(buf, inStream)
	case 'U':
		return decodeUpdate(buf, inStream)
	case 'D':
		return decodeDelete(buf, inStream)
	case 'T':
		return decodeTruncate(buf, inStream)
	case 'Y':
		return decodeType(buf)
	case 'O':
		return decodeOrigin(buf)
	case 'S':
		return decodeStreamStart(buf)
	case 'E':
		return &StreamStop{}, nil
	case 'c':
		return decodeStreamCommit(buf)
	case 'A':
		return decodeStreamAbort(buf)
	default:
		return nil, nil // unknown top-level kind: caller logs and skips
	}
}

func wrap(kind byte, buf *Buffer, err error) error {
	if err == nil {
		return nil
	}
	return &ProtocolError{Kind: kind, Offset: buf.Offset(), Reason: err.Error()}
}

func decodeBegin(buf *Buffer) (Message, error) {
	finalLSN, err := buf.Int64()
	if err != nil {
		return nil, wrap('B', buf, err)
	}
	ts, err := buf.Int64()
	if err != nil {
		return nil, wrap('B', buf, err)
	}
	xid, err := buf.Uint32()
	if err != nil {
		return nil, wrap('B', buf, err)
	}
	return &Begin{FinalLSN: LSN(finalLSN), Timestamp: ts, Xid: xid}, nil
}

func decodeCommit(buf *Buffer) (Message, error) {
	flags, err := buf.Int8()
	if err != nil {
		return nil, wrap('C', buf, err)
	}
	commitLSN, err := buf.Int64()
	if err != nil {
		return nil, wrap('C', buf, err)
	}
	endLSN, err := buf.Int64()
	if err != nil {
		return nil, wrap('C', buf, err)
	}
	ts, err := buf.Int64()
	if err != nil {
		return nil, wrap('C', buf, err)
	}
	return &Commit{Flags: flags, CommitLSN: LSN(commitLSN), EndLSN: LSN(endLSN), Timestamp: ts}, nil
}

func decodeRelation(buf *Buffer) (Message, error) {
	oid, err := buf.Uint32()
	if err != nil {
		return nil, wrap('R', buf, err)
	}
	ns, err := buf.CString()
	if err != nil {
		return nil, wrap('R', buf, err)
	}
	name, err := buf.CString()
	if err != nil {
		return nil, wrap('R', buf, err)
	}
	identityByte, err := buf.Byte()
	if err != nil {
		return nil, wrap('R', buf, err)
	}
	ncols, err := buf.Uint16()
	if err != nil {
		return nil, wrap('R', buf, err)
	}
	cols := make([]Column, 0, ncols)
	for i := uint16(0); i < ncols; i++ {
		keyFlag, err := buf.Byte()
		if err != nil {
			return nil, wrap('R', buf, err)
		}
		colName, err := buf.CString()
		if err != nil {
			return nil, wrap('R', buf, err)
		}
		typeOID, err := buf.Uint32()
		if err != nil {
			return nil, wrap('R', buf, err)
		}
		typeMod, err := buf.Int32()
		if err != nil {
			return nil, wrap('R', buf, err)
		}
		cols = append(cols, Column{IsKey: keyFlag != 0, Name: colName, TypeOID: typeOID, TypeMod: typeMod})
	}
	return &Relation{Info: RelationInfo{
		OID:             oid,
		Namespace:       ns,
		Name:            name,
		ReplicaIdentity: ReplicaIdentity(identityByte),
		Columns:         cols,
	}}, nil
}

func decodeStreamXid(buf *Buffer, inStream bool, kind byte) (uint32, error) {
	if !inStream {
		return 0, nil
	}
	xid, err := buf.Uint32()
	if err != nil {
		return 0, wrap(kind, buf, err)
	}
	return xid, nil
}

func decodeInsert(buf *Buffer, inStream bool) (Message, error) {
	xid, err := decodeStreamXid(buf, inStream, 'I')
	if err != nil {
		return nil, err
	}
	oid, err := buf.Uint32()
	if err != nil {
		return nil, wrap('I', buf, err)
	}
	tupleTag, err := buf.Byte()
	if err != nil {
		return nil, wrap('I', buf, err)
	}
	if tupleTag != 'N' {
		return nil, &ProtocolError{Kind: 'I', Offset: buf.Offset(), Reason: "expected 'N' tuple tag"}
	}
	tuple, err := decodeTuple(buf, 'I')
	if err != nil {
		return nil, err
	}
	return &Insert{RelationOID: oid, New: tuple, Streaming: inStream, Xid: xid}, nil
}

func decodeUpdate(buf *Buffer, inStream bool) (Message, error) {
	xid, err := decodeStreamXid(buf, inStream, 'U')
	if err != nil {
		return nil, err
	}
	oid, err := buf.Uint32()
	if err != nil {
		return nil, wrap('U', buf, err)
	}
	tag, err := buf.Byte()
	if err != nil {
		return nil, wrap('U', buf, err)
	}

	var old *TupleData
	var keyKind KeyKind
	switch tag {
	case 'K', 'O':
		keyKind = KeyKind(tag)
		t, err := decodeTuple(buf, 'U')
		if err != nil {
			return nil, err
		}
		old = &t
		tag, err = buf.Byte()
		if err != nil {
			return nil, wrap('U', buf, err)
		}
	}
	if tag != 'N' {
		return nil, &ProtocolError{Kind: 'U', Offset: buf.Offset(), Reason: "expected 'N' tuple tag"}
	}
	newTuple, err := decodeTuple(buf, 'U')
	if err != nil {
		return nil, err
	}
	return &Update{RelationOID: oid, KeyKind: keyKind, Old: old, New: newTuple, Streaming: inStream, Xid: xid}, nil
}

func decodeDelete(buf *Buffer, inStream bool) (Message, error) {
	xid, err := decodeStreamXid(buf, inStream, 'D')
	if err != nil {
		return nil, err
	}
	oid, err := buf.Uint32()
	if err != nil {
		return nil, wrap('D', buf, err)
	}
	tag, err := buf.Byte()
	if err != nil {
		return nil, wrap('D', buf, err)
	}
	if tag != 'K' && tag != 'O' {
		return nil, &ProtocolError{Kind: 'D', Offset: buf.Offset(), Reason: "expected 'K' or 'O' tuple tag"}
	}
	old, err := decodeTuple(buf, 'D')
	if err != nil {
		return nil, err
	}
	return &Delete{RelationOID: oid, KeyKind: KeyKind(tag), Old: old, Streaming: inStream, Xid: xid}, nil
}

func decodeTruncate(buf *Buffer, inStream bool) (Message, error) {
	xid, err := decodeStreamXid(buf, inStream, 'T')
	if err != nil {
		return nil, err
	}
	nrel, err := buf.Uint32()
	if err != nil {
		return nil, wrap('T', buf, err)
	}
	flags, err := buf.Int8()
	if err != nil {
		return nil, wrap('T', buf, err)
	}
	oids := make([]uint32, 0, nrel)
	for i := uint32(0); i < nrel; i++ {
		oid, err := buf.Uint32()
		if err != nil {
			return nil, wrap('T', buf, err)
		}
		oids = append(oids, oid)
	}
	return &Truncate{RelationOIDs: oids, Flags: flags, Streaming: inStream, Xid: xid}, nil
}

func decodeType(buf *Buffer) (Message, error) {
	oid, err := buf.Uint32()
	if err != nil {
		return nil, wrap('Y', buf, err)
	}
	ns, err := buf.CString()
	if err != nil {
		return nil, wrap('Y', buf, err)
	}
	name, err := buf.CString()
	if err != nil {
		return nil, wrap('Y', buf, err)
	}
	return &Type{OID: oid, Namespace: ns, Name: name}, nil
}

func decodeOrigin(buf *Buffer) (Message, error) {
	lsn, err := buf.Int64()
	if err != nil {
		return nil, wrap('O', buf, err)
	}
	name, err := buf.CString()
	if err != nil {
		return nil, wrap('O', buf, err)
	}
	return &Origin{LSN: LSN(lsn), Name: name}, nil
}

func decodeStreamStart(buf *Buffer) (Message, error) {
	xid, err := buf.Uint32()
	if err != nil {
		return nil, wrap('S', buf, err)
	}
	first, err := buf.Int8()
	if err != nil {
		return nil, wrap('S', buf, err)
	}
	return &StreamStart{Xid: xid, FirstSegment: first == 1}, nil
}

func decodeStreamCommit(buf *Buffer) (Message, error) {
	xid, err := buf.Uint32()
	if err != nil {
		return nil, wrap('c', buf, err)
	}
	flags, err := buf.Int8()
	if err != nil {
		return nil, wrap('c', buf, err)
	}
	commitLSN, err := buf.Int64()
	if err != nil {
		return nil, wrap('c', buf, err)
	}
	endLSN, err := buf.Int64()
	if err != nil {
		return nil, wrap('c', buf, err)
	}
	ts, err := buf.Int64()
	if err != nil {
		return nil, wrap('c', buf, err)
	}
	return &StreamCommit{Xid: xid, Flags: flags, CommitLSN: LSN(commitLSN), EndLSN: LSN(endLSN), Timestamp: ts}, nil
}

func decodeStreamAbort(buf *Buffer) (Message, error) {
	xid, err := buf.Uint32()
	if err != nil {
		return nil, wrap('A', buf, err)
	}
	subxid, err := buf.Uint32()
	if err != nil {
		return nil, wrap('A', buf, err)
	}
	return &StreamAbort{Xid: xid, Subxid: subxid}, nil
}

// decodeTuple reads int16 ncols then, per column, a one-byte kind and for
// 't'/'b' an int32 length followed by that many bytes.
func decodeTuple(buf *Buffer, kind byte) (TupleData, error) {
	ncols, err := buf.Uint16()
	if err != nil {
		return TupleData{}, wrap(kind, buf, err)
	}
	cols := make([]TupleColumn, 0, ncols)
	for i := uint16(0); i < ncols; i++ {
		colKind, err := buf.Byte()
		if err != nil {
			return TupleData{}, wrap(kind, buf, err)
		}
		switch TupleColumnKind(colKind) {
		case TupleColumnNull, TupleColumnUnchangedTOAST:
			cols = append(cols, TupleColumn{Kind: TupleColumnKind(colKind)})
		case TupleColumnText, TupleColumnBinary:
			n, err := buf.Int32()
			if err != nil {
				return TupleData{}, wrap(kind, buf, err)
			}
			data, err := buf.Bytes(int(n))
			if err != nil {
				return TupleData{}, wrap(kind, buf, err)
			}
			cols = append(cols, TupleColumn{Kind: TupleColumnKind(colKind), Data: data})
		default:
			return TupleData{}, &ProtocolError{Kind: kind, Offset: buf.Offset(), Reason: "unknown tuple column kind"}
		}
	}
	return TupleData{Columns: cols}, nil
}
