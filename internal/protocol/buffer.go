// Package protocol decodes PostgreSQL pgoutput logical-replication messages.
package protocol

import (
	"encoding/binary"
	"fmt"
)

// Buffer is a cursor over a pgoutput message payload. All multi-byte
// integers on the wire are big-endian, per PostgreSQL documentation §55.5.
type Buffer struct {
	data []byte
	pos  int
}

// NewBuffer wraps data for sequential big-endian decoding.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Offset returns the current read position, used for error reporting.
func (b *Buffer) Offset() int {
	return b.pos
}

// Remaining reports how many unread bytes are left.
func (b *Buffer) Remaining() int {
	return len(b.data) - b.pos
}

func (b *Buffer) need(n int) error {
	if b.Remaining() < n {
		return fmt.Errorf("need %d bytes, have %d at offset %d", n, b.Remaining(), b.pos)
	}
	return nil
}

// Int8 reads a signed byte.
func (b *Buffer) Int8() (int8, error) {
	if err := b.need(1); err != nil {
		return 0, err
	}
	v := int8(b.data[b.pos])
	b.pos++
	return v, nil
}

// Byte reads a single unsigned byte, used for one-byte tag/kind fields.
func (b *Buffer) Byte() (byte, error) {
	if err := b.need(1); err != nil {
		return 0, err
	}
	v := b.data[b.pos]
	b.pos++
	return v, nil
}

// Uint16 reads a big-endian uint16.
func (b *Buffer) Uint16() (uint16, error) {
	if err := b.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(b.data[b.pos:])
	b.pos += 2
	return v, nil
}

// Int32 reads a big-endian signed int32.
func (b *Buffer) Int32() (int32, error) {
	v, err := b.Uint32()
	return int32(v), err
}

// Uint32 reads a big-endian uint32.
func (b *Buffer) Uint32() (uint32, error) {
	if err := b.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(b.data[b.pos:])
	b.pos += 4
	return v, nil
}

// Int64 reads a big-endian signed int64.
func (b *Buffer) Int64() (int64, error) {
	v, err := b.Uint64()
	return int64(v), err
}

// Uint64 reads a big-endian uint64.
func (b *Buffer) Uint64() (uint64, error) {
	if err := b.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(b.data[b.pos:])
	b.pos += 8
	return v, nil
}

// CString reads a null-terminated string, consuming the terminator.
func (b *Buffer) CString() (string, error) {
	start := b.pos
	for i := b.pos; i < len(b.data); i++ {
		if b.data[i] == 0 {
			s := string(b.data[start:i])
			b.pos = i + 1
			return s, nil
		}
	}
	return "", fmt.Errorf("unterminated string starting at offset %d", start)
}

// Bytes reads n raw bytes.
func (b *Buffer) Bytes(n int) ([]byte, error) {
	if err := b.need(n); err != nil {
		return nil, err
	}
	v := b.data[b.pos : b.pos+n]
	b.pos += n
	return v, nil
}
