package bytecode

import (
	"encoding/binary"
	"errors"
)

// ErrTruncated is returned when an instruction's operands run past the end
// of the code.
var ErrTruncated = errors.New("bytecode truncated")

// ---------------------------------------------------------------------------
// Reader for decoding and disassembly
// ---------------------------------------------------------------------------

// Reader reads bytecode sequentially. Read methods panic with ErrTruncated
// on underflow; Decode converts that into an error.
type Reader struct {
	bytes []byte
	pos   int
}

// NewReader creates a reader for bytecode.
func NewReader(bc []byte) *Reader {
	return &Reader{bytes: bc, pos: 0}
}

// Position returns the current read position.
func (r *Reader) Position() int {
	return r.pos
}

// HasMore returns true if there are more bytes to read.
func (r *Reader) HasMore() bool {
	return r.pos < len(r.bytes)
}

// ReadOpcode reads and returns the next opcode.
func (r *Reader) ReadOpcode() Opcode {
	return Opcode(r.ReadByte())
}

// ReadByte reads a single byte operand.
func (r *Reader) ReadByte() byte {
	if r.pos >= len(r.bytes) {
		panic(ErrTruncated)
	}
	b := r.bytes[r.pos]
	r.pos++
	return b
}

// ReadInt8 reads a signed 8-bit operand.
func (r *Reader) ReadInt8() int8 {
	return int8(r.ReadByte())
}

// ReadUint16 reads a 16-bit operand (little-endian).
func (r *Reader) ReadUint16() uint16 {
	if r.pos+2 > len(r.bytes) {
		panic(ErrTruncated)
	}
	v := binary.LittleEndian.Uint16(r.bytes[r.pos:])
	r.pos += 2
	return v
}

// ReadInt16 reads a signed 16-bit operand (little-endian).
func (r *Reader) ReadInt16() int16 {
	return int16(r.ReadUint16())
}

// ReadInt32 reads a 32-bit operand (little-endian).
func (r *Reader) ReadInt32() int32 {
	if r.pos+4 > len(r.bytes) {
		panic(ErrTruncated)
	}
	v := binary.LittleEndian.Uint32(r.bytes[r.pos:])
	r.pos += 4
	return int32(v)
}

// Skip advances the position by n bytes.
func (r *Reader) Skip(n int) {
	r.pos += n
}

// Seek sets the read position.
func (r *Reader) Seek(pos int) {
	r.pos = pos
}
