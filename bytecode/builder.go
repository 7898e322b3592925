package bytecode

import "encoding/binary"

// ---------------------------------------------------------------------------
// Builder: Helper for constructing bytecode
// ---------------------------------------------------------------------------

// Builder helps construct bytecode sequences.
type Builder struct {
	bytes []byte
}

// NewBuilder creates a new bytecode builder.
func NewBuilder() *Builder {
	return &Builder{
		bytes: make([]byte, 0, 64),
	}
}

// Bytes returns the constructed bytecode.
func (b *Builder) Bytes() []byte {
	return b.bytes
}

// Len returns the current length.
func (b *Builder) Len() int {
	return len(b.bytes)
}

// Emit appends an opcode with no operands.
func (b *Builder) Emit(op Opcode) {
	b.bytes = append(b.bytes, byte(op))
}

// EmitByte appends an opcode with a single byte operand.
func (b *Builder) EmitByte(op Opcode, operand byte) {
	b.bytes = append(b.bytes, byte(op), operand)
}

// EmitInt8 appends an opcode with a signed 8-bit operand.
func (b *Builder) EmitInt8(op Opcode, operand int8) {
	b.bytes = append(b.bytes, byte(op), byte(operand))
}

// EmitUint16 appends an opcode with a 16-bit operand (little-endian).
func (b *Builder) EmitUint16(op Opcode, operand uint16) {
	b.bytes = append(b.bytes, byte(op), byte(operand), byte(operand>>8))
}

// EmitInt32 appends an opcode with a 32-bit operand (little-endian).
func (b *Builder) EmitInt32(op Opcode, operand int32) {
	b.bytes = append(b.bytes, byte(op))
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(operand))
	b.bytes = append(b.bytes, buf[:]...)
}

// EmitSend appends a SEND instruction.
func (b *Builder) EmitSend(selector uint16, argc uint8) {
	b.bytes = append(b.bytes, byte(OpSend), byte(selector), byte(selector>>8), argc)
}

// EmitTrampoline appends a CALL_TRAMPOLINE instruction.
func (b *Builder) EmitTrampoline(index uint16, argc, results uint8) {
	b.bytes = append(b.bytes, byte(OpCallTrampoline), byte(index), byte(index>>8), argc, results)
}

// ---------------------------------------------------------------------------
// Label management for jumps
// ---------------------------------------------------------------------------

// Label represents a forward reference in bytecode.
type Label struct {
	resolved bool
	position int   // position to patch (if unresolved) or target (if resolved)
	refs     []int // positions that reference this label
}

// NewLabel creates an unresolved label.
func (b *Builder) NewLabel() *Label {
	return &Label{resolved: false, refs: make([]int, 0, 2)}
}

// Mark resolves a label to the current position.
func (b *Builder) Mark(label *Label) {
	if label.resolved {
		panic("label already resolved")
	}
	label.resolved = true
	label.position = len(b.bytes)

	// Patch all forward references
	for _, ref := range label.refs {
		offset := label.position - (ref + 2) // offset from after the operand
		b.bytes[ref] = byte(offset)
		b.bytes[ref+1] = byte(offset >> 8)
	}
	label.refs = nil
}

// EmitJump emits a jump instruction with a label.
func (b *Builder) EmitJump(op Opcode, label *Label) {
	b.bytes = append(b.bytes, byte(op))
	if label.resolved {
		offset := label.position - (len(b.bytes) + 2)
		b.bytes = append(b.bytes, byte(offset), byte(offset>>8))
	} else {
		label.refs = append(label.refs, len(b.bytes))
		b.bytes = append(b.bytes, 0, 0) // placeholder
	}
}

// EmitJumpAbsolute emits a jump to an absolute position (for backward jumps).
func (b *Builder) EmitJumpAbsolute(op Opcode, target int) {
	b.bytes = append(b.bytes, byte(op))
	offset := target - (len(b.bytes) + 2)
	b.bytes = append(b.bytes, byte(offset), byte(offset>>8))
}
