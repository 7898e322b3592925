package bytecode

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// DisassembleInstruction disassembles a single instruction at the reader's position.
// Returns the string representation and advances the reader.
func DisassembleInstruction(r *Reader) string {
	pos := r.Position()
	op := r.ReadOpcode()
	info := op.Info()

	switch op {
	case OpPushInt8:
		v := r.ReadInt8()
		return fmt.Sprintf("%04d  %s %d", pos, info.Name, v)

	case OpPushTemp, OpPushIvar, OpStoreTemp, OpStoreIvar:
		idx := r.ReadByte()
		return fmt.Sprintf("%04d  %s %d", pos, info.Name, idx)

	case OpPushLiteral, OpPushGlobal, OpPushField:
		idx := r.ReadUint16()
		return fmt.Sprintf("%04d  %s %d", pos, info.Name, idx)

	case OpJump, OpJumpTrue, OpJumpFalse, OpJumpNil:
		offset := r.ReadInt16()
		target := r.Position() + int(offset)
		return fmt.Sprintf("%04d  %s %d (-> %04d)", pos, info.Name, offset, target)

	case OpPushInt32:
		v := r.ReadInt32()
		return fmt.Sprintf("%04d  %s %d", pos, info.Name, v)

	case OpSend:
		selector := r.ReadUint16()
		argc := r.ReadByte()
		return fmt.Sprintf("%04d  %s selector=%d argc=%d", pos, info.Name, selector, argc)

	case OpCallTrampoline:
		idx := r.ReadUint16()
		argc := r.ReadByte()
		results := r.ReadByte()
		return fmt.Sprintf("%04d  %s index=%d argc=%d results=%d", pos, info.Name, idx, argc, results)

	default:
		r.Skip(info.OperandBytes)
		return fmt.Sprintf("%04d  %s", pos, info.Name)
	}
}

// Disassemble returns a full disassembly of bytecode.
func Disassemble(bc []byte) string {
	r := NewReader(bc)
	var lines []string
	for r.HasMore() {
		lines = append(lines, DisassembleInstruction(r))
	}
	return strings.Join(lines, "\n")
}

// DisassembleMethod returns a disassembly of m with literal operands
// resolved, e.g. "0004  SEND selector=3 argc=1  ; write:".
func DisassembleMethod(m *Method) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "; %s arity=%d temps=%d\n", m.Name, m.Arity, m.NumTemps)

	r := NewReader(m.Code)
	for r.HasMore() {
		pos := r.Position()
		op := Opcode(m.Code[pos])
		line := DisassembleInstruction(r)
		switch op {
		case OpPushLiteral, OpPushGlobal, OpPushField, OpSend, OpCallTrampoline:
			idx := int(m.Code[pos+1]) | int(m.Code[pos+2])<<8
			if lit, err := m.Literal(idx); err == nil {
				line += fmt.Sprintf("  ; %#v", lit)
			}
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}
