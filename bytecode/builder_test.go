package bytecode

import (
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Opcode metadata tests
// ---------------------------------------------------------------------------

func TestOpcodeInfo(t *testing.T) {
	tests := []struct {
		op           Opcode
		name         string
		operandBytes int
	}{
		{OpNOP, "NOP", 0},
		{OpPOP, "POP", 0},
		{OpPushSelf, "PUSH_SELF", 0},
		{OpPushInt8, "PUSH_INT8", 1},
		{OpPushInt32, "PUSH_INT32", 4},
		{OpPushLiteral, "PUSH_LITERAL", 2},
		{OpPushTemp, "PUSH_TEMP", 1},
		{OpStoreTemp, "STORE_TEMP", 1},
		{OpPushField, "PUSH_FIELD", 2},
		{OpSend, "SEND", 3},
		{OpSendAt, "SEND_AT", 0},
		{OpJump, "JUMP", 2},
		{OpJumpFalse, "JUMP_FALSE", 2},
		{OpReturnSelf, "RETURN_SELF", 0},
		{OpCallTrampoline, "CALL_TRAMPOLINE", 4},
	}

	for _, tt := range tests {
		info := tt.op.Info()
		if info.Name != tt.name {
			t.Errorf("%s: Name = %q, want %q", tt.op, info.Name, tt.name)
		}
		if info.OperandBytes != tt.operandBytes {
			t.Errorf("%s: OperandBytes = %d, want %d", tt.op, info.OperandBytes, tt.operandBytes)
		}
	}
}

func TestUnknownOpcode(t *testing.T) {
	op := Opcode(0xFF)
	if op.Known() {
		t.Error("0xFF should not be a known opcode")
	}
	if !strings.HasPrefix(op.Info().Name, "UNKNOWN_") {
		t.Errorf("unknown opcode should have UNKNOWN_ prefix, got %q", op.Info().Name)
	}
}

func TestInstructionStackEffect(t *testing.T) {
	tests := []struct {
		in           *Instruction
		pops, pushes int
	}{
		{New(OpPushTemp, 0), 0, 1},
		{New(OpStoreTemp, 0), 1, 0},
		{New(OpPushField, 0), 1, 1},
		{NewSend(0, 2), 3, 1},
		{NewTrampoline(0, 2, 0), 2, 0},
		{NewTrampoline(0, 1, 1), 1, 1},
		{New(OpSendAt, 0), 2, 1},
	}
	for _, tt := range tests {
		pops, pushes := tt.in.StackEffect()
		if pops != tt.pops || pushes != tt.pushes {
			t.Errorf("%s: effect = (%d, %d), want (%d, %d)", tt.in, pops, pushes, tt.pops, tt.pushes)
		}
	}
}

// ---------------------------------------------------------------------------
// Builder tests
// ---------------------------------------------------------------------------

func TestBuilderEmitUint16(t *testing.T) {
	b := NewBuilder()
	b.EmitUint16(OpPushLiteral, 0x1234)

	bytes := b.Bytes()
	if len(bytes) != 3 {
		t.Fatalf("len = %d, want 3", len(bytes))
	}
	// Little-endian
	if bytes[1] != 0x34 || bytes[2] != 0x12 {
		t.Errorf("operand bytes = [%02X, %02X], want [34, 12]", bytes[1], bytes[2])
	}
}

func TestBuilderEmitInt32(t *testing.T) {
	b := NewBuilder()
	b.EmitInt32(OpPushInt32, 0x12345678)

	bytes := b.Bytes()
	if len(bytes) != 5 {
		t.Fatalf("len = %d, want 5", len(bytes))
	}
	expected := []byte{0x78, 0x56, 0x34, 0x12}
	for i, exp := range expected {
		if bytes[i+1] != exp {
			t.Errorf("byte %d = %02X, want %02X", i+1, bytes[i+1], exp)
		}
	}
}

func TestBuilderEmitSend(t *testing.T) {
	b := NewBuilder()
	b.EmitSend(100, 2)

	bytes := b.Bytes()
	if len(bytes) != 4 {
		t.Fatalf("len = %d, want 4", len(bytes))
	}
	if Opcode(bytes[0]) != OpSend {
		t.Error("byte 0 should be SEND")
	}
	if bytes[1] != 100 || bytes[2] != 0 {
		t.Errorf("selector bytes = [%d, %d], want [100, 0]", bytes[1], bytes[2])
	}
	if bytes[3] != 2 {
		t.Errorf("argc = %d, want 2", bytes[3])
	}
}

func TestBuilderEmitTrampoline(t *testing.T) {
	b := NewBuilder()
	b.EmitTrampoline(0x0102, 3, 1)

	want := []byte{byte(OpCallTrampoline), 0x02, 0x01, 3, 1}
	got := b.Bytes()
	if string(got) != string(want) {
		t.Errorf("bytes = %v, want %v", got, want)
	}
}

// ---------------------------------------------------------------------------
// Label tests
// ---------------------------------------------------------------------------

func TestLabelForwardJump(t *testing.T) {
	b := NewBuilder()
	label := b.NewLabel()

	b.EmitJump(OpJumpFalse, label) // 3 bytes: op + 2 byte offset
	b.Emit(OpPushNil)              // position 3
	b.Emit(OpPOP)                  // position 4
	b.Mark(label)                  // target position 5
	b.Emit(OpPushTrue)

	bytes := b.Bytes()
	offset := int16(bytes[1]) | (int16(bytes[2]) << 8)
	if offset != 2 {
		t.Errorf("forward jump offset = %d, want 2", offset)
	}
}

func TestLabelBackwardJump(t *testing.T) {
	b := NewBuilder()
	label := b.NewLabel()

	b.Mark(label)
	b.Emit(OpPushNil)
	b.Emit(OpPOP)
	b.EmitJump(OpJumpTrue, label)

	bytes := b.Bytes()
	offset := int16(bytes[3]) | (int16(bytes[4]) << 8)
	if offset != -5 {
		t.Errorf("backward jump offset = %d, want -5", offset)
	}
}

func TestLabelDoubleMark(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("double mark should panic")
		}
	}()

	b := NewBuilder()
	label := b.NewLabel()
	b.Mark(label)
	b.Mark(label)
}

// ---------------------------------------------------------------------------
// Reader and disassembly tests
// ---------------------------------------------------------------------------

func TestReaderUnderflowPanics(t *testing.T) {
	defer func() {
		if r := recover(); r != ErrTruncated {
			t.Errorf("recover() = %v, want ErrTruncated", r)
		}
	}()
	r := NewReader([]byte{byte(OpPushLiteral), 0x01})
	r.ReadOpcode()
	r.ReadUint16()
}

func TestDisassemble(t *testing.T) {
	b := NewBuilder()
	b.EmitByte(OpPushTemp, 1)
	b.EmitUint16(OpPushField, 0)
	b.EmitSend(1, 0)
	b.EmitTrampoline(2, 1, 0)
	b.Emit(OpReturnSelf)

	got := Disassemble(b.Bytes())
	want := strings.Join([]string{
		"0000  PUSH_TEMP 1",
		"0002  PUSH_FIELD 0",
		"0005  SEND selector=1 argc=0",
		"0009  CALL_TRAMPOLINE index=2 argc=1 results=0",
		"0014  RETURN_SELF",
	}, "\n")
	if got != want {
		t.Errorf("Disassemble() =\n%s\nwant\n%s", got, want)
	}
}

func TestDisassembleMethodResolvesLiterals(t *testing.T) {
	b := NewBuilder()
	b.Emit(OpPushSelf)
	b.EmitUint16(OpPushLiteral, 1)
	b.EmitSend(0, 1)
	b.Emit(OpPOP)
	b.Emit(OpReturnSelf)
	m := &Method{Name: "OS.greet", Literals: []any{"write:", "hello"}, Code: b.Bytes()}

	out := DisassembleMethod(m)
	for _, want := range []string{"; OS.greet arity=0", `; "hello"`, `; "write:"`} {
		if !strings.Contains(out, want) {
			t.Errorf("DisassembleMethod() missing %q in\n%s", want, out)
		}
	}
}
