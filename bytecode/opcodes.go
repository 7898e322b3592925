package bytecode

import "fmt"

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single bytecode instruction.
type Opcode byte

// Stack Operations
const (
	OpNOP Opcode = 0x00 // no operation
	OpPOP Opcode = 0x01 // discard top of stack
	OpDUP Opcode = 0x02 // duplicate top of stack
)

// Push Constants
const (
	OpPushNil     Opcode = 0x10 // push nil
	OpPushTrue    Opcode = 0x11 // push true
	OpPushFalse   Opcode = 0x12 // push false
	OpPushSelf    Opcode = 0x13 // push self
	OpPushInt8    Opcode = 0x14 // push 8-bit signed integer
	OpPushInt32   Opcode = 0x15 // push 32-bit signed integer
	OpPushLiteral Opcode = 0x16 // push literal from literal frame (16-bit index)
)

// Variable Operations
const (
	OpPushTemp   Opcode = 0x20 // push temporary/argument (8-bit index)
	OpPushIvar   Opcode = 0x21 // push instance variable of self (8-bit index)
	OpPushGlobal Opcode = 0x22 // push global named by a literal (16-bit index)
	OpStoreTemp  Opcode = 0x23 // pop into temporary (8-bit index)
	OpStoreIvar  Opcode = 0x24 // pop into instance variable of self (8-bit index)
	OpPushField  Opcode = 0x28 // pop object, push its field named by a literal (16-bit index)
)

// Message Sends
const (
	OpSend Opcode = 0x30 // send message (16-bit selector literal, 8-bit argc)
)

// Optimized Sends (single-byte, no operands)
const (
	OpSendPlus  Opcode = 0x40 // +
	OpSendMinus Opcode = 0x41 // -
	OpSendLT    Opcode = 0x45 // <
	OpSendGE    Opcode = 0x48 // >=
	OpSendEQ    Opcode = 0x49 // =
	OpSendAt    Opcode = 0x4B // at:
	OpSendSize  Opcode = 0x4D // size
)

// Control Flow
const (
	OpJump      Opcode = 0x60 // unconditional jump (16-bit offset)
	OpJumpTrue  Opcode = 0x61 // pop, jump if true (16-bit offset)
	OpJumpFalse Opcode = 0x62 // pop, jump if false (16-bit offset)
	OpJumpNil   Opcode = 0x63 // pop, jump if nil (16-bit offset)
)

// Returns
const (
	OpReturnTop  Opcode = 0x70 // return top of stack
	OpReturnSelf Opcode = 0x71 // return self
	OpReturnNil  Opcode = 0x72 // return nil
)

// Trampolines
const (
	// OpCallTrampoline calls a host-bound Go function named by a literal
	// (16-bit literal index, 8-bit argc, 8-bit result count).
	OpCallTrampoline Opcode = 0xA0
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// Variable marks a stack effect that depends on the instruction operands.
const Variable = -1

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name         string // human-readable name
	OperandBytes int    // number of operand bytes
	Pops         int    // values popped (Variable = operand dependent)
	Pushes       int    // values pushed (Variable = operand dependent)
}

// opcodeTable maps opcodes to their metadata.
var opcodeTable = map[Opcode]OpcodeInfo{
	// Stack operations
	OpNOP: {"NOP", 0, 0, 0},
	OpPOP: {"POP", 0, 1, 0},
	OpDUP: {"DUP", 0, 1, 2},

	// Push constants
	OpPushNil:     {"PUSH_NIL", 0, 0, 1},
	OpPushTrue:    {"PUSH_TRUE", 0, 0, 1},
	OpPushFalse:   {"PUSH_FALSE", 0, 0, 1},
	OpPushSelf:    {"PUSH_SELF", 0, 0, 1},
	OpPushInt8:    {"PUSH_INT8", 1, 0, 1},
	OpPushInt32:   {"PUSH_INT32", 4, 0, 1},
	OpPushLiteral: {"PUSH_LITERAL", 2, 0, 1},

	// Variables
	OpPushTemp:   {"PUSH_TEMP", 1, 0, 1},
	OpPushIvar:   {"PUSH_IVAR", 1, 0, 1},
	OpPushGlobal: {"PUSH_GLOBAL", 2, 0, 1},
	OpStoreTemp:  {"STORE_TEMP", 1, 1, 0},
	OpStoreIvar:  {"STORE_IVAR", 1, 1, 0},
	OpPushField:  {"PUSH_FIELD", 2, 1, 1},

	// Sends
	OpSend: {"SEND", 3, Variable, 1}, // pops receiver + argc

	// Optimized sends
	OpSendPlus:  {"SEND_PLUS", 0, 2, 1},
	OpSendMinus: {"SEND_MINUS", 0, 2, 1},
	OpSendLT:    {"SEND_LT", 0, 2, 1},
	OpSendGE:    {"SEND_GE", 0, 2, 1},
	OpSendEQ:    {"SEND_EQ", 0, 2, 1},
	OpSendAt:    {"SEND_AT", 0, 2, 1},
	OpSendSize:  {"SEND_SIZE", 0, 1, 1},

	// Control flow
	OpJump:      {"JUMP", 2, 0, 0},
	OpJumpTrue:  {"JUMP_TRUE", 2, 1, 0},
	OpJumpFalse: {"JUMP_FALSE", 2, 1, 0},
	OpJumpNil:   {"JUMP_NIL", 2, 1, 0},

	// Returns
	OpReturnTop:  {"RETURN_TOP", 0, 1, 0},
	OpReturnSelf: {"RETURN_SELF", 0, 0, 0},
	OpReturnNil:  {"RETURN_NIL", 0, 0, 0},

	// Trampolines
	OpCallTrampoline: {"CALL_TRAMPOLINE", 4, Variable, Variable},
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op))}
}

// Known reports whether op is part of the instruction set.
func (op Opcode) Known() bool {
	_, ok := opcodeTable[op]
	return ok
}

// Name returns the human-readable name for an opcode.
func (op Opcode) Name() string {
	return op.Info().Name
}

// OperandBytes returns the number of operand bytes for an opcode.
func (op Opcode) OperandBytes() int {
	return op.Info().OperandBytes
}

// IsBranch reports whether op carries a relative jump offset.
func (op Opcode) IsBranch() bool {
	switch op {
	case OpJump, OpJumpTrue, OpJumpFalse, OpJumpNil:
		return true
	}
	return false
}

// IsReturn reports whether op leaves the routine.
func (op Opcode) IsReturn() bool {
	switch op {
	case OpReturnTop, OpReturnSelf, OpReturnNil:
		return true
	}
	return false
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Name()
}
