package bytecode

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrUnknownOpcode = errors.New("unknown opcode")
	ErrBadBranch     = errors.New("branch target is not an instruction boundary")
	ErrOffsetRange   = errors.New("branch offset out of 16-bit range")
	ErrOperandRange  = errors.New("operand out of encodable range")
)

// ---------------------------------------------------------------------------
// Instruction: decoded form
// ---------------------------------------------------------------------------

// Instruction is one decoded instruction. Branches refer to their target by
// pointer so that a Body can be spliced without tracking byte offsets.
type Instruction struct {
	Op Opcode

	// Operand is the single operand of the instruction: a temp, ivar or
	// literal index, or an integer constant. SEND and CALL_TRAMPOLINE name
	// their selector or trampoline through a literal.
	Operand int

	// Argc is the argument count of SEND and CALL_TRAMPOLINE.
	Argc int

	// Results is the number of values CALL_TRAMPOLINE pushes back.
	Results int

	// Target is the branch destination of jump instructions.
	Target *Instruction

	// Offset is the byte offset the instruction was decoded from, or -1 for
	// instructions created by an edit.
	Offset int
}

// New returns an instruction that was not decoded from a method.
func New(op Opcode, operand int) *Instruction {
	return &Instruction{Op: op, Operand: operand, Offset: -1}
}

// NewSend returns a SEND of the selector literal with argc arguments.
func NewSend(selector, argc int) *Instruction {
	return &Instruction{Op: OpSend, Operand: selector, Argc: argc, Offset: -1}
}

// NewBranch returns a jump instruction to target.
func NewBranch(op Opcode, target *Instruction) *Instruction {
	return &Instruction{Op: op, Target: target, Offset: -1}
}

// NewTrampoline returns a CALL_TRAMPOLINE instruction.
func NewTrampoline(index, argc, results int) *Instruction {
	return &Instruction{Op: OpCallTrampoline, Operand: index, Argc: argc, Results: results, Offset: -1}
}

// StackEffect returns how many values the instruction pops and pushes.
func (in *Instruction) StackEffect() (pops, pushes int) {
	info := in.Op.Info()
	pops, pushes = info.Pops, info.Pushes
	switch in.Op {
	case OpSend:
		pops = in.Argc + 1
	case OpCallTrampoline:
		pops, pushes = in.Argc, in.Results
	}
	return pops, pushes
}

// Size returns the encoded size of the instruction in bytes.
func (in *Instruction) Size() int {
	return 1 + in.Op.OperandBytes()
}

// String implements the Stringer interface.
func (in *Instruction) String() string {
	switch {
	case in.Op.IsBranch():
		if in.Target != nil && in.Target.Offset >= 0 {
			return fmt.Sprintf("%s -> %04d", in.Op, in.Target.Offset)
		}
		return fmt.Sprintf("%s -> ?", in.Op)
	case in.Op == OpSend:
		return fmt.Sprintf("%s selector=%d argc=%d", in.Op, in.Operand, in.Argc)
	case in.Op == OpCallTrampoline:
		return fmt.Sprintf("%s index=%d argc=%d results=%d", in.Op, in.Operand, in.Argc, in.Results)
	case in.Op.OperandBytes() > 0:
		return fmt.Sprintf("%s %d", in.Op, in.Operand)
	}
	return in.Op.String()
}

// ---------------------------------------------------------------------------
// Body: a decoded method
// ---------------------------------------------------------------------------

// Body is the editable, decoded form of a Method.
type Body struct {
	Name     string
	Arity    int
	NumTemps int
	Literals []any
	Instrs   []*Instruction
}

// Decode converts an encoded method into an editable body. The method is
// not modified.
func Decode(m *Method) (body *Body, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok && errors.Is(e, ErrTruncated) {
				err = fmt.Errorf("%s: %w", m.Name, ErrTruncated)
				return
			}
			panic(r)
		}
	}()

	body = &Body{
		Name:     m.Name,
		Arity:    m.Arity,
		NumTemps: m.NumTemps,
		Literals: append([]any(nil), m.Literals...),
	}

	byOffset := make(map[int]*Instruction)
	branchTo := make(map[*Instruction]int)

	r := NewReader(m.Code)
	for r.HasMore() {
		in := &Instruction{Offset: r.Position()}
		in.Op = r.ReadOpcode()
		if !in.Op.Known() {
			return nil, fmt.Errorf("%s: %w 0x%02X at %04d", m.Name, ErrUnknownOpcode, byte(in.Op), in.Offset)
		}

		switch in.Op {
		case OpPushInt8:
			in.Operand = int(r.ReadInt8())
		case OpPushTemp, OpPushIvar, OpStoreTemp, OpStoreIvar:
			in.Operand = int(r.ReadByte())
		case OpPushInt32:
			in.Operand = int(r.ReadInt32())
		case OpPushLiteral, OpPushGlobal, OpPushField:
			in.Operand = int(r.ReadUint16())
		case OpSend:
			in.Operand = int(r.ReadUint16())
			in.Argc = int(r.ReadByte())
		case OpCallTrampoline:
			in.Operand = int(r.ReadUint16())
			in.Argc = int(r.ReadByte())
			in.Results = int(r.ReadByte())
		case OpJump, OpJumpTrue, OpJumpFalse, OpJumpNil:
			offset := int(r.ReadInt16())
			branchTo[in] = r.Position() + offset
		}

		byOffset[in.Offset] = in
		body.Instrs = append(body.Instrs, in)
	}

	for in, target := range branchTo {
		t, ok := byOffset[target]
		if !ok {
			return nil, fmt.Errorf("%s: %w: %s at %04d targets %04d", m.Name, ErrBadBranch, in.Op, in.Offset, target)
		}
		in.Target = t
	}

	return body, nil
}

// Encode lays the body out as a new Method, recomputing every branch offset.
// The body's instructions get their Offset updated to the new layout.
func (b *Body) Encode() (*Method, error) {
	offsets := make(map[*Instruction]int, len(b.Instrs))
	pos := 0
	for _, in := range b.Instrs {
		offsets[in] = pos
		pos += in.Size()
	}

	bld := NewBuilder()
	for _, in := range b.Instrs {
		if err := encodeOne(bld, in, offsets); err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name, err)
		}
	}
	for _, in := range b.Instrs {
		in.Offset = offsets[in]
	}

	return &Method{
		Name:     b.Name,
		Arity:    b.Arity,
		NumTemps: b.NumTemps,
		Literals: append([]any(nil), b.Literals...),
		Code:     bld.Bytes(),
	}, nil
}

func encodeOne(bld *Builder, in *Instruction, offsets map[*Instruction]int) error {
	switch in.Op {
	case OpPushInt8:
		if in.Operand < math.MinInt8 || in.Operand > math.MaxInt8 {
			return fmt.Errorf("%w: %s %d", ErrOperandRange, in.Op, in.Operand)
		}
		bld.EmitInt8(in.Op, int8(in.Operand))
	case OpPushTemp, OpPushIvar, OpStoreTemp, OpStoreIvar:
		if in.Operand < 0 || in.Operand > math.MaxUint8 {
			return fmt.Errorf("%w: %s %d", ErrOperandRange, in.Op, in.Operand)
		}
		bld.EmitByte(in.Op, byte(in.Operand))
	case OpPushInt32:
		if in.Operand < math.MinInt32 || in.Operand > math.MaxInt32 {
			return fmt.Errorf("%w: %s %d", ErrOperandRange, in.Op, in.Operand)
		}
		bld.EmitInt32(in.Op, int32(in.Operand))
	case OpPushLiteral, OpPushGlobal, OpPushField:
		if in.Operand < 0 || in.Operand > math.MaxUint16 {
			return fmt.Errorf("%w: %s %d", ErrOperandRange, in.Op, in.Operand)
		}
		bld.EmitUint16(in.Op, uint16(in.Operand))
	case OpSend:
		if in.Operand < 0 || in.Operand > math.MaxUint16 || in.Argc < 0 || in.Argc > math.MaxUint8 {
			return fmt.Errorf("%w: %s", ErrOperandRange, in)
		}
		bld.EmitSend(uint16(in.Operand), uint8(in.Argc))
	case OpCallTrampoline:
		if in.Operand < 0 || in.Operand > math.MaxUint16 ||
			in.Argc < 0 || in.Argc > math.MaxUint8 ||
			in.Results < 0 || in.Results > math.MaxUint8 {
			return fmt.Errorf("%w: %s", ErrOperandRange, in)
		}
		bld.EmitTrampoline(uint16(in.Operand), uint8(in.Argc), uint8(in.Results))
	case OpJump, OpJumpTrue, OpJumpFalse, OpJumpNil:
		target, ok := offsets[in.Target]
		if in.Target == nil || !ok {
			return fmt.Errorf("%w: %s targets an instruction outside the body", ErrBadBranch, in.Op)
		}
		offset := target - (bld.Len() + 3)
		if offset < math.MinInt16 || offset > math.MaxInt16 {
			return fmt.Errorf("%w: %d", ErrOffsetRange, offset)
		}
		bld.EmitJumpAbsolute(in.Op, target)
	default:
		if !in.Op.Known() {
			return fmt.Errorf("%w 0x%02X", ErrUnknownOpcode, byte(in.Op))
		}
		bld.Emit(in.Op)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Body helpers
// ---------------------------------------------------------------------------

// IndexOf returns the position of in within the body, or -1.
func (b *Body) IndexOf(in *Instruction) int {
	for i, x := range b.Instrs {
		if x == in {
			return i
		}
	}
	return -1
}

// BranchesTo returns every branch instruction whose target is in.
func (b *Body) BranchesTo(in *Instruction) []*Instruction {
	var refs []*Instruction
	for _, x := range b.Instrs {
		if x.Op.IsBranch() && x.Target == in {
			refs = append(refs, x)
		}
	}
	return refs
}

// AddLiteral interns v in the body's literal frame and returns its index.
func (b *Body) AddLiteral(v any) int {
	for i, lit := range b.Literals {
		if SameLiteral(lit, v) {
			return i
		}
	}
	b.Literals = append(b.Literals, v)
	return len(b.Literals) - 1
}

// LiteralString returns the literal at index when it is a string.
func (b *Body) LiteralString(index int) (string, bool) {
	if index < 0 || index >= len(b.Literals) {
		return "", false
	}
	s, ok := b.Literals[index].(string)
	return s, ok
}

// Clone returns a deep copy of the body. Branch targets are remapped to the
// copied instructions.
func (b *Body) Clone() *Body {
	c := &Body{
		Name:     b.Name,
		Arity:    b.Arity,
		NumTemps: b.NumTemps,
		Literals: append([]any(nil), b.Literals...),
		Instrs:   make([]*Instruction, len(b.Instrs)),
	}
	remap := make(map[*Instruction]*Instruction, len(b.Instrs))
	for i, in := range b.Instrs {
		cp := *in
		c.Instrs[i] = &cp
		remap[in] = &cp
	}
	for _, in := range c.Instrs {
		if in.Target != nil {
			in.Target = remap[in.Target]
		}
	}
	return c
}
