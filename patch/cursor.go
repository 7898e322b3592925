package patch

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/prodzpod/Hacknet-Pathfinder/bytecode"
)

var (
	ErrPatternNotFound = errors.New("pattern not found")
	ErrBrokenBranch    = errors.New("edit removes a branch target")
	ErrOutOfRange      = errors.New("cursor out of range")
)

// Direction selects which way Find scans.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// MoveType says where a cursor lands relative to a match, and what happens
// to branches that target the matched instruction when code is inserted
// there.
type MoveType int

const (
	// Before places the cursor in front of the first matched instruction.
	// Inserted code runs only on fall-through; branches keep targeting the
	// matched instruction.
	Before MoveType = iota

	// AfterLabel is Before, except that branches targeting the matched
	// instruction are moved to the first inserted instruction, so every
	// path into the match runs the inserted code.
	AfterLabel

	// After places the cursor behind the last matched instruction.
	After
)

// String implements the Stringer interface.
func (m MoveType) String() string {
	switch m {
	case Before:
		return "Before"
	case AfterLabel:
		return "AfterLabel"
	case After:
		return "After"
	}
	return fmt.Sprintf("MoveType(%d)", int(m))
}

// Cursor is an insertion point in a decoded routine body. Seeking moves the
// cursor; Find only looks. Edits happen at the cursor and advance it past
// the inserted code.
type Cursor struct {
	body  *bytecode.Body
	index int

	// onMatch is set while the cursor sits in front of a matched
	// instruction, so the next forward seek starts after it.
	onMatch bool

	// label is set while an AfterLabel retarget is pending.
	label bool
}

// NewCursor returns a cursor at the start of b.
func NewCursor(b *bytecode.Body) *Cursor {
	return &Cursor{body: b}
}

// Body returns the body being edited.
func (c *Cursor) Body() *bytecode.Body { return c.body }

// Index returns the insertion point.
func (c *Cursor) Index() int { return c.index }

// Len returns the number of instructions in the body.
func (c *Cursor) Len() int { return len(c.body.Instrs) }

// Instr returns the instruction at i, or nil.
func (c *Cursor) Instr(i int) *bytecode.Instruction {
	if i < 0 || i >= len(c.body.Instrs) {
		return nil
	}
	return c.body.Instrs[i]
}

// Next returns the instruction after the cursor, or nil at the end.
func (c *Cursor) Next() *bytecode.Instruction { return c.Instr(c.index) }

// Prev returns the instruction before the cursor, or nil at the start.
func (c *Cursor) Prev() *bytecode.Instruction { return c.Instr(c.index - 1) }

// ---------------------------------------------------------------------------
// Matching
// ---------------------------------------------------------------------------

// Find returns the index of the first instruction of a contiguous run
// matching preds. Forward scans runs starting at from, from+1, ...;
// Backward scans runs starting at from, from-1, ... The body and the cursor
// are not modified.
func (c *Cursor) Find(from int, dir Direction, preds ...Predicate) (int, error) {
	if len(preds) == 0 {
		return -1, fmt.Errorf("%s: %w: empty pattern", c.body.Name, ErrPatternNotFound)
	}
	last := len(c.body.Instrs) - len(preds)
	switch dir {
	case Forward:
		for i := max(from, 0); i <= last; i++ {
			if c.matchAt(i, preds) {
				return i, nil
			}
		}
	case Backward:
		for i := min(from, last); i >= 0; i-- {
			if c.matchAt(i, preds) {
				return i, nil
			}
		}
	}
	return -1, fmt.Errorf("%s: %w: %s", c.body.Name, ErrPatternNotFound, describe(preds))
}

func (c *Cursor) matchAt(i int, preds []Predicate) bool {
	for j, p := range preds {
		if !p.Match(c.body, c.body.Instrs[i+j]) {
			return false
		}
	}
	return true
}

// Goto moves the cursor to instruction i. With After the cursor lands
// behind it. i may equal Len() for Before, which places the cursor at the
// end.
func (c *Cursor) Goto(i int, move MoveType) error {
	limit := len(c.body.Instrs)
	if move == After {
		limit--
	}
	if i < 0 || i > limit {
		return fmt.Errorf("%s: %w: %d", c.body.Name, ErrOutOfRange, i)
	}
	c.land(i, 1, move)
	return nil
}

// GotoNext seeks forward from the cursor to the next run matching preds.
// On failure the cursor does not move.
func (c *Cursor) GotoNext(move MoveType, preds ...Predicate) error {
	from := c.index
	if c.onMatch {
		from++
	}
	i, err := c.Find(from, Forward, preds...)
	if err != nil {
		return err
	}
	c.land(i, len(preds), move)
	return nil
}

// GotoPrev seeks backward to the nearest run starting before the cursor.
// On failure the cursor does not move.
func (c *Cursor) GotoPrev(move MoveType, preds ...Predicate) error {
	i, err := c.Find(c.index-1, Backward, preds...)
	if err != nil {
		return err
	}
	c.land(i, len(preds), move)
	return nil
}

func (c *Cursor) land(i, n int, move MoveType) {
	switch move {
	case After:
		c.index = i + n
		c.onMatch = false
		c.label = false
	case AfterLabel:
		c.index = i
		c.onMatch = i < len(c.body.Instrs)
		c.label = true
	default:
		c.index = i
		c.onMatch = i < len(c.body.Instrs)
		c.label = false
	}
}

// ---------------------------------------------------------------------------
// Editing
// ---------------------------------------------------------------------------

// Insert places ins at the cursor and advances past them.
func (c *Cursor) Insert(ins ...*bytecode.Instruction) {
	if len(ins) == 0 {
		return
	}
	if c.label {
		if old := c.Next(); old != nil {
			for _, br := range c.body.BranchesTo(old) {
				br.Target = ins[0]
			}
		}
		c.label = false
	}
	c.body.Instrs = slices.Insert(c.body.Instrs, c.index, ins...)
	c.index += len(ins)
}

// Emit inserts an instruction without operands.
func (c *Cursor) Emit(op bytecode.Opcode) {
	c.Insert(bytecode.New(op, 0))
}

// EmitOperand inserts an instruction with a raw operand.
func (c *Cursor) EmitOperand(op bytecode.Opcode, operand int) {
	c.Insert(bytecode.New(op, operand))
}

// EmitLoadSelf pushes the routine's receiver.
func (c *Cursor) EmitLoadSelf() {
	c.Emit(bytecode.OpPushSelf)
}

// EmitLoadTemp pushes each of the given temps, in order. Arguments are the
// first temps of a routine.
func (c *Cursor) EmitLoadTemp(temps ...int) {
	for _, n := range temps {
		c.EmitOperand(bytecode.OpPushTemp, n)
	}
}

// EmitInt pushes an integer constant using the narrowest encoding.
func (c *Cursor) EmitInt(v int) {
	if v >= math.MinInt8 && v <= math.MaxInt8 {
		c.EmitOperand(bytecode.OpPushInt8, v)
		return
	}
	c.EmitOperand(bytecode.OpPushInt32, v)
}

// EmitLiteral pushes v, adding it to the literal frame if needed.
func (c *Cursor) EmitLiteral(v any) {
	c.EmitOperand(bytecode.OpPushLiteral, c.body.AddLiteral(v))
}

// EmitField replaces the object on top of the stack with its named field.
func (c *Cursor) EmitField(name string) {
	c.EmitOperand(bytecode.OpPushField, c.body.AddLiteral(name))
}

// EmitGlobal pushes the named global.
func (c *Cursor) EmitGlobal(name string) {
	c.EmitOperand(bytecode.OpPushGlobal, c.body.AddLiteral(name))
}

// EmitSend inserts a message send.
func (c *Cursor) EmitSend(selector string, argc int) {
	c.Insert(bytecode.NewSend(c.body.AddLiteral(selector), argc))
}

// EmitTrampoline inserts a call to the named trampoline. The caller is
// responsible for the argc values being on the stack, usually through
// EmitLoadSelf and EmitLoadTemp.
func (c *Cursor) EmitTrampoline(name string, argc, results int) {
	c.Insert(bytecode.NewTrampoline(c.body.AddLiteral(name), argc, results))
}

// EmitBranch inserts a jump to target, which must be in the body when the
// edit is encoded.
func (c *Cursor) EmitBranch(op bytecode.Opcode, target *bytecode.Instruction) {
	c.Insert(bytecode.NewBranch(op, target))
}

// RemoveRange deletes count instructions after the cursor. It fails with
// ErrBrokenBranch if an instruction outside the range branches into it;
// nothing is removed in that case.
func (c *Cursor) RemoveRange(count int) error {
	if err := c.checkRange(count, nil); err != nil {
		return err
	}
	c.body.Instrs = slices.Delete(c.body.Instrs, c.index, c.index+count)
	c.onMatch = false
	c.label = false
	return nil
}

// ReplaceRange swaps count instructions after the cursor for ins and moves
// the cursor behind them. Branches into the first replaced instruction are
// moved to the first new one; branches to any other replaced instruction
// fail with ErrBrokenBranch. Replacing nothing is an Insert.
func (c *Cursor) ReplaceRange(count int, ins ...*bytecode.Instruction) error {
	if count == 0 {
		c.Insert(ins...)
		c.onMatch = false
		return nil
	}
	var head *bytecode.Instruction
	if count > 0 && len(ins) > 0 {
		head = c.Next()
	}
	if err := c.checkRange(count, head); err != nil {
		return err
	}
	if head != nil {
		for _, br := range c.body.BranchesTo(head) {
			br.Target = ins[0]
		}
	}
	c.body.Instrs = slices.Replace(c.body.Instrs, c.index, c.index+count, ins...)
	c.index += len(ins)
	c.onMatch = false
	c.label = false
	return nil
}

// checkRange validates the range [index, index+count) for removal. allowed
// may be targeted from outside.
func (c *Cursor) checkRange(count int, allowed *bytecode.Instruction) error {
	if count < 0 || c.index+count > len(c.body.Instrs) {
		return fmt.Errorf("%s: %w: remove %d at %d of %d", c.body.Name, ErrOutOfRange, count, c.index, len(c.body.Instrs))
	}
	inRange := make(map[*bytecode.Instruction]bool, count)
	for _, in := range c.body.Instrs[c.index : c.index+count] {
		inRange[in] = true
	}
	for _, in := range c.body.Instrs {
		if inRange[in] || !in.Op.IsBranch() {
			continue
		}
		if inRange[in.Target] && in.Target != allowed {
			return fmt.Errorf("%s: %w: %s targets %s", c.body.Name, ErrBrokenBranch, in, in.Target)
		}
	}
	return nil
}
