package patch

import (
	"fmt"
	"strings"

	"github.com/prodzpod/Hacknet-Pathfinder/bytecode"
)

// Predicate matches a single decoded instruction. Operands are compared
// after resolution against the body's literal frame, so a predicate names a
// field or selector rather than a literal index.
type Predicate struct {
	desc  string
	match func(b *bytecode.Body, in *bytecode.Instruction) bool
}

// Match reports whether in satisfies the predicate.
func (p Predicate) Match(b *bytecode.Body, in *bytecode.Instruction) bool {
	return p.match(b, in)
}

// String implements the Stringer interface.
func (p Predicate) String() string {
	return p.desc
}

// Where builds a predicate from an arbitrary function.
func Where(desc string, fn func(b *bytecode.Body, in *bytecode.Instruction) bool) Predicate {
	return Predicate{desc: desc, match: fn}
}

// Any matches every instruction.
func Any() Predicate {
	return Where("*", func(*bytecode.Body, *bytecode.Instruction) bool { return true })
}

// MatchOp matches any instruction with the given opcode.
func MatchOp(op bytecode.Opcode) Predicate {
	return Where(op.String(), func(_ *bytecode.Body, in *bytecode.Instruction) bool {
		return in.Op == op
	})
}

// MatchPushTemp matches PUSH_TEMP n.
func MatchPushTemp(n int) Predicate {
	return operand(bytecode.OpPushTemp, n)
}

// MatchStoreTemp matches STORE_TEMP n.
func MatchStoreTemp(n int) Predicate {
	return operand(bytecode.OpStoreTemp, n)
}

// MatchInt matches an integer constant push of either width.
func MatchInt(v int) Predicate {
	return Where(fmt.Sprintf("PUSH_INT %d", v), func(_ *bytecode.Body, in *bytecode.Instruction) bool {
		return (in.Op == bytecode.OpPushInt8 || in.Op == bytecode.OpPushInt32) && in.Operand == v
	})
}

// MatchField matches PUSH_FIELD of the named field.
func MatchField(name string) Predicate {
	return named(bytecode.OpPushField, name)
}

// MatchGlobal matches PUSH_GLOBAL of the named global.
func MatchGlobal(name string) Predicate {
	return named(bytecode.OpPushGlobal, name)
}

// MatchSend matches a SEND of the selector. The argument count is implied
// by the selector and not compared.
func MatchSend(selector string) Predicate {
	return named(bytecode.OpSend, selector)
}

// MatchTrampoline matches a CALL_TRAMPOLINE of the named trampoline.
func MatchTrampoline(name string) Predicate {
	return named(bytecode.OpCallTrampoline, name)
}

// MatchLiteral matches PUSH_LITERAL of a literal equal to v.
func MatchLiteral(v any) Predicate {
	return Where(fmt.Sprintf("PUSH_LITERAL %#v", v), func(b *bytecode.Body, in *bytecode.Instruction) bool {
		if in.Op != bytecode.OpPushLiteral || in.Operand < 0 || in.Operand >= len(b.Literals) {
			return false
		}
		return bytecode.SameLiteral(b.Literals[in.Operand], v)
	})
}

func operand(op bytecode.Opcode, n int) Predicate {
	return Where(fmt.Sprintf("%s %d", op, n), func(_ *bytecode.Body, in *bytecode.Instruction) bool {
		return in.Op == op && in.Operand == n
	})
}

func named(op bytecode.Opcode, name string) Predicate {
	return Where(fmt.Sprintf("%s %s", op, name), func(b *bytecode.Body, in *bytecode.Instruction) bool {
		if in.Op != op {
			return false
		}
		s, ok := b.LiteralString(in.Operand)
		return ok && s == name
	})
}

func describe(preds []Predicate) string {
	parts := make([]string, len(preds))
	for i, p := range preds {
		parts[i] = p.String()
	}
	return "[" + strings.Join(parts, "; ") + "]"
}
