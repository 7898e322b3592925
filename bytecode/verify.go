package bytecode

import (
	"errors"
	"fmt"
)

var (
	ErrStackImbalance = errors.New("stack imbalance")
	ErrBadOperand     = errors.New("invalid operand")
)

// VerifyStack checks every control path through the body and returns the
// maximum evaluation stack depth.
//
// The rules mirror the host's own verifier:
//   - no instruction pops more values than are on the stack
//   - every path reaching an instruction arrives with the same depth
//   - RETURN_TOP leaves with exactly one value, other returns with none
//   - control never falls off the end of the body
//   - temp, ivar, and literal operands are in range and branches stay
//     inside the body
func VerifyStack(b *Body) (int, error) {
	if len(b.Instrs) == 0 {
		return 0, fmt.Errorf("%s: %w: empty body", b.Name, ErrStackImbalance)
	}

	index := make(map[*Instruction]int, len(b.Instrs))
	for i, in := range b.Instrs {
		index[in] = i
	}
	for i, in := range b.Instrs {
		if err := checkOperand(b, in, index); err != nil {
			return 0, fmt.Errorf("%s: instruction %d (%s): %w", b.Name, i, in, err)
		}
	}

	depth := make([]int, len(b.Instrs))
	for i := range depth {
		depth[i] = -1
	}
	maxDepth := 0

	// enter records the depth on arrival at instruction i and reports
	// whether it still needs to be visited.
	enter := func(from, i, d int) (bool, error) {
		if i >= len(b.Instrs) {
			return false, fmt.Errorf("%s: %w: control falls off the end after instruction %d", b.Name, ErrStackImbalance, from)
		}
		switch depth[i] {
		case -1:
			depth[i] = d
			return true, nil
		case d:
			return false, nil
		default:
			return false, fmt.Errorf("%s: %w: instruction %d (%s) reached with depth %d and %d",
				b.Name, ErrStackImbalance, i, b.Instrs[i], depth[i], d)
		}
	}

	work := []int{0}
	depth[0] = 0
	for len(work) > 0 {
		i := work[len(work)-1]
		work = work[:len(work)-1]
		in := b.Instrs[i]

		pops, pushes := in.StackEffect()
		d := depth[i]
		if pops > d {
			return 0, fmt.Errorf("%s: %w: instruction %d (%s) pops %d with depth %d",
				b.Name, ErrStackImbalance, i, in, pops, d)
		}
		d = d - pops + pushes
		if d > maxDepth {
			maxDepth = d
		}

		switch {
		case in.Op == OpReturnTop:
			if d != 0 {
				return 0, fmt.Errorf("%s: %w: RETURN_TOP at %d leaves %d extra values", b.Name, ErrStackImbalance, i, d)
			}
			continue
		case in.Op.IsReturn():
			if d != 0 {
				return 0, fmt.Errorf("%s: %w: %s at %d leaves %d values", b.Name, ErrStackImbalance, in.Op, i, d)
			}
			continue
		}

		var next []int
		if in.Op.IsBranch() {
			next = append(next, index[in.Target])
		}
		if in.Op != OpJump {
			next = append(next, i+1)
		}
		for _, n := range next {
			visit, err := enter(i, n, d)
			if err != nil {
				return 0, err
			}
			if visit {
				work = append(work, n)
			}
		}
	}

	return maxDepth, nil
}

func checkOperand(b *Body, in *Instruction, index map[*Instruction]int) error {
	switch in.Op {
	case OpPushTemp, OpStoreTemp:
		if in.Operand < 0 || in.Operand >= b.NumTemps {
			return fmt.Errorf("%w: temp %d of %d", ErrBadOperand, in.Operand, b.NumTemps)
		}
	case OpPushIvar, OpStoreIvar:
		if in.Operand < 0 {
			return fmt.Errorf("%w: ivar %d", ErrBadOperand, in.Operand)
		}
	case OpPushLiteral:
		if in.Operand < 0 || in.Operand >= len(b.Literals) {
			return fmt.Errorf("%w: literal %d of %d", ErrBadOperand, in.Operand, len(b.Literals))
		}
	case OpPushGlobal, OpPushField, OpSend, OpCallTrampoline:
		if _, ok := b.LiteralString(in.Operand); !ok {
			return fmt.Errorf("%w: literal %d is not a name", ErrBadOperand, in.Operand)
		}
	case OpJump, OpJumpTrue, OpJumpFalse, OpJumpNil:
		if _, ok := index[in.Target]; !ok || in.Target == nil {
			return fmt.Errorf("%w: branch leaves the body", ErrBadBranch)
		}
	}
	return nil
}
