package sim

import (
	"errors"
	"fmt"
	"strings"

	"github.com/prodzpod/Hacknet-Pathfinder/bytecode"
	"github.com/prodzpod/Hacknet-Pathfinder/host"
)

var (
	ErrTypeMismatch       = errors.New("type mismatch")
	ErrNoField            = errors.New("no such field")
	ErrNoSelector         = errors.New("message not understood")
	ErrNoGlobal           = errors.New("no such global")
	ErrUnboundTrampoline  = errors.New("trampoline not bound")
	ErrTrampolineResults  = errors.New("trampoline returned the wrong number of values")
	ErrUnsupportedOpcode  = errors.New("opcode not supported by this host")
	ErrIndexOutOfBounds   = errors.New("index out of bounds")
	ErrRoutineFellThrough = errors.New("control fell off the end of the routine")
)

// ---------------------------------------------------------------------------
// Frame: execution state for one routine invocation
// ---------------------------------------------------------------------------

type frame struct {
	method *bytecode.Method
	self   any
	temps  []any
	stack  []any
}

func (f *frame) push(v any) {
	f.stack = append(f.stack, v)
}

func (f *frame) pop() any {
	if len(f.stack) == 0 {
		panic("stack underflow")
	}
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v
}

func (f *frame) top() any {
	if len(f.stack) == 0 {
		panic("stack underflow")
	}
	return f.stack[len(f.stack)-1]
}

func (f *frame) popN(n int) []any {
	if len(f.stack) < n {
		panic("stack underflow")
	}
	out := make([]any, n)
	copy(out, f.stack[len(f.stack)-n:])
	f.stack = f.stack[:len(f.stack)-n]
	return out
}

// ---------------------------------------------------------------------------
// Main interpreter loop
// ---------------------------------------------------------------------------

// execute runs m with the receiver and arguments. Installed routines have
// passed the stack verifier, so underflow here is a host bug and panics.
func (h *Host) execute(m *bytecode.Method, self any, args []any) (any, error) {
	if len(args) != m.Arity {
		return nil, fmt.Errorf("%s: called with %d arguments, want %d", m.Name, len(args), m.Arity)
	}
	f := &frame{method: m, self: self, temps: make([]any, max(m.NumTemps, m.Arity))}
	copy(f.temps, args)

	r := bytecode.NewReader(m.Code)
	for r.HasMore() {
		pc := r.Position()
		op := r.ReadOpcode()

		fail := func(err error) (any, error) {
			return nil, fmt.Errorf("%s at %04d (%s): %w", m.Name, pc, op, err)
		}

		switch op {
		// --- Stack operations ---
		case bytecode.OpNOP:
			// Do nothing

		case bytecode.OpPOP:
			f.pop()

		case bytecode.OpDUP:
			f.push(f.top())

		// --- Push constants ---
		case bytecode.OpPushNil:
			f.push(nil)

		case bytecode.OpPushTrue:
			f.push(true)

		case bytecode.OpPushFalse:
			f.push(false)

		case bytecode.OpPushSelf:
			f.push(f.self)

		case bytecode.OpPushInt8:
			f.push(int(r.ReadInt8()))

		case bytecode.OpPushInt32:
			f.push(int(r.ReadInt32()))

		case bytecode.OpPushLiteral:
			lit, err := m.Literal(int(r.ReadUint16()))
			if err != nil {
				return fail(err)
			}
			if n, ok := lit.(int64); ok {
				lit = int(n)
			}
			f.push(lit)

		// --- Variables ---
		case bytecode.OpPushTemp:
			f.push(f.temps[r.ReadByte()])

		case bytecode.OpStoreTemp:
			f.temps[r.ReadByte()] = f.pop()

		case bytecode.OpPushIvar, bytecode.OpStoreIvar:
			return fail(ErrUnsupportedOpcode)

		case bytecode.OpPushGlobal:
			name, _ := m.LiteralString(int(r.ReadUint16()))
			v, ok := h.globals[name]
			if !ok {
				return fail(fmt.Errorf("%w: %s", ErrNoGlobal, name))
			}
			f.push(v)

		case bytecode.OpPushField:
			name, _ := m.LiteralString(int(r.ReadUint16()))
			v, err := field(f.pop(), name)
			if err != nil {
				return fail(err)
			}
			f.push(v)

		// --- Sends ---
		case bytecode.OpSend:
			selector, _ := m.LiteralString(int(r.ReadUint16()))
			argc := int(r.ReadByte())
			sendArgs := f.popN(argc)
			rcvr := f.pop()
			v, err := h.send(rcvr, selector, sendArgs)
			if err != nil {
				return fail(err)
			}
			f.push(v)

		case bytecode.OpSendPlus, bytecode.OpSendMinus, bytecode.OpSendLT, bytecode.OpSendGE:
			b, a := f.pop(), f.pop()
			v, err := arith(op, a, b)
			if err != nil {
				return fail(err)
			}
			f.push(v)

		case bytecode.OpSendEQ:
			b, a := f.pop(), f.pop()
			f.push(equal(a, b))

		case bytecode.OpSendAt:
			idx, rcvr := f.pop(), f.pop()
			v, err := at(rcvr, idx)
			if err != nil {
				return fail(err)
			}
			f.push(v)

		case bytecode.OpSendSize:
			v, err := size(f.pop())
			if err != nil {
				return fail(err)
			}
			f.push(v)

		// --- Control flow ---
		case bytecode.OpJump:
			offset := int(r.ReadInt16())
			r.Seek(r.Position() + offset)

		case bytecode.OpJumpTrue, bytecode.OpJumpFalse:
			offset := int(r.ReadInt16())
			cond, ok := f.pop().(bool)
			if !ok {
				return fail(fmt.Errorf("%w: branch on a non-boolean", ErrTypeMismatch))
			}
			if cond == (op == bytecode.OpJumpTrue) {
				r.Seek(r.Position() + offset)
			}

		case bytecode.OpJumpNil:
			offset := int(r.ReadInt16())
			if f.pop() == nil {
				r.Seek(r.Position() + offset)
			}

		// --- Returns ---
		case bytecode.OpReturnTop:
			return f.pop(), nil

		case bytecode.OpReturnSelf:
			return f.self, nil

		case bytecode.OpReturnNil:
			return nil, nil

		// --- Trampolines ---
		case bytecode.OpCallTrampoline:
			name, _ := m.LiteralString(int(r.ReadUint16()))
			argc := int(r.ReadByte())
			results := int(r.ReadByte())
			t, ok := h.trampolines[name]
			if !ok {
				return fail(fmt.Errorf("%w: %s", ErrUnboundTrampoline, name))
			}
			out, err := t.Fn(f.popN(argc))
			if err != nil {
				return fail(fmt.Errorf("trampoline %s: %w", name, err))
			}
			if len(out) != results {
				return fail(fmt.Errorf("%w: %s returned %d, want %d", ErrTrampolineResults, name, len(out), results))
			}
			for _, v := range out {
				f.push(v)
			}

		default:
			return fail(ErrUnsupportedOpcode)
		}
	}
	return nil, fmt.Errorf("%s: %w", m.Name, ErrRoutineFellThrough)
}

// ---------------------------------------------------------------------------
// Primitives
// ---------------------------------------------------------------------------

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}

func arith(op bytecode.Opcode, a, b any) (any, error) {
	x, ok1 := asInt(a)
	y, ok2 := asInt(b)
	if !ok1 || !ok2 {
		if op == bytecode.OpSendPlus {
			if s, ok := a.(string); ok {
				if t, ok := b.(string); ok {
					return s + t, nil
				}
			}
		}
		return nil, fmt.Errorf("%w: %s on %T and %T", ErrTypeMismatch, op, a, b)
	}
	switch op {
	case bytecode.OpSendPlus:
		return x + y, nil
	case bytecode.OpSendMinus:
		return x - y, nil
	case bytecode.OpSendLT:
		return x < y, nil
	default:
		return x >= y, nil
	}
}

func equal(a, b any) bool {
	if x, ok := asInt(a); ok {
		y, ok := asInt(b)
		return ok && x == y
	}
	defer func() { _ = recover() }()
	return a == b
}

func at(rcvr, idx any) (any, error) {
	i, ok := asInt(idx)
	if !ok {
		return nil, fmt.Errorf("%w: index %T", ErrTypeMismatch, idx)
	}
	l, ok := rcvr.(*List)
	if !ok {
		return nil, fmt.Errorf("%w: at: sent to %T", ErrTypeMismatch, rcvr)
	}
	if i < 0 || i >= len(l.Items) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfBounds, i, len(l.Items))
	}
	return l.Items[i], nil
}

func size(rcvr any) (any, error) {
	switch v := rcvr.(type) {
	case *List:
		return len(v.Items), nil
	case string:
		return len(v), nil
	}
	return nil, fmt.Errorf("%w: size sent to %T", ErrTypeMismatch, rcvr)
}

func field(rcvr any, name string) (any, error) {
	o, ok := rcvr.(Object)
	if !ok {
		return nil, fmt.Errorf("%w: %s of %T", ErrNoField, name, rcvr)
	}
	v, ok := o.Field(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s of %T", ErrNoField, name, rcvr)
	}
	return v, nil
}

// send dispatches a message to a native receiver.
func (h *Host) send(rcvr any, selector string, args []any) (any, error) {
	if want := strings.Count(selector, ":"); len(args) != want {
		return nil, fmt.Errorf("%w: %s with %d arguments", ErrNoSelector, selector, len(args))
	}
	switch r := rcvr.(type) {
	case Object:
		return r.Send(h, selector, args)
	case host.Exe:
		return sendExe(r, selector, args)
	case string:
		return sendString(r, selector, args)
	}
	return nil, fmt.Errorf("%w: %s sent to %T", ErrNoSelector, selector, rcvr)
}

func sendExe(e host.Exe, selector string, args []any) (any, error) {
	switch selector {
	case "update:", "draw:":
		dt, ok := asFloat(args[0])
		if !ok {
			return nil, fmt.Errorf("%w: %s expects a time delta", ErrTypeMismatch, selector)
		}
		if selector == "update:" {
			e.Update(dt)
		} else {
			e.Draw(dt)
		}
		return nil, nil
	case "isExiting":
		return e.IsExiting(), nil
	case "identifier":
		return e.Identifier(), nil
	case "ramCost":
		return e.RAMCost(), nil
	}
	return nil, fmt.Errorf("%w: %s sent to %s", ErrNoSelector, selector, e.Identifier())
}

func sendString(s, selector string, args []any) (any, error) {
	switch selector {
	case "replace:with:":
		old, ok1 := args[0].(string)
		repl, ok2 := args[1].(string)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("%w: replace:with: expects strings", ErrTypeMismatch)
		}
		return strings.ReplaceAll(s, old, repl), nil
	case "size":
		return len(s), nil
	}
	return nil, fmt.Errorf("%w: %s sent to a string", ErrNoSelector, selector)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
