package bytecode

import (
	"fmt"
	"reflect"
)

// ---------------------------------------------------------------------------
// Method: an encoded host routine
// ---------------------------------------------------------------------------

// Method is a host routine as the host stores it: bytecode plus the
// literal frame the bytecode indexes into.
//
// Literals hold strings (selectors, field names, global names, text) and
// int64 values. Temps 0..Arity-1 are the arguments; the remaining temps up
// to NumTemps are locals.
type Method struct {
	Name     string
	Arity    int
	NumTemps int
	Literals []any
	Code     []byte
}

// Clone returns a deep copy of m.
func (m *Method) Clone() *Method {
	c := *m
	c.Literals = append([]any(nil), m.Literals...)
	c.Code = append([]byte(nil), m.Code...)
	return &c
}

// Literal returns the literal at the given index.
func (m *Method) Literal(index int) (any, error) {
	if index < 0 || index >= len(m.Literals) {
		return nil, fmt.Errorf("%s: literal %d out of range", m.Name, index)
	}
	return m.Literals[index], nil
}

// LiteralString returns the literal at index when it is a string.
func (m *Method) LiteralString(index int) (string, bool) {
	if index < 0 || index >= len(m.Literals) {
		return "", false
	}
	s, ok := m.Literals[index].(string)
	return s, ok
}

// SameLiteral reports whether two literals are equal. Values of types
// without ==, such as slices, are compared deeply.
func SameLiteral(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	t := reflect.TypeOf(a)
	if t != reflect.TypeOf(b) {
		return false
	}
	if !t.Comparable() {
		return reflect.DeepEqual(a, b)
	}
	return a == b
}

// AddLiteral interns v in the literal frame and returns its index.
func (m *Method) AddLiteral(v any) int {
	for i, lit := range m.Literals {
		if SameLiteral(lit, v) {
			return i
		}
	}
	m.Literals = append(m.Literals, v)
	return len(m.Literals) - 1
}

// String implements the Stringer interface.
func (m *Method) String() string {
	return fmt.Sprintf("%s/%d", m.Name, m.Arity)
}
