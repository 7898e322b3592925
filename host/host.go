// Package host declares the narrow surface of the host runtime that the
// extension core consumes. The host owns its routines, its sessions and its
// live program instances; the core only reads and replaces routines, binds
// trampolines, and reaches a session through the OS interface.
//
// The sim subpackage provides a reference host implementing every interface
// here.
package host

import (
	"errors"

	"github.com/prodzpod/Hacknet-Pathfinder/bytecode"
)

var (
	ErrNoRoutine          = errors.New("no such routine")
	ErrTrampolineConflict = errors.New("trampoline already bound with a different signature")
)

// Trampoline is a Go function callable from host bytecode through
// CALL_TRAMPOLINE. The call pops Argc values (first argument deepest) and
// pushes exactly Results values back.
type Trampoline struct {
	Name    string
	Argc    int
	Results int
	Fn      func(args []any) ([]any, error)
}

// Runtime is the routine table of the host.
type Runtime interface {
	// Routine returns the current body of the named routine.
	Routine(name string) (*bytecode.Method, bool)

	// ReplaceRoutine installs m under m.Name. The host verifies and links
	// the new body before swapping it in.
	ReplaceRoutine(m *bytecode.Method) error

	// BindTrampoline makes t callable by name. Binding the same name again
	// with the same signature replaces the function.
	BindTrampoline(t Trampoline) error
}

// Programs resolves the data blob of a built-in program to its display
// name.
type Programs interface {
	BuiltinExecutable(data string) (name string, ok bool)
}

// StringList is a host collection whose elements can be read as text,
// such as the argument list of a terminal command.
type StringList interface {
	Strings() []string
}

// Rect is a screen rectangle in host pixels.
type Rect struct {
	X, Y, Width, Height int
}

// OS is one terminal session of the host.
type OS interface {
	// RAMAvailable returns the memory not committed to live programs.
	RAMAvailable() int

	// ExeBounds returns where the next program would be placed.
	ExeBounds() Rect

	// ProxyActive reports whether the connected computer's proxy is up.
	ProxyActive() bool

	AddExe(e Exe)
	Exes() []Exe

	// Write prints a line to the session terminal.
	Write(text string)

	// FlashMemoryWarning plays the host's out of memory effect.
	FlashMemoryWarning()
}

// Exe is a live program instance in an OS session.
type Exe interface {
	Identifier() string
	RAMCost() int
	Update(dt float64)
	Draw(dt float64)
	IsExiting() bool
}

// File is an entry in a host folder.
type File interface {
	Name() string
	Data() string
}

// Folder is a directory of the host file system.
type Folder interface {
	Name() string
	Files() []File
}

// Widgets is the immediate-mode widget toolkit of the host.
type Widgets interface {
	// Button draws a button and reports whether it was clicked this frame.
	Button(id int, r Rect, label string) bool

	// Checkbox draws a checkbox and returns its new value.
	Checkbox(id int, r Rect, label string, value bool) bool

	// Label draws static text.
	Label(r Rect, text string)
}
