package sim

import (
	"fmt"

	"github.com/prodzpod/Hacknet-Pathfinder/host"
)

// RAM module layout, in host pixels.
const (
	ramModuleWidth      = 252
	ramContentOffset    = 16
	exeModuleHeight     = 200
	defaultRAMModuleTop = 80
)

// OS is a terminal session. It implements host.OS.
type OS struct {
	ThisComputer  *Computer
	ConnectedComp *Computer
	TotalRAM      int

	exes     *List
	output   []string
	warnings int
}

// NewOS returns a session on its own computer with the given memory.
func NewOS(ram int) *OS {
	return &OS{
		ThisComputer: NewComputer("localhost", "127.0.0.1"),
		TotalRAM:     ram,
		exes:         NewList(),
	}
}

// Computer returns the computer commands act on: the connected one, or the
// session's own.
func (o *OS) Computer() *Computer {
	if o.ConnectedComp != nil {
		return o.ConnectedComp
	}
	return o.ThisComputer
}

// RAMAvailable implements host.OS.
func (o *OS) RAMAvailable() int {
	used := 0
	for _, it := range o.exes.Items {
		used += it.(host.Exe).RAMCost()
	}
	return o.TotalRAM - used
}

// ExeBounds implements host.OS.
func (o *OS) ExeBounds() host.Rect {
	y := defaultRAMModuleTop + ramContentOffset
	for _, it := range o.exes.Items {
		y += it.(host.Exe).RAMCost() * exeModuleHeight / max(o.TotalRAM, 1)
	}
	return host.Rect{X: 0, Y: y, Width: ramModuleWidth, Height: exeModuleHeight}
}

// ProxyActive implements host.OS.
func (o *OS) ProxyActive() bool {
	return o.Computer().ProxyActive
}

// AddExe implements host.OS.
func (o *OS) AddExe(e host.Exe) {
	o.exes.Items = append(o.exes.Items, e)
}

// Exes implements host.OS.
func (o *OS) Exes() []host.Exe {
	out := make([]host.Exe, len(o.exes.Items))
	for i, it := range o.exes.Items {
		out[i] = it.(host.Exe)
	}
	return out
}

// Write implements host.OS.
func (o *OS) Write(text string) {
	o.output = append(o.output, text)
}

// FlashMemoryWarning implements host.OS.
func (o *OS) FlashMemoryWarning() {
	o.warnings++
}

// Output returns every line written to the terminal.
func (o *OS) Output() []string {
	return o.output
}

// ClearOutput discards the terminal contents.
func (o *OS) ClearOutput() {
	o.output = nil
}

// MemoryWarnings returns how often the memory warning flashed.
func (o *OS) MemoryWarnings() int {
	return o.warnings
}

func (o *OS) Field(name string) (any, bool) {
	switch name {
	case "thisComputer":
		return o.ThisComputer, true
	case "connectedComp":
		if o.ConnectedComp == nil {
			return nil, true
		}
		return o.ConnectedComp, true
	case "exes":
		return o.exes, true
	case "ramAvailable":
		return o.RAMAvailable(), true
	}
	return nil, false
}

func (o *OS) Send(h *Host, selector string, args []any) (any, error) {
	switch selector {
	case "write:":
		o.Write(fmt.Sprint(args[0]))
		return nil, nil
	case "launchBuiltin:args:":
		data, _ := args[0].(string)
		b, ok := h.programs.Lookup(data)
		if !ok {
			return false, nil
		}
		if o.RAMAvailable() < b.RAMCost {
			o.FlashMemoryWarning()
			o.Write("Insufficient Memory")
			return true, nil
		}
		o.AddExe(&builtinExe{b: b, args: stringsOf(args[1])})
		return true, nil
	}
	return nil, notUnderstood(o, selector)
}

func stringsOf(v any) []string {
	l, ok := v.(*List)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(l.Items))
	for _, it := range l.Items {
		out = append(out, fmt.Sprint(it))
	}
	return out
}

func listOf(ss []string) *List {
	items := make([]any, len(ss))
	for i, s := range ss {
		items[i] = s
	}
	return NewList(items...)
}
