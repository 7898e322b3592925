// Package sim is a reference host for the extension core: a small closed
// runtime whose behaviour lives in bytecode routines.
//
// The host ships with stock routines (Programs.execute, OS.update, OS.draw,
// OS.launchExecutable, ComputerLoader.loadFile, OptionsMenu.draw and
// MainMenu.draw) and an object model of sessions, computers, folders and
// files. It has no extension points of its own: extensions reach it only by
// replacing routines and binding trampolines through host.Runtime.
package sim

import (
	"fmt"
	"slices"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/prodzpod/Hacknet-Pathfinder/bytecode"
	"github.com/prodzpod/Hacknet-Pathfinder/host"
	"github.com/prodzpod/Hacknet-Pathfinder/logging"
)

// DefaultRAM is the memory of a session when none is configured.
const DefaultRAM = 800

// Host is the reference host. It is driven from a single goroutine.
type Host struct {
	log         commonlog.Logger
	routines    map[string]*bytecode.Method
	trampolines map[string]host.Trampoline
	globals     map[string]any

	programs *Programs
	gui      *Gui
	session  *OS
	screen   Screen
	exit     bool

	// Widgets is the toolkit menus draw with.
	Widgets *Widgets
}

// Option configures a Host.
type Option func(*Host)

// WithRAM sets the memory of the session.
func WithRAM(ram int) Option {
	return func(h *Host) { h.session.TotalRAM = ram }
}

// New creates a host with its stock routines installed.
func New(opts ...Option) *Host {
	h := &Host{
		log:         logging.Get("host"),
		routines:    make(map[string]*bytecode.Method),
		trampolines: make(map[string]host.Trampoline),
		programs:    NewPrograms(),
		gui:         &Gui{},
		session:     NewOS(DefaultRAM),
		Widgets:     NewWidgets(),
	}
	h.globals = map[string]any{
		"Programs": h.programs,
		"GuiData":  h.gui,
	}
	for _, opt := range opts {
		opt(h)
	}
	for _, m := range stockRoutines() {
		if _, err := h.verify(m); err != nil {
			panic(fmt.Sprintf("stock routine %s: %v", m.Name, err))
		}
		h.routines[m.Name] = m
	}
	return h
}

// ---------------------------------------------------------------------------
// host.Runtime
// ---------------------------------------------------------------------------

// Routine implements host.Runtime.
func (h *Host) Routine(name string) (*bytecode.Method, bool) {
	m, ok := h.routines[name]
	return m, ok
}

// ReplaceRoutine implements host.Runtime. The new body must pass the stack
// verifier and every trampoline it calls must already be bound with the
// signature the call site uses.
func (h *Host) ReplaceRoutine(m *bytecode.Method) error {
	if _, ok := h.routines[m.Name]; !ok {
		return fmt.Errorf("%s: %w", m.Name, host.ErrNoRoutine)
	}
	body, err := h.verify(m)
	if err != nil {
		return err
	}
	for _, in := range body.Instrs {
		if in.Op != bytecode.OpCallTrampoline {
			continue
		}
		name, _ := body.LiteralString(in.Operand)
		t, ok := h.trampolines[name]
		if !ok {
			return fmt.Errorf("%s: %w: %s", m.Name, ErrUnboundTrampoline, name)
		}
		if t.Argc != in.Argc || t.Results != in.Results {
			return fmt.Errorf("%s: call of %s: %w", m.Name, name, host.ErrTrampolineConflict)
		}
	}
	h.routines[m.Name] = m
	h.log.Debug("routine replaced", "routine", m.Name, "bytes", len(m.Code))
	return nil
}

// BindTrampoline implements host.Runtime.
func (h *Host) BindTrampoline(t host.Trampoline) error {
	if t.Name == "" || t.Fn == nil {
		return fmt.Errorf("trampoline %q: missing name or function", t.Name)
	}
	if prev, ok := h.trampolines[t.Name]; ok && (prev.Argc != t.Argc || prev.Results != t.Results) {
		return fmt.Errorf("%s: %w", t.Name, host.ErrTrampolineConflict)
	}
	h.trampolines[t.Name] = t
	return nil
}

func (h *Host) verify(m *bytecode.Method) (*bytecode.Body, error) {
	body, err := bytecode.Decode(m)
	if err != nil {
		return nil, err
	}
	if _, err := bytecode.VerifyStack(body); err != nil {
		return nil, err
	}
	return body, nil
}

// Routines returns the names of every routine, sorted.
func (h *Host) Routines() []string {
	names := make([]string, 0, len(h.routines))
	for name := range h.routines {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Run invokes a routine.
func (h *Host) Run(name string, self any, args ...any) (any, error) {
	m, ok := h.routines[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, host.ErrNoRoutine)
	}
	return h.execute(m, self, args)
}

// ---------------------------------------------------------------------------
// Host surface
// ---------------------------------------------------------------------------

// Session returns the terminal session.
func (h *Host) Session() *OS {
	return h.session
}

// Programs returns the built-in program table.
func (h *Host) Programs() *Programs {
	return h.programs
}

// Gui returns the draw batch bookkeeping.
func (h *Host) Gui() *Gui {
	return h.gui
}

// Command runs one terminal line. "exe" lists executables; anything else
// launches the program with that name.
func (h *Host) Command(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	if fields[0] == "exe" {
		_, err := h.Run("Programs.execute", h.programs, listOf(fields), h.session)
		return err
	}
	_, err := h.Run("OS.launchExecutable", h.session, fields[0], listOf(fields[1:]))
	return err
}

// Update runs one session update.
func (h *Host) Update(dt float64) error {
	_, err := h.Run("OS.update", h.session, dt)
	return err
}

// Draw runs one session draw.
func (h *Host) Draw(dt float64) error {
	_, err := h.Run("OS.draw", h.session, dt)
	return err
}

// DrawOptions draws the options menu.
func (h *Host) DrawOptions() error {
	_, err := h.Run("OptionsMenu.draw", OptionsMenu{})
	return err
}

// DrawMainMenu draws the main menu.
func (h *Host) DrawMainMenu(dt float64) error {
	_, err := h.Run("MainMenu.draw", MainMenu{}, dt)
	return err
}

// LoadFile stores a file from content data into folder, the way the host's
// computer loader does.
func (h *Host) LoadFile(folder *Folder, name, data string) error {
	_, err := h.Run("ComputerLoader.loadFile", ComputerLoader{}, folder, name, data)
	return err
}

// Frame runs one host frame for the current screen.
func (h *Host) Frame(dt float64) error {
	h.Widgets.Reset()
	switch h.screen {
	case ScreenOptions:
		return h.DrawOptions()
	case ScreenSession:
		if err := h.Update(dt); err != nil {
			return err
		}
		return h.Draw(dt)
	default:
		return h.DrawMainMenu(dt)
	}
}

// Screen returns the menu the host shows.
func (h *Host) Screen() Screen {
	return h.screen
}

// SetScreen switches menus.
func (h *Host) SetScreen(s Screen) {
	h.screen = s
}

// Exit asks the host to quit after the current frame.
func (h *Host) Exit() {
	h.exit = true
}

// ExitRequested reports whether Exit was called.
func (h *Host) ExitRequested() bool {
	return h.exit
}
