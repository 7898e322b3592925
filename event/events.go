package event

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/prodzpod/Hacknet-Pathfinder/host"
)

// Result is the outcome of an execution request.
type Result int

const (
	NotHandled Result = iota
	Started
	AccessDenied
	ResourceExceeded
	ConstructionFailed
)

var resultNames = [...]string{
	NotHandled:         "not_handled",
	Started:            "started",
	AccessDenied:       "access_denied",
	ResourceExceeded:   "resource_exceeded",
	ConstructionFailed: "construction_failed",
}

// String implements the Stringer interface.
func (r Result) String() string {
	if r >= 0 && int(r) < len(resultNames) {
		return resultNames[r]
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

// TextReplace is published for every file the host loads from content
// data. Handlers set Replacement to change what the host stores.
type TextReplace struct {
	Base
	Original    string
	Replacement string
}

// ExecutableExecute is published when a session launches a program whose
// data matches no built-in program.
type ExecutableExecute struct {
	Base
	OS             host.OS
	ExecutableName string
	ExecutableData string
	Arguments      []string
	Result         Result
}

// OSUpdate is published at the start of every session update.
type OSUpdate struct {
	Base
	OS host.OS
	DT float64
}

// OSDraw is published after a session draws its programs.
type OSDraw struct {
	Base
	OS host.OS
	DT float64
}

// ExecutableCompleted is published when a live program is removed after
// exiting. ID is the launch's instance ID, or uuid.Nil for host programs.
type ExecutableCompleted struct {
	Base
	OS  host.OS
	Exe host.Exe
	ID  uuid.UUID
}

// OptionsDraw is published before the host draws its options menu. A
// handler that draws the menu itself sets Handled so the host skips its
// own drawing.
type OptionsDraw struct {
	Base
	Widgets host.Widgets
	Handled bool
}

// OptionsSave is published when the user leaves the extension options.
type OptionsSave struct {
	Base
}

// MainMenuDraw is published after the host draws its main menu.
type MainMenuDraw struct {
	Base
	Widgets host.Widgets
	DT      float64
}

// Catalog holds the event kinds the core patches publish.
type Catalog struct {
	Bus                 *Bus
	TextReplace         *Kind[*TextReplace]
	ExecutableExecute   *Kind[*ExecutableExecute]
	OSUpdate            *Kind[*OSUpdate]
	OSDraw              *Kind[*OSDraw]
	ExecutableCompleted *Kind[*ExecutableCompleted]
	OptionsDraw         *Kind[*OptionsDraw]
	OptionsSave         *Kind[*OptionsSave]
	MainMenuDraw        *Kind[*MainMenuDraw]
}

// NewCatalog creates every standard kind on bus.
func NewCatalog(bus *Bus) *Catalog {
	return &Catalog{
		Bus:                 bus,
		TextReplace:         NewKind[*TextReplace](bus, "text_replace"),
		ExecutableExecute:   NewKind[*ExecutableExecute](bus, "executable_execute"),
		OSUpdate:            NewKind[*OSUpdate](bus, "os_update"),
		OSDraw:              NewKind[*OSDraw](bus, "os_draw"),
		ExecutableCompleted: NewKind[*ExecutableCompleted](bus, "executable_completed"),
		OptionsDraw:         NewKind[*OptionsDraw](bus, "options_draw"),
		OptionsSave:         NewKind[*OptionsSave](bus, "options_save"),
		MainMenuDraw:        NewKind[*MainMenuDraw](bus, "main_menu_draw"),
	}
}
