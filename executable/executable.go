// Package executable runs extension programs inside host sessions.
//
// Extensions register an executable type under the identifier content
// authors use in host data files. The Manager rewrites that identifier to
// the type's encoded program data when the host loads files, and starts an
// instance when a session launches a file carrying the data. Starting goes
// through admission: the proxy check, then the memory check, then the
// instance's own initialisation.
package executable

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/prodzpod/Hacknet-Pathfinder/host"
)

// ErrConstruction wraps every failure to build or initialise an instance.
var ErrConstruction = errors.New("executable construction failed")

// Messages written to the session terminal.
const (
	MsgProxyActive        = "Proxy Active -- Cannot Execute"
	MsgInsufficientMemory = "Insufficient Memory"
)

// Context is what an instance learns about its launch.
type Context struct {
	ID        uuid.UUID
	LogicalID string
	TypeName  string
	OS        host.OS
	Bounds    host.Rect
	Args      []string
	Cost      int
}

// Executable is a live extension program. Most implementations embed Base
// and override the hooks they need.
type Executable interface {
	host.Exe

	// Assign hands the instance its launch context before admission.
	Assign(ctx Context)

	// InstanceID identifies this launch in logs and completion events.
	InstanceID() uuid.UUID

	NeedsProxyAccess() bool
	IgnoreProxyFailPrint() bool
	IgnoreMemoryBehaviorPrint() bool

	// CanAddToSystem is asked after OnInitialize. An instance that did its
	// work during initialisation returns false and never becomes live.
	CanAddToSystem() bool

	OnInitialize() error
	OnProxyBypassFailure()
	OnNoAvailableRAM()

	// Completed is called when the host removes the exited instance.
	Completed()

	// PropagatesFatalErrors reports whether err, raised while the instance
	// was being admitted, must crash the host instead of being logged.
	PropagatesFatalErrors(err error) bool
}

// Factory creates an unadmitted instance.
type Factory func() (Executable, error)

// FatalError is panicked when an instance asks for an admission failure to
// propagate.
type FatalError struct {
	LogicalID string
	Instance  uuid.UUID
	Err       error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("executable %s: fatal: %v", e.LogicalID, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Base implements every Executable hook with the host's defaults: no proxy
// access needed, messages printed, added to the system on start, errors
// swallowed.
type Base struct {
	Context

	// Name overrides the identifier shown in the RAM module. It defaults to
	// the logical identifier.
	Name string

	// RAM overrides the registered cost when non-zero.
	RAM int

	NeedsProxy bool
	Exiting    bool
}

func (b *Base) Assign(ctx Context) {
	b.Context = ctx
	if b.Name == "" {
		b.Name = ctx.LogicalID
	}
	if b.RAM == 0 {
		b.RAM = ctx.Cost
	}
}

func (b *Base) InstanceID() uuid.UUID { return b.ID }

func (b *Base) Identifier() string { return b.Name }
func (b *Base) RAMCost() int       { return b.RAM }
func (b *Base) Update(float64)     {}
func (b *Base) Draw(float64)       {}
func (b *Base) IsExiting() bool    { return b.Exiting }

// Exit marks the instance for removal on the next session update.
func (b *Base) Exit() { b.Exiting = true }

func (b *Base) NeedsProxyAccess() bool          { return b.NeedsProxy }
func (b *Base) IgnoreProxyFailPrint() bool      { return false }
func (b *Base) IgnoreMemoryBehaviorPrint() bool { return false }
func (b *Base) CanAddToSystem() bool            { return true }

func (b *Base) OnInitialize() error              { return nil }
func (b *Base) OnProxyBypassFailure()            {}
func (b *Base) OnNoAvailableRAM()                {}
func (b *Base) Completed()                       {}
func (b *Base) PropagatesFatalErrors(error) bool { return false }
