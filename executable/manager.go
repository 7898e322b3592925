package executable

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/prodzpod/Hacknet-Pathfinder/event"
	"github.com/prodzpod/Hacknet-Pathfinder/host"
	"github.com/prodzpod/Hacknet-Pathfinder/logging"
	"github.com/prodzpod/Hacknet-Pathfinder/metrics"
	"github.com/prodzpod/Hacknet-Pathfinder/plugin"
	"github.com/prodzpod/Hacknet-Pathfinder/registry"
)

// Descriptor is a registered executable type.
type Descriptor = registry.Descriptor[Factory]

// Manager owns the executable registry and the event handlers that resolve
// it. It is used from the host control goroutine only.
type Manager struct {
	log      commonlog.Logger
	metrics  metrics.Metrics
	reg      *registry.Registry[Factory]
	events   *event.Catalog
	programs host.Programs

	textHandler, execHandler event.HandlerID
}

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics reports admission outcomes to m.
func WithMetrics(m metrics.Metrics) Option {
	return func(mgr *Manager) { mgr.metrics = m }
}

// WithPrograms lets directory listings recognise the host's built-in
// programs.
func WithPrograms(p host.Programs) Option {
	return func(mgr *Manager) { mgr.programs = p }
}

// NewManager creates a manager and subscribes it to the text replacement
// and execute events of events.
func NewManager(events *event.Catalog, opts ...Option) *Manager {
	m := &Manager{
		log:     logging.Get("executable"),
		metrics: metrics.Noop{},
		reg:     registry.New[Factory](),
		events:  events,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.textHandler = events.TextReplace.AddHandler(plugin.Handle{}, 0, m.replaceText)
	m.execHandler = events.ExecutableExecute.AddHandler(plugin.Handle{}, 0, m.execute)
	return m
}

// Close unsubscribes the manager.
func (m *Manager) Close() {
	m.events.TextReplace.RemoveHandler(m.textHandler)
	m.events.ExecutableExecute.RemoveHandler(m.execHandler)
}

// RegisterOption adjusts a descriptor before it is stored.
type RegisterOption func(*Descriptor)

// Cost sets the memory an instance commits while it runs.
func Cost(ram int) RegisterOption {
	return func(d *Descriptor) { d.Cost = ram }
}

// Register adds an executable type under xmlID and returns the program data
// files of the type must carry. typeName is the fully qualified name the
// data is derived from.
func (m *Manager) Register(owner plugin.Handle, xmlID, typeName string, factory Factory, opts ...RegisterOption) (string, error) {
	if factory == nil {
		return "", fmt.Errorf("%s: %w: nil factory", xmlID, registry.ErrInvalidDescriptor)
	}
	d := Descriptor{LogicalID: xmlID, TypeName: typeName, Factory: factory, Owner: owner}
	for _, opt := range opts {
		opt(&d)
	}
	stored, err := m.reg.Register(d)
	if err != nil {
		return "", err
	}
	m.log.Debug("registered executable", "id", xmlID, "type", typeName, "owner", owner.String())
	return stored.Encoded, nil
}

// Unregister removes every type registered under xmlID.
func (m *Manager) Unregister(xmlID string) int {
	return m.reg.Unregister(xmlID)
}

// UnregisterType removes every registration of the type.
func (m *Manager) UnregisterType(typeName string) int {
	return m.reg.UnregisterType(typeName)
}

// UnregisterAll removes the types registered by owner.
func (m *Manager) UnregisterAll(owner plugin.Handle) int {
	return m.reg.UnregisterAll(owner)
}

// Data returns the program data of the type registered under xmlID.
func (m *Manager) Data(xmlID string) (string, bool) {
	d, ok := m.reg.LookupLogical(xmlID)
	return d.Encoded, ok
}

// IsCustomData reports whether data is the program data of a registered
// type.
func (m *Manager) IsCustomData(data string) bool {
	return m.reg.IsEncoded(data)
}

// Lookup returns the type whose program data is data.
func (m *Manager) Lookup(data string) (Descriptor, bool) {
	return m.reg.LookupEncoded(data)
}

// Types returns every registered type in registration order.
func (m *Manager) Types() []Descriptor {
	return m.reg.All()
}

// ---------------------------------------------------------------------------
// Event handlers
// ---------------------------------------------------------------------------

func (m *Manager) replaceText(ev *event.TextReplace) {
	if d, ok := m.reg.LookupLogical(ev.Original); ok {
		ev.Replacement = d.Encoded
	}
}

// execute claims launches of registered program data. A request another
// handler already answered is left alone.
func (m *Manager) execute(ev *event.ExecutableExecute) {
	if ev.Result != event.NotHandled {
		return
	}
	d, ok := m.reg.LookupEncoded(ev.ExecutableData)
	if !ok {
		return
	}
	ev.Result = m.Start(ev.OS, d, ev.Arguments)
}

// Start runs admission for one instance of d in os:
//
//	Requested -> AccessDenied | ResourceExceeded | Admitted
//	Admitted  -> Started | ConstructionFailed
//
// Errors and panics raised on the way end the attempt as
// ConstructionFailed, unless the instance asks for them to propagate, in
// which case Start panics with a *FatalError.
func (m *Manager) Start(os host.OS, d Descriptor, args []string) (result event.Result) {
	var inst Executable
	defer func() {
		if r := recover(); r != nil {
			fe, ok := r.(*FatalError)
			if !ok {
				err, ok := r.(error)
				if !ok {
					err = fmt.Errorf("panic: %v", r)
				}
				fe = m.failure(d, inst, err)
			}
			result = event.ConstructionFailed
			if fe != nil {
				m.metrics.IncExecution(result.String())
				panic(fe)
			}
		}
		m.metrics.IncExecution(result.String())
	}()

	inst, err := d.Factory()
	if err == nil && inst == nil {
		err = fmt.Errorf("factory returned no instance")
	}
	if err != nil {
		return m.failed(d, nil, err)
	}

	inst.Assign(Context{
		ID:        uuid.New(),
		LogicalID: d.LogicalID,
		TypeName:  d.TypeName,
		OS:        os,
		Bounds:    os.ExeBounds(),
		Args:      args,
		Cost:      d.Cost,
	})

	if inst.NeedsProxyAccess() && os.ProxyActive() {
		inst.OnProxyBypassFailure()
		if !inst.IgnoreProxyFailPrint() {
			os.Write(MsgProxyActive)
		}
		return event.AccessDenied
	}

	if os.RAMAvailable() < inst.RAMCost() {
		inst.OnNoAvailableRAM()
		if !inst.IgnoreMemoryBehaviorPrint() {
			os.FlashMemoryWarning()
			os.Write(MsgInsufficientMemory)
		}
		return event.ResourceExceeded
	}

	if err := inst.OnInitialize(); err != nil {
		return m.failed(d, inst, err)
	}
	if inst.CanAddToSystem() {
		os.AddExe(inst)
	}
	m.log.Debug("started executable", "id", d.LogicalID, "instance", inst.InstanceID().String(), "ram", inst.RAMCost())
	return event.Started
}

func (m *Manager) failed(d Descriptor, inst Executable, err error) event.Result {
	if fe := m.failure(d, inst, err); fe != nil {
		panic(fe)
	}
	return event.ConstructionFailed
}

// failure logs a failed admission. It returns the error to panic with when
// the instance wants it to propagate.
func (m *Manager) failure(d Descriptor, inst Executable, err error) *FatalError {
	err = fmt.Errorf("%s (%s): %w: %w", d.LogicalID, d.TypeName, ErrConstruction, err)
	instance := uuid.Nil
	if inst != nil {
		instance = inst.InstanceID()
	}
	if inst != nil && inst.PropagatesFatalErrors(err) {
		m.log.Critical("executable failed fatally", "id", d.LogicalID, "instance", instance.String(), "error", err)
		return &FatalError{LogicalID: d.LogicalID, Instance: instance, Err: err}
	}
	m.log.Error("executable failed to start", "id", d.LogicalID, "instance", instance.String(), "error", err)
	return nil
}
