// Package api wires the extension core to a host: it patches the host's
// routines once, owns the process-wide registries and the event bus, and
// loads plugins.
//
// Init and Shutdown bracket the core's lifetime. Everything except the
// update check runs on the host control goroutine, so the API holds no
// locks.
package api

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/prodzpod/Hacknet-Pathfinder/config"
	"github.com/prodzpod/Hacknet-Pathfinder/event"
	"github.com/prodzpod/Hacknet-Pathfinder/executable"
	"github.com/prodzpod/Hacknet-Pathfinder/host"
	"github.com/prodzpod/Hacknet-Pathfinder/logging"
	"github.com/prodzpod/Hacknet-Pathfinder/metrics"
	"github.com/prodzpod/Hacknet-Pathfinder/options"
	"github.com/prodzpod/Hacknet-Pathfinder/patch"
	"github.com/prodzpod/Hacknet-Pathfinder/plugin"
	"github.com/prodzpod/Hacknet-Pathfinder/tick"
	"github.com/prodzpod/Hacknet-Pathfinder/updater"
)

// Version is the core version.
const Version = "5.2.0"

// CoreModule is the module name the core's own sites are applied under.
const CoreModule = "core"

var (
	ErrInitialized    = errors.New("api already initialized")
	ErrNotInitialized = errors.New("api not initialized")
)

var current *API

// Default returns the API set up by Init, or nil.
func Default() *API {
	return current
}

// API is the initialised core.
type API struct {
	Config      *config.Config
	Metrics     metrics.Metrics
	Bus         *event.Bus
	Events      *event.Catalog
	Executables *executable.Manager
	Options     *options.Menu
	Patcher     *patch.Patcher
	Plugins     *plugin.Loader
	Tick        *tick.Queue
	Updater     *updater.Updater

	log commonlog.Logger
}

type settings struct {
	config    *config.Config
	metrics   metrics.Metrics
	programs  host.Programs
	exit      func()
	update    bool
	installer updater.Installer
}

// Option configures Init.
type Option func(*settings)

// WithConfig uses cfg instead of the defaults.
func WithConfig(cfg *config.Config) Option {
	return func(s *settings) { s.config = cfg }
}

// WithMetrics reports executions, patch sites and handler invocations to m.
func WithMetrics(m metrics.Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

// WithPrograms lets the executable listing recognise built-in programs.
func WithPrograms(p host.Programs) Option {
	return func(s *settings) { s.programs = p }
}

// WithExit sets how the core asks the host to quit.
func WithExit(fn func()) Option {
	return func(s *settings) { s.exit = fn }
}

// WithUpdater loads the update check plugin. installer may be nil.
func WithUpdater(installer updater.Installer) Option {
	return func(s *settings) {
		s.update = true
		s.installer = installer
	}
}

// Init patches rt and sets up the core. The options menu draws with w. Init
// fails if the host's routines do not have the shape the core patches
// expect; nothing is patched then.
func Init(rt host.Runtime, w host.Widgets, opts ...Option) (*API, error) {
	if current != nil {
		return nil, ErrInitialized
	}
	s := settings{}
	for _, opt := range opts {
		opt(&s)
	}
	if s.config == nil {
		s.config = config.Default()
	}
	if s.metrics == nil {
		s.metrics = metrics.Noop{}
	}

	a := &API{
		Config:  s.config,
		Metrics: s.metrics,
		Bus:     event.NewBus(s.metrics),
		Tick:    &tick.Queue{},
		log:     logging.Get("api"),
	}
	a.Events = event.NewCatalog(a.Bus)
	exeOpts := []executable.Option{executable.WithMetrics(s.metrics)}
	if s.programs != nil {
		exeOpts = append(exeOpts, executable.WithPrograms(s.programs))
	}
	a.Executables = executable.NewManager(a.Events, exeOpts...)
	a.Options = options.NewMenu(a.Events, w, s.config)
	a.Patcher = patch.NewPatcher(rt, patch.WithMetrics(s.metrics))

	var sites []patch.Site
	sites = append(sites, a.Executables.Sites()...)
	sites = append(sites, a.Options.Sites()...)
	sites = append(sites, a.coreSites(w)...)
	if err := a.Patcher.Apply(CoreModule, sites); err != nil {
		a.Executables.Close()
		a.Options.Detach()
		return nil, fmt.Errorf("patch host: %w", err)
	}

	a.Plugins = plugin.NewLoader(a.Patcher, s.config)
	a.Plugins.OnUnload(a.sweep)
	current = a

	if s.update {
		a.Updater = &updater.Updater{
			Version:   Version,
			Events:    a.Events,
			Menu:      a.Options,
			Queue:     a.Tick,
			Installer: s.installer,
			Exit:      s.exit,
		}
		if _, err := a.Plugins.Load(a.Updater); err != nil {
			a.log.Error("updater not loaded", "error", err)
		}
	}

	a.log.Info("initialized", "version", Version, "sites", len(sites))
	return a, nil
}

// LoadPlugins loads plugins in dependency order. See plugin.Loader.LoadAll.
func (a *API) LoadPlugins(plugins ...plugin.Plugin) error {
	return a.Plugins.LoadAll(plugins...)
}

// sweep drops everything a plugin registered with the core.
func (a *API) sweep(h plugin.Handle) {
	exes := a.Executables.UnregisterAll(h)
	handlers := a.Bus.RemoveOwner(h)
	tabs := a.Options.RemoveOwner(h)
	a.log.Debug("swept plugin", "plugin", h.String(), "executables", exes, "handlers", handlers, "tabs", tabs)
}

// Shutdown unloads every plugin and releases the API. The host keeps its
// patched routines; their trampolines publish to handlers that are gone.
func Shutdown() error {
	a := current
	if a == nil {
		return ErrNotInitialized
	}
	a.Plugins.UnloadAll()
	if a.Updater != nil {
		a.Updater.Wait()
	}
	a.Executables.Close()
	a.Options.Detach()
	current = nil
	a.log.Info("shut down")
	return nil
}
