package plugin

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/prodzpod/Hacknet-Pathfinder/config"
	"github.com/prodzpod/Hacknet-Pathfinder/logging"
	"github.com/prodzpod/Hacknet-Pathfinder/patch"
)

var (
	ErrDuplicatePlugin   = errors.New("plugin already loaded")
	ErrMissingDependency = errors.New("missing hard dependency")
	ErrDependencyCycle   = errors.New("dependency cycle")
	ErrNotLoaded         = errors.New("plugin not loaded")
	ErrInvalidPlugin     = errors.New("invalid plugin")
)

// SiteApplier commits a module's injection sites atomically.
// *patch.Patcher implements it.
type SiteApplier interface {
	Apply(module string, sites []patch.Site) error
}

type loaded struct {
	plugin Plugin
	ctx    *Context
}

// Loader owns the set of loaded plugins. It is used from the host control
// goroutine only.
type Loader struct {
	sites  SiteApplier
	config *config.Config
	log    commonlog.Logger

	gens   map[string]uint64
	loaded map[string]*loaded
	order  []string
	hooks  []func(Handle)
}

// NewLoader creates a loader that applies plugin sites through sites. cfg
// is handed to plugins and may be nil.
func NewLoader(sites SiteApplier, cfg *config.Config) *Loader {
	return &Loader{
		sites:  sites,
		config: cfg,
		log:    logging.Get("plugin"),
		gens:   make(map[string]uint64),
		loaded: make(map[string]*loaded),
	}
}

// OnUnload registers a hook run for every plugin that is unloaded or fails
// to load, after the plugin's own teardown. Registries use it to drop the
// plugin's entries.
func (l *Loader) OnUnload(hook func(Handle)) {
	l.hooks = append(l.hooks, hook)
}

// Handle returns the handle of the loaded plugin with the given GUID.
func (l *Loader) Handle(guid string) (Handle, bool) {
	e, ok := l.loaded[guid]
	if !ok {
		return Handle{}, false
	}
	return e.ctx.Handle, true
}

// Loaded returns the handles of all loaded plugins in load order.
func (l *Loader) Loaded() []Handle {
	out := make([]Handle, 0, len(l.order))
	for _, guid := range l.order {
		out = append(out, l.loaded[guid].ctx.Handle)
	}
	return out
}

// Order sorts plugins so that every plugin comes after the plugins it
// depends on. Plugins already loaded satisfy dependencies. Ties keep the
// input order.
func (l *Loader) Order(plugins []Plugin) ([]Plugin, error) {
	byGUID := make(map[string]Plugin, len(plugins))
	for _, p := range plugins {
		info := p.Info()
		if info.GUID == "" {
			return nil, fmt.Errorf("%w: %T has no GUID", ErrInvalidPlugin, p)
		}
		if _, dup := byGUID[info.GUID]; dup {
			return nil, fmt.Errorf("%s: %w", info.GUID, ErrDuplicatePlugin)
		}
		byGUID[info.GUID] = p
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(plugins))
	var order []Plugin

	var visit func(p Plugin, path []string) error
	visit = func(p Plugin, path []string) error {
		info := p.Info()
		switch state[info.GUID] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w: %v", ErrDependencyCycle, append(path, info.GUID))
		}
		state[info.GUID] = visiting
		for _, dep := range info.Dependencies {
			if next, ok := byGUID[dep.GUID]; ok {
				if err := visit(next, append(path, info.GUID)); err != nil {
					return err
				}
			}
		}
		state[info.GUID] = done
		order = append(order, p)
		return nil
	}

	for _, p := range plugins {
		if err := visit(p, nil); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// LoadAll loads plugins in dependency order. A plugin that fails to load is
// skipped, and so is every plugin with a hard dependency on it; the other
// plugins still load. The returned error joins every failure.
func (l *Loader) LoadAll(plugins ...Plugin) error {
	order, err := l.Order(plugins)
	if err != nil {
		return err
	}
	var errs []error
	for _, p := range order {
		if _, err := l.Load(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Load loads a single plugin. Its hard dependencies must already be loaded.
func (l *Loader) Load(p Plugin) (Handle, error) {
	info := p.Info()
	if info.GUID == "" {
		return Handle{}, fmt.Errorf("%w: %T has no GUID", ErrInvalidPlugin, p)
	}
	if _, ok := l.loaded[info.GUID]; ok {
		return Handle{}, fmt.Errorf("%s: %w", info.GUID, ErrDuplicatePlugin)
	}
	for _, dep := range info.Dependencies {
		if _, ok := l.loaded[dep.GUID]; !ok && !dep.Soft {
			return Handle{}, fmt.Errorf("%s: %w %s", info.GUID, ErrMissingDependency, dep.GUID)
		}
	}

	l.gens[info.GUID]++
	h := Handle{GUID: info.GUID, Gen: l.gens[info.GUID]}
	ctx := &Context{
		Handle: h,
		Log:    logging.Get("plugin." + info.GUID),
		Config: l.config,
	}

	if err := l.call(info.GUID, func() error { return p.Load(ctx) }); err != nil {
		l.sweep(ctx)
		l.log.Error("plugin failed to load", "plugin", h.String(), "error", err)
		return Handle{}, fmt.Errorf("%s: load: %w", info.GUID, err)
	}
	if len(ctx.sites) > 0 && l.sites != nil {
		if err := l.sites.Apply(info.GUID, ctx.sites); err != nil {
			l.teardown(p, ctx)
			l.log.Error("plugin patches failed", "plugin", h.String(), "error", err)
			return Handle{}, fmt.Errorf("%s: %w", info.GUID, err)
		}
	}

	l.loaded[info.GUID] = &loaded{plugin: p, ctx: ctx}
	l.order = append(l.order, info.GUID)
	l.log.Info("plugin loaded", "plugin", h.String(), "name", info.Name, "version", info.Version)
	return h, nil
}

// Unload tears the plugin down synchronously: its own Unload, then its
// OnUnload functions, then the loader hooks. A handle from an earlier load
// of the same GUID is rejected.
func (l *Loader) Unload(h Handle) error {
	e, ok := l.loaded[h.GUID]
	if !ok || e.ctx.Handle != h {
		return fmt.Errorf("%s: %w", h, ErrNotLoaded)
	}
	for _, guid := range l.order {
		if guid == h.GUID {
			continue
		}
		for _, dep := range l.loaded[guid].plugin.Info().Dependencies {
			if dep.GUID == h.GUID && !dep.Soft {
				l.log.Warning("unloading a hard dependency of a loaded plugin", "plugin", h.String(), "dependent", guid)
			}
		}
	}

	delete(l.loaded, h.GUID)
	for i, guid := range l.order {
		if guid == h.GUID {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	l.teardown(e.plugin, e.ctx)
	l.log.Info("plugin unloaded", "plugin", h.String())
	return nil
}

// UnloadAll unloads every plugin in reverse load order.
func (l *Loader) UnloadAll() {
	for len(l.order) > 0 {
		guid := l.order[len(l.order)-1]
		_ = l.Unload(l.loaded[guid].ctx.Handle)
	}
}

func (l *Loader) teardown(p Plugin, ctx *Context) {
	if u, ok := p.(Unloader); ok {
		if err := l.call(ctx.Handle.GUID, func() error { return u.Unload(ctx) }); err != nil {
			l.log.Error("plugin unload failed", "plugin", ctx.Handle.String(), "error", err)
		}
	}
	l.sweep(ctx)
}

func (l *Loader) sweep(ctx *Context) {
	for i := len(ctx.sweepers) - 1; i >= 0; i-- {
		ctx.sweepers[i]()
	}
	ctx.sweepers = nil
	for _, hook := range l.hooks {
		hook(ctx.Handle)
	}
}

// call runs fn and converts a panic into an error.
func (l *Loader) call(guid string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", guid, r)
		}
	}()
	return fn()
}
