// Package plugin loads extension modules in dependency order and tears them
// down again.
//
// Every loaded plugin gets a Handle. Registries key their entries by the
// handle of the plugin that made them, and the Loader calls its unload
// hooks with that handle so each registry can drop exactly that plugin's
// entries. A plugin that is unloaded and loaded again gets a new
// generation, so stale entries of the old load never match the new one.
package plugin

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/prodzpod/Hacknet-Pathfinder/config"
	"github.com/prodzpod/Hacknet-Pathfinder/patch"
)

// Handle identifies one load of a plugin.
type Handle struct {
	GUID string
	Gen  uint64
}

// IsZero reports whether h is the zero handle, used for host-owned entries.
func (h Handle) IsZero() bool {
	return h.GUID == "" && h.Gen == 0
}

// String implements the Stringer interface.
func (h Handle) String() string {
	if h.IsZero() {
		return "<host>"
	}
	return fmt.Sprintf("%s#%d", h.GUID, h.Gen)
}

// Dependency names another plugin by GUID. Soft dependencies only affect
// load order; hard dependencies must be loaded first.
type Dependency struct {
	GUID string
	Soft bool
}

// Info describes a plugin.
type Info struct {
	GUID         string
	Name         string
	Version      string
	Dependencies []Dependency
}

// Plugin is an extension module.
type Plugin interface {
	Info() Info
	Load(ctx *Context) error
}

// Unloader is implemented by plugins that need to release resources of
// their own when unloaded.
type Unloader interface {
	Unload(ctx *Context) error
}

// Context is handed to a plugin while it loads.
type Context struct {
	Handle Handle
	Log    commonlog.Logger
	Config *config.Config

	sites    []patch.Site
	sweepers []func()
}

// AddSites queues injection sites. They are applied together after Load
// returns; if any fails to apply the plugin fails to load.
func (c *Context) AddSites(sites ...patch.Site) {
	c.sites = append(c.sites, sites...)
}

// OnUnload registers fn to run when the plugin is unloaded or fails to
// load. Functions run in reverse registration order.
func (c *Context) OnUnload(fn func()) {
	c.sweepers = append(c.sweepers, fn)
}
