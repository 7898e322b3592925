// Package logging configures the process-wide logger. Packages obtain named
// loggers with Get and log with key/value pairs:
//
//	log := logging.Get("pathfinder.patch")
//	log.Info("applied site", "site", id, "routine", routine)
package logging

import (
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

// Root is the prefix of every logger name used by this module.
const Root = "pathfinder"

// Configure sets the global verbosity and log destination. Verbosity 0 logs
// errors and warnings only, each increment adds a level (notice, info,
// debug). An empty path logs to stderr.
func Configure(verbosity int, path string) {
	if path == "" {
		commonlog.Configure(verbosity, nil)
		return
	}
	commonlog.Configure(verbosity, &path)
}

// Get returns the logger with the given name. Names without the root prefix
// are placed under it.
func Get(name string) commonlog.Logger {
	if name == "" {
		return commonlog.GetLogger(Root)
	}
	if len(name) > len(Root) && name[:len(Root)+1] == Root+"." {
		return commonlog.GetLogger(name)
	}
	return commonlog.GetLogger(Root + "." + name)
}
