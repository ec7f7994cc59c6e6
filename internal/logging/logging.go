// Package logging provides the single structured logger used across the
// engine. It wraps hclog.Logger behind a package-level singleton so callers
// never have to thread a logger through constructors that spec.md doesn't
// otherwise give room for (Unit, DepRef, Graph are all plain value-ish
// types with no logger field).
package logging

import (
	"os"
	"sync"

	hclog "github.com/hashicorp/go-hclog"
)

var root = sync.OnceValue(func() hclog.Logger {
	level := hclog.LevelFromString(os.Getenv("TASKGRAPH_LOG"))
	if level == hclog.NoLevel {
		level = hclog.Warn
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:            "taskgraph",
		Level:           level,
		Output:          os.Stderr,
		IncludeLocation: false,
	})
})

// Named returns a sub-logger scoped to the given component name, e.g.
// logging.Named("scheduler") or logging.Named("unit").
func Named(component string) hclog.Logger {
	return root().Named(component)
}
