package plugins

import (
	"go.uber.org/zap"

	"github.com/joshp123/gohome-switchbot/internal/cloud"
	"github.com/joshp123/gohome-switchbot/internal/config"
	"github.com/joshp123/gohome-switchbot/internal/core"
	"github.com/joshp123/gohome-switchbot/internal/entries"
)

// Env carries the shared services plugins are built from.
type Env struct {
	Config  *config.Config
	Entries *entries.Store
	Relay   cloud.Relay
	Logger  *zap.Logger
}

// Factory builds a plugin instance from the loaded config.
type Factory func(Env) (core.Plugin, bool)

var compiled []Factory

// Register adds a compiled-in plugin factory to the registry.
func Register(factory Factory) {
	compiled = append(compiled, factory)
}

// Compiled returns the configured plugin instances for this build.
func Compiled(env Env) []core.Plugin {
	if env.Config == nil {
		return nil
	}
	out := make([]core.Plugin, 0, len(compiled))
	for _, factory := range compiled {
		plugin, ok := factory(env)
		if !ok {
			continue
		}
		out = append(out, plugin)
	}
	return out
}
