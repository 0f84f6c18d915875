package plugins

import (
	"github.com/joshp123/gohome-switchbot/internal/core"
	"github.com/joshp123/gohome-switchbot/plugins/switchbot"
)

func init() {
	Register(func(env Env) (core.Plugin, bool) {
		opts := switchbot.Options{
			Config: env.Config.SwitchBot,
			MQTT:   env.Config.MQTT,
			Relay:  env.Relay,
			Logger: env.Logger,
		}
		if env.Entries != nil {
			opts.Store = env.Entries
		}
		plugin, ok := switchbot.NewPlugin(opts)
		if !ok {
			return nil, false
		}
		return plugin, true
	})
}
