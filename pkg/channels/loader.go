package channels

import (
	"log/slog"

	jsoniter "github.com/json-iterator/go"

	"pricepulse/pkg/api"
)

// LoadFromConfig acts as the central orchestration point for dynamic channel
// initialization. It iterates through the provided configuration map,
// resolves factories, and returns the constructed channels for the gateway
// builder to register and start.
func LoadFromConfig(configs map[string]jsoniter.RawMessage, deps Deps) []api.Channel {
	var out []api.Channel
	for name, rawConfig := range configs {
		factory, ok := GetChannelFactory(name)
		if !ok {
			slog.Warn("Unknown channel type", "name", name)
			continue
		}

		channel, err := factory.Create(rawConfig, deps)
		if err != nil {
			slog.Error("Failed to create channel", "name", name, "error", err)
			continue
		}

		// A nil channel without error means the factory declined to start
		// (e.g., disabled in config); skip quietly.
		if channel == nil {
			continue
		}

		out = append(out, channel)
		slog.Info("Channel created", "name", name)
	}
	return out
}
