package channels

import (
	jsoniter "github.com/json-iterator/go"

	"pricepulse/pkg/api"
	"pricepulse/pkg/config"
	"pricepulse/pkg/dashboard"
)

// Deps bundles the shared resources a channel may need at construction time.
type Deps struct {
	// Engine serves transcript sync and session resets for connecting clients.
	Engine api.AssistantEngine
	// State is the dashboard state channels observe for navigation pushes.
	State *dashboard.State
	// System carries engine-level tuning parameters.
	System *config.SystemConfig
}

// ChannelFactory defines the abstract interface for transport-specific
// channel creators. New transports plug in without touching the gateway core.
type ChannelFactory interface {
	// Create instantiates a concrete Channel implementation using the
	// provided configuration and shared system resources.
	Create(rawConfig jsoniter.RawMessage, deps Deps) (api.Channel, error)
}

// channelRegistry maps transport names (e.g., "web") to their factories.
var channelRegistry = make(map[string]ChannelFactory)

// RegisterChannel adds a new ChannelFactory to the global internal registry.
// This is typically called during the package's init() phase.
func RegisterChannel(name string, factory ChannelFactory) {
	channelRegistry[name] = factory
}

// GetChannelFactory retrieves a registered ChannelFactory by transport name.
func GetChannelFactory(name string) (ChannelFactory, bool) {
	f, ok := channelRegistry[name]
	return f, ok
}
