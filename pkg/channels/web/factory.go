package web

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"pricepulse/pkg/api"
	"pricepulse/pkg/channels"
)

// WebFactory builds the websocket channel for the dashboard widget.
type WebFactory struct{}

// Create implements channels.ChannelFactory
func (f *WebFactory) Create(rawConfig jsoniter.RawMessage, deps channels.Deps) (api.Channel, error) {
	pCfg := WebConfig{Port: 9453}

	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &pCfg); err != nil {
			return nil, fmt.Errorf("failed to parse web config: %w", err)
		}
	}

	return NewWebChannel(pCfg, deps.Engine, deps.State), nil
}

func init() {
	channels.RegisterChannel("web", &WebFactory{})
}
