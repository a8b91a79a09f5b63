package gateway

import (
	"fmt"

	"pricepulse/pkg/api"
	"pricepulse/pkg/config"
	"pricepulse/pkg/monitor"
)

// GatewayBuilder assembles and starts a GatewayManager with its
// dependencies. All components (channels, engine, monitor) are pre-built and
// injected as instances; the builder only wires and starts them.
type GatewayBuilder struct {
	gw           *GatewayManager
	monitor      monitor.Monitor
	systemConfig *config.SystemConfig
	channels     []api.Channel
	engine       api.AssistantEngine
}

// NewGatewayBuilder creates a fresh builder with an empty manager.
func NewGatewayBuilder() *GatewayBuilder {
	return &GatewayBuilder{
		gw: NewGatewayManager(),
	}
}

// WithMonitor injects a monitoring implementation. The monitor is started
// automatically during Build().
func (b *GatewayBuilder) WithMonitor(m monitor.Monitor) *GatewayBuilder {
	b.monitor = m
	return b
}

// WithSystemConfig provides engine-level technical parameters, used to size
// internal buffers.
func (b *GatewayBuilder) WithSystemConfig(cfg *config.SystemConfig) *GatewayBuilder {
	b.systemConfig = cfg
	return b
}

// WithChannel adds pre-built channel instances to the gateway.
func (b *GatewayBuilder) WithChannel(channels ...api.Channel) *GatewayBuilder {
	b.channels = append(b.channels, channels...)
	return b
}

// WithEngine injects the assistant engine. Build() wires the gateway in as
// the engine's responder and the engine in as the message handler.
func (b *GatewayBuilder) WithEngine(engine api.AssistantEngine) *GatewayBuilder {
	b.engine = engine
	return b
}

// Build finalizes the wiring, starts the monitor and every channel, and
// returns the operational GatewayManager.
func (b *GatewayBuilder) Build() (*GatewayManager, error) {
	if b.systemConfig != nil {
		b.gw.SetChannelBuffer(b.systemConfig.InternalChannelBuffer)
	}

	if b.monitor != nil {
		b.gw.SetMonitor(b.monitor)
		if err := b.monitor.Start(); err != nil {
			return nil, fmt.Errorf("failed to start monitor: %w", err)
		}
	}

	for _, c := range b.channels {
		b.gw.Register(c)
	}

	if b.engine != nil {
		b.engine.SetResponder(b.gw)
		b.gw.SetMessageHandler(b.engine.HandleMessage)
	}

	if err := b.gw.StartAll(); err != nil {
		return nil, fmt.Errorf("failed to start channels: %w", err)
	}

	return b.gw, nil
}
