// Package gateway routes messages between transport channels and the
// assistant engine, and fans replies out to monitors.
package gateway

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pricepulse/pkg/llm"
	"pricepulse/pkg/monitor"
)

// GatewayManager owns every registered Channel and routes messages between
// them and the configured handler.
type GatewayManager struct {
	channels      map[string]Channel
	msgHandler    MessageHandler
	monitor       monitor.Monitor
	channelBuffer int
	mu            sync.RWMutex
}

// NewGatewayManager creates an empty manager with default buffering.
func NewGatewayManager() *GatewayManager {
	return &GatewayManager{
		channels:      make(map[string]Channel),
		channelBuffer: 100,
	}
}

// SetChannelBuffer sets the internal stream buffer size.
func (g *GatewayManager) SetChannelBuffer(size int) {
	if size > 0 {
		g.channelBuffer = size
	}
}

// SetMessageHandler installs the core message handler (the engine).
func (g *GatewayManager) SetMessageHandler(handler MessageHandler) {
	g.msgHandler = handler
}

// SetMonitor installs the monitoring sink.
func (g *GatewayManager) SetMonitor(m monitor.Monitor) {
	g.monitor = m
}

// Register adds a channel under its ID.
func (g *GatewayManager) Register(c Channel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels[c.ID()] = c
}

// GetChannel fetches a channel by ID, typically for outbound pushes.
func (g *GatewayManager) GetChannel(id string) (Channel, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.channels[id]
	return c, ok
}

// StartAll starts every registered channel, passing itself as the context.
func (g *GatewayManager) StartAll() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for id, c := range g.channels {
		slog.Info(fmt.Sprintf("Starting channel: %s", id))
		if err := c.Start(g); err != nil {
			return fmt.Errorf("failed to start channel %s: %w", id, err)
		}
	}
	return nil
}

// StopAll stops every registered channel.
func (g *GatewayManager) StopAll() {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for id, c := range g.channels {
		slog.Info(fmt.Sprintf("Stopping channel: %s", id))
		if err := c.Stop(); err != nil {
			slog.Error(fmt.Sprintf("Error stopping channel %s: %v", id, err))
		}
	}
}

// SendReply routes a complete reply message back through the right channel.
func (g *GatewayManager) SendReply(session SessionContext, content string) error {
	slog.Info(fmt.Sprintf("[Gateway] -> Reply to %s (%s): %s", session.ChannelID, session.Username, content))

	if g.monitor != nil {
		g.monitor.OnMessage(monitor.MonitorMessage{
			Timestamp:   time.Now(),
			MessageType: "ASSISTANT",
			ChannelID:   session.ChannelID,
			Username:    session.Username,
			Content:     content,
		})
	}

	c, ok := g.GetChannel(session.ChannelID)
	if !ok {
		return fmt.Errorf("channel %s not found", session.ChannelID)
	}
	return c.Send(session, content)
}

// SendSignal forwards a control signal to channels that support signaling.
// Channels without signal support ignore it quietly.
func (g *GatewayManager) SendSignal(session SessionContext, signal string) error {
	c, ok := g.GetChannel(session.ChannelID)
	if !ok {
		return fmt.Errorf("channel %s not found", session.ChannelID)
	}

	if sc, ok := c.(SignalingChannel); ok {
		slog.Debug(fmt.Sprintf("[Gateway] -> Signal to %s (%s): %s", session.ChannelID, session.Username, signal))
		return sc.SendSignal(session, signal)
	}

	return nil
}

// StreamReply routes a block stream to the right channel, mirroring the full
// text to the monitor once the stream ends.
func (g *GatewayManager) StreamReply(session SessionContext, blocks <-chan llm.ContentBlock) error {
	c, ok := g.GetChannel(session.ChannelID)
	if !ok {
		// Drain so the producing engine never blocks.
		go func() {
			for range blocks {
			}
		}()
		return fmt.Errorf("channel %s not found", session.ChannelID)
	}

	wrappedBlocks := make(chan llm.ContentBlock, g.channelBuffer)
	var fullContent string

	go func() {
		defer close(wrappedBlocks)
		for block := range blocks {
			if block.Type == llm.BlockTypeText {
				fullContent += block.Text
			}
			wrappedBlocks <- block
		}
		if fullContent != "" && g.monitor != nil {
			g.monitor.OnMessage(monitor.MonitorMessage{
				Timestamp:   time.Now(),
				MessageType: "ASSISTANT",
				ChannelID:   session.ChannelID,
				Username:    session.Username,
				Content:     fullContent,
			})
		}
	}()

	return c.Stream(session, wrappedBlocks)
}

// OnMessage implements ChannelContext: it receives inbound channel messages
// and forwards them to the handler.
func (g *GatewayManager) OnMessage(channelID string, msg *UnifiedMessage) {
	slog.Info(fmt.Sprintf("[Gateway] <- Received from %s [%s(%s)]: %s",
		channelID, msg.Session.Username, msg.Session.UserID, msg.Content))

	if g.monitor != nil {
		g.monitor.OnMessage(monitor.MonitorMessage{
			Timestamp:   time.Now(),
			MessageType: "USER",
			ChannelID:   channelID,
			Username:    msg.Session.Username,
			Content:     msg.Content,
		})
	}

	if g.msgHandler != nil {
		// Handlers run off the channel's read loop so a follow-up submission
		// can arrive (and interrupt) while a turn is still streaming.
		go g.msgHandler(msg)
	} else {
		slog.Warn("[Gateway] No message handler set")
	}
}
