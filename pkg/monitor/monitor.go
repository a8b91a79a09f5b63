package monitor

import "time"

// MonitorMessage represents one observed message crossing the gateway.
type MonitorMessage struct {
	Timestamp   time.Time
	MessageType string // "USER" or "ASSISTANT"
	ChannelID   string
	Username    string
	Content     string
}

// Monitor defines the behavior of a traffic monitor attached to the gateway.
type Monitor interface {
	// Start activates the monitor.
	Start() error

	// Stop shuts down the monitor.
	Stop() error

	// OnMessage receives and displays a monitoring message.
	OnMessage(msg MonitorMessage)
}
