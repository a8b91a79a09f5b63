package gateway

import (
	"pricepulse/pkg/api"
)

// Aliases for the transport-neutral contracts defined in pkg/api, so gateway
// code and its callers can stay on one import.
type Channel = api.Channel
type SignalingChannel = api.SignalingChannel
type MessageResponder = api.MessageResponder
type ChannelContext = api.ChannelContext
type UnifiedMessage = api.UnifiedMessage
type FileAttachment = api.FileAttachment
type SessionContext = api.SessionContext
type MessageHandler = api.MessageHandler
