package web

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"pricepulse/pkg/api"
	"pricepulse/pkg/dashboard"
	"pricepulse/pkg/llm"
	"pricepulse/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for decoupled UI
	},
}

type WebConfig struct {
	Port int `json:"port"` // Default: 9453
}

// IncomingMessage is the JSON frame the widget sends. Plain text frames are
// accepted as a fallback.
type IncomingMessage struct {
	Text  string `json:"text"`
	Files []struct {
		Name string `json:"name"`
		Mime string `json:"mime"`
		Data string `json:"data"` // Base64 encoded
	} `json:"files"`
}

// SafeConn serializes writes; gorilla/websocket allows one writer at a time.
type SafeConn struct {
	*websocket.Conn
	mu sync.Mutex
}

func (sc *SafeConn) WriteMessage(messageType int, data []byte) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.Conn.WriteMessage(messageType, data)
}

// WebChannel serves the assistant widget over a websocket endpoint. Every
// connection shares the "web_global" session, so the dashboard keeps one
// conversation across tabs and reloads.
type WebChannel struct {
	config      WebConfig
	server      *http.Server
	engine      api.AssistantEngine
	state       *dashboard.State
	connections map[string]*SafeConn // UserID -> WS connection
	mu          sync.RWMutex
}

func NewWebChannel(cfg WebConfig, engine api.AssistantEngine, state *dashboard.State) *WebChannel {
	return &WebChannel{
		config:      cfg,
		engine:      engine,
		state:       state,
		connections: make(map[string]*SafeConn),
	}
}

func (c *WebChannel) ID() string {
	return "web"
}

func (c *WebChannel) Start(ctx api.ChannelContext) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		c.handleWebSocket(w, r, ctx)
	})

	addr := fmt.Sprintf(":%d", c.config.Port)
	c.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Navigation requested by tools reaches every connected widget as a
	// dedicated frame.
	if c.state != nil {
		c.state.SetNavigationHook(c.broadcastNavigate)
	}

	slog.Info("Web API listening", "port", c.config.Port)

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Web API server error", "error", err)
		}
	}()

	return nil
}

func (c *WebChannel) Stop() error {
	if c.server != nil {
		return c.server.Close()
	}
	return nil
}

func (c *WebChannel) Send(session api.SessionContext, message string) error {
	c.mu.RLock()
	conn, ok := c.connections[session.UserID]
	c.mu.RUnlock()

	if !ok {
		return fmt.Errorf("web user %s not connected", session.UserID)
	}

	msg := map[string]string{
		"type": "message",
		"text": message,
	}
	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return conn.WriteMessage(websocket.TextMessage, jsonData)
}

// SendSignal implements the api.SignalingChannel interface
func (c *WebChannel) SendSignal(session api.SessionContext, signal string) error {
	c.mu.RLock()
	conn, ok := c.connections[session.UserID]
	c.mu.RUnlock()

	if !ok {
		return fmt.Errorf("web user %s not connected", session.UserID)
	}

	msg := map[string]string{
		"type":  "signal",
		"value": signal,
	}
	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal signal: %w", err)
	}
	return conn.WriteMessage(websocket.TextMessage, jsonData)
}

// Stream implements api.Channel.Stream
func (c *WebChannel) Stream(session api.SessionContext, blocks <-chan llm.ContentBlock) error {
	c.mu.RLock()
	conn, ok := c.connections[session.UserID]
	c.mu.RUnlock()

	if !ok {
		// Drain so the producer never blocks on a gone connection.
		for range blocks {
		}
		return fmt.Errorf("web user %s not connected", session.UserID)
	}

	for block := range blocks {
		msg := map[string]any{
			"type": block.Type,
			"text": block.Text,
		}

		jsonData, err := json.Marshal(msg)
		if err != nil {
			slog.Error("Failed to marshal stream block", "error", err)
			continue
		}

		if err := conn.WriteMessage(websocket.TextMessage, jsonData); err != nil {
			// Keep draining; the engine must not stall on a dead socket.
			for range blocks {
			}
			return err
		}
	}

	// Send finish flag
	return conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"done"}`))
}

// broadcastNavigate pushes a navigation frame to every connected widget.
func (c *WebChannel) broadcastNavigate(view string) {
	frame, err := json.Marshal(map[string]string{
		"type": "navigate",
		"view": view,
	})
	if err != nil {
		return
	}

	c.mu.RLock()
	conns := make([]*SafeConn, 0, len(c.connections))
	for _, conn := range c.connections {
		conns = append(conns, conn)
	}
	c.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			slog.Warn("Failed to push navigation frame", "error", err)
		}
	}
}

func (c *WebChannel) handleWebSocket(w http.ResponseWriter, r *http.Request, ctx api.ChannelContext) {
	rawConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WS Upgrade failed", "error", err)
		return
	}

	conn := &SafeConn{Conn: rawConn}
	userID := r.RemoteAddr

	c.mu.Lock()
	c.connections[userID] = conn
	c.mu.Unlock()

	// Sync the stored transcript so a reconnecting widget repaints the
	// whole conversation before anything streams.
	if tr, err := c.engine.Transcript("web_global"); err == nil {
		if msgs := tr.Messages(); len(msgs) > 0 {
			historyJSON, err := json.Marshal(map[string]any{
				"type": "history",
				"data": msgs,
			})
			if err != nil {
				slog.Error("Failed to marshal history", "error", err)
			} else {
				conn.WriteMessage(websocket.TextMessage, historyJSON)
			}
		}
	}

	defer func() {
		c.mu.Lock()
		delete(c.connections, userID)
		c.mu.Unlock()
		conn.Close()
	}()

	session := api.SessionContext{
		ChannelID: "web",
		UserID:    userID,
		ChatID:    "global", // One shared conversation for the dashboard
		Username:  "WebUser",
	}

	for {
		_, msgBytes, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var content string
		var files []api.FileAttachment

		var incoming IncomingMessage
		if err := json.Unmarshal(msgBytes, &incoming); err == nil && incoming.Text != "" {
			content = incoming.Text
			files = c.saveAttachments(incoming)
		} else {
			// Fallback: treat as plain text (backward compatibility)
			content = string(msgBytes)
		}

		unifiedMsg := &api.UnifiedMessage{
			Session: session,
			Content: content,
			Files:   files,
		}
		ctx.OnMessage(c.ID(), unifiedMsg)
	}
}

// saveAttachments decodes uploaded files to disk and returns path-based
// attachments. Content-hash names deduplicate repeated uploads.
func (c *WebChannel) saveAttachments(incoming IncomingMessage) []api.FileAttachment {
	var files []api.FileAttachment
	for _, f := range incoming.Files {
		data, err := base64.StdEncoding.DecodeString(f.Data)
		if err != nil {
			slog.Error("Failed to decode base64 attachment", "name", f.Name, "error", err)
			continue
		}

		attachmentsDir := "data/attachments"
		if err := os.MkdirAll(attachmentsDir, 0755); err != nil {
			slog.Error("Failed to create attachments dir", "error", err)
			continue
		}

		hash := sha256.Sum256(data)
		_, ext := utils.DetectMimeAndExt(data)
		localFileName := fmt.Sprintf("%s%s%s", utils.GenerateTimestampPrefix(), hex.EncodeToString(hash[:]), ext)
		localPath := filepath.Join(attachmentsDir, localFileName)

		if _, err := os.Stat(localPath); os.IsNotExist(err) {
			if err := os.WriteFile(localPath, data, 0644); err != nil {
				slog.Error("Failed to save attachment to disk", "path", localPath, "error", err)
				continue
			}
		}

		files = append(files, api.FileAttachment{
			Filename: f.Name,
			MimeType: f.Mime,
			Path:     localPath,
		})
		slog.Debug("Received and saved attachment", "name", f.Name, "path", localPath)
	}
	return files
}
