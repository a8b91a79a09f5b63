// Package assistant implements the conversational engine behind the
// dashboard's assistant widget: it owns the turn lifecycle from submission
// through streaming, tool dispatch, and continuation, against a pluggable
// LLM backend.
package assistant

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"pricepulse/pkg/api"
	"pricepulse/pkg/config"
	"pricepulse/pkg/dashboard"
	"pricepulse/pkg/llm"
	"pricepulse/pkg/tools"
	"pricepulse/pkg/transcript"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// placeholderAnalyzing is the pending assistant text shown while the
	// first model turn of a submission is in flight.
	placeholderAnalyzing = "analyzing…"

	// placeholderConcluding is the pending assistant text shown while a
	// continuation turn after tool execution is in flight.
	placeholderConcluding = "concluding…"

	// apologyText replaces the in-progress assistant message when a turn
	// fails for any reason other than the hop limit.
	apologyText = "Sorry, I ran into a problem while answering that. Please try again."

	// stuckText replaces the placeholder when the model keeps requesting
	// tools past the continuation limit.
	stuckText = "I kept running dashboard actions without reaching an answer. Please rephrase your request."
)

// session is the per-conversation state the engine keeps in memory. The
// transcript itself lives in the session manager; this holds the model
// conversation context and the single-active-turn bookkeeping.
type session struct {
	id  string
	sem chan struct{} // capacity 1, held for the duration of a turn

	mu        sync.Mutex
	cancel    context.CancelFunc // cancels the in-flight model turn, if any
	synthetic *syntheticRun      // in-flight synthetic stream, if any
	history   []llm.Message      // model context, rebuilt from scratch per process
}

// Engine drives assistant conversations end to end. One Engine serves every
// session; per-session state is looked up (or created) on demand.
type Engine struct {
	client    llm.LLMClient
	responder api.MessageResponder
	appCfg    *config.Config
	sysCfg    *config.SystemConfig
	registry  api.ToolRegistry
	store     *transcript.SessionManager
	state     *dashboard.State
	catalog   *dashboard.Catalog

	mu       sync.Mutex
	sessions map[string]*session
}

// NewEngine wires an engine over its collaborators. The responder is set
// later by the gateway, once channels exist.
func NewEngine(client llm.LLMClient, appCfg *config.Config, sysCfg *config.SystemConfig, store *transcript.SessionManager, state *dashboard.State, catalog *dashboard.Catalog) *Engine {
	return &Engine{
		client:   client,
		appCfg:   appCfg,
		sysCfg:   sysCfg,
		store:    store,
		state:    state,
		catalog:  catalog,
		sessions: make(map[string]*session),
	}
}

// SetResponder installs the channel-facing reply surface.
func (e *Engine) SetResponder(responder api.MessageResponder) {
	e.responder = responder
}

// RegisterTool adds tools to the engine's registry, creating it on first use.
func (e *Engine) RegisterTool(ts ...api.Tool) {
	if e.registry == nil {
		e.registry = tools.NewToolRegistry()
	}
	for _, t := range ts {
		e.registry.Register(t)
		slog.Info(fmt.Sprintf("🛠️ Registered tool '%s'", t.Name()))
	}
}

// Transcript returns the stored transcript for a session, loading it from
// disk on first access.
func (e *Engine) Transcript(sessionID string) (*transcript.Transcript, error) {
	return e.store.Get(sessionID)
}

// ResetSession clears a session's transcript, its persisted file, and its
// model context. An in-flight turn is cancelled first.
func (e *Engine) ResetSession(sessionID string) error {
	st := e.session(sessionID)
	e.interrupt(st)
	e.acquireTurn(st)
	defer e.releaseTurn(st)

	st.mu.Lock()
	st.history = nil
	st.mu.Unlock()
	return e.store.Reset(sessionID)
}

// HandleMessage processes one user submission. A submission arriving while a
// previous turn is active cancels that turn and takes its place; the engine
// never queues.
func (e *Engine) HandleMessage(msg *api.UnifiedMessage) {
	if msg.DebugID == "" {
		msg.DebugID = newDebugID()
	}
	sessionID := fmt.Sprintf("%s_%s", msg.Session.ChannelID, msg.Session.ChatID)
	st := e.session(sessionID)

	content := strings.TrimSpace(msg.Content)
	if strings.HasPrefix(content, "/") {
		if !e.handleCommand(st, msg, content) {
			return
		}
		content = strings.TrimSpace(msg.Content)
	}

	tr, err := e.store.Get(sessionID)
	if err != nil {
		slog.Error(fmt.Sprintf("❌ [%s] Could not open transcript for %s: %v", msg.DebugID, sessionID, err))
		e.responder.SendReply(msg.Session, apologyText)
		return
	}

	// Attachments are read exactly once, before the transcript is touched.
	// A read failure aborts the whole submission.
	attachments, err := readAttachments(msg.Files)
	if err != nil {
		slog.Error(fmt.Sprintf("❌ [%s] Attachment read failed: %v", msg.DebugID, err))
		e.responder.SendReply(msg.Session, fmt.Sprintf("❌ Could not read attachment: %v", err))
		return
	}

	e.interrupt(st)
	e.acquireTurn(st)

	if content == syntheticTrigger {
		// runSyntheticDemo releases the turn slot itself.
		e.runSyntheticDemo(st, tr, msg.Session, content)
		return
	}
	defer e.releaseTurn(st)

	userMsg := transcript.NewUserMessage(content)
	if len(attachments) > 0 {
		userMsg.Attachment = &attachments[0]
	}
	tr.Append(userMsg)
	tr.Append(transcript.NewPendingMessage(placeholderAnalyzing))

	e.appendUserContext(st, content, attachments)

	ctx, cancel := e.turnContext(st, msg.DebugID)
	defer cancel()

	e.runTurn(ctx, st, tr, msg)
	e.saveSession(sessionID)
}

// runTurn is the continuation loop: stream a model turn, dispatch any tool
// calls, feed results back, and go again, up to the configured hop limit.
func (e *Engine) runTurn(ctx context.Context, st *session, tr *transcript.Transcript, msg *api.UnifiedMessage) {
	maxHops := e.sysCfg.MaxToolHops
	if maxHops <= 0 {
		maxHops = config.DefaultSystemConfig().MaxToolHops
	}

	for hop := 0; ; hop++ {
		if hop >= maxHops {
			slog.Warn(fmt.Sprintf("⚠️ [%s] Hop limit (%d) reached, settling as stuck", msg.DebugID, maxHops))
			e.failTurn(tr, msg.Session, stuckText)
			return
		}

		var decls []map[string]any
		if e.sysCfg.EnableTools && !msg.NoTools && e.registry != nil {
			decls = e.registry.Declarations()
		}

		chunkCh, err := e.client.StreamChat(ctx, st.snapshotHistory(), decls)
		if err != nil {
			slog.Error(fmt.Sprintf("❌ [%s] StreamChat failed on hop %d: %v", msg.DebugID, hop, err))
			e.failTurn(tr, msg.Session, apologyText)
			return
		}

		blockCh := make(chan llm.ContentBlock, e.sysCfg.InternalChannelBuffer)
		go e.responder.StreamReply(msg.Session, blockCh)

		closed := false
		safeClose := func() {
			if !closed {
				closed = true
				close(blockCh)
			}
		}

		res := e.collectStream(ctx, tr, msg.Session, chunkCh, blockCh)
		safeClose()

		if res.err != nil {
			if errors.Is(res.err, context.Canceled) {
				// Superseded by a newer submission: keep whatever streamed,
				// drop an untouched placeholder, say nothing.
				slog.Info(fmt.Sprintf("🔄 [%s] Turn cancelled on hop %d", msg.DebugID, hop))
				e.sealPendingTail(tr, res.fullText != "")
				return
			}
			slog.Error(fmt.Sprintf("❌ [%s] Stream failed on hop %d: %v", msg.DebugID, hop, res.err))
			e.failTurn(tr, msg.Session, apologyText)
			return
		}

		if res.usage != nil {
			llm.LogUsage(e.client.Provider(), res.usage)
		}

		assistantMsg := llm.NewTextMessage(llm.RoleAssistant, res.fullText)
		assistantMsg.ToolCalls = res.calls
		st.appendHistory(assistantMsg)

		if len(res.calls) == 0 {
			if res.fullText == "" {
				tr.ReplaceTail(transcript.IsPending,
					transcript.NewAssistantMessage("⚠️ The model returned an empty response."))
			} else {
				tr.ResolveTail(transcript.IsPending)
			}
			e.responder.SendSignal(msg.Session, "done")
			return
		}

		slog.Info(fmt.Sprintf("💬 [%s] Hop %d requested %d tool call(s)", msg.DebugID, hop, len(res.calls)))

		// Seal any prose streamed alongside the calls before dispatch, so the
		// notice ReplaceTail appends instead of overwriting it. An untouched
		// placeholder is dropped outright.
		e.sealPendingTail(tr, res.fullText != "")

		results, err := e.dispatchBatch(ctx, tr, msg.Session, res.calls)
		if err != nil {
			slog.Error(fmt.Sprintf("❌ [%s] Tool dispatch failed: %v", msg.DebugID, err))
			e.failTurn(tr, msg.Session, apologyText)
			return
		}
		for _, r := range results {
			st.appendHistory(r)
		}

		tr.Append(transcript.NewPendingMessage(placeholderConcluding))
	}
}

// handleCommand executes slash commands. It reports whether normal message
// processing should continue with the (possibly rewritten) msg.Content.
func (e *Engine) handleCommand(st *session, msg *api.UnifiedMessage, content string) bool {
	switch {
	case content == "/reset":
		if err := e.ResetSession(st.id); err != nil {
			slog.Error(fmt.Sprintf("❌ Reset failed for %s: %v", st.id, err))
			e.responder.SendReply(msg.Session, "❌ Reset failed, please try again.")
			return false
		}
		slog.Info(fmt.Sprintf("🔄 Session %s reset", st.id))
		e.responder.SendSignal(msg.Session, "reset")
		e.responder.SendReply(msg.Session, "🔄 Conversation cleared.")
		return false

	case strings.HasPrefix(content, "/notools"):
		rest := strings.TrimSpace(strings.TrimPrefix(content, "/notools"))
		if rest == "" {
			e.responder.SendReply(msg.Session, "Usage: /notools <question>")
			return false
		}
		msg.NoTools = true
		msg.Content = rest
		return true

	default:
		e.responder.SendReply(msg.Session, "Unknown command. Available: /reset, /notools <question>")
		return false
	}
}

// failTurn swaps the placeholder (or in-progress assistant tail) for a fixed
// failure message and pushes the same text to the channel.
func (e *Engine) failTurn(tr *transcript.Transcript, sctx api.SessionContext, text string) {
	tr.ReplaceTail(transcript.IsPending, transcript.NewAssistantMessage(text))
	e.responder.SendSignal(sctx, "error")
	e.responder.SendReply(sctx, text)
	e.saveSession(fmt.Sprintf("%s_%s", sctx.ChannelID, sctx.ChatID))
}

// sealPendingTail settles a pending tail: streamed text is kept and marked
// final, an untouched placeholder is removed outright. Used both when a turn
// is cancelled and before tool dispatch, so a notice never replaces prose.
func (e *Engine) sealPendingTail(tr *transcript.Transcript, hasText bool) {
	if hasText {
		tr.ResolveTail(transcript.IsPending)
	} else {
		tr.DropTail(transcript.IsPending)
	}
}

// appendUserContext extends the model context with the new user input,
// inline attachment text, and any catalog snapshot matched by the input.
func (e *Engine) appendUserContext(st *session, content string, attachments []transcript.Attachment) {
	var b strings.Builder
	b.WriteString(content)
	for _, att := range attachments {
		b.WriteString("\n\n[ATTACHMENT ")
		b.WriteString(att.Name)
		b.WriteString("]\n")
		b.WriteString(att.Content)
	}
	if snapshot := e.catalog.MatchSnapshot(content); snapshot != "" {
		b.WriteString("\n\n")
		b.WriteString(snapshot)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.history) == 0 && e.appCfg.SystemPrompt != "" {
		st.history = append(st.history, llm.NewSystemMessage(e.appCfg.SystemPrompt))
	}
	st.history = append(st.history, llm.NewUserMessage(b.String()))
}

func (st *session) appendHistory(msg llm.Message) {
	st.mu.Lock()
	st.history = append(st.history, msg)
	st.mu.Unlock()
}

func (st *session) snapshotHistory() []llm.Message {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]llm.Message, len(st.history))
	copy(out, st.history)
	return out
}

// session returns the per-conversation state, creating it on first contact.
func (e *Engine) session(sessionID string) *session {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.sessions[sessionID]
	if !ok {
		st = &session{id: sessionID, sem: make(chan struct{}, 1)}
		e.sessions[sessionID] = st
	}
	return st
}

// interrupt stops whatever turn the session is running: the model context is
// cancelled and a synthetic stream is stopped synchronously.
func (e *Engine) interrupt(st *session) {
	st.mu.Lock()
	cancel := st.cancel
	run := st.synthetic
	st.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if run != nil {
		run.stop()
	}
}

func (e *Engine) acquireTurn(st *session) {
	st.sem <- struct{}{}
}

func (e *Engine) releaseTurn(st *session) {
	<-st.sem
}

// turnContext builds the cancellable, deadline-bound context for one turn
// and registers its cancel func so a later submission can interrupt it.
func (e *Engine) turnContext(st *session, debugID string) (context.Context, context.CancelFunc) {
	base := context.WithValue(context.Background(), llm.DebugDirContextKey, debugID)
	ctx, cancel := context.WithTimeout(base, e.sysCfg.LLMTimeout())

	st.mu.Lock()
	st.cancel = cancel
	st.mu.Unlock()

	wrapped := func() {
		cancel()
		st.mu.Lock()
		if st.cancel != nil {
			st.cancel = nil
		}
		st.mu.Unlock()
	}
	return ctx, wrapped
}

func (e *Engine) saveSession(sessionID string) {
	if err := e.store.Save(sessionID); err != nil {
		slog.Warn(fmt.Sprintf("⚠️ Could not persist transcript for %s: %v", sessionID, err))
	}
}

// readAttachments loads file contents for attachments delivered by path.
// Inline content is taken as is. Any failure fails the whole set.
func readAttachments(files []api.FileAttachment) ([]transcript.Attachment, error) {
	if len(files) == 0 {
		return nil, nil
	}
	out := make([]transcript.Attachment, 0, len(files))
	for _, f := range files {
		content := f.Content
		if content == "" && f.Path != "" {
			data, err := os.ReadFile(f.Path)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", f.Filename, err)
			}
			content = string(data)
		}
		out = append(out, transcript.Attachment{Name: f.Filename, Content: content})
	}
	return out, nil
}

func newDebugID() string {
	b := make([]byte, 2)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
