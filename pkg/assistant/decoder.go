package assistant

import (
	"context"
	"time"

	"pricepulse/pkg/api"
	"pricepulse/pkg/llm"
	"pricepulse/pkg/transcript"
)

// streamResult is what one decoded turn hands back to the orchestrator.
type streamResult struct {
	fullText string         // cumulative text of the whole turn
	calls    []llm.ToolCall // call requests collected across all chunks
	usage    *llm.LLMUsage  // usage stats from the final chunk, if any
	err      error          // fatal stream error, nil on clean exhaustion
}

// collectStream consumes one turn's chunk channel, keeping the transcript
// tail in sync and forwarding displayable blocks to the widget stream.
//
// The transcript always reflects the total text so far: the first non-empty
// delta resolves the pending placeholder through ReplaceTail, every later
// delta rewrites the tail content to the full accumulator through UpdateTail.
// Setting the whole text (instead of appending the delta) means a dropped
// UI update can never leave a corrupted partial string behind.
//
// Call requests are collected without interrupting decoding: a model may emit
// calls before, between, or after its prose. End-of-turn is the channel
// closing; there is no sentinel chunk type.
func (e *Engine) collectStream(ctx context.Context, tr *transcript.Transcript, session api.SessionContext, chunkCh <-chan llm.StreamChunk, blockCh chan<- llm.ContentBlock) streamResult {
	var res streamResult
	started := false

	delay := time.Duration(e.sysCfg.ThinkingInitDelayMs) * time.Millisecond
	thinkingTimer := time.NewTimer(delay)
	defer thinkingTimer.Stop()
	timerChan := thinkingTimer.C

	for {
		select {
		case <-ctx.Done():
			res.err = ctx.Err()
			return res

		case chunk, ok := <-chunkCh:
			if !ok {
				return res
			}
			if chunk.RawError != nil {
				res.err = chunk.RawError
				return res
			}

			if timerChan != nil {
				thinkingTimer.Stop()
				timerChan = nil
			}

			if chunk.Error != "" {
				// Non-fatal in-band error: show it, keep decoding.
				blockCh <- llm.NewErrorBlock("\n❌ " + chunk.Error)
			}

			for _, block := range chunk.ContentBlocks {
				switch block.Type {
				case llm.BlockTypeText:
					if block.Text == "" {
						continue
					}
					res.fullText += block.Text
					if !started {
						started = true
						msg := transcript.NewPendingMessage(res.fullText)
						tr.ReplaceTail(transcript.IsPending, msg)
					} else {
						full := res.fullText
						tr.UpdateTail(func(string) string { return full })
					}
					blockCh <- block

				case llm.BlockTypeThinking:
					// Thinking never enters the transcript; forward for live
					// display only when configured.
					if e.sysCfg.ShowThinking {
						blockCh <- block
					}
				}
			}

			if len(chunk.ToolCalls) > 0 {
				res.calls = append(res.calls, chunk.ToolCalls...)
			}

			if chunk.Usage != nil {
				res.usage = chunk.Usage
			}

			if chunk.IsFinal {
				return res
			}

		case <-timerChan:
			e.responder.SendSignal(session, "thinking")
			timerChan = nil
		}
	}
}
