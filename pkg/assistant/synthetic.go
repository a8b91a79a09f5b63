package assistant

import (
	"time"

	"pricepulse/pkg/api"
	"pricepulse/pkg/config"
	"pricepulse/pkg/llm"
	"pricepulse/pkg/transcript"
)

// syntheticTrigger is the exact user input that starts the local streaming
// demo instead of a model turn.
const syntheticTrigger = "md stream"

// demoMarkdown is the fixed document the synthetic streamer reveals. It
// exercises every markdown construct the widget renders.
const demoMarkdown = `# PricePulse Rendering Demo

This is a **synthetic** stream served locally. No model call happens, which
makes it handy for checking the widget while offline.

## Formatting

- *Italic*, **bold**, and ` + "`inline code`" + ` inside a list item
- [A link](https://example.com/pricing) and some plain text
- Nested list:
  - Competitor deltas refresh every hour
  - Own prices come straight from the catalog feed

## A Table

| Platform | Products | Avg. Gap |
|----------|----------|----------|
| Shopline | 42       | -3.1%    |
| Momo     | 128      | +1.8%    |

## Code

` + "```go" + `
func gap(own, rival float64) float64 {
	return (own - rival) / rival * 100
}
` + "```" + `

> Streaming ends once this whole document has been revealed.
`

// syntheticRun is one in-flight synthetic stream. Stop is synchronous: it
// signals the ticker loop and waits for it to finish its transcript
// bookkeeping, so callers can immediately start the next turn.
type syntheticRun struct {
	stopCh chan struct{}
	doneCh chan struct{}
}

func (s *syntheticRun) stop() {
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	<-s.doneCh
}

// runSyntheticDemo appends the demo exchange to the transcript and reveals
// demoMarkdown in fixed-size increments on a ticker, reusing the exact tail
// contract of a real model turn. The caller already holds the session's turn
// slot; the goroutine releases it when the stream settles or is stopped.
func (e *Engine) runSyntheticDemo(st *session, tr *transcript.Transcript, sctx api.SessionContext, userText string) {
	tr.Append(transcript.NewUserMessage(userText))
	tr.Append(transcript.NewPendingMessage(placeholderAnalyzing))

	run := &syntheticRun{
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	st.mu.Lock()
	st.synthetic = run
	st.mu.Unlock()

	intervalMs := e.sysCfg.SyntheticIntervalMs
	if intervalMs <= 0 {
		intervalMs = config.DefaultSystemConfig().SyntheticIntervalMs
	}
	interval := time.Duration(intervalMs) * time.Millisecond
	chunkSize := e.sysCfg.SyntheticChunkSize
	if chunkSize <= 0 {
		chunkSize = config.DefaultSystemConfig().SyntheticChunkSize
	}

	go func() {
		defer func() {
			close(run.doneCh)
			st.mu.Lock()
			if st.synthetic == run {
				st.synthetic = nil
			}
			st.mu.Unlock()
			e.releaseTurn(st)
		}()

		blockCh := make(chan llm.ContentBlock, e.sysCfg.InternalChannelBuffer)
		go e.responder.StreamReply(sctx, blockCh)
		defer close(blockCh)

		runes := []rune(demoMarkdown)
		shown := 0
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for shown < len(runes) {
			select {
			case <-run.stopCh:
				e.sealPendingTail(tr, shown > 0)
				return
			case <-ticker.C:
				next := shown + chunkSize
				if next > len(runes) {
					next = len(runes)
				}
				delta := string(runes[shown:next])
				full := string(runes[:next])
				if shown == 0 {
					tr.ReplaceTail(transcript.IsPending, transcript.NewPendingMessage(full))
				} else {
					tr.UpdateTail(func(string) string { return full })
				}
				blockCh <- llm.NewTextBlock(delta)
				shown = next
			}
		}

		tr.ResolveTail(transcript.IsPending)
		e.responder.SendSignal(sctx, "done")
		e.saveSession(st.id)
	}()
}
