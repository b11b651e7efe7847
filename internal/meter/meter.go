// Package meter implements the streaming meter: a byte-level pass-through
// transform over an SSE stream that tokenizes generated text, maintains the
// running cost, throttles billing emits, and trips the budget circuit
// breaker mid-stream.
package meter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sentinelproxy/sentinel/internal/billing"
	"github.com/sentinelproxy/sentinel/internal/config"
	"github.com/sentinelproxy/sentinel/internal/pricing"
	"github.com/sentinelproxy/sentinel/internal/session"
	"github.com/sentinelproxy/sentinel/internal/tokenizer"
)

const (
	throttleTokens   = 10
	throttleCostDiff = 1e-4
	throttleInterval = 200 * time.Millisecond
)

// ErrFused is returned by StreamChat when the budget breached mid-stream and
// the upstream read was aborted. It is not an UpstreamTransport error: the
// client's HTTP body is intentionally ended here.
var ErrFused = errors.New("budget exceeded: stream fused")

// Meter is a process-wide singleton wiring the shared services a request's
// metering loop reads from and writes to.
type Meter struct {
	Budget   *billing.Budget
	Bus      *billing.Bus
	Cache    *pricing.Cache
	Tok      *tokenizer.Tokenizer
	Sessions *session.Writer
	Currency config.CurrencyConfig
	Logger   *zap.Logger
}

func New(budget *billing.Budget, bus *billing.Bus, cache *pricing.Cache, tok *tokenizer.Tokenizer, sessions *session.Writer, currency config.CurrencyConfig, logger *zap.Logger) *Meter {
	return &Meter{
		Budget:   budget,
		Bus:      bus,
		Cache:    cache,
		Tok:      tok,
		Sessions: sessions,
		Currency: currency,
		Logger:   logger,
	}
}

// requestState is the per-request transient state the meter loop owns
// exclusively: the token accumulator, throttle bookkeeping, and the local
// fused flag.
type requestState struct {
	completionTokens int
	addedPicos       uint64
	tokensSinceEmit  int
	lastEmitTime     time.Time
	lastEmittedTotal float64
	fused            bool
}

type deltaChoice struct {
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
}

type deltaChunk struct {
	Choices []deltaChoice  `json:"choices"`
	Usage   *billing.Usage `json:"usage"`
}

// StreamChat forwards upstream's SSE body to w byte-for-byte while metering
// it. model must already be resolved (the caller's raw, pre-normalization
// model string). sessionID and lastUserMessage drive the out-of-band
// session write; lastUserMessage may be nil to skip it.
//
// A chunk is written to w before it is parsed and metered, so the chunk
// that pushes the running cost over budget is still delivered to the
// client; fusing only withholds the chunk after it. This differs from
// original_source/src/main.rs's mapped_stream, which returns an error for
// the breaching chunk itself and withholds it too — a deliberate choice
// here since forwarding what upstream already sent is simpler than
// buffering a chunk against the possibility it must be swallowed.
func (m *Meter) StreamChat(ctx context.Context, w http.ResponseWriter, upstream io.ReadCloser, model, sessionID string, lastUserMessage json.RawMessage) error {
	defer upstream.Close()

	flusher, _ := w.(http.Flusher)
	st := &requestState{lastEmitTime: time.Now()}
	var assistantText strings.Builder
	var pending []byte
	buf := make([]byte, 4096)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, rerr := upstream.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if _, werr := w.Write(chunk); werr != nil {
				// Client disconnected mid-stream: cancel cleanly, emit
				// nothing further, skip the session write.
				m.Logger.Debug("client disconnected mid-stream", zap.Error(werr))
				return nil
			}
			if flusher != nil {
				flusher.Flush()
			}

			pending = append(pending, chunk...)
			pending = m.consumeLines(pending, model, st, &assistantText)

			if st.fused {
				m.Logger.Debug("stream fused, halting upstream read", zap.String("model", model))
				return ErrFused
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				break
			}
			return fmt.Errorf("upstream read: %w", rerr)
		}
	}

	if lastUserMessage != nil {
		m.Sessions.AppendTurn(sessionID, lastUserMessage, assistantText.String())
	}
	return nil
}

// consumeLines processes every complete line in buf, returning the
// remaining partial line (if any) to be prepended to the next read.
func (m *Meter) consumeLines(buf []byte, model string, st *requestState, assistantText *strings.Builder) []byte {
	for {
		idx := bytes.IndexByte(buf, '\n')
		if idx < 0 {
			return buf
		}
		line := bytes.TrimRight(buf[:idx], "\r")
		buf = buf[idx+1:]

		m.processLine(line, model, st, assistantText)
		if st.fused {
			return buf
		}
	}
}

const ssePrefix = "data: "

func (m *Meter) processLine(line []byte, model string, st *requestState, assistantText *strings.Builder) {
	s := string(line)
	if !strings.HasPrefix(s, ssePrefix) {
		return
	}
	payload := strings.TrimPrefix(s, ssePrefix)
	if payload == "[DONE]" {
		return
	}

	var chunk deltaChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return // MalformedChunk: drop silently, keep streaming.
	}

	if chunk.Usage != nil {
		m.handleTerminal(*chunk.Usage, model, st)
		return
	}

	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
		return
	}

	content := chunk.Choices[0].Delta.Content
	assistantText.WriteString(content)
	m.meterDelta(content, model, st)
}

func (m *Meter) meterDelta(content, model string, st *requestState) {
	nTokens := m.Tok.Count(content)
	st.completionTokens += nTokens

	price := m.Cache.Lookup(model)
	rawDelta := float64(nTokens) * price.OutputPrice
	adjustedDelta, currency := attributeCurrency(m.Currency, model, price, rawDelta)

	picos := billing.PicosFromCost(adjustedDelta)
	st.addedPicos += picos
	totalPicos := m.Budget.AddPicos(picos)
	current := float64(totalPicos) / 1e12

	limit := m.Budget.Limit()
	if current >= limit {
		st.fused = true
		m.Bus.Publish(billing.Event{Type: "billing", Model: model, Cost: current, Currency: currency, Fused: true})
		m.Bus.Publish(billing.Event{Type: "error", Model: model, Cost: current, Currency: currency, Reason: "budget_exceeded"})
		return
	}

	st.tokensSinceEmit += nTokens
	now := time.Now()
	shouldEmit := st.tokensSinceEmit >= throttleTokens ||
		math.Abs(current-st.lastEmittedTotal) >= throttleCostDiff ||
		now.Sub(st.lastEmitTime) >= throttleInterval

	if shouldEmit {
		m.Bus.Publish(billing.Event{Type: "billing", Model: model, Cost: current, Currency: currency})
		st.tokensSinceEmit = 0
		st.lastEmitTime = now
		st.lastEmittedTotal = current
	}
}

// handleTerminal computes the authoritative bill for the turn using the
// vendor's prompt_tokens and the meter's own accumulated completion_tokens
// (preferred over the vendor's, which some vendors under-report while
// streaming), then tops up the running counter by whatever wasn't already
// added incrementally — it must never subtract or double-count.
func (m *Meter) handleTerminal(usage billing.Usage, model string, st *requestState) {
	usage.CompletionTokens = int64(st.completionTokens)

	price := m.Cache.Lookup(model)
	raw := float64(usage.PromptTokens)*price.InputPrice + float64(usage.CompletionTokens)*price.OutputPrice
	adjusted, currency := attributeCurrency(m.Currency, model, price, raw)

	authoritativePicos := billing.PicosFromCost(adjusted)
	var totalPicos uint64
	if authoritativePicos > st.addedPicos {
		totalPicos = m.Budget.AddPicos(authoritativePicos - st.addedPicos)
		st.addedPicos = authoritativePicos
	} else {
		totalPicos = m.Budget.AddPicos(0)
	}
	current := float64(totalPicos) / 1e12

	m.Bus.Publish(billing.Event{Type: "billing", Model: model, Cost: current, Currency: currency})
}
