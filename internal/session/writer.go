// Package session implements the per-session chat memory writer and reader:
// an append-only log kept in the chat logical database, with history
// injection rules for replaying it into a new outbound request.
package session

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sentinelproxy/sentinel/internal/pricing"
	"github.com/sentinelproxy/sentinel/internal/store"
)

type Writer struct {
	kv     *store.KV
	logger *zap.Logger
}

func New(kv *store.KV, logger *zap.Logger) *Writer {
	return &Writer{kv: kv, logger: logger}
}

// AppendTurn persists the user prompt and assistant reply out-of-band. It
// never blocks the caller and never fails the request it was spawned from.
func (w *Writer) AppendTurn(sessionID string, userMessage json.RawMessage, assistantText string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if userMessage != nil {
			if err := w.kv.AppendMessage(ctx, sessionID, userMessage); err != nil {
				w.logger.Warn("failed to persist user message", zap.String("session_id", sessionID), zap.Error(err))
			}
		}

		assistantMsg, err := json.Marshal(map[string]string{"role": "assistant", "content": assistantText})
		if err != nil {
			w.logger.Warn("failed to marshal assistant message", zap.Error(err))
			return
		}
		if err := w.kv.AppendMessage(ctx, sessionID, assistantMsg); err != nil {
			w.logger.Warn("failed to persist assistant message", zap.String("session_id", sessionID), zap.Error(err))
		}
	}()
}

// History returns the full ordered message list for a session.
func (w *Writer) History(ctx context.Context, sessionID string) ([]json.RawMessage, error) {
	return w.kv.History(ctx, sessionID)
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// PrepareHistory readies stored messages for prepending to an outbound
// request. Non-visual target models (normalized name lacks "vl") have any
// multimodal content entries collapsed to their text component, with
// image_url parts dropped, so images are never fed to a text-only model.
func PrepareHistory(history []json.RawMessage, model string) []json.RawMessage {
	if strings.Contains(pricing.Normalize(model), "vl") {
		return history
	}

	out := make([]json.RawMessage, 0, len(history))
	for _, msg := range history {
		out = append(out, collapseMultimodal(msg))
	}
	return out
}

func collapseMultimodal(msg json.RawMessage) json.RawMessage {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(msg, &obj); err != nil {
		return msg
	}

	contentRaw, ok := obj["content"]
	if !ok {
		return msg
	}

	var parts []contentPart
	if err := json.Unmarshal(contentRaw, &parts); err != nil {
		// content is a plain string already; nothing multimodal to collapse.
		return msg
	}

	var text strings.Builder
	for _, p := range parts {
		if p.Type == "text" {
			text.WriteString(p.Text)
		}
	}

	collapsed, err := json.Marshal(text.String())
	if err != nil {
		return msg
	}
	obj["content"] = collapsed

	out, err := json.Marshal(obj)
	if err != nil {
		return msg
	}
	return out
}
