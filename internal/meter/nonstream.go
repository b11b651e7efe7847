package meter

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/sentinelproxy/sentinel/internal/billing"
)

type nonStreamResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *billing.Usage `json:"usage"`
}

// NonStreamChat meters a complete (non-streaming) vendor response: reads
// usage directly, computes cost once, emits a single billing event, and
// schedules the session write. The caller returns body to the client
// verbatim regardless of what happens here — metering never fails the
// request.
func (m *Meter) NonStreamChat(model, sessionID string, body []byte, lastUserMessage json.RawMessage) {
	var resp nonStreamResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		m.Logger.Debug("non-streaming response not parseable, skipping metering", zap.Error(err))
		return
	}
	if resp.Usage == nil {
		return
	}

	price := m.Cache.Lookup(model)
	raw := float64(resp.Usage.PromptTokens)*price.InputPrice + float64(resp.Usage.CompletionTokens)*price.OutputPrice
	adjusted, currency := attributeCurrency(m.Currency, model, price, raw)

	picos := billing.PicosFromCost(adjusted)
	total := m.Budget.AddPicos(picos)
	current := float64(total) / 1e12

	m.Bus.Publish(billing.Event{Type: "billing", Model: model, Cost: current, Currency: currency})

	var assistantText string
	if len(resp.Choices) > 0 {
		assistantText = resp.Choices[0].Message.Content
	}
	if lastUserMessage != nil {
		m.Sessions.AppendTurn(sessionID, lastUserMessage, assistantText)
	}
}
