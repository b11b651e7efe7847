package billing

import "encoding/json"

// Usage is the vendor-reported token accounting for one turn. The
// prompt/completion field names are canonical; input_tokens/output_tokens
// are accepted as aliases on ingest.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

func (u *Usage) UnmarshalJSON(data []byte) error {
	var raw struct {
		PromptTokens     *int64 `json:"prompt_tokens"`
		CompletionTokens *int64 `json:"completion_tokens"`
		TotalTokens      *int64 `json:"total_tokens"`
		InputTokens      *int64 `json:"input_tokens"`
		OutputTokens     *int64 `json:"output_tokens"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch {
	case raw.PromptTokens != nil:
		u.PromptTokens = *raw.PromptTokens
	case raw.InputTokens != nil:
		u.PromptTokens = *raw.InputTokens
	}

	switch {
	case raw.CompletionTokens != nil:
		u.CompletionTokens = *raw.CompletionTokens
	case raw.OutputTokens != nil:
		u.CompletionTokens = *raw.OutputTokens
	}

	if raw.TotalTokens != nil {
		u.TotalTokens = *raw.TotalTokens
	}
	return nil
}

// Event is one message broadcast on the Billing Bus: cumulative running
// cost for one model at one instant, or a terminal error notice.
type Event struct {
	Type     string  `json:"type"` // "billing" | "error"
	Model    string  `json:"model,omitempty"`
	Cost     float64 `json:"cost"`
	Currency string  `json:"currency,omitempty"`
	Fused    bool    `json:"fused,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}
