package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sentinelproxy/sentinel/internal/app"
	"github.com/sentinelproxy/sentinel/internal/session"
	"github.com/sentinelproxy/sentinel/internal/vendor"
)

type Handlers struct {
	app *app.App
}

func NewHandlers(a *app.App) *Handlers {
	return &Handlers{app: a}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Status handles GET /status.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_cost": h.app.Budget.Current(),
		"limit":      h.app.Budget.Limit(),
	})
}

// CheckGate handles GET /check_gate.
func (h *Handlers) CheckGate(w http.ResponseWriter, r *http.Request) {
	allowed, current, limit := h.app.Budget.Gate()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"allowed":      allowed,
		"current_cost": current,
		"limit":        limit,
	})
}

// SetLimit handles POST /v1/config/limit.
func (h *Handlers) SetLimit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Limit float64 `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	h.app.Budget.SetLimit(body.Limit)
	writeJSON(w, http.StatusOK, map[string]interface{}{"limit": h.app.Budget.Limit()})
}

// ResetCost handles POST /v1/config/reset_cost.
func (h *Handlers) ResetCost(w http.ResponseWriter, r *http.Request) {
	h.app.Budget.Reset()
	writeJSON(w, http.StatusOK, map[string]interface{}{"total_cost": h.app.Budget.Current()})
}

// RefreshPrices handles GET /v1/admin/refresh_prices.
func (h *Handlers) RefreshPrices(w http.ResponseWriter, r *http.Request) {
	if err := h.app.PriceCache.Refresh(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

// SessionMessages handles GET /v1/sessions/{session_id}/messages.
func (h *Handlers) SessionMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	history, err := h.app.Sessions.History(r.Context(), sessionID)
	if err != nil {
		h.app.Logger.Warn("session history degraded to empty after store failure", zap.String("session_id", sessionID), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"history":    history,
	})
}

// chatRequest is the subset of an inbound chat-completions body this proxy
// reads. ChatCompletions also decodes the body into a generic field map, so
// unknown fields are preserved and forwarded verbatim.
type chatRequest struct {
	Model       string            `json:"model"`
	Stream      bool              `json:"stream"`
	SessionID   string            `json:"session_id"`
	LoadHistory bool              `json:"load_history"`
	Messages    []json.RawMessage `json:"messages"`
}

// ChatCompletions handles POST /v1/chat/completions.
func (h *Handlers) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	allowed, current, limit := h.app.Budget.Gate()
	if !allowed {
		writeJSON(w, http.StatusPaymentRequired, map[string]interface{}{
			"error":        "budget_exceeded",
			"current_cost": current,
			"limit":        limit,
		})
		return
	}

	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read request body"})
		return
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(rawBody, &fields); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	var req chatRequest
	if err := json.Unmarshal(rawBody, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid chat request"})
		return
	}
	if req.SessionID == "" {
		req.SessionID = "default"
	}

	// session_id and load_history are this proxy's extensions; vendors
	// don't know about them.
	delete(fields, "session_id")
	delete(fields, "load_history")

	var lastUserMessage json.RawMessage
	if len(req.Messages) > 0 {
		lastUserMessage = req.Messages[len(req.Messages)-1]
	}

	if req.LoadHistory {
		history, err := h.app.Sessions.History(r.Context(), req.SessionID)
		if err != nil {
			h.app.Logger.Warn("history load degraded to empty", zap.String("session_id", req.SessionID), zap.Error(err))
		}
		history = session.PrepareHistory(history, req.Model)
		merged := make([]json.RawMessage, 0, len(history)+len(req.Messages))
		merged = append(merged, history...)
		merged = append(merged, req.Messages...)

		mergedJSON, err := json.Marshal(merged)
		if err == nil {
			fields["messages"] = mergedJSON
		}
	}

	forwardBody, err := json.Marshal(fields)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to rebuild request body"})
		return
	}

	resp, err := h.app.Dispatcher.Forward(r.Context(), req.Model, forwardBody, req.Stream)
	if err != nil {
		h.handleDispatchError(w, err)
		return
	}
	defer resp.Body.Close()

	if req.Stream {
		h.streamResponse(w, r, resp, req.Model, req.SessionID, lastUserMessage)
		return
	}
	h.nonStreamResponse(w, resp, req.Model, req.SessionID, lastUserMessage)
}

// handleDispatchError handles a Forward failure, which by construction never
// carries a response body to pass through: UnsupportedModel/MissingCredential
// are pre-dispatch (the request never left this process), and an
// UpstreamTransport failure means the round trip to the vendor never
// completed. The error's own text is the only diagnostic available, so it is
// surfaced as-is rather than re-wrapped or decorated.
func (h *Handlers) handleDispatchError(w http.ResponseWriter, err error) {
	switch err {
	case vendor.ErrUnsupportedModel, vendor.ErrMissingCredential:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	}
}

func (h *Handlers) streamResponse(w http.ResponseWriter, r *http.Request, resp *http.Response, model, sessionID string, lastUserMessage json.RawMessage) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(resp.StatusCode)

	if err := h.app.Meter.StreamChat(r.Context(), w, resp.Body, model, sessionID, lastUserMessage); err != nil {
		h.app.Logger.Debug("streaming meter ended", zap.String("model", model), zap.Error(err))
	}
}

func (h *Handlers) nonStreamResponse(w http.ResponseWriter, resp *http.Response, model, sessionID string, lastUserMessage json.RawMessage) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "failed to read upstream response"})
		return
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		h.app.Meter.NonStreamChat(model, sessionID, body, lastUserMessage)
	}
}
