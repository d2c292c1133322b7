package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/solomonczyk/sales-voice-assistant/internal/eventlog"
)

// dialogRequest is the dialog request body.
type dialogRequest struct {
	SessionID   string         `json:"session_id"`
	UserMessage string         `json:"user_message"`
	Context     map[string]any `json:"context,omitempty"`
}

// handleDialog processes one user message through the dialog engine.
func (r *Router) handleDialog(w http.ResponseWriter, req *http.Request) {
	var body dialogRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if strings.TrimSpace(body.UserMessage) == "" {
		writeError(w, http.StatusBadRequest, "user_message is required")
		return
	}

	result := r.engine.Process(body.SessionID, body.UserMessage, body.Context)
	r.events.LogAsync(body.SessionID, eventlog.EventDialogCompleted, map[string]any{
		"intent":     result.Intent,
		"confidence": result.Confidence,
	})
	writeJSON(w, http.StatusOK, result)
}

// handleEndSession closes a dialog session. Ending an unknown session is not
// an error; the call is idempotent from the caller's point of view.
func (r *Router) handleEndSession(w http.ResponseWriter, req *http.Request) {
	sessionID := req.PathValue("id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing session id")
		return
	}

	existed := r.sessions.End(sessionID)
	if existed {
		r.events.LogAsync(sessionID, eventlog.EventSessionEnded, map[string]any{"reason": "caller"})
	}
	r.logger.Printf("session: ended id=%s existed=%v", sessionID, existed)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "session_ended",
		"session_id": sessionID,
	})
}

// handleIntents lists the configured intent rules.
func (r *Router) handleIntents(w http.ResponseWriter, _ *http.Request) {
	rules := r.engine.Rules()
	writeJSON(w, http.StatusOK, map[string]any{
		"intents": rules.Intents(),
		"rules":   rules.Rules(),
	})
}
