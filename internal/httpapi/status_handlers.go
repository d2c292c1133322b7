package httpapi

import (
	"net/http"
	"strconv"

	"github.com/solomonczyk/sales-voice-assistant/internal/dialog"
)

// handleHealth reports service health with current per-service stats.
func (r *Router) handleHealth(w http.ResponseWriter, _ *http.Request) {
	allStats := r.stats.SnapshotAll()
	dialogStats, ok := allStats[dialog.ServiceName]
	if !ok {
		dialogStats = map[string]any{}
		allStats[dialog.ServiceName] = dialogStats
	}
	dialogStats["active_sessions"] = r.sessions.Len()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "sales-voice-assistant",
		"stats":   allStats,
	})
}

// handleStats returns per-service counters without mutating them.
func (r *Router) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"services":          r.stats.SnapshotAll(),
		"available_intents": len(r.engine.Rules().Intents()),
		"active_sessions":   r.sessions.Len(),
		"runs_in_flight":    r.runs.Count(),
	})
}

// handleListSessions returns the open session ids (admin).
func (r *Router) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	ids := r.sessions.ActiveIDs()
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": ids,
		"count":    len(ids),
	})
}

// handleRecentEvents returns the newest interaction events (admin).
func (r *Router) handleRecentEvents(w http.ResponseWriter, req *http.Request) {
	if !r.events.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "event log is not configured")
		return
	}

	limit := 100
	if l := req.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	events, err := r.events.Recent(req.Context(), limit)
	if err != nil {
		r.logger.Printf("events: failed to list: %v", err)
		captureError(req, err, "list recent events")
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}
