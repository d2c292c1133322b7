package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/solomonczyk/sales-voice-assistant/internal/crm"
	"github.com/solomonczyk/sales-voice-assistant/internal/pipeline"
)

func writeCRMResponse(w http.ResponseWriter, resp *crm.Response, out pipeline.Outcome) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         resp.Success,
		"id":              resp.ID,
		"message":         resp.Message,
		"data":            resp.Data,
		"provider_status": out.Status,
		"provider":        out.Provider,
	})
}

// handleCreateLead creates a CRM lead directly.
func (r *Router) handleCreateLead(w http.ResponseWriter, req *http.Request) {
	var lead crm.LeadData
	if err := json.NewDecoder(req.Body).Decode(&lead); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if lead.Title == "" || lead.Name == "" || lead.Phone == "" {
		writeError(w, http.StatusBadRequest, "title, name and phone are required")
		return
	}

	resp, out := r.coordinator.CRM().CreateLead(req.Context(), lead)
	writeCRMResponse(w, resp, out)
}

// handleCreateDeal creates a CRM deal directly.
func (r *Router) handleCreateDeal(w http.ResponseWriter, req *http.Request) {
	var deal crm.DealData
	if err := json.NewDecoder(req.Body).Decode(&deal); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if deal.Title == "" || deal.ClientID == "" {
		writeError(w, http.StatusBadRequest, "title and client_id are required")
		return
	}

	resp, out := r.coordinator.CRM().CreateDeal(req.Context(), deal)
	writeCRMResponse(w, resp, out)
}

// handleCreateTask creates a CRM follow-up task directly.
func (r *Router) handleCreateTask(w http.ResponseWriter, req *http.Request) {
	var task crm.TaskData
	if err := json.NewDecoder(req.Body).Decode(&task); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if task.Title == "" || task.Description == "" {
		writeError(w, http.StatusBadRequest, "title and description are required")
		return
	}

	resp, out := r.coordinator.CRM().CreateTask(req.Context(), task)
	writeCRMResponse(w, resp, out)
}
