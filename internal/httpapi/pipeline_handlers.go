package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/solomonczyk/sales-voice-assistant/internal/pipeline"
)

// callRequest is the JSON form of a pipeline call, for callers that already
// have text instead of audio.
type callRequest struct {
	SessionID string         `json:"session_id"`
	Text      string         `json:"text"`
	Language  string         `json:"language"`
	Voice     string         `json:"voice"`
	Format    string         `json:"format"`
	Context   map[string]any `json:"context,omitempty"`
}

// handleCall runs the full pipeline for one request. Audio arrives as a
// multipart upload; text callers post JSON. Only malformed input fails the
// call; provider problems surface as degraded stages in the run.
func (r *Router) handleCall(w http.ResponseWriter, req *http.Request) {
	if !r.runs.Add() {
		writeError(w, http.StatusServiceUnavailable, "shutting down")
		return
	}
	defer r.runs.Done()

	var input pipeline.CallInput

	contentType := req.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		req.Body = http.MaxBytesReader(w, req.Body, r.cfg.MaxAudioBytes)
		if err := req.ParseMultipartForm(r.cfg.MaxAudioBytes); err != nil {
			writeError(w, http.StatusBadRequest, "multipart form with an audio file is required")
			return
		}

		file, header, err := req.FormFile("audio")
		if err != nil {
			writeError(w, http.StatusBadRequest, "audio file is required")
			return
		}
		defer file.Close()

		if ct := header.Header.Get("Content-Type"); !strings.HasPrefix(ct, "audio/") {
			writeError(w, http.StatusBadRequest, "file must be audio")
			return
		}

		audio, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read audio file")
			return
		}

		input = pipeline.CallInput{
			SessionID: req.FormValue("session_id"),
			Audio:     audio,
			Language:  req.FormValue("language"),
			Voice:     req.FormValue("voice"),
			Format:    req.FormValue("format"),
		}
	} else {
		var body callRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		input = pipeline.CallInput{
			SessionID: body.SessionID,
			Text:      body.Text,
			Language:  body.Language,
			Voice:     body.Voice,
			Format:    body.Format,
			Context:   body.Context,
		}
	}

	run, err := r.coordinator.Run(req.Context(), input)
	if err != nil {
		var verr *pipeline.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		// The coordinator only returns validation errors; anything else
		// is a bug worth reporting.
		r.logger.Printf("pipeline: unexpected run error: %v", err)
		captureError(req, err, "pipeline run")
		writeError(w, http.StatusInternalServerError, "pipeline failed")
		return
	}

	writeJSON(w, http.StatusOK, run)
}
