package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// handleRecognize transcribes an uploaded audio file. The file must arrive as
// the multipart field "audio" with an audio/* content type; anything else is
// rejected before the recognition adapter runs.
func (r *Router) handleRecognize(w http.ResponseWriter, req *http.Request) {
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

	language := req.FormValue("language")
	if language == "" {
		language = "ru-RU"
	}

	result, out := r.coordinator.Recognition().Call(req.Context(), audio, language)
	writeJSON(w, http.StatusOK, map[string]any{
		"text":       result.Text,
		"confidence": result.Confidence,
		"duration":   result.Duration,
		"status":     out.Status,
		"provider":   out.Provider,
	})
}

// synthesizeRequest is the synthesis request body.
type synthesizeRequest struct {
	Text       string  `json:"text"`
	Voice      string  `json:"voice"`
	Format     string  `json:"format"`
	SampleRate int     `json:"sample_rate"`
	Speed      float64 `json:"speed"`
}

// handleSynthesize synthesizes speech for a text. Unknown voice ids are
// rejected before the synthesis adapter runs.
func (r *Router) handleSynthesize(w http.ResponseWriter, req *http.Request) {
	var body synthesizeRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	voice := body.Voice
	if voice == "" {
		voice = r.cfg.DefaultVoice
	}
	if _, ok := r.coordinator.Synthesis().LookupVoice(voice); !ok {
		writeError(w, http.StatusBadRequest, "unknown voice: "+voice)
		return
	}

	payload, out := r.coordinator.Synthesis().Call(req.Context(), body.Text, voice, body.Format)
	writeJSON(w, http.StatusOK, map[string]any{
		"audio_url":   payload.AudioURL,
		"duration":    payload.Duration,
		"text_length": payload.TextLength,
		"voice":       payload.Voice,
		"status":      out.Status,
		"provider":    out.Provider,
	})
}

// handleVoices lists the available synthesis voices.
func (r *Router) handleVoices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, r.coordinator.Synthesis().Voices())
}

// handleAudio serves a synthesized audio payload by id.
func (r *Router) handleAudio(w http.ResponseWriter, req *http.Request) {
	id := strings.TrimSuffix(req.PathValue("id"), ".wav")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing audio id")
		return
	}

	data, ok := r.audio.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "audio not found")
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", `attachment; filename=`+id+`.wav`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
