package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamControl is a client text frame on the recognition stream.
type streamControl struct {
	Type     string `json:"type"` // "stop" finalizes the stream
	Language string `json:"language,omitempty"`
}

// handleRecognizeStream accepts audio over a websocket: binary frames carry
// audio chunks, a text frame {"type":"stop"} finalizes the stream. Each chunk
// is acknowledged with a partial message; the final recognition result is
// sent after stop. The recognition adapter still guarantees a (possibly
// degraded) transcript.
func (r *Router) handleRecognizeStream(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Printf("stream: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	language := req.URL.Query().Get("language")
	if language == "" {
		language = "ru-RU"
	}

	var audio []byte
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			// Client went away before finalizing; nothing to answer.
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if int64(len(audio)+len(msg)) > r.cfg.MaxAudioBytes {
				_ = conn.WriteJSON(map[string]any{
					"type":  "error",
					"error": "audio stream too large",
				})
				return
			}
			audio = append(audio, msg...)
			if err := conn.WriteJSON(map[string]any{
				"type":           "partial",
				"bytes_received": len(audio),
				"is_final":       false,
			}); err != nil {
				return
			}

		case websocket.TextMessage:
			var ctrl streamControl
			if err := json.Unmarshal(msg, &ctrl); err != nil {
				_ = conn.WriteJSON(map[string]any{
					"type":  "error",
					"error": "invalid control message",
				})
				continue
			}
			if ctrl.Language != "" {
				language = ctrl.Language
			}
			if ctrl.Type != "stop" {
				continue
			}

			if len(audio) == 0 {
				_ = conn.WriteJSON(map[string]any{
					"type":  "error",
					"error": "no audio received",
				})
				return
			}

			result, out := r.coordinator.Recognition().Call(req.Context(), audio, language)
			_ = conn.WriteJSON(map[string]any{
				"type":       "final",
				"text":       result.Text,
				"confidence": result.Confidence,
				"duration":   result.Duration,
				"status":     out.Status,
				"provider":   out.Provider,
				"is_final":   true,
			})
			return
		}
	}
}
