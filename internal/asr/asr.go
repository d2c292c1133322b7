package asr

import "context"

// Result represents a single-shot speech recognition result.
type Result struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Duration   float64 `json:"duration"` // seconds of recognized audio
}

// Client defines the interface for speech recognition providers.
type Client interface {
	// Recognize transcribes one complete audio payload.
	// Audio should be in the format expected by the provider.
	Recognize(ctx context.Context, audio []byte, language string) (*Result, error)
}
