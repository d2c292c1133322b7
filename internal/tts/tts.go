package tts

import "context"

// Voice describes one synthesis voice available to callers.
type Voice struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Language   string `json:"language"`
	Gender     string `json:"gender"`
	SampleRate int    `json:"sample_rate"`
}

// DefaultVoices returns the built-in voice catalog. Loaded once at startup
// and passed by injection; handlers and adapters never consult a global table.
func DefaultVoices() []Voice {
	return []Voice{
		{ID: "alena", Name: "Алена", Language: "ru-RU", Gender: "female", SampleRate: 16000},
		{ID: "filipp", Name: "Филипп", Language: "ru-RU", Gender: "male", SampleRate: 16000},
		{ID: "jane", Name: "Джейн", Language: "en-US", Gender: "female", SampleRate: 16000},
		{ID: "john", Name: "Джон", Language: "en-US", Gender: "male", SampleRate: 16000},
	}
}

// FindVoice looks a voice up by id.
func FindVoice(voices []Voice, id string) (Voice, bool) {
	for _, v := range voices {
		if v.ID == id {
			return v, true
		}
	}
	return Voice{}, false
}

// Client defines the interface for text-to-speech providers.
type Client interface {
	// Synthesize converts text to speech and returns the raw audio payload
	// in the requested format.
	Synthesize(ctx context.Context, text, voice, format string) ([]byte, error)
}
