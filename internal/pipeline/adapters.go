package pipeline

import (
	"context"
	"log"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/solomonczyk/sales-voice-assistant/internal/asr"
	"github.com/solomonczyk/sales-voice-assistant/internal/crm"
	"github.com/solomonczyk/sales-voice-assistant/internal/stats"
	"github.com/solomonczyk/sales-voice-assistant/internal/tts"
)

// Status of a single provider call. Degraded means the adapter produced a
// local fallback because the provider was unconfigured, erroring or
// unreachable; the distinction is always visible to the caller.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
)

// Stats service keys, one per logical sub-service.
const (
	ServiceASR = "asr-service"
	ServiceTTS = "tts-service"
	ServiceCRM = "crm-connector"
)

// FallbackProvider is reported when a degraded payload was produced locally.
const FallbackProvider = "local-fallback"

// fallbackTranscript is the canned transcript used when recognition is
// unavailable, so the rest of the pipeline still runs.
const fallbackTranscript = "Привет! Это тестовое распознавание речи."

// Outcome describes how one adapter call went.
type Outcome struct {
	Status   Status
	Provider string
	Reason   string
}

// RecognitionAdapter wraps a speech recognition client and always produces a
// transcript: a degraded canned one when the provider is unconfigured or
// failing. Never returns an error.
type RecognitionAdapter struct {
	client   asr.Client // nil when not configured
	provider string
	timeout  time.Duration
	stats    *stats.Registry
	logger   *log.Logger
}

// NewRecognitionAdapter creates a recognition adapter. client may be nil.
func NewRecognitionAdapter(client asr.Client, provider string, timeout time.Duration, st *stats.Registry, logger *log.Logger) *RecognitionAdapter {
	return &RecognitionAdapter{client: client, provider: provider, timeout: timeout, stats: st, logger: logger}
}

func (a *RecognitionAdapter) fallback(audio []byte, reason string) (*asr.Result, Outcome) {
	a.stats.Incr(ServiceASR, "failed_requests")
	return &asr.Result{
			Text:       fallbackTranscript,
			Confidence: 0.95,
			Duration:   float64(len(audio)) / 16000.0,
		}, Outcome{
			Status:   StatusDegraded,
			Provider: FallbackProvider,
			Reason:   reason,
		}
}

// Call transcribes the audio payload.
func (a *RecognitionAdapter) Call(ctx context.Context, audio []byte, language string) (*asr.Result, Outcome) {
	a.stats.Incr(ServiceASR, "total_requests")

	if a.client == nil {
		return a.fallback(audio, "recognition provider not configured")
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	res, err := a.client.Recognize(callCtx, audio, language)
	if err != nil {
		a.logger.Printf("asr: recognition failed, using fallback: %v", err)
		return a.fallback(audio, err.Error())
	}

	a.stats.Incr(ServiceASR, "successful_requests")
	a.stats.Add(ServiceASR, "total_audio_duration", res.Duration)
	return res, Outcome{Status: StatusOK, Provider: a.provider}
}

// SynthesisPayload is the canonical result of a synthesis call.
type SynthesisPayload struct {
	AudioURL   string  `json:"audio_url"`
	Duration   float64 `json:"duration"`
	TextLength int     `json:"text_length"`
	Voice      string  `json:"voice"`
}

// SynthesisAdapter wraps a text-to-speech client. Synthesized audio is kept
// in the audio store and referenced by url; when the provider is unavailable
// a silent placeholder with an estimated duration is stored instead.
type SynthesisAdapter struct {
	client   tts.Client // nil when not configured
	store    *tts.AudioStore
	voices   []tts.Voice
	provider string
	timeout  time.Duration
	stats    *stats.Registry
	logger   *log.Logger
}

// NewSynthesisAdapter creates a synthesis adapter. client may be nil.
func NewSynthesisAdapter(client tts.Client, store *tts.AudioStore, voices []tts.Voice, provider string, timeout time.Duration, st *stats.Registry, logger *log.Logger) *SynthesisAdapter {
	return &SynthesisAdapter{client: client, store: store, voices: voices, provider: provider, timeout: timeout, stats: st, logger: logger}
}

// Voices returns the injected voice catalog.
func (a *SynthesisAdapter) Voices() []tts.Voice { return a.voices }

// LookupVoice resolves a voice id against the catalog.
func (a *SynthesisAdapter) LookupVoice(id string) (tts.Voice, bool) {
	return tts.FindVoice(a.voices, id)
}

func (a *SynthesisAdapter) payload(text, voice string) SynthesisPayload {
	textLen := utf8.RuneCountInString(text)
	return SynthesisPayload{
		AudioURL:   "/audio/" + uuid.NewString() + ".wav",
		Duration:   0.1 * float64(textLen),
		TextLength: textLen,
		Voice:      voice,
	}
}

func (a *SynthesisAdapter) fallback(text, voice, reason string) (SynthesisPayload, Outcome) {
	a.stats.Incr(ServiceTTS, "failed_requests")
	p := a.payload(text, voice)
	// Keep the audio url resolvable: store silence matching the estimated
	// duration so GET /audio/{id} serves a playable payload on degradation.
	a.store.Put(audioID(p.AudioURL), silencePCM(p.Duration))
	return p, Outcome{
		Status:   StatusDegraded,
		Provider: FallbackProvider,
		Reason:   reason,
	}
}

func audioID(url string) string {
	return url[len("/audio/") : len(url)-len(".wav")]
}

// silencePCM returns zeroed 16kHz 16-bit mono samples for the given duration.
func silencePCM(seconds float64) []byte {
	n := int(seconds * 16000 * 2)
	if n <= 0 {
		n = 2
	}
	return make([]byte, n)
}

// Call synthesizes text with the given voice.
func (a *SynthesisAdapter) Call(ctx context.Context, text, voice, format string) (SynthesisPayload, Outcome) {
	a.stats.Incr(ServiceTTS, "total_requests")
	a.stats.Add(ServiceTTS, "total_text_length", float64(utf8.RuneCountInString(text)))

	if a.client == nil {
		return a.fallback(text, voice, "synthesis provider not configured")
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	audio, err := a.client.Synthesize(callCtx, text, voice, format)
	if err != nil {
		a.logger.Printf("tts: synthesis failed, using fallback: %v", err)
		return a.fallback(text, voice, err.Error())
	}

	p := a.payload(text, voice)
	a.store.Put(audioID(p.AudioURL), audio)

	a.stats.Incr(ServiceTTS, "successful_requests")
	a.stats.Add(ServiceTTS, "total_audio_duration", p.Duration)
	return p, Outcome{Status: StatusOK, Provider: a.provider}
}

// CRMAdapter wraps a CRM client and guarantees a record result: when the CRM
// is unconfigured or failing the record is assigned a locally generated id so
// the pipeline completes and the interaction is not lost silently.
type CRMAdapter struct {
	client   crm.Client // nil when not configured
	provider string
	timeout  time.Duration
	stats    *stats.Registry
	logger   *log.Logger
}

// NewCRMAdapter creates a CRM adapter. client may be nil.
func NewCRMAdapter(client crm.Client, provider string, timeout time.Duration, st *stats.Registry, logger *log.Logger) *CRMAdapter {
	return &CRMAdapter{client: client, provider: provider, timeout: timeout, stats: st, logger: logger}
}

func (a *CRMAdapter) fallback(kind, message, reason string) (*crm.Response, Outcome) {
	a.stats.Incr(ServiceCRM, "failed_requests")
	return &crm.Response{
			Success: true,
			ID:      kind + "_" + uuid.NewString(),
			Message: message,
		}, Outcome{
			Status:   StatusDegraded,
			Provider: FallbackProvider,
			Reason:   reason,
		}
}

func (a *CRMAdapter) call(ctx context.Context, kind, counter, fallbackMsg string, fn func(context.Context) (*crm.Response, error)) (*crm.Response, Outcome) {
	a.stats.Incr(ServiceCRM, "total_requests")

	if a.client == nil {
		return a.fallback(kind, fallbackMsg, "CRM provider not configured")
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := fn(callCtx)
	if err != nil {
		a.logger.Printf("crm: %s creation failed, using fallback: %v", kind, err)
		return a.fallback(kind, fallbackMsg, err.Error())
	}

	a.stats.Incr(ServiceCRM, counter)
	return resp, Outcome{Status: StatusOK, Provider: a.provider}
}

// CreateLead creates a lead, degrading to a local record id on failure.
func (a *CRMAdapter) CreateLead(ctx context.Context, lead crm.LeadData) (*crm.Response, Outcome) {
	return a.call(ctx, "lead", "leads_created", "Лид создан локально (CRM недоступна)", func(ctx context.Context) (*crm.Response, error) {
		return a.client.CreateLead(ctx, lead)
	})
}

// CreateDeal creates a deal, degrading to a local record id on failure.
func (a *CRMAdapter) CreateDeal(ctx context.Context, deal crm.DealData) (*crm.Response, Outcome) {
	return a.call(ctx, "deal", "deals_created", "Сделка создана локально (CRM недоступна)", func(ctx context.Context) (*crm.Response, error) {
		return a.client.CreateDeal(ctx, deal)
	})
}

// CreateTask creates a task, degrading to a local record id on failure.
func (a *CRMAdapter) CreateTask(ctx context.Context, task crm.TaskData) (*crm.Response, Outcome) {
	return a.call(ctx, "task", "tasks_created", "Задача создана локально (CRM недоступна)", func(ctx context.Context) (*crm.Response, error) {
		return a.client.CreateTask(ctx, task)
	})
}
