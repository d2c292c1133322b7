package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/solomonczyk/sales-voice-assistant/internal/asr"
	"github.com/solomonczyk/sales-voice-assistant/internal/crm"
	"github.com/solomonczyk/sales-voice-assistant/internal/dialog"
	"github.com/solomonczyk/sales-voice-assistant/internal/eventlog"
	"github.com/solomonczyk/sales-voice-assistant/internal/notifications"
)

// Pipeline stage names, in fixed order. The crm stage is present only when
// the detected intent is actionable.
const (
	StageRecognition = "recognition"
	StageDialog      = "dialog"
	StageSynthesis   = "synthesis"
	StageCRM         = "crm"
)

// ValidationError rejects malformed caller input before any stage runs.
// It is the only error kind that crosses the pipeline boundary; provider
// failures degrade instead.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// NewValidationError creates a caller-input rejection.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// CallInput is one end-to-end request: either recorded audio or, for callers
// that already have text, the utterance itself.
type CallInput struct {
	SessionID string
	Audio     []byte
	Text      string
	Language  string
	Voice     string
	Format    string
	Context   map[string]any
}

// StageResult is the outcome of one pipeline stage.
type StageResult struct {
	Stage     string  `json:"stage"`
	Provider  string  `json:"provider"`
	Status    Status  `json:"status"`
	Reason    string  `json:"reason,omitempty"`
	Payload   any     `json:"payload,omitempty"`
	LatencyMS float64 `json:"latency_ms"`
}

// Run is the aggregated result of one pipeline execution. Stage order is
// fixed; callers inspect per-stage status to detect degradation since the
// run as a whole rarely fails.
type Run struct {
	ID               string          `json:"id"`
	SessionID        string          `json:"session_id"`
	Stages           []StageResult   `json:"stages"`
	Intent           string          `json:"intent"`
	Entities         map[string]bool `json:"entities"`
	Confidence       float64         `json:"confidence"`
	AssistantMessage string          `json:"assistant_message"`
	AudioURL         string          `json:"audio_url,omitempty"`
	StartedAt        time.Time       `json:"started_at"`
	DurationMS       float64         `json:"duration_ms"`
}

// Degraded reports whether any stage ran on a fallback.
func (r *Run) Degraded() bool {
	for _, s := range r.Stages {
		if s.Status == StatusDegraded {
			return true
		}
	}
	return false
}

// Config holds the coordinator policy knobs.
type Config struct {
	// Actionable maps intent labels to the CRM record kind to create
	// (lead, deal or task). Intents not in the map skip the crm stage.
	Actionable      map[string]string
	DefaultLanguage string
	DefaultVoice    string
	DefaultFormat   string
}

// DefaultActionable returns the default intent-to-record-kind policy.
func DefaultActionable() map[string]string {
	return map[string]string{
		"product_inquiry":  "lead",
		"schedule_meeting": "task",
		"contact_info":     "lead",
	}
}

// Coordinator sequences recognition, dialog, synthesis and the conditional
// CRM stage for one request. It owns the Run for the duration of the call;
// the only shared state it touches is the session store (through the dialog
// engine) and the stats registry, both synchronized.
type Coordinator struct {
	recognition *RecognitionAdapter
	dialog      *dialog.Engine
	synthesis   *SynthesisAdapter
	crm         *CRMAdapter
	cfg         Config
	events      *eventlog.Logger
	notifier    *notifications.Notifier
	logger      *log.Logger
}

// NewCoordinator creates a pipeline coordinator.
func NewCoordinator(rec *RecognitionAdapter, eng *dialog.Engine, syn *SynthesisAdapter, crmAd *CRMAdapter, cfg Config, events *eventlog.Logger, notifier *notifications.Notifier, logger *log.Logger) *Coordinator {
	if cfg.Actionable == nil {
		cfg.Actionable = DefaultActionable()
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "ru-RU"
	}
	if cfg.DefaultVoice == "" {
		cfg.DefaultVoice = "alena"
	}
	if cfg.DefaultFormat == "" {
		cfg.DefaultFormat = "wav"
	}
	return &Coordinator{
		recognition: rec,
		dialog:      eng,
		synthesis:   syn,
		crm:         crmAd,
		cfg:         cfg,
		events:      events,
		notifier:    notifier,
		logger:      logger,
	}
}

// Recognition exposes the recognition adapter for the standalone endpoint.
func (c *Coordinator) Recognition() *RecognitionAdapter { return c.recognition }

// Synthesis exposes the synthesis adapter for the standalone endpoint.
func (c *Coordinator) Synthesis() *SynthesisAdapter { return c.synthesis }

// CRM exposes the CRM adapter for the standalone endpoints.
func (c *Coordinator) CRM() *CRMAdapter { return c.crm }

// Run executes the full pipeline for one request. The only error it returns
// is *ValidationError for malformed caller input; every provider failure is
// absorbed into a degraded stage so the caller always receives a complete,
// well-formed result.
func (c *Coordinator) Run(ctx context.Context, input CallInput) (*Run, error) {
	if len(input.Audio) == 0 && strings.TrimSpace(input.Text) == "" {
		return nil, NewValidationError("either audio or text input is required")
	}

	voice := input.Voice
	if voice == "" {
		voice = c.cfg.DefaultVoice
	}
	if _, ok := c.synthesis.LookupVoice(voice); !ok {
		return nil, NewValidationError("unknown voice %q", voice)
	}

	language := input.Language
	if language == "" {
		language = c.cfg.DefaultLanguage
	}
	format := input.Format
	if format == "" {
		format = c.cfg.DefaultFormat
	}

	sessionID := input.SessionID
	if sessionID == "" {
		sessionID = "call_" + uuid.NewString()
	}

	run := &Run{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		StartedAt: time.Now(),
	}
	c.events.LogAsync(sessionID, eventlog.EventPipelineStarted, map[string]any{
		"run_id":      run.ID,
		"audio_bytes": len(input.Audio),
		"has_text":    input.Text != "",
	})

	// Stage 1: recognition. Callers that already have text skip the
	// provider but still get a stage entry for a uniform run shape.
	transcript := c.runRecognition(ctx, run, input, language)

	// Stage 2: dialog. Rule-based, always succeeds.
	dres := c.runDialog(run, sessionID, transcript, input.Context)

	// Stage 3: synthesis of the assistant response.
	c.runSynthesis(ctx, run, dres.AssistantMessage, voice, format)

	// Stage 4: CRM record creation, only for actionable intents.
	if kind, ok := c.cfg.Actionable[dres.Intent]; ok {
		c.runCRM(ctx, run, kind, transcript, dres)
	}

	run.DurationMS = float64(time.Since(run.StartedAt).Microseconds()) / 1000.0
	c.events.LogAsync(sessionID, eventlog.EventPipelineCompleted, map[string]any{
		"run_id":      run.ID,
		"intent":      run.Intent,
		"degraded":    run.Degraded(),
		"duration_ms": run.DurationMS,
	})
	c.logger.Printf("pipeline: run=%s session=%s intent=%s stages=%d degraded=%v", run.ID, sessionID, run.Intent, len(run.Stages), run.Degraded())
	return run, nil
}

func (c *Coordinator) runRecognition(ctx context.Context, run *Run, input CallInput, language string) string {
	start := time.Now()

	if strings.TrimSpace(input.Text) != "" {
		payload := &asr.Result{Text: input.Text, Confidence: 1.0}
		run.Stages = append(run.Stages, StageResult{
			Stage:     StageRecognition,
			Provider:  "caller",
			Status:    StatusOK,
			Reason:    "text input supplied",
			Payload:   payload,
			LatencyMS: latencyMS(start),
		})
		return input.Text
	}

	res, out := c.recognition.Call(ctx, input.Audio, language)
	run.Stages = append(run.Stages, StageResult{
		Stage:     StageRecognition,
		Provider:  out.Provider,
		Status:    out.Status,
		Reason:    out.Reason,
		Payload:   res,
		LatencyMS: latencyMS(start),
	})
	c.events.LogAsync(run.SessionID, eventlog.EventRecognitionCompleted, map[string]any{
		"run_id": run.ID,
		"status": string(out.Status),
		"text":   res.Text,
	})
	return res.Text
}

func (c *Coordinator) runDialog(run *Run, sessionID, transcript string, contextPatch map[string]any) dialog.Result {
	start := time.Now()
	dres := c.dialog.Process(sessionID, transcript, contextPatch)
	run.Stages = append(run.Stages, StageResult{
		Stage:     StageDialog,
		Provider:  "dialog-rules",
		Status:    StatusOK,
		Payload:   dres,
		LatencyMS: latencyMS(start),
	})

	run.Intent = dres.Intent
	run.Entities = dres.Entities
	run.Confidence = dres.Confidence
	run.AssistantMessage = dres.AssistantMessage

	c.events.LogAsync(sessionID, eventlog.EventDialogCompleted, map[string]any{
		"run_id":     run.ID,
		"intent":     dres.Intent,
		"confidence": dres.Confidence,
		"actions":    dres.Actions,
	})
	return dres
}

func (c *Coordinator) runSynthesis(ctx context.Context, run *Run, text, voice, format string) {
	start := time.Now()
	payload, out := c.synthesis.Call(ctx, text, voice, format)
	run.Stages = append(run.Stages, StageResult{
		Stage:     StageSynthesis,
		Provider:  out.Provider,
		Status:    out.Status,
		Reason:    out.Reason,
		Payload:   payload,
		LatencyMS: latencyMS(start),
	})
	run.AudioURL = payload.AudioURL

	c.events.LogAsync(run.SessionID, eventlog.EventSynthesisCompleted, map[string]any{
		"run_id":    run.ID,
		"status":    string(out.Status),
		"audio_url": payload.AudioURL,
	})
}

func (c *Coordinator) runCRM(ctx context.Context, run *Run, kind, transcript string, dres dialog.Result) {
	start := time.Now()
	notes := fmt.Sprintf("Реплика клиента: %s\nОтвет ассистента: %s", transcript, dres.AssistantMessage)

	var (
		resp *crm.Response
		out  Outcome
	)
	switch kind {
	case "task":
		resp, out = c.crm.CreateTask(ctx, crm.TaskData{
			Title:       "Перезвонить клиенту: запись на встречу",
			Description: notes,
			ClientID:    contextString(dres.State, "client_id", run.SessionID),
		})
	case "deal":
		resp, out = c.crm.CreateDeal(ctx, crm.DealData{
			Title:    fmt.Sprintf("Сделка по обращению: %s", dres.Intent),
			ClientID: contextString(dres.State, "client_id", run.SessionID),
			Notes:    notes,
		})
	default:
		resp, out = c.crm.CreateLead(ctx, crm.LeadData{
			Title:           fmt.Sprintf("Голосовое обращение: %s", dres.Intent),
			Name:            contextString(dres.State, "client_name", "Неизвестный клиент"),
			Phone:           contextString(dres.State, "client_phone", ""),
			Email:           contextString(dres.State, "client_email", ""),
			Company:         contextString(dres.State, "client_company", ""),
			Source:          "voice_assistant",
			ProductInterest: dres.Intent,
			Notes:           notes,
		})
	}

	run.Stages = append(run.Stages, StageResult{
		Stage:     StageCRM,
		Provider:  out.Provider,
		Status:    out.Status,
		Reason:    out.Reason,
		Payload:   resp,
		LatencyMS: latencyMS(start),
	})

	c.events.LogAsync(run.SessionID, eventlog.EventCRMAction, map[string]any{
		"run_id":    run.ID,
		"kind":      kind,
		"record_id": resp.ID,
		"status":    string(out.Status),
	})
	c.notifier.RecordCreated(ctx, notifications.RecordNotification{
		Kind:      kind,
		RecordID:  resp.ID,
		SessionID: run.SessionID,
		Intent:    dres.Intent,
		Summary:   transcript,
		Degraded:  out.Status == StatusDegraded,
	})
}

func contextString(state map[string]any, key, fallback string) string {
	if v, ok := state[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func latencyMS(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
