package dialog

import (
	"log"

	"github.com/solomonczyk/sales-voice-assistant/internal/session"
	"github.com/solomonczyk/sales-voice-assistant/internal/stats"
)

// ServiceName is the stats key for the dialog engine.
const ServiceName = "dialog-orchestrator"

// Result is the outcome of processing one user message.
type Result struct {
	SessionID        string          `json:"session_id"`
	AssistantMessage string          `json:"assistant_message"`
	Intent           string          `json:"intent"`
	Entities         map[string]bool `json:"entities"`
	Confidence       float64         `json:"confidence"`
	State            map[string]any  `json:"state"`
	Actions          []string        `json:"actions"`
}

// Engine is the rule-based conversational core: classification, entity
// extraction, response generation and session mutation for one message.
type Engine struct {
	rules    *RuleSet
	sessions *session.Store
	stats    *stats.Registry
	logger   *log.Logger
}

// NewEngine creates a dialog engine over an immutable rule set.
func NewEngine(rules *RuleSet, sessions *session.Store, st *stats.Registry, logger *log.Logger) *Engine {
	return &Engine{
		rules:    rules,
		sessions: sessions,
		stats:    st,
		logger:   logger,
	}
}

// Rules exposes the rule table for inspection endpoints.
func (e *Engine) Rules() *RuleSet { return e.rules }

// Process classifies the user message, generates the assistant response and
// mutates the session context under the per-session lock. contextPatch is
// merged into the session bag before the response is generated, last-write-wins
// per key.
func (e *Engine) Process(sessionID, userMessage string, contextPatch map[string]any) Result {
	e.stats.Incr(ServiceName, "total_dialogs")
	e.stats.Incr(ServiceName, "total_messages")

	intent := e.rules.Classify(userMessage)
	if intent.Label != IntentUnknown {
		e.stats.Incr(ServiceName, "intents_detected")
	}

	var (
		text    string
		actions []string
		state   map[string]any
	)
	e.sessions.WithSession(sessionID, func(s *session.Session) {
		for k, v := range contextPatch {
			s.Context[k] = v
		}

		text, actions = e.rules.Respond(intent.Label, intent.Entities, s.Context)

		s.Context["last_intent"] = intent.Label
		if n, ok := s.Context["message_count"].(int); ok {
			s.Context["message_count"] = n + 1
		} else {
			s.Context["message_count"] = 1
		}

		state = make(map[string]any, len(s.Context))
		for k, v := range s.Context {
			state[k] = v
		}
	})

	e.logger.Printf("dialog: session=%s intent=%s confidence=%.1f actions=%v", sessionID, intent.Label, intent.Confidence, actions)

	return Result{
		SessionID:        sessionID,
		AssistantMessage: text,
		Intent:           intent.Label,
		Entities:         intent.Entities,
		Confidence:       intent.Confidence,
		State:            state,
		Actions:          actions,
	}
}
