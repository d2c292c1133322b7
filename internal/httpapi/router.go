package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/solomonczyk/sales-voice-assistant/internal/dialog"
	"github.com/solomonczyk/sales-voice-assistant/internal/eventlog"
	"github.com/solomonczyk/sales-voice-assistant/internal/pipeline"
	"github.com/solomonczyk/sales-voice-assistant/internal/session"
	"github.com/solomonczyk/sales-voice-assistant/internal/stats"
	"github.com/solomonczyk/sales-voice-assistant/internal/tts"
)

type RouterConfig struct {
	PublicBaseURL string
	DefaultVoice  string // used by /synthesize when the request omits a voice

	// Admin API auth
	AdminAPIKey string
	JWTSecret   string
	JWTExpiry   time.Duration

	// Upload limits
	MaxAudioBytes int64 // per recognize/call request, defaults to 10MB
}

// Deps groups the core collaborators the handlers work against.
type Deps struct {
	Coordinator *pipeline.Coordinator
	Engine      *dialog.Engine
	Sessions    *session.Store
	Stats       *stats.Registry
	Audio       *tts.AudioStore
	Events      *eventlog.Logger
	Runs        *RunRegistry
}

type Router struct {
	cfg         RouterConfig
	logger      *log.Logger
	coordinator *pipeline.Coordinator
	engine      *dialog.Engine
	sessions    *session.Store
	stats       *stats.Registry
	audio       *tts.AudioStore
	events      *eventlog.Logger
	runs        *RunRegistry
	mux         *http.ServeMux
}

func NewRouter(cfg RouterConfig, logger *log.Logger, d Deps) http.Handler {
	if cfg.MaxAudioBytes == 0 {
		cfg.MaxAudioBytes = 10 << 20
	}
	if cfg.DefaultVoice == "" {
		cfg.DefaultVoice = "alena"
	}
	r := &Router{
		cfg:         cfg,
		logger:      logger,
		coordinator: d.Coordinator,
		engine:      d.Engine,
		sessions:    d.Sessions,
		stats:       d.Stats,
		audio:       d.Audio,
		events:      d.Events,
		runs:        d.Runs,
		mux:         http.NewServeMux(),
	}

	r.routes()
	return withSentryRecovery(withCORS(r.mux))
}

func (r *Router) routes() {
	// Health and stats (no auth - read-only)
	r.mux.HandleFunc("GET /healthz", r.handleHealthz)
	r.mux.HandleFunc("GET /health", r.handleHealth)
	r.mux.HandleFunc("GET /stats", r.handleStats)

	// Speech recognition
	r.mux.HandleFunc("POST /recognize", r.handleRecognize)
	r.mux.HandleFunc("GET /recognize/stream", r.handleRecognizeStream)

	// Speech synthesis
	r.mux.HandleFunc("POST /synthesize", r.handleSynthesize)
	r.mux.HandleFunc("GET /voices", r.handleVoices)
	r.mux.HandleFunc("GET /audio/{id}", r.handleAudio)

	// Dialog orchestration
	r.mux.HandleFunc("POST /dialog", r.handleDialog)
	r.mux.HandleFunc("POST /session/{id}/end", r.handleEndSession)
	r.mux.HandleFunc("GET /intents", r.handleIntents)

	// CRM record creation
	r.mux.HandleFunc("POST /crm/leads", r.handleCreateLead)
	r.mux.HandleFunc("POST /crm/deals", r.handleCreateDeal)
	r.mux.HandleFunc("POST /crm/tasks", r.handleCreateTask)

	// End-to-end pipeline
	r.mux.HandleFunc("POST /call", r.handleCall)

	// Admin API (JWT protected)
	r.mux.HandleFunc("POST /auth/token", r.handleToken)
	r.mux.HandleFunc("GET /api/sessions", r.withAuth(r.handleListSessions))
	r.mux.HandleFunc("GET /api/events", r.withAuth(r.handleRecentEvents))
}

func (r *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(req)
				hub.RecoverWithContext(req.Context(), err)
				hub.Flush(2 * time.Second)
				http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// captureError sends an error to Sentry with request context
func captureError(req *http.Request, err error, msg string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(req)
		scope.SetExtra("message", msg)
		sentry.CaptureException(err)
	})
}
