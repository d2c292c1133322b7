package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/solomonczyk/sales-voice-assistant/internal/asr"
	"github.com/solomonczyk/sales-voice-assistant/internal/crm"
	"github.com/solomonczyk/sales-voice-assistant/internal/dialog"
	"github.com/solomonczyk/sales-voice-assistant/internal/eventlog"
	"github.com/solomonczyk/sales-voice-assistant/internal/httpapi"
	"github.com/solomonczyk/sales-voice-assistant/internal/jobs"
	"github.com/solomonczyk/sales-voice-assistant/internal/notifications"
	"github.com/solomonczyk/sales-voice-assistant/internal/pipeline"
	"github.com/solomonczyk/sales-voice-assistant/internal/session"
	"github.com/solomonczyk/sales-voice-assistant/internal/stats"
	"github.com/solomonczyk/sales-voice-assistant/internal/tts"
)

type App struct {
	cfg         Config
	logger      *log.Logger
	db          *pgxpool.Pool
	stats       *stats.Registry
	sessions    *session.Store
	engine      *dialog.Engine
	audio       *tts.AudioStore
	eventLog    *eventlog.Logger
	coordinator *pipeline.Coordinator
	reaper      *jobs.SessionReaper
	httpClient  *http.Client // Shared HTTP client with connection pooling for provider calls
}

func New(cfg Config, logger *log.Logger) (*App, error) {
	// The event log is optional: without DATABASE_URL the service runs
	// with in-memory state only.
	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		db = pool
	}

	// Shared HTTP client with connection pooling. Keeps TCP connections
	// alive to reduce latency for repeated SpeechKit and Bitrix24 calls.
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	rules := dialog.DefaultRuleSet()
	if cfg.RulesPath != "" {
		loaded, err := dialog.LoadRuleSet(cfg.RulesPath)
		if err != nil {
			return nil, fmt.Errorf("load dialog rules: %w", err)
		}
		rules = loaded
	}

	st := stats.New()
	sessions := session.New()
	engine := dialog.NewEngine(rules, sessions, st, logger)
	audio := tts.NewAudioStore(0)
	el := eventlog.New(db)

	// Provider clients stay nil when unconfigured; the adapters degrade
	// to local fallbacks instead of failing requests.
	var asrClient asr.Client
	var ttsClient tts.Client
	if cfg.SpeechKitAPIKey != "" {
		asrClient = asr.NewSpeechKitClient(asr.SpeechKitConfig{
			APIKey:     cfg.SpeechKitAPIKey,
			FolderID:   cfg.SpeechKitFolderID,
			HTTPClient: httpClient,
		})
		ttsClient = tts.NewSpeechKitClient(tts.SpeechKitConfig{
			APIKey:     cfg.SpeechKitAPIKey,
			FolderID:   cfg.SpeechKitFolderID,
			SampleRate: cfg.TTSSampleRate,
			Speed:      cfg.TTSSpeed,
			HTTPClient: httpClient,
		})
	}
	var crmClient crm.Client
	if cfg.BitrixWebhookURL != "" {
		crmClient = crm.NewBitrixClient(crm.BitrixConfig{
			WebhookURL: cfg.BitrixWebhookURL,
			HTTPClient: httpClient,
		})
	}

	rec := pipeline.NewRecognitionAdapter(asrClient, "yandex-speechkit", cfg.ProviderTimeout, st, logger)
	syn := pipeline.NewSynthesisAdapter(ttsClient, audio, tts.DefaultVoices(), "yandex-speechkit", cfg.ProviderTimeout, st, logger)
	crmAd := pipeline.NewCRMAdapter(crmClient, "bitrix24", cfg.ProviderTimeout, st, logger)

	var discord *notifications.Discord
	if cfg.DiscordWebhookURL != "" {
		discord = notifications.NewDiscord(cfg.DiscordWebhookURL, logger)
	}
	var apnsClient *notifications.APNsClient
	if cfg.APNsKeyPath != "" {
		client, err := notifications.NewAPNsClient(notifications.APNsConfig{
			KeyPath:    cfg.APNsKeyPath,
			KeyID:      cfg.APNsKeyID,
			TeamID:     cfg.APNsTeamID,
			BundleID:   cfg.APNsBundleID,
			Production: cfg.APNsProduction,
		}, logger)
		if err != nil {
			logger.Printf("apns disabled: %v", err)
		} else {
			apnsClient = client
		}
	}
	notifier := notifications.NewNotifier(discord, apnsClient, cfg.ManagerDeviceTokens, logger)

	actionable := cfg.ActionableIntents
	if actionable == nil {
		actionable = pipeline.DefaultActionable()
	}
	coordinator := pipeline.NewCoordinator(rec, engine, syn, crmAd, pipeline.Config{
		Actionable:      actionable,
		DefaultLanguage: cfg.DefaultLanguage,
		DefaultVoice:    cfg.DefaultVoice,
		DefaultFormat:   cfg.DefaultFormat,
	}, el, notifier, logger)

	reaper := jobs.NewSessionReaper(sessions, el, logger, cfg.SessionIdleTimeout, time.Minute)

	return &App{
		cfg:         cfg,
		logger:      logger,
		db:          db,
		stats:       st,
		sessions:    sessions,
		engine:      engine,
		audio:       audio,
		eventLog:    el,
		coordinator: coordinator,
		reaper:      reaper,
		httpClient:  httpClient,
	}, nil
}

func (a *App) Router(runs *httpapi.RunRegistry) http.Handler {
	routerCfg := httpapi.RouterConfig{
		PublicBaseURL: a.cfg.PublicBaseURL,
		DefaultVoice:  a.cfg.DefaultVoice,
		AdminAPIKey:   a.cfg.AdminAPIKey,
		JWTSecret:     a.cfg.JWTSecret,
		JWTExpiry:     a.cfg.JWTExpiry,
		MaxAudioBytes: a.cfg.MaxAudioBytes,
	}
	return httpapi.NewRouter(routerCfg, a.logger, httpapi.Deps{
		Coordinator: a.coordinator,
		Engine:      a.engine,
		Sessions:    a.sessions,
		Stats:       a.stats,
		Audio:       a.audio,
		Events:      a.eventLog,
		Runs:        runs,
	})
}

// Reaper exposes the idle-session sweeper so main can start and stop it.
func (a *App) Reaper() *jobs.SessionReaper {
	return a.reaper
}

func (a *App) Close() error {
	if a.db != nil {
		a.db.Close()
	}
	return nil
}
