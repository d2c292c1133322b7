package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr      string
	PublicBaseURL string
	DatabaseURL   string
	SentryDSN     string
	LogLevel      string

	// Yandex SpeechKit (recognition and synthesis)
	SpeechKitAPIKey   string
	SpeechKitFolderID string

	// Bitrix24 CRM
	BitrixWebhookURL string

	// Dialog rules
	RulesPath         string
	ActionableIntents map[string]string // intent -> record kind, empty means defaults

	// Recognition and synthesis defaults
	DefaultLanguage string
	DefaultVoice    string
	DefaultFormat   string
	TTSSampleRate   int
	TTSSpeed        float64

	// Pipeline timing
	ProviderTimeout    time.Duration
	SessionIdleTimeout time.Duration

	// Upload limits
	MaxAudioBytes int64

	// Admin API auth
	AdminAPIKey string
	JWTSecret   string
	JWTExpiry   time.Duration

	// Manager notifications
	DiscordWebhookURL   string
	APNsKeyPath         string
	APNsKeyID           string
	APNsTeamID          string
	APNsBundleID        string
	APNsProduction      bool
	ManagerDeviceTokens []string
}

func LoadConfigFromEnv() Config {
	return Config{
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		PublicBaseURL: getenv("PUBLIC_BASE_URL", "http://localhost:8080"),
		DatabaseURL:   getenv("DATABASE_URL", ""),
		SentryDSN:     getenv("SENTRY_DSN", ""),
		LogLevel:      getenv("LOG_LEVEL", "info"),

		SpeechKitAPIKey:   getenv("SPEECHKIT_API_KEY", ""),
		SpeechKitFolderID: getenv("SPEECHKIT_FOLDER_ID", ""),

		BitrixWebhookURL: getenv("BITRIX_WEBHOOK_URL", ""),

		RulesPath:         getenv("DIALOG_RULES_PATH", ""),
		ActionableIntents: parseActionableIntents(os.Getenv("ACTIONABLE_INTENTS")),

		DefaultLanguage: getenv("ASR_DEFAULT_LANGUAGE", "ru-RU"),
		DefaultVoice:    getenv("TTS_DEFAULT_VOICE", "alena"),
		DefaultFormat:   getenv("TTS_DEFAULT_FORMAT", "wav"),
		TTSSampleRate:   getenvIntClamped("TTS_SAMPLE_RATE", 16000, 8000, 48000),
		TTSSpeed:        getenvFloatClamped("TTS_SPEED", 1.0, 0.1, 3.0),

		ProviderTimeout:    getenvDuration("PROVIDER_TIMEOUT", 10*time.Second),
		SessionIdleTimeout: getenvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),

		MaxAudioBytes: int64(getenvIntClamped("MAX_AUDIO_BYTES", 10<<20, 1<<10, 100<<20)),

		AdminAPIKey: os.Getenv("ADMIN_API_KEY"),
		JWTSecret:   os.Getenv("JWT_SECRET"), // Required for admin API - no fallback for security
		JWTExpiry:   getenvDuration("JWT_EXPIRY", 24*time.Hour),

		DiscordWebhookURL:   getenv("DISCORD_WEBHOOK_URL", ""),
		APNsKeyPath:         getenv("APNS_KEY_PATH", ""),
		APNsKeyID:           getenv("APNS_KEY_ID", ""),
		APNsTeamID:          getenv("APNS_TEAM_ID", ""),
		APNsBundleID:        getenv("APNS_BUNDLE_ID", ""),
		APNsProduction:      os.Getenv("APNS_PRODUCTION") == "true",
		ManagerDeviceTokens: parseList(os.Getenv("MANAGER_DEVICE_TOKENS")),
	}
}

// parseActionableIntents parses "intent=kind,intent=kind" pairs. Pairs with
// a record kind other than lead, deal or task are skipped.
func parseActionableIntents(s string) map[string]string {
	if s == "" {
		return nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		intent, kind, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		intent = strings.TrimSpace(intent)
		kind = strings.TrimSpace(kind)
		if intent == "" {
			continue
		}
		switch kind {
		case "lead", "deal", "task":
			out[intent] = kind
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func parseList(s string) []string {
	if s == "" {
		return nil
	}
	var items []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, p)
		}
	}
	return items
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func getenvIntClamped(k string, def, min, max int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

func getenvFloatClamped(k string, def, min, max float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	if f < min {
		return min
	}
	if f > max {
		return max
	}
	return f
}
