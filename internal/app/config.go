package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr      string
	PublicBaseURL string
	DatabaseURL   string
	SentryDSN     string
	LogLevel      string

	// Twilio webhooks
	TwilioAuthTok    string
	TwilioAccountSID string

	// Voice AI providers
	DeepgramAPIKey string
	GeminiAPIKey   string

	// Outbound email
	SendGridAPIKey string
	EmailFrom      string

	// Ops notifications
	DiscordWebhookURL string

	// STT settings
	STTEndpointingMs       int     // Deepgram endpointing in ms (silence threshold)
	STTUtteranceEndMs      int     // Hard timeout after last speech, regardless of noise
	STTConfidenceThreshold float64 // Gather transcripts below this are distrusted

	// Call session retention
	SessionTTL time.Duration

	// Seed demo technicians and slots at startup
	SeedDemoData bool
}

func LoadConfigFromEnv() Config {
	sessionTTL, err := time.ParseDuration(getenv("SESSION_TTL", "30m"))
	if err != nil {
		sessionTTL = 30 * time.Minute
	}

	return Config{
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		PublicBaseURL: getenv("PUBLIC_BASE_URL", "http://localhost:8080"),
		DatabaseURL:   getenv("DATABASE_URL", ""),
		SentryDSN:     getenv("SENTRY_DSN", ""),
		LogLevel:      getenv("LOG_LEVEL", "info"),

		TwilioAuthTok:    getenv("TWILIO_AUTH_TOKEN", ""),
		TwilioAccountSID: getenv("TWILIO_ACCOUNT_SID", ""),

		DeepgramAPIKey: getenv("DEEPGRAM_API_KEY", ""),
		GeminiAPIKey:   getenv("GEMINI_API_KEY", ""),

		SendGridAPIKey: getenv("SENDGRID_API_KEY", ""),
		EmailFrom:      getenv("EMAIL_FROM", "no-reply@fixline.example.com"),

		DiscordWebhookURL: getenv("DISCORD_WEBHOOK_URL", ""),

		STTEndpointingMs:       getenvInt("STT_ENDPOINTING_MS", 0),
		STTUtteranceEndMs:      getenvInt("STT_UTTERANCE_END_MS", 0),
		STTConfidenceThreshold: getenvFloat("STT_CONFIDENCE_THRESHOLD", 0.5),

		SessionTTL:   sessionTTL,
		SeedDemoData: getenv("SEED_DEMO_DATA", "true") == "true",
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
