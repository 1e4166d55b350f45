package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rgaros/fixline/internal/dialog"
	"github.com/rgaros/fixline/internal/eventlog"
	"github.com/rgaros/fixline/internal/httpapi"
	"github.com/rgaros/fixline/internal/jobs"
	"github.com/rgaros/fixline/internal/llm"
	"github.com/rgaros/fixline/internal/mailer"
	"github.com/rgaros/fixline/internal/notifications"
	"github.com/rgaros/fixline/internal/session"
	"github.com/rgaros/fixline/internal/speech"
	"github.com/rgaros/fixline/internal/store"
	"github.com/rgaros/fixline/internal/vision"
)

type App struct {
	cfg      Config
	logger   *log.Logger
	db       *pgxpool.Pool
	store    *store.Store
	eventLog *eventlog.Logger
	sessions *session.Store
	arbiter  *speech.Arbiter
	machine  *dialog.Machine
	vision   vision.Analyzer
}

func New(cfg Config, logger *log.Logger) (*App, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s := store.New(db)
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if cfg.SeedDemoData {
		if err := s.Seed(ctx, logger); err != nil {
			logger.Printf("seed failed: %v", err)
		}
	}

	el := eventlog.New(db)

	// Without a Gemini key the keyword classifier carries the dialogue.
	var languageClient llm.Client
	if cfg.GeminiAPIKey != "" {
		languageClient = llm.NewGeminiClient(llm.GeminiConfig{APIKey: cfg.GeminiAPIKey, Logger: logger})
	} else {
		logger.Printf("GEMINI_API_KEY not set, using keyword-only classification")
		languageClient = llm.NewKeywordClient()
	}

	analyzer := vision.NewGeminiAnalyzer(vision.GeminiConfig{APIKey: cfg.GeminiAPIKey, Logger: logger})
	mail := mailer.New(mailer.Config{APIKey: cfg.SendGridAPIKey, FromEmail: cfg.EmailFrom, Logger: logger})

	machine := dialog.NewMachine(dialog.Config{
		LLM:     languageClient,
		Slots:   s,
		Booker:  s,
		Uploads: s,
		Mailer:  mail,
		Events:  el,
		Notify:  notifications.NewDiscord(cfg.DiscordWebhookURL, logger),
		BaseURL: cfg.PublicBaseURL,
	})

	return &App{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		store:    s,
		eventLog: el,
		sessions: session.NewStore(cfg.SessionTTL),
		arbiter:  speech.NewArbiter(logger, cfg.STTConfidenceThreshold),
		machine:  machine,
		vision:   analyzer,
	}, nil
}

func (a *App) Router(calls *httpapi.CallRegistry) http.Handler {
	routerCfg := httpapi.RouterConfig{
		PublicBaseURL:     a.cfg.PublicBaseURL,
		TwilioAuthToken:   a.cfg.TwilioAuthTok,
		TwilioAccountSID:  a.cfg.TwilioAccountSID,
		DeepgramAPIKey:    a.cfg.DeepgramAPIKey,
		STTEndpointingMs:  a.cfg.STTEndpointingMs,
		STTUtteranceEndMs: a.cfg.STTUtteranceEndMs,
	}
	return httpapi.NewRouter(routerCfg, a.logger, httpapi.RouterDeps{
		Store:    a.store,
		EventLog: a.eventLog,
		Sessions: a.sessions,
		Machine:  a.machine,
		Arbiter:  a.arbiter,
		Vision:   a.vision,
		Registry: calls,
	})
}

// StartUploadCleanup launches the background sweeper that purges expired
// upload tokens and their saved images.
func (a *App) StartUploadCleanup(interval time.Duration) *jobs.UploadCleanupJob {
	j := jobs.NewUploadCleanupJob(a.store, a.logger, interval)
	j.Start()
	return j
}

func (a *App) Close() error {
	if a.db != nil {
		a.db.Close()
	}
	return nil
}
