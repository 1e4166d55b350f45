package httpapi

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/rgaros/fixline/internal/dialog"
	"github.com/rgaros/fixline/internal/eventlog"
	"github.com/rgaros/fixline/internal/session"
	"github.com/rgaros/fixline/internal/speech"
	"github.com/rgaros/fixline/internal/store"
	"github.com/rgaros/fixline/internal/vision"
)

type RouterConfig struct {
	PublicBaseURL string

	// Twilio credentials
	TwilioAuthToken  string
	TwilioAccountSID string

	// Streaming STT
	DeepgramAPIKey    string
	STTEndpointingMs  int // Deepgram endpointing in ms (silence threshold)
	STTUtteranceEndMs int // Hard timeout after last speech, regardless of noise

	// Uploaded images larger than this are rejected.
	MaxUploadBytes int64
}

type Router struct {
	cfg      RouterConfig
	logger   *log.Logger
	store    *store.Store
	eventLog *eventlog.Logger
	sessions *session.Store
	machine  *dialog.Machine
	arbiter  *speech.Arbiter
	vision   vision.Analyzer
	registry *CallRegistry
	mux      *http.ServeMux
}

// RouterDeps are the call-flow collaborators the router dispatches into.
type RouterDeps struct {
	Store    *store.Store
	EventLog *eventlog.Logger
	Sessions *session.Store
	Machine  *dialog.Machine
	Arbiter  *speech.Arbiter
	Vision   vision.Analyzer
	Registry *CallRegistry
}

func NewRouter(cfg RouterConfig, logger *log.Logger, deps RouterDeps) http.Handler {
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	r := &Router{
		cfg:      cfg,
		logger:   logger,
		store:    deps.Store,
		eventLog: deps.EventLog,
		sessions: deps.Sessions,
		machine:  deps.Machine,
		arbiter:  deps.Arbiter,
		vision:   deps.Vision,
		registry: deps.Registry,
		mux:      http.NewServeMux(),
	}

	r.routes()
	return withSentryRecovery(withCORS(r.mux))
}

func (r *Router) routes() {
	// Health checks
	r.mux.HandleFunc("GET /healthz", r.handleHealthz)
	r.mux.HandleFunc("GET /readyz", r.handleReadyz)

	// Twilio webhooks (no auth - signature verified)
	r.mux.HandleFunc("POST /twilio/voice", r.handleVoiceInbound)
	r.mux.HandleFunc("POST /twilio/voice/continue", r.handleVoiceContinue)
	r.mux.HandleFunc("POST /twilio/status", r.handleTwilioStatus)
	r.mux.HandleFunc("GET /twilio/media", r.handleMediaWS)

	// Image upload pages (token is the only credential)
	r.mux.HandleFunc("GET /upload/{token}", r.handleUploadPage)
	r.mux.HandleFunc("POST /upload/{token}", r.handleUploadSubmit)
}

func (r *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz fails readiness once draining starts so the load balancer
// routes new calls elsewhere while in-flight calls finish.
func (r *Router) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if r.registry.IsDraining() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("draining"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
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

func nowUTC() time.Time { return time.Now().UTC() }

// captureError sends an error to Sentry with request context
func captureError(req *http.Request, err error, msg string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(req)
		scope.SetExtra("message", msg)
		sentry.CaptureException(err)
	})
}

func wsURLFromPublicBase(publicBase string) string {
	// http://x -> ws://x
	// https://x -> wss://x
	if strings.HasPrefix(publicBase, "https://") {
		return "wss://" + strings.TrimPrefix(publicBase, "https://")
	}
	if strings.HasPrefix(publicBase, "http://") {
		return "ws://" + strings.TrimPrefix(publicBase, "http://")
	}
	// assume already host[:port]
	return "wss://" + publicBase
}
