package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rgaros/fixline/internal/eventlog"
	"github.com/rgaros/fixline/internal/stt"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Recognizer sessions are rotated before the provider's per-stream limit.
const sttSessionLimit = 240 * time.Second

// Twilio Media Stream message types
type twilioMessage struct {
	Event          string       `json:"event"`
	SequenceNumber string       `json:"sequenceNumber,omitempty"`
	Media          *twilioMedia `json:"media,omitempty"`
	Start          *streamStart `json:"start,omitempty"`
	StreamSid      string       `json:"streamSid,omitempty"`
}

type twilioMedia struct {
	Track     string `json:"track"`
	Chunk     string `json:"chunk"`
	Timestamp string `json:"timestamp"`
	Payload   string `json:"payload"` // Base64 μ-law audio
}

type streamStart struct {
	StreamSid    string            `json:"streamSid"`
	AccountSid   string            `json:"accountSid"`
	CallSid      string            `json:"callSid"`
	Tracks       []string          `json:"tracks"`
	CustomParams map[string]string `json:"customParameters"`
	MediaFormat  struct {
		Encoding   string `json:"encoding"`
		SampleRate int    `json:"sampleRate"`
		Channels   int    `json:"channels"`
	} `json:"mediaFormat"`
}

// handleMediaWS receives the forked call audio from Twilio, streams it to
// Deepgram, and publishes finalized utterances to the transcript arbiter.
// The arbiter makes them available as a second opinion when the gather
// webhook's own transcript is empty or untrusted.
func (r *Router) handleMediaWS(w http.ResponseWriter, req *http.Request) {
	if !r.registry.Add() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	defer r.registry.Done()

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Printf("media: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()

	var (
		callSid    string
		dg         stt.Client
		dgStarted  time.Time
		pumpCancel context.CancelFunc
		connectSTT func() error
	)
	defer func() {
		if dg != nil {
			_ = dg.Close()
		}
	}()

	connectSTT = func() error {
		cfg := stt.TwilioConfig(r.cfg.DeepgramAPIKey)
		if r.cfg.STTEndpointingMs > 0 {
			cfg.Endpointing = r.cfg.STTEndpointingMs
		}
		if r.cfg.STTUtteranceEndMs > 0 {
			cfg.UtteranceEndMs = r.cfg.STTUtteranceEndMs
		}
		client, err := stt.NewDeepgramClient(ctx, cfg)
		if err != nil {
			return err
		}
		dg = client
		dgStarted = time.Now()

		var pumpCtx context.Context
		pumpCtx, pumpCancel = context.WithCancel(ctx)
		go r.pumpTranscripts(pumpCtx, callSid, dg)
		return nil
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if callSid != "" && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				r.logger.Printf("media: call %s read error: %v", callSid, err)
			}
			return
		}

		var m twilioMessage
		if err := json.Unmarshal(msg, &m); err != nil {
			r.logger.Printf("media: bad message: %v", err)
			continue
		}

		switch m.Event {
		case "start":
			if m.Start == nil {
				continue
			}
			callSid = m.Start.CallSid
			if callSid == "" {
				callSid = m.Start.CustomParams["callSid"]
			}

			if err := connectSTT(); err != nil {
				r.logger.Printf("media: call %s deepgram connect failed: %v", callSid, err)
				captureError(req, err, "deepgram connect")
				return
			}

		case "media":
			if dg == nil || m.Media == nil || m.Media.Track == "outbound" {
				continue
			}

			// Deepgram closes long-lived streams; rotate the session
			// before that happens so recognition never drops mid-call.
			if time.Since(dgStarted) > sttSessionLimit {
				pumpCancel()
				_ = dg.Close()
				if err := connectSTT(); err != nil {
					r.logger.Printf("media: call %s deepgram reconnect failed: %v", callSid, err)
					captureError(req, err, "deepgram reconnect")
					return
				}
				r.logger.Printf("media: call %s rotated stt session", callSid)
			}

			audio, err := base64.StdEncoding.DecodeString(m.Media.Payload)
			if err != nil {
				continue
			}
			if err := dg.StreamAudio(ctx, audio); err != nil {
				r.logger.Printf("media: call %s stream error: %v", callSid, err)
				return
			}

		case "stop":
			return
		}
	}
}

// pumpTranscripts collects Deepgram segments into utterances and publishes
// each finished utterance to the arbiter.
func (r *Router) pumpTranscripts(ctx context.Context, callSid string, dg stt.Client) {
	var segments []string

	for {
		select {
		case <-ctx.Done():
			return

		case res, ok := <-dg.Results():
			if !ok {
				return
			}
			if res.SegmentFinal && res.Text != "" {
				segments = append(segments, res.Text)
			}
			if res.SpeechFinal && len(segments) > 0 {
				utterance := strings.Join(segments, " ")
				segments = segments[:0]
				r.arbiter.PublishFinal(callSid, utterance)
				r.eventLog.LogAsync(callSid, eventlog.EventSTTResult, map[string]any{
					"text": utterance, "confidence": res.Confidence, "source": "stream",
				})
			}

		case err, ok := <-dg.Errors():
			if !ok {
				return
			}
			r.logger.Printf("media: call %s deepgram error: %v", callSid, err)
		}
	}
}
