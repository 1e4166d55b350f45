package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rgaros/fixline/internal/costs"
	"github.com/rgaros/fixline/internal/dialog"
	"github.com/rgaros/fixline/internal/eventlog"
	"github.com/rgaros/fixline/internal/store"
)

const continuePath = "/twilio/voice/continue"

// Spoken when a turn panics. The caller hears an apology instead of dead
// air or a Twilio error tone.
const apologyText = "I'm sorry, something went wrong on our end. Please call back in a few minutes. Goodbye!"

// handleVoiceInbound answers a new call: record it, fork the audio to the
// media websocket for streaming recognition, and play the greeting.
func (r *Router) handleVoiceInbound(w http.ResponseWriter, req *http.Request) {
	defer r.recoverTurn(w, req)

	if err := req.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	callSid := req.FormValue("CallSid")
	from := req.FormValue("From")
	to := req.FormValue("To")
	if callSid == "" {
		http.Error(w, "missing CallSid", http.StatusBadRequest)
		return
	}

	// While shutting down, turn new calls away without answering so they
	// can retry against another instance.
	if r.registry.IsDraining() {
		writeTwiML(w, twimlResponse{Reject: &twimlReject{Reason: "busy"}})
		return
	}

	if err := r.store.UpsertCall(req.Context(), store.Call{
		ProviderCallID: callSid,
		FromNumber:     from,
		ToNumber:       to,
		Status:         "in_progress",
		StartedAt:      nowUTC(),
	}); err != nil {
		r.logger.Printf("voice: failed to record call %s: %v", callSid, err)
		captureError(req, err, "upsert call")
	}
	r.eventLog.LogAsync(callSid, eventlog.EventCallStarted, map[string]any{"from": from, "to": to})

	sess, _ := r.sessions.GetOrCreate(callSid, from, nowUTC())
	sess.TurnStartedAt = nowUTC()
	r.sessions.Save(sess)

	wsBase := wsURLFromPublicBase(r.cfg.PublicBaseURL)
	start := &twimlStart{
		Stream: twimlStream{
			URL:        strings.TrimRight(wsBase, "/") + "/twilio/media",
			Parameters: []twimlParameter{{Name: "callSid", Value: callSid}},
		},
	}

	writeTwiML(w, turnTwiML(dialog.Greeting(), continuePath, start))
}

// handleVoiceContinue processes one gather result. An absent SpeechResult
// means the gather timed out silently; the machine runs its no-input ladder.
func (r *Router) handleVoiceContinue(w http.ResponseWriter, req *http.Request) {
	defer r.recoverTurn(w, req)

	if err := req.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	callSid := req.FormValue("CallSid")
	if callSid == "" {
		http.Error(w, "missing CallSid", http.StatusBadRequest)
		return
	}

	speechResult := req.FormValue("SpeechResult")
	confidence, _ := strconv.ParseFloat(req.FormValue("Confidence"), 64)

	mu := r.sessions.Lock(callSid)
	mu.Lock()
	defer mu.Unlock()

	sess, existed := r.sessions.GetOrCreate(callSid, req.FormValue("From"), nowUTC())
	if !existed {
		// Session expired mid-call or the process restarted. The machine
		// starts over from the greeting step with whatever the caller says.
		r.logger.Printf("voice: rebuilt session for call %s", callSid)
	}

	r.eventLog.LogAsync(callSid, eventlog.EventSTTResult, map[string]any{
		"text": speechResult, "confidence": confidence, "source": "gather",
	})

	text := r.arbiter.Resolve(callSid, speechResult, confidence,
		dialog.AllowsLowConfidence(sess.Step), sess.TurnStartedAt)
	r.eventLog.LogAsync(callSid, eventlog.EventTurnFinalized, map[string]any{"text": text, "step": string(sess.Step)})

	turn := r.machine.HandleTurn(req.Context(), sess, text)

	sess.TurnStartedAt = nowUTC()
	r.sessions.Save(sess)

	if turn.Hangup {
		r.eventLog.LogAsync(callSid, eventlog.EventCallHangup, map[string]any{"step": string(sess.Step)})
		r.arbiter.Forget(callSid)
	}
	writeTwiML(w, turnTwiML(turn, continuePath, nil))
}

func (r *Router) handleTwilioStatus(w http.ResponseWriter, req *http.Request) {
	_ = req.ParseForm()
	callSid := req.FormValue("CallSid")
	status := req.FormValue("CallStatus") // queued/ringing/in-progress/completed/...

	if callSid != "" && status != "" {
		_ = r.store.UpdateCallStatus(req.Context(), callSid, status, nowUTC())
		if status == "completed" || status == "failed" || status == "busy" || status == "no-answer" || status == "canceled" {
			duration, _ := strconv.Atoi(req.FormValue("CallDuration"))
			estimate := costs.CalculateCallCosts(costs.CallMetrics{
				CallDurationSeconds: duration,
				STTDurationSeconds:  duration,
			})
			r.eventLog.LogAsync(callSid, eventlog.EventCallEnded, map[string]any{
				"status": status, "duration_s": duration, "est_cost_cents": estimate.TotalCostCents,
			})
			r.sessions.Delete(callSid)
			r.arbiter.Forget(callSid)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// recoverTurn is the outermost guard on the voice webhooks. Whatever
// panics, Twilio still receives valid TwiML so the caller hears an apology
// rather than silence.
func (r *Router) recoverTurn(w http.ResponseWriter, req *http.Request) {
	if rec := recover(); rec != nil {
		captureError(req, fmt.Errorf("voice turn panic: %v", rec), "voice turn")
		r.logger.Printf("voice: recovered panic: %v", rec)
		writeTwiML(w, twimlResponse{
			Say:    &twimlSay{Text: apologyText},
			Hangup: &twimlHangup{},
		})
	}
}
