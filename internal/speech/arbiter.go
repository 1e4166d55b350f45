package speech

import (
	"log"
	"sync"
	"time"
)

// Arbiter reconciles the two transcript sources for a call: the synchronous
// result carried on each webhook, and the streaming recognizer's finals that
// arrive out of band. The streaming slot is only trusted when the webhook
// gave us nothing usable and the final landed after the current turn began;
// anything older belongs to a previous turn and must not leak forward.
type Arbiter struct {
	mu    sync.Mutex
	now   func() time.Time
	slots map[string]asyncFinal
	log   *log.Logger

	// Sync results at or above this are taken verbatim.
	ConfidenceThreshold float64
}

type asyncFinal struct {
	text      string
	arrivedAt time.Time
}

func NewArbiter(logger *log.Logger, threshold float64) *Arbiter {
	return &Arbiter{
		now:                 time.Now,
		slots:               make(map[string]asyncFinal),
		log:                 logger,
		ConfidenceThreshold: threshold,
	}
}

// PublishFinal stores a streaming final for the call, stamping it with the
// arrival time. A later final replaces an earlier unconsumed one.
func (a *Arbiter) PublishFinal(callID, text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.slots[callID] = asyncFinal{text: text, arrivedAt: a.now()}
}

// Resolve picks the transcript for the current turn.
//
// The sync text wins when it is non-empty and either meets the confidence
// threshold or the turn allows low-confidence input (short constrained
// answers like yes/no, where the recognizer's scoring runs low). Otherwise
// the streaming slot is consulted: consumed and returned only if it arrived
// at or after turnStart, discarded as stale if not. A gated-out sync text is
// treated as empty, never returned.
func (a *Arbiter) Resolve(callID, syncText string, syncConfidence float64, allowLowConfidence bool, turnStart time.Time) string {
	if syncText != "" && (syncConfidence >= a.ConfidenceThreshold || allowLowConfidence) {
		a.drop(callID)
		return syncText
	}

	a.mu.Lock()
	final, ok := a.slots[callID]
	if ok {
		delete(a.slots, callID)
	}
	a.mu.Unlock()

	if !ok {
		return ""
	}
	if final.arrivedAt.Before(turnStart) {
		if a.log != nil {
			a.log.Printf("call %s: discarding stale streaming final (arrived %s before turn start)", callID, turnStart.Sub(final.arrivedAt))
		}
		return ""
	}
	return final.text
}

// Forget clears any pending final for the call. Called when a call ends.
func (a *Arbiter) Forget(callID string) {
	a.drop(callID)
}

func (a *Arbiter) drop(callID string) {
	a.mu.Lock()
	delete(a.slots, callID)
	a.mu.Unlock()
}
