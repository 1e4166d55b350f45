package speech

import (
	"testing"
	"time"
)

func newTestArbiter(now *time.Time) *Arbiter {
	a := NewArbiter(nil, 0.5)
	a.now = func() time.Time { return *now }
	return a
}

func TestArbiterSyncWinsAboveThreshold(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a := newTestArbiter(&now)
	a.PublishFinal("call-1", "streaming text")

	got := a.Resolve("call-1", "sync text", 0.9, false, now)
	if got != "sync text" {
		t.Fatalf("got %q, want sync text", got)
	}
	// The streaming slot is cleared once sync wins.
	if got := a.Resolve("call-1", "", 0, false, now); got != "" {
		t.Fatalf("slot not cleared, got %q", got)
	}
}

func TestArbiterLowConfidenceGating(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a := newTestArbiter(&now)

	// Gated out with nothing streaming: treated as silence.
	if got := a.Resolve("call-1", "mumble", 0.2, false, now); got != "" {
		t.Fatalf("low-confidence sync leaked through: %q", got)
	}

	// Exempt steps accept low confidence.
	if got := a.Resolve("call-1", "yes", 0.2, true, now); got != "yes" {
		t.Fatalf("exempt low-confidence sync rejected: %q", got)
	}
}

func TestArbiterAsyncFallback(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a := newTestArbiter(&now)
	turnStart := now.Add(-2 * time.Second)

	a.PublishFinal("call-1", "my washer is broken")
	if got := a.Resolve("call-1", "", 0, false, turnStart); got != "my washer is broken" {
		t.Fatalf("got %q", got)
	}
	// Consumed: a second resolve finds nothing.
	if got := a.Resolve("call-1", "", 0, false, turnStart); got != "" {
		t.Fatalf("slot re-consumed: %q", got)
	}
}

func TestArbiterStaleAsyncDiscarded(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a := newTestArbiter(&now)

	a.PublishFinal("call-1", "old answer")
	turnStart := now.Add(time.Second)

	if got := a.Resolve("call-1", "", 0, false, turnStart); got != "" {
		t.Fatalf("stale final leaked: %q", got)
	}
	// Discarded, not retained for the next turn.
	if got := a.Resolve("call-1", "", 0, false, turnStart); got != "" {
		t.Fatalf("stale final retained: %q", got)
	}
}

func TestArbiterPerCallIsolation(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a := newTestArbiter(&now)
	turnStart := now.Add(-time.Second)

	a.PublishFinal("call-1", "one")
	a.PublishFinal("call-2", "two")

	if got := a.Resolve("call-2", "", 0, false, turnStart); got != "two" {
		t.Fatalf("got %q", got)
	}
	if got := a.Resolve("call-1", "", 0, false, turnStart); got != "one" {
		t.Fatalf("got %q", got)
	}
}

func TestArbiterForget(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a := newTestArbiter(&now)

	a.PublishFinal("call-1", "leftover")
	a.Forget("call-1")
	if got := a.Resolve("call-1", "", 0, false, now.Add(-time.Minute)); got != "" {
		t.Fatalf("forgotten final resolved: %q", got)
	}
}
