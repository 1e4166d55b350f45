package eventlog

import (
	"context"
	"testing"
)

func TestEventTypeConstants(t *testing.T) {
	expectedEvents := map[EventType]string{
		EventCallStarted:      "call_started",
		EventSTTResult:        "stt_result",
		EventTurnFinalized:    "turn_finalized",
		EventStateTransition:  "state_transition",
		EventNoInput:          "no_input",
		EventIntentClassified: "intent_classified",
		EventSlotsOffered:     "slots_offered",
		EventBookingCreated:   "booking_created",
		EventBookingConflict:  "booking_conflict",
		EventUploadEmailSent:  "upload_email_sent",
		EventUploadReceived:   "upload_received",
		EventUploadAnalyzed:   "upload_analyzed",
		EventUploadReset:      "upload_reset",
		EventCallHangup:       "call_hangup",
		EventCallEnded:        "call_ended",
	}

	for eventType, expectedValue := range expectedEvents {
		if string(eventType) != expectedValue {
			t.Errorf("EventType %q = %q, want %q", expectedValue, string(eventType), expectedValue)
		}
	}
}

func TestLoggerNew(t *testing.T) {
	logger := New(nil)
	if logger == nil {
		t.Error("New(nil) should return a non-nil logger")
	}
}

func TestLogWithNilDB(t *testing.T) {
	logger := New(nil)
	if err := logger.Log(context.Background(), "CA123", EventCallStarted, nil); err != nil {
		t.Errorf("Log with nil DB returned error: %v", err)
	}
	// LogAsync must not panic either.
	logger.LogAsync("CA123", EventCallEnded, map[string]any{"reason": "test"})
}

func TestLogSkipsEmptyCallID(t *testing.T) {
	logger := New(nil)
	if err := logger.Log(context.Background(), "", EventCallStarted, nil); err != nil {
		t.Errorf("Log with empty call ID returned error: %v", err)
	}
}
