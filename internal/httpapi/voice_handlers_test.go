package httpapi

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rgaros/fixline/internal/dialog"
	"github.com/rgaros/fixline/internal/eventlog"
	"github.com/rgaros/fixline/internal/llm"
	"github.com/rgaros/fixline/internal/session"
	"github.com/rgaros/fixline/internal/speech"
	"github.com/rgaros/fixline/internal/store"
)

type stubSlots struct{}

func (stubSlots) FindAvailableSlots(context.Context, string, speech.Appliance, speech.TimePreference, int) ([]store.AvailableSlot, error) {
	return []store.AvailableSlot{
		{SlotID: 1, TechnicianID: 1, TechnicianName: "Alex Martinez",
			Start: time.Now().Add(24 * time.Hour), End: time.Now().Add(27 * time.Hour)},
	}, nil
}

type stubBooker struct{}

func (stubBooker) BookAppointment(context.Context, store.BookingRequest) (*store.Appointment, error) {
	return &store.Appointment{ID: 1, TechnicianName: "Alex Martinez", Start: time.Now().Add(24 * time.Hour)}, nil
}

type stubUploads struct{}

func (stubUploads) CreateUploadToken(_ context.Context, callID, email string, _ speech.Appliance, _ string, _ time.Duration) (*store.UploadToken, error) {
	return &store.UploadToken{Token: "tok", CallID: callID, Email: email}, nil
}
func (stubUploads) UploadStatusByCall(context.Context, string) (*store.UploadStatus, error) {
	return nil, nil
}
func (stubUploads) ResetUploadForCall(context.Context, string) (string, error) { return "tok", nil }

type stubMailer struct{}

func (stubMailer) SendUploadLink(context.Context, string, string, speech.Appliance) error { return nil }

func newTestRouter(t *testing.T) (http.Handler, *session.Store, *speech.Arbiter) {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	arbiter := speech.NewArbiter(logger, 0.5)
	sessions := session.NewStore(time.Hour)
	machine := dialog.NewMachine(dialog.Config{
		LLM:     llm.NewKeywordClient(),
		Slots:   stubSlots{},
		Booker:  stubBooker{},
		Uploads: stubUploads{},
		Mailer:  stubMailer{},
		BaseURL: "https://fixline.example.com",
	})
	h := NewRouter(RouterConfig{PublicBaseURL: "https://fixline.example.com"}, logger, RouterDeps{
		EventLog: eventlog.New(nil),
		Sessions: sessions,
		Machine:  machine,
		Arbiter:  arbiter,
		Registry: NewCallRegistry(),
	})
	return h, sessions, arbiter
}

func postForm(t *testing.T, h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestVoiceContinueAdvancesDialogue(t *testing.T) {
	h, sessions, _ := newTestRouter(t)

	sess, _ := sessions.GetOrCreate("CA1", "+15550001111", time.Now())
	sess.Step = session.StepUnderstandNeed
	sessions.Save(sess)

	rec := postForm(t, h, "/twilio/voice/continue", url.Values{
		"CallSid":      {"CA1"},
		"SpeechResult": {"I want to schedule a technician for my washer"},
		"Confidence":   {"0.92"},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(rec.Header().Get("Content-Type"), "text/xml") {
		t.Fatalf("content type = %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(body, "<Gather") || !strings.Contains(body, "ZIP code") {
		t.Fatalf("unexpected TwiML: %s", body)
	}

	sess, _ = sessions.Get("CA1")
	if sess.Step != session.StepCollectZIP {
		t.Fatalf("step = %q, want collect_zip", sess.Step)
	}
}

func TestVoiceContinueSilentTurnReprompts(t *testing.T) {
	h, sessions, _ := newTestRouter(t)

	sess, _ := sessions.GetOrCreate("CA2", "+15550001111", time.Now())
	sess.Step = session.StepCollectZIP
	sessions.Save(sess)

	rec := postForm(t, h, "/twilio/voice/continue", url.Values{"CallSid": {"CA2"}})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "still there") {
		t.Fatalf("expected no-input reprompt, got: %s", rec.Body.String())
	}
	sess, _ = sessions.Get("CA2")
	if sess.NoInput != 1 {
		t.Fatalf("no-input counter = %d", sess.NoInput)
	}
}

func TestVoiceContinueUsesStreamedFinalWhenGatherEmpty(t *testing.T) {
	h, sessions, arbiter := newTestRouter(t)

	sess, _ := sessions.GetOrCreate("CA3", "+15550001111", time.Now())
	sess.Step = session.StepCollectZIP
	sess.TurnStartedAt = time.Now().Add(-5 * time.Second)
	sessions.Save(sess)

	arbiter.PublishFinal("CA3", "60601")

	rec := postForm(t, h, "/twilio/voice/continue", url.Values{"CallSid": {"CA3"}})

	if !strings.Contains(rec.Body.String(), "6 0 6 0 1") {
		t.Fatalf("expected ZIP confirmation from streamed final, got: %s", rec.Body.String())
	}
	sess, _ = sessions.Get("CA3")
	if sess.Step != session.StepConfirmZIP {
		t.Fatalf("step = %q", sess.Step)
	}
}

func TestVoiceContinueLowConfidenceGated(t *testing.T) {
	h, sessions, _ := newTestRouter(t)

	sess, _ := sessions.GetOrCreate("CA4", "+15550001111", time.Now())
	sess.Step = session.StepUnderstandNeed
	sessions.Save(sess)

	rec := postForm(t, h, "/twilio/voice/continue", url.Values{
		"CallSid":      {"CA4"},
		"SpeechResult": {"mumble mumble washer"},
		"Confidence":   {"0.10"},
	})

	// Gated transcript is treated as silence.
	if !strings.Contains(rec.Body.String(), "still there") {
		t.Fatalf("expected reprompt, got: %s", rec.Body.String())
	}
	sess, _ = sessions.Get("CA4")
	if sess.Step != session.StepUnderstandNeed {
		t.Fatalf("step = %q, want unchanged", sess.Step)
	}
}

func TestVoiceContinueMissingCallSid(t *testing.T) {
	h, _, _ := newTestRouter(t)
	rec := postForm(t, h, "/twilio/voice/continue", url.Values{"SpeechResult": {"hello"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestTurnTwiMLRendering(t *testing.T) {
	t.Run("gather carries redirect fallback", func(t *testing.T) {
		resp := turnTwiML(dialog.Greeting(), "/twilio/voice/continue", nil)
		if resp.Gather == nil {
			t.Fatal("expected gather")
		}
		if resp.Gather.Input != "speech" {
			t.Fatalf("input = %q", resp.Gather.Input)
		}
		if resp.Redirect == nil || resp.Redirect.URL != "/twilio/voice/continue" {
			t.Fatalf("redirect = %+v", resp.Redirect)
		}
		if resp.Hangup != nil {
			t.Fatal("gather turn must not hang up")
		}
	})

	t.Run("hangup has no gather", func(t *testing.T) {
		resp := turnTwiML(dialog.Turn{Say: "Goodbye!", Hangup: true}, "/x", nil)
		if resp.Hangup == nil || resp.Gather != nil || resp.Redirect != nil {
			t.Fatalf("unexpected rendering: %+v", resp)
		}
		if resp.Say == nil || resp.Say.Text != "Goodbye!" {
			t.Fatalf("say = %+v", resp.Say)
		}
	})
}

func TestWSURLFromPublicBase(t *testing.T) {
	cases := []struct{ in, want string }{
		{"https://fixline.example.com", "wss://fixline.example.com"},
		{"http://localhost:8080", "ws://localhost:8080"},
		{"fixline.example.com", "wss://fixline.example.com"},
	}
	for _, tc := range cases {
		if got := wsURLFromPublicBase(tc.in); got != tc.want {
			t.Errorf("wsURLFromPublicBase(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSplitTipLines(t *testing.T) {
	tips := "1. Clean the filter\n- Check the hose\n\n  * Run a rinse cycle  "
	got := splitTipLines(tips)
	want := []string{"Clean the filter", "Check the hose", "Run a rinse cycle"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestHealthz(t *testing.T) {
	h, _, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}
