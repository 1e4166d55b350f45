// Package dialog drives the phone conversation. Each inbound turn carries
// one caller utterance; the machine reads the call's session, applies the
// transition for the current step and returns exactly one outbound directive:
// either a prompt that gathers more speech, or a final message and hangup.
// The machine performs no telephony I/O itself; collaborators do the model
// calls, database work and email sends it requests.
package dialog

import (
	"context"
	"time"

	"github.com/rgaros/fixline/internal/eventlog"
	"github.com/rgaros/fixline/internal/llm"
	"github.com/rgaros/fixline/internal/mailer"
	"github.com/rgaros/fixline/internal/session"
	"github.com/rgaros/fixline/internal/speech"
	"github.com/rgaros/fixline/internal/store"
)

// Turn is the machine's single outbound directive for one exchange. Exactly
// one of Gather or Hangup is set; Say is the text spoken either way.
type Turn struct {
	Say           string
	Gather        bool
	GatherTimeout time.Duration
	Hangup        bool
}

const (
	gatherTimeout      = 5 * time.Second
	gatherTimeoutShort = 3 * time.Second

	maxNoInput       = 2
	maxUnderstand    = 2
	maxAppliance     = 2
	maxZIPAttempts   = 3
	maxEmailAttempts = 2
	maxEmailConfirm  = 2
	maxUploadPolls   = 10

	slotOfferLimit = 3
	uploadTokenTTL = 24 * time.Hour
)

func gather(prompt string) Turn {
	return Turn{Say: prompt, Gather: true, GatherTimeout: gatherTimeout}
}

func gatherShort(prompt string) Turn {
	return Turn{Say: prompt, Gather: true, GatherTimeout: gatherTimeoutShort}
}

func hangup(message string) Turn {
	return Turn{Say: message, Hangup: true}
}

// SlotFinder queries technician availability.
type SlotFinder interface {
	FindAvailableSlots(ctx context.Context, zip string, appliance speech.Appliance, pref speech.TimePreference, limit int) ([]store.AvailableSlot, error)
}

// Booker reserves a slot atomically.
type Booker interface {
	BookAppointment(ctx context.Context, req store.BookingRequest) (*store.Appointment, error)
}

// UploadStore manages image-upload tokens for a call.
type UploadStore interface {
	CreateUploadToken(ctx context.Context, callID, email string, appliance speech.Appliance, symptomSummary string, ttl time.Duration) (*store.UploadToken, error)
	UploadStatusByCall(ctx context.Context, callID string) (*store.UploadStatus, error)
	ResetUploadForCall(ctx context.Context, callID string) (string, error)
}

// Notifier receives operational events worth surfacing to a human channel.
// May be nil.
type Notifier interface {
	NotifyBooking(ctx context.Context, technicianName, appliance, zipCode string, start time.Time)
	NotifyNoAvailability(ctx context.Context, zipCode, appliance string)
}

// Machine holds the collaborators and the step dispatch table.
type Machine struct {
	llm      llm.Client
	slots    SlotFinder
	booker   Booker
	uploads  UploadStore
	mail     mailer.Mailer
	events   *eventlog.Logger
	notify   Notifier
	baseURL  string
	handlers map[session.Step]handlerFunc
}

type handlerFunc func(ctx context.Context, sess *session.Session, input string) Turn

// Config wires a Machine.
type Config struct {
	LLM     llm.Client
	Slots   SlotFinder
	Booker  Booker
	Uploads UploadStore
	Mailer  mailer.Mailer
	Events  *eventlog.Logger
	Notify  Notifier
	BaseURL string
}

func NewMachine(cfg Config) *Machine {
	m := &Machine{
		llm:     cfg.LLM,
		slots:   cfg.Slots,
		booker:  cfg.Booker,
		uploads: cfg.Uploads,
		mail:    cfg.Mailer,
		events:  cfg.Events,
		notify:  cfg.Notify,
		baseURL: cfg.BaseURL,
	}
	m.handlers = map[session.Step]handlerFunc{
		session.StepGreetAskName:           m.handleGreetAskName,
		session.StepUnderstandNeed:         m.handleUnderstandNeed,
		session.StepAskSymptoms:            m.handleAskSymptoms,
		session.StepAskApplianceScheduling: m.handleAskApplianceScheduling,
		session.StepOfferTroubleshoot:      m.handleOfferTroubleshoot,
		session.StepTroubleshootAll:        m.handleTroubleshootAll,
		session.StepConfirmResolution:      m.handleConfirmResolution,
		session.StepOfferImageUpload:       m.handleOfferImageUpload,
		session.StepCollectEmail:           m.handleCollectEmail,
		session.StepConfirmEmail:           m.handleConfirmEmail,
		session.StepWaitingForUpload:       m.handleWaitingForUpload,
		session.StepSpeakAnalysis:          m.handleSpeakAnalysis,
		session.StepAfterAnalysis:          m.handleAfterAnalysis,
		session.StepCollectZIP:             m.handleCollectZIP,
		session.StepConfirmZIP:             m.handleConfirmZIP,
		session.StepCollectTimePref:        m.handleCollectTimePref,
		session.StepChooseSlot:             m.handleChooseSlot,
		session.StepDone:                   m.handleDone,
	}
	return m
}

// Greeting is the prompt for the first turn of a call, before any caller
// speech has arrived.
func Greeting() Turn {
	return gather(promptGreeting)
}

// AllowsLowConfidence reports whether the step expects short constrained
// input (digits, yes/no, an ordinal) for which recognizers systematically
// score low confidence despite being correct.
func AllowsLowConfidence(step session.Step) bool {
	switch step {
	case session.StepCollectZIP, session.StepConfirmZIP, session.StepCollectTimePref,
		session.StepChooseSlot, session.StepConfirmEmail, session.StepConfirmResolution,
		session.StepOfferImageUpload, session.StepAfterAnalysis, session.StepWaitingForUpload,
		session.StepOfferTroubleshoot:
		return true
	}
	return false
}

// HandleTurn processes one caller utterance and returns the outbound
// directive. The session is mutated in place; the caller persists it.
func (m *Machine) HandleTurn(ctx context.Context, sess *session.Session, input string) Turn {
	if input == "" {
		return m.handleNoInput(ctx, sess)
	}
	sess.NoInput = 0

	from := sess.Step
	turn := m.handlers[sess.Step](ctx, sess, input)
	if sess.Step != from {
		m.logEvent(sess.CallID, eventlog.EventStateTransition, map[string]any{
			"from": string(from), "to": string(sess.Step),
		})
	}
	return turn
}

// handleNoInput applies the silence ladder: two re-prompts with a shorter
// timeout, then a forced move to ZIP collection so the call still heads
// toward a bookable outcome. While waiting for an upload, silence usually
// means the caller is busy uploading, so the status poll runs first.
func (m *Machine) handleNoInput(ctx context.Context, sess *session.Session) Turn {
	if sess.Step == session.StepWaitingForUpload {
		if status, err := m.uploads.UploadStatusByCall(ctx, sess.CallID); err == nil && status != nil && status.AnalysisReady {
			sess.Step = session.StepSpeakAnalysis
			return m.speakAnalysis(ctx, sess, status)
		}
	}

	sess.NoInput++
	m.logEvent(sess.CallID, eventlog.EventNoInput, map[string]any{
		"step": string(sess.Step), "count": sess.NoInput,
	})
	if sess.NoInput <= maxNoInput {
		return gatherShort(promptNoInput + " " + rePrompt(sess.Step))
	}

	sess.NoInput = 0
	if sess.Step == session.StepDone {
		return hangup(promptGoodbyeUnheard)
	}
	sess.Step = session.StepCollectZIP
	return gather(promptSilenceToScheduling)
}

func (m *Machine) handleDone(_ context.Context, _ *session.Session, _ string) Turn {
	return hangup(promptGoodbye)
}

func (m *Machine) logEvent(callID string, event eventlog.EventType, data map[string]any) {
	if m.events != nil {
		m.events.LogAsync(callID, event, data)
	}
}

func (m *Machine) uploadURL(token string) string {
	return m.baseURL + "/upload/" + token
}
