package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rgaros/fixline/internal/eventlog"
	"github.com/rgaros/fixline/internal/llm"
	"github.com/rgaros/fixline/internal/scheduling"
	"github.com/rgaros/fixline/internal/session"
	"github.com/rgaros/fixline/internal/speech"
	"github.com/rgaros/fixline/internal/store"
)

func (m *Machine) handleGreetAskName(_ context.Context, sess *session.Session, input string) Turn {
	if name, ok := speech.ExtractName(input); ok {
		sess.CustomerName = name
	}
	sess.Step = session.StepUnderstandNeed

	address := sess.CustomerName
	if address == "" {
		address = "there"
	}
	return gather(fmt.Sprintf(promptUnderstandNeedFmt, address))
}

// handleUnderstandNeed branches on the intent classifier's reading of the
// caller's opening description. Explicit scheduling requests short-circuit
// diagnosis even when symptoms were also given; stated intent outranks
// inferred need.
func (m *Machine) handleUnderstandNeed(ctx context.Context, sess *session.Session, input string) Turn {
	intent := m.llm.ClassifyIntent(ctx, input)
	m.logEvent(sess.CallID, eventlog.EventIntentClassified, map[string]any{
		"appliance":        string(intent.Appliance),
		"wants_scheduling": intent.WantsScheduling,
		"full_description": intent.HasFullDescription,
	})

	switch {
	case intent.WantsScheduling && intent.Appliance != speech.ApplianceNone:
		sess.Appliance = intent.Appliance
		if intent.Symptoms != "" {
			sess.Symptoms = intent.Symptoms
			extracted := m.llm.ExtractSymptoms(ctx, intent.Symptoms)
			sess.SymptomSummary = extracted.Summary
			sess.ErrorCodes = extracted.ErrorCodes
			sess.Urgent = extracted.Urgent
		}
		sess.Step = session.StepCollectZIP
		return gather(promptCollectZIP)

	case intent.Appliance != speech.ApplianceNone && intent.HasFullDescription:
		sess.Appliance = intent.Appliance
		sess.Symptoms = input
		extracted := m.llm.ExtractSymptoms(ctx, input)
		sess.SymptomSummary = extracted.Summary
		sess.ErrorCodes = extracted.ErrorCodes
		sess.Urgent = extracted.Urgent
		sess.Step = session.StepOfferTroubleshoot
		return gather(fmt.Sprintf(promptOfferTroubleshootFmt, sess.SymptomSummary))

	case intent.Appliance != speech.ApplianceNone:
		sess.Appliance = intent.Appliance
		sess.Step = session.StepAskSymptoms
		return gather(fmt.Sprintf(promptAskSymptomsFmt, sess.Appliance, sess.Appliance))

	case intent.WantsScheduling:
		sess.Step = session.StepAskApplianceScheduling
		return gather(promptAskAppliance)
	}

	sess.Understand++
	if sess.Understand <= maxUnderstand {
		return gather(promptUnderstandRetry)
	}
	sess.Step = session.StepAskApplianceScheduling
	return gather(promptAskAppliance)
}

func (m *Machine) handleAskSymptoms(ctx context.Context, sess *session.Session, input string) Turn {
	sess.Symptoms = input
	extracted := m.llm.ExtractSymptoms(ctx, input)
	sess.SymptomSummary = extracted.Summary
	sess.ErrorCodes = extracted.ErrorCodes
	sess.Urgent = extracted.Urgent

	sess.Step = session.StepOfferTroubleshoot
	return gather(fmt.Sprintf(promptOfferTroubleshootFmt, sess.SymptomSummary))
}

func (m *Machine) handleAskApplianceScheduling(ctx context.Context, sess *session.Session, input string) Turn {
	appliance := m.llm.ClassifyAppliance(ctx, input)
	if appliance != speech.ApplianceNone {
		sess.Appliance = appliance
		sess.ApplianceRetry = 0
		sess.Step = session.StepCollectZIP
		return gather(fmt.Sprintf(promptApplianceHeardFmt, appliance) + " " + promptCollectZIP)
	}

	sess.ApplianceRetry++
	if sess.ApplianceRetry <= maxAppliance {
		return gather(promptApplianceRetry)
	}
	// Still unclassified after retries: continue to scheduling without an
	// appliance. The slot query drops the specialty filter in that case.
	sess.Step = session.StepCollectZIP
	return gather(promptApplianceGiveUp + " " + promptCollectZIP)
}

var wantsTroubleshootKeywords = []string{
	"troubleshoot", "try", "fix it myself", "walk me through", "steps", "diy",
}

func (m *Machine) handleOfferTroubleshoot(_ context.Context, sess *session.Session, input string) Turn {
	lower := strings.ToLower(input)

	wantsSchedule := containsAny(lower, scheduleKeywords)
	wantsTroubleshoot := containsAny(lower, wantsTroubleshootKeywords)

	if wantsSchedule && !wantsTroubleshoot {
		sess.Step = session.StepCollectZIP
		return gather(promptScheduleAgreed + " " + promptCollectZIP)
	}

	// Both or neither matched: bias toward self-service.
	steps := troubleshootingSteps(sess.Appliance)
	if len(steps) == 0 {
		sess.Step = session.StepOfferImageUpload
		return gather(promptNoStepsOfferUpload)
	}
	sess.Step = session.StepTroubleshootAll
	return gather(fmt.Sprintf(promptTroubleshootAllFmt, strings.Join(steps, ". ")))
}

// handleTroubleshootAll interprets the caller's report after trying the
// steps. Explicit scheduling and photo keywords route immediately; only
// then does the model-backed interpreter weigh in, and its own fallback is
// keyword-based again.
func (m *Machine) handleTroubleshootAll(ctx context.Context, sess *session.Session, input string) Turn {
	lower := strings.ToLower(input)

	if containsAny(lower, scheduleKeywords) {
		sess.Step = session.StepCollectZIP
		return gather(promptScheduleAgreed + " " + promptCollectZIP)
	}
	if containsAny(lower, photoKeywords) {
		sess.Step = session.StepCollectEmail
		return gather(promptCollectEmail)
	}

	switch m.llm.InterpretResolution(ctx, input) {
	case llm.ResolutionFixed:
		sess.Step = session.StepConfirmResolution
		return gather(promptConfirmResolution)
	case llm.ResolutionNotFixed:
		sess.Step = session.StepOfferImageUpload
		return gather(promptOfferImageUpload)
	}
	return gather(promptTroubleshootUnclear)
}

func (m *Machine) handleConfirmResolution(_ context.Context, sess *session.Session, input string) Turn {
	yn := speech.ClassifyYesNo(input)
	switch {
	case yn.IsYes:
		sess.Step = session.StepDone
		return hangup(promptResolvedGoodbye)
	case yn.IsNo:
		sess.Step = session.StepOfferImageUpload
		return gather(promptOfferImageUpload)
	}
	return gather(promptYesNoRetry + " " + promptConfirmResolution)
}

func (m *Machine) handleOfferImageUpload(_ context.Context, sess *session.Session, input string) Turn {
	lower := strings.ToLower(input)
	yn := speech.ClassifyYesNo(input)

	switch {
	case yn.IsYes || containsAny(lower, photoKeywords):
		sess.Step = session.StepCollectEmail
		return gather(promptCollectEmail)
	case yn.IsNo || containsAny(lower, scheduleKeywords):
		sess.Step = session.StepCollectZIP
		return gather(promptScheduleAgreed + " " + promptCollectZIP)
	}
	return gather(promptYesNoRetry + " " + promptOfferImageUpload)
}

func (m *Machine) handleCollectEmail(_ context.Context, sess *session.Session, input string) Turn {
	email, ok := speech.ExtractEmail(input)
	if !ok {
		sess.EmailConfirm++
		if sess.EmailConfirm <= maxEmailAttempts {
			return gather(promptEmailRetry)
		}
		sess.EmailConfirm = 0
		sess.Step = session.StepCollectZIP
		return gather(promptEmailGiveUp + " " + promptCollectZIP)
	}

	sess.PendingEmail = email
	sess.Step = session.StepConfirmEmail
	return gather(speech.EmailConfirmationPrompt(email))
}

// handleConfirmEmail commits the email only after an explicit yes; a yes
// also issues the upload token and sends the link. A non-yes/no answer
// re-prompts without consuming a retry.
func (m *Machine) handleConfirmEmail(ctx context.Context, sess *session.Session, input string) Turn {
	yn := speech.ClassifyYesNo(input)
	switch {
	case yn.IsYes:
		sess.ConfirmedEmail = sess.PendingEmail
		sess.PendingEmail = ""
		sess.EmailConfirm = 0
		return m.issueUploadToken(ctx, sess)

	case yn.IsNo:
		sess.PendingEmail = ""
		sess.EmailConfirm++
		if sess.EmailConfirm > maxEmailConfirm {
			sess.EmailConfirm = 0
			sess.Step = session.StepCollectZIP
			return gather(promptEmailGiveUp + " " + promptCollectZIP)
		}
		sess.Step = session.StepCollectEmail
		return gather(promptEmailReask)
	}
	return gather(promptYesNoRetry + " " + promptEmailConfirmShort)
}

func (m *Machine) issueUploadToken(ctx context.Context, sess *session.Session) Turn {
	tok, err := m.uploads.CreateUploadToken(ctx, sess.CallID, sess.ConfirmedEmail, sess.Appliance, sess.SymptomSummary, uploadTokenTTL)
	if err != nil {
		// Booking is still possible without the photo flow.
		sess.Step = session.StepCollectZIP
		return gather(promptUploadUnavailable + " " + promptCollectZIP)
	}
	sess.UploadToken = tok.Token

	if err := m.mail.SendUploadLink(ctx, sess.ConfirmedEmail, m.uploadURL(tok.Token), sess.Appliance); err == nil {
		sess.UploadTokenSent = true
		m.logEvent(sess.CallID, eventlog.EventUploadEmailSent, map[string]any{"email": sess.ConfirmedEmail})
	}

	sess.UploadPolls = 0
	sess.Step = session.StepWaitingForUpload
	return gather(promptUploadLinkSent)
}

var (
	resendKeywords   = []string{"resend", "send it again", "send again", "didn't get", "did not get", "never got", "new link"}
	moreTimeKeywords = []string{"more time", "give me a minute", "hold on", "wait", "still uploading", "not yet"}
	doneKeywords     = []string{"done", "uploaded", "sent it", "just sent", "finished"}
	skipKeywords     = []string{"skip", "never mind", "nevermind", "forget it", "just schedule", "schedule"}
)

// handleWaitingForUpload polls upload status before anything else: a ready
// analysis overrides whatever the caller said.
func (m *Machine) handleWaitingForUpload(ctx context.Context, sess *session.Session, input string) Turn {
	status, err := m.uploads.UploadStatusByCall(ctx, sess.CallID)
	if err == nil && status != nil && status.AnalysisReady {
		sess.Step = session.StepSpeakAnalysis
		return m.speakAnalysis(ctx, sess, status)
	}

	lower := strings.ToLower(input)
	switch {
	case containsAny(lower, resendKeywords):
		token, err := m.uploads.ResetUploadForCall(ctx, sess.CallID)
		if err == nil && token != "" {
			_ = m.mail.SendUploadLink(ctx, sess.ConfirmedEmail, m.uploadURL(token), sess.Appliance)
			m.logEvent(sess.CallID, eventlog.EventUploadReset, map[string]any{"reason": "resend"})
		}
		return gather(promptUploadResent)

	case containsAny(lower, moreTimeKeywords):
		sess.UploadPolls = 0
		return gather(promptUploadMoreTime)

	case containsAny(lower, skipKeywords):
		sess.Step = session.StepCollectZIP
		return gather(promptScheduleAgreed + " " + promptCollectZIP)

	case containsAny(lower, doneKeywords):
		return m.uploadNotReady(sess, promptUploadNotYetSeen)
	}
	return m.uploadNotReady(sess, promptUploadStillWaiting)
}

// uploadNotReady applies the capped poll counter shared by "I'm done" and
// unrecognized responses.
func (m *Machine) uploadNotReady(sess *session.Session, prompt string) Turn {
	sess.UploadPolls++
	if sess.UploadPolls > maxUploadPolls {
		sess.UploadPolls = 0
		sess.Step = session.StepCollectZIP
		return gather(promptUploadTimeout + " " + promptCollectZIP)
	}
	return gather(prompt)
}

// speakAnalysis reads the vision verdict exactly once. A photo that is not
// an appliance resets the token and asks for a re-upload instead of dead-
// ending the flow.
func (m *Machine) speakAnalysis(ctx context.Context, sess *session.Session, status *store.UploadStatus) Turn {
	if !status.IsApplianceImage {
		if token, err := m.uploads.ResetUploadForCall(ctx, sess.CallID); err == nil && token != "" {
			m.logEvent(sess.CallID, eventlog.EventUploadReset, map[string]any{"reason": "not_appliance"})
		}
		sess.AnalysisSpoken = false
		sess.Step = session.StepWaitingForUpload
		return gather(promptNotApplianceImage)
	}

	if sess.AnalysisSpoken {
		sess.Step = session.StepAfterAnalysis
		return gather(promptAfterAnalysis)
	}
	sess.AnalysisSpoken = true
	sess.Step = session.StepAfterAnalysis
	m.logEvent(sess.CallID, eventlog.EventUploadAnalyzed, nil)

	text := status.AnalysisSummary
	if status.Troubleshooting != "" {
		text += " Here's what you can try. " + strings.ReplaceAll(status.Troubleshooting, "\n", ". ")
	}
	return gather(fmt.Sprintf(promptAnalysisFmt, text) + " " + promptAfterAnalysis)
}

func (m *Machine) handleSpeakAnalysis(ctx context.Context, sess *session.Session, input string) Turn {
	if sess.AnalysisSpoken {
		return m.handleAfterAnalysis(ctx, sess, input)
	}
	status, err := m.uploads.UploadStatusByCall(ctx, sess.CallID)
	if err != nil || status == nil || !status.AnalysisReady {
		sess.Step = session.StepWaitingForUpload
		return gather(promptUploadStillWaiting)
	}
	return m.speakAnalysis(ctx, sess, status)
}

func (m *Machine) handleAfterAnalysis(ctx context.Context, sess *session.Session, input string) Turn {
	lower := strings.ToLower(input)
	if containsAny(lower, scheduleKeywords) {
		sess.Step = session.StepCollectZIP
		return gather(promptScheduleAgreed + " " + promptCollectZIP)
	}

	switch m.llm.InterpretResolution(ctx, input) {
	case llm.ResolutionFixed:
		sess.Step = session.StepDone
		return hangup(promptResolvedGoodbye)
	case llm.ResolutionNotFixed:
		sess.Step = session.StepCollectZIP
		return gather(promptStillBrokenSchedule + " " + promptCollectZIP)
	}
	return gather(promptAfterAnalysisRetry)
}

func (m *Machine) handleCollectZIP(_ context.Context, sess *session.Session, input string) Turn {
	zip, ok := speech.ExtractZIP(input)
	if !ok {
		sess.ZIPAttempts++
		if sess.ZIPAttempts >= maxZIPAttempts {
			sess.Step = session.StepDone
			return hangup(promptZIPGiveUp)
		}
		return gather(promptZIPRetry)
	}

	sess.ZIPCode = zip
	sess.Step = session.StepConfirmZIP
	return gather(fmt.Sprintf(promptConfirmZIPFmt, spellDigits(zip)))
}

func (m *Machine) handleConfirmZIP(_ context.Context, sess *session.Session, input string) Turn {
	yn := speech.ClassifyYesNo(input)
	switch {
	case yn.IsYes:
		sess.ZIPAttempts = 0
		sess.Step = session.StepCollectTimePref
		return gather(promptCollectTimePref)

	case yn.IsNo:
		sess.ZIPCode = ""
		sess.ZIPAttempts++
		if sess.ZIPAttempts >= maxZIPAttempts {
			sess.Step = session.StepDone
			return hangup(promptZIPGiveUp)
		}
		sess.Step = session.StepCollectZIP
		return gather(promptCollectZIP)
	}
	return gather(promptYesNoRetry + " " + fmt.Sprintf(promptConfirmZIPFmt, spellDigits(sess.ZIPCode)))
}

func (m *Machine) handleCollectTimePref(ctx context.Context, sess *session.Session, input string) Turn {
	sess.TimePref = speech.ParseTimePreference(input)
	return m.offerSlots(ctx, sess)
}

// offerSlots queries availability with the session's filters and reads the
// options out. The list spoken is stored in the session; slot selection
// books from that stored list, never from a silent re-query.
func (m *Machine) offerSlots(ctx context.Context, sess *session.Session) Turn {
	slots, err := m.slots.FindAvailableSlots(ctx, sess.ZIPCode, sess.Appliance, sess.TimePref, slotOfferLimit)
	if err != nil || len(slots) == 0 {
		if err == nil && m.notify != nil {
			m.notify.NotifyNoAvailability(ctx, sess.ZIPCode, string(sess.Appliance))
		}
		sess.Step = session.StepDone
		return hangup(promptNoSlots)
	}

	offered := make([]session.OfferedSlot, 0, len(slots))
	for _, s := range slots {
		offered = append(offered, session.OfferedSlot{
			SlotID:         s.SlotID,
			TechnicianID:   s.TechnicianID,
			TechnicianName: s.TechnicianName,
			Start:          s.Start,
			End:            s.End,
		})
	}
	sess.OfferedSlots = offered
	sess.Step = session.StepChooseSlot
	m.logEvent(sess.CallID, eventlog.EventSlotsOffered, map[string]any{"count": len(offered)})

	return gather(promptSlotsIntro + " " + scheduling.SpeakSlots(offered))
}

func (m *Machine) handleChooseSlot(ctx context.Context, sess *session.Session, input string) Turn {
	// The stored offer list can only be empty if the session was rebuilt
	// mid-call; re-query with the same filters before allowing selection.
	if len(sess.OfferedSlots) == 0 {
		return m.offerSlots(ctx, sess)
	}

	choice := speech.MatchOrdinal(input, len(sess.OfferedSlots))
	if choice < 1 {
		sess.SlotRetry++
		return gather(promptSlotRetry)
	}
	chosen := sess.OfferedSlots[choice-1]

	appt, err := m.booker.BookAppointment(ctx, store.BookingRequest{
		CallID:         sess.CallID,
		CustomerPhone:  sess.CallerPhone,
		ZIPCode:        sess.ZIPCode,
		Appliance:      sess.Appliance,
		SymptomSummary: sess.SymptomSummary,
		ErrorCodes:     sess.ErrorCodes,
		Urgent:         sess.Urgent,
		SlotID:         chosen.SlotID,
	})
	if errors.Is(err, store.ErrSlotTaken) {
		// Someone else took it between offer and selection; re-query once
		// and read out the fresh options.
		m.logEvent(sess.CallID, eventlog.EventBookingConflict, map[string]any{"slot_id": chosen.SlotID})
		sess.OfferedSlots = nil
		turn := m.offerSlots(ctx, sess)
		if turn.Hangup {
			return turn
		}
		return gather(promptSlotTaken + " " + turn.Say)
	}
	if err != nil {
		sess.Step = session.StepDone
		return hangup(promptBookingFailed)
	}

	sess.Booked = true
	sess.OfferedSlots = nil
	sess.Step = session.StepDone
	m.logEvent(sess.CallID, eventlog.EventBookingCreated, map[string]any{"appointment_id": appt.ID})
	if m.notify != nil {
		m.notify.NotifyBooking(ctx, appt.TechnicianName, string(sess.Appliance), sess.ZIPCode, appt.Start)
	}
	return hangup(scheduling.SpeakBooking(appt.TechnicianName, appt.Start))
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// spellDigits renders "60601" as "6 0 6 0 1" for clearer speech playback.
func spellDigits(s string) string {
	parts := make([]string, 0, len(s))
	for _, r := range s {
		parts = append(parts, string(r))
	}
	return strings.Join(parts, " ")
}
