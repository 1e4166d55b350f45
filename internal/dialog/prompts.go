package dialog

import "github.com/rgaros/fixline/internal/session"

// Spoken prompts. Kept as constants so tests can assert on exact playback
// and so wording changes happen in one place.
const (
	promptGreeting = "Hello! Thank you for calling Fixline Home Services. I'm your virtual assistant. May I have your name, please?"

	promptUnderstandNeedFmt = "Thanks, %s. How can I help you today? You can describe the problem with your appliance, or ask to schedule a technician."

	promptUnderstandRetry = "I'm sorry, I didn't quite catch that. Could you tell me which appliance is giving you trouble, or say that you'd like to schedule a technician?"

	promptAskSymptomsFmt = "I see, you're having trouble with your %s. Can you describe what's wrong? For example, is it making noise, leaking, or showing an error code on the %s?"

	promptAskAppliance = "Sure, I can help you schedule a technician. Which appliance needs service? For example, a washer, dryer, refrigerator, dishwasher, oven, or your heating and cooling system."

	promptApplianceRetry = "Sorry, I didn't recognize that appliance. Could you say it again? For example, washer, dryer, refrigerator, dishwasher, oven, or HVAC."

	promptApplianceGiveUp = "No problem, the technician can sort out the details on site."

	promptApplianceHeardFmt = "Got it, a %s."

	promptOfferTroubleshootFmt = "I understand, %s. I can walk you through a few troubleshooting steps that often fix this, or I can schedule a technician to come take a look. Which would you prefer?"

	promptScheduleAgreed = "Of course, let's get a technician scheduled."

	promptTroubleshootAllFmt = "Okay, here are the steps to try. %s. Take your time, and when you're ready, let me know if that fixed the problem."

	promptTroubleshootUnclear = "Were you able to try those steps? Let me know if the problem is fixed, or if it's still not working."

	promptConfirmResolution = "That's great to hear! Just to confirm, is everything working now?"

	promptResolvedGoodbye = "Wonderful! I'm glad we could get it working again. Thank you for calling Fixline Home Services. Have a great day!"

	promptOfferImageUpload = "I'm sorry that didn't solve it. If you can take a photo of the appliance, or of any error code it's showing, I can analyze the picture and suggest what to do next. I'd send an upload link to your email. Would you like to try that, or shall we schedule a technician?"

	promptNoStepsOfferUpload = "For this one I'd need a closer look. If you can take a photo of the appliance, or of any error code it's showing, I can analyze the picture and suggest what to do next. I'd send an upload link to your email. Would you like to try that, or shall we schedule a technician?"

	promptCollectEmail = "Sure. What's your email address? Feel free to spell it out if that's easier."

	promptEmailRetry = "Sorry, I couldn't make out an email address there. Could you say it again, spelling it out letter by letter?"

	promptEmailReask = "My mistake. Let's try again. Please say your email address, spelling it out if needed."

	promptEmailConfirmShort = "Is the email address I read back correct?"

	promptEmailGiveUp = "That's alright, let's skip the photo and get a technician out to you instead."

	promptUploadUnavailable = "I'm having trouble setting up the photo upload right now, so let's schedule a technician instead."

	promptUploadLinkSent = "Perfect, I've sent an upload link to your email. Go ahead and take a photo of the appliance and upload it using that link. I'll stay on the line. Just say done when you've uploaded it, or say more time if you need a minute."

	promptUploadResent = "No problem, I've sent a fresh upload link to your email. Let me know once you've uploaded the photo."

	promptUploadMoreTime = "Take your time. I'll be right here. Just say done when the photo is uploaded."

	promptUploadNotYetSeen = "Hmm, I don't see the photo on my end yet. It can take a moment to come through. Say done again in a few seconds, or say resend if you'd like a new link."

	promptUploadStillWaiting = "I'm still waiting on the photo. Say done once you've uploaded it, resend if you need a new link, or say schedule if you'd rather book a technician."

	promptUploadTimeout = "The photo doesn't seem to be coming through, so let's not keep you waiting."

	promptNotApplianceImage = "Hmm, the photo I received doesn't look like an appliance. Could you take another picture, making sure the appliance or its error display is clearly visible? I've refreshed your upload link, so the same email works. Say done when you've uploaded the new photo."

	promptAnalysisFmt = "Alright, I've taken a look at your photo. %s"

	promptAfterAnalysis = "Did that help fix the problem, or would you like me to schedule a technician?"

	promptAfterAnalysisRetry = "Sorry, I didn't catch that. Is the problem fixed now, or should I schedule a technician to come take a look?"

	promptStillBrokenSchedule = "Sorry to hear it's still acting up. Let's get a technician out to you."

	promptCollectZIP = "What's the ZIP code where the appliance is located?"

	promptZIPRetry = "Sorry, I didn't get a valid ZIP code. Could you say the five digits one at a time?"

	promptZIPGiveUp = "I'm sorry, I'm having trouble understanding the ZIP code over the phone. Please call us back and we'll get you scheduled. Thank you for calling Fixline Home Services. Goodbye!"

	promptConfirmZIPFmt = "I heard ZIP code %s. Is that correct?"

	promptCollectTimePref = "Do you prefer a morning or afternoon appointment? Or say anytime if either works."

	promptNoSlots = "I'm sorry, I don't see any available appointments in your area right now. Please call us back later and we'll do our best to fit you in. Thank you for calling Fixline Home Services. Goodbye!"

	promptSlotsIntro = "Here's what I have available."

	promptSlotRetry = "Sorry, I didn't catch which option you'd like. You can say one, two, or three."

	promptSlotTaken = "Oh, it looks like that time was just taken. Let me check what else is open."

	promptBookingFailed = "I'm sorry, something went wrong while booking your appointment. Please call us back and we'll get it sorted out. Thank you for calling Fixline Home Services. Goodbye!"

	promptYesNoRetry = "Sorry, I didn't catch that. Please say yes or no."

	promptNoInput = "Are you still there?"

	promptSilenceToScheduling = "I'm having trouble hearing you, so let's move ahead with scheduling a technician. What's the ZIP code where the appliance is located?"

	promptGoodbye = "Thank you for calling Fixline Home Services. Goodbye!"

	promptGoodbyeUnheard = "It seems we've lost you. Thank you for calling Fixline Home Services. Goodbye!"
)

// Keyword routes checked before any model call. Matching is substring on
// the lowercased utterance.
var (
	scheduleKeywords = []string{
		"schedule", "technician", "appointment", "book", "someone come",
		"send someone", "come out", "repair person",
	}
	photoKeywords = []string{
		"photo", "picture", "image", "send a pic", "upload",
	}
)

// rePrompt is the short restatement of the current step's question, used
// after a silent turn.
var rePrompts = map[session.Step]string{
	session.StepGreetAskName:           "May I have your name?",
	session.StepUnderstandNeed:         "How can I help you today?",
	session.StepAskSymptoms:            "Can you describe what's wrong with the appliance?",
	session.StepAskApplianceScheduling: "Which appliance needs service?",
	session.StepOfferTroubleshoot:      "Would you like to try troubleshooting, or schedule a technician?",
	session.StepTroubleshootAll:        "Let me know if those steps fixed the problem.",
	session.StepConfirmResolution:      "Is everything working now?",
	session.StepOfferImageUpload:       "Would you like to send a photo, or schedule a technician?",
	session.StepCollectEmail:           "What's your email address?",
	session.StepConfirmEmail:           "Is the email address I read back correct? Please say yes or no.",
	session.StepWaitingForUpload:       "Say done once you've uploaded the photo, or more time if you need a minute.",
	session.StepSpeakAnalysis:          "Are you still there?",
	session.StepAfterAnalysis:          "Is the problem fixed, or should I schedule a technician?",
	session.StepCollectZIP:             "What's the ZIP code where the appliance is located?",
	session.StepConfirmZIP:             "Is the ZIP code I read back correct? Please say yes or no.",
	session.StepCollectTimePref:        "Do you prefer a morning or afternoon appointment?",
	session.StepChooseSlot:             "Which option works for you?",
	session.StepDone:                   "",
}

func rePrompt(step session.Step) string {
	return rePrompts[step]
}
