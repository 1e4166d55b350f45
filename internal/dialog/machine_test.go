package dialog

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rgaros/fixline/internal/llm"
	"github.com/rgaros/fixline/internal/session"
	"github.com/rgaros/fixline/internal/speech"
	"github.com/rgaros/fixline/internal/store"
)

type fakeSlots struct {
	slots []store.AvailableSlot
	err   error
	calls int
}

func (f *fakeSlots) FindAvailableSlots(_ context.Context, _ string, _ speech.Appliance, _ speech.TimePreference, _ int) ([]store.AvailableSlot, error) {
	f.calls++
	return f.slots, f.err
}

type fakeBooker struct {
	appt     *store.Appointment
	errs     []error
	requests []store.BookingRequest
}

func (f *fakeBooker) BookAppointment(_ context.Context, req store.BookingRequest) (*store.Appointment, error) {
	f.requests = append(f.requests, req)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.appt, nil
}

type fakeUploads struct {
	token      *store.UploadToken
	tokenErr   error
	status     *store.UploadStatus
	statusErr  error
	resets     int
	resetToken string
}

func (f *fakeUploads) CreateUploadToken(_ context.Context, callID, email string, _ speech.Appliance, _ string, _ time.Duration) (*store.UploadToken, error) {
	if f.tokenErr != nil {
		return nil, f.tokenErr
	}
	if f.token == nil {
		f.token = &store.UploadToken{Token: "tok123", CallID: callID, Email: email}
	}
	return f.token, nil
}

func (f *fakeUploads) UploadStatusByCall(_ context.Context, _ string) (*store.UploadStatus, error) {
	return f.status, f.statusErr
}

func (f *fakeUploads) ResetUploadForCall(_ context.Context, _ string) (string, error) {
	f.resets++
	if f.resetToken != "" {
		return f.resetToken, nil
	}
	return "tok123", nil
}

type fakeMailer struct {
	sent []string
	urls []string
}

func (f *fakeMailer) SendUploadLink(_ context.Context, to, uploadURL string, _ speech.Appliance) error {
	f.sent = append(f.sent, to)
	f.urls = append(f.urls, uploadURL)
	return nil
}

func testSlots() []store.AvailableSlot {
	base := time.Date(2026, time.September, 7, 9, 0, 0, 0, time.UTC)
	return []store.AvailableSlot{
		{SlotID: 1, TechnicianID: 1, TechnicianName: "Alex Martinez", Start: base, End: base.Add(3 * time.Hour)},
		{SlotID: 2, TechnicianID: 2, TechnicianName: "Sarah Chen", Start: base.Add(4 * time.Hour), End: base.Add(7 * time.Hour)},
		{SlotID: 3, TechnicianID: 1, TechnicianName: "Alex Martinez", Start: base.Add(24 * time.Hour), End: base.Add(27 * time.Hour)},
	}
}

type fixture struct {
	machine *Machine
	slots   *fakeSlots
	booker  *fakeBooker
	uploads *fakeUploads
	mail    *fakeMailer
}

func newFixture() *fixture {
	f := &fixture{
		slots: &fakeSlots{slots: testSlots()},
		booker: &fakeBooker{appt: &store.Appointment{
			ID:             42,
			TechnicianName: "Alex Martinez",
			Start:          time.Date(2026, time.September, 7, 9, 0, 0, 0, time.UTC),
		}},
		uploads: &fakeUploads{},
		mail:    &fakeMailer{},
	}
	f.machine = NewMachine(Config{
		LLM:     llm.NewKeywordClient(),
		Slots:   f.slots,
		Booker:  f.booker,
		Uploads: f.uploads,
		Mailer:  f.mail,
		BaseURL: "https://fixline.example.com",
	})
	return f
}

func newSession(step session.Step) *session.Session {
	return &session.Session{
		CallID:      "CA-test",
		CallerPhone: "+15551234567",
		Step:        step,
	}
}

func checkTurn(t *testing.T, turn Turn) {
	t.Helper()
	if turn.Gather == turn.Hangup {
		t.Fatalf("turn must be exactly one of gather or hangup: %+v", turn)
	}
	if turn.Say == "" {
		t.Fatal("turn has nothing to say")
	}
}

func TestSchedulingFromOpeningRequest(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess := newSession(session.StepGreetAskName)

	turn := f.machine.HandleTurn(ctx, sess, "My name is John")
	checkTurn(t, turn)
	if sess.CustomerName != "John" {
		t.Fatalf("name = %q, want John", sess.CustomerName)
	}
	if sess.Step != session.StepUnderstandNeed {
		t.Fatalf("step = %q", sess.Step)
	}

	turn = f.machine.HandleTurn(ctx, sess, "I want to schedule a technician for my washer")
	checkTurn(t, turn)
	if sess.Step != session.StepCollectZIP {
		t.Fatalf("step = %q, want collect_zip", sess.Step)
	}
	if sess.Appliance != speech.ApplianceWasher {
		t.Fatalf("appliance = %q", sess.Appliance)
	}

	turn = f.machine.HandleTurn(ctx, sess, "60601")
	checkTurn(t, turn)
	if sess.Step != session.StepConfirmZIP {
		t.Fatalf("step = %q, want confirm_zip", sess.Step)
	}
	if !strings.Contains(turn.Say, "6 0 6 0 1") {
		t.Fatalf("ZIP readback missing spaced digits: %q", turn.Say)
	}

	turn = f.machine.HandleTurn(ctx, sess, "yes")
	checkTurn(t, turn)
	if sess.Step != session.StepCollectTimePref {
		t.Fatalf("step = %q, want collect_time_pref", sess.Step)
	}
}

func TestTroubleshootingFailureOffersUpload(t *testing.T) {
	f := newFixture()
	sess := newSession(session.StepTroubleshootAll)
	sess.Appliance = speech.ApplianceWasher

	turn := f.machine.HandleTurn(context.Background(), sess, "none of that worked, it's still broken")
	checkTurn(t, turn)
	if sess.Step != session.StepOfferImageUpload {
		t.Fatalf("step = %q, want offer_image_upload", sess.Step)
	}
	if !turn.Gather {
		t.Fatal("expected a gather turn")
	}
}

func TestPhotoRequestRoutesToEmail(t *testing.T) {
	f := newFixture()
	sess := newSession(session.StepOfferImageUpload)

	turn := f.machine.HandleTurn(context.Background(), sess, "I'd like to send a photo")
	checkTurn(t, turn)
	if sess.Step != session.StepCollectEmail {
		t.Fatalf("step = %q, want collect_email", sess.Step)
	}
}

func TestNoInputLadder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess := newSession(session.StepGreetAskName)

	for i := 1; i <= 2; i++ {
		turn := f.machine.HandleTurn(ctx, sess, "")
		checkTurn(t, turn)
		if !turn.Gather {
			t.Fatalf("reprompt %d should gather", i)
		}
		if turn.GatherTimeout != gatherTimeoutShort {
			t.Fatalf("reprompt %d timeout = %v, want short", i, turn.GatherTimeout)
		}
		if sess.Step != session.StepGreetAskName {
			t.Fatalf("reprompt %d moved step to %q", i, sess.Step)
		}
	}

	turn := f.machine.HandleTurn(ctx, sess, "")
	checkTurn(t, turn)
	if sess.Step != session.StepCollectZIP {
		t.Fatalf("step = %q, want collect_zip after third silence", sess.Step)
	}
	if sess.NoInput != 0 {
		t.Fatalf("no-input counter = %d, want reset", sess.NoInput)
	}
}

func TestNoInputResetOnSpeech(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess := newSession(session.StepGreetAskName)

	f.machine.HandleTurn(ctx, sess, "")
	if sess.NoInput != 1 {
		t.Fatalf("counter = %d", sess.NoInput)
	}
	f.machine.HandleTurn(ctx, sess, "It's Dana")
	if sess.NoInput != 0 {
		t.Fatalf("counter = %d, want 0 after speech", sess.NoInput)
	}
}

func TestZIPConfirmRejectionLoops(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess := newSession(session.StepConfirmZIP)
	sess.ZIPCode = "60601"

	turn := f.machine.HandleTurn(ctx, sess, "no")
	checkTurn(t, turn)
	if sess.Step != session.StepCollectZIP {
		t.Fatalf("step = %q, want collect_zip", sess.Step)
	}
	if sess.ZIPCode != "" {
		t.Fatalf("ZIP = %q, want cleared", sess.ZIPCode)
	}
}

func TestZIPAttemptsExhaustedHangsUp(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess := newSession(session.StepCollectZIP)

	var turn Turn
	for i := 0; i < 3; i++ {
		turn = f.machine.HandleTurn(ctx, sess, "um I'm not sure")
	}
	if !turn.Hangup {
		t.Fatalf("expected hangup after repeated invalid ZIPs, got %+v", turn)
	}
	if sess.Step != session.StepDone {
		t.Fatalf("step = %q, want done", sess.Step)
	}
}

func TestEmailCaptureAlwaysConfirms(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess := newSession(session.StepCollectEmail)

	turn := f.machine.HandleTurn(ctx, sess, "john at gmail dot com")
	checkTurn(t, turn)
	if sess.Step != session.StepConfirmEmail {
		t.Fatalf("step = %q, want confirm_email", sess.Step)
	}
	if sess.PendingEmail != "john@gmail.com" {
		t.Fatalf("pending email = %q", sess.PendingEmail)
	}
	if !strings.Contains(turn.Say, "j, o, h, n") {
		t.Fatalf("confirmation should spell the address: %q", turn.Say)
	}
}

func TestEmailConfirmYesSendsLink(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess := newSession(session.StepConfirmEmail)
	sess.PendingEmail = "john@gmail.com"

	turn := f.machine.HandleTurn(ctx, sess, "yes")
	checkTurn(t, turn)
	if sess.Step != session.StepWaitingForUpload {
		t.Fatalf("step = %q, want waiting_for_upload", sess.Step)
	}
	if sess.ConfirmedEmail != "john@gmail.com" || sess.PendingEmail != "" {
		t.Fatalf("email commit wrong: confirmed=%q pending=%q", sess.ConfirmedEmail, sess.PendingEmail)
	}
	if sess.UploadToken == "" {
		t.Fatal("no upload token issued")
	}
	if len(f.mail.sent) != 1 || f.mail.sent[0] != "john@gmail.com" {
		t.Fatalf("mail sends = %v", f.mail.sent)
	}
	if !strings.Contains(f.mail.urls[0], "/upload/") {
		t.Fatalf("upload URL = %q", f.mail.urls[0])
	}
}

func TestEmailConfirmRejectionRetriesThenAbandons(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess := newSession(session.StepConfirmEmail)

	for i := 0; i < 2; i++ {
		sess.PendingEmail = "wrong@gmail.com"
		sess.Step = session.StepConfirmEmail
		turn := f.machine.HandleTurn(ctx, sess, "no")
		checkTurn(t, turn)
		if sess.Step != session.StepCollectEmail {
			t.Fatalf("retry %d: step = %q, want collect_email", i+1, sess.Step)
		}
	}

	sess.PendingEmail = "wrong@gmail.com"
	sess.Step = session.StepConfirmEmail
	turn := f.machine.HandleTurn(ctx, sess, "no")
	checkTurn(t, turn)
	if sess.Step != session.StepCollectZIP {
		t.Fatalf("step = %q, want collect_zip after exhausted retries", sess.Step)
	}
}

func TestEmailConfirmUnclearDoesNotConsumeRetry(t *testing.T) {
	f := newFixture()
	sess := newSession(session.StepConfirmEmail)
	sess.PendingEmail = "john@gmail.com"

	turn := f.machine.HandleTurn(context.Background(), sess, "what was that")
	checkTurn(t, turn)
	if sess.Step != session.StepConfirmEmail {
		t.Fatalf("step = %q, want confirm_email", sess.Step)
	}
	if sess.EmailConfirm != 0 {
		t.Fatalf("confirm counter = %d, want 0", sess.EmailConfirm)
	}
}

func TestWaitingForUploadAnalysisOverridesInput(t *testing.T) {
	f := newFixture()
	f.uploads.status = &store.UploadStatus{
		AnalysisReady:    true,
		IsApplianceImage: true,
		AnalysisSummary:  "The drain filter is visibly clogged.",
		Troubleshooting:  "Remove and rinse the drain filter.",
	}
	sess := newSession(session.StepWaitingForUpload)

	turn := f.machine.HandleTurn(context.Background(), sess, "I'd rather just schedule")
	checkTurn(t, turn)
	if sess.Step != session.StepAfterAnalysis {
		t.Fatalf("step = %q, want after_analysis", sess.Step)
	}
	if !strings.Contains(turn.Say, "drain filter") {
		t.Fatalf("analysis not spoken: %q", turn.Say)
	}
	if !sess.AnalysisSpoken {
		t.Fatal("analysis spoken flag not set")
	}
}

func TestWaitingForUploadPollCap(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess := newSession(session.StepWaitingForUpload)

	var turn Turn
	for i := 0; i <= maxUploadPolls; i++ {
		turn = f.machine.HandleTurn(ctx, sess, "done")
	}
	checkTurn(t, turn)
	if sess.Step != session.StepCollectZIP {
		t.Fatalf("step = %q, want collect_zip after poll cap", sess.Step)
	}
}

func TestWaitingForUploadMoreTimeResetsCounter(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess := newSession(session.StepWaitingForUpload)
	sess.UploadPolls = 7

	turn := f.machine.HandleTurn(ctx, sess, "give me more time please")
	checkTurn(t, turn)
	if sess.Step != session.StepWaitingForUpload {
		t.Fatalf("step = %q", sess.Step)
	}
	if sess.UploadPolls != 0 {
		t.Fatalf("poll counter = %d, want 0", sess.UploadPolls)
	}
}

func TestWaitingForUploadResend(t *testing.T) {
	f := newFixture()
	sess := newSession(session.StepWaitingForUpload)
	sess.ConfirmedEmail = "john@gmail.com"

	turn := f.machine.HandleTurn(context.Background(), sess, "I never got the email, can you resend it")
	checkTurn(t, turn)
	if sess.Step != session.StepWaitingForUpload {
		t.Fatalf("step = %q, want waiting_for_upload", sess.Step)
	}
	if f.uploads.resets != 1 {
		t.Fatalf("resets = %d, want 1", f.uploads.resets)
	}
	if len(f.mail.sent) != 1 {
		t.Fatalf("mail sends = %v, want one resend", f.mail.sent)
	}
}

func TestNonApplianceImageAsksForAnother(t *testing.T) {
	f := newFixture()
	f.uploads.status = &store.UploadStatus{
		AnalysisReady:    true,
		IsApplianceImage: false,
		AnalysisSummary:  "This looks like a photo of a cat.",
	}
	sess := newSession(session.StepWaitingForUpload)

	turn := f.machine.HandleTurn(context.Background(), sess, "done")
	checkTurn(t, turn)
	if sess.Step != session.StepWaitingForUpload {
		t.Fatalf("step = %q, want waiting_for_upload", sess.Step)
	}
	if f.uploads.resets != 1 {
		t.Fatalf("resets = %d, want 1", f.uploads.resets)
	}
	if sess.AnalysisSpoken {
		t.Fatal("should not mark a rejected image as spoken")
	}
}

func TestChooseSlotBooks(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess := newSession(session.StepCollectTimePref)
	sess.ZIPCode = "60601"
	sess.Appliance = speech.ApplianceWasher

	turn := f.machine.HandleTurn(ctx, sess, "morning works best")
	checkTurn(t, turn)
	if sess.Step != session.StepChooseSlot {
		t.Fatalf("step = %q, want choose_slot", sess.Step)
	}
	if len(sess.OfferedSlots) != 3 {
		t.Fatalf("offered %d slots", len(sess.OfferedSlots))
	}
	if !strings.Contains(turn.Say, "Option 1") {
		t.Fatalf("slot offer missing options: %q", turn.Say)
	}

	turn = f.machine.HandleTurn(ctx, sess, "the second one")
	if !turn.Hangup {
		t.Fatalf("booking should end the call, got %+v", turn)
	}
	if !sess.Booked || sess.Step != session.StepDone {
		t.Fatalf("booked=%v step=%q", sess.Booked, sess.Step)
	}
	if len(f.booker.requests) != 1 || f.booker.requests[0].SlotID != 2 {
		t.Fatalf("booking requests = %+v", f.booker.requests)
	}
	if !strings.Contains(turn.Say, "Alex Martinez") {
		t.Fatalf("confirmation missing technician: %q", turn.Say)
	}
}

func TestChooseSlotNoMatchReprompts(t *testing.T) {
	f := newFixture()
	sess := newSession(session.StepChooseSlot)
	sess.OfferedSlots = []session.OfferedSlot{{SlotID: 1, TechnicianName: "Alex Martinez"}}

	turn := f.machine.HandleTurn(context.Background(), sess, "hmm let me think")
	checkTurn(t, turn)
	if sess.Step != session.StepChooseSlot {
		t.Fatalf("step = %q, want choose_slot", sess.Step)
	}
	if len(f.booker.requests) != 0 {
		t.Fatal("should not book without a selection")
	}
}

func TestChooseSlotConflictReoffers(t *testing.T) {
	f := newFixture()
	f.booker.errs = []error{store.ErrSlotTaken}
	sess := newSession(session.StepChooseSlot)
	sess.ZIPCode = "60601"
	sess.OfferedSlots = []session.OfferedSlot{
		{SlotID: 1, TechnicianID: 1, TechnicianName: "Alex Martinez", Start: time.Now().Add(24 * time.Hour)},
	}

	turn := f.machine.HandleTurn(context.Background(), sess, "one")
	checkTurn(t, turn)
	if sess.Step != session.StepChooseSlot {
		t.Fatalf("step = %q, want choose_slot with fresh offers", sess.Step)
	}
	if f.slots.calls != 1 {
		t.Fatalf("slot re-queries = %d, want 1", f.slots.calls)
	}
	if len(sess.OfferedSlots) != 3 {
		t.Fatalf("fresh offers = %d", len(sess.OfferedSlots))
	}
}

func TestChooseSlotEmptyStoredListRequeries(t *testing.T) {
	f := newFixture()
	sess := newSession(session.StepChooseSlot)
	sess.ZIPCode = "60601"

	turn := f.machine.HandleTurn(context.Background(), sess, "one")
	checkTurn(t, turn)
	if f.slots.calls != 1 {
		t.Fatalf("slot queries = %d, want 1", f.slots.calls)
	}
	if len(sess.OfferedSlots) != 3 {
		t.Fatalf("offered = %d", len(sess.OfferedSlots))
	}
}

func TestNoSlotsEndsCall(t *testing.T) {
	f := newFixture()
	f.slots.slots = nil
	sess := newSession(session.StepCollectTimePref)
	sess.ZIPCode = "99999"

	turn := f.machine.HandleTurn(context.Background(), sess, "anytime")
	if !turn.Hangup {
		t.Fatalf("expected hangup, got %+v", turn)
	}
	if sess.Step != session.StepDone {
		t.Fatalf("step = %q, want done", sess.Step)
	}
}

func TestFullDescriptionOffersTroubleshooting(t *testing.T) {
	f := newFixture()
	sess := newSession(session.StepUnderstandNeed)

	turn := f.machine.HandleTurn(context.Background(), sess, "my washer is making a loud banging noise during the spin cycle and leaking water")
	checkTurn(t, turn)
	if sess.Step != session.StepOfferTroubleshoot {
		t.Fatalf("step = %q, want offer_troubleshoot_or_schedule", sess.Step)
	}
	if sess.Appliance != speech.ApplianceWasher {
		t.Fatalf("appliance = %q", sess.Appliance)
	}
	if sess.SymptomSummary == "" {
		t.Fatal("symptoms not recorded")
	}
}

func TestThinDescriptionAsksSymptoms(t *testing.T) {
	f := newFixture()
	sess := newSession(session.StepUnderstandNeed)

	turn := f.machine.HandleTurn(context.Background(), sess, "my dryer")
	checkTurn(t, turn)
	if sess.Step != session.StepAskSymptoms {
		t.Fatalf("step = %q, want ask_symptoms", sess.Step)
	}
}

func TestUnclearNeedEventuallyForcesAppliance(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sess := newSession(session.StepUnderstandNeed)

	for i := 0; i < 2; i++ {
		f.machine.HandleTurn(ctx, sess, "um hello")
		if sess.Step != session.StepUnderstandNeed {
			t.Fatalf("retry %d moved step to %q", i+1, sess.Step)
		}
	}
	f.machine.HandleTurn(ctx, sess, "um hello")
	if sess.Step != session.StepAskApplianceScheduling {
		t.Fatalf("step = %q, want ask_appliance_for_scheduling", sess.Step)
	}
}

func TestTroubleshootChoiceDefaultsToSteps(t *testing.T) {
	f := newFixture()
	sess := newSession(session.StepOfferTroubleshoot)
	sess.Appliance = speech.ApplianceWasher

	turn := f.machine.HandleTurn(context.Background(), sess, "uh I guess whatever you think")
	checkTurn(t, turn)
	if sess.Step != session.StepTroubleshootAll {
		t.Fatalf("step = %q, want troubleshoot_all", sess.Step)
	}
	if !strings.Contains(turn.Say, "door or lid") {
		t.Fatalf("steps not spoken: %q", turn.Say)
	}
}

func TestNoStepsForApplianceOffersUpload(t *testing.T) {
	f := newFixture()
	sess := newSession(session.StepOfferTroubleshoot)
	sess.Appliance = speech.ApplianceHVAC

	turn := f.machine.HandleTurn(context.Background(), sess, "let's try troubleshooting")
	checkTurn(t, turn)
	if sess.Step != session.StepOfferImageUpload {
		t.Fatalf("step = %q, want offer_image_upload", sess.Step)
	}
}

func TestDoneIsTerminal(t *testing.T) {
	f := newFixture()
	sess := newSession(session.StepDone)

	turn := f.machine.HandleTurn(context.Background(), sess, "hello?")
	if !turn.Hangup {
		t.Fatalf("done must hang up, got %+v", turn)
	}
}

func TestGreetingGathers(t *testing.T) {
	turn := Greeting()
	checkTurn(t, turn)
	if !turn.Gather {
		t.Fatal("greeting must gather")
	}
	if !strings.Contains(turn.Say, "Fixline") {
		t.Fatalf("greeting = %q", turn.Say)
	}
}

func TestAllowsLowConfidence(t *testing.T) {
	if !AllowsLowConfidence(session.StepConfirmZIP) {
		t.Fatal("confirm_zip should allow low confidence")
	}
	if AllowsLowConfidence(session.StepUnderstandNeed) {
		t.Fatal("understand_need should gate low confidence")
	}
}
