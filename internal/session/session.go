// Package session holds per-call dialogue state for the lifetime of a phone
// call. Sessions live in an in-process TTL cache keyed by the telephony
// provider's call id; a call that goes quiet longer than the TTL is evicted
// and a late webhook for it starts a fresh session.
package session

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/rgaros/fixline/internal/speech"
)

// Step identifies where the dialogue is in the conversation flow.
type Step string

const (
	StepGreetAskName           Step = "greet_ask_name"
	StepUnderstandNeed         Step = "understand_need"
	StepAskSymptoms            Step = "ask_symptoms"
	StepAskApplianceScheduling Step = "ask_appliance_for_scheduling"
	StepOfferTroubleshoot      Step = "offer_troubleshoot_or_schedule"
	StepTroubleshootAll        Step = "troubleshoot_all"
	StepConfirmResolution      Step = "confirm_resolution"
	StepOfferImageUpload       Step = "offer_image_upload"
	StepCollectEmail           Step = "collect_email"
	StepConfirmEmail           Step = "confirm_email"
	StepWaitingForUpload       Step = "waiting_for_upload"
	StepSpeakAnalysis          Step = "speak_analysis"
	StepAfterAnalysis          Step = "after_analysis"
	StepCollectZIP             Step = "collect_zip"
	StepConfirmZIP             Step = "confirm_zip"
	StepCollectTimePref        Step = "collect_time_pref"
	StepChooseSlot             Step = "choose_slot"
	StepDone                   Step = "done"
)

// OfferedSlot is one availability option read out to the caller. The list
// spoken is the list booked from; it is never silently re-queried between
// offer and selection.
type OfferedSlot struct {
	SlotID         int64
	TechnicianID   int64
	TechnicianName string
	Start          time.Time
	End            time.Time
}

// Session is the mutable state for one call. Handlers mutate it under the
// store's per-call lock; nothing outside the dialogue loop writes to it.
type Session struct {
	CallID      string
	CallerPhone string
	StartedAt   time.Time

	Step Step

	CustomerName   string
	Appliance      speech.Appliance
	Symptoms       string
	SymptomSummary string
	ErrorCodes     []string
	Urgent         bool

	ZIPCode  string
	TimePref speech.TimePreference

	OfferedSlots []OfferedSlot
	Booked       bool

	PendingEmail   string
	ConfirmedEmail string

	UploadToken     string
	UploadTokenSent bool
	AnalysisSpoken  bool

	// Retry counters. Each covers its own narrow loop; only NoInput is
	// global across steps.
	NoInput        int
	Understand     int
	ApplianceRetry int
	ZIPAttempts    int
	EmailConfirm   int
	UploadPolls    int
	SlotRetry      int

	// TurnStartedAt is stamped when a turn begins; the transcript arbiter
	// uses it to reject streaming finals from earlier turns.
	TurnStartedAt time.Time
}

// Store keeps live sessions with a sliding TTL. Access to a session is
// serialized per call so a webhook retry and a streaming event cannot
// interleave mutations.
type Store struct {
	cache *gocache.Cache
	ttl   time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		cache: gocache.New(ttl, 2*ttl),
		ttl:   ttl,
		locks: make(map[string]*sync.Mutex),
	}
}

// GetOrCreate returns the session for the call, creating it at
// greet_ask_name if none exists. The boolean reports whether the session
// already existed.
func (s *Store) GetOrCreate(callID, callerPhone string, now time.Time) (*Session, bool) {
	if v, ok := s.cache.Get(callID); ok {
		sess := v.(*Session)
		s.cache.Set(callID, sess, s.ttl)
		return sess, true
	}
	sess := &Session{
		CallID:      callID,
		CallerPhone: callerPhone,
		StartedAt:   now,
		Step:        StepGreetAskName,
	}
	s.cache.Set(callID, sess, s.ttl)
	return sess, false
}

// Get returns the session for the call if present.
func (s *Store) Get(callID string) (*Session, bool) {
	v, ok := s.cache.Get(callID)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// Save refreshes the session's TTL after a mutation.
func (s *Store) Save(sess *Session) {
	s.cache.Set(sess.CallID, sess, s.ttl)
}

// Delete removes the session when the call ends.
func (s *Store) Delete(callID string) {
	s.cache.Delete(callID)
	s.mu.Lock()
	delete(s.locks, callID)
	s.mu.Unlock()
}

// Lock returns the per-call mutex, creating it on first use. Callers hold it
// for the duration of one turn.
func (s *Store) Lock(callID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[callID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[callID] = l
	}
	return l
}
