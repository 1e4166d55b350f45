package llm

import (
	"context"

	"github.com/rgaros/fixline/internal/speech"
)

// IntentResult is the classifier's reading of an open-ended caller utterance.
type IntentResult struct {
	Appliance          speech.Appliance `json:"appliance_type"`
	Symptoms           string           `json:"symptoms"`
	WantsScheduling    bool             `json:"wants_scheduling"`
	HasFullDescription bool             `json:"has_full_description"`
	Intent             string           `json:"intent"`
}

// SymptomResult is the structured extraction of a problem description.
type SymptomResult struct {
	Summary    string   `json:"symptom_summary"`
	ErrorCodes []string `json:"error_codes"`
	Urgent     bool     `json:"is_urgent"`
}

// Resolution is the interpreter's verdict on whether troubleshooting worked.
type Resolution string

const (
	ResolutionFixed    Resolution = "fixed"
	ResolutionNotFixed Resolution = "not_fixed"
	ResolutionUnclear  Resolution = "unclear"
)

// Client defines the model-backed language operations the dialogue uses.
// Implementations degrade gracefully: on model failure they return a
// keyword-derived answer rather than an error the dialogue would have to
// surface to the caller.
type Client interface {
	// ClassifyIntent reads the caller's opening description of their need.
	ClassifyIntent(ctx context.Context, userText string) IntentResult

	// ClassifyAppliance identifies a single appliance type, or none.
	ClassifyAppliance(ctx context.Context, userText string) speech.Appliance

	// ExtractSymptoms pulls a summary, error codes and urgency out of a
	// problem description.
	ExtractSymptoms(ctx context.Context, userText string) SymptomResult

	// InterpretResolution decides whether the caller's response after
	// troubleshooting means the problem is solved.
	InterpretResolution(ctx context.Context, userText string) Resolution

	// IsApplianceRelated checks that an utterance is about a home
	// appliance at all.
	IsApplianceRelated(ctx context.Context, userText string) bool
}
