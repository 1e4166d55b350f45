package llm

import (
	"context"
	"strings"

	"github.com/rgaros/fixline/internal/speech"
)

// Keyword-only classification used two ways: as the fallback when the model
// is unreachable, and as the whole Client when no API key is configured.

var schedulingKeywords = []string{
	"schedule", "appointment", "technician", "send someone", "come out",
	"come fix", "repair visit", "service call", "book",
}

var fixedKeywords = []string{
	"fixed", "working", "works now", "solved", "that did it", "all good",
	"it's fine now", "resolved",
}

var notFixedKeywords = []string{
	"still", "didn't work", "did not work", "not working", "no luck",
	"same problem", "nothing changed", "broken",
}

func keywordWantsScheduling(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range schedulingKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func keywordIntent(userText string) IntentResult {
	appliance := speech.InferAppliance(userText)
	result := IntentResult{
		Appliance:       appliance,
		WantsScheduling: keywordWantsScheduling(userText),
		Intent:          "other",
	}
	if appliance != speech.ApplianceNone {
		result.Intent = "repair_request"
		result.Symptoms = userText
		// Keywords alone cannot judge descriptive depth; a longer
		// utterance is the best available signal.
		result.HasFullDescription = len(strings.Fields(userText)) >= 8
	}
	return result
}

func keywordResolution(text string) Resolution {
	lower := strings.ToLower(text)
	for _, kw := range notFixedKeywords {
		if strings.Contains(lower, kw) {
			return ResolutionNotFixed
		}
	}
	for _, kw := range fixedKeywords {
		if strings.Contains(lower, kw) {
			return ResolutionFixed
		}
	}
	yn := speech.ClassifyYesNo(text)
	switch {
	case yn.IsYes:
		return ResolutionFixed
	case yn.IsNo:
		return ResolutionNotFixed
	}
	return ResolutionUnclear
}

// KeywordClient is the Client used when no model is configured. It applies
// the same keyword rules the Gemini client falls back on.
type KeywordClient struct{}

func NewKeywordClient() *KeywordClient { return &KeywordClient{} }

func (*KeywordClient) ClassifyIntent(_ context.Context, userText string) IntentResult {
	return keywordIntent(userText)
}

func (*KeywordClient) ClassifyAppliance(_ context.Context, userText string) speech.Appliance {
	return speech.InferAppliance(userText)
}

func (*KeywordClient) ExtractSymptoms(_ context.Context, userText string) SymptomResult {
	return SymptomResult{Summary: userText, ErrorCodes: []string{}}
}

func (*KeywordClient) InterpretResolution(_ context.Context, userText string) Resolution {
	return keywordResolution(userText)
}

func (*KeywordClient) IsApplianceRelated(_ context.Context, userText string) bool {
	return speech.ContainsApplianceHint(userText)
}
