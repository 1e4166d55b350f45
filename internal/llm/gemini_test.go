package llm

import (
	"context"
	"testing"

	"github.com/rgaros/fixline/internal/speech"
)

func TestNewGeminiClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		client := NewGeminiClient(GeminiConfig{APIKey: "test-key"})

		if client.model != "gemini-2.0-flash" {
			t.Errorf("model = %q, want %q", client.model, "gemini-2.0-flash")
		}
		if client.apiKey != "test-key" {
			t.Errorf("apiKey = %q, want %q", client.apiKey, "test-key")
		}
	})

	t.Run("custom model", func(t *testing.T) {
		client := NewGeminiClient(GeminiConfig{APIKey: "test-key", Model: "gemini-1.5-pro"})

		if client.model != "gemini-1.5-pro" {
			t.Errorf("model = %q, want %q", client.model, "gemini-1.5-pro")
		}
	})
}

func TestStripFences(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"{\"a\":1}", "{\"a\":1}"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```\n{\"a\":1}\n```", "{\"a\":1}"},
		{"  {\"a\":1}  ", "{\"a\":1}"},
	}
	for _, tc := range cases {
		if got := stripFences(tc.in); got != tc.want {
			t.Errorf("stripFences(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestClassifyIntentWithoutAPIKey(t *testing.T) {
	// No key: the model call fails and the keyword fallback answers.
	client := NewGeminiClient(GeminiConfig{})
	ctx := context.Background()

	t.Run("explicit scheduling request", func(t *testing.T) {
		got := client.ClassifyIntent(ctx, "I want to schedule a technician for my washer")
		if !got.WantsScheduling {
			t.Error("wants_scheduling = false")
		}
		if got.Appliance != speech.ApplianceWasher {
			t.Errorf("appliance = %q, want washer", got.Appliance)
		}
	})

	t.Run("unclear utterance", func(t *testing.T) {
		got := client.ClassifyIntent(ctx, "hello there")
		if got.WantsScheduling {
			t.Error("wants_scheduling = true for a greeting")
		}
		if got.Appliance != speech.ApplianceNone {
			t.Errorf("appliance = %q, want none", got.Appliance)
		}
	})
}

func TestKeywordResolution(t *testing.T) {
	cases := []struct {
		in   string
		want Resolution
	}{
		{"yes that fixed it", ResolutionFixed},
		{"it's working now, thank you", ResolutionFixed},
		{"no, it's still leaking", ResolutionNotFixed},
		{"that didn't work", ResolutionNotFixed},
		{"let me check something", ResolutionUnclear},
	}
	for _, tc := range cases {
		if got := keywordResolution(tc.in); got != tc.want {
			t.Errorf("keywordResolution(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestKeywordClientApplianceRelevance(t *testing.T) {
	client := NewKeywordClient()
	ctx := context.Background()

	if !client.IsApplianceRelated(ctx, "my samsung fridge is warm") {
		t.Error("brand mention not detected")
	}
	if client.IsApplianceRelated(ctx, "I'd like a pizza") {
		t.Error("off-topic text detected as appliance-related")
	}
}

func TestExtractSymptomsFallback(t *testing.T) {
	client := NewGeminiClient(GeminiConfig{})
	got := client.ExtractSymptoms(context.Background(), "the drum makes a grinding noise")

	if got.Summary != "the drum makes a grinding noise" {
		t.Errorf("summary = %q", got.Summary)
	}
	if got.ErrorCodes == nil || len(got.ErrorCodes) != 0 {
		t.Errorf("error codes = %v, want empty list", got.ErrorCodes)
	}
	if got.Urgent {
		t.Error("urgent = true")
	}
}
