package stt

import "testing"

func TestTwilioConfig(t *testing.T) {
	cfg := TwilioConfig("dg-key")

	if cfg.APIKey != "dg-key" {
		t.Errorf("APIKey = %q, want %q", cfg.APIKey, "dg-key")
	}
	if cfg.Encoding != "mulaw" {
		t.Errorf("Encoding = %q, want %q", cfg.Encoding, "mulaw")
	}
	if cfg.SampleRate != 8000 {
		t.Errorf("SampleRate = %d, want 8000", cfg.SampleRate)
	}
	if cfg.Channels != 1 {
		t.Errorf("Channels = %d, want 1", cfg.Channels)
	}
	if !cfg.Punctuate {
		t.Error("Punctuate should be enabled for phone transcripts")
	}
	if cfg.Endpointing <= 0 {
		t.Error("Endpointing should default to a positive value")
	}
}

func TestBoostKeywordsCoverAppliances(t *testing.T) {
	want := []string{"washer", "dryer", "refrigerator", "dishwasher", "oven"}
	have := make(map[string]bool, len(boostKeywords))
	for _, kw := range boostKeywords {
		have[kw] = true
	}
	for _, w := range want {
		if !have[w] {
			t.Errorf("boostKeywords missing %q", w)
		}
	}
}
