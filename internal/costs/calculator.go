// Package costs provides cost calculation for API usage.
package costs

import (
	"os"
	"strconv"
)

// Pricing constants (in cents per unit for precision).
// These are based on 2026 market rates and can be overridden via environment variables.
var (
	// TwilioCentsPerMinute is the cost per minute for Twilio inbound voice calls.
	// Default: $0.0085/min = 0.85 cents/min
	TwilioCentsPerMinute = getEnvFloat("COST_TWILIO_CENTS_PER_MIN", 0.85)

	// DeepgramCentsPerMinute is the cost per minute for Deepgram Nova-3 streaming STT.
	// Default: $0.0077/min = 0.77 cents/min
	DeepgramCentsPerMinute = getEnvFloat("COST_DEEPGRAM_CENTS_PER_MIN", 0.77)

	// GeminiCentsPerThousandInputTokens is the cost per 1K input tokens for Gemini 2.0 Flash.
	// Default: $0.10/1M = 0.01 cents/1K tokens
	GeminiCentsPerThousandInputTokens = getEnvFloat("COST_GEMINI_INPUT_CENTS_PER_1K", 0.01)

	// GeminiCentsPerThousandOutputTokens is the cost per 1K output tokens for Gemini 2.0 Flash.
	// Default: $0.40/1M = 0.04 cents/1K tokens
	GeminiCentsPerThousandOutputTokens = getEnvFloat("COST_GEMINI_OUTPUT_CENTS_PER_1K", 0.04)

	// VisionCentsPerImage is the flat cost per image analysis request.
	// Default: 0.03 cents per image
	VisionCentsPerImage = getEnvFloat("COST_VISION_CENTS_PER_IMAGE", 0.03)

	// EmailCentsPerSend is the cost per transactional email.
	// Default: $0.001 = 0.1 cents per email
	EmailCentsPerSend = getEnvFloat("COST_EMAIL_CENTS_PER_SEND", 0.1)
)

// CallMetrics contains the raw metrics from a call used for cost calculation.
type CallMetrics struct {
	CallDurationSeconds int // Total call duration (for Twilio billing)
	STTDurationSeconds  int // Audio processed by STT (may differ from call duration)
	LLMInputTokens      int // Tokens sent to the language model
	LLMOutputTokens     int // Tokens received from the language model
	ImagesAnalyzed      int // Uploaded photos run through vision analysis
	EmailsSent          int // Upload links emailed during the call
}

// CallCosts contains the calculated costs for a call in cents.
type CallCosts struct {
	TwilioCostCents int
	STTCostCents    int
	LLMCostCents    int
	VisionCostCents int
	EmailCostCents  int
	TotalCostCents  int
}

// CalculateCallCosts computes the costs for a call based on usage metrics.
func CalculateCallCosts(m CallMetrics) CallCosts {
	callMinutes := float64(m.CallDurationSeconds) / 60.0
	sttMinutes := float64(m.STTDurationSeconds) / 60.0

	twilioCents := callMinutes * TwilioCentsPerMinute
	sttCents := sttMinutes * DeepgramCentsPerMinute

	// LLM costs: per 1K tokens
	llmInputCents := (float64(m.LLMInputTokens) / 1000.0) * GeminiCentsPerThousandInputTokens
	llmOutputCents := (float64(m.LLMOutputTokens) / 1000.0) * GeminiCentsPerThousandOutputTokens
	llmCents := llmInputCents + llmOutputCents

	visionCents := float64(m.ImagesAnalyzed) * VisionCentsPerImage
	emailCents := float64(m.EmailsSent) * EmailCentsPerSend

	// Round to nearest cent (we store as integers)
	costs := CallCosts{
		TwilioCostCents: roundToInt(twilioCents),
		STTCostCents:    roundToInt(sttCents),
		LLMCostCents:    roundToInt(llmCents),
		VisionCostCents: roundToInt(visionCents),
		EmailCostCents:  roundToInt(emailCents),
	}
	costs.TotalCostCents = costs.TwilioCostCents + costs.STTCostCents + costs.LLMCostCents +
		costs.VisionCostCents + costs.EmailCostCents

	return costs
}

// roundToInt rounds a float to the nearest integer.
func roundToInt(f float64) int {
	if f < 0 {
		return int(f - 0.5)
	}
	return int(f + 0.5)
}

// getEnvFloat returns an environment variable as float64, or the default if not set.
func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
