package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/rgaros/fixline/internal/speech"
)

const geminiAPIURLFmt = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"

// GeminiClient implements the Client interface against Google's
// generateContent API. Every method falls back to keyword classification
// when the model call fails, so a model outage degrades accuracy but never
// breaks a call in progress.
type GeminiClient struct {
	apiKey     string
	model      string
	logger     *log.Logger
	httpClient *http.Client
}

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey string
	Model  string // e.g., "gemini-2.0-flash"
	Logger *log.Logger
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &GeminiClient{
		apiKey:     cfg.APIKey,
		model:      model,
		logger:     logger,
		httpClient: &http.Client{},
	}
}

type generateRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// generate sends one prompt and returns the model's text answer.
func (c *GeminiClient) generate(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("no API key configured")
	}

	req := generateRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: generationConfig{
			Temperature:     0.1,
			MaxOutputTokens: 256,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf(geminiAPIURLFmt, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Gemini API error: %s - %s", resp.Status, string(respBody))
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}
	return strings.TrimSpace(genResp.Candidates[0].Content.Parts[0].Text), nil
}

// stripFences removes a markdown code fence the model sometimes wraps JSON
// answers in.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// ClassifyIntent reads the caller's opening description of their need.
func (c *GeminiClient) ClassifyIntent(ctx context.Context, userText string) IntentResult {
	fallback := keywordIntent(userText)

	raw, err := c.generate(ctx, intentPrompt(userText))
	if err != nil {
		c.logger.Printf("llm: intent classification failed: %v", err)
		return fallback
	}

	var result IntentResult
	if err := json.Unmarshal([]byte(stripFences(raw)), &result); err != nil {
		c.logger.Printf("llm: intent result unparseable: %v (content: %s)", err, raw)
		return fallback
	}
	if !validAppliance(result.Appliance) {
		result.Appliance = speech.ApplianceNone
	}
	// The model occasionally misses explicit scheduling language the
	// keyword pass catches. Stated intent wins.
	if fallback.WantsScheduling {
		result.WantsScheduling = true
	}
	if result.Appliance == speech.ApplianceNone {
		result.Appliance = fallback.Appliance
	}
	return result
}

// ClassifyAppliance identifies a single appliance type, or none.
func (c *GeminiClient) ClassifyAppliance(ctx context.Context, userText string) speech.Appliance {
	if a := speech.InferAppliance(userText); a != speech.ApplianceNone {
		return a
	}

	raw, err := c.generate(ctx, appliancePrompt(userText))
	if err != nil {
		c.logger.Printf("llm: appliance classification failed: %v", err)
		return speech.ApplianceNone
	}

	answer := speech.Appliance(strings.ToLower(strings.TrimSpace(raw)))
	if validAppliance(answer) {
		return answer
	}
	return speech.ApplianceNone
}

// ExtractSymptoms pulls a summary, error codes and urgency out of a problem
// description.
func (c *GeminiClient) ExtractSymptoms(ctx context.Context, userText string) SymptomResult {
	fallback := SymptomResult{Summary: userText, ErrorCodes: []string{}}

	raw, err := c.generate(ctx, symptomPrompt(userText))
	if err != nil {
		c.logger.Printf("llm: symptom extraction failed: %v", err)
		return fallback
	}

	var result SymptomResult
	if err := json.Unmarshal([]byte(stripFences(raw)), &result); err != nil {
		c.logger.Printf("llm: symptom result unparseable: %v (content: %s)", err, raw)
		return fallback
	}
	if result.Summary == "" {
		result.Summary = userText
	}
	if result.ErrorCodes == nil {
		result.ErrorCodes = []string{}
	}
	return result
}

// InterpretResolution decides whether the caller's response after
// troubleshooting means the problem is solved.
func (c *GeminiClient) InterpretResolution(ctx context.Context, userText string) Resolution {
	raw, err := c.generate(ctx, resolutionPrompt(userText))
	if err != nil {
		c.logger.Printf("llm: resolution interpretation failed: %v", err)
		return keywordResolution(userText)
	}

	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "fixed":
		return ResolutionFixed
	case "not_fixed":
		return ResolutionNotFixed
	case "unclear":
		return ResolutionUnclear
	}
	return keywordResolution(userText)
}

// IsApplianceRelated checks that an utterance is about a home appliance at
// all. Brand and keyword hits short-circuit the model call.
func (c *GeminiClient) IsApplianceRelated(ctx context.Context, userText string) bool {
	if speech.ContainsApplianceHint(userText) {
		return true
	}

	raw, err := c.generate(ctx, relevancePrompt(userText))
	if err != nil {
		c.logger.Printf("llm: relevance check failed: %v", err)
		// Assume related on error to avoid blocking the flow.
		return true
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(raw)), "yes")
}

func validAppliance(a speech.Appliance) bool {
	switch a {
	case speech.ApplianceWasher, speech.ApplianceDryer, speech.ApplianceRefrigerator,
		speech.ApplianceDishwasher, speech.ApplianceOven, speech.ApplianceHVAC:
		return true
	}
	return false
}
