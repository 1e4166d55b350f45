// Package vision analyzes customer-uploaded appliance photos with a
// multimodal model. Analysis runs off the call path; the dialogue polls for
// the stored result.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/rgaros/fixline/internal/speech"
)

const geminiAPIURLFmt = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"

// Analysis is the outcome of examining one uploaded image.
type Analysis struct {
	Summary         string `json:"summary"`
	Troubleshooting string `json:"troubleshooting"`
	// IsApplianceImage is false when the photo clearly shows something
	// other than a home appliance; the dialogue then asks for a re-upload.
	IsApplianceImage bool `json:"is_appliance_image"`
}

// Analyzer examines uploaded appliance photos.
type Analyzer interface {
	Analyze(ctx context.Context, imageData []byte, mimeType string, appliance speech.Appliance, symptomSummary string) Analysis
}

// GeminiAnalyzer implements Analyzer against the generateContent API. A
// failed model call yields the canned fallback analysis rather than an
// error; the caller always gets something to read back.
type GeminiAnalyzer struct {
	apiKey     string
	model      string
	logger     *log.Logger
	httpClient *http.Client
}

type GeminiConfig struct {
	APIKey string
	Model  string
	Logger *log.Logger
}

func NewGeminiAnalyzer(cfg GeminiConfig) *GeminiAnalyzer {
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &GeminiAnalyzer{
		apiKey:     cfg.APIKey,
		model:      model,
		logger:     logger,
		httpClient: &http.Client{},
	}
}

const visionPromptFmt = `You are an expert appliance repair technician analyzing an image sent by a customer.

Context from the customer's call:
%s

FIRST, determine if this image actually shows the appliance mentioned above (or any home appliance if none specified).

Then analyze this image and provide:

1. **IS_APPLIANCE_IMAGE**: true if this image shows a home appliance (washer, dryer, refrigerator, dishwasher, oven, HVAC, etc.), false if it shows something unrelated (person, pet, random object, blank, etc.)

2. **SUMMARY**: Describe what you observe in the image that is relevant to diagnosing the appliance issue. Look for:
   - Error codes or warning lights on displays
   - Visible damage, rust, or wear
   - Leaks, frost buildup, or condensation
   - Unusual positioning of parts
   - Model/serial number if visible
   If the image does NOT show an appliance, describe what you see instead.

3. **TROUBLESHOOTING**: Provide 2-4 safe troubleshooting steps the customer can try at home. Be specific and practical. If the issue appears serious or requires professional repair, clearly state that.
   If the image does NOT show an appliance, leave this empty.

Format your response as JSON:
{
    "is_appliance_image": true or false,
    "summary": "Your detailed observations here",
    "troubleshooting": "Step 1: ...\nStep 2: ...\nStep 3: ..."
}

Be strict about is_appliance_image - only set to true if you can clearly see a home appliance in the image.`

func visionPrompt(appliance speech.Appliance, symptomSummary string) string {
	var parts []string
	if appliance != speech.ApplianceNone {
		parts = append(parts, "Appliance type: "+string(appliance))
	}
	if symptomSummary != "" {
		parts = append(parts, "Reported symptoms: "+symptomSummary)
	}
	context := "No additional context provided."
	if len(parts) > 0 {
		context = strings.Join(parts, "\n")
	}
	return fmt.Sprintf(visionPromptFmt, context)
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
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

// Analyze sends the image to the model and parses the structured verdict.
func (a *GeminiAnalyzer) Analyze(ctx context.Context, imageData []byte, mimeType string, appliance speech.Appliance, symptomSummary string) Analysis {
	if a.apiKey == "" {
		a.logger.Printf("vision: no API key configured, using fallback analysis")
		return FallbackAnalysis(appliance, symptomSummary)
	}

	req := generateRequest{
		Contents: []content{{
			Parts: []part{
				{Text: visionPrompt(appliance, symptomSummary)},
				{InlineData: &inlineData{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(imageData),
				}},
			},
		}},
	}

	body, err := json.Marshal(req)
	if err != nil {
		a.logger.Printf("vision: failed to marshal request: %v", err)
		return FallbackAnalysis(appliance, symptomSummary)
	}

	url := fmt.Sprintf(geminiAPIURLFmt, a.model)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		a.logger.Printf("vision: failed to create request: %v", err)
		return FallbackAnalysis(appliance, symptomSummary)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", a.apiKey)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		a.logger.Printf("vision: request failed: %v", err)
		return FallbackAnalysis(appliance, symptomSummary)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		a.logger.Printf("vision: API error: %s - %s", resp.Status, string(respBody))
		return FallbackAnalysis(appliance, symptomSummary)
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		a.logger.Printf("vision: failed to decode response: %v", err)
		return FallbackAnalysis(appliance, symptomSummary)
	}
	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		a.logger.Printf("vision: no candidates in response")
		return FallbackAnalysis(appliance, symptomSummary)
	}

	return parseResponse(genResp.Candidates[0].Content.Parts[0].Text)
}

// parseResponse handles both clean JSON and the occasional prose answer.
func parseResponse(text string) Analysis {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var parsed struct {
		Summary          string          `json:"summary"`
		Troubleshooting  string          `json:"troubleshooting"`
		IsApplianceImage json.RawMessage `json:"is_appliance_image"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		// Prose answer: split at the troubleshooting heading and keep the
		// image flagged for human review.
		summary, troubleshooting := splitProse(text)
		return Analysis{
			Summary:          summary,
			Troubleshooting:  troubleshooting,
			IsApplianceImage: true,
		}
	}

	result := Analysis{
		Summary:          parsed.Summary,
		Troubleshooting:  parsed.Troubleshooting,
		IsApplianceImage: true,
	}
	if result.Summary == "" {
		result.Summary = "Analysis complete."
	}
	// The model sometimes emits the boolean as a quoted string.
	switch strings.Trim(strings.ToLower(string(parsed.IsApplianceImage)), `"`) {
	case "false":
		result.IsApplianceImage = false
	}
	return result
}

func splitProse(text string) (summary, troubleshooting string) {
	var summaryLines, stepLines []string
	inSteps := false
	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "troubleshoot") || strings.Contains(lower, "steps") {
			inSteps = true
			continue
		}
		if inSteps {
			stepLines = append(stepLines, line)
		} else {
			summaryLines = append(summaryLines, line)
		}
	}
	summary = strings.TrimSpace(strings.Join(summaryLines, "\n"))
	if summary == "" {
		summary = text
		if len(summary) > 500 {
			summary = summary[:500]
		}
	}
	return summary, strings.TrimSpace(strings.Join(stepLines, "\n"))
}

// FallbackAnalysis is the canned answer used when the model is unavailable.
func FallbackAnalysis(appliance speech.Appliance, symptomSummary string) Analysis {
	name := "appliance"
	if appliance != speech.ApplianceNone {
		name = string(appliance)
	}

	summary := fmt.Sprintf("Image received for %s diagnosis.", name)
	if symptomSummary != "" {
		summary += fmt.Sprintf(" Based on your reported issue (%s), a technician review is recommended.", symptomSummary)
	} else {
		summary += " Our team will review this image to assist with diagnosis."
	}

	troubleshooting := fmt.Sprintf(
		"Check that the %s is properly plugged in and receiving power\n"+
			"Inspect for any visible damage, leaks, or unusual sounds\n"+
			"Try unplugging the %s for 60 seconds then plugging it back in\n"+
			"If the issue persists, a technician visit may be necessary",
		name, name)

	return Analysis{
		Summary:          summary,
		Troubleshooting:  troubleshooting,
		IsApplianceImage: true,
	}
}

// MIMETypeForFilename maps an upload's extension to its MIME type.
func MIMETypeForFilename(name string) string {
	switch {
	case strings.HasSuffix(strings.ToLower(name), ".png"):
		return "image/png"
	case strings.HasSuffix(strings.ToLower(name), ".webp"):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
