package llm

import "fmt"

// Prompts kept deliberately rigid: the model must answer with a bare word or
// bare JSON so the parsers stay simple. Temperature is pinned low for the
// same reason.

const intentPromptFmt = `You are a classification assistant for a home appliance service company.
From the caller's opening description, extract structured information.

Always respond in valid JSON with exactly these keys:
- "appliance_type": one of "washer", "dryer", "refrigerator", "dishwasher", "oven", "hvac", or "" if no appliance is identifiable
- "symptoms": string (the problem as described, or "" if none given)
- "wants_scheduling": boolean (true if the caller explicitly asks for a technician, appointment, repair visit, or service call)
- "has_full_description": boolean (true if the caller described a specific problem with enough detail to diagnose, not just "it's broken")
- "intent": one of "repair_request", "question", "other"

Caller's words:
%s`

const appliancePromptFmt = `You are a classification assistant. From the user text, identify the APPLIANCE TYPE only.
Valid answers: washer, dryer, refrigerator, dishwasher, oven, hvac, other.
Reply with just one of these words in lowercase, with no extra text.

User text:
%s`

const symptomPromptFmt = `You are a home appliance service assistant.
From the caller's description, extract structured information.

Always respond in valid JSON with exactly these keys:
- "symptom_summary": string (a concise 1-2 sentence summary of the problem)
- "error_codes": list of strings (error codes like "E23", "F21", etc.)
- "is_urgent": boolean (true if safety issue, flooding, fire risk, gas smell, etc.)

If there are no obvious error codes, use an empty list for "error_codes".
If it does not sound urgent, use false for "is_urgent".

Caller description:
%s`

const resolutionPromptFmt = `You are a home appliance service assistant. The caller just tried some troubleshooting steps and responded.
Decide whether their response means the problem is now solved.

Reply with exactly one word, lowercase, no extra text:
- "fixed" if the problem is solved
- "not_fixed" if the problem remains
- "unclear" if you cannot tell

Caller's response:
%s`

const relevancePromptFmt = `You are a classification assistant for a home appliance service company.
Determine if the user's message is related to home appliances (washer, dryer, refrigerator, dishwasher, oven, HVAC, etc.).

Reply with ONLY "yes" or "no" (lowercase, no extra text).
- "yes" if the message mentions or implies a home appliance
- "no" if it's unrelated (random words, greetings without context, off-topic questions)

User message:
%s`

func intentPrompt(userText string) string     { return fmt.Sprintf(intentPromptFmt, userText) }
func appliancePrompt(userText string) string  { return fmt.Sprintf(appliancePromptFmt, userText) }
func symptomPrompt(userText string) string    { return fmt.Sprintf(symptomPromptFmt, userText) }
func resolutionPrompt(userText string) string { return fmt.Sprintf(resolutionPromptFmt, userText) }
func relevancePrompt(userText string) string  { return fmt.Sprintf(relevancePromptFmt, userText) }
