// Package speech turns noisy transcribed caller speech into the typed
// signals the dialogue state machine consumes. Everything in this package
// is a pure function of its input; no I/O, no hidden state.
package speech

import (
	"regexp"
	"strings"
	"unicode"
)

// YesNo is the result of classifying a confirmation-style utterance.
// Both fields false means the utterance was neither a clear yes nor a
// clear no and the caller should be re-prompted.
type YesNo struct {
	IsYes bool
	IsNo  bool
}

var yesPhrases = []string{
	"yes", "yeah", "yep", "yup", "ok", "okay", "correct", "right",
	"affirmative", "that's right", "that is right", "that's correct",
}

var noPhrases = []string{
	"no", "nope", "wrong", "incorrect", "that's wrong", "that is wrong",
	"negative", "try again", "not right",
}

// ClassifyYesNo checks whether any token or short phrase in the utterance
// belongs to the fixed affirmative or negative sets.
func ClassifyYesNo(text string) YesNo {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return YesNo{}
	}
	tokens := map[string]bool{}
	for _, t := range strings.Fields(lower) {
		tokens[strings.Trim(t, ".,!?")] = true
	}
	matches := func(phrases []string) bool {
		for _, p := range phrases {
			if strings.Contains(p, " ") {
				if strings.Contains(lower, p) {
					return true
				}
			} else if tokens[p] {
				return true
			}
		}
		return false
	}
	// Negative phrases win ties like "no that's wrong, not right".
	if matches(noPhrases) {
		return YesNo{IsNo: true}
	}
	if matches(yesPhrases) {
		return YesNo{IsYes: true}
	}
	return YesNo{}
}

// Appliance is one of the canonical appliance types the service handles.
type Appliance string

const (
	ApplianceNone         Appliance = ""
	ApplianceWasher       Appliance = "washer"
	ApplianceDryer        Appliance = "dryer"
	ApplianceRefrigerator Appliance = "refrigerator"
	ApplianceDishwasher   Appliance = "dishwasher"
	ApplianceOven         Appliance = "oven"
	ApplianceHVAC         Appliance = "hvac"
)

// applianceKeywords maps spoken phrases to canonical types. Ordered so that
// "dishwasher" is checked before "washer" (substring collision).
var applianceKeywords = []struct {
	phrase string
	typ    Appliance
}{
	{"dishwasher", ApplianceDishwasher},
	{"washing machine", ApplianceWasher},
	{"washer", ApplianceWasher},
	{"dryer", ApplianceDryer},
	{"fridge", ApplianceRefrigerator},
	{"refrigerator", ApplianceRefrigerator},
	{"oven", ApplianceOven},
	{"stove", ApplianceOven},
	{"air conditioner", ApplianceHVAC},
	{"hvac", ApplianceHVAC},
	{"ac", ApplianceHVAC},
}

// InferAppliance returns the canonical appliance type mentioned in the text,
// or ApplianceNone if nothing matches. First match wins.
func InferAppliance(text string) Appliance {
	lower := strings.ToLower(text)
	for _, kw := range applianceKeywords {
		if kw.phrase == "ac" {
			// "ac" collides with too many English words for a substring
			// check; require it as a standalone token.
			for _, tok := range strings.Fields(lower) {
				if strings.Trim(tok, ".,!?") == "ac" {
					return kw.typ
				}
			}
			continue
		}
		if strings.Contains(lower, kw.phrase) {
			return kw.typ
		}
	}
	return ApplianceNone
}

// Brand names and generic appliance nouns used as a fast pre-filter before
// asking the language model whether an utterance is appliance-related at all.
var applianceBrands = []string{
	"samsung", "lg", "whirlpool", "ge", "general electric", "maytag",
	"frigidaire", "kenmore", "bosch", "kitchenaid", "electrolux", "amana",
	"hotpoint", "haier", "thermador", "viking", "sub-zero", "subzero",
	"wolf", "miele", "speed queen", "carrier", "trane", "lennox", "rheem",
	"goodman", "daikin", "mitsubishi",
}

var applianceNouns = []string{
	"washer", "washing", "dryer", "drying", "fridge", "refrigerator",
	"freezer", "dishwasher", "dishes", "oven", "stove", "range", "cooktop",
	"microwave", "hvac", "heating", "cooling", "air conditioner", "ac",
	"furnace", "heat pump",
}

// ContainsApplianceHint reports whether the text mentions a known brand or
// appliance noun. Short tokens ("lg", "ge", "ac") are matched per token to
// avoid false substring hits.
func ContainsApplianceHint(text string) bool {
	lower := strings.ToLower(text)
	tokens := map[string]bool{}
	for _, t := range strings.Fields(lower) {
		tokens[strings.Trim(t, ".,!?")] = true
	}
	check := func(words []string) bool {
		for _, w := range words {
			if len(w) <= 3 && !strings.Contains(w, " ") {
				if tokens[w] {
					return true
				}
				continue
			}
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}
	return check(applianceBrands) || check(applianceNouns)
}

// Filler prefixes stripped before name extraction.
var nameFillers = []string{"uh", "um", "yeah", "so", "well", "okay", "ok", "hey", "hi", "hello"}

var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bmy name is ([a-zA-Z]+)`),
	regexp.MustCompile(`(?i)\bi'm ([a-zA-Z]+)`),
	regexp.MustCompile(`(?i)\bi am ([a-zA-Z]+)`),
	regexp.MustCompile(`(?i)\bthis is ([a-zA-Z]+)`),
	regexp.MustCompile(`(?i)\bit's ([a-zA-Z]+)`),
	regexp.MustCompile(`(?i)\bcall me ([a-zA-Z]+)`),
}

var nameStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "my": true, "name": true,
	"this": true, "it": true, "its": true, "and": true, "to": true,
	"calling": true, "speaking": true, "here": true,
}

// ExtractName pulls a first name out of a freeform introduction. Returns
// false when no plausible name is found; callers fall back to a generic
// address term rather than guessing.
func ExtractName(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	for {
		stripped := false
		lower := strings.ToLower(trimmed)
		for _, f := range nameFillers {
			if strings.HasPrefix(lower, f) {
				rest := trimmed[len(f):]
				if rest == "" || rest[0] == ' ' || rest[0] == ',' || rest[0] == '.' {
					trimmed = strings.TrimLeft(rest, " ,.")
					stripped = true
					break
				}
			}
		}
		if !stripped {
			break
		}
	}

	for _, pat := range namePatterns {
		if m := pat.FindStringSubmatch(trimmed); m != nil {
			return titleCase(m[1]), true
		}
	}

	for _, tok := range strings.Fields(trimmed) {
		tok = strings.Trim(tok, ".,!?")
		if len(tok) < 2 || nameStopwords[strings.ToLower(tok)] {
			continue
		}
		if isAlphabetic(tok) {
			return titleCase(tok), true
		}
	}
	return "", false
}

func isAlphabetic(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

var nonDigits = regexp.MustCompile(`\D`)

// ExtractZIP strips non-digits and takes the first five digits as the ZIP
// code. Returns false when fewer than five digits were spoken.
func ExtractZIP(text string) (string, bool) {
	digits := nonDigits.ReplaceAllString(text, "")
	if len(digits) < 5 {
		return "", false
	}
	return digits[:5], true
}

// TimePreference is the caller's stated morning/afternoon preference.
// Empty means no preference.
type TimePreference string

const (
	PreferAny       TimePreference = ""
	PreferMorning   TimePreference = "morning"
	PreferAfternoon TimePreference = "afternoon"
)

// ParseTimePreference maps an utterance to a coarse time-of-day preference.
// "evening" counts as afternoon; anything else means no preference.
func ParseTimePreference(text string) TimePreference {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "morning"):
		return PreferMorning
	case strings.Contains(lower, "afternoon"), strings.Contains(lower, "evening"):
		return PreferAfternoon
	default:
		return PreferAny
	}
}

// Ordinal cues for slot selection. Ordinal words outrank bare number
// words so "the second one" reads as 2, not 1.
var ordinalWords = map[string]int{
	"first": 1, "1st": 1,
	"second": 2, "2nd": 2,
	"third": 3, "3rd": 3,
}

var numberCues = map[string]int{
	"1": 1, "one": 1,
	"2": 2, "two": 2,
	"3": 3, "three": 3,
}

// Words before "one" that mark it as a pronoun rather than a count, as in
// "the last one".
var onePronounLead = map[string]bool{
	"last": true, "which": true, "that": true, "this": true,
	"each": true, "any": true, "no": true, "other": true,
}

// MatchOrdinal finds which of up to max offered options the caller picked,
// 1-based. Returns -1 when no ordinal cue is present or the cue exceeds max.
func MatchOrdinal(text string, max int) int {
	var tokens []string
	for _, t := range strings.Fields(strings.ToLower(text)) {
		tokens = append(tokens, strings.Trim(t, ".,!?"))
	}
	for _, tok := range tokens {
		if n, ok := ordinalWords[tok]; ok {
			if n <= max {
				return n
			}
			return -1
		}
	}
	for i, tok := range tokens {
		n, ok := numberCues[tok]
		if !ok {
			continue
		}
		if n == 1 && i > 0 && onePronounLead[tokens[i-1]] {
			continue
		}
		if n <= max {
			return n
		}
		return -1
	}
	return -1
}
