package speech

import (
	"fmt"
	"regexp"
	"strings"
)

// Spoken email extraction. Callers read their address out loud ("k a s i at
// gmail dot com", "john at the rate gmail dot com") and the recognizer adds
// its own artifacts ("s. h. i. n. y."). The pipeline below is ordered; each
// step assumes the ones before it already ran.

// TLDs protected before punctuation stripping so "gmail.com" survives the
// spelled-letter collapse. Longest first.
var protectedTLDs = []string{".co.uk", ".com", ".net", ".org", ".edu", ".io"}

// TLDs an extracted address may end with. Anything else is rejected rather
// than guessed.
var allowedTLDs = []string{".com", ".net", ".org", ".edu", ".gov", ".io", ".co", ".uk", ".ca", ".in"}

var emailFillers = []string{
	"my email address is", "my email is", "it's", "its",
	"yeah", "yes", "sure", "um", "uh", "like", "so", "okay", "ok",
}

// Spoken "@" variants, most specific first so "at the rate" is not eaten by
// the bare "at" rule.
var atVariants = []string{"at the rate", "at rate", "a great", "at sign", "at symbol", "at"}

var providerFixups = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)\b(?:g mail|gee mail|jmail)\b`), "gmail"},
	{regexp.MustCompile(`(?i)\byahoo\b`), "yahoo"},
	{regexp.MustCompile(`(?i)\boutlook\b`), "outlook"},
	{regexp.MustCompile(`(?i)\bhotmail\b`), "hotmail"},
	{regexp.MustCompile(`(?i)\bicloud\b`), "icloud"},
}

// Spoken TLD phrases, multi-word first so "dot co dot uk" normalizes as a
// unit before generic "dot" collapsing sees it.
var tldPhrases = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)\s*\bdot co dot uk\b`), ".co.uk"},
	{regexp.MustCompile(`(?i)\s*\bdot com\b`), ".com"},
	{regexp.MustCompile(`(?i)\s*\bdot net\b`), ".net"},
	{regexp.MustCompile(`(?i)\s*\bdot org\b`), ".org"},
	{regexp.MustCompile(`(?i)\s*\bdot edu\b`), ".edu"},
	{regexp.MustCompile(`(?i)\s*\bdot io\b`), ".io"},
}

var numberWords = map[string]string{
	"zero": "0", "oh": "0", "o": "0",
	"one": "1", "won": "1",
	"two": "2", "to": "2", "too": "2",
	"three": "3", "tree": "3",
	"four": "4", "for": "4", "fore": "4",
	"five": "5",
	"six": "6", "sicks": "6",
	"seven": "7",
	"eight": "8", "ate": "8",
	"nine": "9", "niner": "9",
}

var (
	spokenPunct    = regexp.MustCompile(`([a-zA-Z0-9 ])[.,]([a-zA-Z0-9 ])`)
	fillerRes      = buildFillerRes()
	atRes          = buildAtRes()
	standaloneDot  = regexp.MustCompile(`(?i)(\S)\s+dot\s+(\S)`)
	standaloneSym  = regexp.MustCompile(`(?i)(\S)\s+(underscore|dash|hyphen|plus)\s+(\S)`)
	digitRun       = regexp.MustCompile(`(\d)\s+(\d)`)
	strayPunct     = regexp.MustCompile(`([a-zA-Z])\s*[;:!?]\s*([a-zA-Z])`)
	multiSpace     = regexp.MustCompile(`\s{2,}`)
	atSpace        = regexp.MustCompile(`\s*@\s*`)
	emailShape     = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	trailingPunct  = regexp.MustCompile(`[.,;:!?]+$`)
	tldPlaceholder = "\x00%d\x00"
)

func buildFillerRes() []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(emailFillers))
	for _, f := range emailFillers {
		out = append(out, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(f)+`\b`))
	}
	return out
}

func buildAtRes() []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(atVariants))
	for _, v := range atVariants {
		out = append(out, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(v)+`\b`))
	}
	return out
}

// NormalizeSpokenEmail runs the full spoken-form cleanup and returns the
// normalized text. It does not validate; see ExtractEmail.
func NormalizeSpokenEmail(raw string) string {
	text := strings.TrimSpace(raw)

	// 1. Protect literal TLD sequences behind placeholders.
	for i, tld := range protectedTLDs {
		text = strings.ReplaceAll(text, tld, fmt.Sprintf(tldPlaceholder, i))
	}

	// 2. Periods/commas between alphanumerics (or spaces) are spelled-letter
	// artifacts ("s. h. i. n. y."); turn them into spaces. Repeat because
	// matches overlap.
	for {
		next := spokenPunct.ReplaceAllString(text, "$1 $2")
		if next == text {
			break
		}
		text = next
	}

	// 3. Restore protected TLDs.
	for i, tld := range protectedTLDs {
		text = strings.ReplaceAll(text, fmt.Sprintf(tldPlaceholder, i), tld)
	}

	// 4. Drop filler words and lead-in phrases.
	for _, re := range fillerRes {
		text = re.ReplaceAllString(text, " ")
	}

	// 5. Spoken "@" variants, specific phrasings first.
	for _, re := range atRes {
		text = re.ReplaceAllString(text, "@")
	}

	// 6. Provider name fixups.
	for _, p := range providerFixups {
		text = p.re.ReplaceAllString(text, p.repl)
	}

	// 7. Spoken TLD phrases before generic dot collapsing.
	for _, p := range tldPhrases {
		text = p.re.ReplaceAllString(text, p.repl)
	}

	// 8. Remaining standalone "dot" tokens between words become periods, and
	// spelled symbol names become their characters.
	for {
		next := standaloneDot.ReplaceAllString(text, "$1.$2")
		next = standaloneSym.ReplaceAllStringFunc(next, replaceSpokenSymbol)
		if next == text {
			break
		}
		text = next
	}

	// 9. Spoken number words to digits, token by token.
	tokens := strings.Fields(text)
	for i, tok := range tokens {
		trimmed := trailingPunct.ReplaceAllString(tok, "")
		suffix := tok[len(trimmed):]
		if d, ok := numberWords[strings.ToLower(trimmed)]; ok {
			tokens[i] = d + suffix
		}
	}
	text = strings.Join(tokens, " ")

	// 10. Collapse single digits separated by spaces into one run.
	for {
		next := digitRun.ReplaceAllString(text, "$1$2")
		if next == text {
			break
		}
		text = next
	}

	// 11. Stray punctuation between letter tokens.
	text = strayPunct.ReplaceAllString(text, "$1 $2")

	// 12. Collapse runs of spelled-out single letters ("k a s i" -> "kasi").
	// Runs never cross "@" or "." tokens, which keeps already-normalized
	// email structure intact.
	text = collapseSpelledRuns(text)

	// 13. Collapse repeated whitespace.
	text = strings.TrimSpace(multiSpace.ReplaceAllString(text, " "))

	return text
}

func replaceSpokenSymbol(match string) string {
	parts := standaloneSym.FindStringSubmatch(match)
	var sym string
	switch strings.ToLower(parts[2]) {
	case "underscore":
		sym = "_"
	case "plus":
		sym = "+"
	default:
		sym = "-"
	}
	return parts[1] + sym + parts[3]
}

func collapseSpelledRuns(text string) string {
	tokens := strings.Fields(text)
	var out []string
	i := 0
	for i < len(tokens) {
		j := i
		for j < len(tokens) && len(tokens[j]) == 1 && isAlphabetic(tokens[j]) {
			j++
		}
		if j-i >= 2 {
			out = append(out, strings.Join(tokens[i:j], ""))
			i = j
			continue
		}
		out = append(out, tokens[i])
		i++
	}
	return strings.Join(out, " ")
}

// ExtractEmail normalizes spoken-form text and extracts a valid address.
// Returns false when no allow-listed address is present; absence is a
// distinct outcome, never a guessed string.
func ExtractEmail(raw string) (string, bool) {
	text := NormalizeSpokenEmail(raw)
	text = atSpace.ReplaceAllString(text, "@")
	text = trailingPunct.ReplaceAllString(text, "")

	candidate := emailShape.FindString(text)
	if candidate == "" {
		// Retry with all whitespace removed; spelled addresses sometimes
		// leave gaps the run collapse couldn't close.
		candidate = emailShape.FindString(strings.ReplaceAll(text, " ", ""))
	}
	if candidate == "" {
		return "", false
	}
	if !hasAllowedTLD(candidate) {
		return "", false
	}
	return strings.ToLower(candidate), true
}

func hasAllowedTLD(email string) bool {
	idx := strings.LastIndex(email, ".")
	if idx < 0 {
		return false
	}
	tld := strings.ToLower(email[idx:])
	for _, allowed := range allowedTLDs {
		if tld == allowed {
			return true
		}
	}
	return false
}

// SpeakEmail renders an address the way a person would read it out:
// "kasi at gmail dot com".
func SpeakEmail(email string) string {
	speakPart := func(part string) string {
		part = strings.ReplaceAll(part, ".", " dot ")
		part = strings.ReplaceAll(part, "_", " underscore ")
		part = strings.ReplaceAll(part, "-", " dash ")
		return multiSpace.ReplaceAllString(part, " ")
	}
	local, domain, found := strings.Cut(email, "@")
	if !found {
		return speakPart(email)
	}
	return speakPart(local) + " at " + speakPart(domain)
}

// SpellEmail renders an address character by character for strict
// confirmation: "k, a, s, i, at, g, m, a, i, l, dot, c, o, m".
func SpellEmail(email string) string {
	parts := make([]string, 0, len(email))
	for _, r := range email {
		switch r {
		case '@':
			parts = append(parts, "at")
		case '.':
			parts = append(parts, "dot")
		case '_':
			parts = append(parts, "underscore")
		case '-':
			parts = append(parts, "dash")
		case '+':
			parts = append(parts, "plus")
		default:
			parts = append(parts, string(r))
		}
	}
	return strings.Join(parts, ", ")
}

// EmailConfirmationPrompt combines the natural and spelled renderings into
// the yes/no confirmation question the agent speaks.
func EmailConfirmationPrompt(email string) string {
	return fmt.Sprintf(
		"I heard your email as %s. Let me spell that out: %s. Is that correct? Please say yes or no.",
		SpeakEmail(email), SpellEmail(email),
	)
}
