package safety

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

// SanitizeContext selects the sanitization profile.
type SanitizeContext string

const (
	ContextStorage SanitizeContext = "storage"
	ContextLLM     SanitizeContext = "llm"
	ContextDisplay SanitizeContext = "display"
)

// Per-context maximum lengths, enforced by truncation.
var contextMaxLen = map[SanitizeContext]int{
	ContextStorage: 10_000,
	ContextLLM:     8_000,
	ContextDisplay: 20_000,
}

var (
	htmlTagRe = regexp.MustCompile(`<[^>]*>`)

	// Instruction-injection, role-swap, template and encoded-payload shapes
	// neutralized before text reaches a model.
	injectionRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bignore\s+(all\s+)?(previous|prior|above)\s+(instructions|prompts|rules)\b`),
		regexp.MustCompile(`(?i)\bdisregard\s+(your|the|all)\s+(instructions|system\s+prompt|rules)\b`),
		regexp.MustCompile(`(?i)\bsystem\s*:\s*`),
		regexp.MustCompile(`(?i)\bassistant\s*:\s*`),
		regexp.MustCompile(`(?i)\byou\s+are\s+now\b`),
		regexp.MustCompile(`\{\{[^}]*\}\}`),
		regexp.MustCompile(`\$\{[^}]*\}`),
		regexp.MustCompile(`<\|[a-z_]+\|>`),
		regexp.MustCompile(`(?i)\bbase64\s*:\s*[A-Za-z0-9+/=]{24,}`),
	}

	// Tight allow-list of block tags restored after display escaping.
	displayAllowed = []string{"p", "br", "strong", "em", "ul", "ol", "li", "blockquote"}
)

// Sanitize cleans the input for the given context and reports whether the
// value was modified.
func Sanitize(input string, sctx SanitizeContext) (string, bool) {
	out := input

	// CR normalizes into LF; NUL bytes drop outright.
	out = strings.ReplaceAll(out, "\r\n", "\n")
	out = strings.ReplaceAll(out, "\r", "\n")
	out = strings.ReplaceAll(out, "\x00", "")
	out = stripControl(out)

	switch sctx {
	case ContextStorage:
		out = htmlTagRe.ReplaceAllString(out, "")
	case ContextLLM:
		out = htmlTagRe.ReplaceAllString(out, "")
		for _, re := range injectionRes {
			out = re.ReplaceAllString(out, "[filtered]")
		}
	case ContextDisplay:
		out = html.EscapeString(out)
		for _, tag := range displayAllowed {
			out = strings.ReplaceAll(out, "&lt;"+tag+"&gt;", "<"+tag+">")
			out = strings.ReplaceAll(out, "&lt;/"+tag+"&gt;", "</"+tag+">")
		}
	}

	if max := contextMaxLen[sctx]; max > 0 && len(out) > max {
		out = truncateRunes(out, max)
	}
	out = strings.TrimSpace(out)

	return out, out != input
}

// truncateRunes cuts s to at most max bytes without splitting a UTF-8
// sequence.
func truncateRunes(s string, max int) string {
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// stripControl drops control characters except LF.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}
