package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// minFragmentLength is the minimum cleaned length a message fragment must
// reach to be kept. Shorter fragments carry no reconstructible signal.
const minFragmentLength = 15

var (
	escapedUnicodeRe = regexp.MustCompile(`\\u([0-9a-fA-F]{4})`)
	whitespaceRe     = regexp.MustCompile(`\s+`)

	hexOrUUIDRe   = regexp.MustCompile(`^[0-9a-fA-F-]+$`)
	digitsOnlyRe  = regexp.MustCompile(`^[\d\s.,:-]+$`)
	bracketOnlyRe = regexp.MustCompile(`^[\[\]{}()"'` + "`" + `\s,]*$`)
	sentenceRe    = regexp.MustCompile(`[.?!]`)
)

// languageTriggers are words whose presence marks a fragment as natural
// language rather than serialized machine state.
var languageTriggers = []string{
	"the", "this", "that", "with", "have", "from",
	"how", "what", "why", "when", "where",
	"can", "could", "should", "would", "please",
	"error", "function", "file", "code", "test", "build",
	"help", "need", "want", "try", "fix", "create", "update",
}

// cleanFragment unescapes JSON and unicode escapes left over from mining
// serialized text out of a binary store and collapses runs of whitespace.
func cleanFragment(s string) string {
	s = strings.ReplaceAll(s, `\n`, " ")
	s = strings.ReplaceAll(s, `\r`, " ")
	s = strings.ReplaceAll(s, `\t`, " ")
	s = strings.ReplaceAll(s, `\"`, `"`)
	s = strings.ReplaceAll(s, `\\`, `\`)
	s = escapedUnicodeRe.ReplaceAllStringFunc(s, func(match string) string {
		code, err := strconv.ParseUint(match[2:], 16, 32)
		if err != nil {
			return " "
		}
		r := rune(code)
		if r < 0x20 {
			return " "
		}
		return string(r)
	})
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// isMeaningfulFragment applies the validity filter: minimum length, presence
// of a natural-language signal, and absence of noise patterns. Fragments
// failing the filter are silently dropped by callers.
func isMeaningfulFragment(s string) bool {
	if len(s) < minFragmentLength {
		return false
	}
	if isNoiseFragment(s) {
		return false
	}
	return hasLanguageSignal(s)
}

func isNoiseFragment(s string) bool {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) <= 1 {
		return true
	}
	if hexOrUUIDRe.MatchString(trimmed) {
		return true
	}
	if digitsOnlyRe.MatchString(trimmed) {
		return true
	}
	if bracketOnlyRe.MatchString(trimmed) {
		return true
	}
	return false
}

func hasLanguageSignal(s string) bool {
	lower := strings.ToLower(s)
	for _, trigger := range languageTriggers {
		if containsWord(lower, trigger) {
			return true
		}
	}
	if sentenceRe.MatchString(s) {
		return true
	}
	return len(strings.Fields(s)) >= 3
}

func containsWord(haystack, word string) bool {
	idx := 0
	for {
		pos := strings.Index(haystack[idx:], word)
		if pos < 0 {
			return false
		}
		pos += idx
		beforeOK := pos == 0 || !isWordRune(rune(haystack[pos-1]))
		afterPos := pos + len(word)
		afterOK := afterPos >= len(haystack) || !isWordRune(rune(haystack[afterPos]))
		if beforeOK && afterOK {
			return true
		}
		idx = pos + 1
	}
}

func isWordRune(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
