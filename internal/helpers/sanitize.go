package helpers

import (
	"html"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicyOnce sync.Once
	strictPolicy     *bluemonday.Policy
)

// StrictHTMLPolicy returns a singleton bluemonday policy that strips every HTML
// element and attribute.
func StrictHTMLPolicy() *bluemonday.Policy {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

// StripMarkup turns an HTML-bearing fragment (search snippets, extracts)
// into plain text: tags are dropped, entities decoded and runs of
// whitespace collapsed.
func StripMarkup(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	// the policy re-escapes text it emits
	plain := html.UnescapeString(StrictHTMLPolicy().Sanitize(s))
	return strings.Join(strings.Fields(plain), " ")
}

// FirstSentence returns s up to (not including) the first '.'.
func FirstSentence(s string) string {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// ContainsAnyFold reports whether s contains any of the lower-case needles,
// ignoring case.
func ContainsAnyFold(s string, needles []string) bool {
	lower := strings.ToLower(s)
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}
