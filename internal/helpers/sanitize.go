package helpers

import (
	"html"
	"strings"
	"sync"

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

// SanitizeHTMLStrict removes every HTML tag from s and returns plain text with
// entities decoded. Provider metadata (titles, abstracts) goes through here.
func SanitizeHTMLStrict(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	out := html.UnescapeString(StrictHTMLPolicy().Sanitize(s))
	return strings.Join(strings.Fields(out), " ")
}

// SanitizeMarkdown strips raw HTML from generated prose while keeping markdown
// syntax (headings, lists, emphasis, blockquotes, links) intact. Entities the
// policy escapes are decoded again; if decoding exposes new markup, a second
// pass removes it.
func SanitizeMarkdown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	policy := StrictHTMLPolicy()
	out := html.UnescapeString(policy.Sanitize(s))
	if strings.ContainsRune(out, '<') {
		if again := html.UnescapeString(policy.Sanitize(out)); again != out {
			out = again
		}
	}
	return strings.TrimSpace(out)
}
