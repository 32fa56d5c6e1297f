package models

import (
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/crypto/blake2b"
)

// NormalizeText lower-cases s and collapses all whitespace runs to one space.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Fingerprint returns the identity key of a paper: a digest of its
// normalized title and normalized, joined author list. Relevance, year, url and
// abstract do not take part in identity.
func Fingerprint(title string, authors []string) string {
	key := NormalizeText(title) + "\x1f" + NormalizeText(strings.Join(authors, ", "))
	sum := blake2b.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16])
}

// topicCutset is stripped from both ends of a topic: quotes, list bullets and
// sentence punctuation. Symbols that carry meaning ("c++", "c#") survive.
const topicCutset = " \t\r\n\"'`.,;:!?*-\u2022\u00b7()[]{}<>\u201c\u201d\u2018\u2019"

// NormalizeTopic returns the canonical form of a topic keyphrase, or "" when
// nothing meaningful remains. The same input always yields the same output.
func NormalizeTopic(s string) string {
	s = NormalizeText(s)
	s = strings.Trim(s, topicCutset)
	// list markers like "1." or "2)" left behind by numbered output
	if i := strings.IndexByte(s, ' '); i > 0 && isOrdinal(s[:i]) {
		s = strings.Trim(s[i+1:], topicCutset)
	}
	return s
}

func isOrdinal(s string) bool {
	if !strings.HasSuffix(s, ".") && !strings.HasSuffix(s, ")") {
		return false
	}
	s = strings.TrimRight(s, ".)")
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// NormalizeTopics normalizes every topic and drops blanks and duplicates,
// keeping first-seen order.
func NormalizeTopics(topics []string) []string {
	seen := make(map[string]struct{}, len(topics))
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		n := NormalizeTopic(t)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
