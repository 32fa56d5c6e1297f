package helpers

import (
	"errors"
	"strings"
)

// ErrNoJSONObject is returned when no balanced JSON object can be found.
var ErrNoJSONObject = errors.New("no balanced JSON object found")

// ExtractJSONObject returns the first balanced {...} value in s. Model output
// often wraps JSON in a markdown fence or surrounds it with prose; both are
// tolerated. Braces inside string literals are ignored.
func ExtractJSONObject(s string) (string, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "\uFEFF")
	if inner, ok := unfence(s); ok {
		s = strings.TrimSpace(inner)
	}
	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		if out, ok := balancedFrom(s, i); ok {
			return out, nil
		}
	}
	return "", ErrNoJSONObject
}

// unfence returns the body of the first ``` or ~~~ fenced block in s.
func unfence(s string) (string, bool) {
	for _, fence := range []string{"```", "~~~"} {
		start := strings.Index(s, fence)
		if start < 0 {
			continue
		}
		rest := s[start+len(fence):]
		nl := strings.IndexByte(rest, '\n')
		if nl < 0 {
			continue
		}
		rest = rest[nl+1:]
		if end := strings.Index(rest, fence); end >= 0 {
			return rest[:end], true
		}
	}
	return "", false
}

func balancedFrom(s string, start int) (string, bool) {
	depth := 0
	inString, escape := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escape:
				escape = false
			case c == '\\':
				escape = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth < 0 {
				return "", false
			}
			if depth == 0 {
				if c != '}' {
					return "", false
				}
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
