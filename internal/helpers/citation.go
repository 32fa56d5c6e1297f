package helpers

import (
	"strconv"
	"strings"
	"time"
)

// PaperRef is the bibliographic subset needed to render a reference line.
type PaperRef struct {
	Title   string
	Authors []string
	Year    *int
}

// citationConfig controls formatting behaviour.
type citationConfig struct {
	maxAuthors int
}

// CitationOption configures citation formatting.
type CitationOption func(*citationConfig)

// WithMaxAuthors lists up to n authors before collapsing to "et al." (default 2).
func WithMaxAuthors(n int) CitationOption {
	return func(cfg *citationConfig) {
		if n > 0 {
			cfg.maxAuthors = n
		}
	}
}

// FormatPaperCitation renders a short reference:
//
//	Vaswani et al. (2017). Attention Is All You Need.
//	Chen & Guestrin (2016). XGBoost.
//
// A missing year renders as "n.d.".
func FormatPaperCitation(p PaperRef, opts ...CitationOption) string {
	cfg := citationConfig{maxAuthors: 2}
	for _, opt := range opts {
		opt(&cfg)
	}

	authors := make([]string, 0, len(p.Authors))
	for _, a := range p.Authors {
		if a = strings.TrimSpace(a); a != "" {
			authors = append(authors, a)
		}
	}

	var who string
	switch {
	case len(authors) == 0:
		who = "Unknown"
	case len(authors) > cfg.maxAuthors:
		who = authors[0] + " et al."
	default:
		who = strings.Join(authors, " & ")
	}

	year := "n.d."
	if p.Year != nil && *p.Year > 0 {
		year = strconv.Itoa(*p.Year)
	}

	title := strings.TrimSpace(p.Title)
	title = strings.TrimRight(title, ".")
	return who + " (" + year + "). " + title + "."
}

// KeyFinding returns the last complete sentence of an abstract, or the whole
// abstract when it holds a single sentence.
func KeyFinding(abstract string) string {
	abstract = strings.Join(strings.Fields(abstract), " ")
	if abstract == "" {
		return ""
	}
	sentences := strings.Split(abstract, ".")
	if len(sentences) < 2 {
		return abstract
	}
	for i := len(sentences) - 2; i >= 0; i-- {
		if s := strings.TrimSpace(sentences[i]); s != "" {
			return s + "."
		}
	}
	return abstract
}

// CitationLine is a reference detected in free text.
type CitationLine struct {
	Text   string
	Source string
}

// DetectCitationLines finds lines that look like in-text references: a
// parenthesised span containing a plausible publication year, as in
// "(Vaswani et al., 2017)". Text before a colon on the line is reported as
// the source.
func DetectCitationLines(text string) []CitationLine {
	maxYear := time.Now().Year() + 1
	var out []CitationLine
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !hasParenthesisedYear(line, maxYear) {
			continue
		}
		c := CitationLine{Text: line}
		if i := strings.IndexByte(line, ':'); i > 0 {
			c.Source = strings.TrimSpace(strings.Trim(line[:i], "-*• "))
		}
		out = append(out, c)
	}
	return out
}

func hasParenthesisedYear(line string, maxYear int) bool {
	for {
		open := strings.IndexByte(line, '(')
		if open < 0 {
			return false
		}
		closeIdx := strings.IndexByte(line[open:], ')')
		if closeIdx < 0 {
			return false
		}
		inner := line[open+1 : open+closeIdx]
		if containsYear(inner, maxYear) {
			return true
		}
		line = line[open+closeIdx+1:]
	}
}

func containsYear(s string, maxYear int) bool {
	run := 0
	for i := 0; i <= len(s); i++ {
		if i < len(s) && s[i] >= '0' && s[i] <= '9' {
			run++
			continue
		}
		if run == 4 {
			y, _ := strconv.Atoi(s[i-4 : i])
			if y >= 1900 && y <= maxYear {
				return true
			}
		}
		run = 0
	}
	return false
}
