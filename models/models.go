package models

import (
	"regexp"
	"time"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidSessionID reports whether id can name a session: 1-128 characters of
// letters, digits, '-' or '_'.
func ValidSessionID(id string) bool { return sessionIDPattern.MatchString(id) }

// Role identifies who authored a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the roles a session records.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAssistant }

// Message is one conversation turn.
type Message struct {
	Role      Role      `json:"role" yaml:"role"`
	Content   string    `json:"content" yaml:"content"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// Paper is a research paper ingested into a session.
type Paper struct {
	ID        string    `json:"id,omitempty" yaml:"id,omitempty"`
	Title     string    `json:"title" yaml:"title"`
	Authors   []string  `json:"authors" yaml:"authors"`
	Abstract  string    `json:"abstract" yaml:"abstract"`
	Year      *int      `json:"year,omitempty" yaml:"year,omitempty"`
	URL       string    `json:"url,omitempty" yaml:"url,omitempty"`
	Relevance float64   `json:"relevance" yaml:"relevance"`
	Topics    []string  `json:"topics,omitempty" yaml:"topics,omitempty"`
	AddedAt   time.Time `json:"added_at,omitempty" yaml:"added_at,omitempty"`
}

// Clone returns a deep copy so callers never share slices with session state.
func (p Paper) Clone() Paper {
	out := p
	if p.Authors != nil {
		out.Authors = append([]string(nil), p.Authors...)
	}
	if p.Topics != nil {
		out.Topics = append([]string(nil), p.Topics...)
	}
	if p.Year != nil {
		y := *p.Year
		out.Year = &y
	}
	return out
}

// Citation is a reference extracted from a paper or conversation.
type Citation struct {
	Text   string `json:"text" yaml:"text"`
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
}

// Finding is an assertion attributed to a source paper.
type Finding struct {
	Content string `json:"content" yaml:"content"`
	Source  string `json:"source,omitempty" yaml:"source,omitempty"`
}

// Extraction is the knowledge derived from one paper or conversation excerpt.
type Extraction struct {
	Citations []Citation `json:"citations"`
	Topics    []string   `json:"topics"`
	Findings  []Finding  `json:"findings"`
}

// Empty reports whether nothing was extracted.
func (e Extraction) Empty() bool {
	return len(e.Citations) == 0 && len(e.Topics) == 0 && len(e.Findings) == 0
}

// Snapshot is a read-only copy of a session's state.
type Snapshot struct {
	SessionID   string     `json:"session_id" yaml:"session_id"`
	CreatedAt   time.Time  `json:"created_at" yaml:"created_at"`
	LastUpdated time.Time  `json:"last_updated" yaml:"last_updated"`
	Summary     string     `json:"summary,omitempty" yaml:"summary,omitempty"`
	Messages    []Message  `json:"messages" yaml:"messages"`
	Papers      []Paper    `json:"papers" yaml:"papers"`
	Topics      []string   `json:"topics" yaml:"topics"`
	Citations   []Citation `json:"citations" yaml:"citations"`
	Findings    []Finding  `json:"findings" yaml:"findings"`
}
