package session_object

import (
	"strings"
	"time"

	"github.com/mohammad-safakhou/scholar/models"
)

// Writer mutates a private copy of a session's state inside Session.Apply.
// Nothing it does is visible to readers until Apply commits.
type Writer struct {
	st      *state
	now     func() time.Time
	touched map[string]struct{}
	dirty   bool
}

// AppendMessage records a conversation turn with a timestamp strictly after
// the previous one. History is append-only.
func (w *Writer) AppendMessage(role models.Role, content string) (models.Message, error) {
	if !role.Valid() {
		return models.Message{}, models.NewValidationError("role", "must be user or assistant")
	}
	ts := w.now()
	if !ts.After(w.st.lastStamp) {
		ts = w.st.lastStamp.Add(time.Nanosecond)
	}
	w.st.lastStamp = ts
	msg := models.Message{Role: role, Content: content, Timestamp: ts}
	w.st.messages = append(w.st.messages, msg)
	w.dirty = true
	return msg, nil
}

// UpsertPaper stores p under its fingerprint. An existing entry keeps the
// higher relevance, the first non-empty url and year, the longer abstract
// and the union of both topic lists.
func (w *Writer) UpsertPaper(p models.Paper) (models.Paper, bool, error) {
	p = p.Clone()
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		return models.Paper{}, false, models.NewValidationError("title", "is required")
	}
	p.Abstract = strings.TrimSpace(p.Abstract)
	p.URL = strings.TrimSpace(p.URL)
	p.Relevance = clampRelevance(p.Relevance)
	p.Topics = models.NormalizeTopics(p.Topics)
	fp := models.Fingerprint(p.Title, p.Authors)
	p.ID = fp

	old, exists := w.st.papers[fp]
	if !exists {
		if p.AddedAt.IsZero() {
			p.AddedAt = w.now()
		}
		w.st.papers[fp] = p
		w.st.order = append(w.st.order, fp)
		w.touched[fp] = struct{}{}
		w.dirty = true
		return p.Clone(), true, nil
	}

	merged := old.Clone()
	if p.Relevance > merged.Relevance {
		merged.Relevance = p.Relevance
	}
	if merged.URL == "" {
		merged.URL = p.URL
	}
	if merged.Year == nil && p.Year != nil {
		y := *p.Year
		merged.Year = &y
	}
	if len(p.Abstract) > len(merged.Abstract) {
		merged.Abstract = p.Abstract
	}
	merged.Topics = models.NormalizeTopics(append(merged.Topics, p.Topics...))
	w.st.papers[fp] = merged
	w.touched[fp] = struct{}{}
	w.dirty = true
	return merged.Clone(), false, nil
}

// AddCitations appends citations whose text is not already recorded.
func (w *Writer) AddCitations(citations []models.Citation) int {
	n := w.st.addCitations(citations)
	w.dirty = w.dirty || n > 0
	return n
}

// AddTopics merges normalized topics into the session's topic set.
func (w *Writer) AddTopics(topics []string) int {
	n := w.st.addTopics(topics)
	w.dirty = w.dirty || n > 0
	return n
}

// AddFindings appends findings not already recorded for the same source.
func (w *Writer) AddFindings(findings []models.Finding) int {
	n := w.st.addFindings(findings)
	w.dirty = w.dirty || n > 0
	return n
}

func (w *Writer) SetSummary(summary string) {
	w.st.summary = summary
	w.dirty = true
}

