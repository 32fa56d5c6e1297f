package session_object

import (
	"strings"
	"time"

	"github.com/mohammad-safakhou/scholar/models"
)

type findingKey struct {
	content string
	source  string
}

type state struct {
	createdAt   time.Time
	lastUpdated time.Time
	lastStamp   time.Time
	summary     string

	messages  []models.Message
	order     []string
	papers    map[string]models.Paper
	topics    []string
	topicSet  map[string]struct{}
	citations []models.Citation
	citeSet   map[string]struct{}
	findings  []models.Finding
	findSet   map[findingKey]struct{}
}

func newState(now time.Time) *state {
	return &state{
		createdAt:   now,
		lastUpdated: now,
		papers:      map[string]models.Paper{},
		topicSet:    map[string]struct{}{},
		citeSet:     map[string]struct{}{},
		findSet:     map[findingKey]struct{}{},
	}
}

// clone copies the containers; Paper values are cloned on write, so sharing
// them between the copy and the original is safe.
func (st *state) clone() *state {
	out := *st
	out.messages = append([]models.Message(nil), st.messages...)
	out.order = append([]string(nil), st.order...)
	out.topics = append([]string(nil), st.topics...)
	out.citations = append([]models.Citation(nil), st.citations...)
	out.findings = append([]models.Finding(nil), st.findings...)

	out.papers = make(map[string]models.Paper, len(st.papers))
	for k, v := range st.papers {
		out.papers[k] = v
	}
	out.topicSet = make(map[string]struct{}, len(st.topicSet))
	for k := range st.topicSet {
		out.topicSet[k] = struct{}{}
	}
	out.citeSet = make(map[string]struct{}, len(st.citeSet))
	for k := range st.citeSet {
		out.citeSet[k] = struct{}{}
	}
	out.findSet = make(map[findingKey]struct{}, len(st.findSet))
	for k := range st.findSet {
		out.findSet[k] = struct{}{}
	}
	return &out
}

func (st *state) paperList() []models.Paper {
	out := make([]models.Paper, 0, len(st.order))
	for _, fp := range st.order {
		out = append(out, st.papers[fp].Clone())
	}
	return out
}

func (st *state) snapshot(id string) models.Snapshot {
	return models.Snapshot{
		SessionID:   id,
		CreatedAt:   st.createdAt,
		LastUpdated: st.lastUpdated,
		Summary:     st.summary,
		Messages:    append([]models.Message{}, st.messages...),
		Papers:      st.paperList(),
		Topics:      append([]string{}, st.topics...),
		Citations:   append([]models.Citation{}, st.citations...),
		Findings:    append([]models.Finding{}, st.findings...),
	}
}

func (st *state) addTopics(topics []string) int {
	added := 0
	for _, t := range models.NormalizeTopics(topics) {
		if _, ok := st.topicSet[t]; ok {
			continue
		}
		st.topicSet[t] = struct{}{}
		st.topics = append(st.topics, t)
		added++
	}
	return added
}

func (st *state) addCitations(citations []models.Citation) int {
	added := 0
	for _, c := range citations {
		c.Text = strings.TrimSpace(c.Text)
		c.Source = strings.TrimSpace(c.Source)
		if c.Text == "" {
			continue
		}
		if _, ok := st.citeSet[c.Text]; ok {
			continue
		}
		st.citeSet[c.Text] = struct{}{}
		st.citations = append(st.citations, c)
		added++
	}
	return added
}

func (st *state) addFindings(findings []models.Finding) int {
	added := 0
	for _, f := range findings {
		f.Content = strings.TrimSpace(f.Content)
		f.Source = strings.TrimSpace(f.Source)
		if f.Content == "" {
			continue
		}
		k := findingKey{f.Content, f.Source}
		if _, ok := st.findSet[k]; ok {
			continue
		}
		st.findSet[k] = struct{}{}
		st.findings = append(st.findings, f)
		added++
	}
	return added
}
