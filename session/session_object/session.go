package session_object

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve"
	"github.com/mohammad-safakhou/scholar/models"
)

// Session is one research context. Two locks guard it:
//
//   - op serializes mutating operations for their whole duration, external
//     calls included (single writer per session);
//   - mu guards the state itself; every commit happens under it in one step,
//     so readers never see half of a mutation.
type Session struct {
	id  string
	now func() time.Time

	op sync.Mutex

	mu        sync.RWMutex
	st        *state
	index     bleve.Index
	corrupted string
	closed    bool
}

// Option configures a Session.
type Option func(*Session)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSession creates an empty session. If the paper index cannot be built the
// session is returned already marked inconsistent.
func NewSession(id string, opts ...Option) *Session {
	s := &Session{id: id, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.st = newState(s.now())
	s.resetIndex()
	return s
}

// Restore rebuilds a session from a stored snapshot and re-indexes its papers.
// Papers whose key no longer matches their fingerprint mark the session
// inconsistent.
func Restore(snap models.Snapshot, opts ...Option) *Session {
	s := NewSession(snap.SessionID, opts...)
	s.mu.Lock()
	defer s.mu.Unlock()

	st := newState(snap.CreatedAt)
	st.lastUpdated = snap.LastUpdated
	st.summary = snap.Summary
	for _, m := range snap.Messages {
		st.messages = append(st.messages, m)
		if m.Timestamp.After(st.lastStamp) {
			st.lastStamp = m.Timestamp
		}
	}
	for _, p := range snap.Papers {
		fp := models.Fingerprint(p.Title, p.Authors)
		if p.ID != "" && p.ID != fp {
			s.corrupted = fmt.Sprintf("paper %q is stored under key %s, fingerprint is %s", p.Title, p.ID, fp)
		}
		p.ID = fp
		if _, dup := st.papers[fp]; !dup {
			st.order = append(st.order, fp)
		}
		st.papers[fp] = p.Clone()
	}
	st.addTopics(snap.Topics)
	st.addCitations(snap.Citations)
	st.addFindings(snap.Findings)
	s.st = st

	if s.index != nil {
		for _, fp := range st.order {
			if err := s.index.Index(fp, docFor(st.papers[fp])); err != nil {
				s.corrupted = "paper index: " + err.Error()
				break
			}
		}
	}
	return s
}

func (s *Session) ID() string { return s.id }

// LockOp acquires the session's operation lock.
func (s *Session) LockOp() { s.op.Lock() }

// UnlockOp releases the operation lock.
func (s *Session) UnlockOp() { s.op.Unlock() }

func (s *Session) resetIndex() {
	if s.index != nil {
		_ = s.index.Close()
		s.index = nil
	}
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		s.corrupted = "paper index: " + err.Error()
		return
	}
	s.index = idx
}

func (s *Session) inconsistent() error {
	if s.corrupted != "" {
		return &models.InconsistencyError{SessionID: s.id, Reason: s.corrupted}
	}
	if s.closed {
		return &models.InconsistencyError{SessionID: s.id, Reason: "session was evicted"}
	}
	return nil
}

// Check reports an InconsistencyError if the session can no longer be used.
func (s *Session) Check() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inconsistent()
}

// MarkCorrupted makes every later operation fail until Clear.
func (s *Session) MarkCorrupted(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.corrupted == "" {
		s.corrupted = reason
	}
}

// Apply runs fn against a private copy of the state and commits the copy only
// if fn succeeds, re-indexing the papers it touched. fn runs under the state
// lock and must not block on external calls.
func (s *Session) Apply(fn func(w *Writer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.inconsistent(); err != nil {
		return err
	}
	w := &Writer{st: s.st.clone(), now: s.now, touched: map[string]struct{}{}}
	if err := fn(w); err != nil {
		return err
	}
	if !w.dirty {
		return nil
	}
	w.st.lastUpdated = s.now()
	s.st = w.st
	for fp := range w.touched {
		if err := s.index.Index(fp, docFor(s.st.papers[fp])); err != nil {
			s.corrupted = "paper index: " + err.Error()
			return &models.InconsistencyError{SessionID: s.id, Reason: s.corrupted}
		}
	}
	return nil
}

// Clear resets the session to empty, keeping its id. It also lifts an
// inconsistency mark.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.st = newState(s.now())
	s.corrupted = ""
	s.resetIndex()
}

// Close releases the paper index. Later operations report the session as
// evicted. It does not wait for the operation lock: eviction can run on the
// goroutine that holds it, and the index is only used under mu.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.index != nil {
		_ = s.index.Close()
		s.index = nil
	}
}

// Closed reports whether Close has run.
func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Snapshot returns a deep copy of the state.
func (s *Session) Snapshot() (models.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.inconsistent(); err != nil {
		return models.Snapshot{}, err
	}
	return s.st.snapshot(s.id), nil
}

// Papers returns the session's papers in first-ingested order.
func (s *Session) Papers() ([]models.Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.inconsistent(); err != nil {
		return nil, err
	}
	return s.st.paperList(), nil
}

func (s *Session) Topics() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.inconsistent(); err != nil {
		return nil, err
	}
	return append([]string{}, s.st.topics...), nil
}

func (s *Session) Citations() ([]models.Citation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.inconsistent(); err != nil {
		return nil, err
	}
	return append([]models.Citation{}, s.st.citations...), nil
}

func (s *Session) Findings() ([]models.Finding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.inconsistent(); err != nil {
		return nil, err
	}
	return append([]models.Finding{}, s.st.findings...), nil
}

func (s *Session) Messages() ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.inconsistent(); err != nil {
		return nil, err
	}
	return append([]models.Message{}, s.st.messages...), nil
}

// RelevantPapers ranks the session's papers against text with BM25 over
// title, abstract and topics. It returns at most k papers, best first.
func (s *Session) RelevantPapers(text string, k int) ([]models.Paper, error) {
	text = strings.TrimSpace(text)
	if text == "" || k <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	if err := s.inconsistent(); err != nil {
		s.mu.RUnlock()
		return nil, err
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(text), k, 0, false)
	res, err := s.index.Search(req)
	if err != nil {
		s.mu.RUnlock()
		s.MarkCorrupted("paper index: " + err.Error())
		return nil, &models.InconsistencyError{SessionID: s.id, Reason: "paper index: " + err.Error()}
	}
	out := make([]models.Paper, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if p, ok := s.st.papers[hit.ID]; ok {
			out = append(out, p.Clone())
		}
	}
	s.mu.RUnlock()
	return out, nil
}

type paperDoc struct {
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
	Topics   string `json:"topics"`
}

func docFor(p models.Paper) paperDoc {
	return paperDoc{Title: p.Title, Abstract: p.Abstract, Topics: strings.Join(p.Topics, ", ")}
}

func clampRelevance(r float64) float64 {
	switch {
	case math.IsNaN(r), r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}
