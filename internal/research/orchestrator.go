package research

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mohammad-safakhou/scholar/internal/helpers"
	"github.com/mohammad-safakhou/scholar/internal/knowledge"
	"github.com/mohammad-safakhou/scholar/internal/telemetry"
	"github.com/mohammad-safakhou/scholar/models"
	"github.com/mohammad-safakhou/scholar/provider/llm"
	"github.com/mohammad-safakhou/scholar/session"
	"github.com/mohammad-safakhou/scholar/session/session_object"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ConversationCapability names the reply generator in errors and metrics.
const ConversationCapability = "conversation"

var researchTracer = telemetry.Tracer("research")

// PaperSearcher discovers candidate papers for a query.
type PaperSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]models.Paper, error)
}

// Analyzer extracts knowledge from papers and conversation excerpts.
type Analyzer interface {
	Analyze(ctx context.Context, p models.Paper) (knowledge.Analysis, error)
	AnalyzeText(ctx context.Context, excerpt string) (knowledge.Analysis, error)
}

// Options tunes the orchestrator. Zero values fall back to defaults.
type Options struct {
	// CapabilityTimeout bounds every external call.
	CapabilityTimeout time.Duration
	// DefaultMaxResults is used when a search asks for zero results.
	DefaultMaxResults int
	// GroundingPapers is how many session papers a chat reply is grounded in.
	GroundingPapers int
	// GroundingFindings is how many recent findings a chat reply sees.
	GroundingFindings int
	// HistoryWindow bounds the stored messages sent with a chat turn: the
	// first message and the most recent ones. Zero sends the whole history.
	HistoryWindow int
}

// Orchestrator implements the research operations on top of the session
// store, paper search, knowledge extraction and the conversational model.
// Mutating operations hold the session's operation lock for their whole
// duration; reads take only the state lock.
type Orchestrator struct {
	store    session.Store
	search   PaperSearcher
	analyzer Analyzer
	provider llm.Provider
	logger   *zap.Logger
	metrics  *telemetry.Metrics
	opts     Options
}

func NewOrchestrator(store session.Store, search PaperSearcher, analyzer Analyzer, provider llm.Provider, logger *zap.Logger, metrics *telemetry.Metrics, opts Options) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.CapabilityTimeout <= 0 {
		opts.CapabilityTimeout = 90 * time.Second
	}
	if opts.DefaultMaxResults <= 0 {
		opts.DefaultMaxResults = 3
	}
	if opts.GroundingPapers <= 0 {
		opts.GroundingPapers = 3
	}
	if opts.GroundingFindings <= 0 {
		opts.GroundingFindings = 5
	}
	return &Orchestrator{
		store:    store,
		search:   search,
		analyzer: analyzer,
		provider: provider,
		logger:   logger.Named("research"),
		metrics:  metrics,
		opts:     opts,
	}
}

// capabilityContext detaches an external call from the caller's
// cancellation so its effect is committed even if the caller goes away.
func (o *Orchestrator) capabilityContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), o.opts.CapabilityTimeout)
}

func (o *Orchestrator) begin(ctx context.Context, op, id string) (context.Context, trace.Span, time.Time) {
	ctx, span := researchTracer.Start(ctx, "research."+op, trace.WithAttributes(attribute.String("session.id", id)))
	return ctx, span, time.Now()
}

func (o *Orchestrator) end(span trace.Span, op, id string, start time.Time, err error) {
	o.metrics.ObserveOperation(op, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.Warn("operation failed", zap.String("op", op), zap.String("session_id", id), zap.Error(err))
	} else {
		o.logger.Debug("operation done", zap.String("op", op), zap.String("session_id", id), zap.Duration("took", time.Since(start)))
	}
	span.End()
}

// EnsureSession returns the id of an existing or newly created session. An
// empty id creates a new one.
func (o *Orchestrator) EnsureSession(ctx context.Context, id string) (string, error) {
	sess, err := o.store.GetOrCreate(ctx, id)
	if err != nil {
		return "", err
	}
	return sess.ID(), nil
}

func (o *Orchestrator) session(ctx context.Context, id string) (*session_object.Session, error) {
	return o.store.GetOrCreate(ctx, id)
}

// lock creates the session if needed and takes its operation lock.
func (o *Orchestrator) lock(ctx context.Context, id string) (func(), error) {
	if _, err := o.store.GetOrCreate(ctx, id); err != nil {
		return nil, err
	}
	return o.store.Lock(ctx, id)
}

func (o *Orchestrator) generate(ctx context.Context, mode Mode, history []llm.Message) (string, error) {
	cctx, cancel := o.capabilityContext(ctx)
	defer cancel()
	out, err := o.provider.Chat(cctx, history, llm.WithTemperature(mode.temperature()), llm.WithMaxTokens(mode.maxTokens()))
	o.metrics.ObserveCapability(ConversationCapability, o.provider.Name(), err)
	if err != nil {
		return "", &models.ProviderUnavailableError{Capability: ConversationCapability, Err: err}
	}
	return helpers.SanitizeMarkdown(out), nil
}

// Chat records the user's message, asks the model for a reply grounded in
// the session's papers and findings, and records the reply. If the model
// fails the user's message stays recorded.
func (o *Orchestrator) Chat(ctx context.Context, id, message, mode string) (reply string, err error) {
	ctx, span, start := o.begin(ctx, "chat", id)
	defer func() { o.end(span, "chat", id, start, err) }()

	message = strings.TrimSpace(message)
	if message == "" {
		return "", models.NewValidationError("message", "is required")
	}
	unlock, err := o.lock(ctx, id)
	if err != nil {
		return "", err
	}
	defer unlock()

	err = o.store.Apply(ctx, id, func(w *session_object.Writer) error {
		if _, err := w.AppendMessage(models.RoleUser, message); err != nil {
			return err
		}
		w.AddTopics(knowledge.DetectTopics(message))
		return nil
	})
	if err != nil {
		return "", err
	}

	m, topic := ParseMode(mode), ""
	if m == ModeDefault && isResearchRequest(message) {
		m, topic = ModeResearch, extractTopic(message)
	}
	span.SetAttributes(attribute.String("chat.mode", string(m)))

	sess, err := o.session(ctx, id)
	if err != nil {
		return "", err
	}
	papers, err := sess.RelevantPapers(message, o.opts.GroundingPapers)
	if err != nil {
		return "", err
	}
	findings, err := sess.Findings()
	if err != nil {
		return "", err
	}
	if len(findings) > o.opts.GroundingFindings {
		findings = findings[len(findings)-o.opts.GroundingFindings:]
	}
	messages, err := sess.Messages()
	if err != nil {
		return "", err
	}

	system := systemPrompt(m, topic)
	if g := groundingBlock(papers, findings); g != "" {
		system += "\n\n" + g
	}
	messages = historyWindow(messages, o.opts.HistoryWindow)
	history := make([]llm.Message, 0, len(messages)+1)
	history = append(history, llm.Message{Role: llm.RoleSystem, Content: system})
	for _, msg := range messages {
		history = append(history, llm.Message{Role: string(msg.Role), Content: msg.Content})
	}

	reply, err = o.generate(ctx, m, history)
	if err != nil {
		return "", err
	}
	err = o.store.Apply(ctx, id, func(w *session_object.Writer) error {
		if _, err := w.AppendMessage(models.RoleAssistant, reply); err != nil {
			return err
		}
		w.AddCitations(knowledge.DetectCitations(reply))
		return nil
	})
	if err != nil {
		return "", err
	}
	return reply, nil
}

// SearchPapers discovers papers for query, adds every result to the session
// together with the query as a topic and one key finding per paper, and
// returns the stored papers ranked by relevance. maxResults of zero uses the
// configured default.
func (o *Orchestrator) SearchPapers(ctx context.Context, id, query string, maxResults int) (papers []models.Paper, err error) {
	ctx, span, start := o.begin(ctx, "search_papers", id)
	defer func() { o.end(span, "search_papers", id, start, err) }()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.EmptyQueryError()
	}
	if maxResults < 0 {
		return nil, models.NewValidationError("max_results", "must be a positive integer")
	}
	if maxResults == 0 {
		maxResults = o.opts.DefaultMaxResults
	}
	span.SetAttributes(attribute.String("search.query", query), attribute.Int("search.max_results", maxResults))

	unlock, err := o.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	cctx, cancel := o.capabilityContext(ctx)
	results, err := o.search.Search(cctx, query, maxResults)
	cancel()
	if err != nil {
		return nil, err
	}

	stored := make([]models.Paper, 0, len(results))
	var fresh []bool
	err = o.store.Apply(ctx, id, func(w *session_object.Writer) error {
		stored, fresh = stored[:0], fresh[:0]
		for _, p := range results {
			merged, isNew, err := w.UpsertPaper(p)
			if err != nil {
				return err
			}
			stored = append(stored, merged)
			fresh = append(fresh, isNew)
		}
		w.AddTopics([]string{query})
		w.AddFindings(knowledge.KeyFindings(stored))
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, isNew := range fresh {
		o.metrics.PaperUpserted(isNew)
	}
	o.logger.Info("papers found", zap.String("session_id", id), zap.String("query", query), zap.Int("count", len(stored)))
	return Rank(stored), nil
}

// AnalyzePaper stores p, runs knowledge extraction on it and records the
// extracted citations, topics and findings along with an analysis note in
// one commit. If extraction fails the paper alone is stored and the error is
// returned.
func (o *Orchestrator) AnalyzePaper(ctx context.Context, id string, p models.Paper) (ext models.Extraction, err error) {
	ctx, span, start := o.begin(ctx, "analyze_paper", id)
	defer func() { o.end(span, "analyze_paper", id, start, err) }()

	p = p.Clone()
	p.Title = strings.TrimSpace(p.Title)
	p.Abstract = strings.TrimSpace(p.Abstract)
	if p.Title == "" {
		return ext, models.NewValidationError("title", "is required")
	}
	if p.Abstract == "" {
		return ext, models.NewValidationError("abstract", "is required")
	}
	authors := make([]string, 0, len(p.Authors))
	for _, a := range p.Authors {
		if a = strings.TrimSpace(a); a != "" {
			authors = append(authors, a)
		}
	}
	p.Authors = authors
	if p.Relevance == 0 {
		p.Relevance = 1
	}
	span.SetAttributes(attribute.String("paper.title", p.Title))

	unlock, err := o.lock(ctx, id)
	if err != nil {
		return ext, err
	}
	defer unlock()

	cctx, cancel := o.capabilityContext(ctx)
	analysis, analyzeErr := o.analyzer.Analyze(cctx, p)
	cancel()

	var isNew bool
	err = o.store.Apply(ctx, id, func(w *session_object.Writer) error {
		withTopics := p
		if analyzeErr == nil {
			withTopics.Topics = append(append([]string(nil), p.Topics...), analysis.Topics...)
		}
		var err error
		if _, isNew, err = w.UpsertPaper(withTopics); err != nil {
			return err
		}
		if analyzeErr != nil {
			return nil
		}
		w.AddCitations(analysis.Citations)
		w.AddTopics(analysis.Topics)
		w.AddFindings(analysis.Findings)
		if analysis.Summary != "" {
			if _, err := w.AppendMessage(models.RoleAssistant, fmt.Sprintf("Analysis of paper '%s':\n\n%s", p.Title, analysis.Summary)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ext, err
	}
	o.metrics.PaperUpserted(isNew)
	if analyzeErr != nil {
		return ext, analyzeErr
	}
	return analysis.Extraction, nil
}

// AnalyzeText extracts knowledge from a free-text excerpt, such as a passage
// the user pasted, and records it in the session.
func (o *Orchestrator) AnalyzeText(ctx context.Context, id, text string) (ext models.Extraction, err error) {
	ctx, span, start := o.begin(ctx, "analyze_text", id)
	defer func() { o.end(span, "analyze_text", id, start, err) }()

	text = strings.TrimSpace(text)
	if text == "" {
		return ext, models.NewValidationError("text", "is required")
	}
	unlock, err := o.lock(ctx, id)
	if err != nil {
		return ext, err
	}
	defer unlock()

	cctx, cancel := o.capabilityContext(ctx)
	analysis, err := o.analyzer.AnalyzeText(cctx, text)
	cancel()
	if err != nil {
		return ext, err
	}
	err = o.store.Apply(ctx, id, func(w *session_object.Writer) error {
		w.AddCitations(analysis.Citations)
		w.AddTopics(analysis.Topics)
		w.AddFindings(analysis.Findings)
		return nil
	})
	if err != nil {
		return ext, err
	}
	return analysis.Extraction, nil
}

func (o *Orchestrator) GetTopics(ctx context.Context, id string) ([]string, error) {
	sess, err := o.session(ctx, id)
	if err != nil {
		return nil, err
	}
	return sess.Topics()
}

func (o *Orchestrator) GetCitations(ctx context.Context, id string) ([]models.Citation, error) {
	sess, err := o.session(ctx, id)
	if err != nil {
		return nil, err
	}
	return sess.Citations()
}

func (o *Orchestrator) GetFindings(ctx context.Context, id string) ([]models.Finding, error) {
	sess, err := o.session(ctx, id)
	if err != nil {
		return nil, err
	}
	return sess.Findings()
}

// GetPapers lists the session's papers in the order they were first added.
// A positive limit returns the limit most relevant papers instead.
func (o *Orchestrator) GetPapers(ctx context.Context, id string, limit int) ([]models.Paper, error) {
	sess, err := o.session(ctx, id)
	if err != nil {
		return nil, err
	}
	papers, err := sess.Papers()
	if err != nil {
		return nil, err
	}
	if limit > 0 {
		return TopN(papers, limit), nil
	}
	return papers, nil
}

// GetContext returns a full snapshot of the session.
func (o *Orchestrator) GetContext(ctx context.Context, id string) (models.Snapshot, error) {
	sess, err := o.session(ctx, id)
	if err != nil {
		return models.Snapshot{}, err
	}
	return sess.Snapshot()
}

// GetSummary summarizes the conversation, papers, topics and findings of the
// session and stores the result. A session with neither messages nor papers
// gets a fixed message without calling the model.
func (o *Orchestrator) GetSummary(ctx context.Context, id string) (summary string, err error) {
	ctx, span, start := o.begin(ctx, "summary", id)
	defer func() { o.end(span, "summary", id, start, err) }()

	unlock, err := o.lock(ctx, id)
	if err != nil {
		return "", err
	}
	defer unlock()

	snap, err := o.store.Snapshot(ctx, id)
	if err != nil {
		return "", err
	}
	if len(snap.Messages) == 0 && len(snap.Papers) == 0 {
		return emptySummary, nil
	}

	summary, err = o.generate(ctx, ModeSummary, []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt(ModeSummary, "")},
		{Role: llm.RoleUser, Content: summaryPrompt(snap)},
	})
	if err != nil {
		return "", err
	}
	err = o.store.Apply(ctx, id, func(w *session_object.Writer) error {
		w.SetSummary(summary)
		return nil
	})
	if err != nil {
		return "", err
	}
	return summary, nil
}

// GenerateLiteratureReview writes a markdown review of topic from the
// session papers that mention it. With no matching papers the review falls
// back to general knowledge of the field. The review is recorded as an
// assistant message.
func (o *Orchestrator) GenerateLiteratureReview(ctx context.Context, id, topic string) (review string, err error) {
	ctx, span, start := o.begin(ctx, "literature_review", id)
	defer func() { o.end(span, "literature_review", id, start, err) }()

	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", models.NewValidationError("topic", "is required")
	}
	unlock, err := o.lock(ctx, id)
	if err != nil {
		return "", err
	}
	defer unlock()

	snap, err := o.store.Snapshot(ctx, id)
	if err != nil {
		return "", err
	}
	papers := Rank(MatchTopic(snap.Papers, topic))
	titles := make(map[string]struct{}, len(papers))
	for _, p := range papers {
		titles[p.Title] = struct{}{}
	}
	var findings []models.Finding
	for _, f := range snap.Findings {
		if _, ok := titles[f.Source]; ok {
			findings = append(findings, f)
		}
	}
	span.SetAttributes(attribute.Int("review.papers", len(papers)))

	review, err = o.generate(ctx, ModeLiteratureReview, []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt(ModeLiteratureReview, topic)},
		{Role: llm.RoleUser, Content: reviewPrompt(topic, papers, findings)},
	})
	if err != nil {
		return "", err
	}
	if review == "" {
		review = fmt.Sprintf("## %s\n\nNo review could be generated for this topic yet.", topic)
	}
	err = o.store.Apply(ctx, id, func(w *session_object.Writer) error {
		_, err := w.AppendMessage(models.RoleAssistant, fmt.Sprintf("Literature review on %s:\n\n%s", topic, review))
		return err
	})
	if err != nil {
		return "", err
	}
	return review, nil
}

// ClearContext empties the session, keeping its id.
func (o *Orchestrator) ClearContext(ctx context.Context, id string) (err error) {
	ctx, span, start := o.begin(ctx, "clear_context", id)
	defer func() { o.end(span, "clear_context", id, start, err) }()

	unlock, err := o.lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()
	return o.store.Clear(ctx, id)
}
