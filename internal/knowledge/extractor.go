package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mohammad-safakhou/scholar/internal/helpers"
	"github.com/mohammad-safakhou/scholar/internal/telemetry"
	"github.com/mohammad-safakhou/scholar/models"
	"github.com/mohammad-safakhou/scholar/provider/llm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Capability names the text analysis backend in errors and metrics.
const Capability = "text_analyzer"

const analysisTemperature = 0.2

const analysisSystem = "You are a meticulous research analyst. You extract structured knowledge from scientific text and never invent references."

const paperAnalysisPrompt = `Analyze the following research paper:

Title: %s
Authors: %s
Abstract: %s

Summarize the key findings, methodology and implications, and evaluate the strengths and limitations of the research.
Respond with a single JSON object with the keys "summary" (markdown string), "topics" (array of short keyphrases), "citations" (array of references the work builds on, each a string or an object with "text" and "source") and "findings" (array of concise assertions supported by the paper).`

const excerptAnalysisPrompt = `Extract the research knowledge contained in this conversation excerpt:

%s

Respond with a single JSON object with the keys "summary" (markdown string), "topics" (array of short keyphrases), "citations" (array of references mentioned, each a string or an object with "text" and "source") and "findings" (array of concise assertions).`

// Analysis is the outcome of one analyzer call.
type Analysis struct {
	models.Extraction
	// Summary is the analyzer's prose, or its raw reply when no structure
	// could be recovered.
	Summary string
}

// Extractor derives citations, topics and findings from papers and
// conversation excerpts by calling the text analysis capability.
type Extractor struct {
	provider llm.Provider
	logger   *zap.Logger
	metrics  *telemetry.Metrics
}

func NewExtractor(provider llm.Provider, logger *zap.Logger, metrics *telemetry.Metrics) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{provider: provider, logger: logger.Named("knowledge"), metrics: metrics}
}

// Analyze asks the analyzer about p. Malformed or empty analyzer output yields
// an empty extraction; only a failed call is an error. Findings are attributed
// to the paper title.
func (e *Extractor) Analyze(ctx context.Context, p models.Paper) (Analysis, error) {
	prompt := fmt.Sprintf(paperAnalysisPrompt, p.Title, strings.Join(p.Authors, ", "), p.Abstract)
	out, err := e.call(ctx, "paper", prompt)
	if err != nil {
		return Analysis{}, err
	}
	a := parseAnalysis(out)
	for i := range a.Findings {
		a.Findings[i].Source = p.Title
	}
	return a, nil
}

// AnalyzeText runs the same extraction over a conversation excerpt.
func (e *Extractor) AnalyzeText(ctx context.Context, excerpt string) (Analysis, error) {
	excerpt = strings.TrimSpace(excerpt)
	if excerpt == "" {
		return Analysis{}, nil
	}
	out, err := e.call(ctx, "excerpt", fmt.Sprintf(excerptAnalysisPrompt, excerpt))
	if err != nil {
		return Analysis{}, err
	}
	return parseAnalysis(out), nil
}

func (e *Extractor) call(ctx context.Context, kind, prompt string) (string, error) {
	ctx, span := telemetry.Tracer("knowledge").Start(ctx, "knowledge.analyze")
	defer span.End()
	span.SetAttributes(attribute.String("analysis.kind", kind), attribute.String("provider", e.provider.Name()))

	start := time.Now()
	out, err := llm.Generate(ctx, e.provider, analysisSystem, prompt, llm.WithTemperature(analysisTemperature))
	e.metrics.ObserveCapability(Capability, e.provider.Name(), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Warn("analysis failed", zap.String("kind", kind), zap.Duration("took", time.Since(start)), zap.Error(err))
		return "", &models.ProviderUnavailableError{Capability: Capability, Err: err}
	}
	e.logger.Debug("analysis done", zap.String("kind", kind), zap.Duration("took", time.Since(start)), zap.Int("chars", len(out)))
	return out, nil
}

// parseAnalysis recovers structure from analyzer output: a JSON object first,
// then "Topics:/Citations:/Findings:" sections.
func parseAnalysis(out string) Analysis {
	out = strings.TrimSpace(out)
	if out == "" {
		return Analysis{}
	}
	if a, ok := parseJSONAnalysis(out); ok {
		return a
	}
	a := parseSections(out)
	if a.Summary == "" {
		a.Summary = helpers.SanitizeMarkdown(out)
	}
	return a
}

type citationField models.Citation

func (c *citationField) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*c = citationField{Text: s}
		return nil
	}
	var obj struct {
		Text      string `json:"text"`
		Citation  string `json:"citation"`
		Reference string `json:"reference"`
		Source    string `json:"source"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*c = citationField{Text: firstNonEmpty(obj.Text, obj.Citation, obj.Reference), Source: obj.Source}
	return nil
}

type findingField models.Finding

func (f *findingField) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = findingField{Content: s}
		return nil
	}
	var obj struct {
		Content string `json:"content"`
		Text    string `json:"text"`
		Finding string `json:"finding"`
		Source  string `json:"source"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*f = findingField{Content: firstNonEmpty(obj.Content, obj.Text, obj.Finding), Source: obj.Source}
	return nil
}

type analysisPayload struct {
	Summary   string          `json:"summary"`
	Topics    []string        `json:"topics"`
	Keywords  []string        `json:"keywords"`
	Citations []citationField `json:"citations"`
	Findings  []findingField  `json:"findings"`
}

func parseJSONAnalysis(out string) (Analysis, bool) {
	raw, err := helpers.ExtractJSONObject(out)
	if err != nil {
		return Analysis{}, false
	}
	var payload analysisPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return Analysis{}, false
	}
	a := Analysis{Summary: helpers.SanitizeMarkdown(payload.Summary)}
	a.Topics = models.NormalizeTopics(append(payload.Topics, payload.Keywords...))
	for _, c := range payload.Citations {
		if c.Text = strings.TrimSpace(c.Text); c.Text != "" {
			a.Citations = append(a.Citations, models.Citation{Text: c.Text, Source: strings.TrimSpace(c.Source)})
		}
	}
	for _, f := range payload.Findings {
		if f.Content = strings.TrimSpace(f.Content); f.Content != "" {
			a.Findings = append(a.Findings, models.Finding{Content: f.Content, Source: strings.TrimSpace(f.Source)})
		}
	}
	return a, true
}

type section int

const (
	sectionNone section = iota
	sectionSummary
	sectionTopics
	sectionCitations
	sectionFindings
)

var sectionHeaders = map[string]section{
	"summary":      sectionSummary,
	"topics":       sectionTopics,
	"keywords":     sectionTopics,
	"key topics":   sectionTopics,
	"citations":    sectionCitations,
	"references":   sectionCitations,
	"findings":     sectionFindings,
	"key findings": sectionFindings,
}

// header recognises "Topics:", "## Key findings" and "**Citations**: a, b".
// It returns the section and whatever follows the colon on the same line.
func header(line string) (section, string, bool) {
	trimmed := strings.TrimLeft(strings.TrimSpace(line), "#* ")
	name, rest, _ := strings.Cut(trimmed, ":")
	sec, ok := sectionHeaders[strings.ToLower(strings.Trim(name, "*_ "))]
	if !ok {
		return sectionNone, "", false
	}
	return sec, strings.TrimSpace(strings.Trim(rest, "*_ ")), true
}

func bulletItem(line string) (string, bool) {
	line = strings.TrimSpace(line)
	for _, p := range []string{"- ", "* ", "• ", "+ "} {
		if strings.HasPrefix(line, p) {
			return strings.TrimSpace(line[len(p):]), true
		}
	}
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i < len(line)-1 && (line[i] == '.' || line[i] == ')') && line[i+1] == ' ' {
		return strings.TrimSpace(line[i+2:]), true
	}
	return "", false
}

func parseSections(out string) Analysis {
	var (
		a       Analysis
		current = sectionNone
		summary []string
		topics  []string
	)
	add := func(sec section, item string) {
		item = strings.TrimSpace(item)
		if item == "" {
			return
		}
		switch sec {
		case sectionSummary:
			summary = append(summary, item)
		case sectionTopics:
			topics = append(topics, strings.Split(item, ",")...)
		case sectionCitations:
			a.Citations = append(a.Citations, models.Citation{Text: item})
		case sectionFindings:
			a.Findings = append(a.Findings, models.Finding{Content: item})
		}
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if sec, rest, ok := header(line); ok {
			current = sec
			add(sec, rest)
			continue
		}
		if current == sectionNone {
			continue
		}
		if item, ok := bulletItem(line); ok {
			add(current, item)
			continue
		}
		if current == sectionSummary {
			add(current, line)
		}
	}
	a.Topics = models.NormalizeTopics(topics)
	a.Summary = helpers.SanitizeMarkdown(strings.Join(summary, "\n"))
	return a
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
