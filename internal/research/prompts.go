package research

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mohammad-safakhou/scholar/internal/helpers"
	"github.com/mohammad-safakhou/scholar/models"
)

// Mode selects the system prompt and sampling temperature of a chat turn.
type Mode string

const (
	ModeDefault          Mode = "default"
	ModeResearch         Mode = "research"
	ModePaperAnalysis    Mode = "paper_analysis"
	ModeLiteratureReview Mode = "literature_review"
	ModeSummary          Mode = "summary"
)

var temperatures = map[Mode]float64{
	ModeResearch:         0.3,
	ModePaperAnalysis:    0.2,
	ModeLiteratureReview: 0.4,
	ModeSummary:          0.3,
	ModeDefault:          0.5,
}

// Long-form outputs get a larger completion budget; other modes use the
// provider default.
var maxTokens = map[Mode]int{
	ModeLiteratureReview: 1600,
	ModeSummary:          1000,
}

func (m Mode) maxTokens() int { return maxTokens[m] }

func (m Mode) temperature() float64 {
	if t, ok := temperatures[m]; ok {
		return t
	}
	return temperatures[ModeDefault]
}

// ParseMode maps a requested chat mode to a known one; anything unknown is
// the default mode.
func ParseMode(s string) Mode {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeResearch, ModePaperAnalysis, ModeLiteratureReview:
		return m
	}
	return ModeDefault
}

const defaultSystem = "You are an AI research assistant that keeps track of the conversation context. " +
	"You help users explore research topics, analyze papers, and synthesize information. " +
	"Be helpful, accurate, and scientifically rigorous."

const researchSystem = "You are an AI research assistant helping with %s. " +
	"Provide detailed, accurate information and cite sources when possible. " +
	"If you reference research papers or studies, give citations in the form (Author, Year). " +
	"Be thorough and analytical in your responses."

const reviewSystem = "You are an AI research assistant writing literature reviews in markdown. " +
	"Synthesize the key findings, identify patterns and contradictions, and highlight gaps in the current research. " +
	"Use headings and lists; do not emit HTML."

const summarySystem = "You are an AI research assistant. Summarize research sessions faithfully and concisely in markdown; do not emit HTML."

func systemPrompt(mode Mode, topic string) string {
	switch mode {
	case ModeResearch:
		if topic == "" {
			topic = "their research"
		}
		return fmt.Sprintf(researchSystem, topic)
	case ModeLiteratureReview:
		return reviewSystem
	case ModeSummary:
		return summarySystem
	}
	return defaultSystem
}

var researchKeywords = []string{
	"research", "find information about", "find information", "look up", "search for",
	"tell me about", "what is", "how does", "explain",
	"analyze", "investigate", "study", "examine",
}

// isResearchRequest reports whether a message asks for research rather than
// small talk.
func isResearchRequest(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range researchKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// extractTopic strips research phrasing from a request and keeps the subject.
func extractTopic(text string) string {
	lower := strings.ToLower(text)
	for _, k := range researchKeywords {
		lower = strings.ReplaceAll(lower, k, " ")
	}
	return strings.Trim(strings.Join(strings.Fields(lower), " "), " ?.!,:;")
}

func paperRef(p models.Paper) string {
	return helpers.FormatPaperCitation(helpers.PaperRef{Title: p.Title, Authors: p.Authors, Year: p.Year})
}

// groundingBlock lists the papers and findings a chat reply may draw on.
func groundingBlock(papers []models.Paper, findings []models.Finding) string {
	if len(papers) == 0 && len(findings) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Research context for this session:\n")
	if len(papers) > 0 {
		b.WriteString("\nPapers:\n")
		for _, p := range papers {
			b.WriteString("- " + paperRef(p))
			if f := helpers.KeyFinding(p.Abstract); f != "" {
				b.WriteString(" Key point: " + f)
			}
			b.WriteString("\n")
		}
	}
	if len(findings) > 0 {
		b.WriteString("\nFindings:\n")
		for _, f := range findings {
			b.WriteString("- " + f.Content)
			if f.Source != "" {
				b.WriteString(" (" + f.Source + ")")
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func summaryPrompt(snap models.Snapshot) string {
	var b strings.Builder
	b.WriteString("Summarize this research session.\n")
	b.WriteString("\nConversation (" + strconv.Itoa(len(snap.Messages)) + " messages):\n")
	for _, m := range snap.Messages {
		b.WriteString(string(m.Role) + ": " + m.Content + "\n")
	}
	if len(snap.Papers) > 0 {
		b.WriteString("\nPapers:\n")
		for _, p := range snap.Papers {
			b.WriteString("- " + paperRef(p) + "\n")
		}
	}
	if len(snap.Topics) > 0 {
		b.WriteString("\nTopics: " + strings.Join(snap.Topics, ", ") + "\n")
	}
	if len(snap.Findings) > 0 {
		b.WriteString("\nFindings:\n")
		for _, f := range snap.Findings {
			b.WriteString("- " + f.Content + "\n")
		}
	}
	b.WriteString("\nCover the questions asked, the papers reviewed and what was learned.")
	return b.String()
}

func reviewPrompt(topic string, papers []models.Paper, findings []models.Finding) string {
	var b strings.Builder
	if len(papers) == 0 {
		fmt.Fprintf(&b, "Write a literature review on %s.\n", topic)
		b.WriteString("No papers on this topic have been collected in this session yet; draw on general knowledge of the field, " +
			"name the landmark works you are confident about, and say which directions deserve a targeted search.")
		return b.String()
	}
	fmt.Fprintf(&b, "Write a comprehensive literature review on %s based on these papers:\n\n", topic)
	for _, p := range papers {
		b.WriteString("- " + paperRef(p) + "\n")
		if p.Abstract != "" {
			b.WriteString("  Abstract: " + p.Abstract + "\n")
		}
	}
	if len(findings) > 0 {
		b.WriteString("\nRecorded findings:\n")
		for _, f := range findings {
			b.WriteString("- " + f.Content)
			if f.Source != "" {
				b.WriteString(" (" + f.Source + ")")
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("\nSynthesize the key findings, identify patterns and contradictions, and highlight gaps in the current research.")
	return b.String()
}

const emptySummary = "There is nothing to summarize yet. Start a conversation or search for papers to build up your research context."

// historyWindow keeps the first message and the most recent ones so that at
// most n messages are sent to the model. n below 2 keeps everything.
func historyWindow(msgs []models.Message, n int) []models.Message {
	if n < 2 || len(msgs) <= n {
		return msgs
	}
	out := make([]models.Message, 0, n)
	out = append(out, msgs[0])
	return append(out, msgs[len(msgs)-(n-1):]...)
}
