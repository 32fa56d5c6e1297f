package knowledge

import (
	"regexp"

	"github.com/mohammad-safakhou/scholar/internal/helpers"
	"github.com/mohammad-safakhou/scholar/models"
)

var knownTopics = []string{
	"research", "science", "technology", "AI", "machine learning",
	"history", "literature", "mathematics", "physics", "chemistry",
	"biology", "medicine", "economics", "politics", "philosophy",
	"computer science", "natural language processing", "deep learning",
	"neural networks", "reinforcement learning", "data science",
	"quantum computing", "blockchain", "cybersecurity", "robotics",
}

type topicMatcher struct {
	topic string
	re    *regexp.Regexp
}

var topicMatchers = func() []topicMatcher {
	out := make([]topicMatcher, 0, len(knownTopics))
	for _, t := range knownTopics {
		out = append(out, topicMatcher{
			topic: models.NormalizeTopic(t),
			re:    regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(t) + `\b`),
		})
	}
	return out
}()

// DetectTopics returns the well-known research areas a user message mentions,
// matched on word boundaries so "AI" does not fire inside "said".
func DetectTopics(message string) []string {
	var out []string
	for _, m := range topicMatchers {
		if m.re.MatchString(message) {
			out = append(out, m.topic)
		}
	}
	return out
}

// DetectCitations turns "(Author, Year)" lines of a reply into citations.
func DetectCitations(reply string) []models.Citation {
	lines := helpers.DetectCitationLines(reply)
	out := make([]models.Citation, 0, len(lines))
	for _, l := range lines {
		out = append(out, models.Citation{Text: l.Text, Source: l.Source})
	}
	return out
}

// KeyFindings records the closing sentence of each paper's abstract as a
// finding attributed to the paper.
func KeyFindings(papers []models.Paper) []models.Finding {
	out := make([]models.Finding, 0, len(papers))
	for _, p := range papers {
		if f := helpers.KeyFinding(p.Abstract); f != "" {
			out = append(out, models.Finding{Content: f, Source: p.Title})
		}
	}
	return out
}
