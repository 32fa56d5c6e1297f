package research

import (
	"sort"
	"strings"

	"github.com/mohammad-safakhou/scholar/models"
)

// Rank orders candidates by relevance, highest first. Candidates with equal
// relevance keep their original order. The input is not modified.
func Rank(candidates []models.Paper) []models.Paper {
	out := make([]models.Paper, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Relevance > out[j].Relevance
	})
	return out
}

// TopN returns the n most relevant papers. n <= 0 returns them all, ranked.
func TopN(papers []models.Paper, n int) []models.Paper {
	ranked := Rank(papers)
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// MatchTopic keeps the papers whose abstract or extracted topics mention
// topic, ignoring case.
func MatchTopic(papers []models.Paper, topic string) []models.Paper {
	needle := models.NormalizeText(topic)
	if needle == "" {
		return nil
	}
	var out []models.Paper
	for _, p := range papers {
		if strings.Contains(models.NormalizeText(p.Abstract), needle) {
			out = append(out, p)
			continue
		}
		for _, t := range p.Topics {
			if strings.Contains(models.NormalizeText(t), needle) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}
