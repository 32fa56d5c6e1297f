package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/mohammad-safakhou/scholar/models"
)

// Search serves the built-in offline catalog. It needs no network access and
// always answers the same query the same way.
type Search struct{}

func (Search) Name() string { return "catalog" }

// Discover returns catalog papers for q, best first. A query naming a catalog
// topic (or contained in one of its titles) selects every paper of that topic.
// Otherwise every paper is scored by how many query words it shares with its
// title and abstract: 0.5 plus 0.1 per shared word, capped at 1.
func (Search) Discover(ctx context.Context, q string, k int) ([]models.Paper, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query := strings.ToLower(strings.TrimSpace(q))

	var out []models.Paper
	for _, group := range builtin {
		if matchesGroup(group, query) {
			for _, p := range group.papers {
				out = append(out, p.Clone())
			}
		}
	}
	if len(out) == 0 {
		words := strings.Fields(query)
		for _, group := range builtin {
			for _, p := range group.papers {
				c := p.Clone()
				c.Relevance = overlapScore(words, p)
				out = append(out, c)
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Relevance > out[j].Relevance })
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func matchesGroup(group topicPapers, query string) bool {
	if query == "" {
		return false
	}
	if strings.Contains(group.topic, query) {
		return true
	}
	for _, p := range group.papers {
		if strings.Contains(strings.ToLower(p.Title), query) {
			return true
		}
	}
	return false
}

func overlapScore(words []string, p models.Paper) float64 {
	vocab := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(p.Title + " " + p.Abstract)) {
		vocab[w] = struct{}{}
	}
	seen := make(map[string]struct{}, len(words))
	shared := 0
	for _, w := range words {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if _, ok := vocab[w]; ok {
			shared++
		}
	}
	score := 0.5 + 0.1*float64(shared)
	if score > 1 {
		score = 1
	}
	return score
}
