package research

import (
	"testing"

	"github.com/mohammad-safakhou/scholar/models"
	"github.com/stretchr/testify/assert"
)

func titles(papers []models.Paper) []string {
	out := make([]string, 0, len(papers))
	for _, p := range papers {
		out = append(out, p.Title)
	}
	return out
}

func TestRankIsStable(t *testing.T) {
	t.Parallel()
	in := []models.Paper{
		{Title: "a", Relevance: 0.5},
		{Title: "b", Relevance: 0.9},
		{Title: "c", Relevance: 0.5},
		{Title: "d", Relevance: 0.9},
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, titles(Rank(in)))
	assert.Equal(t, "a", in[0].Title)
	assert.Equal(t, []string{"b", "d"}, titles(TopN(in, 2)))
	assert.Len(t, TopN(in, 0), 4)
}

func TestMatchTopic(t *testing.T) {
	t.Parallel()
	papers := []models.Paper{
		{Title: "BERT", Abstract: "Pre-training deep bidirectional TRANSFORMERS."},
		{Title: "Forests", Abstract: "Ensembles.", Topics: []string{"machine learning"}},
		{Title: "Other", Abstract: "Unrelated."},
	}
	assert.Equal(t, []string{"BERT"}, titles(MatchTopic(papers, "Transformers")))
	assert.Equal(t, []string{"Forests"}, titles(MatchTopic(papers, "Machine  Learning")))
	assert.Empty(t, MatchTopic(papers, "quantum gravity"))
	assert.Empty(t, MatchTopic(papers, " "))
}
