package knowledge

import (
	"testing"

	"github.com/mohammad-safakhou/scholar/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectTopics(t *testing.T) {
	t.Parallel()
	got := DetectTopics("Can you explain how AI and Deep Learning relate to robotics?")
	assert.Equal(t, []string{"ai", "deep learning", "robotics"}, got)
	assert.Empty(t, DetectTopics("She said the maintenance was done."))
}

func TestDetectCitations(t *testing.T) {
	t.Parallel()
	got := DetectCitations("Intro.\n- Vaswani: attention (Vaswani et al., 2017)\nno year here (see above)")
	require.Len(t, got, 1)
	assert.Equal(t, "Vaswani", got[0].Source)
}

func TestKeyFindings(t *testing.T) {
	t.Parallel()
	got := KeyFindings([]models.Paper{
		{Title: "ResNet", Abstract: "Deep nets are hard to train. Residual learning eases training."},
		{Title: "Empty"},
	})
	require.Len(t, got, 1)
	assert.Equal(t, models.Finding{Content: "Residual learning eases training.", Source: "ResNet"}, got[0])
}
