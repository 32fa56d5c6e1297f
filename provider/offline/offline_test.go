package offline_provider

import (
	"context"
	"testing"

	"github.com/mohammad-safakhou/scholar/provider/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatEchoesLastUserTurn(t *testing.T) {
	t.Parallel()
	p := New()
	out, err := llm.Generate(context.Background(), p, "system", "Papers: Attention Is All You Need")
	require.NoError(t, err)
	assert.Contains(t, out, "Attention Is All You Need")

	out, err = p.Chat(context.Background(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
