package provider

import (
	"testing"

	"github.com/mohammad-safakhou/scholar/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	t.Parallel()
	p, err := NewProvider(config.LLMConfig{Type: "offline"})
	require.NoError(t, err)
	assert.Equal(t, "offline", p.Name())

	p, err = NewProvider(config.LLMConfig{Type: "openai", APIKey: "k", Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	_, err = NewProvider(config.LLMConfig{Type: "openai"})
	require.Error(t, err)
	_, err = NewProvider(config.LLMConfig{Type: "gemini"})
	require.Error(t, err)
}
