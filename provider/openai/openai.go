package openai_provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/scholar/internal/httpclient"
	"github.com/mohammad-safakhou/scholar/provider/llm"
)

const defaultBaseURL = "https://api.openai.com/v1"

// client talks to an OpenAI-compatible chat completions endpoint.
type client struct {
	apiKey   string
	baseURL  string
	defaults llm.Options
	http     *httpclient.Client
}

type request struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewOpenAIClient creates a chat client. An empty baseURL targets api.openai.com.
func NewOpenAIClient(apiKey, baseURL, model string, temperature float64, maxTokens int, timeout time.Duration, retries int) *client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &client{
		apiKey:   apiKey,
		baseURL:  strings.TrimRight(baseURL, "/"),
		defaults: llm.Options{Model: model, Temperature: temperature, TemperatureSet: true, MaxTokens: maxTokens},
		http:     httpclient.New(timeout, retries, 0),
	}
}

func (c *client) Name() string { return "openai" }

// Chat implements llm.Provider.
func (c *client) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	if len(history) == 0 {
		return "", errors.New("empty conversation")
	}
	o := llm.Apply(c.defaults, opts...)
	req := request{
		Model:       o.Model,
		Messages:    history,
		Temperature: o.Temperature,
		MaxTokens:   o.MaxTokens,
	}
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}

	var resp response
	if err := c.http.DoJSON(ctx, http.MethodPost, c.baseURL+"/chat/completions", headers, req, &resp); err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
