package llm

import (
	"context"
)

// Roles understood by chat-completion backends.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a chat message in a provider-agnostic format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Option adjusts a single completion call.
type Option func(*Options)

type Options struct {
	Temperature    float64
	TemperatureSet bool
	MaxTokens      int
	Model          string
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
		o.TemperatureSet = true
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxTokens = n
		}
	}
}

// Apply folds opts over the provider defaults.
func Apply(defaults Options, opts ...Option) Options {
	o := defaults
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Provider is the text analysis and generation capability.
type Provider interface {
	// Chat sends the conversation to the model and returns its reply.
	Chat(ctx context.Context, history []Message, opts ...Option) (string, error)
	// Name identifies the backend in logs and metrics.
	Name() string
}

// Generate is a convenience for a single system+user exchange.
func Generate(ctx context.Context, p Provider, system, prompt string, opts ...Option) (string, error) {
	history := make([]Message, 0, 2)
	if system != "" {
		history = append(history, Message{Role: RoleSystem, Content: system})
	}
	history = append(history, Message{Role: RoleUser, Content: prompt})
	return p.Chat(ctx, history, opts...)
}
