package responder

import (
	"context"
	"errors"

	"github.com/wolfman30/apptreply/internal/dialogue"
)

const (
	defaultMaxTokens   = 300
	defaultTemperature = 0.3
)

// LLMResponder adapts a Client to the dialogue engine's Responder port.
type LLMResponder struct {
	client      Client
	model       string
	maxTokens   int32
	temperature float32
}

// Option configures an LLMResponder.
type Option func(*LLMResponder)

func WithMaxTokens(n int) Option {
	return func(r *LLMResponder) {
		if n > 0 {
			r.maxTokens = int32(n)
		}
	}
}

func WithTemperature(t float32) Option {
	return func(r *LLMResponder) {
		r.temperature = t
	}
}

func NewLLMResponder(client Client, model string, opts ...Option) *LLMResponder {
	if client == nil {
		panic("responder: client cannot be nil")
	}
	r := &LLMResponder{
		client:      client,
		model:       model,
		maxTokens:   defaultMaxTokens,
		temperature: defaultTemperature,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Respond sends the fixed system instruction and history, returning the model text.
func (r *LLMResponder) Respond(ctx context.Context, system string, history []dialogue.ChatMessage) (string, error) {
	msgs := make([]Message, 0, len(history))
	for _, m := range history {
		role := RoleUser
		if m.Role == dialogue.ChatRoleAssistant {
			role = RoleAssistant
		}
		msgs = append(msgs, Message{Role: role, Content: m.Content})
	}
	resp, err := r.client.Complete(ctx, Request{
		Model:       r.model,
		System:      []string{system},
		Messages:    msgs,
		MaxTokens:   r.maxTokens,
		Temperature: r.temperature,
	})
	if err != nil {
		return "", err
	}
	if resp.Text == "" {
		return "", errors.New("responder: empty completion")
	}
	return resp.Text, nil
}
