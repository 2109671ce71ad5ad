package responder

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/apptreply/internal/dialogue"
	"github.com/wolfman30/apptreply/pkg/logging"
)

type stubClient struct {
	resp  Response
	err   error
	calls int
	last  Request
}

func (s *stubClient) Complete(_ context.Context, req Request) (Response, error) {
	s.calls++
	s.last = req
	return s.resp, s.err
}

func TestFallbackClient_PrimarySucceeds(t *testing.T) {
	primary := &stubClient{resp: Response{Text: "primary"}}
	fallback := &stubClient{resp: Response{Text: "fallback"}}
	c := NewFallbackClient(primary, fallback, logging.Discard())

	resp, err := c.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "primary", resp.Text)
	assert.Equal(t, 0, fallback.calls)
}

func TestFallbackClient_UsesFallback(t *testing.T) {
	primary := &stubClient{err: errors.New("down")}
	fallback := &stubClient{resp: Response{Text: "fallback"}}
	c := NewFallbackClient(primary, fallback, logging.Discard())

	resp, err := c.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "fallback", resp.Text)
	assert.Equal(t, 1, fallback.calls)
}

func TestFallbackClient_BothFail(t *testing.T) {
	fbErr := errors.New("also down")
	c := NewFallbackClient(&stubClient{err: errors.New("down")}, &stubClient{err: fbErr}, logging.Discard())

	_, err := c.Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, fbErr)
}

func TestFallbackClient_NoFallback(t *testing.T) {
	primaryErr := errors.New("down")
	c := NewFallbackClient(&stubClient{err: primaryErr}, nil, nil)

	_, err := c.Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, primaryErr)
}

func TestFallbackClient_SkipsFallbackAfterDeadline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fallback := &stubClient{resp: Response{Text: "late"}}
	c := NewFallbackClient(&stubClient{err: errors.New("down")}, fallback, logging.Discard())

	_, err := c.Complete(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, fallback.calls)
}

func TestLLMResponder_Respond(t *testing.T) {
	client := &stubClient{resp: Response{Text: "Nosso endereço é Rua A, 10."}}
	r := NewLLMResponder(client, "model-x", WithMaxTokens(120), WithTemperature(0.1))

	out, err := r.Respond(context.Background(), "system rules", []dialogue.ChatMessage{
		{Role: dialogue.ChatRoleUser, Content: "oi"},
		{Role: dialogue.ChatRoleAssistant, Content: "Olá!"},
		{Role: dialogue.ChatRoleUser, Content: "qual o endereço?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Nosso endereço é Rua A, 10.", out)

	assert.Equal(t, "model-x", client.last.Model)
	assert.Equal(t, []string{"system rules"}, client.last.System)
	assert.Equal(t, int32(120), client.last.MaxTokens)
	assert.InDelta(t, 0.1, client.last.Temperature, 1e-6)
	require.Len(t, client.last.Messages, 3)
	assert.Equal(t, RoleAssistant, client.last.Messages[1].Role)
}

func TestLLMResponder_EmptyCompletion(t *testing.T) {
	r := NewLLMResponder(&stubClient{resp: Response{}}, "m")
	_, err := r.Respond(context.Background(), "s", []dialogue.ChatMessage{{Role: dialogue.ChatRoleUser, Content: "oi"}})
	assert.Error(t, err)
}

func TestLLMResponder_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	r := NewLLMResponder(&stubClient{err: boom}, "m")
	_, err := r.Respond(context.Background(), "s", []dialogue.ChatMessage{{Role: dialogue.ChatRoleUser, Content: "oi"}})
	assert.ErrorIs(t, err, boom)
}

func TestGeminiClient_RequiresKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), " ", "")
	assert.Error(t, err)
}

func TestGeminiHistoryRoles(t *testing.T) {
	h := geminiHistory([]Message{{Role: RoleUser, Content: "a"}, {Role: RoleAssistant, Content: "b"}, {Role: RoleUser, Content: " "}})
	require.Len(t, h, 2)
	assert.Equal(t, "user", h[0].Role)
	assert.Equal(t, "model", h[1].Role)
}

var _ dialogue.Responder = (*LLMResponder)(nil)
