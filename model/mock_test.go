package model

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chatflow/core"
)

func drain(t *testing.T, respCh <-chan Response, errCh <-chan error) ([]Response, error) {
	t.Helper()
	var out []Response
	for r := range respCh {
		out = append(out, r)
	}
	return out, <-errCh
}

func TestMockModel_ScriptedStream(t *testing.T) {
	m := NewMockModel("mock", "mock").AddText("Once upon a time")

	respCh, errCh := m.Generate(context.Background(), Request{
		Messages: []core.Message{core.UserText("story")},
		Stream:   true,
	})
	resps, err := drain(t, respCh, errCh)
	require.NoError(t, err)
	require.Len(t, resps, 5)

	var sb strings.Builder
	for _, r := range resps[:4] {
		assert.True(t, r.Partial)
		sb.WriteString(r.Message.Text())
	}
	final := resps[4]
	assert.False(t, final.Partial)
	assert.Equal(t, "Once upon a time", sb.String())
	assert.Equal(t, "Once upon a time", final.Message.Text())
	assert.Equal(t, "stop", final.FinishReason)
}

func TestMockModel_ToolCallAndEcho(t *testing.T) {
	m := NewMockModel("mock", "mock").AddToolCall("get_weather", `{"location":"Tokyo"}`)
	req := Request{Messages: []core.Message{core.UserText("What's the weather like in Tokyo?")}}

	respCh, errCh := m.Generate(context.Background(), req)
	resps, err := drain(t, respCh, errCh)
	require.NoError(t, err)
	require.Len(t, resps, 1)
	assert.Equal(t, "tool_calls", resps[0].FinishReason)
	require.Len(t, resps[0].Message.FunctionCalls(), 1)

	respCh, errCh = m.Generate(context.Background(), req)
	resps, err = drain(t, respCh, errCh)
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: What's the weather like in Tokyo?", resps[0].Message.Text())

	assert.Len(t, m.Requests(), 2)
}

func TestMockModel_ErrorIsBackendError(t *testing.T) {
	rateLimited := errors.New("429 too many requests")
	m := NewMockModel("mock", "mock").AddError(rateLimited)

	respCh, errCh := m.Generate(context.Background(), Request{Messages: []core.Message{core.UserText("hi")}})
	_, err := drain(t, respCh, errCh)
	var be *BackendError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "mock", be.Provider)
	assert.ErrorIs(t, err, rateLimited)
}

func TestAsBackendError(t *testing.T) {
	assert.NoError(t, AsBackendError("x", nil))

	inner := &BackendError{Provider: "openai", Err: errors.New("boom")}
	assert.Same(t, inner, AsBackendError("anthropic", inner))

	var usage TokenUsage
	usage.Add(&TokenUsage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3})
	usage.Add(nil)
	assert.Equal(t, 3, usage.TotalTokens)
}
