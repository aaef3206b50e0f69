package model

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/hupe1980/chatflow/core"
)

// MockTurn scripts one backend turn of a MockModel.
type MockTurn struct {
	Text      string
	ToolCalls []core.FunctionCall
	Err       error
	Usage     *TokenUsage
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
// Scripted turns are consumed in order; once the script is exhausted the
// model echoes the last user text. Every received request is recorded.
type MockModel struct {
	info Info

	mu       sync.Mutex
	turns    []MockTurn
	requests []Request
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
	}
}

// AddTurn appends a scripted turn.
func (m *MockModel) AddTurn(turn MockTurn) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turn)
	return m
}

// AddText scripts a final assistant answer.
func (m *MockModel) AddText(text string) *MockModel {
	return m.AddTurn(MockTurn{Text: text})
}

// AddToolCall scripts a turn requesting a single tool call with JSON arguments.
func (m *MockModel) AddToolCall(name, arguments string) *MockModel {
	return m.AddTurn(MockTurn{ToolCalls: []core.FunctionCall{{Name: name, Arguments: arguments}}})
}

// AddError scripts a failing turn.
func (m *MockModel) AddError(err error) *MockModel {
	return m.AddTurn(MockTurn{Err: err})
}

// Requests returns a copy of all requests received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Generate implements Model; emits word sized partial chunks when streaming, then the final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	turn, err := m.next(req)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if err != nil {
			errCh <- &BackendError{Provider: m.info.Provider, Err: err}
			return
		}
		if turn.Err != nil {
			errCh <- AsBackendError(m.info.Provider, turn.Err)
			return
		}

		if req.Stream && turn.Text != "" {
			for _, frag := range strings.SplitAfter(turn.Text, " ") {
				if frag == "" {
					continue
				}
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{
					Partial: true,
					Message: core.AssistantText(frag),
				}:
				}
			}
		}

		parts := make([]core.Part, 0, len(turn.ToolCalls)+1)
		if turn.Text != "" {
			parts = append(parts, core.TextPart{Text: turn.Text})
		}
		for _, fc := range turn.ToolCalls {
			parts = append(parts, core.FunctionCallPart{FunctionCall: fc})
		}

		finish := "stop"
		if len(turn.ToolCalls) > 0 {
			finish = "tool_calls"
		}

		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{
			Partial:      false,
			Message:      core.NewMessage(core.RoleAssistant, parts...),
			FinishReason: finish,
			Usage:        turn.Usage,
		}:
		}
	}()

	return respCh, errCh
}

func (m *MockModel) next(req Request) (MockTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	recorded := req
	recorded.Messages = core.CloneMessages(req.Messages)
	m.requests = append(m.requests, recorded)

	if len(m.turns) > 0 {
		turn := m.turns[0]
		m.turns = m.turns[1:]
		return turn, nil
	}

	if len(req.Messages) == 0 {
		return MockTurn{}, errors.New("no messages provided")
	}
	var input string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == core.RoleUser {
			input = req.Messages[i].Text()
			break
		}
	}
	return MockTurn{Text: "Mock response to: " + input}, nil
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
