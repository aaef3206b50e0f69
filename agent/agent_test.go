package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hupe1980/chatflow/core"
	"github.com/hupe1980/chatflow/flow"
	"github.com/hupe1980/chatflow/internal/testutil"
	"github.com/hupe1980/chatflow/model"
	"github.com/hupe1980/chatflow/tool"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// MockModelImpl is a testify backed model.Model.
type MockModelImpl struct{ mock.Mock }

func (m *MockModelImpl) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	args := m.Called(ctx, req)
	return args.Get(0).(<-chan model.Response), args.Get(1).(<-chan error)
}

func (m *MockModelImpl) Info() model.Info {
	args := m.Called()
	return args.Get(0).(model.Info)
}

// turn returns pre-filled, closed channels emitting resps.
func turn(resps ...model.Response) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response, len(resps))
	errCh := make(chan error)
	for _, r := range resps {
		respCh <- r
	}
	close(respCh)
	close(errCh)
	return respCh, errCh
}

func TestNew(t *testing.T) {
	t.Run("nil backend", func(t *testing.T) {
		_, err := New("a", nil)
		assert.Error(t, err)
	})

	t.Run("duplicate tools", func(t *testing.T) {
		backend := model.NewMockModel("mock", "mock")
		_, err := New("WeatherAgent", backend, func(o *Options) {
			o.Tools = []tool.Tool{testutil.WeatherTool(nil), testutil.WeatherTool(nil)}
		})

		var dup *tool.DuplicateToolError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, "get_weather", dup.Name)
	})

	t.Run("negative max turns", func(t *testing.T) {
		_, err := New("a", model.NewMockModel("mock", "mock"), func(o *Options) { o.MaxTurns = -1 })
		assert.Error(t, err)
	})

	t.Run("accessors", func(t *testing.T) {
		backend := model.NewMockModel("mock", "mock")
		a, err := New("WeatherAgent", backend, func(o *Options) {
			o.Instructions = "You are a helpful weather assistant."
			o.Tools = []tool.Tool{testutil.WeatherTool(nil)}
		})
		require.NoError(t, err)
		assert.Equal(t, "WeatherAgent", a.Name())
		assert.Equal(t, "You are a helpful weather assistant.", a.Instructions())
		assert.Same(t, backend, a.Model())
		require.Len(t, a.Tools(), 1)
		assert.Equal(t, "get_weather", a.Tools()[0].Name)
	})
}

func TestAgent_Run_SendsInstructionsAndReturnsTextVerbatim(t *testing.T) {
	backend := &MockModelImpl{}
	respCh, errCh := turn(model.Response{
		Message:      core.AssistantText("Hello! I'm a helpful assistant."),
		FinishReason: "stop",
	})
	backend.On("Generate", mock.Anything, mock.MatchedBy(func(req model.Request) bool {
		return req.Instructions == "You are a helpful assistant." &&
			len(req.Messages) == 1 &&
			req.Messages[0].Text() == "Hello, what can you do?" &&
			!req.Stream
	})).Return(respCh, errCh).Once()
	backend.On("Info").Return(model.Info{Name: "test", Provider: "test"})

	a, err := New("BasicAgent", backend, func(o *Options) {
		o.Instructions = "You are a helpful assistant."
	})
	require.NoError(t, err)

	res, err := a.Run(context.Background(), nil, core.UserText("Hello, what can you do?"))
	require.NoError(t, err)
	assert.Equal(t, "Hello! I'm a helpful assistant.", res.Text)
	assert.Equal(t, 1, res.Turns)

	backend.AssertExpectations(t)
}

func TestAgent_Run_BackendErrorPropagates(t *testing.T) {
	backend := &MockModelImpl{}
	respCh := make(chan model.Response)
	errCh := make(chan error, 1)
	errCh <- errors.New("timeout")
	close(respCh)
	close(errCh)
	backend.On("Generate", mock.Anything, mock.Anything).Return((<-chan model.Response)(respCh), (<-chan error)(errCh)).Once()
	backend.On("Info").Return(model.Info{Name: "test", Provider: "test"})

	a, err := New("a", backend)
	require.NoError(t, err)

	_, err = a.Run(context.Background(), nil, core.UserText("Hi"))

	var be *model.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "test", be.Provider)
	backend.AssertExpectations(t)
}

func TestAgent_Run_NoInput(t *testing.T) {
	a, err := New("a", model.NewMockModel("mock", "mock"))
	require.NoError(t, err)

	_, err = a.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoInput)

	s := a.RunStream(context.Background(), nil)
	assert.False(t, s.Next())
	assert.ErrorIs(t, s.Err(), ErrNoInput)
	assert.NoError(t, s.Close())
}

func TestAgent_Run_WeatherTool(t *testing.T) {
	var calls atomic.Int32
	backend := model.NewMockModel("mock", "mock").
		AddToolCall("get_weather", `{"location":"Tokyo"}`).
		AddText("The weather in Tokyo is sunny with 25°C.")
	a, err := New("WeatherAgent", backend, func(o *Options) {
		o.Instructions = "You are a helpful weather assistant."
		o.Tools = []tool.Tool{testutil.WeatherTool(&calls)}
	})
	require.NoError(t, err)

	res, err := a.Run(context.Background(), nil, core.UserText("What's the weather like in Tokyo?"))
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "The weather in Tokyo is sunny with 25°C.", res.Text)
	assert.Equal(t,
		[]core.Role{core.RoleUser, core.RoleAssistant, core.RoleTool, core.RoleAssistant},
		testutil.Roles(res.Messages),
	)
}

func TestAgent_Run_ParallelToolsKeepOrder(t *testing.T) {
	backend := model.NewMockModel("mock", "mock").
		AddTurn(model.MockTurn{ToolCalls: []core.FunctionCall{
			{ID: "c1", Name: "get_weather", Arguments: `{"location":"Tokyo"}`},
			{ID: "c2", Name: "get_weather", Arguments: `{"location":"Paris"}`},
			{ID: "c3", Name: "get_weather", Arguments: `{"location":"Lima"}`},
		}}).
		AddText("done")
	a, err := New("WeatherAgent", backend, func(o *Options) {
		o.Tools = []tool.Tool{testutil.WeatherTool(nil)}
		o.MaxParallelTools = 3
	})
	require.NoError(t, err)

	res, err := a.Run(context.Background(), nil, core.UserText("weather in three cities"))
	require.NoError(t, err)
	require.Len(t, res.Messages, 6)

	for i, want := range []string{"Tokyo", "Paris", "Lima"} {
		fr := res.Messages[2+i].FunctionResponses()
		require.Len(t, fr, 1)
		assert.Equal(t, fmt.Sprintf("c%d", i+1), fr[0].ID)
		assert.Equal(t, fmt.Sprintf("The weather in %s is sunny with 25°C.", want), fr[0].Response)
	}
}

func TestAgent_Run_Concurrent(t *testing.T) {
	a, err := New("EchoAgent", model.NewMockModel("mock", "mock"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			input := fmt.Sprintf("message %d", i)
			res, err := a.Run(context.Background(), nil, core.UserText(input))
			if assert.NoError(t, err) {
				assert.Equal(t, "Mock response to: "+input, res.Text)
			}
		}()
	}
	wg.Wait()
}

func TestAgent_RunStream(t *testing.T) {
	backend := model.NewMockModel("mock", "mock").AddText("Once upon a time there was a gopher.")
	a, err := New("StoryAgent", backend)
	require.NoError(t, err)

	s := a.RunStream(context.Background(), nil, core.UserText("Tell me a story"))
	defer s.Close()

	var fragments []string
	for c := range s.All() {
		assert.Equal(t, 1, c.Turn)
		fragments = append(fragments, c.Text)
	}
	<-s.Done()

	require.NoError(t, s.Err())
	require.NotNil(t, s.Result())
	assert.Greater(t, len(fragments), 1)
	assert.Equal(t, "Once upon a time there was a gopher.", s.Text())
	assert.Equal(t, s.Text(), s.Result().Text)
	assert.True(t, backend.Requests()[0].Stream)
}

func TestAgent_RunStream_MatchesRun(t *testing.T) {
	script := func() *model.MockModel {
		return model.NewMockModel("mock", "mock").
			AddToolCall("get_weather", `{"location":"Tokyo"}`).
			AddText("It is sunny with 25°C in Tokyo today.")
	}
	newAgent := func() *Agent {
		a, err := New("WeatherAgent", script(), func(o *Options) {
			o.Tools = []tool.Tool{testutil.WeatherTool(nil)}
		})
		require.NoError(t, err)
		return a
	}

	res, err := newAgent().Run(context.Background(), nil, core.UserText("weather?"))
	require.NoError(t, err)

	streamed, err := newAgent().RunStream(context.Background(), nil, core.UserText("weather?")).Wait()
	require.NoError(t, err)

	assert.Equal(t, res.Text, streamed.Text)
	assert.Equal(t, testutil.Roles(res.Messages), testutil.Roles(streamed.Messages))
}

func TestAgent_RunStream_CloseMidStream(t *testing.T) {
	var calls atomic.Int32
	backend := model.NewMockModel("mock", "mock").AddTurn(model.MockTurn{
		Text:      "Let me check the weather for you.",
		ToolCalls: []core.FunctionCall{{Name: "get_weather", Arguments: `{"location":"Tokyo"}`}},
	})
	a, err := New("WeatherAgent", backend, func(o *Options) {
		o.Tools = []tool.Tool{testutil.WeatherTool(&calls)}
	})
	require.NoError(t, err)

	s := a.RunStream(context.Background(), nil, core.UserText("weather?"))
	require.True(t, s.Next())
	assert.Equal(t, "Let ", s.Current().Text)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.False(t, s.Next())
	assert.Equal(t, "Let ", s.Text())
	assert.ErrorIs(t, s.Err(), ErrStreamClosed)
	assert.Nil(t, s.Result())
	assert.Equal(t, int32(0), calls.Load())
}

func TestAgent_RunStream_CancelWhileToolRunning(t *testing.T) {
	started := make(chan struct{})
	backend := model.NewMockModel("mock", "mock").
		AddToolCall("slow", `{}`).
		AddText("unreachable")
	a, err := New("a", backend, func(o *Options) {
		o.Tools = []tool.Tool{testutil.BlockingTool("slow", started)}
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	s := a.RunStream(ctx, nil, core.UserText("go"))

	<-started
	cancel()

	assert.False(t, s.Next())
	<-s.Done()
	assert.ErrorIs(t, s.Err(), context.Canceled)
	assert.Len(t, backend.Requests(), 1)
}

func TestAgent_RunStream_BackendError(t *testing.T) {
	backend := model.NewMockModel("mock", "mock").AddError(errors.New("rate limited"))
	a, err := New("a", backend)
	require.NoError(t, err)

	s := a.RunStream(context.Background(), nil, core.UserText("Hi"))
	defer s.Close()

	assert.False(t, s.Next())
	var be *model.BackendError
	require.ErrorAs(t, s.Err(), &be)
	assert.Nil(t, s.Result())
}

func TestAgent_RunStream_CloseAfterFailureKeepsError(t *testing.T) {
	backend := model.NewMockModel("mock", "mock").AddError(errors.New("rate limited"))
	a, err := New("a", backend)
	require.NoError(t, err)

	s := a.RunStream(context.Background(), nil, core.UserText("Hi"))
	for s.Next() {
	}
	<-s.Done()
	require.NoError(t, s.Close())

	var be *model.BackendError
	require.ErrorAs(t, s.Err(), &be)
	assert.NotErrorIs(t, s.Err(), ErrStreamClosed)
	assert.ErrorContains(t, s.Err(), "rate limited")
	assert.Nil(t, s.Result())
}

func TestAgent_Callbacks(t *testing.T) {
	var before, after atomic.Int32
	backend := model.NewMockModel("mock", "mock").
		AddToolCall("get_weather", `{"location":"Tokyo"}`).
		AddText("sunny")
	a, err := New("WeatherAgent", backend, func(o *Options) {
		o.Tools = []tool.Tool{testutil.WeatherTool(nil)}
		o.Callbacks = []flow.Callback{
			flow.NewFunctionCallback(flow.CallbackBeforeModel, func(context.Context, *flow.CallbackContext) error {
				before.Add(1)
				return nil
			}),
			flow.NewFunctionCallback(flow.CallbackAfterTool, func(_ context.Context, cbCtx *flow.CallbackContext) error {
				after.Add(1)
				assert.Equal(t, "The weather in Tokyo is sunny with 25°C.", cbCtx.Result)
				return nil
			}),
		}
	})
	require.NoError(t, err)

	_, err = a.Run(context.Background(), nil, core.UserText("weather?"))
	require.NoError(t, err)
	assert.Equal(t, int32(2), before.Load())
	assert.Equal(t, int32(1), after.Load())
}

func TestWithRunID(t *testing.T) {
	a, err := New("a", model.NewMockModel("mock", "mock"))
	require.NoError(t, err)

	res, err := a.Run(WithRunID(context.Background(), "run-42"), nil, core.UserText("Hi"))
	require.NoError(t, err)
	assert.Equal(t, "run-42", res.RunID)

	s := a.RunStream(WithRunID(context.Background(), "run-43"), nil, core.UserText("Hi"))
	defer s.Close()
	assert.Equal(t, "run-43", s.RunID())
}
