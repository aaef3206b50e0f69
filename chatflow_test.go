package chatflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chatflow/core"
	"github.com/hupe1980/chatflow/internal/testutil"
	"github.com/hupe1980/chatflow/model"
	"github.com/hupe1980/chatflow/session"
)

func TestNew_RequiresBackend(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestClient_CreateAgent(t *testing.T) {
	backend := model.NewMockModel("mock", "mock").
		AddToolCall("get_weather", `{"location":"Tokyo"}`).
		AddText("It is sunny in Tokyo.")
	c, err := New(backend)
	require.NoError(t, err)

	a, err := c.CreateAgent("WeatherAgent", "You are a helpful weather assistant.", testutil.WeatherTool(nil))
	require.NoError(t, err)
	assert.Equal(t, "You are a helpful weather assistant.", a.Instructions())

	res, err := a.Run(context.Background(), nil, core.UserText("What's the weather like in Tokyo?"))
	require.NoError(t, err)
	assert.Equal(t, "It is sunny in Tokyo.", res.Text)
	assert.Same(t, backend, c.Model())
}

func TestClient_DefaultsApplyToAgents(t *testing.T) {
	backend := model.NewMockModel("mock", "mock").
		AddToolCall("get_weather", `{"location":"Tokyo"}`).
		AddToolCall("get_weather", `{"location":"Tokyo"}`)
	c, err := New(backend, func(o *Options) { o.MaxTurns = 1 })
	require.NoError(t, err)

	a, err := c.CreateAgent("WeatherAgent", "", testutil.WeatherTool(nil))
	require.NoError(t, err)

	_, err = a.Run(context.Background(), nil, core.UserText("loop"))
	assert.ErrorIs(t, err, core.ErrTurnLimitExceeded)
}

func TestClient_RunnerSharesStore(t *testing.T) {
	store := session.NewInMemoryStore()
	c, err := New(model.NewMockModel("mock", "mock"), func(o *Options) { o.SessionStore = store })
	require.NoError(t, err)

	a, err := c.CreateAgent("EchoAgent", "Echo the user.")
	require.NoError(t, err)

	_, err = c.Runner(a).Run(context.Background(), "s1", core.UserText("Hi"))
	require.NoError(t, err)

	sess, err := c.SessionStore().Get("s1")
	require.NoError(t, err)
	assert.Len(t, sess.Messages, 2)
}
