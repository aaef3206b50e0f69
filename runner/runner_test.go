package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hupe1980/chatflow/agent"
	"github.com/hupe1980/chatflow/core"
	"github.com/hupe1980/chatflow/internal/testutil"
	"github.com/hupe1980/chatflow/model"
	"github.com/hupe1980/chatflow/session"
	"github.com/hupe1980/chatflow/tool"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newAgent(t *testing.T, backend model.Model, tools ...tool.Tool) *agent.Agent {
	t.Helper()
	a, err := agent.New("TestAgent", backend, func(o *agent.Options) {
		o.Instructions = "You are a helpful assistant."
		o.Tools = tools
	})
	require.NoError(t, err)
	return a
}

// failingStore rejects every append.
type failingStore struct{ session.Store }

func (failingStore) Append(string, ...core.Message) error { return errors.New("disk full") }

func TestRunner_RunPersistsHistory(t *testing.T) {
	backend := model.NewMockModel("mock", "mock").AddText("Hi, I'm Gopher.").AddText("You said hello.")
	store := session.NewInMemoryStore()
	r := New(newAgent(t, backend), func(o *Options) { o.SessionStore = store })

	_, err := r.Run(context.Background(), "s1", core.UserText("Hello"))
	require.NoError(t, err)

	res, err := r.Run(context.Background(), "s1", core.UserText("What did I say?"))
	require.NoError(t, err)
	assert.Equal(t, "You said hello.", res.Text)

	reqs := backend.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t,
		[]core.Role{core.RoleUser, core.RoleAssistant, core.RoleUser},
		testutil.Roles(reqs[1].Messages),
	)

	sess, err := store.Get("s1")
	require.NoError(t, err)
	assert.Len(t, sess.Messages, 4)
	assert.Same(t, store, r.Store())
}

func TestRunner_FailedRunIsNotPersisted(t *testing.T) {
	backend := model.NewMockModel("mock", "mock").AddError(errors.New("unauthorized"))
	r := New(newAgent(t, backend))

	_, err := r.Run(context.Background(), "s1", core.UserText("Hello"))
	var be *model.BackendError
	require.ErrorAs(t, err, &be)

	sess, err := r.Store().Get("s1")
	require.NoError(t, err)
	assert.Empty(t, sess.Messages)
}

func TestRunner_PersistFailure(t *testing.T) {
	backend := model.NewMockModel("mock", "mock")
	r := New(newAgent(t, backend), func(o *Options) {
		o.SessionStore = failingStore{Store: session.NewInMemoryStore()}
	})

	_, err := r.Run(context.Background(), "s1", core.UserText("Hello"))
	assert.ErrorContains(t, err, "disk full")

	s, err := r.RunStream(context.Background(), "s1", core.UserText("Hello"))
	require.NoError(t, err)
	_, err = s.Wait()
	assert.ErrorContains(t, err, "disk full")
	assert.Nil(t, s.Result())
}

func TestRunner_RunStreamPersistsBeforeDone(t *testing.T) {
	backend := model.NewMockModel("mock", "mock").AddText("Once upon a time")
	r := New(newAgent(t, backend))

	s, err := r.RunStream(context.Background(), "s1", core.UserText("Tell me a story"))
	require.NoError(t, err)

	res, err := s.Wait()
	require.NoError(t, err)
	assert.Equal(t, "Once upon a time", res.Text)

	sess, err := r.Store().Get("s1")
	require.NoError(t, err)
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, "Once upon a time", sess.Messages[1].Text())
}

func TestRunner_Cancel(t *testing.T) {
	started := make(chan struct{})
	backend := model.NewMockModel("mock", "mock").AddToolCall("slow", `{}`)
	r := New(newAgent(t, backend, testutil.BlockingTool("slow", started)))

	s, err := r.RunStream(context.Background(), "s1", core.UserText("go"))
	require.NoError(t, err)

	<-started
	assert.Equal(t, []string{s.RunID()}, r.ActiveRuns())
	require.NoError(t, r.Cancel(s.RunID()))

	_, err = s.Wait()
	assert.ErrorIs(t, err, context.Canceled)

	assert.Eventually(t, func() bool { return len(r.ActiveRuns()) == 0 }, time.Second, 5*time.Millisecond)

	sess, err := r.Store().Get("s1")
	require.NoError(t, err)
	assert.Empty(t, sess.Messages)

	assert.ErrorIs(t, r.Cancel("unknown"), ErrRunNotFound)
}

func TestRunner_MaxConcurrentRuns(t *testing.T) {
	started := make(chan struct{})
	backend := model.NewMockModel("mock", "mock").AddToolCall("slow", `{}`)
	r := New(newAgent(t, backend, testutil.BlockingTool("slow", started)), func(o *Options) {
		o.MaxConcurrentRuns = 1
	})

	s, err := r.RunStream(context.Background(), "s1", core.UserText("go"))
	require.NoError(t, err)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = r.Run(ctx, "s2", core.UserText("blocked"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, s.Close())
}
