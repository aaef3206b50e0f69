package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chatflow/core"
)

// Interface compliance (compile-time assertion)
var _ Store = (*InMemoryStore)(nil)

func TestInMemoryStore_LazyCreateAndAppend(t *testing.T) {
	store := NewInMemoryStore()

	sess, err := store.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", sess.ID)
	assert.Empty(t, sess.Messages)
	assert.Equal(t, 1, store.Len())

	require.NoError(t, store.Append("s1", core.UserText("Hi"), core.AssistantText("Hello!")))

	sess, err = store.Get("s1")
	require.NoError(t, err)
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, "Hello!", sess.Messages[1].Text())
	assert.False(t, sess.UpdatedAt.Before(sess.CreatedAt))
}

func TestInMemoryStore_ReturnsClones(t *testing.T) {
	store := NewInMemoryStore()
	require.NoError(t, store.Append("s1", core.UserText("Hi")))

	sess, err := store.Get("s1")
	require.NoError(t, err)
	sess.Messages[0] = core.UserText("tampered")
	sess.Messages = append(sess.Messages, core.UserText("extra"))

	again, err := store.Get("s1")
	require.NoError(t, err)
	require.Len(t, again.Messages, 1)
	assert.Equal(t, "Hi", again.Messages[0].Text())
}

func TestInMemoryStore_Delete(t *testing.T) {
	store := NewInMemoryStore()
	require.NoError(t, store.Append("s1", core.UserText("Hi")))
	require.NoError(t, store.Delete("s1"))
	require.NoError(t, store.Delete("unknown"))
	assert.Equal(t, 0, store.Len())
}

func TestInMemoryStore_ConcurrentAppend(t *testing.T) {
	store := NewInMemoryStore()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Append("shared", core.UserText(fmt.Sprintf("msg %d", i)))
			_, _ = store.Get(fmt.Sprintf("s%d", i%5))
		}()
	}
	wg.Wait()

	sess, err := store.Get("shared")
	require.NoError(t, err)
	assert.Len(t, sess.Messages, 50)
}
