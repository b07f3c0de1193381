package store

import (
	"sync"
	"testing"

	"messenger-gateway/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreNotifiesListenersInOrder(t *testing.T) {
	s := New(me)
	var calls []string

	s.OnChange(func(State) { calls = append(calls, "first") })
	s.OnChange(func(State) { calls = append(calls, "second") })

	s.AddConversation(model.Conversation{Id: "c1"})

	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestStoreUnsubscribe(t *testing.T) {
	s := New(me)
	count := 0

	unsubscribe := s.OnChange(func(State) { count++ })
	s.AddConversation(model.Conversation{Id: "c1"})
	unsubscribe()
	unsubscribe()
	s.AddConversation(model.Conversation{Id: "c2"})

	assert.Equal(t, 1, count)
}

func TestStoreListenerSeesNewState(t *testing.T) {
	s := New(me)
	s.AddConversation(model.Conversation{Id: "c1"})

	var seen State
	s.OnChange(func(st State) { seen = st })
	s.AppendMessage("c1", model.Message{Id: "m1", SenderId: "u-other"}, false)

	c, ok := seen.Conversation("c1")
	require.True(t, ok)
	assert.Equal(t, 1, c.UnreadCount)
	assert.Equal(t, seen, s.State())
}

func TestStoreConcurrentAppends(t *testing.T) {
	s := New(me)
	s.AddConversation(model.Conversation{Id: "c1"})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AppendMessage("c1", model.Message{SenderId: "u-other"}, false)
		}()
	}
	wg.Wait()

	c, _ := s.State().Conversation("c1")
	assert.Equal(t, 50, c.UnreadCount)
	assert.Len(t, c.Messages, 50)
}

func TestStoreScenario(t *testing.T) {
	s := New(me)
	s.SetConversations([]model.Conversation{{Id: "c1"}})

	s.AppendMessage("c1", model.Message{Id: "m1", SenderId: "u-other"}, false)
	s.AppendMessage("c1", model.Message{Id: "m2", SenderId: me}, true)
	s.AppendMessage("c1", model.Message{Id: "m3", SenderId: "u-other"}, false)

	c, _ := s.State().Conversation("c1")
	assert.Equal(t, 2, c.UnreadCount)

	s.MarkRead("c1")
	c, _ = s.State().Conversation("c1")
	assert.Equal(t, 0, c.UnreadCount)

	before := s.State()
	s.DeleteMessage("c1", "m9")
	assert.Equal(t, before, s.State())
}
