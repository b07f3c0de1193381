package session

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"messenger-gateway/backend"
	"messenger-gateway/model"
	"messenger-gateway/notification"
	"messenger-gateway/session/sessiontest"
	"messenger-gateway/store"
	"messenger-gateway/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alice = model.Identity{UserId: "u1", Name: "Alice", Token: "tok-1"}

var errRejected = &backend.Error{Status: http.StatusUnprocessableEntity, Message: "rejected"}

func incoming(id string, sender string, text string) model.Message {
	return model.Message{Id: id, SenderId: sender, Text: text, CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func started(t *testing.T, conversations ...model.Conversation) (*Session, *sessiontest.Channel, *sessiontest.Backend) {
	t.Helper()
	ch := sessiontest.NewChannel()
	api := sessiontest.NewBackend(conversations...)
	s := New(alice, ch, api, notification.New())
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Stop)
	return s, ch, api
}

func unread(t *testing.T, s *Session, id string) int {
	t.Helper()
	c, ok := s.Store().State().Conversation(id)
	require.True(t, ok, "conversation %s", id)
	return c.UnreadCount
}

func TestStartConnectsAndLoads(t *testing.T) {
	s, ch, api := started(t, model.Conversation{Id: "c1", ParticipantId: "u2"})

	assert.True(t, s.Connected())
	assert.Equal(t, []string{"list"}, api.Calls())
	assert.Len(t, s.Store().State().Conversations, 1)
	assert.NotZero(t, ch.Handlers())

	s.Stop()
	assert.False(t, s.Connected())
	assert.Zero(t, ch.Handlers())
}

func TestStartFailsWhenChannelRejects(t *testing.T) {
	ch := sessiontest.NewChannel()
	ch.ConnectErr = errors.New("invalid token")
	s := New(alice, ch, sessiontest.NewBackend(), nil)

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Zero(t, ch.Handlers())
}

func TestInboundMessagesCountUnread(t *testing.T) {
	s, ch, _ := started(t, model.Conversation{Id: "c1", ParticipantId: "u2"})

	ch.Emit(transport.EventMessageReceive, model.MessageEvent{ConversationId: "c1", Message: incoming("m1", "u2", "hi")})
	ch.Emit(transport.EventMessageReceive, model.MessageEvent{ConversationId: "c1", Message: incoming("m2", "u1", "hello")})
	ch.Emit(transport.EventMessageReceive, model.MessageEvent{ConversationId: "c1", Message: incoming("m3", "u2", "still there?")})
	ch.Emit(transport.EventMessageReceive, model.MessageEvent{ConversationId: "c1", Message: incoming("m3", "u2", "still there?")})

	c, _ := s.Store().State().Conversation("c1")
	assert.Len(t, c.Messages, 3)
	assert.Equal(t, 2, c.UnreadCount)
	assert.Equal(t, "still there?", c.LastMessage)
}

func TestMessageForUnknownConversationWithSummary(t *testing.T) {
	s, ch, _ := started(t)

	ch.Emit(transport.EventMessageReceive, model.MessageEvent{
		ConversationId: "c9",
		Message:        incoming("m1", "u3", "is the flat free?"),
		Conversation:   &model.ConversationSummary{Id: "c9", ParticipantId: "u3", ParticipantName: "Carol"},
	})

	c, ok := s.Store().State().Conversation("c9")
	require.True(t, ok)
	assert.Equal(t, "Carol", c.ParticipantName)
	assert.Equal(t, 1, c.UnreadCount)
}

func TestEchoCommittedMidDeliveryIsCountedOnce(t *testing.T) {
	s, ch, _ := started(t)

	own := incoming("m1", alice.UserId, "still available?")
	committed := false
	s.Store().OnChange(func(st store.State) {
		if _, ok := st.Conversation("c9"); ok && !committed {
			committed = true
			s.Store().AppendMessage("c9", own, true)
		}
	})

	ch.Emit(transport.EventMessageReceive, model.MessageEvent{
		ConversationId: "c9",
		Message:        own,
		Conversation:   &model.ConversationSummary{Id: "c9", ParticipantId: "u3"},
	})

	c, ok := s.Store().State().Conversation("c9")
	require.True(t, ok)
	assert.Len(t, c.Messages, 1)
	assert.Zero(t, c.UnreadCount)
}

func TestMessageForUnknownConversationRefetches(t *testing.T) {
	s, ch, api := started(t)
	api.SetConversations(model.Conversation{Id: "c9", ParticipantId: "u3", UnreadCount: 1})

	ch.Emit(transport.EventMessageReceive, model.MessageEvent{ConversationId: "c9", Message: incoming("m1", "u3", "hey")})
	s.Wait()

	assert.Equal(t, []string{"list", "list"}, api.Calls())
	assert.Equal(t, 1, unread(t, s, "c9"))
}

func TestMessageIntoActiveConversationIsMarkedRead(t *testing.T) {
	s, ch, api := started(t, model.Conversation{Id: "c1", ParticipantId: "u2"})
	require.NoError(t, s.OpenConversation(context.Background(), "c1"))

	ch.Emit(transport.EventTypingStart, model.TypingEvent{ConversationId: "c1", UserId: "u2"})
	assert.Equal(t, "u2", s.Store().State().Typing["c1"])

	ch.Emit(transport.EventMessageReceive, model.MessageEvent{ConversationId: "c1", Message: incoming("m1", "u2", "hi")})
	s.Wait()

	assert.Equal(t, 0, unread(t, s, "c1"))
	assert.Empty(t, s.Store().State().Typing)
	assert.Equal(t, []string{"list", "messages:c1", "read:c1", "read:c1"}, api.Calls())
	assert.Equal(t, []string{"join:c1", "seen:c1", "seen:c1"}, ch.Signals())
}

func TestFailedSendIsNotCommitted(t *testing.T) {
	s, _, api := started(t, model.Conversation{Id: "c1", ParticipantId: "u2"})
	api.SendErr = errRejected

	_, err := s.SendMessage(context.Background(), "c1", backend.MessageDraft{Text: "hi"})
	require.Error(t, err)
	assert.True(t, backend.IsStatus(err, http.StatusUnprocessableEntity))

	c, _ := s.Store().State().Conversation("c1")
	assert.Empty(t, c.Messages)
	assert.Empty(t, c.LastMessage)
}

func TestSendCommitsOnceAndIgnoresEcho(t *testing.T) {
	s, ch, _ := started(t, model.Conversation{Id: "c1", ParticipantId: "u2"})

	msg, err := s.SendMessage(context.Background(), "c1", backend.MessageDraft{Text: "hi"})
	require.NoError(t, err)
	assert.True(t, msg.IsRead)

	ch.Emit(transport.EventMessageReceive, model.MessageEvent{ConversationId: "c1", Message: msg})

	c, _ := s.Store().State().Conversation("c1")
	require.Len(t, c.Messages, 1)
	assert.True(t, c.Messages[0].IsRead)
	assert.Equal(t, 0, c.UnreadCount)
	assert.Contains(t, ch.Signals(), "idle:c1")
}

func TestSendToUnknownConversation(t *testing.T) {
	s, _, api := started(t)

	_, err := s.SendMessage(context.Background(), "nope", backend.MessageDraft{Text: "hi"})
	assert.ErrorIs(t, err, ErrUnknownConversation)
	assert.Equal(t, []string{"list"}, api.Calls())
}

func TestSupersededHistoryIsDropped(t *testing.T) {
	s, ch, api := started(t,
		model.Conversation{Id: "c1", ParticipantId: "u2"},
		model.Conversation{Id: "c2", ParticipantId: "u3"},
	)
	blocked := make(chan struct{})
	release := make(chan struct{})
	api.FetchMessagesFunc = func(ctx context.Context, id string) ([]model.Message, error) {
		if id == "c1" {
			close(blocked)
			<-release
		}
		return []model.Message{incoming("m-"+id, "u9", "history of "+id)}, nil
	}

	done := make(chan error, 1)
	go func() { done <- s.OpenConversation(context.Background(), "c1") }()
	<-blocked

	require.NoError(t, s.OpenConversation(context.Background(), "c2"))
	close(release)
	require.ErrorIs(t, <-done, ErrStale)

	st := s.Store().State()
	assert.Equal(t, "c2", st.ActiveId)
	c1, _ := st.Conversation("c1")
	assert.Empty(t, c1.Messages)
	c2, _ := st.Conversation("c2")
	assert.Len(t, c2.Messages, 1)
	assert.Equal(t, []string{"join:c1", "leave:c1", "join:c2", "seen:c2"}, ch.Signals())
}

func TestCloseConversationDropsPendingHistory(t *testing.T) {
	s, ch, api := started(t, model.Conversation{Id: "c1", ParticipantId: "u2"})
	blocked := make(chan struct{})
	release := make(chan struct{})
	api.FetchMessagesFunc = func(ctx context.Context, id string) ([]model.Message, error) {
		close(blocked)
		<-release
		return []model.Message{incoming("m1", "u2", "late")}, nil
	}

	done := make(chan error, 1)
	go func() { done <- s.OpenConversation(context.Background(), "c1") }()
	<-blocked
	s.CloseConversation()
	close(release)

	require.ErrorIs(t, <-done, ErrStale)
	assert.Empty(t, s.Store().State().ActiveId)
	c, _ := s.Store().State().Conversation("c1")
	assert.Empty(t, c.Messages)
	assert.Equal(t, []string{"join:c1", "leave:c1"}, ch.Signals())
}

func TestLatestEditWins(t *testing.T) {
	s, ch, api := started(t, model.Conversation{Id: "c1", ParticipantId: "u2"})
	ch.Emit(transport.EventMessageReceive, model.MessageEvent{ConversationId: "c1", Message: incoming("m1", "u1", "draft")})

	blocked := make(chan struct{})
	release := make(chan struct{})
	api.EditMessageFunc = func(ctx context.Context, conversationId string, messageId string, text string) (model.Message, error) {
		if text == "first" {
			close(blocked)
			<-release
		}
		return model.Message{Id: messageId, Text: text}, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.EditMessage(context.Background(), "c1", "m1", "first")
		done <- err
	}()
	<-blocked
	_, err := s.EditMessage(context.Background(), "c1", "m1", "second")
	require.NoError(t, err)
	close(release)
	require.ErrorIs(t, <-done, ErrStale)

	c, _ := s.Store().State().Conversation("c1")
	assert.Equal(t, "second", c.Messages[0].Text)
	assert.NotNil(t, c.Messages[0].UpdatedAt)
}

func TestDeleteActiveConversation(t *testing.T) {
	s, ch, _ := started(t, model.Conversation{Id: "c1", ParticipantId: "u2"}, model.Conversation{Id: "c2", ParticipantId: "u3"})
	require.NoError(t, s.OpenConversation(context.Background(), "c1"))

	require.NoError(t, s.DeleteConversation(context.Background(), "c1"))

	st := s.Store().State()
	assert.Empty(t, st.ActiveId)
	assert.Len(t, st.Conversations, 1)
	assert.Contains(t, ch.Signals(), "leave:c1")
}

func TestStartConversationIsIdempotent(t *testing.T) {
	s, _, _ := started(t)

	first, err := s.StartConversation(context.Background(), "u7")
	require.NoError(t, err)
	second, err := s.StartConversation(context.Background(), "u7")
	require.NoError(t, err)

	assert.Equal(t, first.Id, second.Id)
	assert.Len(t, s.Store().State().Conversations, 1)
}

func TestPeerSignals(t *testing.T) {
	s, ch, _ := started(t, model.Conversation{Id: "c1", ParticipantId: "u2"})
	_, err := s.SendMessage(context.Background(), "c1", backend.MessageDraft{Text: "hi"})
	require.NoError(t, err)
	s.Store().Dispatch(func(st store.State) store.State {
		c, _ := st.Conversation("c1")
		c.Messages[0].IsRead = false
		return st.SetConversations([]model.Conversation{c})
	})

	ch.Emit(transport.EventTypingStart, model.TypingEvent{ConversationId: "c1", UserId: "u1"})
	assert.Empty(t, s.Store().State().Typing)

	ch.Emit(transport.EventMessagesReadUpdate, model.ReadReceiptEvent{ConversationId: "c1", ReaderId: "u2"})
	c, _ := s.Store().State().Conversation("c1")
	assert.True(t, c.Messages[0].IsRead)

	ch.Emit(transport.EventUserStatus, model.PresenceEvent{UserId: "u2", Online: true})
	assert.True(t, s.Store().State().Presence["u2"])

	ch.Emit(transport.EventMessageDeleted, model.MessageDeletedEvent{ConversationId: "c1", MessageId: c.Messages[0].Id})
	c, _ = s.Store().State().Conversation("c1")
	assert.Empty(t, c.Messages)
}

func TestNotificationsFromChannel(t *testing.T) {
	s, ch, _ := started(t)
	like := model.NotificationEvent{Type: model.NotificationLike, PostId: "p1", Timestamp: 100}

	ch.Emit(transport.EventNotificationLike, like)
	ch.Emit(transport.EventNotificationLike, like)
	assert.False(t, s.Notify(like))

	assert.Equal(t, 1, s.Notifications().Len())
	target, err := s.Navigate(0)
	require.NoError(t, err)
	assert.Equal(t, "/posts/p1", target.Path)

	_, err = s.Navigate(3)
	assert.Error(t, err)

	snap := s.Snapshot()
	assert.Equal(t, 1, snap.Unseen)
	s.MarkSeen()
	assert.Equal(t, 0, s.Snapshot().Unseen)

	require.NoError(t, s.Dismiss(0))
	assert.Zero(t, s.Notifications().Len())
}

func TestUnknownNotificationTypeHasNoTarget(t *testing.T) {
	s, _, _ := started(t)
	s.Notify(model.NotificationEvent{Type: "poke", Timestamp: 1})

	_, err := s.Navigate(0)
	assert.ErrorIs(t, err, ErrNoTarget)
}

func TestStopRunsHooksAndIsIdempotent(t *testing.T) {
	s, _, _ := started(t)
	var order []int
	s.OnStop(func() { order = append(order, 1) })
	s.OnStop(func() { order = append(order, 2) })

	s.Stop()
	s.Stop()
	assert.Equal(t, []int{2, 1}, order)

	ran := false
	s.OnStop(func() { ran = true })
	assert.True(t, ran)
}
