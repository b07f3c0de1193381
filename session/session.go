package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"messenger-gateway/backend"
	"messenger-gateway/model"
	"messenger-gateway/notification"
	"messenger-gateway/store"
	"messenger-gateway/transport"

	"github.com/google/uuid"
	"github.com/zishang520/engine.io/v2/log"
)

var logger = log.NewLog("gateway:session")

var (
	ErrNoSession           = errors.New("no session for user")
	ErrStale               = errors.New("superseded by a newer request")
	ErrUnknownConversation = errors.New("unknown conversation")
	ErrNoTarget            = errors.New("notification has no target view")
)

const (
	conversationsTarget = "conversations"
	activeTarget        = "active"
)

// Channel is the push channel a Session drives.
type Channel interface {
	transport.Subscriber
	Connect(ctx context.Context, userId string, token string) error
	Disconnect() error
	Connected() bool
	JoinConversation(id string) error
	LeaveConversation(id string) error
	StartTyping(conversationId string) error
	StopTyping(conversationId string) error
	MarkSeen(conversationId string) error
}

type Posts interface {
	ListPosts(ctx context.Context) ([]model.Post, error)
	GetPost(ctx context.Context, id string) (model.Post, error)
	CreatePost(ctx context.Context, post model.Post) (model.Post, error)
	UpdatePost(ctx context.Context, post model.Post) (model.Post, error)
	DeletePost(ctx context.Context, id string) error
}

// Backend is the REST collaborator, as seen by one user.
type Backend interface {
	Posts
	FetchConversations(ctx context.Context) ([]model.Conversation, error)
	CreateConversation(ctx context.Context, participantId string) (model.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	FetchMessages(ctx context.Context, conversationId string) ([]model.Message, error)
	SendMessage(ctx context.Context, conversationId string, draft backend.MessageDraft) (model.Message, error)
	EditMessage(ctx context.Context, conversationId string, messageId string, text string) (model.Message, error)
	DeleteMessage(ctx context.Context, conversationId string, messageId string) error
	MarkRead(ctx context.Context, conversationId string) error
}

// Session binds the push channel, the conversation store and the
// notification feed of one user.
type Session struct {
	Id string

	identity      model.Identity
	channel       Channel
	api           Backend
	store         *store.Store
	notifications *notification.Aggregator
	gens          *Generations

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	stopped bool
	subs    []transport.Subscription
	onStop  []func()
	tasks   sync.WaitGroup
}

func New(identity model.Identity, channel Channel, api Backend, notifications *notification.Aggregator) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	if notifications == nil {
		notifications = notification.New()
	}
	return &Session{
		Id:            uuid.NewString(),
		identity:      identity,
		channel:       channel,
		api:           api,
		store:         store.New(identity.UserId),
		notifications: notifications,
		gens:          NewGenerations(),
		ctx:           ctx,
		cancel:        cancel,
	}
}

func (s *Session) Identity() model.Identity { return s.identity }

func (s *Session) UserId() string { return s.identity.UserId }

func (s *Session) Store() *store.Store { return s.store }

func (s *Session) Notifications() *notification.Aggregator { return s.notifications }

func (s *Session) Posts() Posts { return s.api }

func (s *Session) Connected() bool { return s.channel.Connected() }

// Start subscribes to the push channel, connects it and loads the
// conversation list. A failed load leaves the list empty.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.subscribeLocked()
	s.mu.Unlock()

	if err := s.channel.Connect(ctx, s.identity.UserId, s.identity.Token); err != nil {
		s.Stop()
		return fmt.Errorf("connect push channel: %w", err)
	}
	if err := s.LoadConversations(ctx); err != nil {
		logger.Debug("initial load for user %s failed: %v", s.identity.UserId, err)
	}
	return nil
}

// Stop releases every subscription, runs the registered stop hooks and
// disconnects. In-flight continuations are discarded.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	subs, hooks := s.subs, s.onStop
	s.subs, s.onStop = nil, nil
	s.mu.Unlock()

	s.cancel()
	for _, sub := range subs {
		sub.Unsubscribe()
	}
	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}
	if err := s.channel.Disconnect(); err != nil {
		logger.Debug("disconnect for user %s: %v", s.identity.UserId, err)
	}
	s.tasks.Wait()
}

// OnStop registers fn to run when the session stops. Hooks run in reverse
// order of registration.
func (s *Session) OnStop(fn func()) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		fn()
		return
	}
	s.onStop = append(s.onStop, fn)
	s.mu.Unlock()
}

// Wait blocks until background work started by inbound events is done.
func (s *Session) Wait() {
	s.tasks.Wait()
}

func (s *Session) spawn(fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		fn(s.ctx)
	}()
}

func (s *Session) subscribeLocked() {
	uid := s.identity.UserId
	s.subs = append(s.subs,
		transport.OnMessageReceived(s.channel, s.onMessage),
		transport.OnMessageUpdated(s.channel, func(ev model.MessageEvent) {
			at := time.Now()
			if ev.Message.UpdatedAt != nil {
				at = *ev.Message.UpdatedAt
			}
			s.store.EditMessageAt(ev.ConversationId, ev.Message.Id, ev.Message.Text, at)
		}),
		transport.OnMessageDeleted(s.channel, func(ev model.MessageDeletedEvent) {
			s.store.DeleteMessage(ev.ConversationId, ev.MessageId)
		}),
		transport.OnTypingStart(s.channel, func(ev model.TypingEvent) {
			if ev.UserId != uid {
				s.store.SetTyping(ev.ConversationId, ev.UserId)
			}
		}),
		transport.OnTypingStop(s.channel, func(ev model.TypingEvent) {
			s.store.SetTyping(ev.ConversationId, "")
		}),
		transport.OnMessagesRead(s.channel, func(ev model.ReadReceiptEvent) {
			if ev.ReaderId != uid {
				s.store.MarkReadByPeer(ev.ConversationId)
			}
		}),
		transport.OnUserStatus(s.channel, func(ev model.PresenceEvent) {
			s.store.SetPresence(ev.UserId, ev.Online)
		}),
		s.channel.Subscribe(transport.EventConnectError, func(raw json.RawMessage) {
			logger.Debug("push channel of user %s rejected: %s", uid, raw)
		}),
		s.channel.Subscribe(transport.EventDisconnect, func(raw json.RawMessage) {
			logger.Debug("push channel of user %s closed: %s", uid, raw)
		}),
	)
	s.subs = append(s.subs, transport.OnNotification(s.channel, func(ev model.NotificationEvent) {
		s.notifications.Add(ev)
	})...)
}

func (s *Session) onMessage(ev model.MessageEvent) {
	if _, known := s.store.State().Conversation(ev.ConversationId); !known {
		if ev.Conversation == nil {
			s.spawn(func(ctx context.Context) {
				if err := s.LoadConversations(ctx); err != nil && !errors.Is(err, ErrStale) {
					logger.Debug("refetch after message for unknown conversation %s: %v", ev.ConversationId, err)
				}
			})
			return
		}
		s.store.AddConversation(ev.Conversation.Conversation())
	}

	// the duplicate check and the append share one dispatch, so an echo
	// racing the commit of our own send is counted once
	own := ev.Message.SenderId == s.identity.UserId
	appended := false
	st := s.store.Dispatch(func(st store.State) store.State {
		conv, ok := st.Conversation(ev.ConversationId)
		if !ok || conv.MessageIndex(ev.Message.Id) >= 0 {
			return st
		}
		appended = true
		st = st.AppendMessage(ev.ConversationId, ev.Message, own)
		if st.Typing[ev.ConversationId] == ev.Message.SenderId {
			st = st.SetTyping(ev.ConversationId, "")
		}
		return st
	})
	if appended && !own && st.ActiveId == ev.ConversationId {
		s.spawn(func(ctx context.Context) {
			if err := s.MarkRead(ctx, ev.ConversationId); err != nil {
				logger.Debug("mark active conversation %s read: %v", ev.ConversationId, err)
			}
		})
	}
}

// signal logs the failure of an advisory outbound signal.
func signal(what string, err error) {
	if err != nil {
		logger.Debug("%s: %v", what, err)
	}
}

func (s *Session) LoadConversations(ctx context.Context) error {
	ticket := s.gens.Next(conversationsTarget)
	list, err := s.api.FetchConversations(ctx)
	if err != nil {
		return fmt.Errorf("load conversations: %w", err)
	}
	if !ticket.Current() {
		return ErrStale
	}
	s.store.Dispatch(func(st store.State) store.State {
		return st.SetConversations(keepHistory(st, list))
	})
	return nil
}

// keepHistory carries already fetched messages over to conversations the
// list returned without them.
func keepHistory(st store.State, list []model.Conversation) []model.Conversation {
	out := make([]model.Conversation, len(list))
	for i, c := range list {
		if len(c.Messages) == 0 {
			if prev, ok := st.Conversation(c.Id); ok {
				c.Messages = prev.Messages
			}
		}
		out[i] = c
	}
	return out
}

// OpenConversation selects a conversation, joins its room, fetches its
// history and marks it read. The fetched history is dropped when another
// conversation was opened or the selection was closed meanwhile.
func (s *Session) OpenConversation(ctx context.Context, id string) error {
	st := s.store.State()
	if _, ok := st.Conversation(id); !ok {
		return fmt.Errorf("open %s: %w", id, ErrUnknownConversation)
	}
	ticket := s.gens.Next(activeTarget)
	s.store.SetActiveConversation(id)
	if st.ActiveId != "" && st.ActiveId != id {
		signal("leave conversation", s.channel.LeaveConversation(st.ActiveId))
	}
	signal("join conversation", s.channel.JoinConversation(id))

	messages, err := s.api.FetchMessages(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch messages of %s: %w", id, err)
	}
	if !ticket.Current() || s.store.State().ActiveId != id {
		return ErrStale
	}
	s.store.SetMessages(id, messages)
	return s.MarkRead(ctx, id)
}

func (s *Session) CloseConversation() {
	prev := s.store.State().ActiveId
	s.gens.Invalidate(activeTarget)
	s.store.SetActiveConversation("")
	if prev != "" {
		signal("leave conversation", s.channel.LeaveConversation(prev))
	}
}

// StartConversation creates (or finds) the conversation with participantId
// and adds it to the list.
func (s *Session) StartConversation(ctx context.Context, participantId string) (model.Conversation, error) {
	created, err := s.api.CreateConversation(ctx, participantId)
	if err != nil {
		return model.Conversation{}, fmt.Errorf("start conversation: %w", err)
	}
	conv, _ := s.store.AddConversation(created).Conversation(created.Id)
	return conv, nil
}

// SendMessage commits the message to the store only once the backend
// accepted it.
func (s *Session) SendMessage(ctx context.Context, conversationId string, draft backend.MessageDraft) (model.Message, error) {
	if _, ok := s.store.State().Conversation(conversationId); !ok {
		return model.Message{}, fmt.Errorf("send to %s: %w", conversationId, ErrUnknownConversation)
	}
	if draft.ClientMessageId == "" {
		draft.ClientMessageId = uuid.NewString()
	}
	msg, err := s.api.SendMessage(ctx, conversationId, draft)
	if err != nil {
		return model.Message{}, fmt.Errorf("send message: %w", err)
	}
	if msg.SenderId == "" {
		msg.SenderId = s.identity.UserId
	}
	s.store.Dispatch(func(st store.State) store.State {
		if conv, ok := st.Conversation(conversationId); ok && conv.MessageIndex(msg.Id) >= 0 {
			return st
		}
		return st.AppendMessage(conversationId, msg, true)
	})
	signal("stop typing", s.channel.StopTyping(conversationId))
	msg.IsRead = true
	return msg, nil
}

// EditMessage applies the edit once the backend accepted it. Of two
// overlapping edits of one message only the latest is applied.
func (s *Session) EditMessage(ctx context.Context, conversationId string, messageId string, text string) (model.Message, error) {
	ticket := s.gens.Next("message:" + conversationId + "/" + messageId)
	msg, err := s.api.EditMessage(ctx, conversationId, messageId, text)
	if err != nil {
		return model.Message{}, fmt.Errorf("edit message: %w", err)
	}
	if !ticket.Current() {
		return msg, ErrStale
	}
	at := time.Now()
	if msg.UpdatedAt != nil {
		at = *msg.UpdatedAt
	}
	s.store.EditMessageAt(conversationId, messageId, text, at)
	return msg, nil
}

func (s *Session) DeleteMessage(ctx context.Context, conversationId string, messageId string) error {
	if err := s.api.DeleteMessage(ctx, conversationId, messageId); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	s.gens.Invalidate("message:" + conversationId + "/" + messageId)
	s.store.DeleteMessage(conversationId, messageId)
	return nil
}

func (s *Session) DeleteConversation(ctx context.Context, id string) error {
	if err := s.api.DeleteConversation(ctx, id); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if s.store.State().ActiveId == id {
		s.gens.Invalidate(activeTarget)
		signal("leave conversation", s.channel.LeaveConversation(id))
	}
	s.store.DeleteConversation(id)
	return nil
}

func (s *Session) MarkRead(ctx context.Context, conversationId string) error {
	if err := s.api.MarkRead(ctx, conversationId); err != nil {
		return fmt.Errorf("mark %s read: %w", conversationId, err)
	}
	s.store.MarkRead(conversationId)
	signal("read receipt", s.channel.MarkSeen(conversationId))
	return nil
}

func (s *Session) Typing(conversationId string, typing bool) error {
	if typing {
		return s.channel.StartTyping(conversationId)
	}
	return s.channel.StopTyping(conversationId)
}

// Notify feeds an event that did not arrive over the push channel.
func (s *Session) Notify(event model.NotificationEvent) bool {
	return s.notifications.Add(event)
}

func (s *Session) Dismiss(index int) error {
	return s.notifications.Dismiss(index)
}

func (s *Session) ClearAll() {
	s.notifications.ClearAll()
}

func (s *Session) MarkSeen() {
	s.notifications.MarkSeen()
}

// Navigate resolves the view a notification leads to.
func (s *Session) Navigate(index int) (notification.Target, error) {
	event, ok := s.notifications.At(index)
	if !ok {
		return notification.Target{}, fmt.Errorf("%w: %d", notification.ErrOutOfRange, index)
	}
	target, ok := notification.NavigateFor(event)
	if !ok {
		return notification.Target{}, ErrNoTarget
	}
	return target, nil
}

type Snapshot struct {
	SessionId     string                    `json:"sessionId"`
	UserId        string                    `json:"userId"`
	Connected     bool                      `json:"connected"`
	Conversations []model.Conversation      `json:"conversations"`
	ActiveId      string                    `json:"activeId,omitempty"`
	TotalUnread   int                       `json:"totalUnread"`
	Presence      map[string]bool           `json:"presence"`
	Typing        map[string]string         `json:"typing"`
	Notifications []model.NotificationEvent `json:"notifications"`
	Unseen        int                       `json:"unseen"`
}

func (s *Session) Snapshot() Snapshot {
	st := s.store.State()
	return Snapshot{
		SessionId:     s.Id,
		UserId:        s.identity.UserId,
		Connected:     s.channel.Connected(),
		Conversations: st.Conversations,
		ActiveId:      st.ActiveId,
		TotalUnread:   st.TotalUnread(),
		Presence:      st.Presence,
		Typing:        st.Typing,
		Notifications: s.notifications.List(),
		Unseen:        s.notifications.Unseen(),
	}
}
