package transport

import (
	"encoding/json"

	"messenger-gateway/model"
)

// Inbound events.
const (
	EventMessageReceive      = "message:receive"
	EventMessageUpdated      = "message:updated"
	EventMessageDeleted      = "message:deleted"
	EventTypingStart         = "typing:start"
	EventTypingStop          = "typing:stop"
	EventMessagesReadUpdate  = "messages:read:update"
	EventUserStatus          = "user:status"
	EventNotificationMessage = "notification:message"
	EventNotificationLike    = "notification:like"
	EventNotificationComment = "notification:comment"
	EventNotificationFriend  = "notification:friend"
)

// Outbound events.
const (
	EventUserOnline        = "user:online"
	EventConversationJoin  = "conversation:join"
	EventConversationLeave = "conversation:leave"
	EventMessagesRead      = "messages:read"
)

// Local events raised by the Transport itself.
const (
	EventConnect      = "connect"
	EventConnectError = "connect_error"
	EventDisconnect   = "disconnect"
)

// NotificationEvents lists the four notification tags.
var NotificationEvents = []string{
	EventNotificationMessage,
	EventNotificationLike,
	EventNotificationComment,
	EventNotificationFriend,
}

// Subscriber is anything events can be subscribed on.
type Subscriber interface {
	Subscribe(event string, h Handler) Subscription
}

// On subscribes fn to event, decoding the payload into T. Payloads that
// do not decode are dropped.
func On[T any](s Subscriber, event string, fn func(T)) Subscription {
	return s.Subscribe(event, func(raw json.RawMessage) {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			logger.Debug("drop %s payload: %v", event, err)
			return
		}
		fn(v)
	})
}

func OnMessageReceived(s Subscriber, fn func(model.MessageEvent)) Subscription {
	return On(s, EventMessageReceive, fn)
}

func OnMessageUpdated(s Subscriber, fn func(model.MessageEvent)) Subscription {
	return On(s, EventMessageUpdated, fn)
}

func OnMessageDeleted(s Subscriber, fn func(model.MessageDeletedEvent)) Subscription {
	return On(s, EventMessageDeleted, fn)
}

func OnTypingStart(s Subscriber, fn func(model.TypingEvent)) Subscription {
	return On(s, EventTypingStart, fn)
}

func OnTypingStop(s Subscriber, fn func(model.TypingEvent)) Subscription {
	return On(s, EventTypingStop, fn)
}

func OnMessagesRead(s Subscriber, fn func(model.ReadReceiptEvent)) Subscription {
	return On(s, EventMessagesReadUpdate, fn)
}

func OnUserStatus(s Subscriber, fn func(model.PresenceEvent)) Subscription {
	return On(s, EventUserStatus, fn)
}

// OnNotification subscribes fn to every notification tag. The returned
// subscriptions must all be released.
func OnNotification(s Subscriber, fn func(model.NotificationEvent)) []Subscription {
	subs := make([]Subscription, 0, len(NotificationEvents))
	for _, event := range NotificationEvents {
		subs = append(subs, On(s, event, fn))
	}
	return subs
}

func (t *Transport) JoinConversation(id string) error {
	return t.Emit(EventConversationJoin, map[string]string{"conversationId": id})
}

func (t *Transport) LeaveConversation(id string) error {
	return t.Emit(EventConversationLeave, map[string]string{"conversationId": id})
}

func (t *Transport) StartTyping(conversationId string) error {
	return t.Emit(EventTypingStart, model.TypingEvent{ConversationId: conversationId, UserId: t.user()})
}

func (t *Transport) StopTyping(conversationId string) error {
	return t.Emit(EventTypingStop, model.TypingEvent{ConversationId: conversationId, UserId: t.user()})
}

// MarkSeen tells the server the user read a conversation.
func (t *Transport) MarkSeen(conversationId string) error {
	return t.Emit(EventMessagesRead, model.ReadReceiptEvent{ConversationId: conversationId, ReaderId: t.user()})
}

func (t *Transport) user() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.userId
}
