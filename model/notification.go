package model

import "time"

type NotificationType string

const (
	NotificationMessage        NotificationType = "message"
	NotificationLike           NotificationType = "like"
	NotificationComment        NotificationType = "comment"
	NotificationFriendRequest  NotificationType = "friend-request"
	NotificationFriendAccepted NotificationType = "friend-accepted"
)

// NotificationEvent is a lightweight activity record, distinct from a
// conversation message. Id is set only when the sender assigned one.
type NotificationEvent struct {
	Id             string           `json:"id,omitempty"`
	Type           NotificationType `json:"type"`
	SenderId       string           `json:"senderId"`
	SenderName     string           `json:"senderName"`
	SenderAvatar   string           `json:"senderAvatar,omitempty"`
	Message        string           `json:"message"`
	CommentPreview string           `json:"commentPreview,omitempty"`
	MessagePreview string           `json:"messagePreview,omitempty"`
	PostId         string           `json:"postId,omitempty"`
	ConversationId string           `json:"conversationId,omitempty"`
	Timestamp      int64            `json:"timestamp"`
}

// CorrelationId is the post or conversation the event points at.
func (n NotificationEvent) CorrelationId() string {
	if n.PostId != "" {
		return n.PostId
	}
	return n.ConversationId
}

func (n NotificationEvent) Time() time.Time {
	return time.UnixMilli(n.Timestamp)
}
