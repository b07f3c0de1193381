package model

import "time"

type MediaType string

const (
	MediaImage    MediaType = "image"
	MediaVideo    MediaType = "video"
	MediaDocument MediaType = "document"
)

// Message is owned by its parent Conversation.
type Message struct {
	Id           string     `json:"id"`
	SenderId     string     `json:"senderId"`
	SenderName   string     `json:"senderName"`
	SenderAvatar string     `json:"senderAvatar,omitempty"`
	Text         string     `json:"text"`
	MediaType    MediaType  `json:"mediaType,omitempty"`
	MediaUrl     string     `json:"mediaUrl,omitempty"`
	MediaName    string     `json:"mediaName,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	IsRead       bool       `json:"isRead"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

// Preview is the text shown as the last message of a conversation.
func (m Message) Preview() string {
	if m.Text != "" || m.MediaType == "" {
		return m.Text
	}
	if m.MediaName != "" {
		return m.MediaName
	}
	return string(m.MediaType)
}

// Conversation is a two-party thread with denormalized counterpart fields.
type Conversation struct {
	Id                string    `json:"id"`
	ParticipantId     string    `json:"participantId"`
	ParticipantName   string    `json:"participantName"`
	ParticipantAvatar string    `json:"participantAvatar,omitempty"`
	Messages          []Message `json:"messages"`
	LastMessage       string    `json:"lastMessage"`
	LastMessageTime   time.Time `json:"lastMessageTime"`
	UnreadCount       int       `json:"unreadCount"`
}

// Clone copies the conversation including its message slice.
func (c Conversation) Clone() Conversation {
	if c.Messages != nil {
		c.Messages = append([]Message(nil), c.Messages...)
	}
	return c
}

// MessageIndex returns the position of the message with id, or -1.
func (c Conversation) MessageIndex(id string) int {
	for i := range c.Messages {
		if c.Messages[i].Id == id {
			return i
		}
	}
	return -1
}

// ConversationSummary is the optional conversation header carried by a
// message event for a conversation the receiver does not know yet.
type ConversationSummary struct {
	Id                string `json:"id"`
	ParticipantId     string `json:"participantId"`
	ParticipantName   string `json:"participantName"`
	ParticipantAvatar string `json:"participantAvatar,omitempty"`
}

func (s ConversationSummary) Conversation() Conversation {
	return Conversation{
		Id:                s.Id,
		ParticipantId:     s.ParticipantId,
		ParticipantName:   s.ParticipantName,
		ParticipantAvatar: s.ParticipantAvatar,
		Messages:          []Message{},
	}
}
