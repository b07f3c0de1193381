package store

import (
	"maps"
	"slices"
	"time"

	"messenger-gateway/model"
)

// State is the locally known conversation set of one user. Every reducer
// returns a new State and leaves the receiver untouched; unknown ids are
// no-ops.
type State struct {
	CurrentUserId string               `json:"currentUserId"`
	Conversations []model.Conversation `json:"conversations"`
	ActiveId      string               `json:"activeId,omitempty"`
	Presence      map[string]bool      `json:"presence"`
	Typing        map[string]string    `json:"typing"`
}

func NewState(currentUserId string) State {
	return State{
		CurrentUserId: currentUserId,
		Conversations: []model.Conversation{},
		Presence:      map[string]bool{},
		Typing:        map[string]string{},
	}
}

func (s State) index(id string) int {
	return slices.IndexFunc(s.Conversations, func(c model.Conversation) bool { return c.Id == id })
}

// Conversation looks up a conversation by id.
func (s State) Conversation(id string) (model.Conversation, bool) {
	if i := s.index(id); i >= 0 {
		return s.Conversations[i], true
	}
	return model.Conversation{}, false
}

func (s State) Active() (model.Conversation, bool) {
	if s.ActiveId == "" {
		return model.Conversation{}, false
	}
	return s.Conversation(s.ActiveId)
}

func (s State) TotalUnread() int {
	total := 0
	for _, c := range s.Conversations {
		total += c.UnreadCount
	}
	return total
}

// update copies the conversation list and applies fn to a clone of the
// conversation at i.
func (s State) update(i int, fn func(c *model.Conversation)) State {
	conversations := slices.Clone(s.Conversations)
	c := conversations[i].Clone()
	fn(&c)
	conversations[i] = c
	s.Conversations = conversations
	return s
}

// SetConversations replaces the whole set, typically after the initial fetch.
func (s State) SetConversations(list []model.Conversation) State {
	conversations := make([]model.Conversation, 0, len(list))
	for _, c := range list {
		c = c.Clone()
		if c.Messages == nil {
			c.Messages = []model.Message{}
		}
		conversations = append(conversations, c)
	}
	s.Conversations = conversations
	if s.ActiveId != "" && s.index(s.ActiveId) < 0 {
		s.ActiveId = ""
	}
	return s
}

// SetActiveConversation selects the conversation shown in detail. An empty
// id clears the selection. Unread counts are left alone.
func (s State) SetActiveConversation(id string) State {
	s.ActiveId = id
	return s
}

// AddConversation inserts conv at the front unless its id is already known.
func (s State) AddConversation(conv model.Conversation) State {
	if s.index(conv.Id) >= 0 {
		return s
	}
	conv = conv.Clone()
	if conv.Messages == nil {
		conv.Messages = []model.Message{}
	}
	s.Conversations = append([]model.Conversation{conv}, s.Conversations...)
	return s
}

// AppendMessage appends msg to a conversation. The message is read iff it
// is the user's own; foreign messages bump the unread count.
func (s State) AppendMessage(conversationId string, msg model.Message, isOwnMessage bool) State {
	i := s.index(conversationId)
	if i < 0 {
		return s
	}
	return s.update(i, func(c *model.Conversation) {
		msg.IsRead = isOwnMessage
		c.Messages = append(c.Messages, msg)
		c.LastMessage = msg.Preview()
		c.LastMessageTime = msg.CreatedAt
		if !isOwnMessage {
			c.UnreadCount++
		}
	})
}

// SetMessages replaces the history of a conversation with a fetched one.
// The unread count is capped by the unread foreign messages it contains.
func (s State) SetMessages(conversationId string, messages []model.Message) State {
	i := s.index(conversationId)
	if i < 0 {
		return s
	}
	return s.update(i, func(c *model.Conversation) {
		c.Messages = append([]model.Message{}, messages...)
		unread := 0
		for _, m := range c.Messages {
			if !m.IsRead && m.SenderId != s.CurrentUserId {
				unread++
			}
		}
		c.UnreadCount = min(c.UnreadCount, unread)
		if n := len(c.Messages); n > 0 {
			c.LastMessage = c.Messages[n-1].Preview()
			c.LastMessageTime = c.Messages[n-1].CreatedAt
		}
	})
}

// MarkRead zeroes the unread count and marks every message read.
func (s State) MarkRead(conversationId string) State {
	i := s.index(conversationId)
	if i < 0 {
		return s
	}
	return s.update(i, func(c *model.Conversation) {
		c.UnreadCount = 0
		for j := range c.Messages {
			c.Messages[j].IsRead = true
		}
	})
}

// MarkReadByPeer applies a read receipt: the user's own messages in the
// conversation were read by the counterpart.
func (s State) MarkReadByPeer(conversationId string) State {
	i := s.index(conversationId)
	if i < 0 {
		return s
	}
	return s.update(i, func(c *model.Conversation) {
		for j := range c.Messages {
			if c.Messages[j].SenderId == s.CurrentUserId {
				c.Messages[j].IsRead = true
			}
		}
	})
}

func (s State) EditMessage(conversationId string, messageId string, text string, at time.Time) State {
	i := s.index(conversationId)
	if i < 0 || s.Conversations[i].MessageIndex(messageId) < 0 {
		return s
	}
	return s.update(i, func(c *model.Conversation) {
		j := c.MessageIndex(messageId)
		c.Messages[j].Text = text
		c.Messages[j].UpdatedAt = &at
		if j == len(c.Messages)-1 {
			c.LastMessage = c.Messages[j].Preview()
		}
	})
}

func (s State) DeleteMessage(conversationId string, messageId string) State {
	i := s.index(conversationId)
	if i < 0 || s.Conversations[i].MessageIndex(messageId) < 0 {
		return s
	}
	return s.update(i, func(c *model.Conversation) {
		j := c.MessageIndex(messageId)
		deleted := c.Messages[j]
		c.Messages = slices.Delete(c.Messages, j, j+1)
		if !deleted.IsRead && deleted.SenderId != s.CurrentUserId && c.UnreadCount > 0 {
			c.UnreadCount--
		}
		if j == len(c.Messages) {
			c.LastMessage, c.LastMessageTime = "", time.Time{}
			if n := len(c.Messages); n > 0 {
				c.LastMessage = c.Messages[n-1].Preview()
				c.LastMessageTime = c.Messages[n-1].CreatedAt
			}
		}
	})
}

// DeleteConversation removes a conversation and clears the selection when
// it pointed at it.
func (s State) DeleteConversation(conversationId string) State {
	i := s.index(conversationId)
	if i < 0 {
		return s
	}
	s.Conversations = slices.Delete(slices.Clone(s.Conversations), i, i+1)
	if s.ActiveId == conversationId {
		s.ActiveId = ""
	}
	if _, ok := s.Typing[conversationId]; ok {
		s = s.SetTyping(conversationId, "")
	}
	return s
}

func (s State) SetPresence(userId string, online bool) State {
	presence := maps.Clone(s.Presence)
	if presence == nil {
		presence = map[string]bool{}
	}
	presence[userId] = online
	s.Presence = presence
	return s
}

// SetTyping records who is typing in a conversation; an empty userId
// clears it.
func (s State) SetTyping(conversationId string, userId string) State {
	typing := maps.Clone(s.Typing)
	if typing == nil {
		typing = map[string]string{}
	}
	if userId == "" {
		delete(typing, conversationId)
	} else {
		typing[conversationId] = userId
	}
	s.Typing = typing
	return s
}
