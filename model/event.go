package model

// Payloads of the push channel.

type MessageEvent struct {
	ConversationId string               `json:"conversationId"`
	Message        Message              `json:"message"`
	Conversation   *ConversationSummary `json:"conversation,omitempty"`
}

type MessageDeletedEvent struct {
	ConversationId string `json:"conversationId"`
	MessageId      string `json:"messageId"`
}

type TypingEvent struct {
	ConversationId string `json:"conversationId"`
	UserId         string `json:"userId"`
}

type ReadReceiptEvent struct {
	ConversationId string `json:"conversationId"`
	ReaderId       string `json:"readerId"`
}

type PresenceEvent struct {
	UserId string `json:"userId"`
	Online bool   `json:"online"`
}
