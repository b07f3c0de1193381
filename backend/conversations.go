package backend

import (
	"context"
	"net/url"

	"messenger-gateway/model"

	"github.com/gofiber/fiber/v2"
)

// MessageDraft is the body of a send-message call.
type MessageDraft struct {
	ClientMessageId string          `json:"clientMessageId"`
	Text            string          `json:"text" validate:"required_without=MediaUrl,max=4000"`
	MediaType       model.MediaType `json:"mediaType,omitempty" validate:"omitempty,oneof=image video document"`
	MediaUrl        string          `json:"mediaUrl,omitempty" validate:"omitempty,url"`
	MediaName       string          `json:"mediaName,omitempty"`
}

func conversationPath(id string) string {
	return "/conversations/" + url.PathEscape(id)
}

func messagePath(conversationId string, messageId string) string {
	return conversationPath(conversationId) + "/messages/" + url.PathEscape(messageId)
}

func (c *Client) FetchConversations(ctx context.Context) ([]model.Conversation, error) {
	var list []model.Conversation
	if err := c.request(ctx, fiber.MethodGet, "/conversations", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// CreateConversation opens (or returns the existing) conversation with a
// participant.
func (c *Client) CreateConversation(ctx context.Context, participantId string) (model.Conversation, error) {
	var conv model.Conversation
	body := map[string]string{"participantId": participantId}
	err := c.request(ctx, fiber.MethodPost, "/conversations", body, &conv)
	return conv, err
}

func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.request(ctx, fiber.MethodDelete, conversationPath(id), nil, nil)
}

func (c *Client) FetchMessages(ctx context.Context, conversationId string) ([]model.Message, error) {
	var list []model.Message
	if err := c.request(ctx, fiber.MethodGet, conversationPath(conversationId)+"/messages", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) SendMessage(ctx context.Context, conversationId string, draft MessageDraft) (model.Message, error) {
	var msg model.Message
	err := c.request(ctx, fiber.MethodPost, conversationPath(conversationId)+"/messages", draft, &msg)
	return msg, err
}

func (c *Client) EditMessage(ctx context.Context, conversationId string, messageId string, text string) (model.Message, error) {
	var msg model.Message
	body := map[string]string{"text": text}
	err := c.request(ctx, fiber.MethodPatch, messagePath(conversationId, messageId), body, &msg)
	return msg, err
}

func (c *Client) DeleteMessage(ctx context.Context, conversationId string, messageId string) error {
	return c.request(ctx, fiber.MethodDelete, messagePath(conversationId, messageId), nil, nil)
}

func (c *Client) MarkRead(ctx context.Context, conversationId string) error {
	return c.request(ctx, fiber.MethodPost, conversationPath(conversationId)+"/read", nil, nil)
}
