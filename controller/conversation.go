package controller

import (
	"messenger-gateway/backend"

	"github.com/gofiber/fiber/v2"
)

type ConversationCreateInput struct {
	ParticipantId string `json:"participantId" validate:"required"`
}

type MessageEditInput struct {
	Text string `json:"text" validate:"required,max=4000"`
}

type TypingInput struct {
	Typing bool `json:"typing"`
}

func (h *Handler) ConversationList(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return failWith(c, err)
	}

	if c.QueryBool("refresh") {
		if err := s.LoadConversations(c.UserContext()); err != nil {
			return failWith(c, err)
		}
	}

	st := s.Store().State()
	return success(c, fiber.StatusOK, fiber.Map{
		"conversations": st.Conversations,
		"activeId":      st.ActiveId,
		"totalUnread":   st.TotalUnread(),
	})
}

func (h *Handler) ConversationCreate(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return failWith(c, err)
	}

	input := new(ConversationCreateInput)
	if err := h.parse(c, input); err != nil {
		return failWith(c, err)
	}
	if input.ParticipantId == s.UserId() {
		return fail(c, fiber.StatusBadRequest, "Cannot start a conversation with yourself")
	}

	conv, err := s.StartConversation(c.UserContext(), input.ParticipantId)
	if err != nil {
		return failWith(c, err)
	}
	return success(c, fiber.StatusCreated, conv)
}

// ConversationOpen selects a conversation, loads its history and marks it
// read.
func (h *Handler) ConversationOpen(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return failWith(c, err)
	}

	id := c.Params("id")
	if err := s.OpenConversation(c.UserContext(), id); err != nil {
		return failWith(c, err)
	}

	conv, _ := s.Store().State().Conversation(id)
	return success(c, fiber.StatusOK, conv)
}

func (h *Handler) ConversationClose(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return failWith(c, err)
	}
	s.CloseConversation()
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) ConversationRead(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return failWith(c, err)
	}
	if err := s.MarkRead(c.UserContext(), c.Params("id")); err != nil {
		return failWith(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) ConversationDelete(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return failWith(c, err)
	}
	if err := s.DeleteConversation(c.UserContext(), c.Params("id")); err != nil {
		return failWith(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) ConversationTyping(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return failWith(c, err)
	}

	input := new(TypingInput)
	if err := h.parse(c, input); err != nil {
		return failWith(c, err)
	}
	if err := s.Typing(c.Params("id"), input.Typing); err != nil {
		return failWith(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// MessageSend answers only after the backend stored the message; a failed
// send leaves the conversation untouched.
func (h *Handler) MessageSend(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return failWith(c, err)
	}

	draft := new(backend.MessageDraft)
	if err := h.parse(c, draft); err != nil {
		return failWith(c, err)
	}

	msg, err := s.SendMessage(c.UserContext(), c.Params("id"), *draft)
	if err != nil {
		return failWith(c, err)
	}
	return success(c, fiber.StatusCreated, msg)
}

func (h *Handler) MessageEdit(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return failWith(c, err)
	}

	input := new(MessageEditInput)
	if err := h.parse(c, input); err != nil {
		return failWith(c, err)
	}

	msg, err := s.EditMessage(c.UserContext(), c.Params("id"), c.Params("mid"), input.Text)
	if err != nil {
		return failWith(c, err)
	}
	return success(c, fiber.StatusOK, msg)
}

func (h *Handler) MessageDelete(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return failWith(c, err)
	}
	if err := s.DeleteMessage(c.UserContext(), c.Params("id"), c.Params("mid")); err != nil {
		return failWith(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
