package controller

import (
	"messenger-gateway/middleware"
	"messenger-gateway/model"

	"github.com/gofiber/fiber/v2"
)

type SessionOpenInput struct {
	Name   string `json:"name" validate:"max=80"`
	Avatar string `json:"avatar" validate:"omitempty,url"`
}

// SessionOpen starts (or resumes) the session of the caller with the bearer
// token of the request.
func (h *Handler) SessionOpen(c *fiber.Ctx) error {
	meta := middleware.Identity(c)
	if meta == nil {
		return failWith(c, errUnauthorized)
	}

	input := new(SessionOpenInput)
	if len(c.Body()) > 0 {
		if err := h.parse(c, input); err != nil {
			return failWith(c, err)
		}
	}

	s, err := h.manager.Open(c.UserContext(), model.Identity{
		UserId: meta.Id,
		Name:   input.Name,
		Avatar: input.Avatar,
		Token:  middleware.Token(c),
		Role:   meta.Role,
	})
	if err != nil {
		return fail(c, fiber.StatusBadGateway, "Push channel unavailable")
	}

	return success(c, fiber.StatusCreated, s.Snapshot())
}

func (h *Handler) SessionGet(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return failWith(c, err)
	}
	return success(c, fiber.StatusOK, s.Snapshot())
}

// SessionClose is the logout: the session stops and its cached identity is
// forgotten.
func (h *Handler) SessionClose(c *fiber.Ctx) error {
	meta := middleware.Identity(c)
	if meta == nil {
		return failWith(c, errUnauthorized)
	}
	if err := h.manager.Close(c.UserContext(), meta.Id); err != nil {
		return failWith(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
