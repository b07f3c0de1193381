package controller

import (
	"github.com/gofiber/fiber/v2"
)

type AdminSession struct {
	SessionId     string `json:"sessionId"`
	UserId        string `json:"userId"`
	Name          string `json:"name"`
	Role          string `json:"role,omitempty"`
	Connected     bool   `json:"connected"`
	Conversations int    `json:"conversations"`
	TotalUnread   int    `json:"totalUnread"`
	Notifications int    `json:"notifications"`
}

// AdminSessions lists the running sessions.
func (h *Handler) AdminSessions(c *fiber.Ctx) error {
	sessions := h.manager.Sessions()
	list := make([]AdminSession, 0, len(sessions))
	for _, s := range sessions {
		st := s.Store().State()
		identity := s.Identity()
		list = append(list, AdminSession{
			SessionId:     s.Id,
			UserId:        identity.UserId,
			Name:          identity.Name,
			Role:          identity.Role,
			Connected:     s.Connected(),
			Conversations: len(st.Conversations),
			TotalUnread:   st.TotalUnread(),
			Notifications: s.Notifications().Len(),
		})
	}
	return success(c, fiber.StatusOK, list)
}

// AdminSessionClose force-closes the session of a user.
func (h *Handler) AdminSessionClose(c *fiber.Ctx) error {
	if err := h.manager.Close(c.UserContext(), c.Params("userId")); err != nil {
		return failWith(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
