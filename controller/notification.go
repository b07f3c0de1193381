package controller

import (
	"messenger-gateway/notification"

	"github.com/gofiber/fiber/v2"
)

type NotificationPermissionInput struct {
	Permission string `json:"permission" validate:"required,oneof=default granted denied"`
}

var permissions = map[string]notification.Permission{
	"default": notification.PermissionDefault,
	"granted": notification.PermissionGranted,
	"denied":  notification.PermissionDenied,
}

func permissionName(p notification.Permission) string {
	for name, value := range permissions {
		if value == p {
			return name
		}
	}
	return "default"
}

func (h *Handler) NotificationList(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return failWith(c, err)
	}

	agg := s.Notifications()
	return success(c, fiber.StatusOK, fiber.Map{
		"notifications": agg.List(),
		"unseen":        agg.Unseen(),
		"permission":    permissionName(agg.Permission()),
	})
}

// NotificationSeen resets the badge counter.
func (h *Handler) NotificationSeen(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return failWith(c, err)
	}
	s.MarkSeen()
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) NotificationClear(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return failWith(c, err)
	}
	s.ClearAll()
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) NotificationDismiss(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return failWith(c, err)
	}

	index, err := c.ParamsInt("index")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid notification index")
	}
	if err := s.Dismiss(index); err != nil {
		return failWith(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) NotificationTarget(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return failWith(c, err)
	}

	index, err := c.ParamsInt("index")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid notification index")
	}
	target, err := s.Navigate(index)
	if err != nil {
		return failWith(c, err)
	}
	return success(c, fiber.StatusOK, target)
}

// NotificationPermission records whether platform notifications may be
// sent for the caller.
func (h *Handler) NotificationPermission(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return failWith(c, err)
	}

	input := new(NotificationPermissionInput)
	if err := h.parse(c, input); err != nil {
		return failWith(c, err)
	}
	s.Notifications().SetPermission(permissions[input.Permission])
	return c.SendStatus(fiber.StatusNoContent)
}
