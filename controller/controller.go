package controller

import (
	"errors"
	"fmt"
	"strings"

	"messenger-gateway/backend"
	"messenger-gateway/middleware"
	"messenger-gateway/notification"
	"messenger-gateway/session"
	"messenger-gateway/transport"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// Handler serves the REST surface on top of the session manager.
type Handler struct {
	manager  *session.Manager
	validate *validator.Validate
}

func New(manager *session.Manager) *Handler {
	return &Handler{
		manager:  manager,
		validate: validator.New(),
	}
}

func success(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(fiber.Map{
		"status":  "success",
		"message": nil,
		"data":    data,
	})
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"status":  "error",
		"message": message,
		"data":    nil,
	})
}

// failWith maps err to a status code and a message safe to show.
func failWith(c *fiber.Ctx, err error) error {
	var berr *backend.Error
	var ierr *inputError
	switch {
	case errors.As(err, &ierr):
		return fail(c, fiber.StatusBadRequest, ierr.message)
	case errors.Is(err, errUnauthorized):
		return fail(c, fiber.StatusUnauthorized, "Invalid or expired JWT")
	case errors.As(err, &berr):
		if berr.Status >= 500 {
			return fail(c, fiber.StatusBadGateway, "Backend unavailable")
		}
		return fail(c, berr.Status, berr.Message)
	case errors.Is(err, session.ErrNoSession):
		return fail(c, fiber.StatusNotFound, "No open session")
	case errors.Is(err, session.ErrUnknownConversation):
		return fail(c, fiber.StatusNotFound, "Conversation not found")
	case errors.Is(err, notification.ErrOutOfRange):
		return fail(c, fiber.StatusNotFound, "Notification not found")
	case errors.Is(err, session.ErrNoTarget):
		return fail(c, fiber.StatusNotFound, "Notification has no target")
	case errors.Is(err, session.ErrStale):
		return fail(c, fiber.StatusConflict, "Superseded by a newer request")
	case errors.Is(err, transport.ErrNotConnected):
		return fail(c, fiber.StatusServiceUnavailable, "Push channel not connected")
	}
	return fail(c, fiber.StatusInternalServerError, "Internal server error")
}

var errUnauthorized = errors.New("unauthorized")

const reviewInput = "Review your input"

type inputError struct {
	message string
}

func (e *inputError) Error() string { return e.message }

// parse decodes the body into v and validates it. The returned error is
// rendered as a 400 by failWith.
func (h *Handler) parse(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return &inputError{message: reviewInput}
	}
	if err := h.validate.Struct(v); err != nil {
		return &inputError{message: validationMessage(err)}
	}
	return nil
}

func validationMessage(err error) string {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return reviewInput
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed on %s=%s", f.Field(), f.Tag(), f.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed on %s", f.Field(), f.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// session returns the open session of the caller.
func (h *Handler) session(c *fiber.Ctx) (*session.Session, error) {
	meta := middleware.Identity(c)
	if meta == nil {
		return nil, errUnauthorized
	}
	return h.manager.Get(meta.Id)
}

var (
	errCommentNotFound  = errors.New("comment not found")
	errNotCommentAuthor = errors.New("not the comment author")
)
