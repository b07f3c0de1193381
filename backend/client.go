package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Error is a non-2xx answer of the backend.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend responded %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is a backend Error with the given status.
func IsStatus(err error, status int) bool {
	var e *Error
	return errors.As(err, &e) && e.Status == status
}

type envelope struct {
	Status  string          `json:"status"`
	Message *string         `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client talks to the platform REST API on behalf of one user.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
}

func New(baseURL string, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: 10 * time.Second,
	}
}

func agent(method string, url string) *fiber.Agent {
	switch method {
	case fiber.MethodPost:
		return fiber.Post(url)
	case fiber.MethodPut:
		return fiber.Put(url)
	case fiber.MethodPatch:
		return fiber.Patch(url)
	case fiber.MethodDelete:
		return fiber.Delete(url)
	default:
		return fiber.Get(url)
	}
}

func (c *Client) request(ctx context.Context, method string, path string, body any, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a := agent(method, c.baseURL+path)
	a.Set(fiber.HeaderAuthorization, "Bearer "+c.token)
	a.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if body != nil {
		a.JSON(body)
	}
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	a.Timeout(timeout)

	code, data, errs := a.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("%s %s: %w", method, path, errors.Join(errs...))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var env envelope
	decoded := json.Unmarshal(data, &env) == nil && (env.Status != "" || env.Data != nil)

	if code < 200 || code >= 300 {
		message := strings.TrimSpace(string(data))
		if decoded && env.Message != nil {
			message = *env.Message
		}
		return &Error{Status: code, Message: message}
	}
	if out == nil || len(data) == 0 {
		return nil
	}

	payload := json.RawMessage(data)
	if decoded {
		payload = env.Data
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
