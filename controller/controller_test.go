package controller_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"messenger-gateway/backend"
	"messenger-gateway/controller"
	"messenger-gateway/database"
	"messenger-gateway/model"
	"messenger-gateway/router"
	"messenger-gateway/session"
	"messenger-gateway/session/sessiontest"
	"messenger-gateway/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type response struct {
	Status  string          `json:"status"`
	Message *string         `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type gateway struct {
	t   *testing.T
	app *fiber.App
	api *sessiontest.Backend
}

func newGateway(t *testing.T) *gateway {
	t.Helper()
	t.Setenv("JWT_ACCESS_KEY", "test-access-key")

	api := sessiontest.NewBackend(model.Conversation{Id: "c1", ParticipantId: "u2"})
	manager := session.NewManager(func(identity model.Identity) *session.Session {
		return session.New(identity, sessiontest.NewChannel(), api, nil)
	}, sessiontest.NewCache())
	t.Cleanup(manager.Shutdown)

	enforcer, err := database.Casbin([]string{"root"})
	require.NoError(t, err)

	app := fiber.New(fiber.Config{StrictRouting: true})
	router.Rest(app, controller.New(manager), enforcer)
	return &gateway{t: t, app: app, api: api}
}

func (g *gateway) token(userId string, otp bool) string {
	g.t.Helper()
	token, err := utils.GenerateToken(userId, otp, "", time.Hour, "JWT_ACCESS_KEY")
	require.NoError(g.t, err)
	return token
}

func (g *gateway) do(method string, path string, token string, body string) (int, response) {
	g.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := g.app.Test(req, -1)
	require.NoError(g.t, err)
	defer resp.Body.Close()

	var out response
	raw, err := io.ReadAll(resp.Body)
	require.NoError(g.t, err)
	if len(raw) > 0 {
		require.NoError(g.t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func (g *gateway) open(userId string) string {
	g.t.Helper()
	token := g.token(userId, false)
	status, _ := g.do(http.MethodPost, "/v1/session", token, "")
	require.Equal(g.t, http.StatusCreated, status)
	return token
}

func TestTokenChecks(t *testing.T) {
	g := newGateway(t)

	status, _ := g.do(http.MethodGet, "/v1/session", "", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, resp := g.do(http.MethodGet, "/v1/session", g.token("u1", true), "")
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, resp.Message)
	assert.Equal(t, "2FA required", *resp.Message)

	status, _ = g.do(http.MethodGet, "/v1/session", g.token("u1", false)+"x", "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestSessionLifecycle(t *testing.T) {
	g := newGateway(t)
	token := g.token("u1", false)

	status, _ := g.do(http.MethodGet, "/v1/session", token, "")
	assert.Equal(t, http.StatusNotFound, status)

	status, resp := g.do(http.MethodPost, "/v1/session", token, `{"name":"Alice"}`)
	require.Equal(t, http.StatusCreated, status)
	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(resp.Data, &snap))
	assert.Equal(t, "u1", snap.UserId)
	assert.True(t, snap.Connected)
	assert.Len(t, snap.Conversations, 1)

	status, resp = g.do(http.MethodGet, "/v1/conversations", token, "")
	require.Equal(t, http.StatusOK, status)
	var list struct {
		Conversations []model.Conversation `json:"conversations"`
		TotalUnread   int                  `json:"totalUnread"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	assert.Equal(t, "c1", list.Conversations[0].Id)

	status, _ = g.do(http.MethodDelete, "/v1/session", token, "")
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = g.do(http.MethodGet, "/v1/session", token, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSessionOpenRejectsBadProfile(t *testing.T) {
	g := newGateway(t)

	status, _ := g.do(http.MethodPost, "/v1/session", g.token("u1", false), `{"avatar":"not a url"}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMessageSendErrors(t *testing.T) {
	g := newGateway(t)
	token := g.open("u1")

	status, _ := g.do(http.MethodPost, "/v1/conversations/c1/messages", token, `{}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = g.do(http.MethodPost, "/v1/conversations/zz/messages", token, `{"text":"hi"}`)
	assert.Equal(t, http.StatusNotFound, status)

	g.api.SendErr = &backend.Error{Status: http.StatusUnprocessableEntity, Message: "message rejected"}
	status, resp := g.do(http.MethodPost, "/v1/conversations/c1/messages", token, `{"text":"hi"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	require.NotNil(t, resp.Message)
	assert.Equal(t, "message rejected", *resp.Message)

	g.api.SendErr = &backend.Error{Status: http.StatusServiceUnavailable, Message: "down"}
	status, _ = g.do(http.MethodPost, "/v1/conversations/c1/messages", token, `{"text":"hi"}`)
	assert.Equal(t, http.StatusBadGateway, status)

	g.api.SendErr = nil
	status, resp = g.do(http.MethodPost, "/v1/conversations/c1/messages", token, `{"text":"hi"}`)
	require.Equal(t, http.StatusCreated, status)
	var msg model.Message
	require.NoError(t, json.Unmarshal(resp.Data, &msg))
	assert.Equal(t, "u1", msg.SenderId)
	assert.Equal(t, "hi", msg.Text)
}

func TestConversationCreateRejectsSelf(t *testing.T) {
	g := newGateway(t)
	token := g.open("u1")

	status, _ := g.do(http.MethodPost, "/v1/conversations", token, `{"participantId":"u1"}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestNotificationRoutes(t *testing.T) {
	g := newGateway(t)
	token := g.open("u1")

	status, _ := g.do(http.MethodDelete, "/v1/notifications/0", token, "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = g.do(http.MethodDelete, "/v1/notifications/first", token, "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = g.do(http.MethodPut, "/v1/notifications/permission", token, `{"permission":"maybe"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = g.do(http.MethodPut, "/v1/notifications/permission", token, `{"permission":"granted"}`)
	assert.Equal(t, http.StatusNoContent, status)
}

func TestPostOwnership(t *testing.T) {
	g := newGateway(t)
	owner := g.open("u2")
	other := g.open("u1")

	status, resp := g.do(http.MethodPost, "/v1/posts", owner, `{"title":"Bike","price":120}`)
	require.Equal(t, http.StatusCreated, status)
	var post model.Post
	require.NoError(t, json.Unmarshal(resp.Data, &post))
	assert.Equal(t, "u2", post.AuthorId)

	status, _ = g.do(http.MethodPut, "/v1/posts/"+post.Id, other, `{"title":"Mine now"}`)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = g.do(http.MethodDelete, "/v1/posts/"+post.Id, other, "")
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = g.do(http.MethodGet, "/v1/posts/missing", other, "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = g.do(http.MethodDelete, "/v1/posts/"+post.Id, owner, "")
	assert.Equal(t, http.StatusNoContent, status)
}

func TestAdminRoutesRequireRole(t *testing.T) {
	g := newGateway(t)
	g.open("u1")

	status, _ := g.do(http.MethodGet, "/v1/admin/sessions", g.token("u1", false), "")
	assert.Equal(t, http.StatusForbidden, status)

	root := g.token("root", false)
	status, resp := g.do(http.MethodGet, "/v1/admin/sessions", root, "")
	require.Equal(t, http.StatusOK, status)
	var list []controller.AdminSession
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "u1", list[0].UserId)

	status, _ = g.do(http.MethodDelete, "/v1/admin/sessions/u1", root, "")
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = g.do(http.MethodDelete, "/v1/admin/sessions/u1", root, "")
	assert.Equal(t, http.StatusNotFound, status)
}
