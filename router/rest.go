package router

import (
	"messenger-gateway/controller"
	"messenger-gateway/middleware"

	"github.com/casbin/casbin/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func Rest(app *fiber.App, h *controller.Handler, enforcer casbin.IEnforcer) {
	api := app.Group("/v1", logger.New(), middleware.JWT(), middleware.OTP())

	// Session
	api.Post("/session", h.SessionOpen)
	api.Get("/session", h.SessionGet)
	api.Delete("/session", h.SessionClose)

	// Conversations
	conversations := api.Group("/conversations")
	conversations.Get("", h.ConversationList)
	conversations.Post("", h.ConversationCreate)
	conversations.Put("/active/:id", h.ConversationOpen)
	conversations.Delete("/active", h.ConversationClose)
	conversations.Post("/:id/read", h.ConversationRead)
	conversations.Post("/:id/typing", h.ConversationTyping)
	conversations.Delete("/:id", h.ConversationDelete)
	conversations.Post("/:id/messages", h.MessageSend)
	conversations.Patch("/:id/messages/:mid", h.MessageEdit)
	conversations.Delete("/:id/messages/:mid", h.MessageDelete)

	// Notifications
	notifications := api.Group("/notifications")
	notifications.Get("", h.NotificationList)
	notifications.Post("/seen", h.NotificationSeen)
	notifications.Put("/permission", h.NotificationPermission)
	notifications.Delete("", h.NotificationClear)
	notifications.Delete("/:index", h.NotificationDismiss)
	notifications.Get("/:index/target", h.NotificationTarget)

	// Posts
	posts := api.Group("/posts")
	posts.Get("", h.PostList)
	posts.Post("", h.PostCreate)
	posts.Get("/:id", h.PostGet)
	posts.Put("/:id", h.PostUpdate)
	posts.Delete("/:id", h.PostDelete)
	posts.Post("/:id/like", h.PostLike)
	posts.Post("/:id/comments", h.CommentAdd)
	posts.Patch("/:id/comments/:cid", h.CommentEdit)
	posts.Delete("/:id/comments/:cid", h.CommentDelete)
	posts.Post("/:id/comments/:cid/replies", h.ReplyAdd)
	posts.Post("/:id/comments/:cid/like", h.CommentLike)

	// Admin
	admin := api.Group("/admin", middleware.RBAC(enforcer))
	admin.Get("/sessions", h.AdminSessions)
	admin.Delete("/sessions/:userId", h.AdminSessionClose)
}
