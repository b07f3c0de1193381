package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"messenger-gateway/backend"
	"messenger-gateway/model"
	"messenger-gateway/notification"
	"messenger-gateway/session"
	"messenger-gateway/socketio"
	"messenger-gateway/store"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/zishang520/socket.io/v2/socket"
)

// Events pushed to the UI clients of a user.
const (
	EventConversations = "conversations"
	EventNotifications = "notifications"
	EventInit          = "init"
	EventError         = "gateway:error"
)

type ConversationsPayload struct {
	Conversations []model.Conversation `json:"conversations"`
	ActiveId      string               `json:"activeId,omitempty"`
	TotalUnread   int                  `json:"totalUnread"`
	Presence      map[string]bool      `json:"presence"`
	Typing        map[string]string    `json:"typing"`
}

type NotificationsPayload struct {
	Notifications []model.NotificationEvent `json:"notifications"`
	Unseen        int                       `json:"unseen"`
}

type MessageSendInput struct {
	ConversationId string `json:"conversationId" validate:"required"`
	backend.MessageDraft
}

type MessageEditInput struct {
	ConversationId string `json:"conversationId" validate:"required"`
	MessageId      string `json:"messageId" validate:"required"`
	Text           string `json:"text" validate:"required,max=4000"`
}

type MessageDeleteInput struct {
	ConversationId string `json:"conversationId" validate:"required"`
	MessageId      string `json:"messageId" validate:"required"`
}

type TypingInput struct {
	ConversationId string `json:"conversationId" validate:"required"`
	Typing         bool   `json:"typing"`
}

// Emitter sends an event to every UI client of a user.
type Emitter func(userId string, event string, message any)

var validate = validator.New()

func conversationsPayload(st store.State) ConversationsPayload {
	return ConversationsPayload{
		Conversations: st.Conversations,
		ActiveId:      st.ActiveId,
		TotalUnread:   st.TotalUnread(),
		Presence:      st.Presence,
		Typing:        st.Typing,
	}
}

// Bind pushes every store and notification change of new sessions to the
// UI clients of their user.
func Bind(manager *session.Manager, emit Emitter) {
	manager.OnOpen(func(s *session.Session) {
		userId := s.UserId()
		offStore := s.Store().OnChange(func(st store.State) {
			emit(userId, EventConversations, conversationsPayload(st))
		})
		offNotifications := s.Notifications().OnChange(func(list []model.NotificationEvent, unseen int) {
			emit(userId, EventNotifications, NotificationsPayload{
				Notifications: list,
				Unseen:        unseen,
			})
		})
		s.OnStop(offStore)
		s.OnStop(offNotifications)
	})
}

// decodeArg decodes the i-th event argument into v and validates it when
// v points to a struct.
func decodeArg(args []any, i int, v any) error {
	if i >= len(args) {
		return fmt.Errorf("missing argument %d", i)
	}
	data, err := json.Marshal(args[i])
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("argument %d: %w", i, err)
	}
	err = validate.Struct(v)
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		// not a struct
		return nil
	}
	return err
}

type socketHandler func(ctx context.Context, s *session.Session, args []any) error

func withId(fn func(ctx context.Context, s *session.Session, id string) error) socketHandler {
	return func(ctx context.Context, s *session.Session, args []any) error {
		var id string
		if err := decodeArg(args, 0, &id); err != nil {
			return err
		}
		if id == "" {
			return errors.New("missing conversation id")
		}
		return fn(ctx, s, id)
	}
}

var socketEvents = map[string]socketHandler{
	"conversation:open": withId(func(ctx context.Context, s *session.Session, id string) error {
		if err := s.OpenConversation(ctx, id); !errors.Is(err, session.ErrStale) {
			return err
		}
		return nil
	}),
	"conversation:close": func(ctx context.Context, s *session.Session, args []any) error {
		s.CloseConversation()
		return nil
	},
	"conversation:read": withId(func(ctx context.Context, s *session.Session, id string) error {
		return s.MarkRead(ctx, id)
	}),
	"conversation:delete": withId(func(ctx context.Context, s *session.Session, id string) error {
		return s.DeleteConversation(ctx, id)
	}),
	"message:send": func(ctx context.Context, s *session.Session, args []any) error {
		input := new(MessageSendInput)
		if err := decodeArg(args, 0, input); err != nil {
			return err
		}
		_, err := s.SendMessage(ctx, input.ConversationId, input.MessageDraft)
		return err
	},
	"message:edit": func(ctx context.Context, s *session.Session, args []any) error {
		input := new(MessageEditInput)
		if err := decodeArg(args, 0, input); err != nil {
			return err
		}
		_, err := s.EditMessage(ctx, input.ConversationId, input.MessageId, input.Text)
		if errors.Is(err, session.ErrStale) {
			return nil
		}
		return err
	},
	"message:delete": func(ctx context.Context, s *session.Session, args []any) error {
		input := new(MessageDeleteInput)
		if err := decodeArg(args, 0, input); err != nil {
			return err
		}
		return s.DeleteMessage(ctx, input.ConversationId, input.MessageId)
	},
	"typing": func(ctx context.Context, s *session.Session, args []any) error {
		input := new(TypingInput)
		if err := decodeArg(args, 0, input); err != nil {
			return err
		}
		return s.Typing(input.ConversationId, input.Typing)
	},
	"notification:dismiss": func(ctx context.Context, s *session.Session, args []any) error {
		var index int
		if err := decodeArg(args, 0, &index); err != nil {
			return err
		}
		return s.Dismiss(index)
	},
	"notification:clear": func(ctx context.Context, s *session.Session, args []any) error {
		s.ClearAll()
		return nil
	},
	"notification:seen": func(ctx context.Context, s *session.Session, args []any) error {
		s.MarkSeen()
		return nil
	},
	"notification:permission": func(ctx context.Context, s *session.Session, args []any) error {
		var name string
		if err := decodeArg(args, 0, &name); err != nil {
			return err
		}
		switch name {
		case "granted":
			s.Notifications().SetPermission(notification.PermissionGranted)
		case "denied":
			s.Notifications().SetPermission(notification.PermissionDenied)
		case "default":
			s.Notifications().SetPermission(notification.PermissionDefault)
		default:
			return fmt.Errorf("unknown permission %q", name)
		}
		return nil
	},
}

// handle runs one UI event for userId and reports its failure.
func handle(manager *session.Manager, userId string, name string, args []any) error {
	h, ok := socketEvents[name]
	if !ok {
		return fmt.Errorf("unknown event %s", name)
	}
	s, err := manager.Get(userId)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return h(ctx, s, args)
}

func Socket(server *socket.Server, manager *session.Manager) {
	server.On("connection", func(clients ...interface{}) {
		client := clients[0].(*socket.Socket)
		claims, authenticated := socketio.Claims(client)

		client.On(EventInit, func(args ...interface{}) {
			if !authenticated {
				client.Emit(EventError, fiber.Map{"event": EventInit, "message": "unauthorized"})
				return
			}
			s, err := manager.Get(claims.Id)
			if err != nil {
				client.Emit(EventError, fiber.Map{"event": EventInit, "message": err.Error()})
				return
			}
			client.Emit(EventInit, s.Snapshot())
		})

		for name := range socketEvents {
			client.On(name, func(args ...interface{}) {
				if !authenticated {
					client.Emit(EventError, fiber.Map{"event": name, "message": "unauthorized"})
					return
				}
				if err := handle(manager, claims.Id, name, args); err != nil {
					client.Emit(EventError, fiber.Map{"event": name, "message": err.Error()})
				}
			})
		}
	})
}
