package socketio

import (
	"context"
	"time"

	"messenger-gateway/config"
	"messenger-gateway/model"
	"messenger-gateway/notification"
	"messenger-gateway/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	"github.com/zishang520/engine.io/v2/log"
	"github.com/zishang520/socket.io-go-redis/adapter"
	r_type "github.com/zishang520/socket.io-go-redis/types"
	"github.com/zishang520/socket.io/v2/socket"
)

var server *socket.Server

// Init mounts the UI socket.io server on app. Clients authenticate with
// the token query parameter and join the room of their user id. With a
// Redis client the rooms are shared between gateway instances.
func Init(app *fiber.App, rdb *redis.Client) *socket.Server {
	log.DEBUG = config.Config("SOCKET_DEBUG") == "true"

	options := socket.DefaultServerOptions()
	options.SetServeClient(true)
	options.SetAllowEIO3(true)
	options.SetPingInterval(25000 * time.Millisecond)
	options.SetPingTimeout(20000 * time.Millisecond)
	options.SetMaxHttpBufferSize(1000000)
	options.SetConnectTimeout(5000 * time.Millisecond)
	if rdb != nil {
		options.SetAdapter(&adapter.RedisAdapterBuilder{
			Redis: r_type.NewRedisClient(context.Background(), rdb),
			Opts:  &adapter.RedisAdapterOptions{},
		})
	}

	server = socket.NewServer(nil, nil)

	server.Use(func(client *socket.Socket, next func(*socket.ExtendedError)) {
		token, auth := client.Conn().Request().Query().Get("token")

		if auth {
			claims, err := utils.CheckAndExtractTokenMetadata(token, "JWT_ACCESS_KEY")

			if err == nil {
				if !claims.Otp {
					client.Join(socket.Room(claims.Id))
					client.SetData(claims)
				}
			}
		}

		next(nil)
	})

	app.Get("/socket.io/", adaptor.HTTPHandler(server.ServeHandler(options)))
	app.Post("/socket.io/", adaptor.HTTPHandler(server.ServeHandler(options)))

	return server
}

// Claims returns the token metadata of an authenticated client.
func Claims(client *socket.Socket) (*utils.TokenMetadata, bool) {
	claims, ok := client.Data().(*utils.TokenMetadata)
	return claims, ok && claims != nil
}

func Broadcast(event string, message any) {
	if server == nil {
		return
	}
	server.FetchSockets()(func(sockets []*socket.RemoteSocket, _ error) {
		for _, socket := range sockets {
			socket.Emit(event, message)
		}
	})
}

// Emit sends to every UI client of user id.
func Emit(id string, event string, message any) {
	if server == nil {
		return
	}
	server.To(socket.Room(id)).Emit(event, message)
}

// SoundNotifier asks the UI clients of userId to play the notification
// sound.
func SoundNotifier(userId string) notification.Notifier {
	return notification.NotifierFunc(func(ctx context.Context, event model.NotificationEvent) error {
		Emit(userId, "notification:sound", event)
		return nil
	})
}
