package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"messenger-gateway/backend"
	"messenger-gateway/config"
	"messenger-gateway/controller"
	"messenger-gateway/database"
	"messenger-gateway/event"
	"messenger-gateway/event/listener"
	"messenger-gateway/model"
	"messenger-gateway/notification"
	"messenger-gateway/router"
	"messenger-gateway/session"
	"messenger-gateway/socketio"
	"messenger-gateway/transport"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/redis/go-redis/v9"
)

func main() {
	log.SetPrefix("messenger-gateway: ")

	rest := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StrictRouting:         true,
		AppName:               "messenger-gateway",
	})

	rest.Use(cors.New())

	ctx := context.Background()

	dbs, err := database.RedisConnect(ctx)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	cache := database.NewIdentityCache(database.Redis[dbs[0]])
	var adapterClient *redis.Client
	if len(dbs) > 1 {
		adapterClient = database.Redis[dbs[1]]
	}

	// Event logs
	var journal *event.Journal
	if config.Config("EVENT_MODE") != "off" {
		journal, err = event.OpenJournal(config.ConfigDefault("EVENT_LOG_DIR", "logs"))
		if err != nil {
			log.Fatalf("event journal: %v", err)
		}
	}

	rabbit, err := event.RabbitMQConnect([]string{
		// Connect to queues
		event.PushQueue,
		event.NotificationsQueue,
	}, journal)
	if err != nil {
		log.Fatalf("rabbitmq: %v", err)
	}

	if journal != nil && config.Config("EVENT_MODE") == "resend" {
		n, err := journal.ReplayOut(rabbit)
		if err != nil {
			log.Printf("resend %s: %v", event.OutLogFile, err)
		}
		log.Printf("resent %d events", n)
	}

	pushURL := config.ConfigDefault("PUSH_URL", "http://localhost:4000")
	backendURL := config.ConfigDefault("BACKEND_URL", "http://localhost:4000/api")

	manager := session.NewManager(func(identity model.Identity) *session.Session {
		return session.New(
			identity,
			transport.New(transport.Options{URL: pushURL}),
			backend.New(backendURL, identity.Token),
			notification.New(
				notification.WithSound(socketio.SoundNotifier(identity.UserId)),
				notification.WithPlatform(event.NewPlatformNotifier(rabbit, identity.UserId)),
			),
		)
	}, cache)
	router.Bind(manager, socketio.Emit)

	// Run "notifications" listener
	go listener.Notifications(manager, listener.NotificationsChannel)

	if journal != nil && config.Config("EVENT_MODE") == "replay" {
		n, err := journal.ReplayIn(map[string]chan event.Delivery{
			event.NotificationsQueue: listener.NotificationsChannel,
		})
		if err != nil {
			log.Printf("replay %s: %v", event.InLogFile, err)
		}
		log.Printf("replayed %d events", n)
	}

	// Subscribe listener channel to "notifications" events
	if err := rabbit.Subscribe([]event.RabbitMQSubscribeListener{
		{
			Queue:   event.NotificationsQueue,
			Channel: listener.NotificationsChannel,
		},
	}); err != nil {
		log.Fatalf("rabbitmq subscribe: %v", err)
	}

	enforcer, err := database.Casbin(strings.Split(config.Config("ADMIN_USERS"), ","))
	if err != nil {
		log.Fatalf("casbin: %v", err)
	}

	socket := socketio.Init(rest, adapterClient)

	router.Rest(rest, controller.New(manager), enforcer)
	router.Socket(socket, manager)

	restoreCtx, cancel := context.WithTimeout(ctx, time.Minute)
	restored, err := manager.Restore(restoreCtx)
	cancel()
	if err != nil {
		log.Printf("restore sessions: %v", err)
	}
	log.Printf("restored %d sessions", restored)

	go func() {
		if err := rest.Listen(fmt.Sprintf(":%s", config.ConfigDefault("SERVER_PORT", "8080"))); err != nil {
			log.Printf("listen: %v", err)
		}
	}()

	exit := make(chan struct{})
	SignalC := make(chan os.Signal, 1)

	signal.Notify(SignalC, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for s := range SignalC {
			switch s {
			case syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
				close(exit)
				return
			}
		}
	}()

	<-exit
	if err := rest.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("shutdown: %v", err)
	}
	manager.Shutdown()
	socket.Close(nil)
	if err := rabbit.Close(); err != nil {
		log.Printf("close rabbitmq: %v", err)
	}
	if err := journal.Close(); err != nil {
		log.Printf("close event journal: %v", err)
	}
	database.RedisClose()
	os.Exit(0)
}
