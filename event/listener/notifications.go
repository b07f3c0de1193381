package listener

import (
	"encoding/json"
	"errors"
	"log"

	"messenger-gateway/event"
	"messenger-gateway/model"
	"messenger-gateway/session"
)

var (
	NotificationsChannel = make(chan event.Delivery)
)

// Deliverer routes a notification to the session of a user.
type Deliverer interface {
	Deliver(userId string, event model.NotificationEvent) (bool, error)
}

// Notifications drains ch until it is closed. Notifications for users
// without a session are dropped.
func Notifications(d Deliverer, ch <-chan event.Delivery) {
	for delivery := range ch {
		handleNotification(d, delivery)
	}
}

func handleNotification(d Deliverer, delivery event.Delivery) {
	var msg event.UserNotification
	if err := json.Unmarshal(delivery.Data, &msg); err != nil {
		log.Printf("drop malformed %s notification: %v", delivery.Action, err)
		return
	}
	if msg.Event.Type == "" {
		msg.Event.Type = model.NotificationType(delivery.Action)
	}

	_, err := d.Deliver(msg.UserId, msg.Event)
	if errors.Is(err, session.ErrNoSession) {
		return
	}
	if err != nil {
		log.Printf("deliver %s notification to %s: %v", msg.Event.Type, msg.UserId, err)
	}
}
