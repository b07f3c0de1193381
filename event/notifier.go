package event

import (
	"context"
	"encoding/json"

	"messenger-gateway/model"
)

const (
	// PushQueue receives platform notifications for the device push service.
	PushQueue = "push"
	// NotificationsQueue carries notifications raised outside the push
	// channel, addressed to one user.
	NotificationsQueue = "notifications"
)

// UserNotification is the body of both queues.
type UserNotification struct {
	UserId string                  `json:"userId"`
	Event  model.NotificationEvent `json:"event"`
}

// PlatformNotifier hands notifications of one user to the push service.
type PlatformNotifier struct {
	pub    Publisher
	userId string
}

func NewPlatformNotifier(pub Publisher, userId string) *PlatformNotifier {
	return &PlatformNotifier{pub: pub, userId: userId}
}

func (n *PlatformNotifier) Notify(ctx context.Context, event model.NotificationEvent) error {
	data, err := json.Marshal(UserNotification{UserId: n.userId, Event: event})
	if err != nil {
		return err
	}
	return n.pub.Emit(ctx, PushQueue, string(event.Type), data)
}
