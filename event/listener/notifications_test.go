package listener

import (
	"fmt"
	"testing"

	"messenger-gateway/event"
	"messenger-gateway/model"
	"messenger-gateway/session"

	"github.com/stretchr/testify/assert"
)

type delivered struct {
	userId string
	event  model.NotificationEvent
}

type fakeDeliverer struct {
	got []delivered
}

func (d *fakeDeliverer) Deliver(userId string, ev model.NotificationEvent) (bool, error) {
	if userId == "offline" {
		return false, fmt.Errorf("%s: %w", userId, session.ErrNoSession)
	}
	d.got = append(d.got, delivered{userId: userId, event: ev})
	return true, nil
}

func TestNotificationsRoutesByUser(t *testing.T) {
	d := &fakeDeliverer{}
	ch := make(chan event.Delivery, 4)
	ch <- event.Delivery{Action: "like", Data: []byte(`{"userId":"u1","event":{"postId":"p1","timestamp":9}}`)}
	ch <- event.Delivery{Action: "comment", Data: []byte(`{"userId":"offline","event":{"type":"comment"}}`)}
	ch <- event.Delivery{Action: "like", Data: []byte(`garbage`)}
	ch <- event.Delivery{Action: "like", Data: []byte(`{"userId":"u2","event":{"type":"friend-request","senderId":"u3"}}`)}
	close(ch)

	Notifications(d, ch)

	if assert.Len(t, d.got, 2) {
		assert.Equal(t, "u1", d.got[0].userId)
		assert.Equal(t, model.NotificationLike, d.got[0].event.Type)
		assert.Equal(t, model.NotificationFriendRequest, d.got[1].event.Type)
	}
}
