package notification

import "messenger-gateway/model"

type View string

const (
	ViewConversation View = "conversation"
	ViewPost         View = "post"
	ViewFriends      View = "friends"
)

// Target is the view a notification leads to.
type Target struct {
	View View   `json:"view"`
	Id   string `json:"id,omitempty"`
	Path string `json:"path"`
}

// NavigateFor maps an event to the view it opens. Unknown types are logged
// and reported with ok == false.
func NavigateFor(event model.NotificationEvent) (Target, bool) {
	switch event.Type {
	case model.NotificationMessage:
		return Target{View: ViewConversation, Id: event.ConversationId, Path: "/messages/" + event.ConversationId}, true
	case model.NotificationLike, model.NotificationComment:
		return Target{View: ViewPost, Id: event.PostId, Path: "/posts/" + event.PostId}, true
	case model.NotificationFriendRequest, model.NotificationFriendAccepted:
		return Target{View: ViewFriends, Id: event.SenderId, Path: "/friends"}, true
	}

	logger.Debug("no view for notification type %q", event.Type)
	return Target{}, false
}
