package sessiontest

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"messenger-gateway/backend"
	"messenger-gateway/model"
)

// Backend answers REST calls from memory and records them.
type Backend struct {
	SendErr           error
	FetchMessagesFunc func(ctx context.Context, id string) ([]model.Message, error)
	EditMessageFunc   func(ctx context.Context, conversationId string, messageId string, text string) (model.Message, error)

	mu            sync.Mutex
	conversations []model.Conversation
	messages      map[string][]model.Message
	posts         map[string]model.Post
	calls         []string
	nextId        int
}

func NewBackend(conversations ...model.Conversation) *Backend {
	return &Backend{
		conversations: conversations,
		messages:      map[string][]model.Message{},
		posts:         map[string]model.Post{},
	}
}

func notFound(what string) error {
	return &backend.Error{Status: http.StatusNotFound, Message: what + " not found"}
}

func (b *Backend) call(format string, args ...any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, fmt.Sprintf(format, args...))
}

// Calls lists the calls made so far, as "list", "messages:<id>", ...
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *Backend) SetConversations(list ...model.Conversation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations = list
}

func (b *Backend) SetMessages(conversationId string, list ...model.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages[conversationId] = list
}

func (b *Backend) FetchConversations(ctx context.Context) ([]model.Conversation, error) {
	b.call("list")
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Conversation(nil), b.conversations...), nil
}

func (b *Backend) CreateConversation(ctx context.Context, participantId string) (model.Conversation, error) {
	b.call("create:%s", participantId)
	return model.Conversation{Id: "c-" + participantId, ParticipantId: participantId}, nil
}

func (b *Backend) DeleteConversation(ctx context.Context, id string) error {
	b.call("delete:%s", id)
	return nil
}

func (b *Backend) FetchMessages(ctx context.Context, id string) ([]model.Message, error) {
	b.call("messages:%s", id)
	if b.FetchMessagesFunc != nil {
		return b.FetchMessagesFunc(ctx, id)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.messages[id], nil
}

func (b *Backend) SendMessage(ctx context.Context, conversationId string, draft backend.MessageDraft) (model.Message, error) {
	b.call("send:%s", conversationId)
	if b.SendErr != nil {
		return model.Message{}, b.SendErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextId++
	return model.Message{
		Id:        fmt.Sprintf("m%d", b.nextId),
		Text:      draft.Text,
		MediaType: draft.MediaType,
		MediaUrl:  draft.MediaUrl,
		MediaName: draft.MediaName,
	}, nil
}

func (b *Backend) EditMessage(ctx context.Context, conversationId string, messageId string, text string) (model.Message, error) {
	b.call("edit:%s/%s", conversationId, messageId)
	if b.EditMessageFunc != nil {
		return b.EditMessageFunc(ctx, conversationId, messageId, text)
	}
	return model.Message{Id: messageId, Text: text}, nil
}

func (b *Backend) DeleteMessage(ctx context.Context, conversationId string, messageId string) error {
	b.call("delete:%s/%s", conversationId, messageId)
	return nil
}

func (b *Backend) MarkRead(ctx context.Context, conversationId string) error {
	b.call("read:%s", conversationId)
	return ctx.Err()
}

func (b *Backend) ListPosts(ctx context.Context) ([]model.Post, error) {
	b.call("posts")
	b.mu.Lock()
	defer b.mu.Unlock()
	list := make([]model.Post, 0, len(b.posts))
	for _, p := range b.posts {
		list = append(list, p)
	}
	return list, nil
}

func (b *Backend) GetPost(ctx context.Context, id string) (model.Post, error) {
	b.call("post:%s", id)
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.posts[id]
	if !ok {
		return model.Post{}, notFound("post")
	}
	return p, nil
}

func (b *Backend) CreatePost(ctx context.Context, post model.Post) (model.Post, error) {
	b.call("create-post")
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextId++
	post.Id = fmt.Sprintf("p%d", b.nextId)
	b.posts[post.Id] = post
	return post, nil
}

func (b *Backend) UpdatePost(ctx context.Context, post model.Post) (model.Post, error) {
	b.call("update-post:%s", post.Id)
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.posts[post.Id]; !ok {
		return model.Post{}, notFound("post")
	}
	b.posts[post.Id] = post
	return post, nil
}

func (b *Backend) DeletePost(ctx context.Context, id string) error {
	b.call("delete-post:%s", id)
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.posts[id]; !ok {
		return notFound("post")
	}
	delete(b.posts, id)
	return nil
}
