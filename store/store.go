package store

import (
	"sync"
	"time"

	"messenger-gateway/model"
)

// Store owns the State of one user. Mutations run to completion one at a
// time; change listeners observe every resulting State in order.
type Store struct {
	mu    sync.Mutex
	state State

	lmu       sync.Mutex
	nextId    uint64
	listeners []listener
}

type listener struct {
	id uint64
	fn func(State)
}

func New(currentUserId string) *Store {
	return &Store{state: NewState(currentUserId)}
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OnChange registers fn for every state change and returns a closure that
// removes it. The closure may be called more than once.
func (s *Store) OnChange(fn func(State)) func() {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	s.nextId++
	id := s.nextId
	s.listeners = append(s.listeners, listener{id: id, fn: fn})

	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// Dispatch applies reducer to the current state and notifies listeners.
func (s *Store) Dispatch(reducer func(State) State) State {
	s.mu.Lock()
	next := reducer(s.state)
	s.state = next
	s.mu.Unlock()

	s.lmu.Lock()
	listeners := append([]listener(nil), s.listeners...)
	s.lmu.Unlock()
	for _, l := range listeners {
		l.fn(next)
	}
	return next
}

func (s *Store) SetConversations(list []model.Conversation) State {
	return s.Dispatch(func(st State) State { return st.SetConversations(list) })
}

func (s *Store) SetActiveConversation(id string) State {
	return s.Dispatch(func(st State) State { return st.SetActiveConversation(id) })
}

func (s *Store) AddConversation(conv model.Conversation) State {
	return s.Dispatch(func(st State) State { return st.AddConversation(conv) })
}

func (s *Store) AppendMessage(conversationId string, msg model.Message, isOwnMessage bool) State {
	return s.Dispatch(func(st State) State { return st.AppendMessage(conversationId, msg, isOwnMessage) })
}

func (s *Store) SetMessages(conversationId string, messages []model.Message) State {
	return s.Dispatch(func(st State) State { return st.SetMessages(conversationId, messages) })
}

func (s *Store) MarkRead(conversationId string) State {
	return s.Dispatch(func(st State) State { return st.MarkRead(conversationId) })
}

func (s *Store) MarkReadByPeer(conversationId string) State {
	return s.Dispatch(func(st State) State { return st.MarkReadByPeer(conversationId) })
}

func (s *Store) EditMessage(conversationId string, messageId string, text string) State {
	return s.EditMessageAt(conversationId, messageId, text, time.Now())
}

func (s *Store) EditMessageAt(conversationId string, messageId string, text string, at time.Time) State {
	return s.Dispatch(func(st State) State { return st.EditMessage(conversationId, messageId, text, at) })
}

func (s *Store) DeleteMessage(conversationId string, messageId string) State {
	return s.Dispatch(func(st State) State { return st.DeleteMessage(conversationId, messageId) })
}

func (s *Store) DeleteConversation(conversationId string) State {
	return s.Dispatch(func(st State) State { return st.DeleteConversation(conversationId) })
}

func (s *Store) SetPresence(userId string, online bool) State {
	return s.Dispatch(func(st State) State { return st.SetPresence(userId, online) })
}

func (s *Store) SetTyping(conversationId string, userId string) State {
	return s.Dispatch(func(st State) State { return st.SetTyping(conversationId, userId) })
}
