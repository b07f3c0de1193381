package session

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"messenger-gateway/model"
)

// IdentityCache keeps the identities of signed-in users across restarts.
type IdentityCache interface {
	Save(ctx context.Context, identity model.Identity) error
	List(ctx context.Context) ([]model.Identity, error)
	Delete(ctx context.Context, userId string) error
}

// Factory builds an unstarted Session for identity.
type Factory func(identity model.Identity) *Session

// Manager owns at most one Session per user.
type Manager struct {
	factory Factory
	cache   IdentityCache

	mu       sync.Mutex
	sessions map[string]*Session
	hooks    []func(*Session)
}

func NewManager(factory Factory, cache IdentityCache) *Manager {
	return &Manager{
		factory:  factory,
		cache:    cache,
		sessions: map[string]*Session{},
	}
}

// OnOpen registers fn to run for every new session before it starts.
func (m *Manager) OnOpen(fn func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// Open returns the running session of identity.UserId, replacing it when
// the credential changed.
func (m *Manager) Open(ctx context.Context, identity model.Identity) (*Session, error) {
	m.mu.Lock()
	current, ok := m.sessions[identity.UserId]
	if ok && current.identity.Token == identity.Token {
		m.mu.Unlock()
		return current, nil
	}
	if ok {
		delete(m.sessions, identity.UserId)
	}
	hooks := slices.Clone(m.hooks)
	m.mu.Unlock()

	if current != nil {
		current.Stop()
	}

	s := m.factory(identity)
	for _, hook := range hooks {
		hook(s)
	}
	if err := s.Start(ctx); err != nil {
		return nil, fmt.Errorf("open session for %s: %w", identity.UserId, err)
	}

	m.mu.Lock()
	if other, ok := m.sessions[identity.UserId]; ok {
		m.mu.Unlock()
		s.Stop()
		return other, nil
	}
	m.sessions[identity.UserId] = s
	m.mu.Unlock()

	if m.cache != nil {
		if err := m.cache.Save(ctx, identity); err != nil {
			logger.Debug("cache identity of %s: %v", identity.UserId, err)
		}
	}
	logger.Debug("session %s opened for user %s", s.Id, identity.UserId)
	return s, nil
}

func (m *Manager) Get(userId string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userId]
	if !ok {
		return nil, fmt.Errorf("%s: %w", userId, ErrNoSession)
	}
	return s, nil
}

// Close stops the session of userId and forgets its cached identity.
func (m *Manager) Close(ctx context.Context, userId string) error {
	m.mu.Lock()
	s, ok := m.sessions[userId]
	delete(m.sessions, userId)
	m.mu.Unlock()

	if ok {
		s.Stop()
	}
	if m.cache != nil {
		if err := m.cache.Delete(ctx, userId); err != nil {
			return fmt.Errorf("forget identity of %s: %w", userId, err)
		}
	}
	if !ok {
		return fmt.Errorf("%s: %w", userId, ErrNoSession)
	}
	return nil
}

// Shutdown stops every session but keeps the cached identities, so they
// are resumed by the next Restore.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = map[string]*Session{}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.Stop()
		}(s)
	}
	wg.Wait()
}

// Deliver routes a notification that arrived out of band to the session
// of userId. It reports whether the event was novel.
func (m *Manager) Deliver(userId string, event model.NotificationEvent) (bool, error) {
	s, err := m.Get(userId)
	if err != nil {
		return false, err
	}
	return s.Notify(event), nil
}

// Restore opens a session for every cached identity and returns how many
// came up. Identities that fail to connect are skipped.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	if m.cache == nil {
		return 0, nil
	}
	identities, err := m.cache.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list cached identities: %w", err)
	}
	restored := 0
	for _, identity := range identities {
		if _, err := m.Open(ctx, identity); err != nil {
			logger.Debug("restore %s: %v", identity.UserId, err)
			continue
		}
		restored++
	}
	return restored, nil
}

// Sessions returns the running sessions ordered by user id.
func (m *Manager) Sessions() []*Session {
	m.mu.Lock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	m.mu.Unlock()

	slices.SortFunc(list, func(a, b *Session) int {
		return strings.Compare(a.identity.UserId, b.identity.UserId)
	})
	return list
}
