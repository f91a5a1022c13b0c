package session

import (
	"context"
	"strings"
	"sync"
)

const subscriberBufferSize = 4

// Identity is the authenticated user attached to a session.
type Identity struct {
	UserID      string
	Email       string
	DisplayName string
	AvatarURL   string
}

// Session holds the nullable current identity and notifies subscribers on
// every change: login, logout and session restore all count.
type Session struct {
	mu          sync.RWMutex
	current     *Identity
	subscribers map[int64]chan struct{}
	nextID      int64
}

// New returns an unauthenticated session.
func New() *Session {
	return &Session{
		subscribers: make(map[int64]chan struct{}),
	}
}

// Current returns the identity and whether one is present.
func (s *Session) Current() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Identity{}, false
	}
	return *s.current, true
}

// CurrentUserID exposes the authenticated user id, satisfying the document
// store's session contract.
func (s *Session) CurrentUserID() (string, bool) {
	identity, ok := s.Current()
	if !ok {
		return "", false
	}
	return identity.UserID, true
}

// Authenticated reports whether an identity is present.
func (s *Session) Authenticated() bool {
	_, ok := s.Current()
	return ok
}

// SetIdentity installs the identity and notifies subscribers. An identity
// with a blank user id clears the session instead.
func (s *Session) SetIdentity(identity Identity) {
	if strings.TrimSpace(identity.UserID) == "" {
		s.Clear()
		return
	}
	s.mu.Lock()
	s.current = &identity
	s.mu.Unlock()
	s.publish()
}

// Clear drops the identity and notifies subscribers.
func (s *Session) Clear() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	s.publish()
}

// Subscribe returns a channel receiving one signal per identity change, plus
// a cancel function. Slow subscribers miss intermediate signals rather than
// blocking the publisher. Cancellation also happens when the context ends;
// either path releases the subscription and its waiter.
func (s *Session) Subscribe(ctx context.Context) (<-chan struct{}, func()) {
	stream := make(chan struct{}, subscriberBufferSize)

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subscribers[id] = stream
	s.mu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
			close(done)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return stream, cancel
}

func (s *Session) publish() {
	s.mu.RLock()
	streams := make([]chan struct{}, 0, len(s.subscribers))
	for _, stream := range s.subscribers {
		streams = append(streams, stream)
	}
	s.mu.RUnlock()

	for _, stream := range streams {
		select {
		case stream <- struct{}{}:
		default:
		}
	}
}
