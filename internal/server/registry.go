package server

import (
	"context"
	"sync"

	"github.com/Dj01-glitch/docucloud-harmony/internal/docs"
	"github.com/Dj01-glitch/docucloud-harmony/internal/session"
	"go.uber.org/zap"
)

// userSession bundles one authenticated user's session state with the
// document store scoped to it.
type userSession struct {
	session *session.Session
	store   *docs.Store
	cancel  context.CancelFunc
}

// sessionRegistry creates document stores per authenticated user on demand
// and tears them down on logout. Each store watches its session so identity
// changes trigger reloads.
type sessionRegistry struct {
	remote docs.RemoteStore
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*userSession
}

func newSessionRegistry(remote docs.RemoteStore, logger *zap.Logger) *sessionRegistry {
	return &sessionRegistry{
		remote:   remote,
		logger:   logger,
		sessions: make(map[string]*userSession),
	}
}

// acquire returns the user's document store, creating and loading it on first
// use.
func (r *sessionRegistry) acquire(ctx context.Context, identity session.Identity) (*docs.Store, error) {
	r.mu.Lock()
	if existing, ok := r.sessions[identity.UserID]; ok {
		r.mu.Unlock()
		return existing.store, nil
	}
	r.mu.Unlock()

	userSess := session.New()
	store, err := docs.NewStore(docs.StoreConfig{
		Remote:     r.remote,
		Session:    userSess,
		IDProvider: docs.NewUUIDProvider(),
		Logger:     r.logger,
	})
	if err != nil {
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	changes, _ := userSess.Subscribe(watchCtx)
	go store.Watch(watchCtx, changes)

	entry := &userSession{session: userSess, store: store, cancel: cancel}

	r.mu.Lock()
	if existing, ok := r.sessions[identity.UserID]; ok {
		r.mu.Unlock()
		cancel()
		return existing.store, nil
	}
	r.sessions[identity.UserID] = entry
	r.mu.Unlock()

	userSess.SetIdentity(identity)
	if err := store.LoadDocuments(ctx); err != nil {
		r.logger.Warn("initial document load failed",
			zap.String("user_id", identity.UserID),
			zap.Error(err))
	}
	return store, nil
}

// release tears the user's session down: the watcher stops and the store is
// discarded. Requests racing a logout simply recreate the session.
func (r *sessionRegistry) release(userID string) {
	r.mu.Lock()
	entry, ok := r.sessions[userID]
	if ok {
		delete(r.sessions, userID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	entry.session.Clear()
	entry.cancel()
}
