package docs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	errMissingRemote     = errors.New("remote store is required")
	errMissingSession    = errors.New("auth session is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

// StoreError wraps a failure with a stable operation.reason code.
type StoreError struct {
	code string
	err  error
}

func (e *StoreError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *StoreError) Unwrap() error {
	return e.err
}

func (e *StoreError) Code() string {
	return e.code
}

const (
	opStoreNew      = "docs.store.new"
	opLoadDocuments = "docs.load_documents"
	opCreate        = "docs.create_document"
	opUpdate        = "docs.update_document"
	opTogglePublic  = "docs.toggle_public"
	opSharedFetch   = "docs.get_by_share_id"
)

func newStoreError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &StoreError{code: code, err: cause}
}

// StoreConfig describes the collaborators a Store is built from.
type StoreConfig struct {
	Remote     RemoteStore
	Session    AuthSession
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Store is the single source of truth for the current session's documents.
//
// Local mutations are applied optimistically: Create and Update keep their
// local result even when the matching remote call fails (the divergence lasts
// until the next LoadDocuments). TogglePublic is the exception, updating local
// state only after remote confirmation so a private document can never appear
// public through a stale flag.
type Store struct {
	remote     RemoteStore
	session    AuthSession
	idProvider IDProvider
	logger     *zap.Logger

	mu        sync.Mutex
	documents []Document
}

// NewStore validates the configuration and returns an empty Store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Remote == nil {
		return nil, newStoreError(opStoreNew, "missing_remote", errMissingRemote)
	}
	if cfg.Session == nil {
		return nil, newStoreError(opStoreNew, "missing_session", errMissingSession)
	}
	if cfg.IDProvider == nil {
		return nil, newStoreError(opStoreNew, "missing_id_provider", errMissingIDProvider)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Store{
		remote:     cfg.Remote,
		session:    cfg.Session,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// Documents returns a snapshot of the collection in its current order.
func (s *Store) Documents() []Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]Document, len(s.documents))
	copy(snapshot, s.documents)
	return snapshot
}

// LoadDocuments replaces the collection with the remote owner-scoped listing,
// newest first. Without an authenticated session it is a no-op. A backend
// failure keeps the previous collection: stale data beats an empty list.
func (s *Store) LoadDocuments(ctx context.Context) error {
	userID, ok := s.session.CurrentUserID()
	if !ok {
		s.replaceAll(nil)
		return nil
	}

	ownerID, err := NewOwnerID(userID)
	if err != nil {
		s.logError(opLoadDocuments, "invalid_owner_id", err)
		return newStoreError(opLoadDocuments, "invalid_owner_id", err)
	}

	records, err := s.remote.QueryByOwner(ctx, ownerID)
	if err != nil {
		s.logError(opLoadDocuments, "query_failed", err, zap.String("user_id", userID))
		return nil
	}

	loaded := make([]Document, 0, len(records))
	for _, record := range records {
		loaded = append(loaded, normalizeRemote(record))
	}
	s.replaceAll(loaded)
	return nil
}

// Document performs a pure local lookup, with no network access.
func (s *Store) Document(id string) (Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range s.documents {
		if doc.ID == id {
			return doc, true
		}
	}
	return Document{}, false
}

// DocumentByShareID fetches a public document from the remote store. It works
// without authentication and never returns private documents; backend failure
// is reported as not-found.
func (s *Store) DocumentByShareID(ctx context.Context, rawShareID string) (Document, bool) {
	shareID, err := NewShareID(rawShareID)
	if err != nil {
		return Document{}, false
	}

	record, err := s.remote.QueryByShareID(ctx, shareID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logError(opSharedFetch, "query_failed", err, zap.String("share_id", shareID.String()))
		}
		return Document{}, false
	}
	if !record.IsPublic {
		return Document{}, false
	}
	return normalizeRemote(record), true
}

// Create inserts a new document at the front of the collection under a
// temporary id, then persists it remotely when a session exists. On remote
// confirmation the temporary id is swapped for the assigned one and the share
// fields adopted. A failed remote create keeps the local document, unsynced.
func (s *Store) Create(ctx context.Context, title, content string) (Document, error) {
	if title == "" {
		title = DefaultTitle
	}

	tempID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err)
		return Document{}, newStoreError(opCreate, "id_generation_failed", err)
	}

	doc := Document{
		ID:         tempID,
		Title:      title,
		Content:    content,
		Excerpt:    Excerpt(content),
		LastEdited: LastEditedNow,
	}

	s.mu.Lock()
	next := make([]Document, 0, len(s.documents)+1)
	next = append(next, doc)
	next = append(next, s.documents...)
	s.documents = next
	s.mu.Unlock()

	userID, authenticated := s.session.CurrentUserID()
	if !authenticated {
		return doc, nil
	}

	ownerID, err := NewOwnerID(userID)
	if err != nil {
		s.logError(opCreate, "invalid_owner_id", err)
		return doc, nil
	}

	record, err := s.remote.Insert(ctx, ownerID, title, content)
	if err != nil {
		s.logError(opCreate, "remote_insert_failed", err,
			zap.String("user_id", userID),
			zap.String("temp_id", tempID))
		return doc, nil
	}

	confirmed := s.confirmCreate(tempID, record)
	return confirmed, nil
}

// Update merges the partial edit into the matching document: content edits
// recompute the excerpt, every edit stamps LastEdited. The remote update is
// issued first when a session exists but its failure never reverts the local
// merge. Returns false when no document matches the id.
func (s *Store) Update(ctx context.Context, id string, updates DocumentUpdate) bool {
	if updates.empty() {
		_, found := s.Document(id)
		return found
	}

	if userID, authenticated := s.session.CurrentUserID(); authenticated {
		s.pushUpdate(ctx, id, userID, updates)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, doc := range s.documents {
		if doc.ID != id {
			continue
		}
		merged := mergeUpdate(doc, updates)
		next := make([]Document, len(s.documents))
		copy(next, s.documents)
		next[i] = merged
		s.documents = next
		return true
	}
	return false
}

// TogglePublic flips the document's public flag through the remote store and
// mirrors the confirmed value locally, returning the permanent share id.
// It reports ok=false without an authenticated session, when the id is
// unknown, or when the remote call fails; local state is then left untouched.
func (s *Store) TogglePublic(ctx context.Context, id string) (string, bool) {
	userID, authenticated := s.session.CurrentUserID()
	if !authenticated {
		return "", false
	}

	doc, found := s.Document(id)
	if !found {
		return "", false
	}

	docID, err := NewDocumentID(id)
	if err != nil {
		return "", false
	}
	ownerID, err := NewOwnerID(userID)
	if err != nil {
		s.logError(opTogglePublic, "invalid_owner_id", err)
		return "", false
	}

	target := !doc.IsPublic
	shareID, err := s.remote.SetPublic(ctx, docID, ownerID, target)
	if err != nil {
		s.logError(opTogglePublic, "remote_set_public_failed", err,
			zap.String("user_id", userID),
			zap.String("document_id", id),
			zap.Bool("target", target))
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, current := range s.documents {
		if current.ID != id {
			continue
		}
		updated := current
		updated.IsPublic = target
		updated.ShareID = shareID.String()
		next := make([]Document, len(s.documents))
		copy(next, s.documents)
		next[i] = updated
		s.documents = next
		return shareID.String(), true
	}
	// The document vanished while the remote call was in flight; the remote
	// flag is already set, the next load reconciles.
	return shareID.String(), true
}

// Watch reloads the collection every time the session identity changes. It
// returns when the context is cancelled or the signal channel closes.
func (s *Store) Watch(ctx context.Context, changes <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, open := <-changes:
			if !open {
				return
			}
			if err := s.LoadDocuments(ctx); err != nil {
				s.logError(opLoadDocuments, "reload_failed", err)
			}
		}
	}
}

func (s *Store) pushUpdate(ctx context.Context, id, userID string, updates DocumentUpdate) {
	docID, err := NewDocumentID(id)
	if err != nil {
		return
	}
	ownerID, err := NewOwnerID(userID)
	if err != nil {
		s.logError(opUpdate, "invalid_owner_id", err)
		return
	}
	if err := s.remote.Update(ctx, docID, ownerID, updates); err != nil {
		s.logError(opUpdate, "remote_update_failed", err,
			zap.String("user_id", userID),
			zap.String("document_id", id))
	}
}

func (s *Store) confirmCreate(tempID string, record RemoteDocument) Document {
	confirmed := normalizeRemote(record)
	confirmed.LastEdited = LastEditedNow

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, doc := range s.documents {
		if doc.ID != tempID {
			continue
		}
		next := make([]Document, len(s.documents))
		copy(next, s.documents)
		next[i] = confirmed
		s.documents = next
		return confirmed
	}
	// The surface that created the document is gone; nothing local to patch.
	return confirmed
}

func (s *Store) replaceAll(documents []Document) {
	s.mu.Lock()
	s.documents = documents
	s.mu.Unlock()
}

func mergeUpdate(doc Document, updates DocumentUpdate) Document {
	merged := doc
	if updates.Title != nil {
		merged.Title = *updates.Title
	}
	if updates.Content != nil {
		merged.Content = *updates.Content
		merged.Excerpt = Excerpt(*updates.Content)
	}
	merged.LastEdited = LastEditedNow
	return merged
}

func normalizeRemote(record RemoteDocument) Document {
	return Document{
		ID:         record.ID,
		Title:      record.Title,
		Content:    record.Content,
		Excerpt:    Excerpt(record.Content),
		LastEdited: FormatLastEdited(record.UpdatedAt),
		ShareID:    record.ShareID,
		IsPublic:   record.IsPublic,
		Synced:     true,
	}
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("document store error", attrs...)
}
