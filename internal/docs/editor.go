package docs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrReadOnly reports a save attempt on a shared read-only view.
	ErrReadOnly = errors.New("docs: editor session is read-only")

	errMissingStore = errors.New("document store is required")
)

// EditorSessionConfig describes one opened editing surface.
type EditorSessionConfig struct {
	Store      *Store
	DocumentID string
	// ReadOnly marks a shared view: edits and auto-save are disabled.
	ReadOnly bool
	// AutoSaveInterval overrides DefaultAutoSaveInterval when positive.
	AutoSaveInterval time.Duration
	Clock            func() time.Time
	Logger           *zap.Logger
}

// EditorSession holds the editing buffers for a single document and owns the
// auto-save schedule for its lifetime: started on open, cancelled on Close.
type EditorSession struct {
	store      *Store
	documentID string
	readOnly   bool
	clock      func() time.Time
	autoSaver  *AutoSaver

	mu        sync.Mutex
	title     string
	content   string
	dirty     bool
	edits     uint64
	lastSaved time.Time
}

// OpenEditor looks the document up in the store, seeds the buffers from it
// and starts the auto-save schedule unless the session is read-only.
func OpenEditor(ctx context.Context, cfg EditorSessionConfig) (*EditorSession, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	doc, found := cfg.Store.Document(cfg.DocumentID)
	if !found {
		return nil, ErrNotFound
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	session := &EditorSession{
		store:      cfg.Store,
		documentID: cfg.DocumentID,
		readOnly:   cfg.ReadOnly,
		clock:      clock,
		title:      doc.Title,
		content:    doc.Content,
	}

	if !cfg.ReadOnly {
		autoSaver, err := NewAutoSaver(AutoSaverConfig{
			Interval: cfg.AutoSaveInterval,
			Dirty:    session.shouldAutoSave,
			Save:     session.persist,
			Logger:   cfg.Logger,
		})
		if err != nil {
			return nil, err
		}
		session.autoSaver = autoSaver
		autoSaver.Start(ctx)
	}

	return session, nil
}

// SetTitle replaces the title buffer and marks the session dirty.
func (e *EditorSession) SetTitle(title string) {
	if e.readOnly {
		return
	}
	e.mu.Lock()
	e.title = title
	e.dirty = true
	e.edits++
	e.mu.Unlock()
}

// SetContent replaces the content buffer and marks the session dirty.
func (e *EditorSession) SetContent(content string) {
	if e.readOnly {
		return
	}
	e.mu.Lock()
	e.content = content
	e.dirty = true
	e.edits++
	e.mu.Unlock()
}

// Save persists the buffers immediately, under the same in-flight guard the
// schedule uses.
func (e *EditorSession) Save(ctx context.Context) error {
	if e.readOnly {
		return ErrReadOnly
	}
	if e.autoSaver == nil {
		return e.persist(ctx)
	}
	return e.autoSaver.SaveNow(ctx)
}

// LastSaved reports when the last save completed, zero before any save.
func (e *EditorSession) LastSaved() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSaved
}

// Close cancels the auto-save schedule. The session must not be used after.
func (e *EditorSession) Close() {
	if e.autoSaver != nil {
		e.autoSaver.Stop()
	}
}

// shouldAutoSave mirrors the manual-save gate: an untouched blank document is
// not worth persisting.
func (e *EditorSession) shouldAutoSave() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.dirty {
		return false
	}
	return strings.TrimSpace(e.content) != "" || e.title != DefaultTitle
}

func (e *EditorSession) persist(ctx context.Context) error {
	e.mu.Lock()
	title, content := e.title, e.content
	saved := e.edits
	e.mu.Unlock()

	e.store.Update(ctx, e.documentID, DocumentUpdate{Title: &title, Content: &content})

	e.mu.Lock()
	// An edit that landed while the save was in flight keeps the session dirty.
	if e.edits == saved {
		e.dirty = false
	}
	e.lastSaved = e.clock()
	e.mu.Unlock()
	return nil
}
