package docs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeSession struct {
	mu     sync.Mutex
	userID string
}

func (f *fakeSession) CurrentUserID() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.userID == "" {
		return "", false
	}
	return f.userID, true
}

func (f *fakeSession) set(userID string) {
	f.mu.Lock()
	f.userID = userID
	f.mu.Unlock()
}

type recordedUpdate struct {
	id      string
	ownerID string
	updates DocumentUpdate
}

type fakeRemote struct {
	mu sync.Mutex

	insertResult RemoteDocument
	insertErr    error
	insertCalls  int

	updateErr error
	updates   []recordedUpdate

	ownerDocs  []RemoteDocument
	ownerErr   error
	ownerCalls int

	shared map[string]RemoteDocument

	setPublicShareID string
	setPublicErr     error
	setPublicCalls   []bool
}

func (f *fakeRemote) Insert(_ context.Context, ownerID OwnerID, title, content string) (RemoteDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	if f.insertErr != nil {
		return RemoteDocument{}, f.insertErr
	}
	result := f.insertResult
	result.OwnerID = ownerID.String()
	if result.Title == "" {
		result.Title = title
	}
	if result.Content == "" {
		result.Content = content
	}
	return result, nil
}

func (f *fakeRemote) Update(_ context.Context, id DocumentID, ownerID OwnerID, updates DocumentUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, recordedUpdate{id: id.String(), ownerID: ownerID.String(), updates: updates})
	return f.updateErr
}

func (f *fakeRemote) QueryByOwner(_ context.Context, _ OwnerID) ([]RemoteDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ownerCalls++
	if f.ownerErr != nil {
		return nil, f.ownerErr
	}
	result := make([]RemoteDocument, len(f.ownerDocs))
	copy(result, f.ownerDocs)
	return result, nil
}

func (f *fakeRemote) QueryByShareID(_ context.Context, shareID ShareID) (RemoteDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.shared[shareID.String()]
	if !ok || !record.IsPublic {
		return RemoteDocument{}, ErrNotFound
	}
	return record, nil
}

func (f *fakeRemote) SetPublic(_ context.Context, _ DocumentID, _ OwnerID, isPublic bool) (ShareID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setPublicCalls = append(f.setPublicCalls, isPublic)
	if f.setPublicErr != nil {
		return "", f.setPublicErr
	}
	return ShareID(f.setPublicShareID), nil
}

type staticIDGenerator struct {
	mu    sync.Mutex
	ids   []string
	index int
}

func (g *staticIDGenerator) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.index >= len(g.ids) {
		return "", errors.New("exhausted ids")
	}
	id := g.ids[g.index]
	g.index++
	return id, nil
}

func newTestStore(t *testing.T, sess AuthSession, remote RemoteStore, ids ...string) *Store {
	t.Helper()
	if len(ids) == 0 {
		ids = []string{"temp-1", "temp-2", "temp-3"}
	}
	store, err := NewStore(StoreConfig{
		Remote:     remote,
		Session:    sess,
		IDProvider: &staticIDGenerator{ids: ids},
	})
	if err != nil {
		t.Fatalf("unexpected store error: %v", err)
	}
	return store
}

func TestCreateWithoutArgumentsUsesDefaults(t *testing.T) {
	store := newTestStore(t, &fakeSession{}, &fakeRemote{})

	doc, err := store.Create(context.Background(), "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != DefaultTitle {
		t.Fatalf("expected default title, got %q", doc.Title)
	}
	if doc.Content != "" || doc.Excerpt != "" {
		t.Fatalf("expected empty content and excerpt")
	}
	if doc.LastEdited != LastEditedNow {
		t.Fatalf("unexpected last edited label %q", doc.LastEdited)
	}

	documents := store.Documents()
	if len(documents) != 1 {
		t.Fatalf("expected 1 document, got %d", len(documents))
	}
	if documents[0].ID != doc.ID {
		t.Fatalf("expected new document at index 0")
	}
}

func TestCreateWithoutSessionStaysLocal(t *testing.T) {
	remote := &fakeRemote{}
	store := newTestStore(t, &fakeSession{}, remote)

	doc, err := store.Create(context.Background(), "Notes", "Hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ID == "" {
		t.Fatalf("expected a generated id")
	}
	if doc.Title != "Notes" || doc.Content != "Hello" || doc.Excerpt != "Hello" {
		t.Fatalf("unexpected document fields: %+v", doc)
	}
	if doc.ShareID != "" {
		t.Fatalf("local-only document must not carry a share id")
	}
	if doc.Synced {
		t.Fatalf("local-only document must not be marked synced")
	}
	if remote.insertCalls != 0 {
		t.Fatalf("expected no remote insert without a session")
	}
}

func TestCreatePrependsNewestFirst(t *testing.T) {
	store := newTestStore(t, &fakeSession{}, &fakeRemote{})

	first, _ := store.Create(context.Background(), "First", "")
	second, _ := store.Create(context.Background(), "Second", "")

	documents := store.Documents()
	if len(documents) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(documents))
	}
	if documents[0].ID != second.ID || documents[1].ID != first.ID {
		t.Fatalf("expected newest-first ordering")
	}
}

func TestCreateAdoptsRemoteIdentity(t *testing.T) {
	remote := &fakeRemote{
		insertResult: RemoteDocument{
			ID:        "42",
			ShareID:   "abc",
			IsPublic:  false,
			UpdatedAt: time.Unix(1700000000, 0).UTC(),
		},
	}
	store := newTestStore(t, &fakeSession{userID: "user-1"}, remote)

	doc, err := store.Create(context.Background(), "Notes", "Hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ID != "42" {
		t.Fatalf("expected temp id to be replaced with \"42\", got %q", doc.ID)
	}
	if doc.ShareID != "abc" {
		t.Fatalf("expected share id from remote, got %q", doc.ShareID)
	}
	if !doc.Synced {
		t.Fatalf("expected confirmed document to be marked synced")
	}
	if doc.LastEdited != LastEditedNow {
		t.Fatalf("a just-created document should read %q, got %q", LastEditedNow, doc.LastEdited)
	}

	if _, found := store.Document("temp-1"); found {
		t.Fatalf("temporary id must be gone after confirmation")
	}
	if _, found := store.Document("42"); !found {
		t.Fatalf("expected document under its assigned id")
	}
}

func TestCreateKeepsLocalDocumentOnRemoteFailure(t *testing.T) {
	remote := &fakeRemote{insertErr: errors.New("backend down")}
	store := newTestStore(t, &fakeSession{userID: "user-1"}, remote)

	doc, err := store.Create(context.Background(), "Notes", "Hello")
	if err != nil {
		t.Fatalf("remote failure must not surface: %v", err)
	}
	if doc.ID != "temp-1" {
		t.Fatalf("expected document to keep its temporary id, got %q", doc.ID)
	}
	if doc.Synced {
		t.Fatalf("unconfirmed document must not be marked synced")
	}
	if _, found := store.Document("temp-1"); !found {
		t.Fatalf("document should stay in the collection")
	}
}

func TestUpdateRecomputesExcerptAndStampsLastEdited(t *testing.T) {
	store := newTestStore(t, &fakeSession{}, &fakeRemote{})
	doc, _ := store.Create(context.Background(), "Notes", "Hello")

	content := "Fresh content"
	if !store.Update(context.Background(), doc.ID, DocumentUpdate{Content: &content}) {
		t.Fatalf("expected update to find the document")
	}

	updated, found := store.Document(doc.ID)
	if !found {
		t.Fatalf("document disappeared")
	}
	if updated.Content != content {
		t.Fatalf("unexpected content %q", updated.Content)
	}
	if updated.Excerpt != content {
		t.Fatalf("excerpt should track content, got %q", updated.Excerpt)
	}
	if updated.LastEdited != LastEditedNow {
		t.Fatalf("unexpected last edited label %q", updated.LastEdited)
	}
	if updated.Title != "Notes" {
		t.Fatalf("title must stay untouched, got %q", updated.Title)
	}
}

func TestUpdateLastWriteWins(t *testing.T) {
	store := newTestStore(t, &fakeSession{}, &fakeRemote{})
	doc, _ := store.Create(context.Background(), "Notes", "")

	titleA, titleB := "A", "B"
	store.Update(context.Background(), doc.ID, DocumentUpdate{Title: &titleA})
	store.Update(context.Background(), doc.ID, DocumentUpdate{Title: &titleB})

	updated, _ := store.Document(doc.ID)
	if updated.Title != "B" {
		t.Fatalf("expected last write to win, got %q", updated.Title)
	}
}

func TestUpdateUnknownIDReturnsFalse(t *testing.T) {
	store := newTestStore(t, &fakeSession{}, &fakeRemote{})
	title := "A"
	if store.Update(context.Background(), "missing", DocumentUpdate{Title: &title}) {
		t.Fatalf("expected update on unknown id to report not found")
	}
}

func TestUpdateRemoteFailureDoesNotRevertLocalState(t *testing.T) {
	remote := &fakeRemote{
		insertResult: RemoteDocument{ID: "42", ShareID: "abc"},
		updateErr:    errors.New("backend down"),
	}
	store := newTestStore(t, &fakeSession{userID: "user-1"}, remote)
	doc, _ := store.Create(context.Background(), "Notes", "Hello")

	content := "Edited"
	if !store.Update(context.Background(), doc.ID, DocumentUpdate{Content: &content}) {
		t.Fatalf("expected update to apply locally")
	}

	updated, _ := store.Document(doc.ID)
	if updated.Content != "Edited" {
		t.Fatalf("optimistic local update must survive remote failure, got %q", updated.Content)
	}
	if len(remote.updates) != 1 {
		t.Fatalf("expected one remote update attempt, got %d", len(remote.updates))
	}
	if remote.updates[0].ownerID != "user-1" {
		t.Fatalf("remote update must be owner-scoped, got %q", remote.updates[0].ownerID)
	}
}

func TestTogglePublicRequiresSession(t *testing.T) {
	remote := &fakeRemote{setPublicShareID: "abc"}
	store := newTestStore(t, &fakeSession{}, remote)
	doc, _ := store.Create(context.Background(), "Notes", "")

	shareID, ok := store.TogglePublic(context.Background(), doc.ID)
	if ok || shareID != "" {
		t.Fatalf("expected a null result without a session")
	}
	current, _ := store.Document(doc.ID)
	if current.IsPublic {
		t.Fatalf("public flag must stay unchanged")
	}
	if len(remote.setPublicCalls) != 0 {
		t.Fatalf("no remote call expected without a session")
	}
}

func TestTogglePublicFlipsAndReturnsShareID(t *testing.T) {
	remote := &fakeRemote{
		insertResult:     RemoteDocument{ID: "42", ShareID: "abc"},
		setPublicShareID: "abc",
	}
	store := newTestStore(t, &fakeSession{userID: "user-1"}, remote)
	doc, _ := store.Create(context.Background(), "Notes", "")

	shareID, ok := store.TogglePublic(context.Background(), doc.ID)
	if !ok {
		t.Fatalf("expected toggle to succeed")
	}
	if shareID != "abc" {
		t.Fatalf("expected the share id assigned at creation, got %q", shareID)
	}

	updated, _ := store.Document(doc.ID)
	if !updated.IsPublic {
		t.Fatalf("expected public flag to flip on")
	}
	if len(remote.setPublicCalls) != 1 || remote.setPublicCalls[0] != true {
		t.Fatalf("unexpected remote calls: %v", remote.setPublicCalls)
	}

	if _, ok := store.TogglePublic(context.Background(), doc.ID); !ok {
		t.Fatalf("expected second toggle to succeed")
	}
	updated, _ = store.Document(doc.ID)
	if updated.IsPublic {
		t.Fatalf("expected public flag to flip back off")
	}
	if remote.setPublicCalls[1] != false {
		t.Fatalf("second toggle should request private, got %v", remote.setPublicCalls)
	}
}

func TestTogglePublicRemoteFailureLeavesStateUnchanged(t *testing.T) {
	remote := &fakeRemote{
		insertResult: RemoteDocument{ID: "42", ShareID: "abc"},
		setPublicErr: errors.New("backend down"),
	}
	store := newTestStore(t, &fakeSession{userID: "user-1"}, remote)
	doc, _ := store.Create(context.Background(), "Notes", "")

	shareID, ok := store.TogglePublic(context.Background(), doc.ID)
	if ok || shareID != "" {
		t.Fatalf("expected a null result on remote failure")
	}
	current, _ := store.Document(doc.ID)
	if current.IsPublic {
		t.Fatalf("share toggle must not be optimistic")
	}
}

func TestDocumentByShareIDHonorsPublicFlag(t *testing.T) {
	remote := &fakeRemote{
		shared: map[string]RemoteDocument{
			"pub":  {ID: "1", ShareID: "pub", IsPublic: true, Title: "Open", Content: "visible"},
			"priv": {ID: "2", ShareID: "priv", IsPublic: false, Title: "Hidden"},
		},
	}
	store := newTestStore(t, &fakeSession{}, remote)

	doc, found := store.DocumentByShareID(context.Background(), "pub")
	if !found {
		t.Fatalf("expected public document to resolve without authentication")
	}
	if doc.Title != "Open" || !doc.IsPublic {
		t.Fatalf("unexpected shared document: %+v", doc)
	}

	if _, found := store.DocumentByShareID(context.Background(), "priv"); found {
		t.Fatalf("private document must not resolve by share id")
	}
	if _, found := store.DocumentByShareID(context.Background(), "missing"); found {
		t.Fatalf("unknown share id must report not found")
	}
}

func TestLoadDocumentsReplacesCollectionAndIsIdempotent(t *testing.T) {
	remote := &fakeRemote{
		ownerDocs: []RemoteDocument{
			{ID: "2", Title: "Newer", Content: "b", UpdatedAt: time.Unix(1700000100, 0).UTC()},
			{ID: "1", Title: "Older", Content: "a", UpdatedAt: time.Unix(1700000000, 0).UTC()},
		},
	}
	store := newTestStore(t, &fakeSession{userID: "user-1"}, remote)

	if err := store.LoadDocuments(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first := store.Documents()
	if len(first) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(first))
	}
	if first[0].ID != "2" || first[1].ID != "1" {
		t.Fatalf("expected remote ordering to be preserved")
	}
	if !first[0].Synced {
		t.Fatalf("loaded documents must be marked synced")
	}
	if first[0].LastEdited == LastEditedNow {
		t.Fatalf("loaded documents carry a formatted timestamp, not the sentinel")
	}

	if err := store.LoadDocuments(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second := store.Documents()
	if len(second) != len(first) {
		t.Fatalf("repeated load changed collection size")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("repeated load changed document %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestLoadDocumentsKeepsStateOnBackendFailure(t *testing.T) {
	remote := &fakeRemote{
		ownerDocs: []RemoteDocument{{ID: "1", Title: "Kept", UpdatedAt: time.Unix(1700000000, 0).UTC()}},
	}
	store := newTestStore(t, &fakeSession{userID: "user-1"}, remote)

	if err := store.LoadDocuments(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	remote.mu.Lock()
	remote.ownerErr = errors.New("backend down")
	remote.mu.Unlock()

	if err := store.LoadDocuments(context.Background()); err != nil {
		t.Fatalf("backend failure must not surface: %v", err)
	}
	documents := store.Documents()
	if len(documents) != 1 || documents[0].ID != "1" {
		t.Fatalf("expected stale collection to be preserved, got %+v", documents)
	}
}

func TestLoadDocumentsWithoutSessionSkipsNetwork(t *testing.T) {
	remote := &fakeRemote{}
	store := newTestStore(t, &fakeSession{}, remote)

	if err := store.LoadDocuments(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if remote.ownerCalls != 0 {
		t.Fatalf("expected no owner query without a session")
	}
	if len(store.Documents()) != 0 {
		t.Fatalf("expected empty collection")
	}
}

func TestWatchReloadsOnSessionChange(t *testing.T) {
	remote := &fakeRemote{
		ownerDocs: []RemoteDocument{{ID: "1", Title: "Loaded", UpdatedAt: time.Unix(1700000000, 0).UTC()}},
	}
	sess := &fakeSession{}
	store := newTestStore(t, sess, remote)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan struct{}, 1)
	go store.Watch(ctx, changes)

	sess.set("user-1")
	changes <- struct{}{}

	deadline := time.After(2 * time.Second)
	for len(store.Documents()) == 0 {
		select {
		case <-deadline:
			t.Fatalf("watch never reloaded the collection")
		case <-time.After(5 * time.Millisecond):
		}
	}

	sess.set("")
	changes <- struct{}{}
	deadline = time.After(2 * time.Second)
	for len(store.Documents()) != 0 {
		select {
		case <-deadline:
			t.Fatalf("watch never cleared the collection on logout")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
