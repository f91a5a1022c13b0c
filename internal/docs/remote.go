package docs

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports that no document matched the requested identifier, or
// that the match is not visible to the caller.
var ErrNotFound = errors.New("docs: document not found")

// RemoteDocument is the record shape returned by the store of record.
type RemoteDocument struct {
	ID        string
	OwnerID   string
	Title     string
	Content   string
	ShareID   string
	IsPublic  bool
	UpdatedAt time.Time
}

// RemoteStore abstracts the network-reachable store of record. Mutating and
// owner-list operations are scoped to the owning identity; QueryByShareID
// bypasses ownership but only ever returns public documents.
type RemoteStore interface {
	Insert(ctx context.Context, ownerID OwnerID, title, content string) (RemoteDocument, error)
	Update(ctx context.Context, id DocumentID, ownerID OwnerID, updates DocumentUpdate) error
	QueryByOwner(ctx context.Context, ownerID OwnerID) ([]RemoteDocument, error)
	QueryByShareID(ctx context.Context, shareID ShareID) (RemoteDocument, error)
	SetPublic(ctx context.Context, id DocumentID, ownerID OwnerID, isPublic bool) (ShareID, error)
}

// AuthSession exposes the ambient authenticated identity the store branches on.
type AuthSession interface {
	CurrentUserID() (string, bool)
}
