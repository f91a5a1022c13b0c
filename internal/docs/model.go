package docs

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const maxIdentifierLength = 190

const (
	// DefaultTitle is assigned when a document is created without a title.
	DefaultTitle = "Untitled Document"
	// LastEditedNow is the display label set immediately on any local mutation.
	LastEditedNow = "Just now"

	excerptLength    = 100
	excerptEllipsis  = "..."
	lastEditedLayout = "Jan 2, 2006 at 3:04 PM"
)

var (
	// ErrInvalidDocumentID indicates that a document identifier is empty or exceeds storage bounds.
	ErrInvalidDocumentID = errors.New("docs: invalid document id")
	// ErrInvalidOwnerID indicates that an owner identifier is empty or exceeds storage bounds.
	ErrInvalidOwnerID = errors.New("docs: invalid owner id")
	// ErrInvalidShareID indicates that a share identifier is empty or exceeds storage bounds.
	ErrInvalidShareID = errors.New("docs: invalid share id")
)

// DocumentID represents a validated document identifier.
type DocumentID string

// NewDocumentID validates raw input and returns a DocumentID.
func NewDocumentID(rawInput string) (DocumentID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidDocumentID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidDocumentID, maxIdentifierLength)
	}
	return DocumentID(trimmed), nil
}

// String returns the underlying string identifier.
func (id DocumentID) String() string {
	return string(id)
}

// OwnerID represents a validated owning-user identifier.
type OwnerID string

// NewOwnerID validates raw input and returns an OwnerID.
func NewOwnerID(rawInput string) (OwnerID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidOwnerID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidOwnerID, maxIdentifierLength)
	}
	return OwnerID(trimmed), nil
}

// String returns the underlying string identifier.
func (id OwnerID) String() string {
	return string(id)
}

// ShareID represents a validated share-link identifier, distinct from the document id.
type ShareID string

// NewShareID validates raw input and returns a ShareID.
func NewShareID(rawInput string) (ShareID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidShareID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidShareID, maxIdentifierLength)
	}
	return ShareID(trimmed), nil
}

// String returns the underlying string identifier.
func (id ShareID) String() string {
	return string(id)
}

// Document models one entry of the session's document collection.
//
// Excerpt and LastEdited are display fields derived by this layer; they are
// never authoritative. Synced reports whether the remote store has confirmed
// the document: false means the entry exists only in local memory, under a
// temporary id if the remote create never succeeded.
type Document struct {
	ID            string
	Title         string
	Content       string
	Excerpt       string
	LastEdited    string
	Collaborators int
	ShareID       string
	IsPublic      bool
	Synced        bool
}

// DocumentUpdate carries a partial edit. Nil fields are left untouched.
type DocumentUpdate struct {
	Title   *string
	Content *string
}

func (u DocumentUpdate) empty() bool {
	return u.Title == nil && u.Content == nil
}

// Excerpt derives the display excerpt for the given content: the first 100
// characters, with a truncation marker appended when content is longer.
func Excerpt(content string) string {
	runes := []rune(content)
	if len(runes) <= excerptLength {
		return content
	}
	return string(runes[:excerptLength]) + excerptEllipsis
}

// FormatLastEdited renders a remote timestamp as the display label shown in
// the document list.
func FormatLastEdited(updatedAt time.Time) string {
	return updatedAt.Local().Format(lastEditedLayout)
}
