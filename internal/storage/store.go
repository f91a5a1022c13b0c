package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dj01-glitch/docucloud-harmony/internal/docs"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
)

// StoreConfig describes the dependencies of the persistent document store.
type StoreConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider docs.IDProvider
	Logger     *zap.Logger
}

// Store is the GORM-backed store of record implementing docs.RemoteStore.
// Mutations and owner listings are scoped to the owning identity; share-id
// reads bypass ownership but only match public rows.
type Store struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider docs.IDProvider
	logger     *zap.Logger
}

// NewStore validates the configuration and returns a Store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("storage: %w", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("storage: %w", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// Insert persists a new document for the owner, assigning its authoritative
// document id and permanent share id.
func (s *Store) Insert(ctx context.Context, ownerID docs.OwnerID, title, content string) (docs.RemoteDocument, error) {
	documentID, err := s.idProvider.NewID()
	if err != nil {
		return docs.RemoteDocument{}, fmt.Errorf("storage: generate document id: %w", err)
	}
	shareID, err := s.idProvider.NewID()
	if err != nil {
		return docs.RemoteDocument{}, fmt.Errorf("storage: generate share id: %w", err)
	}

	now := s.clock().UTC().Unix()
	row := StoredDocument{
		DocumentID:       documentID,
		OwnerID:          ownerID.String(),
		Title:            title,
		Content:          content,
		ShareID:          shareID,
		IsPublic:         false,
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		s.logger.Error("document insert failed",
			zap.String("owner_id", ownerID.String()),
			zap.Error(err))
		return docs.RemoteDocument{}, fmt.Errorf("storage: insert document: %w", err)
	}
	return toRemote(row), nil
}

// Update applies the partial edit to the owner's document and refreshes the
// server-side timestamp. Unknown or un-owned ids report docs.ErrNotFound.
func (s *Store) Update(ctx context.Context, id docs.DocumentID, ownerID docs.OwnerID, updates docs.DocumentUpdate) error {
	values := map[string]interface{}{
		"updated_at_s": s.clock().UTC().Unix(),
	}
	if updates.Title != nil {
		values["title"] = *updates.Title
	}
	if updates.Content != nil {
		values["content"] = *updates.Content
	}

	result := s.db.WithContext(ctx).
		Model(&StoredDocument{}).
		Where("document_id = ? AND owner_id = ?", id.String(), ownerID.String()).
		Updates(values)
	if result.Error != nil {
		s.logger.Error("document update failed",
			zap.String("document_id", id.String()),
			zap.String("owner_id", ownerID.String()),
			zap.Error(result.Error))
		return fmt.Errorf("storage: update document: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return docs.ErrNotFound
	}
	return nil
}

// QueryByOwner lists the owner's documents, most recently updated first.
func (s *Store) QueryByOwner(ctx context.Context, ownerID docs.OwnerID) ([]docs.RemoteDocument, error) {
	var rows []StoredDocument
	if err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID.String()).
		Order("updated_at_s DESC").
		Find(&rows).Error; err != nil {
		s.logger.Error("owner query failed",
			zap.String("owner_id", ownerID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("storage: query by owner: %w", err)
	}

	records := make([]docs.RemoteDocument, 0, len(rows))
	for _, row := range rows {
		records = append(records, toRemote(row))
	}
	return records, nil
}

// QueryByShareID fetches the single public document carrying the share id.
// Private documents are indistinguishable from missing ones.
func (s *Store) QueryByShareID(ctx context.Context, shareID docs.ShareID) (docs.RemoteDocument, error) {
	var row StoredDocument
	err := s.db.WithContext(ctx).
		Where("share_id = ? AND is_public = ?", shareID.String(), true).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return docs.RemoteDocument{}, docs.ErrNotFound
	}
	if err != nil {
		s.logger.Error("share query failed",
			zap.String("share_id", shareID.String()),
			zap.Error(err))
		return docs.RemoteDocument{}, fmt.Errorf("storage: query by share id: %w", err)
	}
	return toRemote(row), nil
}

// SetPublic stores the public flag on the owner's document and returns its
// permanent share id.
func (s *Store) SetPublic(ctx context.Context, id docs.DocumentID, ownerID docs.OwnerID, isPublic bool) (docs.ShareID, error) {
	var row StoredDocument
	err := s.db.WithContext(ctx).
		Where("document_id = ? AND owner_id = ?", id.String(), ownerID.String()).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", docs.ErrNotFound
	}
	if err != nil {
		s.logger.Error("share flag lookup failed",
			zap.String("document_id", id.String()),
			zap.String("owner_id", ownerID.String()),
			zap.Error(err))
		return "", fmt.Errorf("storage: set public: %w", err)
	}

	if err := s.db.WithContext(ctx).
		Model(&StoredDocument{}).
		Where("document_id = ? AND owner_id = ?", id.String(), ownerID.String()).
		Update("is_public", isPublic).Error; err != nil {
		s.logger.Error("share flag update failed",
			zap.String("document_id", id.String()),
			zap.String("owner_id", ownerID.String()),
			zap.Error(err))
		return "", fmt.Errorf("storage: set public: %w", err)
	}

	return docs.NewShareID(row.ShareID)
}

func toRemote(row StoredDocument) docs.RemoteDocument {
	return docs.RemoteDocument{
		ID:        row.DocumentID,
		OwnerID:   row.OwnerID,
		Title:     row.Title,
		Content:   row.Content,
		ShareID:   row.ShareID,
		IsPublic:  row.IsPublic,
		UpdatedAt: time.Unix(row.UpdatedAtSeconds, 0).UTC(),
	}
}
