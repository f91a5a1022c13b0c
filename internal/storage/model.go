package storage

// StoredDocument is the persisted document row. The share id is assigned once
// at insert and never reassigned; is_public alone gates share-id reads.
type StoredDocument struct {
	DocumentID       string `gorm:"column:document_id;primaryKey;size:190;not null"`
	OwnerID          string `gorm:"column:owner_id;size:190;not null;index:idx_documents_owner_updated,priority:1"`
	Title            string `gorm:"column:title;size:512;not null"`
	Content          string `gorm:"column:content;type:text;not null"`
	ShareID          string `gorm:"column:share_id;size:190;not null;uniqueIndex"`
	IsPublic         bool   `gorm:"column:is_public;not null;default:false"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null;index:idx_documents_owner_updated,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (StoredDocument) TableName() string {
	return "documents"
}
