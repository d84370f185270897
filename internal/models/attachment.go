package models

import "time"

// Attachment stores file metadata for a lifecycle entity. File bytes live on
// the storage backend; only the reference is persisted here.
type Attachment struct {
	ID          string     `db:"id" json:"id"`
	EntityType  EntityType `db:"entity_type" json:"entity_type"`
	EntityID    string     `db:"entity_id" json:"entity_id"`
	FileName    string     `db:"file_name" json:"file_name"`
	ContentType string     `db:"content_type" json:"content_type"`
	SizeBytes   int64      `db:"size_bytes" json:"size_bytes"`
	StoragePath string     `db:"storage_path" json:"-"`
	UploadedBy  string     `db:"uploaded_by" json:"uploaded_by"`
	UploadedAt  time.Time  `db:"uploaded_at" json:"uploaded_at"`
}
