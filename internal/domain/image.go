package domain

import "time"

// ImageRecord is one received photo, kept as an append-only audit entry.
// It is never read back into dialogue decisions.
type ImageRecord struct {
	ID             string    `db:"id" json:"id"`
	ChatID         string    `db:"chat_id" json:"chat_id"`
	FileRef        string    `db:"file_ref" json:"file_ref"`
	ProviderFileID string    `db:"provider_file_id" json:"provider_file_id,omitempty"`
	Caption        string    `db:"caption" json:"caption,omitempty"`
	Diagnosis      string    `db:"diagnosis" json:"diagnosis,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
