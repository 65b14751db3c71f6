package domain

import "time"

// CatalogEntry is an approved, searchable photograph. It is created only by
// approving a Submission and never modified afterwards.
type CatalogEntry struct {
	ID             uint        `gorm:"primaryKey" json:"id"`
	TypeID         uint        `gorm:"not null;index:idx_catalog_entries_type" json:"type_id"`
	ImageReference string      `gorm:"type:varchar(2083);not null" json:"image_reference"`
	Tags           StringArray `gorm:"type:text" json:"tags"`
	ContributorID  uint        `gorm:"not null;index:idx_catalog_entries_contributor" json:"contributor_id"`
	SubmissionID   uint        `gorm:"not null;uniqueIndex:idx_catalog_entries_submission" json:"submission_id"`
	CreatedAt      time.Time   `json:"created_at"`
}

// TableName returns the database table name for CatalogEntry.
func (CatalogEntry) TableName() string {
	return "catalog_entries"
}

// CatalogMatch is a catalog entry hydrated with its taxonomy row.
// Distance is set only for image queries.
type CatalogMatch struct {
	Entry    CatalogEntry `json:"entry"`
	FishType FishType     `json:"fish_type"`
	ImageURL string       `json:"image_url"`
	Distance *float64     `json:"distance,omitempty"`
}
