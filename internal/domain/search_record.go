package domain

import "time"

// SearchMethod discriminates audit records.
type SearchMethod string

const (
	SearchMethodImage SearchMethod = "image"
	SearchMethodName  SearchMethod = "name"
	SearchMethodTag   SearchMethod = "tag"
)

// SearchRecord is one audited catalog query.
type SearchRecord struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	RequesterID uint         `gorm:"not null;index:idx_search_history_requester" json:"requester_id"`
	Method      SearchMethod `gorm:"type:varchar(16);not null" json:"method"`
	Content     string       `gorm:"type:text;not null" json:"content"`
	SearchedAt  time.Time    `gorm:"not null" json:"searched_at"`
}

// TableName returns the database table name for SearchRecord.
func (SearchRecord) TableName() string {
	return "search_history"
}
