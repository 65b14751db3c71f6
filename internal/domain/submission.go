package domain

import "time"

// SubmissionState is the moderation state of a Submission.
type SubmissionState string

const (
	SubmissionPending  SubmissionState = "pending"
	SubmissionApproved SubmissionState = "approved"
	SubmissionRejected SubmissionState = "rejected"
)

// IsTerminal reports whether no further transition is allowed.
func (s SubmissionState) IsTerminal() bool {
	return s == SubmissionApproved || s == SubmissionRejected
}

// Submission is a user contributed photograph awaiting moderation.
type Submission struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	ContributorID  uint            `gorm:"not null;index:idx_submissions_contributor" json:"contributor_id"`
	ImageReference string          `gorm:"type:varchar(2083);not null" json:"image_reference"`
	TypeID         uint            `gorm:"not null" json:"type_id"`
	Tags           StringArray     `gorm:"type:text" json:"tags"`
	State          SubmissionState `gorm:"type:varchar(16);not null;default:pending;index:idx_submissions_state" json:"state"`
	Feedback       string          `gorm:"type:varchar(255)" json:"feedback,omitempty"`
	ReviewerID     *uint           `json:"reviewer_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	ReviewedAt     *time.Time      `json:"reviewed_at,omitempty"`
}

// TableName returns the database table name for Submission.
func (Submission) TableName() string {
	return "submissions"
}

// Review carries the moderator's decision for a transition out of pending.
type Review struct {
	State      SubmissionState
	Feedback   string
	ReviewerID uint
	ReviewedAt time.Time
}
