package models

import "time"

// ReviewObligation is a single directed "reviewer owes a rating to reviewee" record.
type ReviewObligation struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	ChainID     string     `gorm:"size:36;not null;index" json:"chain_id"`
	ActivityID  string     `gorm:"size:64;not null;index:idx_review_obligations_lookup,priority:1" json:"activity_id"`
	ReviewerID  string     `gorm:"size:64;not null;index:idx_review_obligations_lookup,priority:2;index:idx_review_obligations_reviewer" json:"reviewer_id"`
	RevieweeID  string     `gorm:"size:64;not null;index:idx_review_obligations_lookup,priority:3;index:idx_review_obligations_reviewee" json:"reviewee_id"`
	Rating      Rating     `gorm:"size:16;not null;default:SKIP" json:"rating"`
	Comment     string     `gorm:"type:text" json:"comment"`
	Submitted   bool       `gorm:"not null;default:false" json:"submitted"`
	SubmittedAt *time.Time `json:"submitted_at"`
	Deadline    time.Time  `gorm:"not null" json:"deadline"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsPastDeadline reports whether the obligation can no longer be submitted at now.
func (o ReviewObligation) IsPastDeadline(now time.Time) bool {
	return !now.Before(o.Deadline)
}
