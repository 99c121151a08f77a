package models

import (
	"time"

	"gorm.io/datatypes"
)

// ChainStatus enumerates the lifecycle states of a review chain.
type ChainStatus string

const (
	// ChainStatusPending is the initial state, before the grace period has elapsed.
	ChainStatusPending ChainStatus = "PENDING"
	// ChainStatusActive accepts submissions until the review window closes.
	ChainStatusActive ChainStatus = "ACTIVE"
	// ChainStatusCompleted is terminal: every obligation was submitted in time.
	ChainStatusCompleted ChainStatus = "COMPLETED"
	// ChainStatusExpired is terminal: the window closed with obligations outstanding.
	ChainStatusExpired ChainStatus = "EXPIRED"
)

// ReviewChain is the circular peer-review assignment generated for one completed activity.
type ReviewChain struct {
	ID                   string                      `gorm:"primaryKey;size:36" json:"id"`
	ActivityID           string                      `gorm:"size:64;not null;uniqueIndex" json:"activity_id"`
	ParticipantSequence  datatypes.JSONSlice[string] `json:"participant_sequence"`
	Status               ChainStatus                 `gorm:"size:16;not null;index:idx_review_chains_status_trigger,priority:1;index:idx_review_chains_status_expire,priority:1" json:"status"`
	TriggerAt            time.Time                   `gorm:"not null;index:idx_review_chains_status_trigger,priority:2" json:"trigger_at"`
	ExpireAt             time.Time                   `gorm:"not null;index:idx_review_chains_status_expire,priority:2" json:"expire_at"`
	TotalObligations     int                         `gorm:"not null" json:"total_obligations"`
	CompletedObligations int                         `gorm:"not null;default:0" json:"completed_obligations"`
	CreatedAt            time.Time                   `json:"created_at"`
	UpdatedAt            time.Time                   `json:"updated_at"`
	Obligations          []ReviewObligation          `gorm:"foreignKey:ChainID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"obligations,omitempty"`
}

// LifecycleStatus computes the status the sweeper should move the chain to at now.
// Only the time-driven edges are considered; completion is decided by the submission path.
func (c ReviewChain) LifecycleStatus(now time.Time) ChainStatus {
	switch c.Status {
	case ChainStatusPending:
		if !now.Before(c.TriggerAt) {
			return ChainStatusActive
		}
	case ChainStatusActive:
		if !now.Before(c.ExpireAt) {
			return ChainStatusExpired
		}
	}
	return c.Status
}

// AcceptsSubmissions reports whether the chain is open for reviews.
func (c ReviewChain) AcceptsSubmissions() bool {
	return c.Status == ChainStatusActive
}

// IsFullyReviewed reports whether every obligation has been submitted.
func (c ReviewChain) IsFullyReviewed() bool {
	return c.TotalObligations > 0 && c.CompletedObligations >= c.TotalObligations
}
