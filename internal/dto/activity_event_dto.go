package dto

import "time"

// ActivityCompletedEvent is published by the activity service when an activity ends.
type ActivityCompletedEvent struct {
	ActivityID     string     `json:"activity_id" validate:"required,max=64"`
	ParticipantIDs []string   `json:"participant_ids" validate:"dive,required,max=64"`
	CompletedAt    *time.Time `json:"completed_at"`
}
