package dto

import (
	"time"

	"github.com/noah-isme/climb-review-api/internal/models"
)

// GenerateChainRequest is sent by the activity lifecycle when an activity completes.
type GenerateChainRequest struct {
	ActivityID     string   `json:"activity_id" validate:"required,max=64"`
	ParticipantIDs []string `json:"participant_ids" validate:"dive,required,max=64"`
}

// SubmitReviewRequest carries a reviewer's outcome for one peer.
type SubmitReviewRequest struct {
	ActivityID string  `json:"activity_id" validate:"required,max=64"`
	ReviewerID string  `json:"-" validate:"required,max=64"`
	RevieweeID string  `json:"reviewee_id" validate:"required,max=64"`
	Rating     string  `json:"rating"`
	Comment    *string `json:"comment"`
}

// SweepRequest optionally pins the instant a manual sweep evaluates against.
type SweepRequest struct {
	Now *time.Time `json:"now"`
}

// SweepResponse reports how many chains each lifecycle step moved.
type SweepResponse struct {
	Activated int       `json:"activated"`
	Expired   int       `json:"expired"`
	SweptAt   time.Time `json:"swept_at"`
}

// ReviewObligationResponse is the client view of a single obligation.
type ReviewObligationResponse struct {
	ID          string     `json:"id"`
	ChainID     string     `json:"chain_id"`
	ActivityID  string     `json:"activity_id"`
	ReviewerID  string     `json:"reviewer_id"`
	RevieweeID  string     `json:"reviewee_id"`
	Rating      string     `json:"rating"`
	Comment     string     `json:"comment,omitempty"`
	Submitted   bool       `json:"submitted"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	Deadline    time.Time  `json:"deadline"`
}

// PendingObligationResponse adds the owning chain's state to an unsubmitted obligation.
type PendingObligationResponse struct {
	ReviewObligationResponse
	ChainStatus string    `json:"chain_status"`
	OpensAt     time.Time `json:"opens_at"`
}

// ReviewChainResponse describes a chain and its counters.
type ReviewChainResponse struct {
	ID                   string                     `json:"id"`
	ActivityID           string                     `json:"activity_id"`
	ParticipantSequence  []string                   `json:"participant_sequence"`
	Status               string                     `json:"status"`
	TriggerAt            time.Time                  `json:"trigger_at"`
	ExpireAt             time.Time                  `json:"expire_at"`
	TotalObligations     int                        `json:"total_obligations"`
	CompletedObligations int                        `json:"completed_obligations"`
	CreatedAt            time.Time                  `json:"created_at"`
	Obligations          []ReviewObligationResponse `json:"obligations,omitempty"`
}

// UserReviewStatsResponse aggregates a user's submitted reviews.
type UserReviewStatsResponse struct {
	UserID        string  `json:"user_id"`
	ReceivedCount int     `json:"received_count"`
	GivenCount    int     `json:"given_count"`
	GoodCount     int     `json:"good_count"`
	BadCount      int     `json:"bad_count"`
	NoShowCount   int     `json:"no_show_count"`
	SkipCount     int     `json:"skip_count"`
	PositiveRate  float64 `json:"positive_rate"`
	CacheHit      bool    `json:"cache_hit"`
}

// ActivityReviewSummaryResponse joins a chain's counters with its obligations.
type ActivityReviewSummaryResponse struct {
	ActivityID           string                     `json:"activity_id"`
	ChainID              string                     `json:"chain_id"`
	Status               string                     `json:"status"`
	TotalObligations     int                        `json:"total_obligations"`
	CompletedObligations int                        `json:"completed_obligations"`
	CompletionRate       float64                    `json:"completion_rate"`
	Obligations          []ReviewObligationResponse `json:"obligations"`
}

// NewReviewObligationResponse converts an obligation model into a DTO.
func NewReviewObligationResponse(model models.ReviewObligation) ReviewObligationResponse {
	return ReviewObligationResponse{
		ID:          model.ID,
		ChainID:     model.ChainID,
		ActivityID:  model.ActivityID,
		ReviewerID:  model.ReviewerID,
		RevieweeID:  model.RevieweeID,
		Rating:      string(model.Rating),
		Comment:     model.Comment,
		Submitted:   model.Submitted,
		SubmittedAt: model.SubmittedAt,
		Deadline:    model.Deadline,
	}
}

// NewReviewObligationResponseSlice converts obligation models into DTOs.
func NewReviewObligationResponseSlice(items []models.ReviewObligation) []ReviewObligationResponse {
	responses := make([]ReviewObligationResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewReviewObligationResponse(item))
	}

	return responses
}

// NewReviewChainResponse converts a chain model into a DTO.
func NewReviewChainResponse(model models.ReviewChain) ReviewChainResponse {
	response := ReviewChainResponse{
		ID:                   model.ID,
		ActivityID:           model.ActivityID,
		ParticipantSequence:  append([]string(nil), model.ParticipantSequence...),
		Status:               string(model.Status),
		TriggerAt:            model.TriggerAt,
		ExpireAt:             model.ExpireAt,
		TotalObligations:     model.TotalObligations,
		CompletedObligations: model.CompletedObligations,
		CreatedAt:            model.CreatedAt,
	}

	if len(model.Obligations) > 0 {
		response.Obligations = NewReviewObligationResponseSlice(model.Obligations)
	}

	return response
}
