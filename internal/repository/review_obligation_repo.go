package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/climb-review-api/internal/models"
)

// PendingObligation is an unsubmitted obligation joined with its chain's lifecycle state.
type PendingObligation struct {
	models.ReviewObligation
	ChainStatus models.ChainStatus
	TriggerAt   time.Time
}

// RatingCount is a grouped tally of submitted ratings.
type RatingCount struct {
	Rating models.Rating
	Total  int64
}

// ReviewObligationRepository defines read operations over review obligations.
type ReviewObligationRepository interface {
	FindPending(ctx context.Context, activityID, reviewerID, revieweeID string) (models.ReviewObligation, error)
	ListPendingByReviewer(ctx context.Context, reviewerID string, openOnly bool) ([]PendingObligation, error)
	ListByChain(ctx context.Context, chainID string) ([]models.ReviewObligation, error)
	CountReceivedByRating(ctx context.Context, revieweeID string) ([]RatingCount, error)
	CountGiven(ctx context.Context, reviewerID string) (int64, error)
}

type reviewObligationRepository struct {
	db *gorm.DB
}

// NewReviewObligationRepository constructs a repository backed by GORM.
func NewReviewObligationRepository(db *gorm.DB) ReviewObligationRepository {
	return &reviewObligationRepository{db: db}
}

func (r *reviewObligationRepository) FindPending(ctx context.Context, activityID, reviewerID, revieweeID string) (models.ReviewObligation, error) {
	var obligation models.ReviewObligation
	if err := r.db.WithContext(ctx).
		Where("activity_id = ?", activityID).
		Where("reviewer_id = ?", reviewerID).
		Where("reviewee_id = ?", revieweeID).
		Where("submitted = ?", false).
		Order("created_at ASC").
		First(&obligation).Error; err != nil {
		return models.ReviewObligation{}, err
	}

	return obligation, nil
}

// ListPendingByReviewer returns every unsubmitted obligation owed by the reviewer, including
// those on expired chains. openOnly restricts the result to PENDING and ACTIVE chains.
func (r *reviewObligationRepository) ListPendingByReviewer(ctx context.Context, reviewerID string, openOnly bool) ([]PendingObligation, error) {
	query := r.db.WithContext(ctx).
		Table("review_obligations").
		Select("review_obligations.*, review_chains.status AS chain_status, review_chains.trigger_at AS trigger_at").
		Joins("JOIN review_chains ON review_chains.id = review_obligations.chain_id").
		Where("review_obligations.reviewer_id = ?", reviewerID).
		Where("review_obligations.submitted = ?", false)
	if openOnly {
		query = query.Where("review_chains.status IN ?", []models.ChainStatus{models.ChainStatusPending, models.ChainStatusActive})
	}

	var rows []PendingObligation
	if err := query.Order("review_obligations.deadline ASC").Scan(&rows).Error; err != nil {
		return nil, err
	}

	return rows, nil
}

func (r *reviewObligationRepository) ListByChain(ctx context.Context, chainID string) ([]models.ReviewObligation, error) {
	var obligations []models.ReviewObligation
	if err := r.db.WithContext(ctx).
		Where("chain_id = ?", chainID).
		Order("created_at ASC").
		Order("reviewer_id ASC").
		Find(&obligations).Error; err != nil {
		return nil, err
	}

	return obligations, nil
}

func (r *reviewObligationRepository) CountReceivedByRating(ctx context.Context, revieweeID string) ([]RatingCount, error) {
	var counts []RatingCount
	if err := r.db.WithContext(ctx).
		Model(&models.ReviewObligation{}).
		Select("rating, COUNT(*) AS total").
		Where("reviewee_id = ?", revieweeID).
		Where("submitted = ?", true).
		Group("rating").
		Scan(&counts).Error; err != nil {
		return nil, err
	}

	return counts, nil
}

func (r *reviewObligationRepository) CountGiven(ctx context.Context, reviewerID string) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.ReviewObligation{}).
		Where("reviewer_id = ?", reviewerID).
		Where("submitted = ?", true).
		Count(&total).Error; err != nil {
		return 0, err
	}

	return total, nil
}
