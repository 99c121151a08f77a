package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/climb-review-api/internal/models"
)

// ErrChainClosed indicates the chain left the ACTIVE state before a submission could be counted.
var ErrChainClosed = errors.New("review chain is not accepting submissions")

const maxSubmitAttempts = 3

// ObligationSubmission carries the values written when a reviewer acts on an obligation.
type ObligationSubmission struct {
	ObligationID string
	ChainID      string
	Rating       models.Rating
	Comment      string
	SubmittedAt  time.Time
}

// ReviewChainRepository persists review chains and coordinates their counters.
type ReviewChainRepository interface {
	CreateWithObligations(ctx context.Context, chain *models.ReviewChain, obligations []models.ReviewObligation) error
	GetByID(ctx context.Context, id string) (models.ReviewChain, error)
	GetByActivityID(ctx context.Context, activityID string) (models.ReviewChain, error)
	ExistsForActivity(ctx context.Context, activityID string) (bool, error)
	ActivateDue(ctx context.Context, now time.Time) ([]models.ReviewChain, error)
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
	Submit(ctx context.Context, submission ObligationSubmission) (models.ReviewObligation, models.ReviewChain, error)
}

type reviewChainRepository struct {
	db *gorm.DB
}

// NewReviewChainRepository constructs a repository backed by GORM.
func NewReviewChainRepository(db *gorm.DB) ReviewChainRepository {
	return &reviewChainRepository{db: db}
}

func (r *reviewChainRepository) CreateWithObligations(ctx context.Context, chain *models.ReviewChain, obligations []models.ReviewObligation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(chain).Error; err != nil {
			return err
		}

		if len(obligations) == 0 {
			return nil
		}

		return tx.CreateInBatches(obligations, 100).Error
	})
}

func (r *reviewChainRepository) GetByID(ctx context.Context, id string) (models.ReviewChain, error) {
	var chain models.ReviewChain
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&chain).Error; err != nil {
		return models.ReviewChain{}, err
	}

	return chain, nil
}

func (r *reviewChainRepository) GetByActivityID(ctx context.Context, activityID string) (models.ReviewChain, error) {
	var chain models.ReviewChain
	if err := r.db.WithContext(ctx).Where("activity_id = ?", activityID).First(&chain).Error; err != nil {
		return models.ReviewChain{}, err
	}

	return chain, nil
}

func (r *reviewChainRepository) ExistsForActivity(ctx context.Context, activityID string) (bool, error) {
	var ids []string
	result := r.db.WithContext(ctx).Model(&models.ReviewChain{}).
		Where("activity_id = ?", activityID).
		Limit(1).
		Pluck("id", &ids)
	if result.Error != nil {
		return false, result.Error
	}

	return len(ids) > 0, nil
}

// ActivateDue moves every PENDING chain whose trigger time has passed to ACTIVE and returns
// only the chains this call transitioned, so overlapping sweeps never report a chain twice.
func (r *reviewChainRepository) ActivateDue(ctx context.Context, now time.Time) ([]models.ReviewChain, error) {
	var candidates []models.ReviewChain
	if err := r.db.WithContext(ctx).
		Where("status = ?", models.ChainStatusPending).
		Where("trigger_at <= ?", now).
		Order("trigger_at ASC").
		Find(&candidates).Error; err != nil {
		return nil, err
	}

	activated := make([]models.ReviewChain, 0, len(candidates))
	for _, chain := range candidates {
		update := r.db.WithContext(ctx).Model(&models.ReviewChain{}).
			Where("id = ?", chain.ID).
			Where("status = ?", models.ChainStatusPending).
			Updates(map[string]interface{}{
				"status":     models.ChainStatusActive,
				"updated_at": now,
			})
		if update.Error != nil {
			return activated, update.Error
		}
		if update.RowsAffected == 0 {
			continue
		}

		chain.Status = models.ChainStatusActive
		chain.UpdatedAt = now
		activated = append(activated, chain)
	}

	return activated, nil
}

// ExpireDue moves ACTIVE chains past their expiry to EXPIRED. The status predicate keeps a
// chain that reached COMPLETED first untouched.
func (r *reviewChainRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	update := r.db.WithContext(ctx).Model(&models.ReviewChain{}).
		Where("status = ?", models.ChainStatusActive).
		Where("expire_at <= ?", now).
		Updates(map[string]interface{}{
			"status":     models.ChainStatusExpired,
			"updated_at": now,
		})
	if update.Error != nil {
		return 0, update.Error
	}

	return update.RowsAffected, nil
}

// Submit records the obligation outcome and bumps the owning chain's counter in one
// transaction, completing the chain when the last obligation lands.
func (r *reviewChainRepository) Submit(ctx context.Context, submission ObligationSubmission) (models.ReviewObligation, models.ReviewChain, error) {
	var (
		obligation models.ReviewObligation
		chain      models.ReviewChain
		err        error
	)

	for attempt := 1; attempt <= maxSubmitAttempts; attempt++ {
		err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return r.submitTx(tx, submission, &obligation, &chain)
		})
		if err == nil || !isRetryable(err) {
			break
		}
	}

	if err != nil {
		return models.ReviewObligation{}, models.ReviewChain{}, err
	}

	return obligation, chain, nil
}

func (r *reviewChainRepository) submitTx(tx *gorm.DB, submission ObligationSubmission, obligation *models.ReviewObligation, chain *models.ReviewChain) error {
	lock := tx
	if tx.Dialector.Name() != "sqlite" {
		lock = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := lock.Where("id = ?", submission.ChainID).First(chain).Error; err != nil {
		return err
	}
	if !chain.AcceptsSubmissions() {
		return ErrChainClosed
	}

	marked := tx.Model(&models.ReviewObligation{}).
		Where("id = ?", submission.ObligationID).
		Where("chain_id = ?", submission.ChainID).
		Where("submitted = ?", false).
		Updates(map[string]interface{}{
			"rating":       submission.Rating,
			"comment":      submission.Comment,
			"submitted":    true,
			"submitted_at": submission.SubmittedAt,
			"updated_at":   submission.SubmittedAt,
		})
	if marked.Error != nil {
		return marked.Error
	}
	if marked.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	counted := tx.Model(&models.ReviewChain{}).
		Where("id = ?", submission.ChainID).
		Where("status = ?", models.ChainStatusActive).
		Where("completed_obligations < total_obligations").
		Updates(map[string]interface{}{
			"completed_obligations": gorm.Expr("completed_obligations + 1"),
			"updated_at":            submission.SubmittedAt,
		})
	if counted.Error != nil {
		return counted.Error
	}
	if counted.RowsAffected == 0 {
		return ErrChainClosed
	}

	completed := tx.Model(&models.ReviewChain{}).
		Where("id = ?", submission.ChainID).
		Where("status = ?", models.ChainStatusActive).
		Where("completed_obligations = total_obligations").
		Update("status", models.ChainStatusCompleted)
	if completed.Error != nil {
		return completed.Error
	}

	if err := tx.Where("id = ?", submission.ChainID).First(chain).Error; err != nil {
		return err
	}

	return tx.Where("id = ?", submission.ObligationID).First(obligation).Error
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure, deadlock_detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
