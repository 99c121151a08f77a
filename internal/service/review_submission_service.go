package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/climb-review-api/internal/dto"
	"github.com/noah-isme/climb-review-api/internal/models"
	"github.com/noah-isme/climb-review-api/internal/observability"
	"github.com/noah-isme/climb-review-api/internal/repository"
)

// StatsInvalidator drops cached reputation figures once new reviews land.
type StatsInvalidator interface {
	Invalidate(ctx context.Context, userIDs ...string)
}

// ReviewSubmissionService records reviewer outcomes and lists what a user still owes.
type ReviewSubmissionService interface {
	Submit(ctx context.Context, payload dto.SubmitReviewRequest) (dto.ReviewObligationResponse, error)
	ListPending(ctx context.Context, userID string, openOnly bool) ([]dto.PendingObligationResponse, error)
}

type reviewSubmissionService struct {
	chains           repository.ReviewChainRepository
	obligations      repository.ReviewObligationRepository
	stats            StatsInvalidator
	validator        *validator.Validate
	commentMaxLength int
	sanitizer        *bluemonday.Policy
	logger           zerolog.Logger
	tracer           trace.Tracer
	now              func() time.Time
}

// NewReviewSubmissionService constructs the submission workflow. stats may be nil.
func NewReviewSubmissionService(chains repository.ReviewChainRepository, obligations repository.ReviewObligationRepository, stats StatsInvalidator, validate *validator.Validate, commentMaxLength int, logger zerolog.Logger) ReviewSubmissionService {
	return &reviewSubmissionService{
		chains:           chains,
		obligations:      obligations,
		stats:            stats,
		validator:        validate,
		commentMaxLength: commentMaxLength,
		sanitizer:        bluemonday.StrictPolicy(),
		logger:           logger.With().Str("component", "review_submission_service").Logger(),
		tracer:           otel.Tracer("github.com/noah-isme/climb-review-api/internal/service/review_submission"),
		now:              time.Now,
	}
}

func (s *reviewSubmissionService) Submit(ctx context.Context, payload dto.SubmitReviewRequest) (dto.ReviewObligationResponse, error) {
	ctx, span := s.tracer.Start(ctx, "review.submit", trace.WithAttributes(
		attribute.String("review.activity_id", payload.ActivityID),
		attribute.String("review.reviewer_id", payload.ReviewerID),
		attribute.String("review.reviewee_id", payload.RevieweeID),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.ReviewObligationResponse{}, err
	}

	obligation, err := s.obligations.FindPending(ctx, payload.ActivityID, payload.ReviewerID, payload.RevieweeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "obligation_not_found")
			return dto.ReviewObligationResponse{}, ErrObligationNotFound
		}
		span.RecordError(err)
		return dto.ReviewObligationResponse{}, err
	}

	rating, ok := models.ParseRating(payload.Rating)
	if !ok {
		span.SetStatus(codes.Error, "invalid_rating")
		return dto.ReviewObligationResponse{}, ErrInvalidRating
	}

	comment := ""
	if payload.Comment != nil {
		comment = strings.TrimSpace(*payload.Comment)
		if utf8.RuneCountInString(comment) > s.commentMaxLength {
			span.SetStatus(codes.Error, "comment_too_long")
			return dto.ReviewObligationResponse{}, ErrCommentTooLong
		}
		comment = strings.TrimSpace(s.sanitizer.Sanitize(comment))
	}

	chain, err := s.chains.GetByID(ctx, obligation.ChainID)
	if err != nil {
		span.RecordError(err)
		return dto.ReviewObligationResponse{}, err
	}

	now := s.now().UTC()
	if err := checkSubmissionWindow(chain, now); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return dto.ReviewObligationResponse{}, err
	}

	updated, stored, err := s.chains.Submit(ctx, repository.ObligationSubmission{
		ObligationID: obligation.ID,
		ChainID:      chain.ID,
		Rating:       rating,
		Comment:      comment,
		SubmittedAt:  now,
	})
	if err != nil {
		mapped := s.mapSubmitError(ctx, chain.ID, err)
		span.RecordError(mapped)
		span.SetStatus(codes.Error, "submit_failed")
		return dto.ReviewObligationResponse{}, mapped
	}

	observability.ReviewSubmissions().WithLabelValues(string(rating)).Inc()
	if s.stats != nil {
		s.stats.Invalidate(ctx, updated.ReviewerID, updated.RevieweeID)
	}

	logger := observability.Correlate(ctx, s.logger)
	logger.Info().
		Str("obligation_id", updated.ID).
		Str("chain_id", stored.ID).
		Str("rating", string(rating)).
		Int("completed", stored.CompletedObligations).
		Int("total", stored.TotalObligations).
		Msg("review submitted")

	if stored.IsFullyReviewed() {
		logger.Info().Str("chain_id", stored.ID).Str("activity_id", stored.ActivityID).Msg("review chain completed")
	}

	return dto.NewReviewObligationResponse(updated), nil
}

// ListPending returns the user's unsubmitted obligations. Rows on EXPIRED chains are kept
// unless openOnly is set so callers can show them as missed.
func (s *reviewSubmissionService) ListPending(ctx context.Context, userID string, openOnly bool) ([]dto.PendingObligationResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("user id is required")
	}

	rows, err := s.obligations.ListPendingByReviewer(ctx, userID, openOnly)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.PendingObligationResponse, 0, len(rows))
	for _, row := range rows {
		responses = append(responses, dto.PendingObligationResponse{
			ReviewObligationResponse: dto.NewReviewObligationResponse(row.ReviewObligation),
			ChainStatus:              string(row.ChainStatus),
			OpensAt:                  row.TriggerAt,
		})
	}

	return responses, nil
}

// mapSubmitError translates races lost inside the repository transaction into caller errors.
func (s *reviewSubmissionService) mapSubmitError(ctx context.Context, chainID string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrObligationNotFound
	case errors.Is(err, repository.ErrChainClosed):
		chain, lookupErr := s.chains.GetByID(ctx, chainID)
		if lookupErr != nil {
			return lookupErr
		}
		switch chain.Status {
		case models.ChainStatusExpired:
			return ErrChainExpired
		case models.ChainStatusPending:
			return ErrChainNotYetActive
		default:
			return ErrObligationNotFound
		}
	default:
		return err
	}
}

func checkSubmissionWindow(chain models.ReviewChain, now time.Time) error {
	switch chain.Status {
	case models.ChainStatusPending:
		return ErrChainNotYetActive
	case models.ChainStatusCompleted:
		return ErrObligationNotFound
	}

	// the sweeper may lag behind expire_at; the deadline still applies
	if chain.LifecycleStatus(now) == models.ChainStatusExpired {
		return ErrChainExpired
	}

	return nil
}
