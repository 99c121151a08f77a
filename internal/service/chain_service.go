package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
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

// ChainTiming holds the fixed offsets applied to every generated chain.
type ChainTiming struct {
	GracePeriod  time.Duration
	ReviewWindow time.Duration
}

// DefaultChainTiming returns the two hour grace period and 48 hour review window.
func DefaultChainTiming() ChainTiming {
	return ChainTiming{GracePeriod: 2 * time.Hour, ReviewWindow: 48 * time.Hour}
}

// ChainGenerator builds a review chain for a completed activity.
type ChainGenerator interface {
	Generate(ctx context.Context, payload dto.GenerateChainRequest) (dto.ReviewChainResponse, error)
}

// ChainService exposes chain generation alongside chain lookups.
type ChainService interface {
	ChainGenerator
	Get(ctx context.Context, id string) (dto.ReviewChainResponse, error)
	GetByActivity(ctx context.Context, activityID string) (dto.ReviewChainResponse, error)
}

type chainService struct {
	chains      repository.ReviewChainRepository
	obligations repository.ReviewObligationRepository
	validator   *validator.Validate
	timing      ChainTiming
	logger      zerolog.Logger
	tracer      trace.Tracer
	shuffle     ShuffleFunc
	now         func() time.Time
}

// NewChainService constructs the chain generator and reader.
func NewChainService(chains repository.ReviewChainRepository, obligations repository.ReviewObligationRepository, validate *validator.Validate, timing ChainTiming, logger zerolog.Logger) ChainService {
	return &chainService{
		chains:      chains,
		obligations: obligations,
		validator:   validate,
		timing:      timing,
		logger:      logger.With().Str("component", "chain_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/climb-review-api/internal/service/chain"),
		shuffle:     rand.Shuffle,
		now:         time.Now,
	}
}

func (s *chainService) Generate(ctx context.Context, payload dto.GenerateChainRequest) (dto.ReviewChainResponse, error) {
	ctx, span := s.tracer.Start(ctx, "review_chain.generate", trace.WithAttributes(
		attribute.String("review.activity_id", payload.ActivityID),
		attribute.Int("review.participants", len(payload.ParticipantIDs)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.ReviewChainResponse{}, err
	}

	sequence, pairs, err := AssignCircular(payload.ParticipantIDs, s.shuffle)
	if err != nil {
		span.SetStatus(codes.Error, "insufficient_participants")
		return dto.ReviewChainResponse{}, err
	}

	exists, err := s.chains.ExistsForActivity(ctx, payload.ActivityID)
	if err != nil {
		span.RecordError(err)
		return dto.ReviewChainResponse{}, err
	}
	if exists {
		span.SetStatus(codes.Error, "duplicate_chain")
		return dto.ReviewChainResponse{}, ErrDuplicateChain
	}

	now := s.now().UTC()
	triggerAt := now.Add(s.timing.GracePeriod)
	chain := models.ReviewChain{
		ID:                  uuid.NewString(),
		ActivityID:          payload.ActivityID,
		ParticipantSequence: sequence,
		Status:              models.ChainStatusPending,
		TriggerAt:           triggerAt,
		ExpireAt:            triggerAt.Add(s.timing.ReviewWindow),
		TotalObligations:    len(pairs),
	}

	obligations := make([]models.ReviewObligation, 0, len(pairs))
	for _, pair := range pairs {
		obligations = append(obligations, models.ReviewObligation{
			ID:         uuid.NewString(),
			ChainID:    chain.ID,
			ActivityID: chain.ActivityID,
			ReviewerID: pair.ReviewerID,
			RevieweeID: pair.RevieweeID,
			Rating:     models.RatingSkip,
			Deadline:   chain.ExpireAt,
		})
	}

	if err := s.chains.CreateWithObligations(ctx, &chain, obligations); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			span.SetStatus(codes.Error, "duplicate_chain")
			return dto.ReviewChainResponse{}, ErrDuplicateChain
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "chain_create_failed")
		return dto.ReviewChainResponse{}, err
	}

	observability.ChainsGenerated().Inc()
	observability.Correlate(ctx, s.logger).Info().
		Str("chain_id", chain.ID).
		Str("activity_id", chain.ActivityID).
		Int("obligations", chain.TotalObligations).
		Time("trigger_at", chain.TriggerAt).
		Msg("review chain generated")

	chain.Obligations = obligations
	return dto.NewReviewChainResponse(chain), nil
}

func (s *chainService) Get(ctx context.Context, id string) (dto.ReviewChainResponse, error) {
	chain, err := s.chains.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ReviewChainResponse{}, ErrChainNotFound
		}
		return dto.ReviewChainResponse{}, err
	}

	return s.withObligations(ctx, chain)
}

func (s *chainService) GetByActivity(ctx context.Context, activityID string) (dto.ReviewChainResponse, error) {
	chain, err := s.chains.GetByActivityID(ctx, activityID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ReviewChainResponse{}, ErrChainNotFound
		}
		return dto.ReviewChainResponse{}, err
	}

	return s.withObligations(ctx, chain)
}

func (s *chainService) withObligations(ctx context.Context, chain models.ReviewChain) (dto.ReviewChainResponse, error) {
	obligations, err := s.obligations.ListByChain(ctx, chain.ID)
	if err != nil {
		return dto.ReviewChainResponse{}, err
	}

	chain.Obligations = obligations
	return dto.NewReviewChainResponse(chain), nil
}
