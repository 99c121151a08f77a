package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/climb-review-api/internal/dto"
	"github.com/noah-isme/climb-review-api/internal/models"
	"github.com/noah-isme/climb-review-api/internal/repository"
)

// ReputationService computes read-only review statistics.
type ReputationService interface {
	StatsInvalidator
	UserStats(ctx context.Context, userID string) (dto.UserReviewStatsResponse, error)
	ActivitySummary(ctx context.Context, activityID string) (dto.ActivityReviewSummaryResponse, error)
}

type reputationService struct {
	chains      repository.ReviewChainRepository
	obligations repository.ReviewObligationRepository
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
}

// NewReputationService builds the aggregator. cache may be nil to disable caching.
func NewReputationService(chains repository.ReviewChainRepository, obligations repository.ReviewObligationRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) ReputationService {
	return &reputationService{
		chains:      chains,
		obligations: obligations,
		cache:       cache,
		cacheTTL:    ttl,
		logger:      logger.With().Str("component", "reputation_service").Logger(),
	}
}

func userStatsGenerationKey(userID string) string {
	return fmt.Sprintf("reputation:user:%s:gen", userID)
}

func userStatsCacheKey(userID string, generation int64) string {
	return fmt.Sprintf("reputation:user:%s:%d", userID, generation)
}

// cacheGeneration reads the user's invalidation counter. Stats are cached under the
// generation seen before the database read, so a write racing Invalidate lands on a dead key.
func (s *reputationService) cacheGeneration(ctx context.Context, userID string) (int64, bool) {
	generation, err := s.cache.Get(ctx, userStatsGenerationKey(userID)).Int64()
	switch {
	case err == nil:
		return generation, true
	case errors.Is(err, redis.Nil):
		return 0, true
	default:
		s.logger.Warn().Err(err).Msg("failed to read reputation cache generation")
		return 0, false
	}
}

func (s *reputationService) UserStats(ctx context.Context, userID string) (dto.UserReviewStatsResponse, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return dto.UserReviewStatsResponse{}, errors.New("user id is required")
	}

	cacheKey := ""
	if s.cache != nil && s.cacheTTL > 0 {
		if generation, ok := s.cacheGeneration(ctx, userID); ok {
			cacheKey = userStatsCacheKey(userID, generation)
		}
	}

	if cacheKey != "" {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.UserReviewStatsResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				s.logger.Debug().Str("user_id", userID).Msg("reputation cache hit")
				response.CacheHit = true
				return response, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read reputation cache")
		}
	}

	received, err := s.obligations.CountReceivedByRating(ctx, userID)
	if err != nil {
		return dto.UserReviewStatsResponse{}, err
	}

	given, err := s.obligations.CountGiven(ctx, userID)
	if err != nil {
		return dto.UserReviewStatsResponse{}, err
	}

	response := buildUserStats(userID, received, given)

	if cacheKey != "" {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store reputation cache")
			}
		}
	}

	return response, nil
}

func (s *reputationService) ActivitySummary(ctx context.Context, activityID string) (dto.ActivityReviewSummaryResponse, error) {
	chain, err := s.chains.GetByActivityID(ctx, activityID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ActivityReviewSummaryResponse{}, ErrChainNotFound
		}
		return dto.ActivityReviewSummaryResponse{}, err
	}

	obligations, err := s.obligations.ListByChain(ctx, chain.ID)
	if err != nil {
		return dto.ActivityReviewSummaryResponse{}, err
	}

	return dto.ActivityReviewSummaryResponse{
		ActivityID:           chain.ActivityID,
		ChainID:              chain.ID,
		Status:               string(chain.Status),
		TotalObligations:     chain.TotalObligations,
		CompletedObligations: chain.CompletedObligations,
		CompletionRate:       percentage(chain.CompletedObligations, chain.TotalObligations),
		Obligations:          dto.NewReviewObligationResponseSlice(obligations),
	}, nil
}

func (s *reputationService) Invalidate(ctx context.Context, userIDs ...string) {
	if s.cache == nil || len(userIDs) == 0 {
		return
	}

	// generation keys outlive any stats entry written under them
	ttl := 2 * s.cacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	_, err := s.cache.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range userIDs {
			key := userStatsGenerationKey(id)
			pipe.Incr(ctx, key)
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Strs("user_ids", userIDs).Msg("failed to invalidate reputation cache")
	}
}

func buildUserStats(userID string, received []repository.RatingCount, given int64) dto.UserReviewStatsResponse {
	response := dto.UserReviewStatsResponse{UserID: userID, GivenCount: int(given)}

	for _, count := range received {
		total := int(count.Total)
		response.ReceivedCount += total
		switch count.Rating {
		case models.RatingGood:
			response.GoodCount += total
		case models.RatingBad:
			response.BadCount += total
		case models.RatingNoShow:
			response.NoShowCount += total
		case models.RatingSkip:
			response.SkipCount += total
		}
	}

	response.PositiveRate = percentage(response.GoodCount, response.ReceivedCount)
	return response
}

// percentage returns part/total on a 0-100 scale rounded to two decimals, or 0 for an empty total.
func percentage(part, total int) float64 {
	if total <= 0 {
		return 0
	}

	rate := float64(part) / float64(total) * 100
	rate = math.Max(0, math.Min(100, rate))
	return math.Round(rate*100) / 100
}
