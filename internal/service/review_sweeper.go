package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/climb-review-api/internal/dto"
	"github.com/noah-isme/climb-review-api/internal/models"
	"github.com/noah-isme/climb-review-api/internal/observability"
	"github.com/noah-isme/climb-review-api/internal/repository"
)

// ChainLifecycleSweeper advances chains through their time-driven states.
type ChainLifecycleSweeper interface {
	Sweep(ctx context.Context, now time.Time) (dto.SweepResponse, error)
	Start(ctx context.Context, interval time.Duration)
}

type chainLifecycleSweeper struct {
	chains      repository.ReviewChainRepository
	obligations repository.ReviewObligationRepository
	notifier    ReviewDueNotifier
	workers     int
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewChainLifecycleSweeper constructs the sweeper. notifier may be nil to skip review-due notices.
func NewChainLifecycleSweeper(chains repository.ReviewChainRepository, obligations repository.ReviewObligationRepository, notifier ReviewDueNotifier, workers int, logger zerolog.Logger) ChainLifecycleSweeper {
	if workers <= 0 {
		workers = 1
	}

	return &chainLifecycleSweeper{
		chains:      chains,
		obligations: obligations,
		notifier:    notifier,
		workers:     workers,
		logger:      logger.With().Str("component", "chain_lifecycle_sweeper").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/climb-review-api/internal/service/sweeper"),
		now:         time.Now,
	}
}

// Sweep activates chains whose trigger time has passed, then expires active chains whose
// window has closed. Re-running with the same instant is a no-op.
func (s *chainLifecycleSweeper) Sweep(ctx context.Context, now time.Time) (dto.SweepResponse, error) {
	now = now.UTC()
	ctx, span := s.tracer.Start(ctx, "review_chain.sweep", trace.WithAttributes(attribute.String("sweep.now", now.Format(time.RFC3339))))
	defer span.End()

	activated, err := s.chains.ActivateDue(ctx, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "activate_failed")
		return dto.SweepResponse{}, err
	}
	observability.SweepTransitions().WithLabelValues("activated").Add(float64(len(activated)))

	expired, err := s.chains.ExpireDue(ctx, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "expire_failed")
		return dto.SweepResponse{Activated: len(activated), SweptAt: now}, err
	}
	observability.SweepTransitions().WithLabelValues("expired").Add(float64(expired))

	s.notifyActivated(ctx, activated, now)

	span.SetAttributes(
		attribute.Int("sweep.activated", len(activated)),
		attribute.Int64("sweep.expired", expired),
	)

	if len(activated) > 0 || expired > 0 {
		observability.Correlate(ctx, s.logger).Info().Int("activated", len(activated)).Int64("expired", expired).Time("now", now).Msg("review chains swept")
	}

	return dto.SweepResponse{Activated: len(activated), Expired: int(expired), SweptAt: now}, nil
}

// Start sweeps once immediately, then on every tick until ctx is cancelled. A non-positive
// interval disables the loop.
func (s *chainLifecycleSweeper) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		s.logger.Info().Msg("background sweeper disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", interval).Msg("background sweeper started")
	s.sweepNow(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("background sweeper stopped")
			return
		case <-ticker.C:
			s.sweepNow(ctx)
		}
	}
}

func (s *chainLifecycleSweeper) sweepNow(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.Sweep(ctx, s.now()); err != nil {
		s.logger.Error().Err(err).Msg("review chain sweep failed")
	}
}

// notifyActivated sends review-due notices for freshly activated chains. Failures are
// counted and logged only; the transitions are already committed.
func (s *chainLifecycleSweeper) notifyActivated(ctx context.Context, chains []models.ReviewChain, now time.Time) {
	if s.notifier == nil {
		return
	}

	var group errgroup.Group
	group.SetLimit(s.workers)

	for _, chain := range chains {
		if chain.LifecycleStatus(now) != models.ChainStatusActive {
			continue
		}

		obligations, err := s.obligations.ListByChain(ctx, chain.ID)
		if err != nil {
			observability.NotificationsFailed().Inc()
			s.logger.Warn().Err(err).Str("chain_id", chain.ID).Msg("failed to load obligations for review notices")
			continue
		}

		for _, obligation := range obligations {
			if obligation.Submitted || obligation.IsPastDeadline(now) {
				continue
			}
			obligation := obligation
			group.Go(func() error {
				if err := s.notifier.NotifyReviewDue(ctx, obligation); err != nil {
					observability.NotificationsFailed().Inc()
					s.logger.Warn().Err(err).
						Str("chain_id", obligation.ChainID).
						Str("reviewer_id", obligation.ReviewerID).
						Msg("failed to send review due notice")
				}
				return nil
			})
		}
	}

	_ = group.Wait()
}
