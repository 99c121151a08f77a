package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/climb-review-api/internal/dto"
	"github.com/noah-isme/climb-review-api/internal/observability"
)

const activityCompletedQueue = "climb-review-chains"

const activityCompletedSchema = `{
	"type": "object",
	"required": ["activity_id", "participant_ids"],
	"properties": {
		"activity_id": {"type": "string", "minLength": 1, "maxLength": 64},
		"participant_ids": {
			"type": "array",
			"items": {"type": "string", "minLength": 1, "maxLength": 64}
		},
		"completed_at": {"type": ["string", "null"]}
	}
}`

// ErrInvalidActivityEvent indicates an activity completion payload failed schema validation.
var ErrInvalidActivityEvent = errors.New("invalid activity completed event")

// ActivityEventConsumer turns activity completion events into review chains.
type ActivityEventConsumer interface {
	Handle(ctx context.Context, payload []byte) (dto.ReviewChainResponse, error)
	Start(ctx context.Context) error
}

type activityEventConsumer struct {
	generator ChainGenerator
	nats      *nats.Conn
	subject   string
	schema    *jsonschema.Schema
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewActivityEventConsumer builds a consumer. natsConn may be nil when only Handle is used.
func NewActivityEventConsumer(generator ChainGenerator, natsConn *nats.Conn, subject string, validate *validator.Validate, logger zerolog.Logger) (ActivityEventConsumer, error) {
	schema, err := jsonschema.CompileString("activity_completed.schema.json", activityCompletedSchema)
	if err != nil {
		return nil, fmt.Errorf("compile activity event schema: %w", err)
	}

	return &activityEventConsumer{
		generator: generator,
		nats:      natsConn,
		subject:   subject,
		schema:    schema,
		validator: validate,
		logger:    logger.With().Str("component", "activity_event_consumer").Logger(),
	}, nil
}

func (c *activityEventConsumer) Handle(ctx context.Context, payload []byte) (dto.ReviewChainResponse, error) {
	var document interface{}
	if err := json.Unmarshal(payload, &document); err != nil {
		return dto.ReviewChainResponse{}, fmt.Errorf("%w: %v", ErrInvalidActivityEvent, err)
	}
	if err := c.schema.Validate(document); err != nil {
		return dto.ReviewChainResponse{}, fmt.Errorf("%w: %v", ErrInvalidActivityEvent, err)
	}

	var event dto.ActivityCompletedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return dto.ReviewChainResponse{}, fmt.Errorf("%w: %v", ErrInvalidActivityEvent, err)
	}
	if err := c.validator.Struct(event); err != nil {
		return dto.ReviewChainResponse{}, fmt.Errorf("%w: %v", ErrInvalidActivityEvent, err)
	}

	return c.generator.Generate(ctx, dto.GenerateChainRequest{
		ActivityID:     event.ActivityID,
		ParticipantIDs: event.ParticipantIDs,
	})
}

// Start joins the queue group on the activity subject. Generation failures never propagate
// back to the publisher; activity completion must not depend on review chains.
func (c *activityEventConsumer) Start(ctx context.Context) error {
	if c.nats == nil || c.subject == "" {
		return errors.New("nats connection and subject are required")
	}

	sub, err := c.nats.QueueSubscribe(c.subject, activityCompletedQueue, func(msg *nats.Msg) {
		msgCtx := ctx
		if msg.Header != nil {
			msgCtx = observability.WithCorrelationID(ctx, msg.Header.Get(observability.CorrelationHeader))
		}
		logger := observability.Correlate(msgCtx, c.logger)

		chain, err := c.Handle(msgCtx, msg.Data)
		if err != nil {
			reason := rejectionReason(err)
			observability.ActivityEventsRejected().WithLabelValues(reason).Inc()
			logger.Warn().Err(err).Str("reason", reason).Msg("activity event did not produce a review chain")
			return
		}
		logger.Debug().Str("chain_id", chain.ID).Str("activity_id", chain.ActivityID).Msg("activity event consumed")
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", c.subject, err)
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			c.logger.Warn().Err(err).Msg("failed to drain activity event subscription")
		}
	}()

	return nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidActivityEvent):
		return "invalid_payload"
	case errors.Is(err, ErrInsufficientParticipants):
		return "insufficient_participants"
	case errors.Is(err, ErrDuplicateChain):
		return "duplicate_chain"
	default:
		return "error"
	}
}
