package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/climb-review-api/internal/middleware"
	"github.com/noah-isme/climb-review-api/internal/models"
	"github.com/noah-isme/climb-review-api/internal/observability"
	"github.com/noah-isme/climb-review-api/internal/service"
	"github.com/noah-isme/climb-review-api/internal/utils"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func userIDFromContext(c *fiber.Ctx) string {
	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(string); ok {
			return strings.TrimSpace(id)
		}
	}
	return ""
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return observability.WithCorrelationID(ctx, middleware.GetCorrelationID(c))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func validationDetails(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}

	details := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		details[fieldErr.Field()] = fieldErr.Tag()
	}
	return details
}

// sendReviewError maps review domain errors onto HTTP statuses.
func sendReviewError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	switch {
	case errors.Is(err, service.ErrChainNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrObligationNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidRating):
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), fiber.Map{"allowed": models.Ratings()})
	case errors.Is(err, service.ErrInsufficientParticipants),
		errors.Is(err, service.ErrCommentTooLong):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrDuplicateChain):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrChainExpired):
		return utils.SendError(c, fiber.StatusGone, err.Error())
	case errors.Is(err, service.ErrChainNotYetActive):
		return utils.SendError(c, fiber.StatusTooEarly, err.Error())
	}

	if details := validationDetails(err); details != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", details)
	}

	requestLogger(logger, c).Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
