package handler

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/climb-review-api/internal/dto"
	"github.com/noah-isme/climb-review-api/internal/service"
	"github.com/noah-isme/climb-review-api/internal/utils"
)

// ChainHandler serves the internal chain lifecycle endpoints used by the activity service and operators.
type ChainHandler struct {
	chains  service.ChainService
	sweeper service.ChainLifecycleSweeper
	logger  zerolog.Logger
}

// NewChainHandler constructs a chain handler.
func NewChainHandler(chains service.ChainService, sweeper service.ChainLifecycleSweeper, logger zerolog.Logger) *ChainHandler {
	return &ChainHandler{
		chains:  chains,
		sweeper: sweeper,
		logger:  logger.With().Str("component", "chain_handler").Logger(),
	}
}

// Register binds the chain routes.
func (h *ChainHandler) Register(router fiber.Router) {
	router.Post("", h.generate)
	router.Post("/sweep", h.sweep)
	router.Get("/:id", h.get)
}

func (h *ChainHandler) generate(c *fiber.Ctx) error {
	var payload dto.GenerateChainRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	payload.ActivityID = strings.TrimSpace(payload.ActivityID)

	chain, err := h.chains.Generate(requestContext(c), payload)
	if err != nil {
		return sendReviewError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "review chain generated", chain)
}

func (h *ChainHandler) get(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "chain id required")
	}

	chain, err := h.chains.Get(requestContext(c), id)
	if err != nil {
		return sendReviewError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "review chain retrieved", chain)
}

func (h *ChainHandler) sweep(c *fiber.Ctx) error {
	var payload dto.SweepRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	ctx := requestContext(c)
	now := time.Now()
	if payload.Now != nil {
		now = *payload.Now
	}

	result, err := h.sweeper.Sweep(ctx, now)
	if err != nil {
		return sendReviewError(c, h.logger, err)
	}

	requestLogger(h.logger, c).Info().
		Int("activated", result.Activated).
		Int("expired", result.Expired).
		Msg("manual sweep completed")

	return utils.SendSuccess(c, "review chains swept", result)
}
