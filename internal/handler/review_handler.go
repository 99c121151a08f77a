package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/climb-review-api/internal/dto"
	"github.com/noah-isme/climb-review-api/internal/service"
	"github.com/noah-isme/climb-review-api/internal/utils"
)

// ReviewHandler exposes the climber facing review endpoints.
type ReviewHandler struct {
	submissions   service.ReviewSubmissionService
	reputation    service.ReputationService
	submitLimiter fiber.Handler
	logger        zerolog.Logger
}

// NewReviewHandler constructs a review handler. submitLimiter may be nil.
func NewReviewHandler(submissions service.ReviewSubmissionService, reputation service.ReputationService, submitLimiter fiber.Handler, logger zerolog.Logger) *ReviewHandler {
	return &ReviewHandler{
		submissions:   submissions,
		reputation:    reputation,
		submitLimiter: submitLimiter,
		logger:        logger.With().Str("component", "review_handler").Logger(),
	}
}

// Register binds the review routes.
func (h *ReviewHandler) Register(router fiber.Router) {
	router.Get("/pending", h.pending)
	if h.submitLimiter != nil {
		router.Post("", h.submitLimiter, h.submit)
	} else {
		router.Post("", h.submit)
	}
	router.Get("/users/:userId/stats", h.userStats)
	router.Get("/activities/:activityId", h.activitySummary)
}

func (h *ReviewHandler) pending(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	items, err := h.submissions.ListPending(requestContext(c), userID, c.QueryBool("open"))
	if err != nil {
		return sendReviewError(c, h.logger, err)
	}

	return utils.OK(c, items, "pending reviews retrieved", fiber.Map{"count": len(items)})
}

func (h *ReviewHandler) submit(c *fiber.Ctx) error {
	reviewerID := userIDFromContext(c)
	if reviewerID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.SubmitReviewRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	payload.ReviewerID = reviewerID
	payload.ActivityID = strings.TrimSpace(payload.ActivityID)
	payload.RevieweeID = strings.TrimSpace(payload.RevieweeID)

	obligation, err := h.submissions.Submit(requestContext(c), payload)
	if err != nil {
		return sendReviewError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "review submitted", obligation)
}

func (h *ReviewHandler) userStats(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Params("userId"))
	if userID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "user id required")
	}

	stats, err := h.reputation.UserStats(requestContext(c), userID)
	if err != nil {
		return sendReviewError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "review stats retrieved", stats)
}

func (h *ReviewHandler) activitySummary(c *fiber.Ctx) error {
	activityID := strings.TrimSpace(c.Params("activityId"))
	if activityID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "activity id required")
	}

	summary, err := h.reputation.ActivitySummary(requestContext(c), activityID)
	if err != nil {
		return sendReviewError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "activity review summary retrieved", summary)
}
