package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/climb-review-api/internal/config"
	"github.com/noah-isme/climb-review-api/internal/database"
	"github.com/noah-isme/climb-review-api/internal/dto"
	"github.com/noah-isme/climb-review-api/internal/handler"
	"github.com/noah-isme/climb-review-api/internal/middleware"
	"github.com/noah-isme/climb-review-api/internal/repository"
	"github.com/noah-isme/climb-review-api/internal/router"
	"github.com/noah-isme/climb-review-api/internal/service"
)

const userStatsSchema = `{
	"type": "object",
	"required": ["success", "message", "data"],
	"properties": {
		"success": {"const": true},
		"data": {
			"type": "object",
			"required": ["user_id", "received_count", "given_count", "good_count", "bad_count", "no_show_count", "skip_count", "positive_rate"],
			"properties": {
				"user_id": {"type": "string"},
				"received_count": {"type": "integer", "minimum": 0},
				"given_count": {"type": "integer", "minimum": 0},
				"positive_rate": {"type": "number", "minimum": 0, "maximum": 100}
			}
		}
	}
}`

type envelope[T any] struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    T               `json:"data"`
	Meta    json.RawMessage `json:"meta"`
	Details json.RawMessage `json:"details"`
}

func setupReviewApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	chainRepo := repository.NewReviewChainRepository(db)
	obligationRepo := repository.NewReviewObligationRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	notifications := service.NewNotificationService(notificationRepo, nil, "", nil, validate, logger)
	reputation := service.NewReputationService(chainRepo, obligationRepo, nil, 0, logger)
	chains := service.NewChainService(chainRepo, obligationRepo, validate, service.DefaultChainTiming(), logger)
	submissions := service.NewReviewSubmissionService(chainRepo, obligationRepo, reputation, validate, 500, logger)
	sweeper := service.NewChainLifecycleSweeper(chainRepo, obligationRepo, notifications, 2, logger)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret"}, router.Dependencies{
		ReviewHandler:       handler.NewReviewHandler(submissions, reputation, middleware.RateLimit("review_submit", 100, time.Minute), logger),
		ChainHandler:        handler.NewChainHandler(chains, sweeper, logger),
		NotificationHandler: handler.NewNotificationHandler(notifications, logger),
		HealthChecks:        map[string]handler.Pinger{"database": sqlDB},
		JWTMiddleware: func(c *fiber.Ctx) error {
			if user := c.Get("X-Test-User"); user != "" {
				c.Locals("user_id", user)
			}
			if role := c.Get("X-Test-Role"); role != "" {
				c.Locals("user_role", role)
			}
			return c.Next()
		},
	})

	return app, db
}

func doJSON(t *testing.T, app *fiber.App, method, path, user, role string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	if role != "" {
		req.Header.Set("X-Test-Role", role)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}

func generateChain(t *testing.T, app *fiber.App, activityID string, participants ...string) dto.ReviewChainResponse {
	t.Helper()

	resp := doJSON(t, app, http.MethodPost, "/api/internal/chains", "activity-service", "system", dto.GenerateChainRequest{
		ActivityID:     activityID,
		ParticipantIDs: participants,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var body envelope[dto.ReviewChainResponse]
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	return body.Data
}

func sweepAt(t *testing.T, app *fiber.App, now time.Time) dto.SweepResponse {
	t.Helper()

	resp := doJSON(t, app, http.MethodPost, "/api/internal/chains/sweep", "ops", "admin", dto.SweepRequest{Now: &now})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body envelope[dto.SweepResponse]
	decodeResponse(t, resp, &body)
	return body.Data
}

// revieweeOf returns who reviewer must review in the generated ring.
func revieweeOf(chain dto.ReviewChainResponse, reviewer string) string {
	for _, obligation := range chain.Obligations {
		if obligation.ReviewerID == reviewer {
			return obligation.RevieweeID
		}
	}
	return ""
}

func TestReviewEndpointsFollowChainLifecycle(t *testing.T) {
	app, _ := setupReviewApp(t)

	chain := generateChain(t, app, "act-1", "alex", "blair", "casey")
	require.Equal(t, "PENDING", chain.Status)
	require.Len(t, chain.Obligations, 3)

	alexTarget := revieweeOf(chain, "alex")
	resp := doJSON(t, app, http.MethodPost, "/api/v1/reviews", "alex", "", map[string]string{
		"activity_id": "act-1",
		"reviewee_id": alexTarget,
		"rating":      "GOOD",
	})
	require.Equal(t, fiber.StatusTooEarly, resp.StatusCode)

	swept := sweepAt(t, app, chain.TriggerAt)
	require.Equal(t, 1, swept.Activated)

	resp = doJSON(t, app, http.MethodGet, "/api/v1/notifications", "alex", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var inbox envelope[[]dto.NotificationResponse]
	decodeResponse(t, resp, &inbox)
	require.Len(t, inbox.Data, 1)
	require.Equal(t, "review_due", inbox.Data[0].Type)
	require.JSONEq(t, `{"limit":0,"offset":0,"unread":1}`, string(inbox.Meta))

	resp = doJSON(t, app, http.MethodPatch, fmt.Sprintf("/api/v1/notifications/%d/read", inbox.Data[0].ID), "blair", "", nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	resp = doJSON(t, app, http.MethodPatch, fmt.Sprintf("/api/v1/notifications/%d/read", inbox.Data[0].ID), "alex", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/api/v1/reviews/pending", "alex", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var pending envelope[[]dto.PendingObligationResponse]
	decodeResponse(t, resp, &pending)
	require.Len(t, pending.Data, 1)
	require.Equal(t, alexTarget, pending.Data[0].RevieweeID)
	require.Equal(t, "ACTIVE", pending.Data[0].ChainStatus)
	require.JSONEq(t, `{"count":1}`, string(pending.Meta))

	resp = doJSON(t, app, http.MethodPost, "/api/v1/reviews", "alex", "", map[string]string{
		"activity_id": "act-1",
		"reviewee_id": alexTarget,
		"rating":      "AMAZING",
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	var invalid envelope[json.RawMessage]
	decodeResponse(t, resp, &invalid)
	require.False(t, invalid.Success)
	require.JSONEq(t, `{"allowed":["GOOD","BAD","NO_SHOW","SKIP"]}`, string(invalid.Details))

	resp = doJSON(t, app, http.MethodPost, "/api/v1/reviews", "alex", "", map[string]interface{}{
		"activity_id": "act-1",
		"reviewee_id": alexTarget,
		"rating":      "GOOD",
		"comment":     "Solid belay, great beta",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var submitted envelope[dto.ReviewObligationResponse]
	decodeResponse(t, resp, &submitted)
	require.True(t, submitted.Data.Submitted)
	require.Equal(t, "alex", submitted.Data.ReviewerID)
	require.Equal(t, "Solid belay, great beta", submitted.Data.Comment)

	resp = doJSON(t, app, http.MethodPost, "/api/v1/reviews", "alex", "", map[string]string{
		"activity_id": "act-1",
		"reviewee_id": alexTarget,
		"rating":      "BAD",
	})
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode, "second submission for the same pairing")

	resp = doJSON(t, app, http.MethodGet, "/api/v1/reviews/users/"+alexTarget+"/stats", "casey", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	schema, err := jsonschema.CompileString("user_stats.schema.json", userStatsSchema)
	require.NoError(t, err)
	var document interface{}
	require.NoError(t, json.Unmarshal(raw, &document))
	require.NoError(t, schema.Validate(document))

	var stats envelope[dto.UserReviewStatsResponse]
	require.NoError(t, json.Unmarshal(raw, &stats))
	require.Equal(t, 1, stats.Data.GoodCount)
	require.Equal(t, 100.0, stats.Data.PositiveRate)

	resp = doJSON(t, app, http.MethodGet, "/api/v1/reviews/activities/act-1", "casey", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var summary envelope[dto.ActivityReviewSummaryResponse]
	decodeResponse(t, resp, &summary)
	require.Equal(t, 1, summary.Data.CompletedObligations)
	require.Equal(t, 33.33, summary.Data.CompletionRate)

	expired := sweepAt(t, app, chain.ExpireAt)
	require.Equal(t, 1, expired.Expired)

	blairTarget := revieweeOf(chain, "blair")
	resp = doJSON(t, app, http.MethodPost, "/api/v1/reviews", "blair", "", map[string]string{
		"activity_id": "act-1",
		"reviewee_id": blairTarget,
		"rating":      "GOOD",
	})
	require.Equal(t, fiber.StatusGone, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/api/v1/reviews/pending", "blair", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var missed envelope[[]dto.PendingObligationResponse]
	decodeResponse(t, resp, &missed)
	require.Len(t, missed.Data, 1)
	require.Equal(t, "EXPIRED", missed.Data[0].ChainStatus)

	resp = doJSON(t, app, http.MethodGet, "/api/v1/reviews/pending?open=true", "blair", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var open envelope[[]dto.PendingObligationResponse]
	decodeResponse(t, resp, &open)
	require.Empty(t, open.Data)
	require.JSONEq(t, `{"count":0}`, string(open.Meta))

	resp = doJSON(t, app, http.MethodGet, "/api/internal/chains/"+chain.ID, "ops", "admin", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var final envelope[dto.ReviewChainResponse]
	decodeResponse(t, resp, &final)
	require.Equal(t, "EXPIRED", final.Data.Status)
	require.Equal(t, 1, final.Data.CompletedObligations)
}

func TestChainEndpointsMapErrors(t *testing.T) {
	app, db := setupReviewApp(t)

	resp := doJSON(t, app, http.MethodPost, "/api/internal/chains", "alex", "climber", dto.GenerateChainRequest{
		ActivityID:     "act-1",
		ParticipantIDs: []string{"alex", "blair"},
	})
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/api/internal/chains", "svc", "system", dto.GenerateChainRequest{
		ActivityID:     "solo",
		ParticipantIDs: []string{"alex"},
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/api/internal/chains", "svc", "system", map[string]interface{}{
		"participant_ids": []string{"alex", "blair"},
	})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	var invalid envelope[json.RawMessage]
	decodeResponse(t, resp, &invalid)
	require.Equal(t, "validation failed", invalid.Message)
	require.JSONEq(t, `{"ActivityID":"required"}`, string(invalid.Details))

	generateChain(t, app, "act-1", "alex", "blair")

	resp = doJSON(t, app, http.MethodPost, "/api/internal/chains", "svc", "system", dto.GenerateChainRequest{
		ActivityID:     "act-1",
		ParticipantIDs: []string{"casey", "drew"},
	})
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)

	var chains int64
	require.NoError(t, db.Table("review_chains").Count(&chains).Error)
	require.Equal(t, int64(1), chains)

	resp = doJSON(t, app, http.MethodGet, "/api/internal/chains/does-not-exist", "svc", "system", nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/api/v1/reviews/activities/unknown", "alex", "", nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/api/v1/reviews/pending", "", "", nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestHealthReportsDependencies(t *testing.T) {
	app, _ := setupReviewApp(t)

	resp := doJSON(t, app, http.MethodGet, "/api/v1/health", "", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "Test", resp.Header.Get("X-Application"))
	require.NotEmpty(t, resp.Header.Get("X-Correlation-ID"))

	var body envelope[handler.HealthResponse]
	decodeResponse(t, resp, &body)
	require.Equal(t, "ok", body.Data.Status)
	require.Equal(t, "ok", body.Data.Checks["database"])
}
