package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/climb-review-api/internal/models"
	"github.com/noah-isme/climb-review-api/internal/repository"
)

var reviewEpoch = time.Date(2026, time.May, 1, 18, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []models.ReviewObligation
	err   error
}

func (n *recordingNotifier) NotifyReviewDue(_ context.Context, obligation models.ReviewObligation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, obligation)
	return n.err
}

func (n *recordingNotifier) Reviewers() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	ids := make([]string, 0, len(n.calls))
	for _, call := range n.calls {
		ids = append(ids, call.ReviewerID)
	}
	return ids
}

type reviewHarness struct {
	db          *gorm.DB
	clock       *testClock
	chains      ChainService
	submissions ReviewSubmissionService
	sweeper     ChainLifecycleSweeper
	reputation  ReputationService
	notifier    *recordingNotifier
}

func identityShuffle(int, func(i, j int)) {}

func setupReviewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.ReviewChain{}, &models.ReviewObligation{}, &models.Notification{}))
	return db
}

func setupReviewHarness(t *testing.T, cache *redis.Client) *reviewHarness {
	t.Helper()

	db := setupReviewDB(t)
	clock := &testClock{now: reviewEpoch}
	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.Nop()

	chainRepo := repository.NewReviewChainRepository(db)
	obligationRepo := repository.NewReviewObligationRepository(db)
	notifier := &recordingNotifier{}

	chains := NewChainService(chainRepo, obligationRepo, validate, DefaultChainTiming(), logger)
	chains.(*chainService).shuffle = identityShuffle
	chains.(*chainService).now = clock.Now

	reputation := NewReputationService(chainRepo, obligationRepo, cache, time.Minute, logger)

	submissions := NewReviewSubmissionService(chainRepo, obligationRepo, reputation, validate, 140, logger)
	submissions.(*reviewSubmissionService).now = clock.Now

	sweeper := NewChainLifecycleSweeper(chainRepo, obligationRepo, notifier, 4, logger)
	sweeper.(*chainLifecycleSweeper).now = clock.Now

	return &reviewHarness{
		db:          db,
		clock:       clock,
		chains:      chains,
		submissions: submissions,
		sweeper:     sweeper,
		reputation:  reputation,
		notifier:    notifier,
	}
}

func stringPtr(v string) *string {
	return &v
}
