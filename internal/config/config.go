package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the review service.
type Config struct {
	AppName              string
	AppEnv               string
	AppPort              string
	DatabaseDriver       string
	DatabaseURL          string
	RedisURL             string
	RedisChannel         string
	NATSURL              string
	ActivitySubject      string
	JWTSecret            string
	ReviewGracePeriod    time.Duration
	ReviewWindow         time.Duration
	CommentMaxLength     int
	SweeperInterval      time.Duration
	ReputationCacheTTL   time.Duration
	NotificationWorkers  int
	SubmissionRateLimit  int
	SubmissionRateWindow time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CLIMB")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Climb Review API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("redis.channel", "climb")
	v.SetDefault("nats.activity_subject", "climb.activity.completed")
	v.SetDefault("review.grace_period", "2h")
	v.SetDefault("review.window", "48h")
	v.SetDefault("review.comment_max_length", 500)
	v.SetDefault("sweeper.interval", "5m")
	v.SetDefault("reputation.cache_ttl", "1m")
	v.SetDefault("notification.workers", 8)
	v.SetDefault("submission.rate_limit", 20)
	v.SetDefault("submission.rate_window", "1m")

	durations := map[string]time.Duration{}
	for _, key := range []string{"review.grace_period", "review.window", "sweeper.interval", "reputation.cache_ttl", "submission.rate_window"} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		if parsed < 0 {
			return Config{}, fmt.Errorf("invalid %s: must not be negative", key)
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:              v.GetString("app.name"),
		AppEnv:               v.GetString("app.env"),
		AppPort:              v.GetString("app.port"),
		DatabaseDriver:       strings.ToLower(v.GetString("database.driver")),
		DatabaseURL:          v.GetString("database.url"),
		RedisURL:             v.GetString("redis.url"),
		RedisChannel:         v.GetString("redis.channel"),
		NATSURL:              v.GetString("nats.url"),
		ActivitySubject:      v.GetString("nats.activity_subject"),
		JWTSecret:            v.GetString("jwt.secret"),
		ReviewGracePeriod:    durations["review.grace_period"],
		ReviewWindow:         durations["review.window"],
		CommentMaxLength:     v.GetInt("review.comment_max_length"),
		SweeperInterval:      durations["sweeper.interval"],
		ReputationCacheTTL:   durations["reputation.cache_ttl"],
		NotificationWorkers:  v.GetInt("notification.workers"),
		SubmissionRateLimit:  v.GetInt("submission.rate_limit"),
		SubmissionRateWindow: durations["submission.rate_window"],
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.DatabaseDriver != "postgres" && cfg.DatabaseDriver != "sqlite" {
		return Config{}, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	if cfg.ReviewWindow <= 0 {
		return Config{}, fmt.Errorf("review window must be positive")
	}

	if cfg.CommentMaxLength <= 0 {
		return Config{}, fmt.Errorf("review comment max length must be positive")
	}

	if cfg.NotificationWorkers <= 0 {
		cfg.NotificationWorkers = 8
	}

	return cfg, nil
}
