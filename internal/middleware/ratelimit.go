package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"

	"github.com/overlax/overlax/internal/request"
)

const (
	// DefaultRate applies to general API routes
	DefaultRate = "5-S"
	// DefaultAIRate applies to the chat relay, which is billed per call
	DefaultAIRate = "20-M"

	redisKeyPrefix = "overlax:ratelimit"
)

// NewRedisClient parses redisURL and verifies the connection
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// NewRedisStore creates a limiter store namespaced by name
func NewRedisStore(client *redis.Client, name string) (limiter.Store, error) {
	store, err := redisstore.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix: redisKeyPrefix + ":" + name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit store: %w", err)
	}
	return store, nil
}

// RateLimit returns middleware limiting each caller to rate (e.g. "20-M").
// Authenticated callers are keyed by uid, anonymous ones by client IP.
func RateLimit(store limiter.Store, rate string, logger *zap.Logger) (func(http.Handler) http.Handler, error) {
	if rate == "" {
		rate = DefaultRate
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate %q: %w", rate, err)
	}

	instance := limiter.New(store, parsed)
	mw := stdlibmw.NewMiddleware(instance,
		stdlibmw.WithKeyGetter(LimitKey),
		stdlibmw.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			respondError(w, http.StatusTooManyRequests, "Too many requests, slow down")
		}),
		stdlibmw.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("rate_limit_store_error", zap.Error(err))
			respondError(w, http.StatusServiceUnavailable, "Rate limiter unavailable")
		}),
	)
	return mw.Handler, nil
}

// LimitKey returns the rate limit bucket of a request
func LimitKey(r *http.Request) string {
	if uid := request.UID(r); uid != "" {
		return "uid:" + uid
	}
	return "ip:" + request.ClientIP(r)
}
