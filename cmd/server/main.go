package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"

	"github.com/overlax/overlax/internal/config"
	"github.com/overlax/overlax/internal/database"
	"github.com/overlax/overlax/internal/handlers"
	"github.com/overlax/overlax/internal/logger"
	"github.com/overlax/overlax/internal/middleware"
	"github.com/overlax/overlax/internal/queue"
	"github.com/overlax/overlax/internal/services/ai"
	"github.com/overlax/overlax/internal/services/oidc"
	"github.com/overlax/overlax/internal/taskstore"
	"github.com/overlax/overlax/internal/telemetry"
)

const (
	serviceName       = "overlax-api"
	rabbitDialRetries = 10
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug mode for LLM API logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("ai_model", cfg.AIModel),
		zap.String("timezone", cfg.Location().String()),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, tracing := telemetry.Setup(ctx, cfg.OTELEnabled, serviceName, cfg.OTELEndpoint, zapLogger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
		}
	}()

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database")

	redisClient, err := middleware.NewRedisClient(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_redis")

	// Digests are optional; without a broker the digest route answers 503.
	var jobQueue *queue.RabbitMQQueue
	if cfg.RabbitMQURL != "" {
		jobQueue, err = queue.Dial(ctx, cfg.RabbitMQURL, rabbitDialRetries, zapLogger)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_rabbitmq", zap.Error(err))
		}
		defer func() {
			if err := jobQueue.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
		zapLogger.Info("connected_to_rabbitmq")
	} else {
		zapLogger.Warn("rabbitmq_not_configured_digests_disabled")
	}

	taskRepo := database.NewTaskRepository(db)
	settingsRepo := database.NewPressureSettingsRepository(db)
	linkRepo := database.NewTelegramLinkRepository(db)

	snapshots := taskstore.NewSnapshotCache(taskRepo, cfg.SnapshotCacheSize, cfg.SnapshotCacheTTL)
	bus := taskstore.NewRedisBus(redisClient, zapLogger)
	go func() {
		err := bus.Listen(ctx, func(ev taskstore.Event) {
			// Refreshes asked for on any replica evict here too.
			if ev.IsMutation() || ev.Type == taskstore.EventRefreshed {
				snapshots.Invalidate(ev.UserID)
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("task_event_listener_stopped", zap.Error(err))
		}
	}()

	sharedSnapshots := taskstore.NewSharedCache(snapshots, bus)

	verifier := oidc.NewVerifier(oidc.NewJWKSManager(), cfg.FirebaseProjectID)
	loc := cfg.Location()

	healthChecker := handlers.NewHealthChecker().
		Add("database", db).
		Add("redis", handlers.CheckerFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}))
	var digestJobs queue.Enqueuer
	if jobQueue != nil {
		healthChecker.Add("rabbitmq", jobQueue)
		digestJobs = jobQueue
	}

	r := mux.NewRouter()

	// Registration order is execution order: the first middleware wraps all others.
	if tracing {
		r.Use(otelmux.Middleware(serviceName))
	}
	r.Use(middleware.Logging(zapLogger))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Audit(zapLogger))
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins, zapLogger))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(cfg.RequestTimeout, handlers.ChatPath))

	defaultLimit := mustRateLimit(redisClient, "api", middleware.DefaultRate, zapLogger)
	aiLimit := mustRateLimit(redisClient, "ai", cfg.AIRateLimit, zapLogger)

	healthChecker.RegisterRoutes(r)
	handlers.NewOpenAPIHandler(cfg.OpenAPIPath).RegisterRoutes(r)

	// Anonymous chat is allowed; a valid token replaces the uid in the body.
	if cfg.OpenAIKey != "" {
		relay := ai.NewOpenAIRelay(ai.RelayConfig{
			APIKey:    cfg.OpenAIKey,
			BaseURL:   cfg.AIBaseURL,
			Model:     cfg.AIModel,
			Logger:    zapLogger,
			DebugMode: debugMode,
		})
		chatRouter := r.NewRoute().Subrouter()
		chatRouter.Use(middleware.OptionalAuth(verifier, zapLogger))
		chatRouter.Use(aiLimit)
		handlers.NewChatHandler(relay, zapLogger).RegisterRoutes(chatRouter)
	} else {
		zapLogger.Warn("openai_api_key_not_configured_chat_disabled")
	}

	protected := r.NewRoute().Subrouter()
	protected.Use(middleware.Auth(verifier, zapLogger))
	protected.Use(defaultLimit)
	handlers.NewQueryHandler(sharedSnapshots, loc, zapLogger).RegisterRoutes(protected)
	handlers.NewPressureHandler(settingsRepo, snapshots, loc, zapLogger).RegisterRoutes(protected)
	handlers.NewTelegramHandler(linkRepo, digestJobs, cfg.DigestInterval, zapLogger).RegisterRoutes(protected)

	// Preflight requests match no route method; CORS has already answered them.
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("server_shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

func mustRateLimit(client *redis.Client, name, rate string, zapLogger *zap.Logger) mux.MiddlewareFunc {
	store, err := middleware.NewRedisStore(client, name)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limit_store", zap.String("name", name), zap.Error(err))
	}
	mw, err := middleware.RateLimit(store, rate, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limiter", zap.String("name", name), zap.Error(err))
	}
	return mw
}
