package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/overlax/overlax/internal/config"
	"github.com/overlax/overlax/internal/database"
	"github.com/overlax/overlax/internal/logger"
	"github.com/overlax/overlax/internal/queue"
	"github.com/overlax/overlax/internal/telegram"
	"github.com/overlax/overlax/internal/telemetry"
	"github.com/overlax/overlax/internal/workers"
)

const (
	serviceName       = "overlax-worker"
	rabbitDialRetries = 10
	dlqInterval       = time.Hour
	dlqRetention      = 24 * time.Hour
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	noSchedule := flag.Bool("no-schedule", false, "Consume jobs without scheduling periodic digests")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	if cfg.RabbitMQURL == "" {
		zapLogger.Fatal("rabbitmq_url_required")
	}
	bot := telegram.NewBot(cfg.TelegramBotToken)
	if !bot.Configured() {
		zapLogger.Fatal("telegram_bot_token_required")
	}

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
		zap.Duration("digest_interval", cfg.DigestInterval),
		zap.String("timezone", cfg.Location().String()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, _ := telemetry.Setup(ctx, cfg.OTELEnabled, serviceName, cfg.OTELEndpoint, zapLogger)
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

	jobQueue, err := queue.Dial(ctx, cfg.RabbitMQURL, rabbitDialRetries, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()

	links := database.NewTelegramLinkRepository(db)
	digests := workers.NewDigestWorker(
		database.NewTaskRepository(db),
		links,
		bot,
		jobQueue,
		cfg.Location(),
		zapLogger,
	)

	msgChan, errChan, err := jobQueue.Consume(ctx, cfg.RabbitMQPrefetch)
	if err != nil {
		zapLogger.Fatal("failed_to_start_consuming", zap.Error(err))
	}

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zapLogger.Error("worker_loop_stopped", zap.String("loop", name), zap.Error(err))
			}
		}()
	}

	run("consumer", func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case msg, ok := <-msgChan:
				if !ok {
					zapLogger.Info("message_channel_closed")
					return nil
				}
				if err := digests.ProcessJob(ctx, msg); err != nil {
					zapLogger.Error("failed_to_process_job",
						zap.String("job_id", msg.GetJob().ID.String()),
						zap.String("job_type", string(msg.GetJob().Type)),
						zap.Error(err),
					)
				}
			case err, ok := <-errChan:
				if !ok {
					errChan = nil
					continue
				}
				zapLogger.Error("queue_error", zap.Error(err))
			}
		}
	})

	if !*noSchedule {
		run("scheduler", workers.NewScheduler(links, jobQueue, cfg.DigestInterval, zapLogger).Run)
	}
	run("dlq_gc", queue.NewGarbageCollector(jobQueue, dlqInterval, dlqRetention, zapLogger).Start)

	zapLogger.Info("worker_started")
	<-ctx.Done()
	zapLogger.Info("worker_shutting_down")

	wg.Wait()
	zapLogger.Info("worker_stopped")
}
