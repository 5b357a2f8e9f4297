package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	dialInitialDelay = 2 * time.Second
	dialMaxDelay     = 30 * time.Second
)

// Dial connects to RabbitMQ, retrying with exponential backoff while the broker starts up.
func Dial(ctx context.Context, amqpURL string, attempts int, logger *zap.Logger) (*RabbitMQQueue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		q, err := NewRabbitMQQueue(amqpURL, logger)
		if err == nil {
			return q, nil
		}
		lastErr = err
		if attempt == attempts-1 {
			break
		}

		delay := dialDelay(attempt)
		logger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", attempts),
			zap.Duration("retry_delay", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("rabbitmq unreachable after %d attempts: %w", attempts, lastErr)
}

func dialDelay(attempt int) time.Duration {
	if attempt >= 5 {
		return dialMaxDelay
	}
	delay := dialInitialDelay << uint(attempt)
	if delay > dialMaxDelay {
		return dialMaxDelay
	}
	return delay
}
