// Package workers runs the background jobs consumed by cmd/worker.
package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/overlax/overlax/internal/assistant"
	"github.com/overlax/overlax/internal/database"
	"github.com/overlax/overlax/internal/queue"
	"github.com/overlax/overlax/internal/telegram"
)

const (
	baseRetryDelay = 30 * time.Second
	maxRetryDelay  = 10 * time.Minute
)

// MessageSender delivers a text message to a chat
type MessageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

var _ MessageSender = (*telegram.Bot)(nil)

// DigestWorker sends deadline digests to linked Telegram chats
type DigestWorker struct {
	tasks    database.TaskReader
	links    database.TelegramLinkStore
	sender   MessageSender
	jobQueue queue.Enqueuer // For re-enqueueing jobs with delays
	loc      *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

// NewDigestWorker creates a new digest worker. loc sets the day boundaries of the digest.
func NewDigestWorker(
	tasks database.TaskReader,
	links database.TelegramLinkStore,
	sender MessageSender,
	jobQueue queue.Enqueuer,
	loc *time.Location,
	logger *zap.Logger,
) *DigestWorker {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DigestWorker{
		tasks:    tasks,
		links:    links,
		sender:   sender,
		jobQueue: jobQueue,
		loc:      loc,
		now:      time.Now,
		logger:   logger,
	}
}

// Process builds and sends the digest for job.UserID.
// A user without a linked chat is skipped.
func (w *DigestWorker) Process(ctx context.Context, job *queue.Job) error {
	link, err := w.links.Get(ctx, job.UserID)
	if errors.Is(err, database.ErrNotFound) {
		w.logger.Info("digest_skipped_unlinked", zap.String("user_id", job.UserID), zap.String("job_id", job.ID.String()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load telegram link: %w", err)
	}

	tasks, err := w.tasks.TasksByUser(ctx, job.UserID)
	if err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}

	text := assistant.Digest(tasks, w.now(), w.loc)
	if err := w.sender.SendMessage(ctx, link.ChatID, text); err != nil {
		if telegram.IsBlocked(err) {
			w.logger.Info("digest_chat_blocked_unlinking", zap.String("user_id", job.UserID), zap.Error(err))
			if unlinkErr := w.links.Unlink(ctx, job.UserID); unlinkErr != nil {
				return fmt.Errorf("failed to unlink blocked chat: %w", unlinkErr)
			}
			return nil
		}
		return fmt.Errorf("failed to send digest: %w", err)
	}

	w.logger.Info("digest_sent",
		zap.String("user_id", job.UserID),
		zap.String("job_id", job.ID.String()),
		zap.Int("task_count", len(tasks)),
		zap.Int("attempt", job.RetryCount+1),
	)
	return nil
}

// ProcessJob processes a job based on its type and settles the message
func (w *DigestWorker) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	switch job.Type {
	case queue.JobTypeDeadlineDigest:
		if err := w.Process(ctx, job); err != nil {
			return w.handleJobError(ctx, msg, job, err)
		}
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack job: %w", ackErr)
		}
		return nil

	default:
		// Unknown job type, send to DLQ
		if nackErr := msg.Nack(false); nackErr != nil {
			w.logger.Warn("failed_to_nack_unknown_job", zap.Error(nackErr))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// handleJobError re-enqueues retryable failures with a delay and dead-letters the rest
func (w *DigestWorker) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, err error) error {
	var apiErr *telegram.APIError
	permanent := errors.As(err, &apiErr) && !apiErr.Retryable()

	if permanent || !job.CanRetry() {
		w.logger.Warn("digest_job_failed_sending_to_dlq",
			zap.String("job_id", job.ID.String()),
			zap.String("user_id", job.UserID),
			zap.Int("retry_count", job.RetryCount),
			zap.Bool("permanent", permanent),
			zap.Error(err),
		)
		if nackErr := msg.Nack(false); nackErr != nil {
			w.logger.Warn("failed_to_nack_job_to_dlq", zap.Error(nackErr))
		}
		return fmt.Errorf("job failed (no retry): %w", err)
	}

	delay := RetryDelay(err, job.RetryCount)
	if w.jobQueue != nil {
		delayed := job.Retry(delay)
		enqueueErr := w.jobQueue.Enqueue(ctx, delayed)
		if enqueueErr == nil {
			if ackErr := msg.Ack(); ackErr != nil {
				w.logger.Warn("failed_to_ack_job_after_re_enqueue", zap.Error(ackErr))
			}
			w.logger.Info("digest_job_re_enqueued",
				zap.String("job_id", job.ID.String()),
				zap.Int("attempt", delayed.RetryCount),
				zap.Int("max_retries", job.MaxRetries),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
			return fmt.Errorf("job failed (will retry): %w", err)
		}
		w.logger.Warn("failed_to_re_enqueue_job", zap.String("job_id", job.ID.String()), zap.Error(enqueueErr))
	}

	// Without a queue to re-enqueue into, hand the message back to the broker.
	if nackErr := msg.Nack(true); nackErr != nil {
		w.logger.Warn("failed_to_nack_job", zap.Error(nackErr))
	}
	return fmt.Errorf("job failed (requeued): %w", err)
}

// RetryDelay is the wait before retry number attempt+1. Telegram's retry_after wins when larger.
func RetryDelay(err error, attempt int) time.Duration {
	shift := min(max(attempt, 0), 10)
	delay := min(baseRetryDelay*time.Duration(1<<uint(shift)), maxRetryDelay)

	var apiErr *telegram.APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > delay {
		delay = apiErr.RetryAfter
	}
	return delay
}
