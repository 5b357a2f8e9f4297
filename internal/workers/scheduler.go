package workers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/overlax/overlax/internal/database"
	"github.com/overlax/overlax/internal/queue"
)

// Scheduler periodically enqueues a digest job for every linked user
type Scheduler struct {
	links    database.TelegramLinkStore
	jobQueue queue.Enqueuer
	interval time.Duration
	logger   *zap.Logger
}

// NewScheduler creates a new scheduler
func NewScheduler(links database.TelegramLinkStore, jobQueue queue.Enqueuer, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		links:    links,
		jobQueue: jobQueue,
		interval: interval,
		logger:   logger,
	}
}

// Run schedules once immediately and then every interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.ScheduleDigests(ctx); err != nil {
			s.logger.Warn("failed_to_schedule_digests", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ScheduleDigests enqueues one digest job per linked user and returns how many were enqueued.
// Jobs expire after one interval so a backlog never sends stale digests.
func (s *Scheduler) ScheduleDigests(ctx context.Context) (int, error) {
	links, err := s.links.ListLinked(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list linked users: %w", err)
	}

	enqueued := 0
	for _, link := range links {
		job := queue.NewDigestJob(link.UserID, "schedule", s.interval)
		if err := s.jobQueue.Enqueue(ctx, job); err != nil {
			// Continue with other users
			s.logger.Warn("failed_to_enqueue_digest_job",
				zap.String("user_id", link.UserID),
				zap.Error(err),
			)
			continue
		}
		enqueued++
	}

	s.logger.Info("scheduled_digest_jobs",
		zap.Int("user_count", len(links)),
		zap.Int("enqueued", enqueued),
	)
	return enqueued, nil
}
