package queue

import (
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeDeadlineDigest sends one user's deadline digest to their linked Telegram chat
	JobTypeDeadlineDigest JobType = "deadline_digest"
)

// DefaultMaxRetries is the retry budget of a new job
const DefaultMaxRetries = 3

// Metadata keys
const (
	// MetadataReason records what enqueued the job ("schedule" or "manual").
	MetadataReason = "reason"
)

// Job represents a job in the queue
type Job struct {
	ID         uuid.UUID      `json:"id"`
	Type       JobType        `json:"type"`
	UserID     string         `json:"uid"`
	NotBefore  *time.Time     `json:"not_before,omitempty"` // Earliest time to process job (nil = immediate)
	NotAfter   *time.Time     `json:"not_after,omitempty"`  // Latest time to process job (nil = no expiration)
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	RetryCount int            `json:"retry_count"`
	MaxRetries int            `json:"max_retries"`
}

// NewJob creates a new job
func NewJob(jobType JobType, userID string) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       jobType,
		UserID:     userID,
		Metadata:   make(map[string]any),
		CreatedAt:  time.Now(),
		MaxRetries: DefaultMaxRetries,
	}
}

// NewDigestJob creates a deadline digest job for userID. A digest that has not been
// delivered within ttl is dropped; zero means no expiry.
func NewDigestJob(userID, reason string, ttl time.Duration) *Job {
	job := NewJob(JobTypeDeadlineDigest, userID)
	job.Metadata[MetadataReason] = reason
	if ttl > 0 {
		notAfter := job.CreatedAt.Add(ttl)
		job.NotAfter = &notAfter
	}
	return job
}

// ShouldProcess checks if the job should be processed now
func (j *Job) ShouldProcess() bool {
	now := time.Now()
	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}
	return !j.IsExpired()
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	return j.NotAfter != nil && time.Now().After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}

// Retry returns a copy of the job scheduled delay from now with the retry count bumped.
func (j *Job) Retry(delay time.Duration) *Job {
	next := *j
	next.Metadata = make(map[string]any, len(j.Metadata))
	for k, v := range j.Metadata {
		next.Metadata[k] = v
	}
	next.IncrementRetry()
	notBefore := time.Now().Add(delay)
	next.NotBefore = &notBefore
	return &next
}
