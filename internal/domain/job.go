package domain

import (
	"fmt"
	"time"
)

// JobKind identifies which pipeline stage a job drives.
type JobKind string

const (
	JobKindIngest JobKind = "ingest"
	JobKindEmbed  JobKind = "embed"
)

// JobStatus represents the status of a background job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job retry policy: fixed backoff, bounded attempts.
const (
	JobMaxRetries   = 3
	JobRetryBackoff = 60 * time.Second
)

// Job represents an async ingestion or embedding job for a knowledge item
type Job struct {
	ID            string
	Kind          JobKind
	ItemID        string
	Status        JobStatus
	Retries       int32
	Error         string
	NextAttemptAt time.Time
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}

// NewJob creates a pending Job for a knowledge item
func NewJob(id string, kind JobKind, itemID string, now time.Time) *Job {
	return &Job{
		ID:            id,
		Kind:          kind,
		ItemID:        itemID,
		Status:        JobStatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
}

// ValidateJob validates a Job instance
func ValidateJob(j *Job) error {
	if j == nil {
		return fmt.Errorf("job cannot be nil")
	}

	if j.ID == "" {
		return fmt.Errorf("job ID is required")
	}

	if j.ItemID == "" {
		return fmt.Errorf("job ItemID is required")
	}

	if j.Kind != JobKindIngest && j.Kind != JobKindEmbed {
		return fmt.Errorf("job Kind is invalid: %s", j.Kind)
	}

	if !isValidJobStatus(j.Status) {
		return fmt.Errorf("job Status is invalid: %s", j.Status)
	}

	if j.Retries < 0 {
		return fmt.Errorf("job Retries cannot be negative")
	}

	return nil
}

func isValidJobStatus(s JobStatus) bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}
