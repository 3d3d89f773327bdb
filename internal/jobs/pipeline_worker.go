package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cloo-solutions/leadline/internal/domain"
)

// claimBatchSize caps how many jobs one poll claims.
const claimBatchSize = 50

// JobRepository defines the persistence interface for pipeline jobs
type JobRepository interface {
	ClaimDue(ctx context.Context, kind domain.JobKind, limit int) ([]*domain.Job, error)
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, errMsg string) error
	Reschedule(ctx context.Context, id, errMsg string, nextAttemptAt time.Time) error
}

// ItemPipeline runs the pipeline stages for a knowledge item
type ItemPipeline interface {
	ProcessItem(ctx context.Context, itemID string) error
	EmbedItem(ctx context.Context, itemID string) error
	MarkFailed(ctx context.Context, itemID, reason string) error
}

// PipelineWorker claims due jobs of one kind and dispatches them to the
// matching pipeline stage, with bounded retries and fixed backoff.
type PipelineWorker struct {
	repo     JobRepository
	pipeline ItemPipeline
	kind     domain.JobKind
}

// NewIngestWorker creates a worker for the extract-and-segment stage
func NewIngestWorker(repo JobRepository, pipeline ItemPipeline) *PipelineWorker {
	return &PipelineWorker{repo: repo, pipeline: pipeline, kind: domain.JobKindIngest}
}

// NewEmbedWorker creates a worker for the embedding stage
func NewEmbedWorker(repo JobRepository, pipeline ItemPipeline) *PipelineWorker {
	return &PipelineWorker{repo: repo, pipeline: pipeline, kind: domain.JobKindEmbed}
}

// ProcessJobs implements the JobProcessor interface
func (w *PipelineWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.ClaimDue(ctx, w.kind, claimBatchSize)
	if err != nil {
		return fmt.Errorf("failed to claim due jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	log.Printf("Processing %d %s jobs", len(jobs), w.kind)

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			log.Printf("Error processing job %s: %v", job.ID, err)
		}
	}

	return nil
}

func (w *PipelineWorker) processJob(ctx context.Context, job *domain.Job) error {
	var err error
	switch w.kind {
	case domain.JobKindIngest:
		err = w.pipeline.ProcessItem(ctx, job.ItemID)
	case domain.JobKindEmbed:
		err = w.pipeline.EmbedItem(ctx, job.ItemID)
	default:
		return fmt.Errorf("job %s has unknown kind %s", job.ID, job.Kind)
	}

	if err != nil {
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.repo.MarkCompleted(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}
	return nil
}

// handleJobFailure retries with fixed backoff until the retry budget is
// exhausted, then fails the job and the item together.
func (w *PipelineWorker) handleJobFailure(ctx context.Context, job *domain.Job, jobErr error) error {
	if errors.Is(jobErr, domain.ErrItemAlreadyClaimed) {
		// Another job already owns the item; this one is redundant.
		log.Printf("Job %s skipped: %v", job.ID, jobErr)
		return w.repo.MarkCompleted(ctx, job.ID)
	}

	if job.Retries+1 >= domain.JobMaxRetries {
		log.Printf("Job %s exceeded max retries (%d), marking as failed", job.ID, domain.JobMaxRetries)
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.repo.MarkFailed(ctx, job.ID, errMsg); err != nil {
			return fmt.Errorf("failed to mark job failed: %w", err)
		}
		if err := w.pipeline.MarkFailed(ctx, job.ItemID, jobErr.Error()); err != nil {
			return fmt.Errorf("failed to mark item failed: %w", err)
		}
		return nil
	}

	log.Printf("Job %s will be retried (attempt %d/%d)", job.ID, job.Retries+1, domain.JobMaxRetries)
	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	next := time.Now().UTC().Add(domain.JobRetryBackoff)
	if err := w.repo.Reschedule(ctx, job.ID, errMsg, next); err != nil {
		return fmt.Errorf("failed to reschedule job: %w", err)
	}
	return nil
}
