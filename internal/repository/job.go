package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/leadline/internal/domain"
)

var ErrJobNotFound = errors.New("job not found")

type JobRepository struct {
	db dbtx
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{db: pool}
}

func NewJobRepositoryWithTx(tx pgx.Tx) *JobRepository {
	return &JobRepository{db: tx}
}

func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO jobs (id, kind, item_id, status, retries, error, next_attempt_at, created_at, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, job.Kind, job.ItemID, job.Status, job.Retries, nullableString(job.Error), job.NextAttemptAt, job.CreatedAt, job.ProcessedAt,
	)
	return err
}

func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, kind, item_id, status, retries, error, next_attempt_at, created_at, processed_at
		 FROM jobs WHERE id = $1`,
		id,
	)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// ClaimDue atomically moves due pending jobs of one kind to processing.
// SKIP LOCKED keeps concurrent workers from claiming the same rows.
func (r *JobRepository) ClaimDue(ctx context.Context, kind domain.JobKind, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`WITH cte AS (
			 SELECT id
			 FROM jobs
			 WHERE kind = $1 AND status = $2 AND next_attempt_at <= $3
			 ORDER BY created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $4
		 )
		 UPDATE jobs
		 SET status = $5,
		     error = NULL,
		     processed_at = NULL
		 FROM cte
		 WHERE jobs.id = cte.id
		 RETURNING jobs.id, jobs.kind, jobs.item_id, jobs.status, jobs.retries, jobs.error,
		           jobs.next_attempt_at, jobs.created_at, jobs.processed_at`,
		kind, domain.JobStatusPending, time.Now().UTC(), limit, domain.JobStatusProcessing,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *JobRepository) MarkCompleted(ctx context.Context, id string) error {
	return r.finish(ctx, id, domain.JobStatusCompleted, "")
}

func (r *JobRepository) MarkFailed(ctx context.Context, id, errMsg string) error {
	return r.finish(ctx, id, domain.JobStatusFailed, errMsg)
}

func (r *JobRepository) finish(ctx context.Context, id string, status domain.JobStatus, errMsg string) error {
	now := time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE jobs SET status = $1, error = $2, processed_at = $3 WHERE id = $4`,
		status, nullableString(errMsg), now, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// Reschedule returns a job to pending with one more retry on the clock and a
// deferred next attempt.
func (r *JobRepository) Reschedule(ctx context.Context, id, errMsg string, nextAttemptAt time.Time) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE jobs SET status = $1, retries = retries + 1, error = $2, next_attempt_at = $3, processed_at = NULL
		 WHERE id = $4`,
		domain.JobStatusPending, nullableString(errMsg), nextAttemptAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var errMsg pgtype.Text
	if err := row.Scan(&job.ID, &job.Kind, &job.ItemID, &job.Status, &job.Retries, &errMsg, &job.NextAttemptAt, &job.CreatedAt, &job.ProcessedAt); err != nil {
		return nil, err
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	return &job, nil
}
