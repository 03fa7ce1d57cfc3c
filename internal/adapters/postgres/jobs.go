package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"signdesk/internal/ports"
)

var _ ports.JobRepository = (*DB)(nil)

// ClaimNext selects the next queued job using SKIP LOCKED and marks it running.
// A job left running longer than JobLease belongs to a worker that died and
// is claimed again.
func (db *DB) ClaimNext(ctx context.Context) (job ports.BakeJob, found bool, err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return job, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	err = tx.QueryRow(ctx, `
		SELECT id, document_id FROM bake_jobs
		WHERE status = 'queued'
			OR (status = 'running' AND started_at < now() - make_interval(secs => $1::double precision))
		ORDER BY queued_at
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`, db.lease().Seconds()).Scan(&job.ID, &job.DocumentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return job, false, nil
	}
	if err != nil {
		return job, false, err
	}

	if err = tx.QueryRow(ctx, `
		UPDATE bake_jobs SET status='running', started_at=now(), attempts=attempts+1
		WHERE id=$1
		RETURNING attempts
	`, job.ID).Scan(&job.Attempts); err != nil {
		return job, false, err
	}
	return job, true, nil
}

func (db *DB) MarkCompleted(ctx context.Context, jobID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.finishJob(ctx, jobID, "completed", "")
}

func (db *DB) MarkFailed(ctx context.Context, jobID string, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.finishJob(ctx, jobID, "failed", reason)
}

func (db *DB) Requeue(ctx context.Context, jobID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tag, err := db.Pool.Exec(ctx, `
		UPDATE bake_jobs SET status='queued', started_at=NULL WHERE id=$1 AND status='running'
	`, jobID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("running bake job %s: %w", jobID, ports.ErrNotFound)
	}
	return nil
}

func (db *DB) finishJob(ctx context.Context, jobID, status, reason string) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE bake_jobs SET status=$2, last_error=$3, finished_at=now() WHERE id=$1
	`, jobID, status, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("bake job %s: %w", jobID, ports.ErrNotFound)
	}
	return nil
}

// StartJobForDocument marks the queued job for a specific document as running
// and returns the job id.
func (db *DB) StartJobForDocument(ctx context.Context, documentID string) (jobID string, err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	err = tx.QueryRow(ctx, `
		SELECT id FROM bake_jobs
		WHERE document_id = $1 AND status = 'queued'
		ORDER BY queued_at
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`, documentID).Scan(&jobID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("queued job for document %s: %w", documentID, ports.ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	if _, err = tx.Exec(ctx, `UPDATE bake_jobs SET status='running', started_at=now(), attempts=attempts+1 WHERE id=$1`, jobID); err != nil {
		return "", err
	}
	return jobID, nil
}
