package ports

import "context"

type BakeJob struct {
	ID         string
	DocumentID string
	Attempts   int
}

// JobRepository supports claiming and updating bake jobs.
type JobRepository interface {
	ClaimNext(ctx context.Context) (job BakeJob, found bool, err error)
	MarkCompleted(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID string, reason string) error
	// Requeue hands a running job back to the queue untouched, for bakes
	// interrupted by shutdown.
	Requeue(ctx context.Context, jobID string) error
	StartJobForDocument(ctx context.Context, documentID string) (jobID string, err error)
}
