package bakerunner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"signdesk/internal/ports"
)

// Processor performs the bake for a job's document and records terminal
// failure on it.
type Processor interface {
	Process(ctx context.Context, documentID string) error
	Fail(ctx context.Context, documentID string, cause error) error
}

type Options struct {
	Concurrency  int
	PollInterval time.Duration
	// MaxRetries bounds extra attempts of a job inside one claim.
	MaxRetries uint64
	Backoff    time.Duration
	// Retryable classifies Process errors. Nil retries everything except
	// context errors.
	Retryable func(error) bool
	Log       *slog.Logger
}

func (o *Options) defaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
	if o.Backoff <= 0 {
		o.Backoff = 200 * time.Millisecond
	}
	if o.Log == nil {
		o.Log = slog.Default()
	}
}

// Run starts a dispatcher that claims queued jobs and Concurrency workers
// that process them. It returns when ctx is done and every worker has
// finished its current job.
func Run(ctx context.Context, repo ports.JobRepository, processor Processor, opts Options) {
	opts.defaults()
	if opts.Concurrency < 1 {
		return
	}
	jobsCh := make(chan ports.BakeJob, opts.Concurrency)

	// dispatcher loop
	go func() {
		defer close(jobsCh)
		ticker := time.NewTicker(opts.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for {
					job, found, err := repo.ClaimNext(ctx)
					if err != nil {
						if ctx.Err() == nil {
							opts.Log.Error("job claim error", "error", err)
						}
						break
					}
					if !found {
						break
					}
					select {
					case jobsCh <- job:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < opts.Concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			log := opts.Log.With("worker", idx)
			for job := range jobsCh {
				handle(ctx, repo, processor, opts, log, job)
			}
		}(i)
	}
	wg.Wait()
}

func handle(ctx context.Context, repo ports.JobRepository, processor Processor, opts Options, log *slog.Logger, job ports.BakeJob) {
	log = log.With("job_id", job.ID, "document_id", job.DocumentID, "attempt", job.Attempts)
	err := process(ctx, processor, opts, job.DocumentID)
	// Bookkeeping survives shutdown so a claimed job never stays running.
	bg := context.WithoutCancel(ctx)
	if err != nil && ctx.Err() != nil && isContextErr(err) {
		// Shutdown interrupted the bake; the document stays processing and
		// the next worker picks the job up again.
		log.Warn("bake job interrupted, requeued", "error", err)
		if rerr := repo.Requeue(bg, job.ID); rerr != nil {
			log.Error("requeue job", "error", rerr)
		}
		return
	}
	if err != nil {
		log.Error("bake job failed", "error", err)
		if ferr := processor.Fail(bg, job.DocumentID, err); ferr != nil {
			log.Error("recording bake failure", "error", ferr)
		}
		if merr := repo.MarkFailed(bg, job.ID, err.Error()); merr != nil {
			log.Error("mark job failed", "error", merr)
		}
		return
	}
	if err := repo.MarkCompleted(bg, job.ID); err != nil {
		log.Error("mark job completed", "error", err)
		return
	}
	log.Info("bake job completed")
}

func process(ctx context.Context, processor Processor, opts Options, documentID string) error {
	b := retry.WithMaxRetries(opts.MaxRetries, retry.NewExponential(opts.Backoff))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := processor.Process(ctx, documentID)
		if err == nil || !retryable(opts, err) {
			return err
		}
		return retry.RetryableError(err)
	})
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func retryable(opts Options, err error) bool {
	if isContextErr(err) {
		return false
	}
	if opts.Retryable != nil {
		return opts.Retryable(err)
	}
	return true
}

// ProcessInline starts and processes the queued bake for one document with
// the same processor logic as the background workers. The bake runs detached
// from ctx: when ctx ends first ProcessInline returns ctx.Err() and the bake
// still runs to completion in the background.
func ProcessInline(ctx context.Context, repo ports.JobRepository, processor Processor, opts Options, documentID string) error {
	opts.defaults()
	bg := context.WithoutCancel(ctx)
	jobID, err := repo.StartJobForDocument(bg, documentID)
	if err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- finishInline(bg, repo, processor, opts, jobID, documentID) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		opts.Log.Warn("inline bake outlived its caller, finishing in background", "document_id", documentID, "job_id", jobID)
		return ctx.Err()
	}
}

func finishInline(ctx context.Context, repo ports.JobRepository, processor Processor, opts Options, jobID, documentID string) error {
	if err := process(ctx, processor, opts, documentID); err != nil {
		if ferr := processor.Fail(ctx, documentID, err); ferr != nil {
			opts.Log.Error("recording bake failure", "document_id", documentID, "error", ferr)
		}
		if merr := repo.MarkFailed(ctx, jobID, err.Error()); merr != nil {
			opts.Log.Error("mark job failed", "job_id", jobID, "error", merr)
		}
		return err
	}
	return repo.MarkCompleted(ctx, jobID)
}
