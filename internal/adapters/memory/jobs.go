package memory

import (
	"context"
	"fmt"

	"signdesk/internal/ports"
)

type jobStatus string

const (
	jobQueued    jobStatus = "queued"
	jobRunning   jobStatus = "running"
	jobCompleted jobStatus = "completed"
	jobFailed    jobStatus = "failed"
)

type job struct {
	id         string
	documentID string
	status     jobStatus
	attempts   int
	lastError  string
}

// ClaimNext hands out the oldest queued job and marks it running.
func (s *Store) ClaimNext(ctx context.Context) (ports.BakeJob, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.status == jobQueued {
			j.status = jobRunning
			j.attempts++
			return ports.BakeJob{ID: j.id, DocumentID: j.documentID, Attempts: j.attempts}, true, nil
		}
	}
	return ports.BakeJob{}, false, nil
}

func (s *Store) MarkCompleted(ctx context.Context, jobID string) error {
	return s.setJob(jobID, jobCompleted, "")
}

func (s *Store) MarkFailed(ctx context.Context, jobID string, reason string) error {
	return s.setJob(jobID, jobFailed, reason)
}

func (s *Store) Requeue(ctx context.Context, jobID string) error {
	return s.setJob(jobID, jobQueued, "")
}

// StartJobForDocument claims the queued job of one document.
func (s *Store) StartJobForDocument(ctx context.Context, documentID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.documentID == documentID && j.status == jobQueued {
			j.status = jobRunning
			j.attempts++
			return j.id, nil
		}
	}
	return "", fmt.Errorf("queued job for document %s: %w", documentID, ports.ErrNotFound)
}

// PendingJobs counts queued jobs.
func (s *Store) PendingJobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, j := range s.jobs {
		if j.status == jobQueued {
			n++
		}
	}
	return n
}

func (s *Store) setJob(id string, st jobStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.id == id {
			j.status = st
			j.lastError = reason
			return nil
		}
	}
	return ports.ErrNotFound
}
