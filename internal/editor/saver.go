package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"signdesk/internal/domain"
)

// ErrSuperseded is returned by a save that a newer save for the same key
// replaced before it started writing.
var ErrSuperseded = errors.New("save superseded by a newer save")

// PersistenceError is returned once every save attempt failed.
type PersistenceError struct {
	Key      string
	Attempts int
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s failed after %d attempts: %v", e.Key, e.Attempts, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// PersistFunc writes a field set to storage.
type PersistFunc func(ctx context.Context, fields []domain.Field) error

// Saver runs explicit saves keyed by document page. A save issued while an
// older one for the same key is still waiting wins: the older one returns
// ErrSuperseded without writing. A save that already started writing is
// never interrupted.
type Saver struct {
	// Retryable decides whether a failed attempt is worth repeating. Nil
	// retries every error except ErrSuperseded and context errors.
	Retryable func(error) bool

	maxRetries uint64
	base       time.Duration

	mu     sync.Mutex
	seq    uint64
	issued map[string]uint64
}

func NewSaver(maxRetries int, base time.Duration) *Saver {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if base <= 0 {
		base = 50 * time.Millisecond
	}
	return &Saver{
		maxRetries: uint64(maxRetries),
		base:       base,
		issued:     make(map[string]uint64),
	}
}

// SaveKey is the supersession key for one page of one document.
func SaveKey(documentID string, page int) string {
	return fmt.Sprintf("%s/%d", documentID, page)
}

// Save persists fields under key with bounded retries.
func (s *Saver) Save(ctx context.Context, key string, fields []domain.Field, persist PersistFunc) error {
	ticket := s.issue(key)
	defer s.release(key, ticket)

	snapshot := make([]domain.Field, len(fields))
	copy(snapshot, fields)

	attempts := 0
	transient := false
	b := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.base))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if !s.current(key, ticket) {
			transient = false
			return ErrSuperseded
		}
		attempts++
		err := persist(ctx, snapshot)
		transient = err != nil && s.retryable(err)
		if transient {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && transient {
		return &PersistenceError{Key: key, Attempts: attempts, Err: err}
	}
	return err
}

func (s *Saver) retryable(err error) bool {
	if errors.Is(err, ErrSuperseded) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if s.Retryable != nil {
		return s.Retryable(err)
	}
	return true
}

func (s *Saver) issue(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.issued[key] = s.seq
	return s.seq
}

func (s *Saver) current(key string, ticket uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issued[key] == ticket
}

func (s *Saver) release(key string, ticket uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.issued[key] == ticket {
		delete(s.issued, key)
	}
}
