package memory

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"sync"
	"time"

	"signdesk/internal/ports"
)

// Artifacts is an in-memory ArtifactStore.
type Artifacts struct {
	mu      sync.RWMutex
	objects map[string]object
	now     func() time.Time
}

type object struct {
	contentType string
	data        []byte
}

func NewArtifacts() *Artifacts {
	return &Artifacts{objects: make(map[string]object), now: time.Now}
}

var _ ports.ArtifactStore = (*Artifacts)(nil)

func (a *Artifacts) Put(ctx context.Context, key, contentType string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.objects[key] = object{contentType: contentType, data: slices.Clone(data)}
	return nil
}

func (a *Artifacts) Get(ctx context.Context, key string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	o, ok := a.objects[key]
	if !ok {
		return nil, fmt.Errorf("artifact %s: %w", key, ports.ErrNotFound)
	}
	return slices.Clone(o.data), nil
}

func (a *Artifacts) URL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	a.mu.RLock()
	_, ok := a.objects[key]
	a.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("artifact %s: %w", key, ports.ErrNotFound)
	}
	u := url.URL{Scheme: "memory", Path: "/" + key}
	q := url.Values{}
	q.Set("expires", a.now().Add(ttl).UTC().Format(time.RFC3339))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Keys lists stored keys in sorted order.
func (a *Artifacts) Keys() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	keys := make([]string, 0, len(a.objects))
	for k := range a.objects {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
