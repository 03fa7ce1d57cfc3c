// Package memory is an in-process implementation of the repository ports,
// used for local runs without Postgres and as the test store.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"

	"signdesk/internal/domain"
	"signdesk/internal/ports"
)

type record struct {
	doc        domain.Document
	recipients []domain.Recipient
	fields     []domain.Field
	audit      []domain.AuditEntry
}

func (r *record) clone() *record {
	return &record{
		doc:        cloneDoc(r.doc),
		recipients: slices.Clone(r.recipients),
		fields:     slices.Clone(r.fields),
		audit:      slices.Clone(r.audit),
	}
}

func cloneDoc(d domain.Document) domain.Document {
	d.Pages = slices.Clone(d.Pages)
	return d
}

// Store keeps documents and bake jobs in memory. Each document has its own
// lock; WithDocumentLock stages writes on a copy and swaps it in on success.
type Store struct {
	mu    sync.Mutex
	docs  map[string]*record
	locks map[string]chan struct{}
	order []string

	jobs  []*job
	newID func() string
}

func New() *Store {
	return &Store{
		docs:  make(map[string]*record),
		locks: make(map[string]chan struct{}),
		newID: uuid.NewString,
	}
}

var (
	_ ports.DocumentRepository = (*Store)(nil)
	_ ports.JobRepository      = (*Store)(nil)
)

func (s *Store) CreateDocument(ctx context.Context, doc domain.Document, entry domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc.ID]; ok {
		return fmt.Errorf("document %s already exists", doc.ID)
	}
	s.docs[doc.ID] = &record{doc: cloneDoc(doc), audit: []domain.AuditEntry{entry}}
	s.locks[doc.ID] = make(chan struct{}, 1)
	s.order = append(s.order, doc.ID)
	return nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.docs[id]
	if !ok {
		return domain.Document{}, ports.ErrNotFound
	}
	return cloneDoc(rec.doc), nil
}

func (s *Store) ListDocuments(ctx context.Context, ownerID string, includeArchived bool) ([]domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Document
	for _, id := range s.order {
		d := s.docs[id].doc
		if ownerID != "" && d.OwnerID != ownerID {
			continue
		}
		if d.Status == domain.StatusArchived && !includeArchived {
			continue
		}
		out = append(out, cloneDoc(d))
	}
	return out, nil
}

func (s *Store) ListRecipients(ctx context.Context, documentID string) ([]domain.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.docs[documentID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return sortedRecipients(rec.recipients), nil
}

func (s *Store) ListFields(ctx context.Context, documentID string, page int) ([]domain.Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.docs[documentID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return pageFields(rec.fields, page), nil
}

func (s *Store) AuditTrail(ctx context.Context, documentID string) ([]domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.docs[documentID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return slices.Clone(rec.audit), nil
}

// WithDocumentLock waits for the document's lock or ctx, whichever first.
func (s *Store) WithDocumentLock(ctx context.Context, documentID string, fn func(ctx context.Context, tx ports.DocumentTx) error) error {
	s.mu.Lock()
	lock, ok := s.locks[documentID]
	s.mu.Unlock()
	if !ok {
		return ports.ErrNotFound
	}

	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-lock }()

	s.mu.Lock()
	staged := s.docs[documentID].clone()
	s.mu.Unlock()

	tx := &docTx{store: s, rec: staged, locked: cloneDoc(staged.doc)}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[documentID] = staged
	s.jobs = append(s.jobs, tx.jobs...)
	return nil
}

type docTx struct {
	store  *Store
	rec    *record
	locked domain.Document
	jobs   []*job
}

func (t *docTx) Document() domain.Document { return cloneDoc(t.locked) }

func (t *docTx) Recipients(ctx context.Context) ([]domain.Recipient, error) {
	return sortedRecipients(t.rec.recipients), nil
}

func (t *docTx) Fields(ctx context.Context, page int) ([]domain.Field, error) {
	return pageFields(t.rec.fields, page), nil
}

func (t *docTx) UpdateDocument(ctx context.Context, doc domain.Document) error {
	if doc.ID != t.rec.doc.ID {
		return fmt.Errorf("update of %s inside lock for %s", doc.ID, t.rec.doc.ID)
	}
	t.rec.doc = cloneDoc(doc)
	return nil
}

func (t *docTx) InsertRecipient(ctx context.Context, r domain.Recipient) error {
	for _, cur := range t.rec.recipients {
		if cur.ID == r.ID {
			return fmt.Errorf("recipient %s already exists", r.ID)
		}
	}
	t.rec.recipients = append(t.rec.recipients, r)
	return nil
}

func (t *docTx) UpdateRecipient(ctx context.Context, r domain.Recipient) error {
	for i := range t.rec.recipients {
		if t.rec.recipients[i].ID == r.ID {
			t.rec.recipients[i] = r
			return nil
		}
	}
	return ports.ErrNotFound
}

func (t *docTx) ReplacePageFields(ctx context.Context, page int, fields []domain.Field) error {
	kept := t.rec.fields[:0:0]
	for _, f := range t.rec.fields {
		if f.Page != page {
			kept = append(kept, f)
		}
	}
	t.rec.fields = append(kept, fields...)
	return nil
}

func (t *docTx) UpdateFieldValues(ctx context.Context, fields []domain.Field) error {
	for _, f := range fields {
		found := false
		for i := range t.rec.fields {
			if t.rec.fields[i].ID == f.ID {
				t.rec.fields[i].Value = f.Value
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("field %s: %w", f.ID, ports.ErrNotFound)
		}
	}
	return nil
}

func (t *docTx) AppendAudit(ctx context.Context, entry domain.AuditEntry) error {
	t.rec.audit = append(t.rec.audit, entry)
	return nil
}

func (t *docTx) EnqueueBake(ctx context.Context) (string, error) {
	j := &job{id: t.store.newID(), documentID: t.rec.doc.ID, status: jobQueued}
	t.jobs = append(t.jobs, j)
	return j.id, nil
}

func sortedRecipients(rs []domain.Recipient) []domain.Recipient {
	out := slices.Clone(rs)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SigningOrder != out[j].SigningOrder {
			return out[i].SigningOrder < out[j].SigningOrder
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func pageFields(fs []domain.Field, page int) []domain.Field {
	var out []domain.Field
	for _, f := range fs {
		if page == 0 || f.Page == page {
			out = append(out, f)
		}
	}
	return out
}
