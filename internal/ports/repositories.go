package ports

import (
	"context"
	"errors"

	"signdesk/internal/domain"
)

// ErrNotFound is returned by repositories when a row does not exist.
var ErrNotFound = errors.New("not found")

// DocumentTx is the view of one document held under its lock. Every write
// made through it commits or rolls back together.
type DocumentTx interface {
	// Document is the locked document as read when the lock was taken.
	Document() domain.Document
	Recipients(ctx context.Context) ([]domain.Recipient, error)
	// Fields returns the fields on page, or every field when page is 0.
	Fields(ctx context.Context, page int) ([]domain.Field, error)

	UpdateDocument(ctx context.Context, doc domain.Document) error
	InsertRecipient(ctx context.Context, r domain.Recipient) error
	UpdateRecipient(ctx context.Context, r domain.Recipient) error
	ReplacePageFields(ctx context.Context, page int, fields []domain.Field) error
	UpdateFieldValues(ctx context.Context, fields []domain.Field) error
	AppendAudit(ctx context.Context, entry domain.AuditEntry) error
	EnqueueBake(ctx context.Context) (jobID string, err error)
}

// DocumentRepository stores documents, their recipients, fields and audit
// trail. Mutations go through WithDocumentLock so they serialize per document.
type DocumentRepository interface {
	CreateDocument(ctx context.Context, doc domain.Document, entry domain.AuditEntry) error
	GetDocument(ctx context.Context, id string) (domain.Document, error)
	ListDocuments(ctx context.Context, ownerID string, includeArchived bool) ([]domain.Document, error)
	ListRecipients(ctx context.Context, documentID string) ([]domain.Recipient, error)
	ListFields(ctx context.Context, documentID string, page int) ([]domain.Field, error)
	// AuditTrail returns entries oldest first.
	AuditTrail(ctx context.Context, documentID string) ([]domain.AuditEntry, error)

	// WithDocumentLock runs fn holding the document's lock. An error from fn
	// discards every write made through tx.
	WithDocumentLock(ctx context.Context, documentID string, fn func(ctx context.Context, tx DocumentTx) error) error
}
