// Package documents is the application service: it owns the document
// lifecycle, routes field edits through the editor engine, gates signing on
// eligibility and drives the status machine. Every mutation runs under the
// document's lock and appends exactly one audit entry per state change.
package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"signdesk/internal/certificate"
	"signdesk/internal/domain"
	"signdesk/internal/editor"
	"signdesk/internal/fieldtype"
	"signdesk/internal/ports"
	"signdesk/internal/render"
	"signdesk/internal/workflow"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrReadOnly     = errors.New("document is read-only")
	ErrPrecondition = errors.New("precondition failed")
	ErrInvalid      = errors.New("invalid input")
)

type Options struct {
	Clock       clockwork.Clock
	Log         *slog.Logger
	SaveRetries int
	SaveBackoff time.Duration
	ArtifactTTL time.Duration
}

type Service struct {
	repo      ports.DocumentRepository
	artifacts ports.ArtifactStore
	baker     *render.Baker
	saver     *editor.Saver
	clock     clockwork.Clock
	log       *slog.Logger
	ttl       time.Duration
}

func New(repo ports.DocumentRepository, artifacts ports.ArtifactStore, baker *render.Baker, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.ArtifactTTL <= 0 {
		opts.ArtifactTTL = 24 * time.Hour
	}
	saver := editor.NewSaver(opts.SaveRetries, opts.SaveBackoff)
	saver.Retryable = Transient
	return &Service{
		repo:      repo,
		artifacts: artifacts,
		baker:     baker,
		saver:     saver,
		clock:     opts.Clock,
		log:       opts.Log,
		ttl:       opts.ArtifactTTL,
	}
}

// Transient reports whether err may succeed on a later attempt. Domain
// rejections never do.
func Transient(err error) bool {
	var (
		elig *workflow.EligibilityError
		tr   *workflow.TransitionError
		div  *render.DivergenceError
		unk  fieldtype.ErrUnknown
	)
	switch {
	case err == nil,
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrReadOnly),
		errors.Is(err, ErrPrecondition),
		errors.Is(err, ErrInvalid),
		errors.Is(err, ErrStaleJob),
		errors.Is(err, ports.ErrNotFound),
		errors.Is(err, editor.ErrSuperseded),
		errors.Is(err, editor.ErrFieldNotFound),
		errors.Is(err, editor.ErrInvalidPage),
		errors.As(err, &elig),
		errors.As(err, &tr),
		errors.As(err, &div),
		errors.As(err, &unk):
		return false
	}
	return true
}

type CreateInput struct {
	OwnerID string `json:"ownerId"`
	Title   string `json:"title"`
}

// Create starts a draft with a single letter page; AttachSource replaces the
// page list with the uploaded PDF's.
func (s *Service) Create(ctx context.Context, in CreateInput, actor domain.Actor) (domain.Document, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Document{}, fmt.Errorf("%w: title is required", ErrInvalid)
	}
	owner := in.OwnerID
	if owner == "" {
		owner = actor.ID
	}
	now := s.clock.Now().UTC()
	doc := domain.Document{
		ID:        uuid.NewString(),
		OwnerID:   owner,
		Title:     title,
		Status:    domain.StatusDraft,
		Pages:     []domain.PageSize{domain.LetterPage},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	entry := workflow.NewEntry(doc.ID, domain.ActionCreated, actor, now, fmt.Sprintf("created %q", title))
	if err := s.repo.CreateDocument(ctx, doc, entry); err != nil {
		return domain.Document{}, err
	}
	s.log.Info("document created", "document_id", doc.ID, "owner_id", owner)
	return doc, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Document, error) {
	doc, err := s.repo.GetDocument(ctx, id)
	return doc, s.notFound(err, "document", id)
}

func (s *Service) List(ctx context.Context, ownerID string, includeArchived bool) ([]domain.Document, error) {
	return s.repo.ListDocuments(ctx, ownerID, includeArchived)
}

func (s *Service) Recipients(ctx context.Context, documentID string) ([]domain.Recipient, error) {
	rs, err := s.repo.ListRecipients(ctx, documentID)
	return rs, s.notFound(err, "document", documentID)
}

// AuditTrail returns the document's entries oldest first.
func (s *Service) AuditTrail(ctx context.Context, documentID string) ([]domain.AuditEntry, error) {
	trail, err := s.repo.AuditTrail(ctx, documentID)
	return trail, s.notFound(err, "document", documentID)
}

// Certificate renders the completion certificate as HTML.
func (s *Service) Certificate(ctx context.Context, documentID string) ([]byte, error) {
	doc, err := s.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	rs, err := s.Recipients(ctx, documentID)
	if err != nil {
		return nil, err
	}
	trail, err := s.AuditTrail(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return certificate.HTML(doc, rs, trail)
}

// AttachSource stores the source PDF and adopts its page sizes.
func (s *Service) AttachSource(ctx context.Context, documentID string, pdf []byte, actor domain.Actor) (domain.Document, error) {
	sizes, err := render.PageSizes(pdf)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	key := fmt.Sprintf("documents/%s/source.pdf", documentID)
	if _, err := s.Get(ctx, documentID); err != nil {
		return domain.Document{}, err
	}
	if err := s.artifacts.Put(ctx, key, "application/pdf", pdf); err != nil {
		return domain.Document{}, fmt.Errorf("store source: %w", err)
	}

	var out domain.Document
	err = s.locked(ctx, documentID, func(ctx context.Context, tx ports.DocumentTx) error {
		doc := tx.Document()
		if err := requireDraft(doc, "replace the source"); err != nil {
			return err
		}
		fields, err := tx.Fields(ctx, 0)
		if err != nil {
			return err
		}
		for _, f := range fields {
			if f.Page > len(sizes) {
				return fmt.Errorf("%w: field %s is on page %d but the new source has %d pages", ErrPrecondition, f.ID, f.Page, len(sizes))
			}
		}
		now := s.clock.Now().UTC()
		doc.Pages = sizes
		doc.SourceKey = key
		touch(&doc, now)
		if err := tx.UpdateDocument(ctx, doc); err != nil {
			return err
		}
		out = doc
		return tx.AppendAudit(ctx, workflow.NewEntry(doc.ID, domain.ActionUpdated, actor, now, fmt.Sprintf("source uploaded (%d pages)", len(sizes))))
	})
	return out, err
}

type RecipientInput struct {
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	Role         domain.Role `json:"role"`
	SigningOrder int         `json:"signingOrder"`
}

func (in RecipientInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: recipient name is required", ErrInvalid)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return fmt.Errorf("%w: recipient email %q: %v", ErrInvalid, in.Email, err)
	}
	if in.SigningOrder < 1 {
		return fmt.Errorf("%w: signing order must be at least 1", ErrInvalid)
	}
	switch in.Role {
	case "", domain.RoleSigner, domain.RoleApprover, domain.RoleViewer:
		return nil
	}
	return fmt.Errorf("%w: unknown role %q", ErrInvalid, in.Role)
}

// AddRecipient adds a recipient to a draft.
func (s *Service) AddRecipient(ctx context.Context, documentID string, in RecipientInput, actor domain.Actor) (domain.Recipient, error) {
	if err := in.validate(); err != nil {
		return domain.Recipient{}, err
	}
	role := in.Role
	if role == "" {
		role = domain.RoleSigner
	}
	r := domain.Recipient{
		ID:              uuid.NewString(),
		DocumentID:      documentID,
		Name:            strings.TrimSpace(in.Name),
		Email:           strings.TrimSpace(in.Email),
		Role:            role,
		SigningOrder:    in.SigningOrder,
		SignatureStatus: domain.SignaturePending,
	}
	err := s.locked(ctx, documentID, func(ctx context.Context, tx ports.DocumentTx) error {
		doc := tx.Document()
		if err := requireDraft(doc, "add recipients"); err != nil {
			return err
		}
		if err := tx.InsertRecipient(ctx, r); err != nil {
			return err
		}
		now := s.clock.Now().UTC()
		touch(&doc, now)
		if err := tx.UpdateDocument(ctx, doc); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, workflow.NewEntry(doc.ID, domain.ActionRecipientAdded, actor, now,
			fmt.Sprintf("%s <%s> added as %s, order %d", r.Name, r.Email, r.Role, r.SigningOrder)))
	})
	return r, err
}

// TransitionStatus moves a document along one edge of the status graph.
// Edges with side effects check their preconditions here: sending needs an
// obligated recipient, processing needs every signature and queues a bake,
// final needs a baked artifact, a manual fail needs a decline.
func (s *Service) TransitionStatus(ctx context.Context, documentID string, to domain.DocumentStatus, actor domain.Actor) (domain.Document, error) {
	if !to.Valid() {
		return domain.Document{}, fmt.Errorf("%w: unknown status %q", ErrInvalid, to)
	}
	ctx = context.WithoutCancel(ctx)

	var out domain.Document
	err := s.locked(ctx, documentID, func(ctx context.Context, tx ports.DocumentTx) error {
		doc := tx.Document()
		if workflow.ReadOnly(doc.Status) {
			return fmt.Errorf("%w: %s", ErrReadOnly, doc.ID)
		}
		if !workflow.CanTransition(doc.Status, to) {
			return &workflow.TransitionError{From: doc.Status, To: to}
		}
		rs, err := tx.Recipients(ctx)
		if err != nil {
			return err
		}
		if err := transitionGuard(doc, to, rs); err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		entry, err := workflow.Transition(&doc, to, actor, now, "")
		if err != nil {
			return err
		}
		if to == domain.StatusProcessing {
			doc.ArtifactKey, doc.ArtifactURL = "", ""
		}
		if err := tx.UpdateDocument(ctx, doc); err != nil {
			return err
		}
		if err := tx.AppendAudit(ctx, entry); err != nil {
			return err
		}
		if to == domain.StatusProcessing {
			if _, err := tx.EnqueueBake(ctx); err != nil {
				return err
			}
		}
		out = doc
		return nil
	})
	if err != nil {
		var te *workflow.TransitionError
		if errors.As(err, &te) {
			s.log.Warn("rejected status transition", "document_id", documentID, "from", te.From, "to", te.To, "actor_id", actor.ID)
		}
		return domain.Document{}, err
	}
	s.log.Info("document status changed", "document_id", documentID, "status", out.Status, "version", out.Version)
	return out, nil
}

func transitionGuard(doc domain.Document, to domain.DocumentStatus, rs []domain.Recipient) error {
	switch {
	case to == domain.StatusActive:
		for _, r := range rs {
			if r.Role.Obligated() {
				return nil
			}
		}
		return fmt.Errorf("%w: a document needs at least one signer before it is sent", ErrPrecondition)
	case doc.Status == domain.StatusActive && to == domain.StatusProcessing:
		if !workflow.AllSigned(rs) {
			return fmt.Errorf("%w: not every signer has signed", ErrPrecondition)
		}
	case doc.Status == domain.StatusActive && to == domain.StatusFailed:
		for _, r := range rs {
			if r.SignatureStatus == domain.SignatureDeclined {
				return nil
			}
		}
		return fmt.Errorf("%w: no recipient has declined", ErrPrecondition)
	case to == domain.StatusFinal:
		if doc.ArtifactKey == "" {
			return fmt.Errorf("%w: no baked artifact", ErrPrecondition)
		}
	}
	return nil
}

// locked runs fn under the document lock and maps a missing document.
func (s *Service) locked(ctx context.Context, documentID string, fn func(ctx context.Context, tx ports.DocumentTx) error) error {
	err := s.repo.WithDocumentLock(ctx, documentID, fn)
	return s.notFound(err, "document", documentID)
}

func (s *Service) notFound(err error, kind, id string) error {
	if errors.Is(err, ports.ErrNotFound) && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	return err
}

func requireDraft(doc domain.Document, what string) error {
	if workflow.ReadOnly(doc.Status) {
		return fmt.Errorf("%w: %s", ErrReadOnly, doc.ID)
	}
	if doc.Status != domain.StatusDraft {
		return fmt.Errorf("%w: cannot %s while %s", ErrPrecondition, what, doc.Status)
	}
	return nil
}

// touch records a non-status mutation.
func touch(doc *domain.Document, now time.Time) {
	doc.Version++
	doc.UpdatedAt = now
}
