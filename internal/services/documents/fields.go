package documents

import (
	"context"
	"errors"
	"fmt"

	"signdesk/internal/domain"
	"signdesk/internal/editor"
	"signdesk/internal/geometry"
	"signdesk/internal/ports"
	"signdesk/internal/workflow"
)

// Fields lists the fields on page, or every field when page is 0.
func (s *Service) Fields(ctx context.Context, documentID string, page int) ([]domain.Field, error) {
	fs, err := s.repo.ListFields(ctx, documentID, page)
	return fs, s.notFound(err, "document", documentID)
}

// SaveFields replaces the field set of one page. Incoming fields are
// normalized the way the editor would: unknown types and pages are rejected,
// sizes default and clamp. A newer save of the same page supersedes this one
// if it has not started writing; transient storage failures are retried and
// then surface as *editor.PersistenceError.
func (s *Service) SaveFields(ctx context.Context, documentID string, page int, fields []domain.Field, actor domain.Actor) ([]domain.Field, error) {
	doc, err := s.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if err := requireDraft(doc, "edit fields"); err != nil {
		return nil, err
	}

	c := editor.NewCollection(documentID, doc.PageCount(), nil)
	for _, f := range fields {
		if f.Page != 0 && f.Page != page {
			return nil, fmt.Errorf("%w: field %s is for page %d, not %d", ErrInvalid, f.ID, f.Page, page)
		}
		if _, err := c.AddField(page, f); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	normalized := c.Page(page)

	err = s.saver.Save(ctx, editor.SaveKey(documentID, page), normalized, func(ctx context.Context, fs []domain.Field) error {
		return s.persistPage(ctx, documentID, page, fs, actor, fmt.Sprintf("page %d saved (%d fields)", page, len(fs)))
	})
	if err != nil {
		var pe *editor.PersistenceError
		if errors.As(err, &pe) {
			s.log.Error("field save failed", "document_id", documentID, "page", page, "attempts", pe.Attempts, "error", pe.Err)
		}
		return nil, err
	}
	return normalized, nil
}

func (s *Service) persistPage(ctx context.Context, documentID string, page int, fields []domain.Field, actor domain.Actor, details string) error {
	return s.locked(ctx, documentID, func(ctx context.Context, tx ports.DocumentTx) error {
		doc := tx.Document()
		if err := requireDraft(doc, "edit fields"); err != nil {
			return err
		}
		if page < 1 || page > doc.PageCount() {
			return fmt.Errorf("%w: page %d out of range", ErrInvalid, page)
		}
		rs, err := tx.Recipients(ctx)
		if err != nil {
			return err
		}
		known := make(map[string]bool, len(rs))
		for _, r := range rs {
			known[r.ID] = true
		}
		// Field ids are unique per document, not per page. Moving a field to
		// another page means saving its old page without it first.
		stored, err := tx.Fields(ctx, 0)
		if err != nil {
			return err
		}
		elsewhere := make(map[string]int, len(stored))
		for _, f := range stored {
			if f.Page != page {
				elsewhere[f.ID] = f.Page
			}
		}
		for _, f := range fields {
			if f.RecipientID != "" && !known[f.RecipientID] {
				return fmt.Errorf("%w: field %s is assigned to unknown recipient %s", ErrInvalid, f.ID, f.RecipientID)
			}
			if other, ok := elsewhere[f.ID]; ok {
				return fmt.Errorf("%w: field %s already exists on page %d", ErrInvalid, f.ID, other)
			}
		}
		if err := tx.ReplacePageFields(ctx, page, fields); err != nil {
			return err
		}
		now := s.clock.Now().UTC()
		touch(&doc, now)
		if err := tx.UpdateDocument(ctx, doc); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, workflow.NewEntry(doc.ID, domain.ActionUpdated, actor, now, details))
	})
}

// editPage loads one page into a Collection under the lock, applies op and
// writes the page back with one audit entry.
func (s *Service) editPage(ctx context.Context, documentID, fieldID string, actor domain.Actor, op func(c *editor.Collection, anchor domain.Field) (string, error)) ([]domain.Field, error) {
	var out []domain.Field
	err := s.locked(ctx, documentID, func(ctx context.Context, tx ports.DocumentTx) error {
		doc := tx.Document()
		if err := requireDraft(doc, "edit fields"); err != nil {
			return err
		}
		all, err := tx.Fields(ctx, 0)
		if err != nil {
			return err
		}
		c := editor.NewCollection(doc.ID, doc.PageCount(), all)
		anchor, ok := c.Get(fieldID)
		if !ok {
			return fmt.Errorf("%w: field %s", ErrNotFound, fieldID)
		}
		details, err := op(c, anchor)
		if err != nil {
			return err
		}
		out = c.Page(anchor.Page)
		if err := tx.ReplacePageFields(ctx, anchor.Page, out); err != nil {
			return err
		}
		now := s.clock.Now().UTC()
		touch(&doc, now)
		if err := tx.UpdateDocument(ctx, doc); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, workflow.NewEntry(doc.ID, domain.ActionUpdated, actor, now, details))
	})
	return out, err
}

// DuplicateField copies a field next to itself and returns the copy.
func (s *Service) DuplicateField(ctx context.Context, documentID, fieldID string, actor domain.Actor) (domain.Field, error) {
	var dup domain.Field
	_, err := s.editPage(ctx, documentID, fieldID, actor, func(c *editor.Collection, anchor domain.Field) (string, error) {
		var err error
		dup, err = c.DuplicateField(anchor.ID)
		return fmt.Sprintf("field %s duplicated as %s", anchor.ID, dup.ID), err
	})
	return dup, err
}

// AlignFields aligns every other field on the anchor's page and returns the
// page's fields.
func (s *Service) AlignFields(ctx context.Context, documentID, anchorID string, a editor.Alignment, actor domain.Actor) ([]domain.Field, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("%w: unknown alignment %q", ErrInvalid, a)
	}
	return s.editPage(ctx, documentID, anchorID, actor, func(c *editor.Collection, anchor domain.Field) (string, error) {
		moved, err := c.AlignFields(anchor.ID, a)
		return fmt.Sprintf("%d fields aligned %s to %s", len(moved), a, anchor.ID), err
	})
}

type GestureRequest struct {
	Container geometry.Size  `json:"container"`
	Events    []editor.Event `json:"events"`
	Save      bool           `json:"save"`
}

type GestureResult struct {
	Fields []domain.Field `json:"fields"`
	Added  []domain.Field `json:"added"`
	State  editor.State   `json:"state"`
	Saved  bool           `json:"saved"`
}

// ReplayGestures runs recorded pointer events against a page. Pages of a
// document that is not a draft replay read-only: selection works, nothing
// moves.
func (s *Service) ReplayGestures(ctx context.Context, documentID string, page int, req GestureRequest, actor domain.Actor) (GestureResult, error) {
	if req.Container.W <= 0 || req.Container.H <= 0 {
		return GestureResult{}, fmt.Errorf("%w: container size must be positive", ErrInvalid)
	}
	doc, err := s.Get(ctx, documentID)
	if err != nil {
		return GestureResult{}, err
	}
	if page < 1 || page > doc.PageCount() {
		return GestureResult{}, fmt.Errorf("%w: page %d out of range", ErrInvalid, page)
	}
	fields, err := s.Fields(ctx, documentID, page)
	if err != nil {
		return GestureResult{}, err
	}

	c := editor.NewCollection(documentID, doc.PageCount(), fields)
	ctl := editor.NewController(c, page, req.Container, doc.Status == domain.StatusDraft)
	res, err := ctl.Replay(req.Events)
	if err != nil {
		return GestureResult{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	out := GestureResult{Fields: c.Page(page), Added: res.Added, State: res.State}
	if req.Save {
		saved, err := s.SaveFields(ctx, documentID, page, out.Fields, actor)
		if err != nil {
			return GestureResult{}, err
		}
		out.Fields, out.Saved = saved, true
	}
	return out, nil
}
