package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"signdesk/internal/domain"
	"signdesk/internal/ports"
	"signdesk/internal/render"
	"signdesk/internal/workflow"
)

// ErrStaleJob is returned for a bake job whose document already left
// processing.
var ErrStaleJob = errors.New("document is no longer processing")

// Process bakes a processing document: one PNG overlay per page plus a JSON
// manifest, uploaded to the artifact store, then processing -> final with a
// time-limited artifact URL. The worker pool calls it.
func (s *Service) Process(ctx context.Context, documentID string) error {
	log := s.log.With("document_id", documentID)

	doc, err := s.Get(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.Status != domain.StatusProcessing {
		return fmt.Errorf("%w: %s is %s", ErrStaleJob, documentID, doc.Status)
	}
	fields, err := s.Fields(ctx, documentID, 0)
	if err != nil {
		return err
	}

	res, err := s.baker.Bake(ctx, doc, fields, s.clock.Now())
	if err != nil {
		return fmt.Errorf("bake: %w", err)
	}

	prefix := fmt.Sprintf("documents/%s/v%d", doc.ID, doc.Version)
	for _, p := range res.Pages {
		key := fmt.Sprintf("%s/page-%d.png", prefix, p.Page)
		if err := s.artifacts.Put(ctx, key, "image/png", p.PNG); err != nil {
			return fmt.Errorf("upload page %d: %w", p.Page, err)
		}
	}
	manifest, err := json.MarshalIndent(res.Manifest, "", "  ")
	if err != nil {
		return err
	}
	key := prefix + "/manifest.json"
	if err := s.artifacts.Put(ctx, key, "application/json", manifest); err != nil {
		return fmt.Errorf("upload manifest: %w", err)
	}
	url, err := s.artifacts.URL(ctx, key, s.ttl)
	if err != nil {
		return fmt.Errorf("presign manifest: %w", err)
	}

	err = s.locked(context.WithoutCancel(ctx), documentID, func(ctx context.Context, tx ports.DocumentTx) error {
		cur := tx.Document()
		if cur.Status != domain.StatusProcessing {
			return fmt.Errorf("%w: %s is %s", ErrStaleJob, documentID, cur.Status)
		}
		cur.ArtifactKey, cur.ArtifactURL = key, url
		entry, err := workflow.Transition(&cur, domain.StatusFinal, domain.SystemActor, s.clock.Now().UTC(),
			fmt.Sprintf("baked %d pages to %s", len(res.Pages), key))
		if err != nil {
			return err
		}
		if err := tx.UpdateDocument(ctx, cur); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, entry)
	})
	if err != nil {
		return err
	}
	log.Info("document baked", "pages", len(res.Pages), "artifact_key", key)
	return nil
}

// Fail moves a processing document to failed after its bake gave up.
func (s *Service) Fail(ctx context.Context, documentID string, cause error) error {
	ctx = context.WithoutCancel(ctx)
	reason := "bake failed"
	if cause != nil {
		reason = "bake failed: " + cause.Error()
	}
	err := s.locked(ctx, documentID, func(ctx context.Context, tx ports.DocumentTx) error {
		doc := tx.Document()
		if doc.Status != domain.StatusProcessing {
			return nil
		}
		entry, err := workflow.Transition(&doc, domain.StatusFailed, domain.SystemActor, s.clock.Now().UTC(), reason)
		if err != nil {
			return err
		}
		if err := tx.UpdateDocument(ctx, doc); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, entry)
	})
	if err != nil {
		return err
	}
	s.log.Warn("document bake failed", "document_id", documentID, "error", cause)
	return nil
}

// Preview resolves every field of a page against a container, the same way
// the baker will.
func (s *Service) Preview(ctx context.Context, documentID string, page int, dpi float64) ([]render.Placement, error) {
	doc, err := s.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if page < 1 || page > doc.PageCount() {
		return nil, fmt.Errorf("%w: page %d out of range", ErrInvalid, page)
	}
	if dpi <= 0 {
		dpi = s.baker.DPI()
	}
	fields, err := s.Fields(ctx, documentID, page)
	if err != nil {
		return nil, err
	}
	container := render.PageContainer(doc.Page(page), dpi)
	out := make([]render.Placement, 0, len(fields))
	for _, f := range fields {
		out = append(out, render.PlaceField(f, container))
	}
	return out, nil
}
