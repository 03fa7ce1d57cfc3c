package documents

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"signdesk/internal/domain"
	"signdesk/internal/fieldtype"
	"signdesk/internal/ports"
	"signdesk/internal/workflow"
)

// DateLayout is the value written into date fields left empty at signing.
const DateLayout = "2006-01-02"

// CheckEligibility is the advisory check used by the editor. Sign repeats it
// under the lock.
func (s *Service) CheckEligibility(ctx context.Context, documentID, recipientID string) (workflow.Eligibility, error) {
	doc, err := s.Get(ctx, documentID)
	if err != nil {
		return workflow.Eligibility{}, err
	}
	if doc.Status != domain.StatusActive {
		return workflow.Eligibility{Reason: fmt.Sprintf("document is %s", doc.Status)}, nil
	}
	rs, err := s.Recipients(ctx, documentID)
	if err != nil {
		return workflow.Eligibility{}, err
	}
	return workflow.CheckEligibility(rs, recipientID), nil
}

type SignResult struct {
	Document  domain.Document  `json:"document"`
	Recipient domain.Recipient `json:"recipient"`
	Fields    []domain.Field   `json:"fields"`
	// Completed is set when this was the last signature and a bake is queued.
	Completed bool   `json:"completed"`
	JobID     string `json:"jobId,omitempty"`
}

// Sign records recipientID's signature with the given field values (field id
// to value). Eligibility is decided here, under the lock, regardless of any
// earlier advisory check. Empty date fields take the signing date. The last
// signature moves the document to processing and queues the bake.
func (s *Service) Sign(ctx context.Context, documentID, recipientID string, values map[string]string, actor domain.Actor) (SignResult, error) {
	ctx = context.WithoutCancel(ctx)

	var out SignResult
	err := s.locked(ctx, documentID, func(ctx context.Context, tx ports.DocumentTx) error {
		doc := tx.Document()
		if workflow.ReadOnly(doc.Status) {
			return fmt.Errorf("%w: %s", ErrReadOnly, doc.ID)
		}
		if doc.Status != domain.StatusActive {
			return &workflow.EligibilityError{RecipientID: recipientID, Reason: fmt.Sprintf("document is %s", doc.Status)}
		}
		rs, err := tx.Recipients(ctx)
		if err != nil {
			return err
		}
		if err := workflow.CheckEligibility(rs, recipientID).Err(recipientID); err != nil {
			return err
		}

		all, err := tx.Fields(ctx, 0)
		if err != nil {
			return err
		}
		now := s.clock.Now().UTC()
		filled, err := fillFields(all, recipientID, values, now.Format(DateLayout))
		if err != nil {
			return err
		}
		if err := tx.UpdateFieldValues(ctx, filled); err != nil {
			return err
		}

		var me domain.Recipient
		for i := range rs {
			if rs[i].ID == recipientID {
				rs[i].SignatureStatus = domain.SignatureSigned
				rs[i].SignedAt = &now
				me = rs[i]
			}
		}
		if err := tx.UpdateRecipient(ctx, me); err != nil {
			return err
		}
		touch(&doc, now)
		if err := tx.AppendAudit(ctx, workflow.NewEntry(doc.ID, domain.ActionSigned, actor, now,
			fmt.Sprintf("%s signed (order %d, %d fields)", me.Name, me.SigningOrder, len(filled)))); err != nil {
			return err
		}

		out.Recipient, out.Fields = me, filled
		if workflow.AllSigned(rs) {
			entry, err := workflow.Transition(&doc, domain.StatusProcessing, domain.SystemActor, now, "all signers complete")
			if err != nil {
				return err
			}
			if err := tx.AppendAudit(ctx, entry); err != nil {
				return err
			}
			if out.JobID, err = tx.EnqueueBake(ctx); err != nil {
				return err
			}
			out.Completed = true
		}
		if err := tx.UpdateDocument(ctx, doc); err != nil {
			return err
		}
		out.Document = doc
		return nil
	})
	if err != nil {
		return SignResult{}, err
	}
	s.log.Info("recipient signed", "document_id", documentID, "recipient_id", recipientID, "completed", out.Completed)
	return out, nil
}

// fillFields applies values to the recipient's fields and checks that every
// required one ends up filled.
func fillFields(all []domain.Field, recipientID string, values map[string]string, today string) ([]domain.Field, error) {
	mine := make(map[string]domain.Field)
	for _, f := range all {
		if f.RecipientID == recipientID {
			mine[f.ID] = f
		}
	}
	for id := range values {
		if _, ok := mine[id]; !ok {
			return nil, fmt.Errorf("%w: field %s is not assigned to recipient %s", ErrInvalid, id, recipientID)
		}
	}

	var out []domain.Field
	var missing []string
	for id, f := range mine {
		if v, ok := values[id]; ok && strings.TrimSpace(v) != "" {
			v = strings.TrimSpace(v)
			f.Value = &v
		} else if f.Type == fieldtype.Date && !f.HasValue() {
			d := today
			f.Value = &d
		}
		if f.Required && !f.HasValue() {
			missing = append(missing, id)
		}
		out = append(out, f)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: required fields missing: %s", ErrPrecondition, strings.Join(missing, ", "))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Page != out[j].Page {
			return out[i].Page < out[j].Page
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Decline records a refusal. The document fails with a single declined entry
// and no later recipient can sign.
func (s *Service) Decline(ctx context.Context, documentID, recipientID, reason string, actor domain.Actor) (domain.Document, error) {
	ctx = context.WithoutCancel(ctx)

	var out domain.Document
	err := s.locked(ctx, documentID, func(ctx context.Context, tx ports.DocumentTx) error {
		doc := tx.Document()
		if workflow.ReadOnly(doc.Status) {
			return fmt.Errorf("%w: %s", ErrReadOnly, doc.ID)
		}
		if doc.Status != domain.StatusActive {
			return &workflow.EligibilityError{RecipientID: recipientID, Reason: fmt.Sprintf("document is %s", doc.Status)}
		}
		rs, err := tx.Recipients(ctx)
		if err != nil {
			return err
		}
		var me *domain.Recipient
		for i := range rs {
			if rs[i].ID == recipientID {
				me = &rs[i]
			}
		}
		switch {
		case me == nil:
			return fmt.Errorf("%w: recipient %s", ErrNotFound, recipientID)
		case me.SignatureStatus != domain.SignaturePending:
			return &workflow.EligibilityError{RecipientID: recipientID, Reason: fmt.Sprintf("already %s", me.SignatureStatus)}
		case !me.Role.Obligated():
			return &workflow.EligibilityError{RecipientID: recipientID, Reason: fmt.Sprintf("role %s has no signing obligation", me.Role)}
		}

		now := s.clock.Now().UTC()
		me.SignatureStatus = domain.SignatureDeclined
		if err := tx.UpdateRecipient(ctx, *me); err != nil {
			return err
		}
		details := fmt.Sprintf("%s declined (order %d)", me.Name, me.SigningOrder)
		if reason = strings.TrimSpace(reason); reason != "" {
			details += ": " + reason
		}
		entry, err := workflow.Transition(&doc, domain.StatusFailed, actor, now, details)
		if err != nil {
			return err
		}
		if err := tx.UpdateDocument(ctx, doc); err != nil {
			return err
		}
		out = doc
		return tx.AppendAudit(ctx, entry)
	})
	if err != nil {
		return domain.Document{}, err
	}
	s.log.Info("recipient declined", "document_id", documentID, "recipient_id", recipientID)
	return out, nil
}
