package workflow

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"signdesk/internal/domain"
)

type edge struct {
	from, to domain.DocumentStatus
}

// transitions is the whole status graph. Status only moves along these
// edges; failed -> processing is the explicit retry.
var transitions = map[edge]domain.AuditAction{
	{domain.StatusDraft, domain.StatusActive}:      domain.ActionSent,
	{domain.StatusActive, domain.StatusProcessing}: domain.ActionProcessing,
	{domain.StatusActive, domain.StatusFailed}:     domain.ActionDeclined,
	{domain.StatusProcessing, domain.StatusFinal}:  domain.ActionCompleted,
	{domain.StatusProcessing, domain.StatusFailed}: domain.ActionFailed,
	{domain.StatusFailed, domain.StatusProcessing}: domain.ActionRetried,
	{domain.StatusActive, domain.StatusArchived}:   domain.ActionArchived,
	{domain.StatusFinal, domain.StatusArchived}:    domain.ActionArchived,
	{domain.StatusFailed, domain.StatusArchived}:   domain.ActionArchived,
}

// CanTransition reports whether from -> to is an edge of the graph.
func CanTransition(from, to domain.DocumentStatus) bool {
	_, ok := transitions[edge{from, to}]
	return ok
}

// ActionFor returns the audit action recorded for an edge.
func ActionFor(from, to domain.DocumentStatus) (domain.AuditAction, bool) {
	a, ok := transitions[edge{from, to}]
	return a, ok
}

// Targets lists the statuses reachable from s in one step.
func Targets(s domain.DocumentStatus) []domain.DocumentStatus {
	var out []domain.DocumentStatus
	for _, to := range []domain.DocumentStatus{
		domain.StatusDraft, domain.StatusActive, domain.StatusProcessing,
		domain.StatusFinal, domain.StatusArchived, domain.StatusFailed,
	} {
		if CanTransition(s, to) {
			out = append(out, to)
		}
	}
	return out
}

// ReadOnly reports whether a document in s accepts no further edits.
func ReadOnly(s domain.DocumentStatus) bool {
	return s == domain.StatusArchived
}

// Transition moves doc to `to`, bumping its version, and returns the single
// audit entry describing the move. doc is left untouched on error.
func Transition(doc *domain.Document, to domain.DocumentStatus, actor domain.Actor, now time.Time, details string) (domain.AuditEntry, error) {
	action, ok := ActionFor(doc.Status, to)
	if !ok {
		return domain.AuditEntry{}, &TransitionError{From: doc.Status, To: to}
	}
	if details == "" {
		details = fmt.Sprintf("status %s -> %s", doc.Status, to)
	}
	doc.Status = to
	doc.Version++
	doc.UpdatedAt = now
	return NewEntry(doc.ID, action, actor, now, details), nil
}

// NewEntry builds an audit entry for a document.
func NewEntry(documentID string, action domain.AuditAction, actor domain.Actor, now time.Time, details string) domain.AuditEntry {
	return domain.AuditEntry{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Action:     action,
		ActorID:    actor.ID,
		Timestamp:  now.UTC(),
		Details:    details,
		IPAddress:  actor.IPAddress,
		Location:   actor.Location,
	}
}
