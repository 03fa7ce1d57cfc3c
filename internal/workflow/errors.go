package workflow

import (
	"fmt"

	"signdesk/internal/domain"
)

// EligibilityError is returned when a recipient tries to sign out of turn.
// Blocking is nil when the recipient is ineligible for its own reasons
// (already signed, viewer role, document not accepting signatures).
type EligibilityError struct {
	RecipientID string
	Blocking    *domain.Recipient
	Reason      string
}

func (e *EligibilityError) Error() string {
	return fmt.Sprintf("recipient %s cannot sign: %s", e.RecipientID, e.Reason)
}

// TransitionError is returned for any status change outside the graph.
type TransitionError struct {
	From domain.DocumentStatus
	To   domain.DocumentStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}
