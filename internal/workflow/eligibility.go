package workflow

import (
	"fmt"
	"sort"

	"signdesk/internal/domain"
)

// Eligibility is the answer to "may this recipient sign now".
type Eligibility struct {
	CanSign  bool              `json:"canSign"`
	Reason   string            `json:"reason"`
	Blocking *domain.Recipient `json:"blocking,omitempty"`
}

// Err converts a negative answer into an *EligibilityError.
func (e Eligibility) Err(recipientID string) error {
	if e.CanSign {
		return nil
	}
	return &EligibilityError{RecipientID: recipientID, Blocking: e.Blocking, Reason: e.Reason}
}

// SortBySigningOrder orders recipients by signing order, then id, in place.
func SortBySigningOrder(rs []domain.Recipient) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].SigningOrder != rs[j].SigningOrder {
			return rs[i].SigningOrder < rs[j].SigningOrder
		}
		return rs[i].ID < rs[j].ID
	})
}

// CheckEligibility decides whether recipientID may sign given the full
// recipient list. Recipients sharing a signing order may sign in parallel.
// Declines anywhere below the candidate block it; so does any obligated
// recipient below it that has not signed yet.
func CheckEligibility(recipients []domain.Recipient, recipientID string) Eligibility {
	ordered := make([]domain.Recipient, len(recipients))
	copy(ordered, recipients)
	SortBySigningOrder(ordered)

	idx := -1
	for i := range ordered {
		if ordered[i].ID == recipientID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Eligibility{Reason: fmt.Sprintf("recipient %s is not on this document", recipientID)}
	}
	cand := ordered[idx]

	switch {
	case cand.SignatureStatus == domain.SignatureSigned:
		return Eligibility{Reason: "already signed"}
	case cand.SignatureStatus == domain.SignatureDeclined:
		return Eligibility{Reason: "already declined"}
	case !cand.Role.Obligated():
		return Eligibility{Reason: fmt.Sprintf("role %s has no signing obligation", cand.Role)}
	}

	// A lower decline takes precedence over waiting.
	for i := range ordered {
		r := ordered[i]
		if r.SigningOrder >= cand.SigningOrder {
			break
		}
		if r.SignatureStatus == domain.SignatureDeclined {
			return Eligibility{
				Reason:   fmt.Sprintf("%s declined to sign", label(r)),
				Blocking: &r,
			}
		}
	}
	for i := range ordered {
		r := ordered[i]
		if r.SigningOrder >= cand.SigningOrder {
			break
		}
		if r.Role.Obligated() && r.SignatureStatus != domain.SignatureSigned {
			return Eligibility{
				Reason:   fmt.Sprintf("waiting on %s", label(r)),
				Blocking: &r,
			}
		}
	}
	return Eligibility{CanSign: true, Reason: "ready to sign"}
}

// AllSigned reports whether every obligated recipient has signed. A document
// without obligated recipients is never complete.
func AllSigned(recipients []domain.Recipient) bool {
	obligated := 0
	for _, r := range recipients {
		if !r.Role.Obligated() {
			continue
		}
		obligated++
		if r.SignatureStatus != domain.SignatureSigned {
			return false
		}
	}
	return obligated > 0
}

// NextSigners returns the pending obligated recipients that may sign now.
func NextSigners(recipients []domain.Recipient) []domain.Recipient {
	var out []domain.Recipient
	for _, r := range recipients {
		if CheckEligibility(recipients, r.ID).CanSign {
			out = append(out, r)
		}
	}
	SortBySigningOrder(out)
	return out
}

func label(r domain.Recipient) string {
	if r.Name != "" {
		return fmt.Sprintf("%s (order %d)", r.Name, r.SigningOrder)
	}
	if r.Email != "" {
		return fmt.Sprintf("%s (order %d)", r.Email, r.SigningOrder)
	}
	return fmt.Sprintf("recipient %s (order %d)", r.ID, r.SigningOrder)
}
