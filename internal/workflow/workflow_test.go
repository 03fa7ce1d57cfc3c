package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signdesk/internal/domain"
)

func recipients(statuses ...domain.SignatureStatus) []domain.Recipient {
	names := []string{"Ada", "Grace", "Linus", "Ken"}
	out := make([]domain.Recipient, len(statuses))
	for i, st := range statuses {
		out[i] = domain.Recipient{
			ID:              names[i],
			Name:            names[i],
			Role:            domain.RoleSigner,
			SigningOrder:    i + 1,
			SignatureStatus: st,
		}
	}
	return out
}

func TestCheckEligibility_OrderedSigning(t *testing.T) {
	rs := recipients(domain.SignatureSigned, domain.SignaturePending, domain.SignaturePending)

	second := CheckEligibility(rs, "Grace")
	assert.True(t, second.CanSign, second.Reason)

	third := CheckEligibility(rs, "Linus")
	assert.False(t, third.CanSign)
	assert.Contains(t, third.Reason, "Grace")
	require.NotNil(t, third.Blocking)
	assert.Equal(t, "Grace", third.Blocking.ID)
}

func TestCheckEligibility_DeclineBlocksEveryoneAfter(t *testing.T) {
	rs := recipients(domain.SignatureDeclined, domain.SignaturePending, domain.SignaturePending)
	for _, id := range []string{"Grace", "Linus"} {
		e := CheckEligibility(rs, id)
		assert.False(t, e.CanSign, id)
		assert.Contains(t, e.Reason, "Ada")
		assert.Contains(t, e.Reason, "declined")
	}
}

func TestCheckEligibility_UnsortedInputAndSharedOrder(t *testing.T) {
	rs := []domain.Recipient{
		{ID: "c", Name: "C", Role: domain.RoleSigner, SigningOrder: 5, SignatureStatus: domain.SignaturePending},
		{ID: "a", Name: "A", Role: domain.RoleSigner, SigningOrder: 2, SignatureStatus: domain.SignaturePending},
		{ID: "b", Name: "B", Role: domain.RoleSigner, SigningOrder: 2, SignatureStatus: domain.SignaturePending},
	}
	assert.True(t, CheckEligibility(rs, "a").CanSign)
	assert.True(t, CheckEligibility(rs, "b").CanSign)
	c := CheckEligibility(rs, "c")
	assert.False(t, c.CanSign)
	assert.Equal(t, "a", c.Blocking.ID)
}

func TestCheckEligibility_ViewersDoNotBlock(t *testing.T) {
	rs := recipients(domain.SignaturePending, domain.SignaturePending)
	rs[0].Role = domain.RoleViewer

	assert.True(t, CheckEligibility(rs, "Grace").CanSign)
	viewer := CheckEligibility(rs, "Ada")
	assert.False(t, viewer.CanSign)
	assert.Contains(t, viewer.Reason, "no signing obligation")
}

func TestCheckEligibility_UnknownAndAlreadySigned(t *testing.T) {
	rs := recipients(domain.SignatureSigned)
	assert.False(t, CheckEligibility(rs, "nobody").CanSign)
	e := CheckEligibility(rs, "Ada")
	assert.False(t, e.CanSign)
	assert.Equal(t, "already signed", e.Reason)

	var elig *EligibilityError
	require.True(t, errors.As(e.Err("Ada"), &elig))
	assert.Nil(t, elig.Blocking)
}

func TestAllSignedAndNextSigners(t *testing.T) {
	rs := recipients(domain.SignatureSigned, domain.SignaturePending)
	assert.False(t, AllSigned(rs))
	next := NextSigners(rs)
	require.Len(t, next, 1)
	assert.Equal(t, "Grace", next[0].ID)

	rs[1].SignatureStatus = domain.SignatureSigned
	assert.True(t, AllSigned(rs))
	assert.Empty(t, NextSigners(rs))

	assert.False(t, AllSigned(nil))
}

func TestTransition_HappyPathEmitsOneEntryEach(t *testing.T) {
	doc := &domain.Document{ID: "doc-1", Status: domain.StatusDraft}
	actor := domain.Actor{ID: "owner", IPAddress: "10.0.0.1"}
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

	var trail []domain.AuditEntry
	for i, to := range []domain.DocumentStatus{domain.StatusActive, domain.StatusProcessing, domain.StatusFinal} {
		entry, err := Transition(doc, to, actor, now.Add(time.Duration(i)*time.Second), "")
		require.NoError(t, err)
		trail = append(trail, entry)
	}

	require.Len(t, trail, 3)
	assert.Equal(t, domain.ActionSent, trail[0].Action)
	assert.Equal(t, domain.ActionProcessing, trail[1].Action)
	assert.Equal(t, domain.ActionCompleted, trail[2].Action)
	assert.True(t, trail[1].Timestamp.After(trail[0].Timestamp))
	assert.Equal(t, "10.0.0.1", trail[2].IPAddress)
	assert.Equal(t, domain.StatusFinal, doc.Status)
	assert.Equal(t, 3, doc.Version)
}

func TestTransition_RejectsEdgesOutsideGraph(t *testing.T) {
	cases := []struct{ from, to domain.DocumentStatus }{
		{domain.StatusDraft, domain.StatusProcessing},
		{domain.StatusDraft, domain.StatusFinal},
		{domain.StatusFinal, domain.StatusActive},
		{domain.StatusArchived, domain.StatusActive},
		{domain.StatusDraft, domain.StatusArchived},
		{domain.StatusProcessing, domain.StatusArchived},
	}
	for _, tc := range cases {
		doc := &domain.Document{ID: "d", Status: tc.from}
		_, err := Transition(doc, tc.to, domain.SystemActor, time.Now(), "")
		var te *TransitionError
		require.True(t, errors.As(err, &te), "%s -> %s", tc.from, tc.to)
		assert.Equal(t, tc.from, doc.Status, "status must not move on rejection")
		assert.Equal(t, 0, doc.Version)
	}
}

func TestTargets(t *testing.T) {
	assert.Equal(t, []domain.DocumentStatus{domain.StatusActive}, Targets(domain.StatusDraft))
	assert.ElementsMatch(t,
		[]domain.DocumentStatus{domain.StatusProcessing, domain.StatusArchived},
		Targets(domain.StatusFailed))
	assert.Empty(t, Targets(domain.StatusArchived))
}
