package documents_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signdesk/internal/adapters/memory"
	"signdesk/internal/domain"
	"signdesk/internal/editor"
	"signdesk/internal/fieldtype"
	"signdesk/internal/geometry"
	"signdesk/internal/ports"
	"signdesk/internal/render"
	"signdesk/internal/services/documents"
	"signdesk/internal/workers/bakerunner"
	"signdesk/internal/workflow"
)

var (
	owner = domain.Actor{ID: "owner-1", IPAddress: "192.0.2.1"}
	start = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
)

type fixture struct {
	svc       *documents.Service
	store     *memory.Store
	artifacts *memory.Artifacts
	clock     *clockwork.FakeClock
}

func newFixture(t *testing.T, repo func(*memory.Store) ports.DocumentRepository) fixture {
	t.Helper()
	fonts, err := render.LoadFonts()
	require.NoError(t, err)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := memory.New()
	artifacts := memory.NewArtifacts()
	clock := clockwork.NewFakeClockAt(start)
	var r ports.DocumentRepository = store
	if repo != nil {
		r = repo(store)
	}
	svc := documents.New(r, artifacts, render.NewBaker(fonts, render.DefaultDPI, 2, log), documents.Options{
		Clock:       clock,
		Log:         log,
		SaveRetries: 2,
		SaveBackoff: time.Millisecond,
	})
	return fixture{svc: svc, store: store, artifacts: artifacts, clock: clock}
}

// draft creates a document with two signers (orders 1 and 2) and one
// signature field each on page 1.
func (f fixture) draft(t *testing.T) (domain.Document, domain.Recipient, domain.Recipient) {
	t.Helper()
	ctx := context.Background()
	doc, err := f.svc.Create(ctx, documents.CreateInput{Title: "Lease"}, owner)
	require.NoError(t, err)
	ada, err := f.svc.AddRecipient(ctx, doc.ID, documents.RecipientInput{Name: "Ada", Email: "ada@example.com", SigningOrder: 1}, owner)
	require.NoError(t, err)
	bob, err := f.svc.AddRecipient(ctx, doc.ID, documents.RecipientInput{Name: "Bob", Email: "bob@example.com", SigningOrder: 2}, owner)
	require.NoError(t, err)

	_, err = f.svc.SaveFields(ctx, doc.ID, 1, []domain.Field{
		{ID: "sig-ada", RecipientID: ada.ID, Type: fieldtype.Signature, Rect: geometry.Rect{X: 10, Y: 80}, Required: true},
		{ID: "date-ada", RecipientID: ada.ID, Type: fieldtype.Date, Rect: geometry.Rect{X: 40, Y: 80}, Required: true},
		{ID: "sig-bob", RecipientID: bob.ID, Type: fieldtype.Signature, Rect: geometry.Rect{X: 60, Y: 80}, Required: true},
	}, owner)
	require.NoError(t, err)
	return doc, ada, bob
}

func actions(trail []domain.AuditEntry) []domain.AuditAction {
	out := make([]domain.AuditAction, len(trail))
	for i, e := range trail {
		out[i] = e.Action
	}
	return out
}

func TestSigningWorkflow_EndToEnd(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	doc, ada, bob := f.draft(t)

	_, err := f.svc.TransitionStatus(ctx, doc.ID, domain.StatusActive, owner)
	require.NoError(t, err)

	elig, err := f.svc.CheckEligibility(ctx, doc.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, elig.CanSign)
	assert.Contains(t, elig.Reason, "Ada")

	f.clock.Advance(time.Hour)
	res, err := f.svc.Sign(ctx, doc.ID, ada.ID, map[string]string{"sig-ada": "Ada Lovelace"}, domain.Actor{ID: ada.ID})
	require.NoError(t, err)
	assert.False(t, res.Completed)
	require.Len(t, res.Fields, 2)
	assert.Equal(t, "2026-10-17", *res.Fields[0].Value, "empty date defaults to the signing date")

	res, err = f.svc.Sign(ctx, doc.ID, bob.ID, map[string]string{"sig-bob": "Bob"}, domain.Actor{ID: bob.ID})
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.NotEmpty(t, res.JobID)
	assert.Equal(t, domain.StatusProcessing, res.Document.Status)

	job, found, err := f.store.ClaimNext(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.NoError(t, f.svc.Process(ctx, job.DocumentID))

	final, err := f.svc.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFinal, final.Status)
	assert.True(t, strings.HasPrefix(final.ArtifactURL, "memory:///documents/"+doc.ID))
	assert.Contains(t, f.artifacts.Keys(), final.ArtifactKey)

	trail, err := f.svc.AuditTrail(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.AuditAction{
		domain.ActionCreated,
		domain.ActionRecipientAdded,
		domain.ActionRecipientAdded,
		domain.ActionUpdated,
		domain.ActionSent,
		domain.ActionSigned,
		domain.ActionSigned,
		domain.ActionProcessing,
		domain.ActionCompleted,
	}, actions(trail))
	for i := 1; i < len(trail); i++ {
		assert.False(t, trail[i].Timestamp.Before(trail[i-1].Timestamp), "trail must be chronological")
	}
	assert.Equal(t, "192.0.2.1", trail[0].IPAddress)

	cert, err := f.svc.Certificate(ctx, doc.ID)
	require.NoError(t, err)
	assert.Contains(t, string(cert), "bob@example.com")
}

func TestSign_OutOfOrderNamesBlocker(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	doc, _, bob := f.draft(t)
	_, err := f.svc.TransitionStatus(ctx, doc.ID, domain.StatusActive, owner)
	require.NoError(t, err)

	_, err = f.svc.Sign(ctx, doc.ID, bob.ID, map[string]string{"sig-bob": "Bob"}, domain.Actor{ID: bob.ID})
	var ee *workflow.EligibilityError
	require.ErrorAs(t, err, &ee)
	require.NotNil(t, ee.Blocking)
	assert.Equal(t, "Ada", ee.Blocking.Name)

	fields, _ := f.svc.Fields(ctx, doc.ID, 1)
	for _, fl := range fields {
		assert.Nil(t, fl.Value, "rejected signature must not write values")
	}
}

func TestSign_RequiresFilledFieldsAndActiveDocument(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	doc, ada, _ := f.draft(t)

	_, err := f.svc.Sign(ctx, doc.ID, ada.ID, nil, domain.Actor{ID: ada.ID})
	var ee *workflow.EligibilityError
	require.ErrorAs(t, err, &ee, "drafts do not accept signatures")

	_, err = f.svc.TransitionStatus(ctx, doc.ID, domain.StatusActive, owner)
	require.NoError(t, err)

	_, err = f.svc.Sign(ctx, doc.ID, ada.ID, nil, domain.Actor{ID: ada.ID})
	require.ErrorIs(t, err, documents.ErrPrecondition)
	assert.Contains(t, err.Error(), "sig-ada")

	_, err = f.svc.Sign(ctx, doc.ID, ada.ID, map[string]string{"sig-bob": "x"}, domain.Actor{ID: ada.ID})
	require.ErrorIs(t, err, documents.ErrInvalid)
}

func TestSign_ConcurrentDoubleSignature(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	doc, ada, _ := f.draft(t)
	_, err := f.svc.TransitionStatus(ctx, doc.ID, domain.StatusActive, owner)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.Sign(ctx, doc.ID, ada.ID, map[string]string{"sig-ada": "Ada"}, domain.Actor{ID: ada.ID})
		}()
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		var ee *workflow.EligibilityError
		assert.ErrorAs(t, err, &ee)
	}
	assert.Equal(t, 1, ok)

	trail, _ := f.svc.AuditTrail(ctx, doc.ID)
	signed := 0
	for _, e := range trail {
		if e.Action == domain.ActionSigned {
			signed++
		}
	}
	assert.Equal(t, 1, signed)
}

func TestDecline_FailsDocumentAndBlocksLaterSigners(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	doc, ada, bob := f.draft(t)
	_, err := f.svc.TransitionStatus(ctx, doc.ID, domain.StatusActive, owner)
	require.NoError(t, err)

	out, err := f.svc.Decline(ctx, doc.ID, ada.ID, "wrong address", domain.Actor{ID: ada.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, out.Status)

	rs, _ := f.svc.Recipients(ctx, doc.ID)
	assert.False(t, workflow.CheckEligibility(rs, bob.ID).CanSign)
	assert.Contains(t, workflow.CheckEligibility(rs, bob.ID).Reason, "declined")

	trail, _ := f.svc.AuditTrail(ctx, doc.ID)
	last := trail[len(trail)-1]
	assert.Equal(t, domain.ActionDeclined, last.Action)
	assert.Contains(t, last.Details, "wrong address")
}

func TestTransitionStatus_RejectsAndAudits(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	doc, _, _ := f.draft(t)
	before, _ := f.svc.AuditTrail(ctx, doc.ID)

	_, err := f.svc.TransitionStatus(ctx, doc.ID, domain.StatusFinal, owner)
	var te *workflow.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, domain.StatusDraft, te.From)

	_, err = f.svc.TransitionStatus(ctx, doc.ID, "shredded", owner)
	require.ErrorIs(t, err, documents.ErrInvalid)

	after, _ := f.svc.AuditTrail(ctx, doc.ID)
	assert.Len(t, after, len(before), "rejected transitions append nothing")

	cur, _ := f.svc.Get(ctx, doc.ID)
	assert.Equal(t, domain.StatusDraft, cur.Status)

	_, err = f.svc.TransitionStatus(ctx, doc.ID, domain.StatusActive, owner)
	require.NoError(t, err)
	_, err = f.svc.TransitionStatus(ctx, doc.ID, domain.StatusProcessing, owner)
	require.ErrorIs(t, err, documents.ErrPrecondition)
}

func TestTransitionStatus_NoSigners(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	doc, err := f.svc.Create(ctx, documents.CreateInput{Title: "Memo"}, owner)
	require.NoError(t, err)
	_, err = f.svc.AddRecipient(ctx, doc.ID, documents.RecipientInput{Name: "Vic", Email: "vic@example.com", Role: domain.RoleViewer, SigningOrder: 1}, owner)
	require.NoError(t, err)
	_, err = f.svc.TransitionStatus(ctx, doc.ID, domain.StatusActive, owner)
	require.ErrorIs(t, err, documents.ErrPrecondition)
}

func TestFailAndRetry(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	doc, ada, bob := f.draft(t)
	_, err := f.svc.TransitionStatus(ctx, doc.ID, domain.StatusActive, owner)
	require.NoError(t, err)
	_, err = f.svc.Sign(ctx, doc.ID, ada.ID, map[string]string{"sig-ada": "A"}, domain.Actor{ID: ada.ID})
	require.NoError(t, err)
	_, err = f.svc.Sign(ctx, doc.ID, bob.ID, map[string]string{"sig-bob": "B"}, domain.Actor{ID: bob.ID})
	require.NoError(t, err)
	job, _, _ := f.store.ClaimNext(ctx)
	require.NoError(t, f.store.MarkFailed(ctx, job.ID, "disk"))

	require.NoError(t, f.svc.Fail(ctx, doc.ID, errors.New("disk")))
	cur, _ := f.svc.Get(ctx, doc.ID)
	require.Equal(t, domain.StatusFailed, cur.Status)

	require.ErrorIs(t, f.svc.Process(ctx, doc.ID), documents.ErrStaleJob)

	_, err = f.svc.TransitionStatus(ctx, doc.ID, domain.StatusProcessing, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.PendingJobs())

	trail, _ := f.svc.AuditTrail(ctx, doc.ID)
	tail := actions(trail[len(trail)-2:])
	assert.Equal(t, []domain.AuditAction{domain.ActionFailed, domain.ActionRetried}, tail)
}

func TestArchivedIsReadOnly(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	doc, _, _ := f.draft(t)
	_, err := f.svc.TransitionStatus(ctx, doc.ID, domain.StatusActive, owner)
	require.NoError(t, err)
	_, err = f.svc.TransitionStatus(ctx, doc.ID, domain.StatusArchived, owner)
	require.NoError(t, err)

	_, err = f.svc.SaveFields(ctx, doc.ID, 1, nil, owner)
	assert.ErrorIs(t, err, documents.ErrReadOnly)
	_, err = f.svc.TransitionStatus(ctx, doc.ID, domain.StatusActive, owner)
	assert.ErrorIs(t, err, documents.ErrReadOnly)

	docs, _ := f.svc.List(ctx, owner.ID, false)
	assert.Empty(t, docs)
}

func TestSaveReloadRender_Idempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	doc, ada, _ := f.draft(t)

	first, err := f.svc.Fields(ctx, doc.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.SaveFields(ctx, doc.ID, 1, first, owner)
	require.NoError(t, err)
	second, err := f.svc.Fields(ctx, doc.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, first, second, "saving a reloaded page changes nothing")

	placements, err := f.svc.Preview(ctx, doc.ID, 1, 0)
	require.NoError(t, err)
	container := render.PageContainer(domain.LetterPage, render.DefaultDPI)
	for i, p := range placements {
		want := second[i].Rect.ToPixels(container)
		assert.InDelta(t, want.X, p.Pixels.X, 1e-9)
		assert.InDelta(t, want.Y, p.Pixels.Y, 1e-9)
		assert.Equal(t, fieldtype.FontSizePx(second[i].Type, want.H), p.FontSizePx)
	}
	assert.Equal(t, ada.ID, second[0].RecipientID)
}

func TestSaveFields_Validation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	doc, _, _ := f.draft(t)

	_, err := f.svc.SaveFields(ctx, doc.ID, 1, []domain.Field{{Type: "stamp"}}, owner)
	assert.ErrorIs(t, err, documents.ErrInvalid)
	_, err = f.svc.SaveFields(ctx, doc.ID, 2, []domain.Field{{Type: fieldtype.Text}}, owner)
	assert.ErrorIs(t, err, documents.ErrInvalid)
	_, err = f.svc.SaveFields(ctx, doc.ID, 1, []domain.Field{{Type: fieldtype.Text, RecipientID: "ghost"}}, owner)
	assert.ErrorIs(t, err, documents.ErrInvalid)

	saved, err := f.svc.SaveFields(ctx, doc.ID, 1, []domain.Field{{Type: fieldtype.Text, Rect: geometry.Rect{X: 95, Y: 99}}}, owner)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.True(t, saved[0].Rect.Valid())
	assert.Equal(t, geometry.Rect{X: 80, Y: 96, W: 20, H: 4}, saved[0].Rect)
}

// flakyRepo fails the first n locked writes with a transient error.
type flakyRepo struct {
	ports.DocumentRepository
	mu    sync.Mutex
	fails int
}

func (r *flakyRepo) WithDocumentLock(ctx context.Context, id string, fn func(context.Context, ports.DocumentTx) error) error {
	r.mu.Lock()
	if r.fails > 0 {
		r.fails--
		r.mu.Unlock()
		return errors.New("connection reset by peer")
	}
	r.mu.Unlock()
	return r.DocumentRepository.WithDocumentLock(ctx, id, fn)
}

func TestSaveFields_RetriesThenSurfacesPersistenceError(t *testing.T) {
	flaky := &flakyRepo{}
	f := newFixture(t, func(s *memory.Store) ports.DocumentRepository {
		flaky.DocumentRepository = s
		return flaky
	})
	ctx := context.Background()
	doc, err := f.svc.Create(ctx, documents.CreateInput{Title: "Flaky"}, owner)
	require.NoError(t, err)

	flaky.fails = 2
	_, err = f.svc.SaveFields(ctx, doc.ID, 1, []domain.Field{{Type: fieldtype.Text}}, owner)
	require.NoError(t, err, "two failures fit in two retries")

	flaky.fails = 10
	_, err = f.svc.SaveFields(ctx, doc.ID, 1, []domain.Field{{Type: fieldtype.Text}}, owner)
	var pe *editor.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 3, pe.Attempts)

	fields, _ := f.svc.Fields(ctx, doc.ID, 1)
	assert.Len(t, fields, 1, "failed save leaves stored fields as they were")
}

func TestDuplicateAndAlign(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	doc, _, _ := f.draft(t)

	dup, err := f.svc.DuplicateField(ctx, doc.ID, "sig-ada", owner)
	require.NoError(t, err)
	assert.Equal(t, geometry.Rect{X: 12, Y: 82, W: 20, H: 6}, dup.Rect)

	page, err := f.svc.AlignFields(ctx, doc.ID, "sig-ada", editor.AlignTop, owner)
	require.NoError(t, err)
	for _, fl := range page {
		assert.Equal(t, 80.0, fl.Rect.Y, fl.ID)
	}

	_, err = f.svc.DuplicateField(ctx, doc.ID, "nope", owner)
	assert.ErrorIs(t, err, documents.ErrNotFound)
	_, err = f.svc.AlignFields(ctx, doc.ID, "sig-ada", "diagonal", owner)
	assert.ErrorIs(t, err, documents.ErrInvalid)
}

func TestReplayGestures(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	doc, err := f.svc.Create(ctx, documents.CreateInput{Title: "Gestures"}, owner)
	require.NoError(t, err)

	res, err := f.svc.ReplayGestures(ctx, doc.ID, 1, documents.GestureRequest{
		Container: geometry.Size{W: 1000, H: 800},
		Save:      true,
		Events: []editor.Event{
			{Kind: editor.EventAddMode, Type: fieldtype.Signature},
			{Kind: editor.EventClick, Point: editor.Point{X: 400, Y: 400}},
		},
	}, owner)
	require.NoError(t, err)
	require.Len(t, res.Added, 1)
	assert.True(t, res.Saved)
	assert.True(t, geometry.ApproxEqual(geometry.Rect{X: 40, Y: 50, W: 20, H: 6}, res.Added[0].Rect, 1e-9))

	id := res.Added[0].ID
	res, err = f.svc.ReplayGestures(ctx, doc.ID, 1, documents.GestureRequest{
		Container: geometry.Size{W: 1000, H: 800},
		Save:      true,
		Events: []editor.Event{
			{Kind: editor.EventDown, FieldID: id, Point: editor.Point{X: 450, Y: 420}},
			{Kind: editor.EventUp, Point: editor.Point{X: -50, Y: 420}},
		},
	}, owner)
	require.NoError(t, err)
	stored, _ := f.svc.Fields(ctx, doc.ID, 1)
	require.Len(t, stored, 1)
	assert.Equal(t, 0.0, stored[0].Rect.X)
	assert.InDelta(t, 50, stored[0].Rect.Y, 1e-9)
}

func TestCreateAndRecipientValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, documents.CreateInput{Title: "  "}, owner)
	assert.ErrorIs(t, err, documents.ErrInvalid)

	doc, err := f.svc.Create(ctx, documents.CreateInput{Title: "ok"}, owner)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, doc.OwnerID)
	assert.Equal(t, 1, doc.PageCount())

	bad := []documents.RecipientInput{
		{Name: "", Email: "a@b.c", SigningOrder: 1},
		{Name: "A", Email: "not-an-email", SigningOrder: 1},
		{Name: "A", Email: "a@b.c", SigningOrder: 0},
		{Name: "A", Email: "a@b.c", SigningOrder: 1, Role: "notary"},
	}
	for _, in := range bad {
		_, err := f.svc.AddRecipient(ctx, doc.ID, in, owner)
		assert.ErrorIs(t, err, documents.ErrInvalid, "%+v", in)
	}
	_, err = f.svc.AddRecipient(ctx, "missing", documents.RecipientInput{Name: "A", Email: "a@b.c", SigningOrder: 1}, owner)
	assert.ErrorIs(t, err, documents.ErrNotFound)
}

func TestSaveFields_RejectsIDFromAnotherPage(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	doc := domain.Document{
		ID: "two-pager", OwnerID: owner.ID, Title: "Two pages", Status: domain.StatusDraft,
		Pages: []domain.PageSize{domain.LetterPage, domain.LetterPage}, Version: 1, CreatedAt: start, UpdatedAt: start,
	}
	require.NoError(t, f.store.CreateDocument(ctx, doc, workflow.NewEntry(doc.ID, domain.ActionCreated, owner, start, "")))

	_, err := f.svc.SaveFields(ctx, doc.ID, 1, []domain.Field{{ID: "f1", Type: fieldtype.Text}}, owner)
	require.NoError(t, err)

	_, err = f.svc.SaveFields(ctx, doc.ID, 2, []domain.Field{{ID: "f1", Type: fieldtype.Text}}, owner)
	require.ErrorIs(t, err, documents.ErrInvalid)
	var pe *editor.PersistenceError
	assert.False(t, errors.As(err, &pe), "a duplicate id is not retried as a storage failure")

	all, err := f.svc.Fields(ctx, doc.ID, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 1, all[0].Page)

	// Moving the field works once its old page no longer holds it.
	_, err = f.svc.SaveFields(ctx, doc.ID, 1, nil, owner)
	require.NoError(t, err)
	_, err = f.svc.SaveFields(ctx, doc.ID, 2, []domain.Field{{ID: "f1", Type: fieldtype.Text}}, owner)
	require.NoError(t, err)
	all, _ = f.svc.Fields(ctx, doc.ID, 0)
	require.Len(t, all, 1)
	assert.Equal(t, 2, all[0].Page)
}

func TestProcessInline_AbandonedCallerStillFinalizes(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	doc, ada, bob := f.draft(t)
	_, err := f.svc.TransitionStatus(ctx, doc.ID, domain.StatusActive, owner)
	require.NoError(t, err)
	_, err = f.svc.Sign(ctx, doc.ID, ada.ID, map[string]string{"sig-ada": "A"}, domain.Actor{ID: ada.ID})
	require.NoError(t, err)
	_, err = f.svc.Sign(ctx, doc.ID, bob.ID, map[string]string{"sig-bob": "B"}, domain.Actor{ID: bob.ID})
	require.NoError(t, err)

	gone, cancel := context.WithCancel(ctx)
	cancel()
	err = bakerunner.ProcessInline(gone, f.store, f.svc, bakerunner.Options{Retryable: documents.Transient}, doc.ID)
	if err != nil {
		require.ErrorIs(t, err, context.Canceled)
	}

	require.Eventually(t, func() bool {
		cur, err := f.svc.Get(ctx, doc.ID)
		return err == nil && cur.Status == domain.StatusFinal
	}, 5*time.Second, 10*time.Millisecond)

	trail, _ := f.svc.AuditTrail(ctx, doc.ID)
	assert.NotContains(t, actions(trail), domain.ActionFailed)
}
