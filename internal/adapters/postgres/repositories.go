package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"signdesk/internal/domain"
	"signdesk/internal/fieldtype"
	"signdesk/internal/ports"
)

var _ ports.DocumentRepository = (*DB)(nil)

// querier is the part of pgxpool.Pool and pgx.Tx the readers need.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const documentColumns = `id, owner_id, title, status, pages, source_key, artifact_key, artifact_url, version, created_at, updated_at`

func scanDocument(row pgx.Row) (domain.Document, error) {
	var d domain.Document
	var pages []byte
	err := row.Scan(&d.ID, &d.OwnerID, &d.Title, &d.Status, &pages, &d.SourceKey, &d.ArtifactKey, &d.ArtifactURL, &d.Version, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return d, ports.ErrNotFound
	}
	if err != nil {
		return d, err
	}
	if err := json.Unmarshal(pages, &d.Pages); err != nil {
		return d, fmt.Errorf("document %s pages: %w", d.ID, err)
	}
	return d, nil
}

func pagesJSON(d domain.Document) ([]byte, error) {
	if d.Pages == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(d.Pages)
}

func (db *DB) CreateDocument(ctx context.Context, doc domain.Document, entry domain.AuditEntry) (err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	pages, err := pagesJSON(doc)
	if err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, doc.ID, doc.OwnerID, doc.Title, doc.Status, string(pages), doc.SourceKey, doc.ArtifactKey, doc.ArtifactURL, doc.Version, doc.CreatedAt, doc.UpdatedAt); err != nil {
		return err
	}
	return appendAudit(ctx, tx, entry)
}

func (db *DB) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	return scanDocument(db.Pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
}

func (db *DB) ListDocuments(ctx context.Context, ownerID string, includeArchived bool) ([]domain.Document, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE ($1::text = '' OR owner_id = $1) AND ($2::boolean OR status <> 'archived')
		ORDER BY created_at, id
	`, ownerID, includeArchived)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (db *DB) ListRecipients(ctx context.Context, documentID string) ([]domain.Recipient, error) {
	rs, err := listRecipients(ctx, db.Pool, documentID)
	if err == nil && len(rs) == 0 {
		err = db.mustExist(ctx, documentID)
	}
	return rs, err
}

func (db *DB) ListFields(ctx context.Context, documentID string, page int) ([]domain.Field, error) {
	fs, err := listFields(ctx, db.Pool, documentID, page)
	if err == nil && len(fs) == 0 {
		err = db.mustExist(ctx, documentID)
	}
	return fs, err
}

func (db *DB) AuditTrail(ctx context.Context, documentID string) ([]domain.AuditEntry, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, document_id, action, actor_id, ts, details, ip_address, location
		FROM audit_entries WHERE document_id = $1 ORDER BY seq
	`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.Action, &e.ActorID, &e.Timestamp, &e.Details, &e.IPAddress, &e.Location); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, db.mustExist(ctx, documentID)
	}
	return out, nil
}

func (db *DB) mustExist(ctx context.Context, documentID string) error {
	var ok bool
	if err := db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, documentID).Scan(&ok); err != nil {
		return err
	}
	if !ok {
		return ports.ErrNotFound
	}
	return nil
}

// WithDocumentLock takes the document row lock (SELECT ... FOR UPDATE) for
// the length of one transaction.
func (db *DB) WithDocumentLock(ctx context.Context, documentID string, fn func(ctx context.Context, tx ports.DocumentTx) error) (err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	doc, err := scanDocument(tx.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1 FOR UPDATE`, documentID))
	if err != nil {
		return err
	}
	return fn(ctx, &docTx{tx: tx, doc: doc})
}

type docTx struct {
	tx  pgx.Tx
	doc domain.Document
}

func (t *docTx) Document() domain.Document { return t.doc }

func (t *docTx) Recipients(ctx context.Context) ([]domain.Recipient, error) {
	return listRecipients(ctx, t.tx, t.doc.ID)
}

func (t *docTx) Fields(ctx context.Context, page int) ([]domain.Field, error) {
	return listFields(ctx, t.tx, t.doc.ID, page)
}

func (t *docTx) UpdateDocument(ctx context.Context, d domain.Document) error {
	if d.ID != t.doc.ID {
		return fmt.Errorf("update of %s inside lock for %s", d.ID, t.doc.ID)
	}
	pages, err := pagesJSON(d)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		UPDATE documents SET title=$2, status=$3, pages=$4, source_key=$5, artifact_key=$6,
			artifact_url=$7, version=$8, updated_at=$9
		WHERE id=$1
	`, d.ID, d.Title, d.Status, string(pages), d.SourceKey, d.ArtifactKey, d.ArtifactURL, d.Version, d.UpdatedAt)
	return err
}

func (t *docTx) InsertRecipient(ctx context.Context, r domain.Recipient) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO recipients (id, document_id, name, email, role, signing_order, signature_status, signed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.ID, t.doc.ID, r.Name, r.Email, r.Role, r.SigningOrder, r.SignatureStatus, r.SignedAt)
	return err
}

func (t *docTx) UpdateRecipient(ctx context.Context, r domain.Recipient) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE recipients SET name=$3, email=$4, role=$5, signing_order=$6, signature_status=$7, signed_at=$8
		WHERE document_id=$1 AND id=$2
	`, t.doc.ID, r.ID, r.Name, r.Email, r.Role, r.SigningOrder, r.SignatureStatus, r.SignedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("recipient %s: %w", r.ID, ports.ErrNotFound)
	}
	return nil
}

func (t *docTx) ReplacePageFields(ctx context.Context, page int, fields []domain.Field) error {
	b := &pgx.Batch{}
	b.Queue(`DELETE FROM fields WHERE document_id=$1 AND page=$2`, t.doc.ID, page)
	for i, f := range fields {
		b.Queue(`
			INSERT INTO fields (document_id, id, recipient_id, type, page, position, x, y, w, h, value, required)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, t.doc.ID, f.ID, f.RecipientID, string(f.Type), page, i, f.Rect.X, f.Rect.Y, f.Rect.W, f.Rect.H, f.Value, f.Required)
	}
	return t.tx.SendBatch(ctx, b).Close()
}

func (t *docTx) UpdateFieldValues(ctx context.Context, fields []domain.Field) error {
	for _, f := range fields {
		tag, err := t.tx.Exec(ctx, `UPDATE fields SET value=$3 WHERE document_id=$1 AND id=$2`, t.doc.ID, f.ID, f.Value)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("field %s: %w", f.ID, ports.ErrNotFound)
		}
	}
	return nil
}

func (t *docTx) AppendAudit(ctx context.Context, entry domain.AuditEntry) error {
	return appendAudit(ctx, t.tx, entry)
}

func (t *docTx) EnqueueBake(ctx context.Context) (string, error) {
	var id string
	err := t.tx.QueryRow(ctx, `INSERT INTO bake_jobs (document_id) VALUES ($1) RETURNING id`, t.doc.ID).Scan(&id)
	return id, err
}

func appendAudit(ctx context.Context, tx pgx.Tx, e domain.AuditEntry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO audit_entries (id, document_id, action, actor_id, ts, details, ip_address, location)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.DocumentID, e.Action, e.ActorID, e.Timestamp, e.Details, e.IPAddress, e.Location)
	return err
}

func listRecipients(ctx context.Context, q querier, documentID string) ([]domain.Recipient, error) {
	rows, err := q.Query(ctx, `
		SELECT id, document_id, name, email, role, signing_order, signature_status, signed_at
		FROM recipients WHERE document_id = $1
		ORDER BY signing_order, id
	`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Recipient
	for rows.Next() {
		var r domain.Recipient
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.Name, &r.Email, &r.Role, &r.SigningOrder, &r.SignatureStatus, &r.SignedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func listFields(ctx context.Context, q querier, documentID string, page int) ([]domain.Field, error) {
	rows, err := q.Query(ctx, `
		SELECT document_id, id, recipient_id, type, page, x, y, w, h, value, required
		FROM fields WHERE document_id = $1 AND ($2::integer = 0 OR page = $2)
		ORDER BY page, position
	`, documentID, page)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Field
	for rows.Next() {
		var f domain.Field
		var typ string
		if err := rows.Scan(&f.DocumentID, &f.ID, &f.RecipientID, &typ, &f.Page, &f.Rect.X, &f.Rect.Y, &f.Rect.W, &f.Rect.H, &f.Value, &f.Required); err != nil {
			return nil, err
		}
		f.Type = fieldtype.Type(typ)
		out = append(out, f)
	}
	return out, rows.Err()
}
