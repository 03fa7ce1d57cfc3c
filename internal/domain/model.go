package domain

import (
	"time"

	"signdesk/internal/fieldtype"
	"signdesk/internal/geometry"
)

// Core domain models. JSON tags double as the HTTP wire shape.

type DocumentStatus string

const (
	StatusDraft      DocumentStatus = "draft"
	StatusActive     DocumentStatus = "active"
	StatusProcessing DocumentStatus = "processing"
	StatusFinal      DocumentStatus = "final"
	StatusArchived   DocumentStatus = "archived"
	StatusFailed     DocumentStatus = "failed"
)

func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusProcessing, StatusFinal, StatusArchived, StatusFailed:
		return true
	}
	return false
}

// PageSize is a page's MediaBox size in PDF points.
type PageSize struct {
	WidthPt  float64 `json:"widthPt"`
	HeightPt float64 `json:"heightPt"`
}

// LetterPage is used when a document has no source PDF.
var LetterPage = PageSize{WidthPt: 612, HeightPt: 792}

type Document struct {
	ID          string         `json:"id"`
	OwnerID     string         `json:"ownerId"`
	Title       string         `json:"title"`
	Status      DocumentStatus `json:"status"`
	Pages       []PageSize     `json:"pages"`
	SourceKey   string         `json:"sourceKey,omitempty"`
	ArtifactKey string         `json:"artifactKey,omitempty"`
	ArtifactURL string         `json:"signedArtifactUrl,omitempty"`
	Version     int            `json:"version"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// PageCount is the number of pages fields may be placed on.
func (d Document) PageCount() int {
	if len(d.Pages) == 0 {
		return 1
	}
	return len(d.Pages)
}

// Page returns the size of page n (1-based), falling back to letter.
func (d Document) Page(n int) PageSize {
	if n < 1 || n > len(d.Pages) {
		return LetterPage
	}
	return d.Pages[n-1]
}

type SignatureStatus string

const (
	SignaturePending  SignatureStatus = "pending"
	SignatureSigned   SignatureStatus = "signed"
	SignatureDeclined SignatureStatus = "declined"
)

type Role string

const (
	RoleSigner   Role = "signer"
	RoleApprover Role = "approver"
	RoleViewer   Role = "viewer"
)

// Obligated reports whether the role must sign before later recipients can.
func (r Role) Obligated() bool { return r == RoleSigner || r == "" }

type Recipient struct {
	ID              string          `json:"id"`
	DocumentID      string          `json:"documentId"`
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	Role            Role            `json:"role"`
	SigningOrder    int             `json:"signingOrder"`
	SignatureStatus SignatureStatus `json:"signatureStatus"`
	SignedAt        *time.Time      `json:"signedAt,omitempty"`
}

type Field struct {
	ID          string         `json:"id"`
	DocumentID  string         `json:"documentId"`
	RecipientID string         `json:"recipientId"`
	Type        fieldtype.Type `json:"type"`
	Page        int            `json:"pageNumber"`
	Rect        geometry.Rect  `json:"rect"`
	Value       *string        `json:"value,omitempty"`
	Required    bool           `json:"required"`
}

// HasValue reports whether the field carries a non-empty value.
func (f Field) HasValue() bool { return f.Value != nil && *f.Value != "" }

type AuditAction string

const (
	ActionCreated        AuditAction = "created"
	ActionUpdated        AuditAction = "updated"
	ActionRecipientAdded AuditAction = "recipient_added"
	ActionSent           AuditAction = "sent"
	ActionSigned         AuditAction = "signed"
	ActionDeclined       AuditAction = "declined"
	ActionProcessing     AuditAction = "processing"
	ActionCompleted      AuditAction = "completed"
	ActionFailed         AuditAction = "failed"
	ActionRetried        AuditAction = "retried"
	ActionArchived       AuditAction = "archived"
)

// AuditEntry is append-only; nothing updates or deletes one once stored.
type AuditEntry struct {
	ID         string      `json:"id"`
	DocumentID string      `json:"documentId"`
	Action     AuditAction `json:"action"`
	ActorID    string      `json:"actorId"`
	Timestamp  time.Time   `json:"timestamp"`
	Details    string      `json:"details"`
	IPAddress  string      `json:"ipAddress,omitempty"`
	Location   string      `json:"location,omitempty"`
}

// Actor identifies who triggered a mutation.
type Actor struct {
	ID        string
	IPAddress string
	Location  string
}

// SystemActor is used by background bake workers.
var SystemActor = Actor{ID: "system"}
