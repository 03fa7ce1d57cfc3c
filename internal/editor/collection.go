// Package editor is the field placement engine: the set of fields on a
// document, the pointer gesture state machine that moves them, and the save
// path that hands them to storage.
package editor

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"signdesk/internal/domain"
	"signdesk/internal/fieldtype"
	"signdesk/internal/geometry"
)

var (
	ErrFieldNotFound = errors.New("field not found")
	ErrInvalidPage   = errors.New("page out of range")
)

// DuplicateOffsetPct is how far a duplicated field is shifted on each axis.
const DuplicateOffsetPct = 2.0

// Alignment is an edge or centre line used by AlignFields.
type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
	AlignTop    Alignment = "top"
	AlignMiddle Alignment = "middle"
	AlignBottom Alignment = "bottom"
)

// Valid reports whether a is one of the six alignments.
func (a Alignment) Valid() bool {
	switch a {
	case AlignLeft, AlignCenter, AlignRight, AlignTop, AlignMiddle, AlignBottom:
		return true
	}
	return false
}

// FieldPatch lists the properties UpdateField may change. Nil means keep.
type FieldPatch struct {
	Rect        *geometry.Rect  `json:"rect,omitempty"`
	Value       *string         `json:"value,omitempty"`
	ClearValue  bool            `json:"clearValue,omitempty"`
	Required    *bool           `json:"required,omitempty"`
	RecipientID *string         `json:"recipientId,omitempty"`
	Type        *fieldtype.Type `json:"type,omitempty"`
}

// Collection holds the fields of one document plus the current selection.
// It is not safe for concurrent use; callers own it from a single goroutine.
type Collection struct {
	documentID string
	pageCount  int
	fields     []domain.Field
	selected   string
	newID      func() string
}

// NewCollection wraps existing fields. pageCount <= 0 disables page checks.
func NewCollection(documentID string, pageCount int, fields []domain.Field) *Collection {
	c := &Collection{
		documentID: documentID,
		pageCount:  pageCount,
		newID:      uuid.NewString,
	}
	c.fields = append(c.fields, fields...)
	return c
}

// Fields returns a copy of every field in insertion order.
func (c *Collection) Fields() []domain.Field {
	out := make([]domain.Field, len(c.fields))
	copy(out, c.fields)
	return out
}

// Page returns the fields placed on page n.
func (c *Collection) Page(n int) []domain.Field {
	var out []domain.Field
	for _, f := range c.fields {
		if f.Page == n {
			out = append(out, f)
		}
	}
	return out
}

// Get returns the field with id.
func (c *Collection) Get(id string) (domain.Field, bool) {
	i := c.index(id)
	if i < 0 {
		return domain.Field{}, false
	}
	return c.fields[i], true
}

// Selected returns the selected field, if any.
func (c *Collection) Selected() (domain.Field, bool) {
	if c.selected == "" {
		return domain.Field{}, false
	}
	return c.Get(c.selected)
}

// AddField places a new field on page. Zero width/height take the type
// defaults; the rect is raised to the type minimums and clamped in bounds.
func (c *Collection) AddField(page int, partial domain.Field) (domain.Field, error) {
	cfg, err := fieldtype.Lookup(partial.Type)
	if err != nil {
		return domain.Field{}, err
	}
	if err := c.checkPage(page); err != nil {
		return domain.Field{}, err
	}

	f := partial
	f.Page = page
	f.DocumentID = c.documentID
	if f.ID == "" || c.index(f.ID) >= 0 {
		f.ID = c.newID()
	}
	if f.Rect.W <= 0 {
		f.Rect.W = cfg.DefaultWidthPct
	}
	if f.Rect.H <= 0 {
		f.Rect.H = cfg.DefaultHeightPct
	}
	f.Rect = fitType(f.Rect, cfg)

	c.fields = append(c.fields, f)
	return f, nil
}

// UpdateField applies patch to the field with id. A type change keeps the id
// and re-fits the rect to the new type's minimums.
func (c *Collection) UpdateField(id string, patch FieldPatch) (domain.Field, error) {
	i := c.index(id)
	if i < 0 {
		return domain.Field{}, fmt.Errorf("%w: %s", ErrFieldNotFound, id)
	}
	f := c.fields[i]

	retyped := patch.Type != nil && *patch.Type != f.Type
	if retyped {
		if _, err := fieldtype.Lookup(*patch.Type); err != nil {
			return domain.Field{}, err
		}
		f.Type = *patch.Type
	}
	cfg, _ := fieldtype.Lookup(f.Type)
	if patch.Rect != nil {
		f.Rect = fitInPlace(*patch.Rect, cfg)
	}
	if retyped {
		f.Rect = fitType(f.Rect, cfg)
	}
	if patch.ClearValue {
		f.Value = nil
	} else if patch.Value != nil {
		v := *patch.Value
		f.Value = &v
	}
	if patch.Required != nil {
		f.Required = *patch.Required
	}
	if patch.RecipientID != nil {
		f.RecipientID = *patch.RecipientID
	}

	c.fields[i] = f
	return f, nil
}

// RemoveField deletes a field. Removing the selected field clears the
// selection.
func (c *Collection) RemoveField(id string) error {
	i := c.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrFieldNotFound, id)
	}
	c.fields = append(c.fields[:i], c.fields[i+1:]...)
	if c.selected == id {
		c.selected = ""
	}
	return nil
}

// SelectField makes id the single selected field.
func (c *Collection) SelectField(id string) error {
	if c.index(id) < 0 {
		return fmt.Errorf("%w: %s", ErrFieldNotFound, id)
	}
	c.selected = id
	return nil
}

// DeselectAll clears the selection.
func (c *Collection) DeselectAll() { c.selected = "" }

// DuplicateField copies a field, without its value, offset down-right by
// DuplicateOffsetPct (or up-left when there is no room). The copy is selected.
func (c *Collection) DuplicateField(id string) (domain.Field, error) {
	src, ok := c.Get(id)
	if !ok {
		return domain.Field{}, fmt.Errorf("%w: %s", ErrFieldNotFound, id)
	}
	dup := src
	dup.ID = c.newID()
	dup.Value = nil
	dup.Rect = geometry.ConstrainPosition(src.Rect, DuplicateOffsetPct, DuplicateOffsetPct)
	if dup.Rect == src.Rect {
		dup.Rect = geometry.ConstrainPosition(src.Rect, -DuplicateOffsetPct, -DuplicateOffsetPct)
	}
	if dup.Rect == src.Rect {
		// Spans the whole page: no room to offset, so the copy drops to
		// the type's minimum size.
		cfg, err := fieldtype.Lookup(src.Type)
		if err != nil {
			return domain.Field{}, err
		}
		small := geometry.Rect{X: src.Rect.X, Y: src.Rect.Y, W: cfg.MinWidthPct, H: cfg.MinHeightPct}
		dup.Rect = geometry.ConstrainPosition(small, DuplicateOffsetPct, DuplicateOffsetPct)
	}
	c.fields = append(c.fields, dup)
	c.selected = dup.ID
	return dup, nil
}

// AlignFields lines every other field on the anchor's page up with the
// anchor along one axis. The other axis is untouched. Returns the fields
// that were moved.
func (c *Collection) AlignFields(anchorID string, a Alignment) ([]domain.Field, error) {
	anchor, ok := c.Get(anchorID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, anchorID)
	}
	if !a.Valid() {
		return nil, fmt.Errorf("unknown alignment %q", a)
	}
	ar := anchor.Rect

	var moved []domain.Field
	for i := range c.fields {
		f := &c.fields[i]
		if f.ID == anchorID || f.Page != anchor.Page {
			continue
		}
		r := f.Rect
		switch a {
		case AlignLeft:
			r.X = ar.X
		case AlignCenter:
			r.X = ar.X + ar.W/2 - r.W/2
		case AlignRight:
			r.X = ar.X + ar.W - r.W
		case AlignTop:
			r.Y = ar.Y
		case AlignMiddle:
			r.Y = ar.Y + ar.H/2 - r.H/2
		case AlignBottom:
			r.Y = ar.Y + ar.H - r.H
		}
		f.Rect = r.Normalize()
		moved = append(moved, *f)
	}
	return moved, nil
}

// Len returns the number of fields.
func (c *Collection) Len() int { return len(c.fields) }

func (c *Collection) index(id string) int {
	for i := range c.fields {
		if c.fields[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Collection) checkPage(page int) error {
	if page < 1 || (c.pageCount > 0 && page > c.pageCount) {
		return fmt.Errorf("%w: %d", ErrInvalidPage, page)
	}
	return nil
}

// fitInPlace raises r towards the type minimums without moving its origin;
// the room left to the container edge caps the minimums.
func fitInPlace(r geometry.Rect, cfg fieldtype.Config) geometry.Rect {
	r = r.Normalize()
	r.W = geometry.Clamp(r.W, min(cfg.MinWidthPct, 100-r.X), 100-r.X)
	r.H = geometry.Clamp(r.H, min(cfg.MinHeightPct, 100-r.Y), 100-r.Y)
	return r
}

// fitType raises r to the type minimums, then restores the rect invariant.
// The origin may move to make room.
func fitType(r geometry.Rect, cfg fieldtype.Config) geometry.Rect {
	if r.W < cfg.MinWidthPct {
		r.W = cfg.MinWidthPct
	}
	if r.H < cfg.MinHeightPct {
		r.H = cfg.MinHeightPct
	}
	return r.Normalize()
}
