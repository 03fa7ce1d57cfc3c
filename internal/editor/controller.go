package editor

import (
	"errors"

	"signdesk/internal/domain"
	"signdesk/internal/fieldtype"
	"signdesk/internal/geometry"
)

// Mode is the gesture state.
type Mode string

const (
	ModeIdle      Mode = "idle"
	ModeSelecting Mode = "selecting"
	ModeDragging  Mode = "dragging"
	ModeResizing  Mode = "resizing"
)

// Point is a pointer position in pixels relative to the page container.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// State is the controller's complete gesture state. It is a plain value so
// callers can inspect or log it between events.
type State struct {
	Mode         Mode           `json:"mode"`
	FieldID      string         `json:"fieldId,omitempty"`
	StartRect    geometry.Rect  `json:"startRect"`
	StartPointer Point          `json:"startPointer"`
	Pending      *Point         `json:"pending,omitempty"`
	Captured     bool           `json:"captured"`
	AddType      fieldtype.Type `json:"addType,omitempty"`
	AddRecipient string         `json:"addRecipient,omitempty"`
}

// InAddMode reports whether the next canvas click places a field.
func (s State) InAddMode() bool { return s.AddType != "" }

// Controller turns pointer events on one page into field geometry changes.
// Moves are coalesced: PointerMove only records the position and Flush, run
// once per frame, applies the latest one.
type Controller struct {
	fields    *Collection
	page      int
	container geometry.Size
	editable  bool
	state     State
}

func NewController(fields *Collection, page int, container geometry.Size, editable bool) *Controller {
	return &Controller{
		fields:    fields,
		page:      page,
		container: container,
		editable:  editable,
		state:     State{Mode: ModeIdle},
	}
}

// State returns a copy of the gesture state.
func (c *Controller) State() State {
	s := c.state
	if s.Pending != nil {
		p := *s.Pending
		s.Pending = &p
	}
	return s
}

// SetContainer updates the page container size, e.g. after a zoom.
func (c *Controller) SetContainer(size geometry.Size) { c.container = size }

// EnterAddMode arms the next canvas click to place a field of type t.
func (c *Controller) EnterAddMode(t fieldtype.Type, recipientID string) error {
	if !t.Valid() {
		return fieldtype.ErrUnknown{Type: t}
	}
	c.state.AddType = t
	c.state.AddRecipient = recipientID
	return nil
}

// ExitAddMode disarms add mode.
func (c *Controller) ExitAddMode() {
	c.state.AddType = ""
	c.state.AddRecipient = ""
}

// PointerDownField handles a press on a field body: select it and, when the
// page is editable, start dragging.
func (c *Controller) PointerDownField(id string, p Point) {
	c.begin(id, p, ModeDragging)
}

// PointerDownHandle handles a press on a field's resize handle.
func (c *Controller) PointerDownHandle(id string, p Point) {
	c.begin(id, p, ModeResizing)
}

func (c *Controller) begin(id string, p Point, mode Mode) {
	c.reset()
	f, ok := c.fields.Get(id)
	if !ok {
		return
	}
	if sel, ok := c.fields.Selected(); !ok || sel.ID != id {
		c.fields.DeselectAll()
		_ = c.fields.SelectField(id)
	}
	c.state.Mode = ModeSelecting
	c.state.FieldID = id
	if !c.editable {
		return
	}
	c.state.Mode = mode
	c.state.StartRect = f.Rect
	c.state.StartPointer = p
	c.state.Captured = true
}

// PointerMove records the latest pointer position for the next Flush.
func (c *Controller) PointerMove(p Point) {
	if c.state.Mode != ModeDragging && c.state.Mode != ModeResizing {
		return
	}
	c.state.Pending = &p
}

// Flush applies the pending move, if any. It reports whether a field changed.
func (c *Controller) Flush() bool {
	if c.state.Pending == nil {
		return false
	}
	p := *c.state.Pending
	c.state.Pending = nil
	return c.apply(p)
}

// PointerUp settles the gesture at p and returns to idle.
func (c *Controller) PointerUp(p Point) {
	if c.state.Mode == ModeDragging || c.state.Mode == ModeResizing {
		c.state.Pending = nil
		c.apply(p)
	}
	c.reset()
}

// Cancel abandons the current gesture, leaving the field where the last
// applied move put it.
func (c *Controller) Cancel() { c.reset() }

// ClickCanvas handles a click on empty canvas. In add mode it places a new
// field with its top-left corner at p and leaves add mode; otherwise it
// clears the selection.
func (c *Controller) ClickCanvas(p Point) (domain.Field, bool, error) {
	c.reset()
	if !c.state.InAddMode() {
		c.fields.DeselectAll()
		return domain.Field{}, false, nil
	}
	if !c.editable {
		return domain.Field{}, false, errors.New("page is not editable")
	}
	cfg, err := fieldtype.Lookup(c.state.AddType)
	if err != nil {
		return domain.Field{}, false, err
	}
	rect := geometry.Place(
		geometry.PixelToPct(p.X, c.container.W),
		geometry.PixelToPct(p.Y, c.container.H),
		cfg.DefaultWidthPct,
		cfg.DefaultHeightPct,
	)
	f, err := c.fields.AddField(c.page, domain.Field{
		Type:        c.state.AddType,
		RecipientID: c.state.AddRecipient,
		Rect:        rect,
		Required:    true,
	})
	if err != nil {
		return domain.Field{}, false, err
	}
	c.ExitAddMode()
	c.fields.DeselectAll()
	_ = c.fields.SelectField(f.ID)
	return f, true, nil
}

// apply moves or resizes the gesture's field to match pointer p. A field
// that vanished mid-gesture aborts the gesture.
func (c *Controller) apply(p Point) bool {
	f, ok := c.fields.Get(c.state.FieldID)
	if !ok {
		c.reset()
		return false
	}
	dx, dy := geometry.Delta(p.X-c.state.StartPointer.X, p.Y-c.state.StartPointer.Y, c.container)

	var next geometry.Rect
	switch c.state.Mode {
	case ModeDragging:
		next = geometry.ConstrainPosition(c.state.StartRect, dx, dy)
	case ModeResizing:
		cfg, err := fieldtype.Lookup(f.Type)
		if err != nil {
			return false
		}
		next = geometry.ConstrainSize(c.state.StartRect, dx, dy, cfg.MinWidthPct, cfg.MinHeightPct)
	default:
		return false
	}
	if next == f.Rect {
		return false
	}
	_, err := c.fields.UpdateField(f.ID, FieldPatch{Rect: &next})
	return err == nil
}

// reset returns to idle and releases capture, keeping add mode armed.
func (c *Controller) reset() {
	c.state = State{
		Mode:         ModeIdle,
		AddType:      c.state.AddType,
		AddRecipient: c.state.AddRecipient,
	}
}
