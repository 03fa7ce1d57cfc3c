package editor

import (
	"fmt"

	"signdesk/internal/domain"
	"signdesk/internal/fieldtype"
)

// EventKind names a recorded editor event.
type EventKind string

const (
	EventDown     EventKind = "down"
	EventHandle   EventKind = "handle"
	EventMove     EventKind = "move"
	EventFrame    EventKind = "frame"
	EventUp       EventKind = "up"
	EventClick    EventKind = "click"
	EventAddMode  EventKind = "add"
	EventDelete   EventKind = "delete"
	EventSelect   EventKind = "select"
	EventDeselect EventKind = "deselect"
)

// Event is one recorded pointer or command event.
type Event struct {
	Kind        EventKind      `json:"kind"`
	FieldID     string         `json:"fieldId,omitempty"`
	Point       Point          `json:"point"`
	Type        fieldtype.Type `json:"type,omitempty"`
	RecipientID string         `json:"recipientId,omitempty"`
}

// ReplayResult reports what a replay produced.
type ReplayResult struct {
	Added []domain.Field `json:"added"`
	State State          `json:"state"`
}

// Replay feeds events through the controller in order. Geometry never
// fails; only malformed events (unknown kind, unknown type) stop the replay.
func (c *Controller) Replay(events []Event) (ReplayResult, error) {
	var res ReplayResult
	for i, ev := range events {
		switch ev.Kind {
		case EventDown:
			c.PointerDownField(ev.FieldID, ev.Point)
		case EventHandle:
			c.PointerDownHandle(ev.FieldID, ev.Point)
		case EventMove:
			c.PointerMove(ev.Point)
		case EventFrame:
			c.Flush()
		case EventUp:
			c.PointerUp(ev.Point)
		case EventClick:
			f, added, err := c.ClickCanvas(ev.Point)
			if err != nil {
				return res, fmt.Errorf("event %d: %w", i, err)
			}
			if added {
				res.Added = append(res.Added, f)
			}
		case EventAddMode:
			if err := c.EnterAddMode(ev.Type, ev.RecipientID); err != nil {
				return res, fmt.Errorf("event %d: %w", i, err)
			}
		case EventDelete:
			if err := c.fields.RemoveField(ev.FieldID); err != nil {
				return res, fmt.Errorf("event %d: %w", i, err)
			}
		case EventSelect:
			if err := c.fields.SelectField(ev.FieldID); err != nil {
				return res, fmt.Errorf("event %d: %w", i, err)
			}
		case EventDeselect:
			c.fields.DeselectAll()
		default:
			return res, fmt.Errorf("event %d: unknown kind %q", i, ev.Kind)
		}
	}
	// Pending moves settle at the end of the recording.
	c.Flush()
	res.State = c.State()
	return res, nil
}
