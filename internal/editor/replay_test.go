package editor

import (
	"testing"

	"signdesk/internal/fieldtype"
	"signdesk/internal/geometry"
)

func TestReplay_PlaceAndDrag(t *testing.T) {
	c := newTestCollection(1)
	ctl := NewController(c, 1, page1000x800, true)

	res, err := ctl.Replay([]Event{
		{Kind: EventAddMode, Type: fieldtype.Initial, RecipientID: "r1"},
		{Kind: EventClick, Point: Point{X: 100, Y: 80}},
		{Kind: EventDown, FieldID: "f1", Point: Point{X: 110, Y: 90}},
		{Kind: EventMove, Point: Point{X: 160, Y: 90}},
		{Kind: EventMove, Point: Point{X: 210, Y: 170}},
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(res.Added) != 1 || res.Added[0].ID != "f1" {
		t.Fatalf("expected one added field f1, got %+v", res.Added)
	}
	if res.State.Mode != ModeDragging {
		t.Errorf("expected drag still in progress, got %s", res.State.Mode)
	}
	got, _ := c.Get("f1")
	want := geometry.Rect{X: 20, Y: 20, W: 8, H: 6}
	if !geometry.ApproxEqual(got.Rect, want, 1e-9) {
		t.Errorf("expected trailing move flushed to %+v, got %+v", want, got.Rect)
	}
}

func TestReplay_SelectDeleteDeselect(t *testing.T) {
	c := newTestCollection(1)
	ctl := NewController(c, 1, page1000x800, true)

	_, err := ctl.Replay([]Event{
		{Kind: EventAddMode, Type: fieldtype.Text},
		{Kind: EventClick, Point: Point{X: 0, Y: 0}},
		{Kind: EventDeselect},
		{Kind: EventSelect, FieldID: "f1"},
		{Kind: EventDelete, FieldID: "f1"},
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("expected field deleted, have %d", c.Len())
	}
	if _, ok := c.Selected(); ok {
		t.Error("expected no selection")
	}
}

func TestReplay_RejectsMalformedEvents(t *testing.T) {
	ctl := NewController(newTestCollection(1), 1, page1000x800, true)
	if _, err := ctl.Replay([]Event{{Kind: "wiggle"}}); err == nil {
		t.Error("expected unknown kind error")
	}
	if _, err := ctl.Replay([]Event{{Kind: EventAddMode, Type: "stamp"}}); err == nil {
		t.Error("expected unknown type error")
	}
	if _, err := ctl.Replay([]Event{{Kind: EventDelete, FieldID: "missing"}}); err == nil {
		t.Error("expected missing field error")
	}
}
