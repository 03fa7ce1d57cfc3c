// Package render bakes field values onto page overlays. Placement math comes
// from geometry and fieldtype only, so a baked field lands exactly where the
// editor showed it.
package render

import (
	"signdesk/internal/domain"
	"signdesk/internal/fieldtype"
	"signdesk/internal/geometry"
)

// PointsPerInch is the PDF user-space unit.
const PointsPerInch = 72.0

// Placement is a field resolved against a page container.
type Placement struct {
	FieldID    string             `json:"fieldId"`
	Page       int                `json:"page"`
	Type       fieldtype.Type     `json:"type"`
	Rect       geometry.Rect      `json:"rect"`
	Pixels     geometry.PixelRect `json:"pixels"`
	FontSizePx int                `json:"fontSizePx"`
	Weight     fieldtype.Weight   `json:"weight"`
	Value      string             `json:"value"`
	Clipped    bool               `json:"clipped,omitempty"`
}

// RenderField resolves one field rect into pixels and a font size. The editor
// preview and the baker both call it.
func RenderField(rect geometry.Rect, t fieldtype.Type, value string, container geometry.Size) Placement {
	px := rect.ToPixels(container)
	weight := fieldtype.WeightRegular
	if cfg, err := fieldtype.Lookup(t); err == nil {
		weight = cfg.FontWeight
	}
	return Placement{
		Type:       t,
		Rect:       rect,
		Pixels:     px,
		FontSizePx: fieldtype.FontSizePx(t, px.H),
		Weight:     weight,
		Value:      value,
	}
}

// PlaceField is RenderField for a stored field.
func PlaceField(f domain.Field, container geometry.Size) Placement {
	v := ""
	if f.Value != nil {
		v = *f.Value
	}
	p := RenderField(f.Rect, f.Type, v, container)
	p.FieldID = f.ID
	p.Page = f.Page
	return p
}

// PageContainer is the pixel size of a page rendered at dpi.
func PageContainer(p domain.PageSize, dpi float64) geometry.Size {
	return geometry.Size{
		W: p.WidthPt * dpi / PointsPerInch,
		H: p.HeightPt * dpi / PointsPerInch,
	}
}
