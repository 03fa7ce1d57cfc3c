package render

import (
	"fmt"
	"math"

	"signdesk/internal/domain"
	"signdesk/internal/geometry"
)

// pixelTolerance absorbs float noise between two evaluations of the same
// formula.
const pixelTolerance = 0.5

// DivergenceError reports a baked placement that does not match the editor
// geometry for the same field.
type DivergenceError struct {
	FieldID string
	Page    int
	Reason  string
	Want    Placement
	Got     Placement
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("render divergence on field %s page %d: %s", e.FieldID, e.Page, e.Reason)
}

// Verify recomputes every field's placement from the stored geometry and
// compares it with the manifest. Each field must appear exactly once, on its
// own page, inside the page, at the same pixels and font size.
func Verify(m Manifest, doc domain.Document, fields []domain.Field) error {
	got := make(map[string]Placement)
	for _, page := range m.Pages {
		for _, p := range page.Placements {
			if _, dup := got[p.FieldID]; dup {
				return &DivergenceError{FieldID: p.FieldID, Page: page.Page, Reason: "field drawn twice", Got: p}
			}
			if p.Page != page.Page {
				return &DivergenceError{FieldID: p.FieldID, Page: page.Page, Reason: "placement listed under the wrong page", Got: p}
			}
			if !insidePage(p.Pixels, page) {
				return &DivergenceError{FieldID: p.FieldID, Page: page.Page, Reason: "placement outside page bounds", Got: p}
			}
			got[p.FieldID] = p
		}
	}
	if len(got) != len(fields) {
		return &DivergenceError{Reason: fmt.Sprintf("manifest has %d placements for %d fields", len(got), len(fields))}
	}

	for _, f := range fields {
		want := PlaceField(f, PageContainer(doc.Page(f.Page), m.DPI))
		p, ok := got[f.ID]
		switch {
		case !ok:
			return &DivergenceError{FieldID: f.ID, Page: f.Page, Reason: "field missing from manifest", Want: want}
		case p.Page != want.Page:
			return &DivergenceError{FieldID: f.ID, Page: f.Page, Reason: "page mismatch", Want: want, Got: p}
		case !pixelsEqual(p.Pixels, want.Pixels):
			return &DivergenceError{FieldID: f.ID, Page: f.Page, Reason: "pixel rect mismatch", Want: want, Got: p}
		case p.FontSizePx != want.FontSizePx:
			return &DivergenceError{FieldID: f.ID, Page: f.Page, Reason: "font size mismatch", Want: want, Got: p}
		case p.Value != want.Value:
			return &DivergenceError{FieldID: f.ID, Page: f.Page, Reason: "value mismatch", Want: want, Got: p}
		}
	}
	return nil
}

func pixelsEqual(a, b geometry.PixelRect) bool {
	return math.Abs(a.X-b.X) <= pixelTolerance && math.Abs(a.Y-b.Y) <= pixelTolerance &&
		math.Abs(a.W-b.W) <= pixelTolerance && math.Abs(a.H-b.H) <= pixelTolerance
}

func insidePage(r geometry.PixelRect, page ManifestPage) bool {
	return r.X >= -pixelTolerance && r.Y >= -pixelTolerance &&
		r.X+r.W <= page.Container.W+pixelTolerance &&
		r.Y+r.H <= page.Container.H+pixelTolerance
}
