package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"math"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"golang.org/x/sync/errgroup"

	"signdesk/internal/domain"
	"signdesk/internal/fieldtype"
	"signdesk/internal/geometry"
)

// DefaultDPI renders pages at PDF point resolution.
const DefaultDPI = 72.0

var ink = color.NRGBA{R: 0x12, G: 0x1a, B: 0x4d, A: 0xff}

// ManifestPage lists what was drawn on one page.
type ManifestPage struct {
	Page       int           `json:"page"`
	WidthPx    int           `json:"widthPx"`
	HeightPx   int           `json:"heightPx"`
	Placements []Placement   `json:"placements"`
	Container  geometry.Size `json:"container"`
}

// Manifest describes a bake: every page and every placement.
type Manifest struct {
	DocumentID string         `json:"documentId"`
	Version    int            `json:"version"`
	DPI        float64        `json:"dpi"`
	BakedAt    time.Time      `json:"bakedAt"`
	Pages      []ManifestPage `json:"pages"`
}

// PageImage is one transparent overlay in PNG form.
type PageImage struct {
	Page int
	PNG  []byte
}

type Result struct {
	Pages    []PageImage
	Manifest Manifest
}

// Baker draws field values onto per-page overlays.
type Baker struct {
	fonts       *FontSet
	dpi         float64
	concurrency int
	log         *slog.Logger
}

func NewBaker(fonts *FontSet, dpi float64, concurrency int, log *slog.Logger) *Baker {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	if concurrency < 1 {
		concurrency = 4
	}
	if log == nil {
		log = slog.Default()
	}
	return &Baker{fonts: fonts, dpi: dpi, concurrency: concurrency, log: log}
}

// DPI is the render resolution.
func (b *Baker) DPI() float64 { return b.dpi }

// Bake renders every page of doc in parallel and verifies the placements
// against the editor geometry. Fields on pages the document does not have
// are a divergence.
func (b *Baker) Bake(ctx context.Context, doc domain.Document, fields []domain.Field, now time.Time) (Result, error) {
	byPage := make(map[int][]domain.Field)
	for _, f := range fields {
		if f.Page < 1 || f.Page > doc.PageCount() {
			return Result{}, &DivergenceError{FieldID: f.ID, Page: f.Page, Reason: "field is on a page the document does not have"}
		}
		byPage[f.Page] = append(byPage[f.Page], f)
	}

	n := doc.PageCount()
	pages := make([]PageImage, n)
	manifest := make([]ManifestPage, n)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i := 0; i < n; i++ {
		page := i + 1
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, mp, err := b.bakePage(doc.Page(page), page, byPage[page])
			if err != nil {
				return fmt.Errorf("page %d: %w", page, err)
			}
			pages[page-1] = PageImage{Page: page, PNG: img}
			manifest[page-1] = mp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res := Result{
		Pages: pages,
		Manifest: Manifest{
			DocumentID: doc.ID,
			Version:    doc.Version,
			DPI:        b.dpi,
			BakedAt:    now.UTC(),
			Pages:      manifest,
		},
	}
	if err := Verify(res.Manifest, doc, fields); err != nil {
		b.log.Error("render divergence", "document_id", doc.ID, "error", err, "fields", fields)
		return Result{}, err
	}
	return res, nil
}

func (b *Baker) bakePage(size domain.PageSize, page int, fields []domain.Field) ([]byte, ManifestPage, error) {
	container := PageContainer(size, b.dpi)
	w, h := int(math.Ceil(container.W)), int(math.Ceil(container.H))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))

	faces := b.fonts.newCache()
	defer faces.close()

	mp := ManifestPage{Page: page, WidthPx: w, HeightPx: h, Container: container}
	for _, f := range fields {
		p := PlaceField(f, container)
		if p.Value != "" {
			clipped, err := drawPlacement(img, faces, p)
			if err != nil {
				return nil, mp, fmt.Errorf("field %s: %w", f.ID, err)
			}
			p.Clipped = clipped
		}
		mp.Placements = append(mp.Placements, p)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, mp, err
	}
	return buf.Bytes(), mp, nil
}

// drawPlacement writes the value inside the placement's pixel rect. Glyphs
// are clipped to the rect; the result reports whether any were cut.
func drawPlacement(img *image.NRGBA, faces *faceCache, p Placement) (bool, error) {
	face, err := faces.face(p.Weight, p.FontSizePx)
	if err != nil {
		return false, err
	}
	box := pixelBounds(p.Pixels).Intersect(img.Bounds())
	if box.Empty() {
		return false, nil
	}
	dst := img.SubImage(box).(*image.NRGBA)

	m := face.Metrics()
	pad := fixed.I(2)
	ascent, descent := m.Ascent, m.Descent
	top := fixed.Int26_6(p.Pixels.Y * 64)
	height := fixed.Int26_6(p.Pixels.H * 64)
	baseline := top + (height+ascent-descent)/2

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(ink),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.Int26_6(p.Pixels.X*64) + pad, Y: baseline},
	}
	advance := d.MeasureString(p.Value)
	d.DrawString(p.Value)

	if p.Type == fieldtype.Signature {
		y := box.Max.Y - 2
		if y > box.Min.Y {
			draw.Draw(dst, image.Rect(box.Min.X, y, box.Max.X, y+1), image.NewUniform(ink), image.Point{}, draw.Over)
		}
	}
	return advance+2*pad > fixed.Int26_6(p.Pixels.W*64), nil
}

func pixelBounds(r geometry.PixelRect) image.Rectangle {
	return image.Rect(
		int(math.Floor(r.X)),
		int(math.Floor(r.Y)),
		int(math.Ceil(r.X+r.W)),
		int(math.Ceil(r.Y+r.H)),
	)
}
